package poollend

import "pooledger/crypto"

// Loan is a decoded loan header plus the record buffer holding the
// append-only contribution and repayment logs.
type Loan struct {
	Header LoanHeader
	data   []byte
}

// OpenLoan decodes the header of a loan record buffer.
func OpenLoan(data []byte) (*Loan, error) {
	if len(data) < LoanRecordSize {
		return nil, ErrTruncatedRecord
	}
	header, err := DecodeLoanHeader(data)
	if err != nil {
		return nil, err
	}
	return &Loan{Header: header, data: data}, nil
}

// LoanParams are the terms fixed when a loan is opened.
type LoanParams struct {
	Borrower           crypto.Key
	Guarantor          crypto.Key
	Target             uint64
	InstallmentCount   uint16
	FundraisingDays    uint16
	FirstRepaymentDays uint16
}

// Validate rejects terms the record cannot represent or that would make the
// installment minimum meaningless.
func (p LoanParams) Validate() error {
	if p.Target == 0 {
		return ErrInvalidLoanParameters
	}
	if p.InstallmentCount < minInstallmentCount || p.InstallmentCount > maxInstallmentCount {
		return ErrInvalidLoanParameters
	}
	return nil
}

// Initialize moves an empty record into Fundraising. The first repayment
// deadline includes a fixed five day grace period.
func (l *Loan) Initialize(p LoanParams, now int64) error {
	if l.Header.Tag != 0 {
		return ErrAlreadyInitialized
	}
	if err := p.Validate(); err != nil {
		return err
	}
	l.Header = LoanHeader{
		Tag:                    RecordTagLoan,
		Status:                 StatusFundraising,
		Borrower:               p.Borrower,
		Guarantor:              p.Guarantor,
		ApprovalTimestamp:      now,
		FundraisingDeadline:    now + int64(p.FundraisingDays)*secondsPerDay,
		FirstRepaymentDeadline: now + (int64(p.FirstRepaymentDays)+repaymentGraceDays)*secondsPerDay,
		Target:                 p.Target,
		InstallmentCount:       uint8(p.InstallmentCount),
	}
	return nil
}

// Verify checks the record carries the loan type tag.
func (l *Loan) Verify() error {
	if l.Header.Tag != RecordTagLoan {
		return ErrRecordTypeMismatch
	}
	return nil
}

// CheckContribution applies the fundraising guards at time now.
func (l *Loan) CheckContribution(now int64) error {
	h := l.Header
	if h.Raised >= h.Target || h.Status != StatusFundraising {
		return ErrAlreadyFunded
	}
	if now > h.FundraisingDeadline {
		return ErrFundraisingExpired
	}
	return nil
}

// RecordContribution appends c to the log and adds its amount to the raised
// total. It reports whether the loan became fully funded.
func (l *Loan) RecordContribution(c Contribution) (bool, error) {
	idx := l.Header.NextContribution
	if int(idx) >= ContributionCapacity {
		return false, ErrContributionLogFull
	}
	raised, ok := addUint64(l.Header.Raised, c.Amount)
	if !ok {
		return false, ErrArithmeticOverflow
	}
	if err := EncodeContribution(l.contributionBytes(idx), c); err != nil {
		return false, err
	}
	l.Header.NextContribution = idx + 1
	l.Header.Raised = raised
	if raised >= l.Header.Target {
		l.Header.Status = StatusFunded
		return true, nil
	}
	return false, nil
}

// CheckCollect returns the amount the borrower may withdraw.
func (l *Loan) CheckCollect(caller crypto.Key) (uint64, error) {
	if l.Header.Borrower != caller {
		return 0, ErrBorrowerMismatch
	}
	if l.Header.Raised < l.Header.Target {
		return 0, ErrAlreadyWithdrawn
	}
	return l.Header.Raised, nil
}

// MarkCollected makes the collected withdrawal single-use. Raised is reused
// as the guard, so loan size must be read from Target afterwards. A loan
// repaid before collection stays Repaid.
func (l *Loan) MarkCollected() {
	l.Header.Raised = 0
	if l.Header.Status == StatusFunded {
		l.Header.Status = StatusRepaying
	}
}

// MinimumInstallment is target / installment_count.
func (l *Loan) MinimumInstallment() uint64 {
	if l.Header.InstallmentCount == 0 {
		return l.Header.Target
	}
	return l.Header.Target / uint64(l.Header.InstallmentCount)
}

// CheckInstallment validates a realised installment amount.
func (l *Loan) CheckInstallment(caller crypto.Key, amount uint64) error {
	h := l.Header
	if h.Borrower != caller {
		return ErrBorrowerMismatch
	}
	if h.Status != StatusFunded && h.Status != StatusRepaying && h.Status != StatusRepaid {
		return ErrInvalidLoanState
	}
	if amount < l.MinimumInstallment() {
		return ErrBelowMinimumInstallment
	}
	if h.Repaid >= h.Target {
		return ErrLoanFullyRepaid
	}
	if h.NextContribution == 0 {
		return ErrInvalidLoanState
	}
	return nil
}

// RecordRepayment appends a repayment entry and reports whether the loan is
// now fully repaid.
func (l *Loan) RecordRepayment(r Repayment) (bool, error) {
	idx := l.Header.NextRepayment
	if int(idx) >= RepaymentCapacity {
		return false, ErrRepaymentLogFull
	}
	repaid, ok := addUint64(l.Header.Repaid, r.Amount)
	if !ok {
		return false, ErrArithmeticOverflow
	}
	if err := EncodeRepayment(l.repaymentBytes(idx), r); err != nil {
		return false, err
	}
	l.Header.NextRepayment = idx + 1
	l.Header.Repaid = repaid
	if repaid >= l.Header.Target {
		l.Header.Status = StatusRepaid
		return true, nil
	}
	l.Header.Status = StatusRepaying
	return false, nil
}

// Distribution is the pro-rata split of one installment.
type Distribution struct {
	Share         uint64
	Undistributed uint64
	Recipients    []Contribution
}

// Distribute splits amount equally across every recorded contribution slot.
// The integer-division remainder is not assigned to anyone.
func (l *Loan) Distribute(amount uint64) (Distribution, error) {
	n := uint64(l.Header.NextContribution)
	if n == 0 {
		return Distribution{}, ErrInvalidLoanState
	}
	contributions, err := l.Contributions()
	if err != nil {
		return Distribution{}, err
	}
	share := amount / n
	return Distribution{
		Share:         share,
		Undistributed: amount - share*n,
		Recipients:    contributions,
	}, nil
}

func (l *Loan) contributionBytes(idx uint16) []byte {
	off := contributionsOffset + int(idx)*ContributionSize
	return l.data[off : off+ContributionSize]
}

func (l *Loan) repaymentBytes(idx uint16) []byte {
	off := repaymentsOffset + int(idx)*RepaymentSize
	return l.data[off : off+RepaymentSize]
}

// Contributions decodes the populated part of the contribution log.
func (l *Loan) Contributions() ([]Contribution, error) {
	n := l.Header.NextContribution
	if int(n) > ContributionCapacity {
		return nil, ErrContributionLogFull
	}
	out := make([]Contribution, 0, n)
	for i := uint16(0); i < n; i++ {
		c, err := DecodeContribution(l.contributionBytes(i))
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Repayments decodes the populated part of the repayment log.
func (l *Loan) Repayments() ([]Repayment, error) {
	n := l.Header.NextRepayment
	if int(n) > RepaymentCapacity {
		return nil, ErrRepaymentLogFull
	}
	out := make([]Repayment, 0, n)
	for i := uint16(0); i < n; i++ {
		r, err := DecodeRepayment(l.repaymentBytes(i))
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// Bytes re-encodes the header into the record buffer and returns it.
func (l *Loan) Bytes() ([]byte, error) {
	if err := EncodeLoanHeader(l.data, l.Header); err != nil {
		return nil, err
	}
	return l.data, nil
}
