package poollend

import (
	"encoding/binary"

	"github.com/holiman/uint256"

	"pooledger/crypto"
)

// LenderSlot is one lender's position in the ledger.
type LenderSlot struct {
	Active       bool
	Owner        crypto.Key
	TotalLending uint256.Int // u128 on disk
	Principal    uint64
	Withdrawable uint64
}

// LedgerHeader prefixes the lender slot array.
type LedgerHeader struct {
	Tag        byte
	ShardCount byte
}

// LoanStatus tracks the loan lifecycle.
type LoanStatus uint8

const (
	StatusUninitialized LoanStatus = iota
	StatusFundraising
	StatusFunded
	StatusRepaying
	StatusRepaid
	// StatusClosed is reserved; no operation produces it yet.
	StatusClosed
)

func (s LoanStatus) String() string {
	switch s {
	case StatusUninitialized:
		return "uninitialized"
	case StatusFundraising:
		return "fundraising"
	case StatusFunded:
		return "funded"
	case StatusRepaying:
		return "repaying"
	case StatusRepaid:
		return "repaid"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// LoanHeader holds the aggregate totals and lifecycle counters of a loan.
type LoanHeader struct {
	Tag                    byte
	Status                 LoanStatus
	Borrower               crypto.Key
	Guarantor              crypto.Key
	ApprovalTimestamp      int64
	FundraisingDeadline    int64
	FirstRepaymentDeadline int64
	Target                 uint64
	Raised                 uint64
	Repaid                 uint64
	InstallmentCount       uint8
	NextContribution       uint16
	NextRepayment          uint16
}

// Contribution is one entry of a loan's contribution log.
type Contribution struct {
	Lender   crypto.Key
	Shard    uint8
	LenderID uint32
	Amount   uint64
}

// Repayment is one entry of a loan's repayment log.
type Repayment struct {
	Timestamp int64
	Amount    uint64
}

// BorrowerRecord tracks whether a borrower has an open loan.
type BorrowerRecord struct {
	Tag           byte
	HasActiveLoan bool
	ActiveLoan    crypto.Key
}

// GuarantorRecord stores a guarantor's approval score.
type GuarantorRecord struct {
	Initialized   bool
	Tag           byte
	Owner         crypto.Key
	ApprovalScore uint64
}

var le = binary.LittleEndian

func putBool(b []byte, v bool) {
	if v {
		b[0] = 1
		return
	}
	b[0] = 0
}

// DecodeLenderSlot parses a 65-byte slot.
func DecodeLenderSlot(b []byte) (LenderSlot, error) {
	var slot LenderSlot
	if len(b) < LenderSlotSize {
		return slot, ErrTruncatedRecord
	}
	slot.Active = b[0] != 0
	copy(slot.Owner[:], b[slotOwnerOffset:slotTotalOffset])
	slot.TotalLending = uint256.Int{
		le.Uint64(b[slotTotalOffset : slotTotalOffset+8]),
		le.Uint64(b[slotTotalOffset+8 : slotTotalOffset+u128Size]),
		0, 0,
	}
	slot.Principal = le.Uint64(b[slotPrincipalOffset:slotWithdrawOffset])
	slot.Withdrawable = le.Uint64(b[slotWithdrawOffset:LenderSlotSize])
	return slot, nil
}

// EncodeLenderSlot writes slot into b. TotalLending must fit in 128 bits.
func EncodeLenderSlot(b []byte, slot LenderSlot) error {
	if len(b) < LenderSlotSize {
		return ErrTruncatedRecord
	}
	if slot.TotalLending.BitLen() > 128 {
		return ErrValueOutOfRange
	}
	putBool(b, slot.Active)
	copy(b[slotOwnerOffset:slotTotalOffset], slot.Owner[:])
	le.PutUint64(b[slotTotalOffset:slotTotalOffset+8], slot.TotalLending[0])
	le.PutUint64(b[slotTotalOffset+8:slotTotalOffset+u128Size], slot.TotalLending[1])
	le.PutUint64(b[slotPrincipalOffset:slotWithdrawOffset], slot.Principal)
	le.PutUint64(b[slotWithdrawOffset:LenderSlotSize], slot.Withdrawable)
	return nil
}

func DecodeLedgerHeader(b []byte) (LedgerHeader, error) {
	if len(b) < ledgerHeaderSize {
		return LedgerHeader{}, ErrTruncatedRecord
	}
	return LedgerHeader{Tag: b[0], ShardCount: b[ledgerShardOffset]}, nil
}

func EncodeLedgerHeader(b []byte, h LedgerHeader) error {
	if len(b) < ledgerHeaderSize {
		return ErrTruncatedRecord
	}
	b[0] = h.Tag
	b[ledgerShardOffset] = h.ShardCount
	return nil
}

// Loan header field offsets.
const (
	hdrStatus           = 1
	hdrBorrower         = 2
	hdrGuarantor        = hdrBorrower + crypto.KeyLength
	hdrApproval         = hdrGuarantor + crypto.KeyLength
	hdrFundDeadline     = hdrApproval + 8
	hdrFirstRepayment   = hdrFundDeadline + 8
	hdrTarget           = hdrFirstRepayment + 8
	hdrRaised           = hdrTarget + 8
	hdrRepaid           = hdrRaised + 8
	hdrInstallments     = hdrRepaid + 8
	hdrNextContribution = hdrInstallments + 1
	hdrNextRepayment    = hdrNextContribution + 2
	hdrEnd              = hdrNextRepayment + 2
)

func DecodeLoanHeader(b []byte) (LoanHeader, error) {
	var h LoanHeader
	if len(b) < LoanHeaderSize {
		return h, ErrTruncatedRecord
	}
	h.Tag = b[0]
	h.Status = LoanStatus(b[hdrStatus])
	copy(h.Borrower[:], b[hdrBorrower:hdrGuarantor])
	copy(h.Guarantor[:], b[hdrGuarantor:hdrApproval])
	h.ApprovalTimestamp = int64(le.Uint64(b[hdrApproval:hdrFundDeadline]))
	h.FundraisingDeadline = int64(le.Uint64(b[hdrFundDeadline:hdrFirstRepayment]))
	h.FirstRepaymentDeadline = int64(le.Uint64(b[hdrFirstRepayment:hdrTarget]))
	h.Target = le.Uint64(b[hdrTarget:hdrRaised])
	h.Raised = le.Uint64(b[hdrRaised:hdrRepaid])
	h.Repaid = le.Uint64(b[hdrRepaid:hdrInstallments])
	h.InstallmentCount = b[hdrInstallments]
	h.NextContribution = le.Uint16(b[hdrNextContribution:hdrNextRepayment])
	h.NextRepayment = le.Uint16(b[hdrNextRepayment:hdrEnd])
	return h, nil
}

// EncodeLoanHeader rewrites the full 128-byte header, zeroing the padding.
func EncodeLoanHeader(b []byte, h LoanHeader) error {
	if len(b) < LoanHeaderSize {
		return ErrTruncatedRecord
	}
	var buf [LoanHeaderSize]byte
	buf[0] = h.Tag
	buf[hdrStatus] = byte(h.Status)
	copy(buf[hdrBorrower:hdrGuarantor], h.Borrower[:])
	copy(buf[hdrGuarantor:hdrApproval], h.Guarantor[:])
	le.PutUint64(buf[hdrApproval:hdrFundDeadline], uint64(h.ApprovalTimestamp))
	le.PutUint64(buf[hdrFundDeadline:hdrFirstRepayment], uint64(h.FundraisingDeadline))
	le.PutUint64(buf[hdrFirstRepayment:hdrTarget], uint64(h.FirstRepaymentDeadline))
	le.PutUint64(buf[hdrTarget:hdrRaised], h.Target)
	le.PutUint64(buf[hdrRaised:hdrRepaid], h.Raised)
	le.PutUint64(buf[hdrRepaid:hdrInstallments], h.Repaid)
	buf[hdrInstallments] = h.InstallmentCount
	le.PutUint16(buf[hdrNextContribution:hdrNextRepayment], h.NextContribution)
	le.PutUint16(buf[hdrNextRepayment:hdrEnd], h.NextRepayment)
	copy(b[:LoanHeaderSize], buf[:])
	return nil
}

func DecodeContribution(b []byte) (Contribution, error) {
	var c Contribution
	if len(b) < ContributionSize {
		return c, ErrTruncatedRecord
	}
	copy(c.Lender[:], b[:crypto.KeyLength])
	c.Shard = b[32]
	c.LenderID = le.Uint32(b[33:37])
	c.Amount = le.Uint64(b[37:45])
	return c, nil
}

func EncodeContribution(b []byte, c Contribution) error {
	if len(b) < ContributionSize {
		return ErrTruncatedRecord
	}
	copy(b[:crypto.KeyLength], c.Lender[:])
	b[32] = c.Shard
	le.PutUint32(b[33:37], c.LenderID)
	le.PutUint64(b[37:45], c.Amount)
	return nil
}

func DecodeRepayment(b []byte) (Repayment, error) {
	if len(b) < RepaymentSize {
		return Repayment{}, ErrTruncatedRecord
	}
	return Repayment{
		Timestamp: int64(le.Uint64(b[0:8])),
		Amount:    le.Uint64(b[8:16]),
	}, nil
}

func EncodeRepayment(b []byte, r Repayment) error {
	if len(b) < RepaymentSize {
		return ErrTruncatedRecord
	}
	le.PutUint64(b[0:8], uint64(r.Timestamp))
	le.PutUint64(b[8:16], r.Amount)
	return nil
}

func DecodeBorrowerRecord(b []byte) (BorrowerRecord, error) {
	var r BorrowerRecord
	if len(b) < BorrowerRecordSize {
		return r, ErrTruncatedRecord
	}
	r.Tag = b[0]
	r.HasActiveLoan = b[1] != 0
	copy(r.ActiveLoan[:], b[2:BorrowerRecordSize])
	return r, nil
}

func EncodeBorrowerRecord(b []byte, r BorrowerRecord) error {
	if len(b) < BorrowerRecordSize {
		return ErrTruncatedRecord
	}
	b[0] = r.Tag
	putBool(b[1:], r.HasActiveLoan)
	copy(b[2:BorrowerRecordSize], r.ActiveLoan[:])
	return nil
}

func DecodeGuarantorRecord(b []byte) (GuarantorRecord, error) {
	var r GuarantorRecord
	if len(b) < GuarantorRecordSize {
		return r, ErrTruncatedRecord
	}
	r.Initialized = b[0] != 0
	r.Tag = b[1]
	copy(r.Owner[:], b[2:34])
	r.ApprovalScore = le.Uint64(b[34:GuarantorRecordSize])
	return r, nil
}

func EncodeGuarantorRecord(b []byte, r GuarantorRecord) error {
	if len(b) < GuarantorRecordSize {
		return ErrTruncatedRecord
	}
	putBool(b, r.Initialized)
	b[1] = r.Tag
	copy(b[2:34], r.Owner[:])
	le.PutUint64(b[34:GuarantorRecordSize], r.ApprovalScore)
	return nil
}

func DecodeAirdropCounter(b []byte) (uint64, error) {
	if len(b) < AirdropCounterSize {
		return 0, ErrTruncatedRecord
	}
	return le.Uint64(b[:AirdropCounterSize]), nil
}

func EncodeAirdropCounter(b []byte, total uint64) error {
	if len(b) < AirdropCounterSize {
		return ErrTruncatedRecord
	}
	le.PutUint64(b[:AirdropCounterSize], total)
	return nil
}
