package executor

import (
	"errors"
	"fmt"

	"pooledger/core/state"
	"pooledger/crypto"
	"pooledger/native/poollend"
	"pooledger/native/token"
)

// ErrWrongOwner is returned by typed queries when the record at the address
// belongs to a different program.
var ErrWrongOwner = errors.New("executor: record owned by another program")

// TokenAccountView is the JSON rendering of a token account.
type TokenAccountView struct {
	Address   crypto.Key `json:"address"`
	Custodian crypto.Key `json:"custodian"`
	Balance   uint64     `json:"balance"`
}

// LenderView is the JSON rendering of one lender slot.
type LenderView struct {
	Ledger       crypto.Key `json:"ledger"`
	LenderID     uint32     `json:"lenderId"`
	Active       bool       `json:"active"`
	Owner        crypto.Key `json:"owner"`
	TotalLending string     `json:"totalLending"`
	Principal    uint64     `json:"principal"`
	Withdrawable uint64     `json:"withdrawable"`
}

// LoanView is the JSON rendering of a loan record.
type LoanView struct {
	Address                crypto.Key              `json:"address"`
	Status                 string                  `json:"status"`
	Borrower               crypto.Key              `json:"borrower"`
	Guarantor              crypto.Key              `json:"guarantor"`
	ApprovalTimestamp      int64                   `json:"approvalTimestamp"`
	FundraisingDeadline    int64                   `json:"fundraisingDeadline"`
	FirstRepaymentDeadline int64                   `json:"firstRepaymentDeadline"`
	Target                 uint64                  `json:"target"`
	Raised                 uint64                  `json:"raised"`
	Repaid                 uint64                  `json:"repaid"`
	InstallmentCount       uint8                   `json:"installmentCount"`
	MinimumInstallment     uint64                  `json:"minimumInstallment"`
	Contributions          []poollend.Contribution `json:"contributions"`
	Repayments             []poollend.Repayment    `json:"repayments"`
}

// BorrowerView is the JSON rendering of a borrower record.
type BorrowerView struct {
	Address       crypto.Key `json:"address"`
	HasActiveLoan bool       `json:"hasActiveLoan"`
	ActiveLoan    crypto.Key `json:"activeLoan"`
}

// GuarantorView is the JSON rendering of a guarantor record.
type GuarantorView struct {
	Address       crypto.Key `json:"address"`
	Owner         crypto.Key `json:"owner"`
	ApprovalScore uint64     `json:"approvalScore"`
}

// Record returns the committed record at addr.
func (e *Executor) Record(addr crypto.Key) (*state.Record, error) {
	return e.manager.Record(addr)
}

// TokenAccount returns the committed token account at addr.
func (e *Executor) TokenAccount(addr crypto.Key) (TokenAccountView, error) {
	acct, err := e.reader.Account(addr)
	if err != nil {
		return TokenAccountView{}, err
	}
	if !acct.Initialized() {
		return TokenAccountView{}, token.ErrAccountNotInitialized
	}
	return TokenAccountView{Address: addr, Custodian: acct.Custodian, Balance: acct.Balance}, nil
}

func (e *Executor) lendingRecord(addr crypto.Key) ([]byte, error) {
	rec, err := e.manager.Record(addr)
	if err != nil {
		return nil, err
	}
	if rec.Owner != e.lending.Program() {
		return nil, ErrWrongOwner
	}
	return rec.Data, nil
}

// Lender returns slot id of the lender ledger at ledgerAddr.
func (e *Executor) Lender(ledgerAddr crypto.Key, id uint32) (LenderView, error) {
	data, err := e.lendingRecord(ledgerAddr)
	if err != nil {
		return LenderView{}, err
	}
	ledger, err := poollend.OpenLedger(data)
	if err != nil {
		return LenderView{}, err
	}
	if err := ledger.Verify(); err != nil {
		return LenderView{}, err
	}
	slot, err := ledger.Slot(id)
	if err != nil {
		return LenderView{}, err
	}
	return LenderView{
		Ledger:       ledgerAddr,
		LenderID:     id,
		Active:       slot.Active,
		Owner:        slot.Owner,
		TotalLending: slot.TotalLending.Dec(),
		Principal:    slot.Principal,
		Withdrawable: slot.Withdrawable,
	}, nil
}

// Loan returns the loan record at addr.
func (e *Executor) Loan(addr crypto.Key) (LoanView, error) {
	data, err := e.lendingRecord(addr)
	if err != nil {
		return LoanView{}, err
	}
	loan, err := poollend.OpenLoan(data)
	if err != nil {
		return LoanView{}, err
	}
	if err := loan.Verify(); err != nil {
		return LoanView{}, err
	}
	contributions, err := loan.Contributions()
	if err != nil {
		return LoanView{}, fmt.Errorf("executor: loan contributions: %w", err)
	}
	repayments, err := loan.Repayments()
	if err != nil {
		return LoanView{}, fmt.Errorf("executor: loan repayments: %w", err)
	}
	h := loan.Header
	return LoanView{
		Address:                addr,
		Status:                 h.Status.String(),
		Borrower:               h.Borrower,
		Guarantor:              h.Guarantor,
		ApprovalTimestamp:      h.ApprovalTimestamp,
		FundraisingDeadline:    h.FundraisingDeadline,
		FirstRepaymentDeadline: h.FirstRepaymentDeadline,
		Target:                 h.Target,
		Raised:                 h.Raised,
		Repaid:                 h.Repaid,
		InstallmentCount:       h.InstallmentCount,
		MinimumInstallment:     loan.MinimumInstallment(),
		Contributions:          contributions,
		Repayments:             repayments,
	}, nil
}

// Borrower returns the borrower record at addr.
func (e *Executor) Borrower(addr crypto.Key) (BorrowerView, error) {
	data, err := e.lendingRecord(addr)
	if err != nil {
		return BorrowerView{}, err
	}
	rec, err := poollend.DecodeBorrowerRecord(data)
	if err != nil {
		return BorrowerView{}, err
	}
	if err := rec.Verify(); err != nil {
		return BorrowerView{}, err
	}
	return BorrowerView{Address: addr, HasActiveLoan: rec.HasActiveLoan, ActiveLoan: rec.ActiveLoan}, nil
}

// Guarantor returns the guarantor record at addr.
func (e *Executor) Guarantor(addr crypto.Key) (GuarantorView, error) {
	data, err := e.lendingRecord(addr)
	if err != nil {
		return GuarantorView{}, err
	}
	rec, err := poollend.DecodeGuarantorRecord(data)
	if err != nil {
		return GuarantorView{}, err
	}
	if !rec.Initialized || rec.Tag != poollend.RecordTagGuarantor {
		return GuarantorView{}, poollend.ErrRecordTypeMismatch
	}
	return GuarantorView{Address: addr, Owner: rec.Owner, ApprovalScore: rec.ApprovalScore}, nil
}
