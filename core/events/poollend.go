package events

import "pooledger/crypto"

const (
	TypeLedgerInitialized    = "poollend.ledger_initialized"
	TypeBorrowerRegistered   = "poollend.borrower_registered"
	TypeGuarantorRegistered  = "poollend.guarantor_registered"
	TypeLoanInitialized      = "poollend.loan_initialized"
	TypeLoanContributed      = "poollend.loan_contributed"
	TypeLoanFunded           = "poollend.loan_funded"
	TypeCollectedWithdrawn   = "poollend.collected_withdrawn"
	TypeInstallmentPaid      = "poollend.installment_paid"
	TypeLoanRepaid           = "poollend.loan_repaid"
	TypeLenderWithdrawal     = "poollend.lender_withdrawal"
	TypeAirdropClaimed       = "poollend.airdrop_claimed"
	TypeVaultCustodyAssigned = "poollend.vault_custody_assigned"
)

type LedgerInitialized struct {
	Ledger   crypto.Key
	Capacity uint32
}

func (LedgerInitialized) EventType() string { return TypeLedgerInitialized }

func (e LedgerInitialized) Event() Event {
	return Event{Type: TypeLedgerInitialized, Attributes: map[string]string{
		"ledger":   e.Ledger.String(),
		"capacity": uintToString(uint64(e.Capacity)),
	}}
}

// PartyRegistered covers both borrower and guarantor record initialisation.
type PartyRegistered struct {
	Guarantor bool
	Party     crypto.Key
	Record    crypto.Key
}

func (e PartyRegistered) EventType() string {
	if e.Guarantor {
		return TypeGuarantorRegistered
	}
	return TypeBorrowerRegistered
}

func (e PartyRegistered) Event() Event {
	return Event{Type: e.EventType(), Attributes: map[string]string{
		"party":  e.Party.String(),
		"record": e.Record.String(),
	}}
}

type LoanInitialized struct {
	Loan                   crypto.Key
	Borrower               crypto.Key
	Guarantor              crypto.Key
	Target                 uint64
	Installments           uint8
	FundraisingDeadline    int64
	FirstRepaymentDeadline int64
}

func (LoanInitialized) EventType() string { return TypeLoanInitialized }

func (e LoanInitialized) Event() Event {
	return Event{Type: TypeLoanInitialized, Attributes: map[string]string{
		"loan":                   e.Loan.String(),
		"borrower":               e.Borrower.String(),
		"guarantor":              e.Guarantor.String(),
		"target":                 uintToString(e.Target),
		"installments":           uintToString(uint64(e.Installments)),
		"fundraisingDeadline":    intToString(e.FundraisingDeadline),
		"firstRepaymentDeadline": intToString(e.FirstRepaymentDeadline),
	}}
}

type LoanContributed struct {
	Loan     crypto.Key
	Lender   crypto.Key
	LenderID uint32
	Amount   uint64
	Raised   uint64
	Index    uint16
}

func (LoanContributed) EventType() string { return TypeLoanContributed }

func (e LoanContributed) Event() Event {
	return Event{Type: TypeLoanContributed, Attributes: map[string]string{
		"loan":     e.Loan.String(),
		"lender":   e.Lender.String(),
		"lenderId": uintToString(uint64(e.LenderID)),
		"amount":   uintToString(e.Amount),
		"raised":   uintToString(e.Raised),
		"index":    uintToString(uint64(e.Index)),
	}}
}

type LoanFunded struct {
	Loan   crypto.Key
	Raised uint64
	Target uint64
}

func (LoanFunded) EventType() string { return TypeLoanFunded }

func (e LoanFunded) Event() Event {
	return Event{Type: TypeLoanFunded, Attributes: map[string]string{
		"loan":   e.Loan.String(),
		"raised": uintToString(e.Raised),
		"target": uintToString(e.Target),
	}}
}

type CollectedWithdrawn struct {
	Loan     crypto.Key
	Borrower crypto.Key
	Amount   uint64
}

func (CollectedWithdrawn) EventType() string { return TypeCollectedWithdrawn }

func (e CollectedWithdrawn) Event() Event {
	return Event{Type: TypeCollectedWithdrawn, Attributes: map[string]string{
		"loan":     e.Loan.String(),
		"borrower": e.Borrower.String(),
		"amount":   uintToString(e.Amount),
	}}
}

type InstallmentPaid struct {
	Loan          crypto.Key
	Amount        uint64
	Repaid        uint64
	SharePerSlot  uint64
	Undistributed uint64
	Timestamp     int64
}

func (InstallmentPaid) EventType() string { return TypeInstallmentPaid }

func (e InstallmentPaid) Event() Event {
	return Event{Type: TypeInstallmentPaid, Attributes: map[string]string{
		"loan":          e.Loan.String(),
		"amount":        uintToString(e.Amount),
		"repaid":        uintToString(e.Repaid),
		"share":         uintToString(e.SharePerSlot),
		"undistributed": uintToString(e.Undistributed),
		"timestamp":     intToString(e.Timestamp),
	}}
}

type LoanRepaid struct {
	Loan     crypto.Key
	Borrower crypto.Key
}

func (LoanRepaid) EventType() string { return TypeLoanRepaid }

func (e LoanRepaid) Event() Event {
	return Event{Type: TypeLoanRepaid, Attributes: map[string]string{
		"loan":     e.Loan.String(),
		"borrower": e.Borrower.String(),
	}}
}

type LenderWithdrawal struct {
	Lender   crypto.Key
	LenderID uint32
	Amount   uint64
}

func (LenderWithdrawal) EventType() string { return TypeLenderWithdrawal }

func (e LenderWithdrawal) Event() Event {
	return Event{Type: TypeLenderWithdrawal, Attributes: map[string]string{
		"lender":   e.Lender.String(),
		"lenderId": uintToString(uint64(e.LenderID)),
		"amount":   uintToString(e.Amount),
	}}
}

type AirdropClaimed struct {
	User  crypto.Key
	Total uint64
}

func (AirdropClaimed) EventType() string { return TypeAirdropClaimed }

func (e AirdropClaimed) Event() Event {
	return Event{Type: TypeAirdropClaimed, Attributes: map[string]string{
		"user":  e.User.String(),
		"total": uintToString(e.Total),
	}}
}

type VaultCustodyAssigned struct {
	Vault     crypto.Key
	Custodian crypto.Key
	Airdrop   bool
}

func (VaultCustodyAssigned) EventType() string { return TypeVaultCustodyAssigned }

func (e VaultCustodyAssigned) Event() Event {
	kind := "pool"
	if e.Airdrop {
		kind = "airdrop"
	}
	return Event{Type: TypeVaultCustodyAssigned, Attributes: map[string]string{
		"vault":     e.Vault.String(),
		"custodian": e.Custodian.String(),
		"kind":      kind,
	}}
}
