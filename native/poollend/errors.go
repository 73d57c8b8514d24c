package poollend

import "errors"

// Kind classifies a failure independent of its message.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindMissingAuthorization
	KindRecordOwnershipMismatch
	KindRecordTypeMismatch
	KindCapacityExceeded
	KindAmountMismatch
	KindInvalidState
	KindStorageLayoutError
	KindVaultIdentityError
	KindInvalidInstruction
	KindExternal
)

var kindNames = map[Kind]string{
	KindUnknown:                 "Unknown",
	KindMissingAuthorization:    "MissingAuthorization",
	KindRecordOwnershipMismatch: "RecordOwnershipMismatch",
	KindRecordTypeMismatch:      "RecordTypeMismatch",
	KindCapacityExceeded:        "CapacityExceeded",
	KindAmountMismatch:          "AmountMismatch",
	KindInvalidState:            "InvalidState",
	KindStorageLayoutError:      "StorageLayoutError",
	KindVaultIdentityError:      "VaultIdentityError",
	KindInvalidInstruction:      "InvalidInstruction",
	KindExternal:                "External",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Unknown"
}

// Error is a classified module failure. Sentinels are compared by identity
// so callers can match them with errors.Is through any amount of wrapping.
type Error struct {
	kind Kind
	msg  string
}

func (e *Error) Error() string { return "poollend: " + e.msg }

// Kind returns the failure classification.
func (e *Error) Kind() Kind { return e.kind }

func newError(kind Kind, msg string) *Error { return &Error{kind: kind, msg: msg} }

// KindOf recovers the Kind of err, or KindUnknown when err was not produced
// by this package.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.kind
	}
	return KindUnknown
}

var (
	ErrMissingSignature = newError(KindMissingAuthorization, "required signer missing")

	ErrNotProgramOwned       = newError(KindRecordOwnershipMismatch, "record not owned by program")
	ErrRecordAddressMismatch = newError(KindRecordOwnershipMismatch, "record address does not match derivation")
	ErrOwnerMismatch         = newError(KindRecordOwnershipMismatch, "lender slot bound to a different owner")
	ErrBorrowerMismatch      = newError(KindRecordOwnershipMismatch, "caller is not the loan borrower")

	ErrRecordTypeMismatch = newError(KindRecordTypeMismatch, "record type tag mismatch")

	ErrCapacityExceeded    = newError(KindCapacityExceeded, "lender id out of range")
	ErrShardMismatch       = newError(KindCapacityExceeded, "ledger shard count mismatch")
	ErrContributionLogFull = newError(KindCapacityExceeded, "contribution log full")
	ErrRepaymentLogFull    = newError(KindCapacityExceeded, "repayment log full")

	ErrAmountMismatch          = newError(KindAmountMismatch, "realised transfer does not match expected amount")
	ErrAmountTooSmall          = newError(KindAmountMismatch, "contribution below minimum")
	ErrBelowMinimumInstallment = newError(KindAmountMismatch, "installment below minimum")

	ErrAlreadyFunded         = newError(KindInvalidState, "loan already funded")
	ErrFundraisingExpired    = newError(KindInvalidState, "fundraising deadline passed")
	ErrAlreadyWithdrawn      = newError(KindInvalidState, "collected funds already withdrawn or not yet raised")
	ErrLoanFullyRepaid       = newError(KindInvalidState, "loan fully repaid")
	ErrAirdropCapReached     = newError(KindInvalidState, "airdrop cap reached")
	ErrBorrowerHasActiveLoan = newError(KindInvalidState, "borrower already has an active loan")
	ErrNothingToWithdraw     = newError(KindInvalidState, "no withdrawable balance")
	ErrInvalidLoanState      = newError(KindInvalidState, "operation not allowed in current loan state")
	ErrArithmeticOverflow    = newError(KindInvalidState, "arithmetic overflow")

	ErrAlreadyInitialized = newError(KindStorageLayoutError, "record already initialised")
	ErrRecordSize         = newError(KindStorageLayoutError, "record size mismatch")
	ErrNotRentExempt      = newError(KindStorageLayoutError, "record deposit below durability minimum")
	ErrRecordMissing      = newError(KindStorageLayoutError, "record does not exist")
	ErrTruncatedRecord    = newError(KindStorageLayoutError, "record truncated")
	ErrValueOutOfRange    = newError(KindStorageLayoutError, "value exceeds field width")

	ErrVaultCustody = newError(KindVaultIdentityError, "vault custodian is not the derived signer")

	ErrInvalidInstruction    = newError(KindInvalidInstruction, "unknown instruction")
	ErrTruncatedPayload      = newError(KindInvalidInstruction, "instruction payload truncated")
	ErrInvalidLoanParameters = newError(KindInvalidInstruction, "invalid loan parameters")
	ErrNotEnoughAccounts     = newError(KindInvalidInstruction, "not enough accounts")

	ErrTransferFailed = newError(KindExternal, "token transfer failed")
)
