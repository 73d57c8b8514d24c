package poollend

// ModuleName is used for pause guards, metrics labels and logging.
const ModuleName = "poollend"

// Amounts are fixed-point integers with nine implied decimals.
const (
	Coin                   uint64 = 1_000_000_000
	MinContribution               = 10 * Coin
	AirdropAmount                 = 500 * Coin
	AirdropCap                    = 2_500 * Coin
	GuarantorApprovalScore        = 500 * Coin
)

const (
	secondsPerDay      int64 = 86_400
	repaymentGraceDays int64 = 5
)

// Record type tags stored in the first byte (second for guarantors).
const (
	RecordTagBorrower     byte = 2
	RecordTagLenderLedger byte = 3
	RecordTagGuarantor    byte = 4
	RecordTagLoan         byte = 5
)

// Lender ledger geometry.
const (
	LenderCapacity       = 50_000
	LedgerShardCount     = 1
	LenderSlotSize       = 65
	ledgerHeaderSize     = 2
	LenderLedgerSize     = ledgerHeaderSize + LenderCapacity*LenderSlotSize
	slotOwnerOffset      = 1
	slotTotalOffset      = 33
	slotPrincipalOffset  = 49
	slotWithdrawOffset   = 57
	ledgerShardOffset    = 1
	ledgerSlotsOffset    = ledgerHeaderSize
	u128Size             = 16
	maxInstallmentCount  = 255
	minInstallmentCount  = 1
)

// Loan record geometry.
const (
	LoanHeaderSize       = 128
	ContributionSize     = 45
	ContributionCapacity = 200
	RepaymentSize        = 16
	RepaymentCapacity    = 256
	contributionsOffset  = LoanHeaderSize
	repaymentsOffset     = contributionsOffset + ContributionCapacity*ContributionSize
	LoanRecordSize       = repaymentsOffset + RepaymentCapacity*RepaymentSize
)

// Party record sizes.
const (
	BorrowerRecordSize  = 34
	GuarantorRecordSize = 42
	AirdropCounterSize  = 8
)

// Seeds used for derived vault signers and party record addresses.
const (
	VaultSeed          = "pooledger-vault"
	AirdropVaultSeed   = "pooledger-airdrop"
	BorrowerSeed       = "borrower"
	GuarantorSeed      = "guarantor"
	AirdropCounterSeed = "pooledger-airdrop-counter"
)
