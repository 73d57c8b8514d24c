package poollend

import (
	"errors"
	"fmt"

	"pooledger/core/events"
	"pooledger/core/state"
	nativecommon "pooledger/native/common"
)

// contribute: lender*, lender token, vault, loan, ledger.
func (e *Engine) contribute(c *call, amount uint64, lenderID uint32) error {
	lender, err := c.signer()
	if err != nil {
		return err
	}
	accts, err := c.accounts(4)
	if err != nil {
		return err
	}
	lenderToken, vault, loanAddr, ledgerAddr := accts[0], accts[1], accts[2], accts[3]
	if err := e.requireVault(vault, e.vault); err != nil {
		return err
	}
	loanRec, err := e.loadOwned(loanAddr, LoanRecordSize)
	if err != nil {
		return err
	}
	ledgerRec, err := e.loadOwned(ledgerAddr, LenderLedgerSize)
	if err != nil {
		return err
	}

	delta, err := e.transferMeasured(lenderToken, vault, nativecommon.SignerAuthority{lender}, amount, vault, true)
	if err != nil {
		return err
	}
	if delta < MinContribution {
		return fmt.Errorf("%w: %d < %d", ErrAmountTooSmall, delta, MinContribution)
	}

	loan, err := OpenLoan(loanRec.Data)
	if err != nil {
		return err
	}
	if err := loan.Verify(); err != nil {
		return err
	}
	ledger, err := OpenLedger(ledgerRec.Data)
	if err != nil {
		return err
	}
	if err := ledger.Verify(); err != nil {
		return err
	}
	if err := loan.CheckContribution(e.now()); err != nil {
		return err
	}
	if err := ledger.BindOrVerify(lenderID, lender); err != nil {
		return err
	}
	if err := ledger.CreditContribution(lenderID, delta); err != nil {
		return err
	}
	funded, err := loan.RecordContribution(Contribution{
		Lender:   lender,
		Shard:    LedgerShardCount,
		LenderID: lenderID,
		Amount:   delta,
	})
	if err != nil {
		return err
	}

	loanData, err := loan.Bytes()
	if err != nil {
		return err
	}
	if err := e.put(ledgerAddr, ledgerRec, ledger.Bytes()); err != nil {
		return err
	}
	if err := e.put(loanAddr, loanRec, loanData); err != nil {
		return err
	}
	e.emit(events.LoanContributed{
		Loan:     loanAddr,
		Lender:   lender,
		LenderID: lenderID,
		Amount:   delta,
		Raised:   loan.Header.Raised,
		Index:    loan.Header.NextContribution - 1,
	})
	if funded {
		e.emit(events.LoanFunded{Loan: loanAddr, Raised: loan.Header.Raised, Target: loan.Header.Target})
	}
	return nil
}

// withdrawLenderBalance: lender*, lender token, vault, ledger.
func (e *Engine) withdrawLenderBalance(c *call, lenderID uint32) error {
	lender, err := c.signer()
	if err != nil {
		return err
	}
	accts, err := c.accounts(3)
	if err != nil {
		return err
	}
	lenderToken, vault, ledgerAddr := accts[0], accts[1], accts[2]
	if err := e.requireVault(vault, e.vault); err != nil {
		return err
	}
	ledgerRec, err := e.loadOwned(ledgerAddr, LenderLedgerSize)
	if err != nil {
		return err
	}
	ledger, err := OpenLedger(ledgerRec.Data)
	if err != nil {
		return err
	}
	if err := ledger.Verify(); err != nil {
		return err
	}
	slot, err := ledger.VerifyOwner(lenderID, lender)
	if err != nil {
		return err
	}
	expected := slot.Withdrawable
	if expected == 0 {
		return ErrNothingToWithdraw
	}

	delta, err := e.transferMeasured(vault, lenderToken, e.vault, expected, vault, false)
	if err != nil {
		return err
	}
	if delta != expected {
		return fmt.Errorf("%w: moved %d, recorded %d", ErrAmountMismatch, delta, expected)
	}
	if _, err := ledger.DebitWithdrawal(lenderID); err != nil {
		return err
	}
	if err := e.put(ledgerAddr, ledgerRec, ledger.Bytes()); err != nil {
		return err
	}
	e.emit(events.LenderWithdrawal{Lender: lender, LenderID: lenderID, Amount: delta})
	return nil
}

// withdrawCollected: borrower*, borrower token, vault, loan.
func (e *Engine) withdrawCollected(c *call) error {
	borrower, err := c.signer()
	if err != nil {
		return err
	}
	accts, err := c.accounts(3)
	if err != nil {
		return err
	}
	borrowerToken, vault, loanAddr := accts[0], accts[1], accts[2]
	if err := e.requireVault(vault, e.vault); err != nil {
		return err
	}
	loanRec, err := e.loadOwned(loanAddr, LoanRecordSize)
	if err != nil {
		return err
	}
	loan, err := OpenLoan(loanRec.Data)
	if err != nil {
		return err
	}
	if err := loan.Verify(); err != nil {
		return err
	}
	expected, err := loan.CheckCollect(borrower)
	if err != nil {
		return err
	}

	delta, err := e.transferMeasured(vault, borrowerToken, e.vault, expected, vault, false)
	if err != nil {
		return err
	}
	if delta != expected {
		return fmt.Errorf("%w: moved %d, expected %d", ErrAmountMismatch, delta, expected)
	}
	loan.MarkCollected()
	loanData, err := loan.Bytes()
	if err != nil {
		return err
	}
	if err := e.put(loanAddr, loanRec, loanData); err != nil {
		return err
	}
	e.emit(events.CollectedWithdrawn{Loan: loanAddr, Borrower: borrower, Amount: delta})
	return nil
}

// payInstallment: borrower*, borrower token, vault, borrower record, loan, ledger.
func (e *Engine) payInstallment(c *call, amount uint64) error {
	borrower, err := c.signer()
	if err != nil {
		return err
	}
	accts, err := c.accounts(5)
	if err != nil {
		return err
	}
	borrowerToken, vault, borrowerAddr, loanAddr, ledgerAddr := accts[0], accts[1], accts[2], accts[3], accts[4]
	if err := e.requireVault(vault, e.vault); err != nil {
		return err
	}
	if borrowerAddr != BorrowerRecordAddress(borrower, e.program) {
		return ErrRecordAddressMismatch
	}
	borrowerRec, err := e.loadOwned(borrowerAddr, BorrowerRecordSize)
	if err != nil {
		return err
	}
	loanRec, err := e.loadOwned(loanAddr, LoanRecordSize)
	if err != nil {
		return err
	}
	ledgerRec, err := e.loadOwned(ledgerAddr, LenderLedgerSize)
	if err != nil {
		return err
	}

	delta, err := e.transferMeasured(borrowerToken, vault, nativecommon.SignerAuthority{borrower}, amount, vault, true)
	if err != nil {
		return err
	}
	if delta != amount {
		return fmt.Errorf("%w: moved %d, requested %d", ErrAmountMismatch, delta, amount)
	}

	record, err := DecodeBorrowerRecord(borrowerRec.Data)
	if err != nil {
		return err
	}
	if err := record.Verify(); err != nil {
		return err
	}
	loan, err := OpenLoan(loanRec.Data)
	if err != nil {
		return err
	}
	if err := loan.Verify(); err != nil {
		return err
	}
	ledger, err := OpenLedger(ledgerRec.Data)
	if err != nil {
		return err
	}
	if err := ledger.Verify(); err != nil {
		return err
	}
	if err := loan.CheckInstallment(borrower, delta); err != nil {
		return err
	}

	now := e.now()
	repaid, err := loan.RecordRepayment(Repayment{Timestamp: now, Amount: delta})
	if err != nil {
		return err
	}
	dist, err := loan.Distribute(delta)
	if err != nil {
		return err
	}
	for _, contribution := range dist.Recipients {
		if contribution.Shard != ledger.Header().ShardCount {
			return ErrShardMismatch
		}
		if err := ledger.CreditEMIShare(contribution.LenderID, dist.Share); err != nil {
			return err
		}
	}

	loanData, err := loan.Bytes()
	if err != nil {
		return err
	}
	if err := e.put(loanAddr, loanRec, loanData); err != nil {
		return err
	}
	if err := e.put(ledgerAddr, ledgerRec, ledger.Bytes()); err != nil {
		return err
	}
	released := false
	if repaid && record.Release(loanAddr) {
		released = true
		if err := EncodeBorrowerRecord(borrowerRec.Data, record); err != nil {
			return err
		}
		if err := e.put(borrowerAddr, borrowerRec, borrowerRec.Data); err != nil {
			return err
		}
	}
	e.emit(events.InstallmentPaid{
		Loan:          loanAddr,
		Amount:        delta,
		Repaid:        loan.Header.Repaid,
		SharePerSlot:  dist.Share,
		Undistributed: dist.Undistributed,
		Timestamp:     now,
	})
	if released {
		e.emit(events.LoanRepaid{Loan: loanAddr, Borrower: borrower})
	}
	return nil
}

// initializeLoan: guarantor*, borrower, loan, borrower record.
func (e *Engine) initializeLoan(c *call, params LoanParams) error {
	guarantor, err := c.signer()
	if err != nil {
		return err
	}
	accts, err := c.accounts(3)
	if err != nil {
		return err
	}
	borrower, loanAddr, borrowerAddr := accts[0], accts[1], accts[2]
	params.Borrower = borrower
	params.Guarantor = guarantor

	loanRec, err := e.loadForInit(loanAddr, LoanRecordSize)
	if err != nil {
		return err
	}
	loan, err := OpenLoan(loanRec.Data)
	if err != nil {
		return err
	}
	if loan.Header.Tag != 0 {
		return ErrAlreadyInitialized
	}
	if borrowerAddr != BorrowerRecordAddress(borrower, e.program) {
		return ErrRecordAddressMismatch
	}
	borrowerRec, err := e.loadOwned(borrowerAddr, BorrowerRecordSize)
	if err != nil {
		return err
	}
	record, err := DecodeBorrowerRecord(borrowerRec.Data)
	if err != nil {
		return err
	}
	if err := record.Verify(); err != nil {
		return err
	}
	if err := record.Open(loanAddr); err != nil {
		return err
	}
	if err := loan.Initialize(params, e.now()); err != nil {
		return err
	}

	loanData, err := loan.Bytes()
	if err != nil {
		return err
	}
	if err := EncodeBorrowerRecord(borrowerRec.Data, record); err != nil {
		return err
	}
	if err := e.put(loanAddr, loanRec, loanData); err != nil {
		return err
	}
	if err := e.put(borrowerAddr, borrowerRec, borrowerRec.Data); err != nil {
		return err
	}
	h := loan.Header
	e.emit(events.LoanInitialized{
		Loan:                   loanAddr,
		Borrower:               borrower,
		Guarantor:              guarantor,
		Target:                 h.Target,
		Installments:           h.InstallmentCount,
		FundraisingDeadline:    h.FundraisingDeadline,
		FirstRepaymentDeadline: h.FirstRepaymentDeadline,
	})
	return nil
}

// initializeLedger: initializer*, ledger.
func (e *Engine) initializeLedger(c *call) error {
	if _, err := c.signer(); err != nil {
		return err
	}
	addr, err := c.next()
	if err != nil {
		return err
	}
	rec, err := e.loadForInit(addr, LenderLedgerSize)
	if err != nil {
		return err
	}
	ledger, err := OpenLedger(rec.Data)
	if err != nil {
		return err
	}
	if ledger.Header().Tag != 0 {
		return ErrAlreadyInitialized
	}
	if err := ledger.Initialize(); err != nil {
		return err
	}
	if err := e.put(addr, rec, ledger.Bytes()); err != nil {
		return err
	}
	e.emit(events.LedgerInitialized{Ledger: addr, Capacity: LenderCapacity})
	return nil
}

// initializeBorrower: borrower*, borrower record.
func (e *Engine) initializeBorrower(c *call) error {
	borrower, err := c.signer()
	if err != nil {
		return err
	}
	addr, err := c.next()
	if err != nil {
		return err
	}
	if addr != BorrowerRecordAddress(borrower, e.program) {
		return ErrRecordAddressMismatch
	}
	rec, err := e.loadForInit(addr, BorrowerRecordSize)
	if err != nil {
		return err
	}
	existing, err := DecodeBorrowerRecord(rec.Data)
	if err != nil {
		return err
	}
	if existing.Tag != 0 {
		return ErrAlreadyInitialized
	}
	if err := EncodeBorrowerRecord(rec.Data, NewBorrowerRecord()); err != nil {
		return err
	}
	if err := e.put(addr, rec, rec.Data); err != nil {
		return err
	}
	e.emit(events.PartyRegistered{Party: borrower, Record: addr})
	return nil
}

// initializeGuarantor: guarantor*, guarantor record.
func (e *Engine) initializeGuarantor(c *call) error {
	guarantor, err := c.signer()
	if err != nil {
		return err
	}
	addr, err := c.next()
	if err != nil {
		return err
	}
	if addr != GuarantorRecordAddress(guarantor, e.program) {
		return ErrRecordAddressMismatch
	}
	rec, err := e.loadForInit(addr, GuarantorRecordSize)
	if err != nil {
		return err
	}
	existing, err := DecodeGuarantorRecord(rec.Data)
	if err != nil {
		return err
	}
	if existing.Initialized || existing.Tag != 0 {
		return ErrAlreadyInitialized
	}
	if err := EncodeGuarantorRecord(rec.Data, NewGuarantorRecord(guarantor)); err != nil {
		return err
	}
	if err := e.put(addr, rec, rec.Data); err != nil {
		return err
	}
	e.emit(events.PartyRegistered{Guarantor: true, Party: guarantor, Record: addr})
	return nil
}

// airdrop: user*, airdrop counter, user token, airdrop vault.
func (e *Engine) airdrop(c *call) error {
	user, err := c.signer()
	if err != nil {
		return err
	}
	accts, err := c.accounts(3)
	if err != nil {
		return err
	}
	counterAddr, userToken, vault := accts[0], accts[1], accts[2]
	if err := e.requireVault(vault, e.airdropVault); err != nil {
		return err
	}
	if counterAddr != AirdropCounterAddress(user, e.program) {
		return ErrRecordAddressMismatch
	}
	rec, err := e.loadForInit(counterAddr, AirdropCounterSize)
	if err != nil {
		return err
	}
	total, err := DecodeAirdropCounter(rec.Data)
	if err != nil {
		return err
	}
	if total >= AirdropCap || AirdropCap-total < AirdropAmount {
		return ErrAirdropCapReached
	}

	delta, err := e.transferMeasured(vault, userToken, e.airdropVault, AirdropAmount, vault, false)
	if err != nil {
		return err
	}
	if delta != AirdropAmount {
		return fmt.Errorf("%w: moved %d, expected %d", ErrAmountMismatch, delta, AirdropAmount)
	}
	total += AirdropAmount
	if err := EncodeAirdropCounter(rec.Data, total); err != nil {
		return err
	}
	if err := e.put(counterAddr, rec, rec.Data); err != nil {
		return err
	}
	e.emit(events.AirdropClaimed{User: user, Total: total})
	return nil
}

// transferVaultOwnership: initializer*, vault. Custody moves from the
// signing initializer to the derived vault signer.
func (e *Engine) transferVaultOwnership(c *call, airdrop bool) error {
	initializer, err := c.signer()
	if err != nil {
		return err
	}
	vault, err := c.next()
	if err != nil {
		return err
	}
	signer := e.vault
	if airdrop {
		signer = e.airdropVault
	}
	rec, err := e.state.Record(vault)
	if err != nil {
		if errors.Is(err, state.ErrRecordNotFound) {
			return fmt.Errorf("%w: %s", ErrRecordMissing, vault)
		}
		return err
	}
	if !e.rent.IsExempt(rec.Deposit, len(rec.Data)) {
		return ErrNotRentExempt
	}
	current, err := e.tokens.Custodian(vault)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}
	if current == signer.Key() {
		return ErrAlreadyInitialized
	}
	if err := e.tokens.SetCustodian(vault, nativecommon.SignerAuthority{initializer}, e.program, signer.Key()); err != nil {
		return fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}
	e.emit(events.VaultCustodyAssigned{Vault: vault, Custodian: signer.Key(), Airdrop: airdrop})
	return nil
}
