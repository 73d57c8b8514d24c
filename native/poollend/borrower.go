package poollend

import "pooledger/crypto"

// BorrowerRecordAddress is where the borrower record of party lives under
// program.
func BorrowerRecordAddress(party, program crypto.Key) crypto.Key {
	return crypto.DeriveAddress(party, BorrowerSeed, program)
}

// GuarantorRecordAddress is where the guarantor record of party lives.
func GuarantorRecordAddress(party, program crypto.Key) crypto.Key {
	return crypto.DeriveAddress(party, GuarantorSeed, program)
}

// AirdropCounterAddress is where the airdrop counter of party lives.
func AirdropCounterAddress(party, program crypto.Key) crypto.Key {
	return crypto.DeriveAddress(party, AirdropCounterSeed, program)
}

// NewBorrowerRecord returns a freshly initialised borrower record.
func NewBorrowerRecord() BorrowerRecord {
	return BorrowerRecord{Tag: RecordTagBorrower}
}

// Verify checks the borrower type tag.
func (r BorrowerRecord) Verify() error {
	if r.Tag != RecordTagBorrower {
		return ErrRecordTypeMismatch
	}
	return nil
}

// Open marks loan as the borrower's single active loan.
func (r *BorrowerRecord) Open(loan crypto.Key) error {
	if r.HasActiveLoan {
		return ErrBorrowerHasActiveLoan
	}
	r.HasActiveLoan = true
	r.ActiveLoan = loan
	return nil
}

// Release clears the active loan if it is loan.
func (r *BorrowerRecord) Release(loan crypto.Key) bool {
	if !r.HasActiveLoan || r.ActiveLoan != loan {
		return false
	}
	r.HasActiveLoan = false
	r.ActiveLoan = crypto.Key{}
	return true
}

// NewGuarantorRecord seeds the approval score with the fixed constant.
func NewGuarantorRecord(owner crypto.Key) GuarantorRecord {
	return GuarantorRecord{
		Initialized:   true,
		Tag:           RecordTagGuarantor,
		Owner:         owner,
		ApprovalScore: GuarantorApprovalScore,
	}
}
