package poollend

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"

	"pooledger/crypto"
)

func TestLenderSlotRoundTrip(t *testing.T) {
	maxU128 := new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), 128), uint256.NewInt(1))
	cases := []LenderSlot{
		{},
		{Active: true, Owner: crypto.NamedKey("lender"), TotalLending: *uint256.NewInt(42), Principal: 7, Withdrawable: 3},
		{Active: true, Owner: crypto.NamedKey("max"), TotalLending: *maxU128, Principal: ^uint64(0), Withdrawable: ^uint64(0)},
	}
	for i, want := range cases {
		buf := make([]byte, LenderSlotSize)
		if err := EncodeLenderSlot(buf, want); err != nil {
			t.Fatalf("case %d encode: %v", i, err)
		}
		got, err := DecodeLenderSlot(buf)
		if err != nil {
			t.Fatalf("case %d decode: %v", i, err)
		}
		if got != want {
			t.Fatalf("case %d round trip mismatch: %+v != %+v", i, got, want)
		}
	}
}

func TestLenderSlotRejectsWideTotal(t *testing.T) {
	slot := LenderSlot{TotalLending: *new(uint256.Int).Lsh(uint256.NewInt(1), 128)}
	if err := EncodeLenderSlot(make([]byte, LenderSlotSize), slot); !errors.Is(err, ErrValueOutOfRange) {
		t.Fatalf("expected ErrValueOutOfRange, got %v", err)
	}
}

func TestLoanHeaderRoundTrip(t *testing.T) {
	want := LoanHeader{
		Tag:                    RecordTagLoan,
		Status:                 StatusRepaying,
		Borrower:               crypto.NamedKey("b"),
		Guarantor:              crypto.NamedKey("g"),
		ApprovalTimestamp:      -5,
		FundraisingDeadline:    1_700_000_000,
		FirstRepaymentDeadline: 1_800_000_000,
		Target:                 1_000 * Coin,
		Raised:                 12,
		Repaid:                 ^uint64(0),
		InstallmentCount:       255,
		NextContribution:       ContributionCapacity,
		NextRepayment:          ^uint16(0),
	}
	buf := make([]byte, LoanHeaderSize)
	for i := range buf {
		buf[i] = 0xff
	}
	if err := EncodeLoanHeader(buf, want); err != nil {
		t.Fatalf("encode: %v", err)
	}
	for i := hdrEnd; i < LoanHeaderSize; i++ {
		if buf[i] != 0 {
			t.Fatalf("padding byte %d not zeroed", i)
		}
	}
	got, err := DecodeLoanHeader(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != want {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestLogEntryRoundTrip(t *testing.T) {
	c := Contribution{Lender: crypto.NamedKey("l"), Shard: 1, LenderID: 49_999, Amount: 10 * Coin}
	buf := make([]byte, ContributionSize)
	if err := EncodeContribution(buf, c); err != nil {
		t.Fatalf("encode contribution: %v", err)
	}
	if got, _ := DecodeContribution(buf); got != c {
		t.Fatalf("contribution mismatch: %+v", got)
	}

	r := Repayment{Timestamp: 1_700_000_123, Amount: 55}
	rbuf := make([]byte, RepaymentSize)
	if err := EncodeRepayment(rbuf, r); err != nil {
		t.Fatalf("encode repayment: %v", err)
	}
	if got, _ := DecodeRepayment(rbuf); got != r {
		t.Fatalf("repayment mismatch: %+v", got)
	}
}

func TestPartyRecordRoundTrip(t *testing.T) {
	b := BorrowerRecord{Tag: RecordTagBorrower, HasActiveLoan: true, ActiveLoan: crypto.NamedKey("loan")}
	bbuf := make([]byte, BorrowerRecordSize)
	if err := EncodeBorrowerRecord(bbuf, b); err != nil {
		t.Fatalf("encode borrower: %v", err)
	}
	if got, _ := DecodeBorrowerRecord(bbuf); got != b {
		t.Fatalf("borrower mismatch: %+v", got)
	}

	g := NewGuarantorRecord(crypto.NamedKey("g"))
	gbuf := make([]byte, GuarantorRecordSize)
	if err := EncodeGuarantorRecord(gbuf, g); err != nil {
		t.Fatalf("encode guarantor: %v", err)
	}
	if got, _ := DecodeGuarantorRecord(gbuf); got != g {
		t.Fatalf("guarantor mismatch: %+v", got)
	}
	if gbuf[1] != RecordTagGuarantor {
		t.Fatalf("guarantor tag must be the second byte")
	}

	abuf := make([]byte, AirdropCounterSize)
	if err := EncodeAirdropCounter(abuf, AirdropCap); err != nil {
		t.Fatalf("encode counter: %v", err)
	}
	if got, _ := DecodeAirdropCounter(abuf); got != AirdropCap {
		t.Fatalf("counter mismatch: %d", got)
	}
}

func TestTruncatedRecords(t *testing.T) {
	short := make([]byte, 1)
	checks := []error{
		func() error { _, err := DecodeLenderSlot(short); return err }(),
		func() error { _, err := DecodeLoanHeader(short); return err }(),
		func() error { _, err := DecodeContribution(short); return err }(),
		func() error { _, err := DecodeRepayment(short); return err }(),
		func() error { _, err := DecodeBorrowerRecord(short); return err }(),
		func() error { _, err := DecodeGuarantorRecord(short); return err }(),
		func() error { _, err := DecodeAirdropCounter(short); return err }(),
		func() error { _, err := DecodeLedgerHeader(short); return err }(),
		func() error { _, err := OpenLedger(short); return err }(),
		func() error { _, err := OpenLoan(short); return err }(),
	}
	for i, err := range checks {
		if !errors.Is(err, ErrTruncatedRecord) {
			t.Fatalf("check %d: expected ErrTruncatedRecord, got %v", i, err)
		}
		if KindOf(err) != KindStorageLayoutError {
			t.Fatalf("check %d: unexpected kind %s", i, KindOf(err))
		}
	}
}

func TestRecordSizes(t *testing.T) {
	if LenderLedgerSize != 3_250_002 {
		t.Fatalf("unexpected ledger size %d", LenderLedgerSize)
	}
	if LoanRecordSize != 13_224 {
		t.Fatalf("unexpected loan size %d", LoanRecordSize)
	}
	if hdrEnd > LoanHeaderSize {
		t.Fatalf("header fields overflow the header block")
	}
}
