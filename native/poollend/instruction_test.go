package poollend

import (
	"errors"
	"testing"
)

func TestInstructionRoundTrip(t *testing.T) {
	cases := []Instruction{
		{Tag: TagContribute, Amount: 10 * Coin, LenderID: 49_999},
		{Tag: TagWithdrawLenderBalance, LenderID: 12},
		{Tag: TagWithdrawCollected},
		{Tag: TagPayInstallment, Amount: 1},
		{Tag: TagInitializeLoan, FirstRepaymentDays: 30, InstallmentCount: 12, FundraisingDays: 7, TargetAmount: 1_000 * Coin},
		{Tag: TagReturnFundsToLenders, Count: 3},
		{Tag: TagCloseLoanRecord},
	}
	for _, want := range cases {
		got, err := DecodeInstruction(want.Encode())
		if err != nil {
			t.Fatalf("%s: %v", want.Tag, err)
		}
		if got != want {
			t.Fatalf("%s: round trip mismatch %+v != %+v", want.Tag, got, want)
		}
	}
}

func TestInstructionWireLayout(t *testing.T) {
	data := []byte{8, 0x1e, 0x00, 0x0c, 0x00, 0x07, 0x00, 0x01, 0, 0, 0, 0, 0, 0, 0}
	ins, err := DecodeInstruction(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ins.FirstRepaymentDays != 30 || ins.InstallmentCount != 12 || ins.FundraisingDays != 7 || ins.TargetAmount != 1 {
		t.Fatalf("unexpected decode: %+v", ins)
	}
}

func TestInstructionRejections(t *testing.T) {
	if _, err := DecodeInstruction([]byte{13}); !errors.Is(err, ErrInvalidInstruction) || KindOf(err) != KindInvalidInstruction {
		t.Fatalf("expected InvalidInstruction, got %v", err)
	}
	if _, err := DecodeInstruction(nil); !errors.Is(err, ErrTruncatedPayload) {
		t.Fatalf("expected ErrTruncatedPayload for empty data, got %v", err)
	}
	if _, err := DecodeInstruction([]byte{byte(TagContribute), 1, 2, 3}); !errors.Is(err, ErrTruncatedPayload) {
		t.Fatalf("expected ErrTruncatedPayload, got %v", err)
	}
	if tag, ok := ParseTag("PayInstallment"); !ok || tag != TagPayInstallment {
		t.Fatalf("ParseTag failed: %v %v", tag, ok)
	}
	if _, ok := ParseTag("Nope"); ok {
		t.Fatalf("unexpected tag match")
	}
}
