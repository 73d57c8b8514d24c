package events

import (
	"testing"

	"pooledger/crypto"
)

func TestRecorderDrain(t *testing.T) {
	var rec Recorder
	rec.Emit(TokenMint{Account: crypto.NamedKey("a"), Amount: 5}.Event())
	rec.Emit(LoanFunded{Loan: crypto.NamedKey("loan"), Raised: 10, Target: 10}.Event())

	snapshot := rec.Events()
	if len(snapshot) != 2 {
		t.Fatalf("expected 2 events, got %d", len(snapshot))
	}
	snapshot[0].Attributes["amount"] = "tampered"
	if rec.Events()[0].Attributes["amount"] != "5" {
		t.Fatalf("Events must return copies")
	}

	drained := rec.Drain()
	if len(drained) != 2 || drained[1].Type != TypeLoanFunded {
		t.Fatalf("unexpected drain result: %+v", drained)
	}
	if len(rec.Events()) != 0 {
		t.Fatalf("drain must clear the buffer")
	}
}

func TestFanoutSkipsNil(t *testing.T) {
	var a, b Recorder
	fan := Fanout{&a, nil, &b}
	fan.Emit(Event{Type: "x"})
	if len(a.Events()) != 1 || len(b.Events()) != 1 {
		t.Fatalf("fanout did not deliver to every emitter")
	}
}

func TestPartyRegisteredType(t *testing.T) {
	evt := PartyRegistered{Guarantor: true, Party: crypto.NamedKey("g")}.Event()
	if evt.Type != TypeGuarantorRegistered {
		t.Fatalf("unexpected type %s", evt.Type)
	}
	if (PartyRegistered{}).EventType() != TypeBorrowerRegistered {
		t.Fatalf("borrower registration type mismatch")
	}
}
