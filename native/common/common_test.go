package common

import (
	"errors"
	"testing"

	"pooledger/crypto"
)

func TestGuardHonoursPauseSet(t *testing.T) {
	pauses := NewPauseSet([]string{" PoolLend ", ""})
	if err := Guard(pauses, "poollend"); !errors.Is(err, ErrModulePaused) {
		t.Fatalf("expected paused, got %v", err)
	}
	if err := Guard(pauses, "token"); err != nil {
		t.Fatalf("token should not be paused: %v", err)
	}
	if err := Guard(nil, "poollend"); err != nil {
		t.Fatalf("nil view must not pause: %v", err)
	}
}

func TestCheckQuotaRequestLimit(t *testing.T) {
	q := Quota{MaxRequestsPerEpoch: 10, EpochSeconds: 60}
	prev := QuotaNow{EpochID: 1}
	next, err := CheckQuota(q, 1, prev, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.ReqCount != 10 {
		t.Fatalf("unexpected request count: %d", next.ReqCount)
	}
	if _, err := CheckQuota(q, 1, next, 1); !errors.Is(err, ErrQuotaRequestsExceeded) {
		t.Fatalf("expected quota exceeded, got %v", err)
	}
	rolled, err := CheckQuota(q, 2, next, 1)
	if err != nil {
		t.Fatalf("epoch rollover should reset counters: %v", err)
	}
	if rolled.ReqCount != 1 || rolled.EpochID != 2 {
		t.Fatalf("unexpected rollover state: %+v", rolled)
	}
}

func TestQuotaTrackerPerSigner(t *testing.T) {
	tracker := NewQuotaTracker(Quota{MaxRequestsPerEpoch: 2, EpochSeconds: 60})
	alice := crypto.NamedKey("alice")
	bob := crypto.NamedKey("bob")
	for i := 0; i < 2; i++ {
		if err := tracker.Consume(alice, 100); err != nil {
			t.Fatalf("consume %d: %v", i, err)
		}
	}
	if err := tracker.Consume(alice, 110); !errors.Is(err, ErrQuotaRequestsExceeded) {
		t.Fatalf("expected quota exceeded, got %v", err)
	}
	if err := tracker.Consume(bob, 110); err != nil {
		t.Fatalf("bob has his own counter: %v", err)
	}
	if err := tracker.Consume(alice, 180); err != nil {
		t.Fatalf("next epoch should allow alice: %v", err)
	}
	var disabled *QuotaTracker
	if err := disabled.Consume(alice, 0); err != nil {
		t.Fatalf("nil tracker must be permissive: %v", err)
	}
}

func TestAccountCursorAndSigners(t *testing.T) {
	a, b := crypto.NamedKey("a"), crypto.NamedKey("b")
	inv := Invocation{Signers: []crypto.Key{a}, Accounts: []crypto.Key{a, b}}
	if !inv.IsSigner(a) || inv.IsSigner(b) {
		t.Fatalf("unexpected signer membership")
	}
	cursor := inv.Cursor()
	if got, _ := cursor.Next(); got != a {
		t.Fatalf("expected first account")
	}
	if got, _ := cursor.Next(); got != b {
		t.Fatalf("expected second account")
	}
	if _, err := cursor.Next(); !errors.Is(err, ErrNotEnoughAccounts) {
		t.Fatalf("expected ErrNotEnoughAccounts, got %v", err)
	}
	auth := SignerAuthority{a}
	if !auth.Authorizes(a, b) || auth.Authorizes(b, b) || auth.Authorizes(crypto.Key{}, b) {
		t.Fatalf("unexpected signer authority decisions")
	}
}
