package poollend

import (
	"github.com/holiman/uint256"

	"pooledger/crypto"
)

// LenderLedger is a dense, fixed-capacity array of lender slots backed by a
// single record buffer. lender_id is the sole addressing key.
type LenderLedger struct {
	data []byte
}

// OpenLedger wraps a ledger record buffer. The buffer is mutated in place by
// PutSlot and the credit/debit helpers.
func OpenLedger(data []byte) (*LenderLedger, error) {
	if len(data) < LenderLedgerSize {
		return nil, ErrTruncatedRecord
	}
	return &LenderLedger{data: data}, nil
}

// Header returns the ledger type tag and shard count.
func (l *LenderLedger) Header() LedgerHeader {
	h, _ := DecodeLedgerHeader(l.data)
	return h
}

// Initialize stamps the ledger header.
func (l *LenderLedger) Initialize() error {
	return EncodeLedgerHeader(l.data, LedgerHeader{Tag: RecordTagLenderLedger, ShardCount: LedgerShardCount})
}

// Verify checks the type tag and shard count.
func (l *LenderLedger) Verify() error {
	h := l.Header()
	if h.Tag != RecordTagLenderLedger {
		return ErrRecordTypeMismatch
	}
	if h.ShardCount != LedgerShardCount {
		return ErrShardMismatch
	}
	return nil
}

func (l *LenderLedger) slotBytes(id uint32) ([]byte, error) {
	if id >= LenderCapacity {
		return nil, ErrCapacityExceeded
	}
	off := ledgerSlotsOffset + int(id)*LenderSlotSize
	return l.data[off : off+LenderSlotSize], nil
}

// Slot decodes the slot for id.
func (l *LenderLedger) Slot(id uint32) (LenderSlot, error) {
	b, err := l.slotBytes(id)
	if err != nil {
		return LenderSlot{}, err
	}
	return DecodeLenderSlot(b)
}

// PutSlot re-encodes the whole slot for id.
func (l *LenderLedger) PutSlot(id uint32, slot LenderSlot) error {
	b, err := l.slotBytes(id)
	if err != nil {
		return err
	}
	var buf [LenderSlotSize]byte
	if err := EncodeLenderSlot(buf[:], slot); err != nil {
		return err
	}
	copy(b, buf[:])
	return nil
}

// BindOrVerify activates an unused slot for owner, or confirms an active
// slot already belongs to owner. The owner never changes once bound.
func (l *LenderLedger) BindOrVerify(id uint32, owner crypto.Key) error {
	slot, err := l.Slot(id)
	if err != nil {
		return err
	}
	if slot.Active {
		if slot.Owner != owner {
			return ErrOwnerMismatch
		}
		return nil
	}
	slot.Active = true
	slot.Owner = owner
	return l.PutSlot(id, slot)
}

// VerifyOwner confirms id is active and bound to owner.
func (l *LenderLedger) VerifyOwner(id uint32, owner crypto.Key) (LenderSlot, error) {
	slot, err := l.Slot(id)
	if err != nil {
		return LenderSlot{}, err
	}
	if !slot.Active || slot.Owner != owner {
		return LenderSlot{}, ErrOwnerMismatch
	}
	return slot, nil
}

// CreditContribution adds amount to the lifetime lending total and the
// outstanding principal.
func (l *LenderLedger) CreditContribution(id uint32, amount uint64) error {
	slot, err := l.Slot(id)
	if err != nil {
		return err
	}
	total, overflow := new(uint256.Int).AddOverflow(&slot.TotalLending, uint256.NewInt(amount))
	if overflow || total.BitLen() > 128 {
		return ErrArithmeticOverflow
	}
	principal, ok := addUint64(slot.Principal, amount)
	if !ok {
		return ErrArithmeticOverflow
	}
	slot.TotalLending = *total
	slot.Principal = principal
	return l.PutSlot(id, slot)
}

// CreditEMIShare adds a repayment share to the withdrawable balance.
func (l *LenderLedger) CreditEMIShare(id uint32, amount uint64) error {
	slot, err := l.Slot(id)
	if err != nil {
		return err
	}
	balance, ok := addUint64(slot.Withdrawable, amount)
	if !ok {
		return ErrArithmeticOverflow
	}
	slot.Withdrawable = balance
	return l.PutSlot(id, slot)
}

// DebitWithdrawal zeroes the withdrawable balance and returns it. Outstanding
// principal is reduced by the same amount and stops at zero, since equal
// installment shares can exceed a small lender's principal.
func (l *LenderLedger) DebitWithdrawal(id uint32) (uint64, error) {
	slot, err := l.Slot(id)
	if err != nil {
		return 0, err
	}
	amount := slot.Withdrawable
	slot.Principal -= min(amount, slot.Principal)
	slot.Withdrawable = 0
	if err := l.PutSlot(id, slot); err != nil {
		return 0, err
	}
	return amount, nil
}

// Bytes returns the backing buffer.
func (l *LenderLedger) Bytes() []byte { return l.data }

func addUint64(a, b uint64) (uint64, bool) {
	sum := a + b
	return sum, sum >= a
}
