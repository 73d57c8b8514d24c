package state

import (
	"errors"
	"sort"

	"pooledger/crypto"
	"pooledger/storage"
)

// Overlay stages record writes on top of a Reader. Nothing reaches the
// database until Commit; discarding the overlay discards every staged write.
type Overlay struct {
	base   Reader
	staged map[crypto.Key]*Record
}

// NewOverlay opens a staging layer over base.
func NewOverlay(base Reader) *Overlay {
	return &Overlay{base: base, staged: make(map[crypto.Key]*Record)}
}

// Record returns a copy of the staged record if present, otherwise the base
// record.
func (o *Overlay) Record(addr crypto.Key) (*Record, error) {
	if rec, ok := o.staged[addr]; ok {
		return rec.Clone(), nil
	}
	rec, err := o.base.Record(addr)
	if err != nil {
		return nil, err
	}
	return rec.Clone(), nil
}

// Exists reports whether addr resolves to a record in the overlay or base.
func (o *Overlay) Exists(addr crypto.Key) (bool, error) {
	if _, ok := o.staged[addr]; ok {
		return true, nil
	}
	_, err := o.base.Record(addr)
	if errors.Is(err, ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// PutRecord stages a full replacement of the record at addr.
func (o *Overlay) PutRecord(addr crypto.Key, rec *Record) error {
	if rec == nil {
		return errors.New("state: nil record")
	}
	o.staged[addr] = rec.Clone()
	return nil
}

// Dirty lists staged addresses in ascending order.
func (o *Overlay) Dirty() []crypto.Key {
	out := make([]crypto.Key, 0, len(o.staged))
	for addr := range o.staged {
		out = append(out, addr)
	}
	sort.Slice(out, func(i, j int) bool {
		for k := 0; k < crypto.KeyLength; k++ {
			if out[i][k] != out[j][k] {
				return out[i][k] < out[j][k]
			}
		}
		return false
	})
	return out
}

// Commit writes every staged record into batch. The caller owns Write.
func (o *Overlay) Commit(batch storage.Batch) error {
	for _, addr := range o.Dirty() {
		encoded, err := EncodeRecord(o.staged[addr])
		if err != nil {
			return err
		}
		batch.Put(recordKey(addr), encoded)
	}
	return nil
}

// Discard drops every staged write.
func (o *Overlay) Discard() {
	o.staged = make(map[crypto.Key]*Record)
}
