package state

import (
	"errors"
	"fmt"

	"pooledger/crypto"
	"pooledger/storage"
)

// Reader exposes read access to committed or staged records.
type Reader interface {
	Record(addr crypto.Key) (*Record, error)
}

// Manager reads and writes records directly against the database. Mutations
// during transaction execution go through an Overlay instead.
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// Database returns the backing store.
func (m *Manager) Database() storage.Database { return m.db }

// Record loads the record stored at addr. A missing record yields
// ErrRecordNotFound.
func (m *Manager) Record(addr crypto.Key) (*Record, error) {
	raw, err := m.db.Get(recordKey(addr))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return DecodeRecord(raw)
}

// PutRecord writes rec directly to the database. Intended for genesis
// seeding and tests.
func (m *Manager) PutRecord(addr crypto.Key, rec *Record) error {
	encoded, err := EncodeRecord(rec)
	if err != nil {
		return err
	}
	return m.db.Put(recordKey(addr), encoded)
}

// Records iterates every stored record in address order.
func (m *Manager) Records(fn func(addr crypto.Key, rec *Record) bool) error {
	var decodeErr error
	err := m.db.Iterate(recordPrefix, func(key, value []byte) bool {
		addr, err := crypto.KeyFromBytes(key[len(recordPrefix):])
		if err != nil {
			decodeErr = err
			return false
		}
		rec, err := DecodeRecord(value)
		if err != nil {
			decodeErr = fmt.Errorf("state: record %s: %w", addr, err)
			return false
		}
		return fn(addr, rec)
	})
	if err != nil {
		return err
	}
	return decodeErr
}

// TransactionSeen reports whether a transaction hash has already been
// committed.
func (m *Manager) TransactionSeen(hash [32]byte) (bool, error) {
	return m.db.Has(seenTxKey(hash))
}

// MarkTransactionSeen stages the replay marker for hash into batch.
func MarkTransactionSeen(batch storage.Batch, hash [32]byte, payload []byte) {
	batch.Put(seenTxKey(hash), payload)
}

// TransactionMarker returns the payload stored alongside the replay marker
// for hash, or ErrRecordNotFound when the hash was never committed.
func (m *Manager) TransactionMarker(hash [32]byte) ([]byte, error) {
	raw, err := m.db.Get(seenTxKey(hash))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return raw, nil
}
