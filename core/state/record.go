package state

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"pooledger/crypto"
)

var (
	ErrRecordNotFound = errors.New("state: record not found")
	ErrRecordExists   = errors.New("state: record already exists")
)

// Record is the envelope stored at every address. Data is the raw byte
// buffer interpreted by the owning program; Deposit is the amount reserved
// against reclamation when the record was allocated.
type Record struct {
	Owner   crypto.Key
	Deposit uint64
	Data    []byte
}

// Clone returns a deep copy so callers can mutate Data without touching the
// stored value.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	return &Record{
		Owner:   r.Owner,
		Deposit: r.Deposit,
		Data:    append([]byte(nil), r.Data...),
	}
}

type storedRecord struct {
	Owner   []byte
	Deposit uint64
	Data    []byte
}

// EncodeRecord serialises the envelope with RLP.
func EncodeRecord(rec *Record) ([]byte, error) {
	if rec == nil {
		return nil, errors.New("state: nil record")
	}
	return rlp.EncodeToBytes(storedRecord{Owner: rec.Owner.Bytes(), Deposit: rec.Deposit, Data: rec.Data})
}

// DecodeRecord parses an RLP encoded envelope.
func DecodeRecord(raw []byte) (*Record, error) {
	var stored storedRecord
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, fmt.Errorf("state: decode record: %w", err)
	}
	owner, err := crypto.KeyFromBytes(stored.Owner)
	if err != nil {
		return nil, fmt.Errorf("state: decode record owner: %w", err)
	}
	return &Record{Owner: owner, Deposit: stored.Deposit, Data: stored.Data}, nil
}
