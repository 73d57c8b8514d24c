package state

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"pooledger/crypto"
	"pooledger/storage"
)

func TestRecordEnvelopeRoundTrip(t *testing.T) {
	rec := &Record{Owner: crypto.NamedKey("program"), Deposit: 42, Data: []byte{1, 2, 3}}
	encoded, err := EncodeRecord(rec)
	require.NoError(t, err)
	decoded, err := DecodeRecord(encoded)
	require.NoError(t, err)
	require.Equal(t, rec, decoded)
}

func TestOverlayStagesUntilCommit(t *testing.T) {
	db := storage.NewMemDB()
	manager := NewManager(db)
	addr := crypto.NamedKey("record")
	require.NoError(t, manager.PutRecord(addr, &Record{Owner: crypto.NamedKey("p"), Data: []byte{1}}))

	overlay := NewOverlay(manager)
	rec, err := overlay.Record(addr)
	require.NoError(t, err)
	rec.Data[0] = 9
	require.NoError(t, overlay.PutRecord(addr, rec))

	fresh := crypto.NamedKey("fresh")
	require.NoError(t, overlay.PutRecord(fresh, &Record{Owner: crypto.NamedKey("p"), Data: []byte{7}}))
	exists, err := overlay.Exists(fresh)
	require.NoError(t, err)
	require.True(t, exists)

	committed, err := manager.Record(addr)
	require.NoError(t, err)
	require.Equal(t, byte(1), committed.Data[0], "overlay must not leak before commit")
	_, err = manager.Record(fresh)
	require.True(t, errors.Is(err, ErrRecordNotFound))

	batch := db.NewBatch()
	require.NoError(t, overlay.Commit(batch))
	require.NoError(t, batch.Write())

	committed, err = manager.Record(addr)
	require.NoError(t, err)
	require.Equal(t, byte(9), committed.Data[0])
	_, err = manager.Record(fresh)
	require.NoError(t, err)
}

func TestOverlayDiscard(t *testing.T) {
	manager := NewManager(storage.NewMemDB())
	overlay := NewOverlay(manager)
	addr := crypto.NamedKey("x")
	require.NoError(t, overlay.PutRecord(addr, &Record{Data: []byte{1}}))
	overlay.Discard()
	_, err := overlay.Record(addr)
	require.ErrorIs(t, err, ErrRecordNotFound)
	require.Empty(t, overlay.Dirty())
}

func TestOverlayReturnsCopies(t *testing.T) {
	overlay := NewOverlay(NewManager(storage.NewMemDB()))
	addr := crypto.NamedKey("x")
	require.NoError(t, overlay.PutRecord(addr, &Record{Data: []byte{1}}))
	first, err := overlay.Record(addr)
	require.NoError(t, err)
	first.Data[0] = 5
	second, err := overlay.Record(addr)
	require.NoError(t, err)
	require.Equal(t, byte(1), second.Data[0])
}

func TestTransactionSeenMarker(t *testing.T) {
	db := storage.NewMemDB()
	manager := NewManager(db)
	hash := [32]byte{1}
	seen, err := manager.TransactionSeen(hash)
	require.NoError(t, err)
	require.False(t, seen)
	_, err = manager.TransactionMarker(hash)
	require.ErrorIs(t, err, ErrRecordNotFound)

	batch := db.NewBatch()
	MarkTransactionSeen(batch, hash, []byte{1})
	require.NoError(t, batch.Write())
	seen, err = manager.TransactionSeen(hash)
	require.NoError(t, err)
	require.True(t, seen)
	payload, err := manager.TransactionMarker(hash)
	require.NoError(t, err)
	require.Equal(t, []byte{1}, payload)
}

func TestRentExemption(t *testing.T) {
	rent := Rent{BaseOverhead: 10, DepositPerByte: 2}
	require.Equal(t, uint64(40), rent.MinimumDeposit(10))
	require.True(t, rent.IsExempt(40, 10))
	require.False(t, rent.IsExempt(39, 10))
	require.Equal(t, uint64(20), rent.MinimumDeposit(-5))
}
