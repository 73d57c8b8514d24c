package storage

import (
	"errors"
	"path/filepath"
	"testing"
)

func exerciseDatabase(t *testing.T, db Database) {
	t.Helper()
	if _, err := db.Get([]byte("missing")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := db.Put([]byte("rec/a"), []byte{1}); err != nil {
		t.Fatalf("put: %v", err)
	}
	ok, err := db.Has([]byte("rec/a"))
	if err != nil || !ok {
		t.Fatalf("has: %v %v", ok, err)
	}

	batch := db.NewBatch()
	batch.Put([]byte("rec/b"), []byte{2})
	batch.Put([]byte("rec/c"), []byte{3})
	batch.Delete([]byte("rec/a"))
	if batch.Len() != 3 {
		t.Fatalf("batch len = %d", batch.Len())
	}
	if ok, _ := db.Has([]byte("rec/b")); ok {
		t.Fatalf("batch must not apply before Write")
	}
	if err := batch.Write(); err != nil {
		t.Fatalf("write: %v", err)
	}
	if ok, _ := db.Has([]byte("rec/a")); ok {
		t.Fatalf("rec/a should be deleted")
	}

	var seen []string
	if err := db.Iterate([]byte("rec/"), func(key, value []byte) bool {
		seen = append(seen, string(key))
		return true
	}); err != nil {
		t.Fatalf("iterate: %v", err)
	}
	if len(seen) != 2 || seen[0] != "rec/b" || seen[1] != "rec/c" {
		t.Fatalf("unexpected iteration order: %v", seen)
	}
}

func TestMemDB(t *testing.T) {
	db := NewMemDB()
	defer db.Close()
	exerciseDatabase(t, db)
}

func TestLevelDB(t *testing.T) {
	db, err := NewLevelDB(filepath.Join(t.TempDir(), "db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	exerciseDatabase(t, db)
}

func TestMemDBCopiesValues(t *testing.T) {
	db := NewMemDB()
	value := []byte{9}
	_ = db.Put([]byte("k"), value)
	value[0] = 0
	got, _ := db.Get([]byte("k"))
	if got[0] != 9 {
		t.Fatalf("stored value aliased caller buffer")
	}
}
