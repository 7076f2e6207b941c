package storage

import (
	"errors"
	"testing"
)

func TestMemDBGetMissingKey(t *testing.T) {
	db := NewMemDB()
	defer db.Close()

	if _, err := db.Get([]byte("meta:missing")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := db.Put([]byte("meta:head"), []byte{1}); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := db.Get([]byte("meta:head"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got) != 1 || got[0] != 1 {
		t.Fatalf("unexpected value %x", got)
	}
	if err := db.Delete([]byte("meta:head")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if ok, _ := db.Has([]byte("meta:head")); ok {
		t.Fatalf("key still present after delete")
	}
}

func TestLevelDBPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	db, err := NewLevelDB(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := db.Put([]byte("meta:slot"), []byte("42")); err != nil {
		t.Fatalf("put: %v", err)
	}
	db.Close()

	reopened, err := NewLevelDB(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	got, err := reopened.Get([]byte("meta:slot"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "42" {
		t.Fatalf("unexpected value %q", got)
	}
	if _, err := reopened.Get([]byte("meta:other")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
