package state

import (
	"errors"
	"testing"

	"vaultswap/core/types"
	"vaultswap/crypto"
	"vaultswap/storage"
	"vaultswap/storage/trie"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	tr, err := trie.NewTrie(db, nil)
	if err != nil {
		t.Fatalf("new trie: %v", err)
	}
	return NewManager(tr)
}

func TestAccountRoundTrip(t *testing.T) {
	mgr := newTestManager(t)
	addr := crypto.ProgramID("acct")
	owner := crypto.ProgramID("owner")

	got, err := mgr.GetAccount(addr)
	if err != nil || got != nil {
		t.Fatalf("expected missing account, got %+v err %v", got, err)
	}

	want := &types.Account{Lamports: 42, Owner: owner, Data: []byte{1, 2, 3}}
	if err := mgr.PutAccount(addr, want); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err = mgr.GetAccount(addr)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Lamports != 42 || got.Owner != owner || string(got.Data) != string([]byte{1, 2, 3}) {
		t.Fatalf("unexpected account %+v", got)
	}

	if err := mgr.PutAccount(addr, &types.Account{}); err != nil {
		t.Fatalf("put empty: %v", err)
	}
	exists, err := mgr.AccountExists(addr)
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if exists {
		t.Fatalf("empty account must be removed")
	}
}

func TestRevertRestoresCommittedState(t *testing.T) {
	mgr := newTestManager(t)
	addr := crypto.ProgramID("acct")
	if err := mgr.PutAccount(addr, &types.Account{Lamports: 1}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := mgr.Commit(1); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := mgr.PutAccount(addr, &types.Account{Lamports: 99}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := mgr.Revert(); err != nil {
		t.Fatalf("revert: %v", err)
	}
	got, err := mgr.GetAccount(addr)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Lamports != 1 {
		t.Fatalf("expected reverted balance 1, got %d", got.Lamports)
	}
}

func TestKVAndLayout(t *testing.T) {
	mgr := newTestManager(t)
	if _, ok, err := mgr.Layout(); err != nil || ok {
		t.Fatalf("expected no layout, ok=%v err=%v", ok, err)
	}
	if err := mgr.CheckLayout(); !errors.Is(err, ErrLayoutMissing) {
		t.Fatalf("expected ErrLayoutMissing, got %v", err)
	}
	if err := mgr.SetLayout(LayoutVersion); err != nil {
		t.Fatalf("set layout: %v", err)
	}
	version, ok, err := mgr.Layout()
	if err != nil || !ok || version != LayoutVersion {
		t.Fatalf("unexpected layout %d ok=%v err=%v", version, ok, err)
	}
	if err := mgr.CheckLayout(); err != nil {
		t.Fatalf("check layout: %v", err)
	}
	if err := mgr.SetLayout(LayoutVersion + 1); err != nil {
		t.Fatalf("set layout: %v", err)
	}
	if err := mgr.CheckLayout(); !errors.Is(err, ErrLayoutMismatch) {
		t.Fatalf("expected ErrLayoutMismatch, got %v", err)
	}

	var slot uint64
	if err := mgr.KVPut([]byte("runtime/slot"), uint64(12)); err != nil {
		t.Fatalf("kv put: %v", err)
	}
	ok, err = mgr.KVGet([]byte("runtime/slot"), &slot)
	if err != nil || !ok || slot != 12 {
		t.Fatalf("unexpected kv slot=%d ok=%v err=%v", slot, ok, err)
	}
}
