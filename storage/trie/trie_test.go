package trie

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"vaultswap/storage"
)

func TestTrieCommitFlushPersistsData(t *testing.T) {
	dir := t.TempDir()

	db1, err := storage.NewLevelDB(dir)
	require.NoError(t, err)

	tr, err := NewTrie(db1, nil)
	require.NoError(t, err)

	key := crypto.Keccak256Hash([]byte("key"))
	value := []byte("value")

	require.NoError(t, tr.Update(key.Bytes(), value))
	root, err := tr.Commit(common.Hash{}, 0)
	require.NoError(t, err)

	db1.Close()

	db2, err := storage.NewLevelDB(dir)
	require.NoError(t, err)
	defer db2.Close()

	restored, err := NewTrie(db2, root.Bytes())
	require.NoError(t, err)

	got, err := restored.Get(key.Bytes())
	require.NoError(t, err)
	require.Equal(t, value, got)
}

func TestTrieResetDiscardsUncommittedChanges(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()

	tr, err := NewTrie(db, nil)
	require.NoError(t, err)

	kept := crypto.Keccak256Hash([]byte("kept"))
	require.NoError(t, tr.Update(kept.Bytes(), []byte("v1")))
	root, err := tr.Commit(common.Hash{}, 1)
	require.NoError(t, err)

	dropped := crypto.Keccak256Hash([]byte("dropped"))
	require.NoError(t, tr.Update(dropped.Bytes(), []byte("v2")))
	require.NoError(t, tr.Delete(kept.Bytes()))
	require.NotEqual(t, root, tr.Hash())

	require.NoError(t, tr.Reset(root))

	got, err := tr.Get(kept.Bytes())
	require.NoError(t, err)
	require.Equal(t, []byte("v1"), got)
	got, err = tr.Get(dropped.Bytes())
	require.NoError(t, err)
	require.Nil(t, got)
	require.Equal(t, root, tr.Hash())
}

func TestTrieDeleteRemovesKey(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()

	tr, err := NewTrie(db, nil)
	require.NoError(t, err)
	key := crypto.Keccak256Hash([]byte("gone"))
	require.NoError(t, tr.Update(key.Bytes(), []byte("x")))
	require.NoError(t, tr.Delete(key.Bytes()))
	got, err := tr.Get(key.Bytes())
	require.NoError(t, err)
	require.Nil(t, got)
}
