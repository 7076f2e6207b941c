package state

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"vaultswap/core/types"
	"vaultswap/crypto"
	"vaultswap/storage/trie"
)

// Manager reads and writes ledger state on top of the trie. Values are RLP
// encoded and stored under keccak256 hashes of prefixed keys.
type Manager struct {
	trie *trie.Trie
}

// NewManager creates a state manager operating on the provided trie.
func NewManager(tr *trie.Trie) *Manager {
	return &Manager{trie: tr}
}

var (
	accountPrefix = []byte("account:")
	kvPrefix      = []byte("kv:")
)

func accountKey(addr crypto.Address) []byte {
	buf := make([]byte, len(accountPrefix)+len(addr))
	copy(buf, accountPrefix)
	copy(buf[len(accountPrefix):], addr[:])
	return ethcrypto.Keccak256(buf)
}

func kvKey(key []byte) []byte {
	buf := make([]byte, len(kvPrefix)+len(key))
	copy(buf, kvPrefix)
	copy(buf[len(kvPrefix):], key)
	return ethcrypto.Keccak256(buf)
}

// GetAccount returns the account stored at addr, or nil when none exists.
func (m *Manager) GetAccount(addr crypto.Address) (*types.Account, error) {
	data, err := m.trie.Get(accountKey(addr))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	acc := new(types.Account)
	if err := rlp.DecodeBytes(data, acc); err != nil {
		return nil, fmt.Errorf("state: decode account %s: %w", addr, err)
	}
	return acc, nil
}

// PutAccount stores acc at addr. Empty accounts are deleted.
func (m *Manager) PutAccount(addr crypto.Address, acc *types.Account) error {
	if acc.IsEmpty() {
		return m.DeleteAccount(addr)
	}
	encoded, err := rlp.EncodeToBytes(acc)
	if err != nil {
		return err
	}
	return m.trie.Update(accountKey(addr), encoded)
}

func (m *Manager) DeleteAccount(addr crypto.Address) error {
	return m.trie.Delete(accountKey(addr))
}

// AccountExists reports whether a non-empty account lives at addr.
func (m *Manager) AccountExists(addr crypto.Address) (bool, error) {
	acc, err := m.GetAccount(addr)
	if err != nil {
		return false, err
	}
	return !acc.IsEmpty(), nil
}

// KVPut stores an arbitrary RLP-encodable value under key.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.trie.Update(kvKey(key), encoded)
}

// KVGet decodes the value stored under key into out. The boolean reports
// whether the key existed.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.trie.Get(kvKey(key))
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// Root returns the last committed state root.
func (m *Manager) Root() common.Hash {
	return m.trie.Root()
}

// Commit persists pending changes and returns the new root.
func (m *Manager) Commit(slot uint64) (common.Hash, error) {
	return m.trie.Commit(m.trie.Root(), slot)
}

// Revert discards every change since the last commit.
func (m *Manager) Revert() error {
	return m.trie.Reset(m.trie.Root())
}
