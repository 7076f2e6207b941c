package state

import (
	"errors"
	"fmt"
	"math"
)

// LayoutVersion identifies how accounts, token records and escrow records are
// encoded in the trie.
const LayoutVersion uint32 = 1

var layoutKey = []byte("ledger/layout")

var (
	ErrLayoutMismatch = errors.New("state: ledger layout mismatch")
	ErrLayoutMissing  = errors.New("state: ledger layout not recorded")
)

// SetLayout stamps the trie with version. The stamp is committed with the
// next Commit.
func (m *Manager) SetLayout(version uint32) error {
	return m.KVPut(layoutKey, uint64(version))
}

// Layout returns the stamped layout version and whether one was found.
func (m *Manager) Layout() (uint32, bool, error) {
	var stored uint64
	ok, err := m.KVGet(layoutKey, &stored)
	if err != nil || !ok {
		return 0, false, err
	}
	if stored > math.MaxUint32 {
		return 0, false, fmt.Errorf("state: layout version overflow: %d", stored)
	}
	return uint32(stored), true, nil
}

// CheckLayout fails unless the trie carries LayoutVersion.
func (m *Manager) CheckLayout() error {
	version, ok, err := m.Layout()
	if err != nil {
		return err
	}
	if !ok {
		return ErrLayoutMissing
	}
	if version != LayoutVersion {
		return fmt.Errorf("%w: stored %d, supported %d", ErrLayoutMismatch, version, LayoutVersion)
	}
	return nil
}
