package types

import "vaultswap/crypto"

// Account is the unit of ledger storage. Lamports pay for the account's
// existence; Owner is the program allowed to mutate Data and debit Lamports.
type Account struct {
	Lamports   uint64         `json:"lamports"`
	Owner      crypto.Address `json:"owner"`
	Executable bool           `json:"executable"`
	Data       []byte         `json:"data"`
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := *a
	if a.Data != nil {
		clone.Data = append([]byte(nil), a.Data...)
	}
	return &clone
}

// IsEmpty reports whether the account holds neither lamports nor data. Empty
// accounts are treated as non-existent.
func (a *Account) IsEmpty() bool {
	return a == nil || (a.Lamports == 0 && len(a.Data) == 0 && !a.Executable)
}
