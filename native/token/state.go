package token

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	ledgererrors "vaultswap/core/errors"
	"vaultswap/core/types"
	"vaultswap/crypto"
)

// Declared sizes used for rent. The stored encoding is RLP and never exceeds
// these bounds.
const (
	MintSize    = 82
	AccountSize = 165
)

const (
	kindMint    uint8 = 1
	kindAccount uint8 = 2
)

var (
	ErrNotMint         = errors.New("token: account is not a mint")
	ErrNotTokenAccount = errors.New("token: account is not a token account")
)

// Mint describes a fungible asset.
type Mint struct {
	Decimals      uint8
	Supply        uint64
	MintAuthority crypto.Address
}

// Account is a balance of one mint held for Owner.
type Account struct {
	Mint   crypto.Address
	Owner  crypto.Address
	Amount uint64
}

type mintRecord struct {
	Kind uint8
	Mint Mint
}

type accountRecord struct {
	Kind    uint8
	Account Account
}

// EncodeMint returns the account data for m.
func EncodeMint(m *Mint) ([]byte, error) {
	return rlp.EncodeToBytes(mintRecord{Kind: kindMint, Mint: *m})
}

// EncodeAccount returns the account data for a.
func EncodeAccount(a *Account) ([]byte, error) {
	return rlp.EncodeToBytes(accountRecord{Kind: kindAccount, Account: *a})
}

func recordKind(data []byte) (uint8, error) {
	var head struct {
		Kind uint8
		Rest rlp.RawValue
	}
	if err := rlp.DecodeBytes(data, &head); err != nil {
		return 0, err
	}
	return head.Kind, nil
}

// DecodeMint parses a mint from a ledger account owned by the token program.
func DecodeMint(addr crypto.Address, acc *types.Account) (*Mint, error) {
	if acc.IsEmpty() {
		return nil, fmt.Errorf("%w: %s", ledgererrors.ErrAccountNotFound, addr)
	}
	if acc.Owner != ProgramID {
		return nil, fmt.Errorf("%w: %s", ErrNotMint, addr)
	}
	if kind, err := recordKind(acc.Data); err != nil || kind != kindMint {
		return nil, fmt.Errorf("%w: %s", ErrNotMint, addr)
	}
	var rec mintRecord
	if err := rlp.DecodeBytes(acc.Data, &rec); err != nil {
		return nil, fmt.Errorf("token: decode mint %s: %w", addr, err)
	}
	return &rec.Mint, nil
}

// DecodeAccount parses a token account from a ledger account owned by the
// token program.
func DecodeAccount(addr crypto.Address, acc *types.Account) (*Account, error) {
	if acc.IsEmpty() {
		return nil, fmt.Errorf("%w: %s", ledgererrors.ErrAccountNotFound, addr)
	}
	if acc.Owner != ProgramID {
		return nil, fmt.Errorf("%w: %s", ErrNotTokenAccount, addr)
	}
	if kind, err := recordKind(acc.Data); err != nil || kind != kindAccount {
		return nil, fmt.Errorf("%w: %s", ErrNotTokenAccount, addr)
	}
	var rec accountRecord
	if err := rlp.DecodeBytes(acc.Data, &rec); err != nil {
		return nil, fmt.Errorf("token: decode account %s: %w", addr, err)
	}
	return &rec.Account, nil
}
