package genesis

import (
	"fmt"

	"github.com/holiman/uint256"

	"vaultswap/core/runtime"
	"vaultswap/core/state"
	"vaultswap/core/types"
	"vaultswap/crypto"
	"vaultswap/native/metadata"
	"vaultswap/native/system"
	"vaultswap/native/token"
)

// Apply writes the genesis accounts into manager. The caller commits. Every
// created account is funded at the rent-exempt minimum.
func Apply(spec *Spec, manager *state.Manager, rent runtime.Rent) error {
	if spec == nil {
		return fmt.Errorf("genesis spec must not be nil")
	}
	if manager == nil {
		return fmt.Errorf("state manager must not be nil")
	}
	if rent == (runtime.Rent{}) {
		rent = runtime.DefaultRent()
	}

	// 1) Wallets
	for i, w := range spec.Wallets {
		addr := crypto.MustDecodeAddress(w.Address)
		acc, err := manager.GetAccount(addr)
		if err != nil {
			return fmt.Errorf("wallet[%d]: %w", i, err)
		}
		if acc == nil {
			acc = &types.Account{Owner: system.ProgramID}
		}
		if acc.Owner != system.ProgramID {
			return fmt.Errorf("wallet[%d]: %s is not a wallet", i, addr)
		}
		total := new(uint256.Int).Add(uint256.NewInt(acc.Lamports), uint256.NewInt(w.Lamports))
		if !total.IsUint64() {
			return fmt.Errorf("wallet[%d]: lamport overflow", i)
		}
		acc.Lamports = total.Uint64()
		if err := manager.PutAccount(addr, acc); err != nil {
			return fmt.Errorf("wallet[%d]: %w", i, err)
		}
	}

	// 2) Token accounts, accumulating supply per mint
	supply := make(map[crypto.Address]*uint256.Int, len(spec.Mints))
	for i, ta := range spec.TokenAccounts {
		owner := crypto.MustDecodeAddress(ta.Owner)
		mint, err := spec.ResolveMint(ta.Mint)
		if err != nil {
			return fmt.Errorf("tokenAccount[%d]: %w", i, err)
		}
		addr, _ := token.AssociatedAddress(owner, mint)
		if ta.Address != "" {
			addr = crypto.MustDecodeAddress(ta.Address)
		}
		data, err := token.EncodeAccount(&token.Account{Mint: mint, Owner: owner, Amount: ta.Amount})
		if err != nil {
			return fmt.Errorf("tokenAccount[%d]: %w", i, err)
		}
		if err := putNew(manager, addr, token.ProgramID, token.AccountSize, data, rent); err != nil {
			return fmt.Errorf("tokenAccount[%d]: %w", i, err)
		}
		total, ok := supply[mint]
		if !ok {
			total = new(uint256.Int)
			supply[mint] = total
		}
		total.Add(total, uint256.NewInt(ta.Amount))
		if !total.IsUint64() {
			return fmt.Errorf("tokenAccount[%d]: supply overflow for %s", i, mint)
		}
	}

	// 3) Mints
	for i, m := range spec.Mints {
		addr, err := spec.ResolveMint(m.Label)
		if err != nil {
			return fmt.Errorf("mint[%d]: %w", i, err)
		}
		var minted uint64
		if total, ok := supply[addr]; ok {
			minted = total.Uint64()
		}
		data, err := token.EncodeMint(&token.Mint{
			Decimals:      m.Decimals,
			Supply:        minted,
			MintAuthority: crypto.MustDecodeAddress(m.MintAuthority),
		})
		if err != nil {
			return fmt.Errorf("mint[%d]: %w", i, err)
		}
		if err := putNew(manager, addr, token.ProgramID, token.MintSize, data, rent); err != nil {
			return fmt.Errorf("mint[%d]: %w", i, err)
		}
	}

	// 4) Metadata
	for i, md := range spec.Metadata {
		mint, err := spec.ResolveMint(md.Mint)
		if err != nil {
			return fmt.Errorf("metadata[%d]: %w", i, err)
		}
		record := &metadata.Metadata{
			Mint:            mint,
			UpdateAuthority: crypto.MustDecodeAddress(md.UpdateAuthority),
			Name:            md.Name,
			Symbol:          md.Symbol,
		}
		if md.Collection != "" {
			key, err := spec.ResolveMint(md.Collection)
			if err != nil {
				return fmt.Errorf("metadata[%d]: %w", i, err)
			}
			record.Collection = &metadata.Collection{Verified: md.Verified, Key: key}
		}
		data, err := metadata.Encode(record)
		if err != nil {
			return fmt.Errorf("metadata[%d]: %w", i, err)
		}
		addr, _ := metadata.Address(mint)
		if err := putNew(manager, addr, metadata.ProgramID, metadata.RecordSize, data, rent); err != nil {
			return fmt.Errorf("metadata[%d]: %w", i, err)
		}
	}
	return nil
}

func putNew(manager *state.Manager, addr, owner crypto.Address, space int, data []byte, rent runtime.Rent) error {
	exists, err := manager.AccountExists(addr)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("account %s already allocated", addr)
	}
	return manager.PutAccount(addr, &types.Account{
		Lamports: rent.MinimumBalance(space),
		Owner:    owner,
		Data:     data,
	})
}
