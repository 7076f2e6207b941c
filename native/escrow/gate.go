package escrow

import (
	"vaultswap/core/runtime"
	"vaultswap/crypto"
	"vaultswap/native/metadata"
	"vaultswap/native/token"
)

// Gate decides whether an initializer may open a room.
type Gate struct {
	policy Policy
}

// NewGate builds a gate over policy.
func NewGate(policy Policy) *Gate {
	return &Gate{policy: policy}
}

// Check verifies that initializer holds exactly one unit of collectibleMint
// and that its verified collection is allow-listed. It returns the collection
// key. Verified is checked before membership.
func (g *Gate) Check(ctx *runtime.Context, initializer, collectibleMint, holding, metadataAddr crypto.Address) (crypto.Address, error) {
	acc, err := token.LoadAccount(ctx, holding)
	if err != nil {
		return crypto.Address{}, err
	}
	if acc.Owner != initializer {
		return crypto.Address{}, ErrInvalidNFTOwner
	}
	if acc.Mint != collectibleMint {
		return crypto.Address{}, ErrInvalidNFTAccountMint
	}
	if acc.Amount != 1 {
		return crypto.Address{}, ErrNFTAccountEmpty
	}
	mint, err := token.LoadMint(ctx, collectibleMint)
	if err != nil {
		return crypto.Address{}, err
	}
	if mint.Supply != 1 {
		return crypto.Address{}, ErrInvalidNFTMintSupply
	}

	expected, _ := metadata.Address(collectibleMint)
	if expected != metadataAddr {
		return crypto.Address{}, mismatch("collectible_metadata", expected, metadataAddr)
	}
	md, err := metadata.Load(ctx, metadataAddr, collectibleMint)
	if err != nil {
		return crypto.Address{}, &AccountMismatchError{Field: "collectible_metadata", Expected: expected, Got: metadataAddr, Cause: err}
	}
	if md.Collection == nil {
		return crypto.Address{}, ErrCollectionMissing
	}
	if !md.Collection.Verified {
		return crypto.Address{}, ErrCollectionNotVerified
	}
	if !g.policy.Allows(md.Collection.Key) {
		return crypto.Address{}, ErrCollectionNotSame
	}
	return md.Collection.Key, nil
}
