package escrow

import (
	"vaultswap/crypto"
	"vaultswap/native/metadata"
	"vaultswap/native/token"
)

// ProgramID identifies the escrow program.
var ProgramID = crypto.ProgramID("vaultswap/escrow")

const (
	authoritySeed = "authority"
	recordPrefix  = "state"
)

// VaultAuthority derives the keyless identity that controls every vault,
// together with the bump that reproduces it.
func VaultAuthority() (crypto.Address, uint8) {
	return crypto.MustFindProgramAddress([][]byte{[]byte(authoritySeed)}, ProgramID)
}

// AuthoritySeeds is the proof presented when the vault authority signs.
func AuthoritySeeds(bump uint8) [][]byte {
	return [][]byte{[]byte(authoritySeed), {bump}}
}

// authorityFromBump re-derives the authority from a stored bump without
// repeating the search.
func authorityFromBump(bump uint8) (crypto.Address, error) {
	return crypto.CreateProgramAddress(AuthoritySeeds(bump), ProgramID)
}

// VaultAddress is the custody account for mint: the associated token account
// of the vault authority.
func VaultAddress(mint crypto.Address) crypto.Address {
	authority, _ := VaultAuthority()
	vault, _ := token.AssociatedAddress(authority, mint)
	return vault
}

// RecordAddress derives the record slot for identifier.
func RecordAddress(identifier string) (crypto.Address, uint8, error) {
	if err := validateIdentifier(identifier); err != nil {
		return crypto.Address{}, 0, err
	}
	return crypto.FindProgramAddress(recordSeeds(identifier), ProgramID)
}

func recordSeeds(identifier string) [][]byte {
	return [][]byte{[]byte(recordPrefix), []byte(identifier)}
}

func validateIdentifier(identifier string) error {
	if identifier == "" {
		return ErrIdentifierEmpty
	}
	if len(identifier) > MaxIdentifierLen {
		return ErrIdentifierTooLong
	}
	return nil
}

func metadataAddress(mint crypto.Address) crypto.Address {
	addr, _ := metadata.Address(mint)
	return addr
}
