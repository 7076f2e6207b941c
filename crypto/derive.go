package crypto

import (
	"errors"

	"filippo.io/edwards25519"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

const (
	// MaxSeeds bounds the number of seeds accepted by the derivation.
	MaxSeeds = 16
	// MaxSeedLength bounds the size of a single seed.
	MaxSeedLength = 32
)

var programDerivedMarker = []byte("ProgramDerivedAddress")

var (
	ErrMaxSeeds      = errors.New("crypto: too many seeds")
	ErrMaxSeedLength = errors.New("crypto: seed exceeds 32 bytes")
	ErrInvalidSeeds  = errors.New("crypto: derived address lies on the ed25519 curve")
	ErrNoViableBump  = errors.New("crypto: unable to find a viable bump seed")
)

// CreateProgramAddress derives the address controlled by program for the given
// seeds. The result is rejected when it is a valid ed25519 point, so every
// accepted address is guaranteed to have no private key.
func CreateProgramAddress(seeds [][]byte, program Address) (Address, error) {
	if len(seeds) > MaxSeeds {
		return Address{}, ErrMaxSeeds
	}
	parts := make([][]byte, 0, len(seeds)+2)
	for _, seed := range seeds {
		if len(seed) > MaxSeedLength {
			return Address{}, ErrMaxSeedLength
		}
		parts = append(parts, seed)
	}
	parts = append(parts, program[:], programDerivedMarker)
	derived := BytesToAddress(ethcrypto.Keccak256(parts...))
	if IsOnCurve(derived) {
		return Address{}, ErrInvalidSeeds
	}
	return derived, nil
}

// FindProgramAddress searches for the highest bump byte for which
// CreateProgramAddress(seeds || bump) succeeds. The search is deterministic.
func FindProgramAddress(seeds [][]byte, program Address) (Address, uint8, error) {
	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)
	for bump := 255; bump >= 0; bump-- {
		withBump[len(seeds)] = []byte{byte(bump)}
		addr, err := CreateProgramAddress(withBump, program)
		if err == nil {
			return addr, uint8(bump), nil
		}
		if !errors.Is(err, ErrInvalidSeeds) {
			return Address{}, 0, err
		}
	}
	return Address{}, 0, ErrNoViableBump
}

// MustFindProgramAddress panics when the derivation fails. Only for seeds known
// to be valid at compile time.
func MustFindProgramAddress(seeds [][]byte, program Address) (Address, uint8) {
	addr, bump, err := FindProgramAddress(seeds, program)
	if err != nil {
		panic(err)
	}
	return addr, bump
}

// IsOnCurve reports whether addr decodes as a point on edwards25519.
func IsOnCurve(addr Address) bool {
	_, err := new(edwards25519.Point).SetBytes(addr[:])
	return err == nil
}

// ProgramID returns a deterministic off-curve identity for a built-in program.
func ProgramID(name string) Address {
	addr, _ := MustFindProgramAddress([][]byte{[]byte(name)}, ZeroAddress)
	return addr
}
