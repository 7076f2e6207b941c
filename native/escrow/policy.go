package escrow

import (
	"github.com/holiman/uint256"

	"vaultswap/crypto"
)

// DefaultRequiredStake is the fixed buy-in for room offers.
const DefaultRequiredStake uint64 = 50

const (
	DefaultLuckyModulus   uint64 = 10
	DefaultLuckyThreshold uint64 = 2
)

// Policy is the room variant's business configuration.
type Policy struct {
	RequiredStake      uint64
	AllowedCollections []crypto.Address
	LuckyCollection    crypto.Address
	LuckyModulus       uint64
	LuckyThreshold     uint64
}

// DefaultPolicy returns the stock room policy with an empty allow-list.
func DefaultPolicy() Policy {
	return Policy{
		RequiredStake:  DefaultRequiredStake,
		LuckyModulus:   DefaultLuckyModulus,
		LuckyThreshold: DefaultLuckyThreshold,
	}
}

// Allows reports whether collection is on the allow-list.
func (p Policy) Allows(collection crypto.Address) bool {
	for _, allowed := range p.AllowedCollections {
		if allowed == collection {
			return true
		}
	}
	return false
}

// LuckyDraw is the outcome of the room multiplier.
type LuckyDraw struct {
	Eligible    bool
	Draw        uint64
	Lucky       bool
	TakerAmount uint64
}

// ApplyMultiplier doubles takerAmount when collection is the lucky collection
// and blockTime lands in the lucky band. Block time is visible to, and partly
// steerable by, whoever times the transaction.
func (p Policy) ApplyMultiplier(collection crypto.Address, blockTime int64, takerAmount uint64) (LuckyDraw, error) {
	out := LuckyDraw{TakerAmount: takerAmount}
	if p.LuckyCollection.IsZero() || collection != p.LuckyCollection || p.LuckyModulus == 0 {
		return out, nil
	}
	out.Eligible = true
	modulus := new(uint256.Int).SetUint64(p.LuckyModulus)
	ts := new(uint256.Int)
	if blockTime >= 0 {
		ts.SetUint64(uint64(blockTime))
		out.Draw = new(uint256.Int).Mod(ts, modulus).Uint64()
	} else {
		// Euclidean remainder for pre-epoch clocks.
		ts.SetUint64(uint64(-(blockTime + 1)) + 1)
		rem := new(uint256.Int).Mod(ts, modulus).Uint64()
		if rem != 0 {
			rem = p.LuckyModulus - rem
		}
		out.Draw = rem
	}
	if out.Draw > p.LuckyThreshold {
		return out, nil
	}
	doubled, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(takerAmount), uint256.NewInt(2))
	if overflow || !doubled.IsUint64() {
		return out, ErrMultiplierOverflow
	}
	out.Lucky = true
	out.TakerAmount = doubled.Uint64()
	return out, nil
}
