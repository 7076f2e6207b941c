package runtime

import (
	"fmt"

	ledgererrors "vaultswap/core/errors"
	"vaultswap/crypto"
)

// Signer is the authority presented to an operation that debits or closes an
// account. Key must either have signed the transaction, or Seeds must derive
// Key under the currently executing program.
type Signer struct {
	Key   crypto.Address
	Seeds [][]byte
}

// SignedBy is an authority proven by a transaction signature.
func SignedBy(key crypto.Address) Signer {
	return Signer{Key: key}
}

// DerivedSigner is an authority proven by program-derived seeds.
func DerivedSigner(key crypto.Address, seeds ...[]byte) Signer {
	return Signer{Key: key, Seeds: seeds}
}

// VerifySigner checks the authority proof against the invoking program. Seeds
// are always checked against c.Program(), so a program can only sign for
// addresses derived from its own identity.
func (c *Context) VerifySigner(s Signer) error {
	if c.IsSigner(s.Key) {
		return nil
	}
	if len(s.Seeds) > 0 {
		derived, err := crypto.CreateProgramAddress(s.Seeds, c.program)
		if err == nil && derived == s.Key {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ledgererrors.ErrMissingSignature, s.Key)
}

// Invoke returns a context for calling into callee on behalf of the current
// program. Signer privileges carry over, and each derived signer whose seeds
// verify against the current program is added as a signer for the callee.
func (c *Context) Invoke(callee crypto.Address, signers ...Signer) (*Context, error) {
	child := *c
	child.program = callee
	child.signers = make(map[crypto.Address]struct{}, len(c.signers)+len(signers))
	for addr := range c.signers {
		child.signers[addr] = struct{}{}
	}
	for _, s := range signers {
		if err := c.VerifySigner(s); err != nil {
			return nil, err
		}
		child.signers[s.Key] = struct{}{}
	}
	return &child, nil
}
