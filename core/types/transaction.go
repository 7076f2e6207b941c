package types

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
	"lukechampine.com/blake3"

	"vaultswap/crypto"
)

var (
	ErrSignatureCount   = errors.New("tx: signature count does not match signers")
	ErrInvalidSignature = errors.New("tx: invalid signature")
	ErrNoInstructions   = errors.New("tx: no instructions")
	ErrMissingKey       = errors.New("tx: missing key for signer")
)

// AccountMeta declares an account an instruction touches and how.
type AccountMeta struct {
	Address  crypto.Address `json:"address"`
	Signer   bool           `json:"signer"`
	Writable bool           `json:"writable"`
}

// Instruction invokes a single program with a fixed, ordered account list.
type Instruction struct {
	Program  crypto.Address `json:"program"`
	Accounts []AccountMeta  `json:"accounts"`
	Data     []byte         `json:"data"`
}

// Transaction groups instructions that execute atomically.
type Transaction struct {
	Nonce        uint64        `json:"nonce"`
	Instructions []Instruction `json:"instructions"`
	Signatures   [][]byte      `json:"signatures"`
}

// Hash is the digest every signer signs. Signatures are excluded.
func (tx *Transaction) Hash() ([32]byte, error) {
	payload := struct {
		Nonce        uint64
		Instructions []Instruction
	}{tx.Nonce, tx.Instructions}
	encoded, err := rlp.EncodeToBytes(payload)
	if err != nil {
		return [32]byte{}, err
	}
	return blake3.Sum256(encoded), nil
}

// Signers returns the signer addresses in order of first appearance.
func (tx *Transaction) Signers() []crypto.Address {
	seen := make(map[crypto.Address]struct{})
	var out []crypto.Address
	for _, ix := range tx.Instructions {
		for _, meta := range ix.Accounts {
			if !meta.Signer {
				continue
			}
			if _, ok := seen[meta.Address]; ok {
				continue
			}
			seen[meta.Address] = struct{}{}
			out = append(out, meta.Address)
		}
	}
	return out
}

// Sign fills Signatures using the supplied keys, matched to signers by address.
func (tx *Transaction) Sign(keys ...*crypto.PrivateKey) error {
	byAddr := make(map[crypto.Address]*crypto.PrivateKey, len(keys))
	for _, key := range keys {
		if key != nil {
			byAddr[key.Address()] = key
		}
	}
	hash, err := tx.Hash()
	if err != nil {
		return err
	}
	signers := tx.Signers()
	sigs := make([][]byte, len(signers))
	for i, signer := range signers {
		key, ok := byAddr[signer]
		if !ok {
			return fmt.Errorf("%w %s", ErrMissingKey, signer)
		}
		sigs[i] = key.Sign(hash[:])
	}
	tx.Signatures = sigs
	return nil
}

// Verify checks that every signer produced a valid signature.
func (tx *Transaction) Verify() error {
	if len(tx.Instructions) == 0 {
		return ErrNoInstructions
	}
	signers := tx.Signers()
	if len(signers) != len(tx.Signatures) {
		return ErrSignatureCount
	}
	hash, err := tx.Hash()
	if err != nil {
		return err
	}
	for i, signer := range signers {
		if !crypto.Verify(signer, hash[:], tx.Signatures[i]) {
			return fmt.Errorf("%w for %s", ErrInvalidSignature, signer)
		}
	}
	return nil
}

// Encode returns the RLP wire form of the transaction.
func (tx *Transaction) Encode() ([]byte, error) {
	return rlp.EncodeToBytes(tx)
}

// DecodeTransaction parses the RLP wire form.
func DecodeTransaction(raw []byte) (*Transaction, error) {
	var tx Transaction
	if err := rlp.DecodeBytes(raw, &tx); err != nil {
		return nil, fmt.Errorf("tx: decode: %w", err)
	}
	return &tx, nil
}
