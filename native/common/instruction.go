package common

import (
	"bytes"
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	bin "github.com/gagliardetto/binary"
)

// DiscriminatorSize is the length of the selector that prefixes instruction
// data and program-owned records.
const DiscriminatorSize = 8

// Discriminator is the selector prefixed to instruction data and records.
type Discriminator [DiscriminatorSize]byte

var ErrShortData = errors.New("instruction: data shorter than discriminator")

// NewDiscriminator hashes "namespace:name" and keeps the first eight bytes.
func NewDiscriminator(namespace, name string) Discriminator {
	var d Discriminator
	copy(d[:], ethcrypto.Keccak256([]byte(namespace+":"+name)))
	return d
}

// InstructionDiscriminator selects an instruction by name.
func InstructionDiscriminator(name string) Discriminator {
	return NewDiscriminator("global", name)
}

// AccountDiscriminator tags a program-owned record type.
func AccountDiscriminator(name string) Discriminator {
	return NewDiscriminator("account", name)
}

// EncodeInstruction returns discriminator || borsh(args). A nil args value
// encodes no payload.
func EncodeInstruction(name string, args interface{}) ([]byte, error) {
	disc := InstructionDiscriminator(name)
	buf := bytes.NewBuffer(append([]byte(nil), disc[:]...))
	if args != nil {
		if err := bin.NewBorshEncoder(buf).Encode(args); err != nil {
			return nil, fmt.Errorf("instruction %s: encode args: %w", name, err)
		}
	}
	return buf.Bytes(), nil
}

// SplitInstruction separates the discriminator from the argument payload.
func SplitInstruction(data []byte) (Discriminator, []byte, error) {
	var d Discriminator
	if len(data) < DiscriminatorSize {
		return d, nil, ErrShortData
	}
	copy(d[:], data[:DiscriminatorSize])
	return d, data[DiscriminatorSize:], nil
}

// DecodeArgs decodes a borsh payload into out.
func DecodeArgs(payload []byte, out interface{}) error {
	return bin.NewBorshDecoder(payload).Decode(out)
}

// EncodeBorsh serializes v with borsh.
func EncodeBorsh(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := bin.NewBorshEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
