package escrow

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"

	"vaultswap/crypto"
	"vaultswap/native/common"
)

// MaxIdentifierLen bounds the identifier so it fits a single derivation seed
// and the reserved record space.
const MaxIdentifierLen = crypto.MaxSeedLength

// Reserved record sizes: discriminator, length-prefixed identifier, account
// references, two amounts and the authority bump. Storage cannot grow after
// allocation.
const (
	EscrowRecordSize = common.DiscriminatorSize + 4 + MaxIdentifierLen + 3*crypto.AddressLength + 8 + 8 + 1
	RoomRecordSize   = EscrowRecordSize + crypto.AddressLength
)

// Variant selects the plain escrow or the gated room flavour.
type Variant uint8

const (
	VariantEscrow Variant = iota + 1
	VariantRoom
)

func (v Variant) String() string {
	switch v {
	case VariantEscrow:
		return "escrow"
	case VariantRoom:
		return "room"
	default:
		return "unknown"
	}
}

// Module is the pause-guard name for the variant.
func (v Variant) Module() string { return v.String() }

// RecordSize returns the reserved size for the variant.
func (v Variant) RecordSize() int {
	if v == VariantRoom {
		return RoomRecordSize
	}
	return EscrowRecordSize
}

var (
	escrowStateDiscriminator = common.AccountDiscriminator("EscrowState")
	roomStateDiscriminator   = common.AccountDiscriminator("RoomState")
)

func (v Variant) discriminator() common.Discriminator {
	if v == VariantRoom {
		return roomStateDiscriminator
	}
	return escrowStateDiscriminator
}

// EscrowState is one outstanding swap offer.
type EscrowState struct {
	Identifier                     string
	InitializerKey                 crypto.Address
	InitializerDepositTokenAccount crypto.Address
	InitializerReceiveTokenAccount crypto.Address
	InitializerAmount              uint64
	TakerAmount                    uint64
	VaultAuthorityBump             uint8
}

// Record is a decoded offer of either variant. CollectibleMint is only set
// for rooms.
type Record struct {
	Variant Variant
	EscrowState
	CollectibleMint crypto.Address
}

// Clone returns a copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	clone := *r
	return &clone
}

// MarshalBinary encodes the record into its reserved, zero-padded layout.
func (r *Record) MarshalBinary() ([]byte, error) {
	if len(r.Identifier) > MaxIdentifierLen {
		return nil, ErrIdentifierTooLong
	}
	disc := r.Variant.discriminator()
	buf := bytes.NewBuffer(make([]byte, 0, r.Variant.RecordSize()))
	buf.Write(disc[:])
	enc := bin.NewBorshEncoder(buf)
	if err := enc.Encode(r.EscrowState); err != nil {
		return nil, fmt.Errorf("escrow: encode record: %w", err)
	}
	if r.Variant == VariantRoom {
		buf.Write(r.CollectibleMint[:])
	}
	out := make([]byte, r.Variant.RecordSize())
	copy(out, buf.Bytes())
	return out, nil
}

// UnmarshalRecord decodes a record from account data, selecting the variant
// by discriminator.
func UnmarshalRecord(data []byte) (*Record, error) {
	disc, payload, err := common.SplitInstruction(data)
	if err != nil {
		return nil, ErrRecordNotFound
	}
	rec := &Record{}
	switch disc {
	case escrowStateDiscriminator:
		rec.Variant = VariantEscrow
	case roomStateDiscriminator:
		rec.Variant = VariantRoom
	default:
		return nil, ErrRecordNotFound
	}
	dec := bin.NewBorshDecoder(payload)
	if err := dec.Decode(&rec.EscrowState); err != nil {
		return nil, fmt.Errorf("escrow: decode record: %w", err)
	}
	if rec.Variant == VariantRoom {
		var mint crypto.Address
		if err := dec.Decode(&mint); err != nil {
			return nil, fmt.Errorf("escrow: decode record: %w", err)
		}
		rec.CollectibleMint = mint
	}
	return rec, nil
}
