// Package metadata records collectible metadata and collection membership.
// A collection reference is only trusted once the collection's update
// authority has verified it.
package metadata

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	ledgererrors "vaultswap/core/errors"
	"vaultswap/core/runtime"
	"vaultswap/core/types"
	"vaultswap/crypto"
	"vaultswap/native/system"
	"vaultswap/native/token"
)

// ProgramID owns every metadata record.
var ProgramID = crypto.ProgramID("vaultswap/metadata")

// RecordSize is the declared size used for rent.
const RecordSize = 256

const seedPrefix = "metadata"

var (
	ErrNotMetadata          = errors.New("metadata: account is not a metadata record")
	ErrAddressMismatch      = errors.New("metadata: address does not match mint")
	ErrUpdateAuthority      = errors.New("metadata: invalid update authority")
	ErrNoCollection         = errors.New("metadata: record has no collection reference")
	ErrCollectionMismatch   = errors.New("metadata: collection mint mismatch")
	ErrNameTooLong          = errors.New("metadata: name or symbol too long")
	errWrongInvocationScope = errors.New("metadata: invoked outside the metadata program")
)

// Collection is the collection reference carried by a collectible.
type Collection struct {
	Verified bool
	Key      crypto.Address
}

// Metadata describes one mint.
type Metadata struct {
	Mint            crypto.Address
	UpdateAuthority crypto.Address
	Name            string
	Symbol          string
	Collection      *Collection `rlp:"nil"`
}

// Address returns the metadata record address for mint.
func Address(mint crypto.Address) (crypto.Address, uint8) {
	return crypto.MustFindProgramAddress(seeds(mint), ProgramID)
}

func seeds(mint crypto.Address) [][]byte {
	return [][]byte{[]byte(seedPrefix), ProgramID.Bytes(), mint.Bytes()}
}

// Encode returns the account data for md.
func Encode(md *Metadata) ([]byte, error) {
	return rlp.EncodeToBytes(md)
}

// Decode parses a metadata record owned by the metadata program.
func Decode(addr crypto.Address, acc *types.Account) (*Metadata, error) {
	if acc.IsEmpty() {
		return nil, fmt.Errorf("%w: %s", ledgererrors.ErrAccountNotFound, addr)
	}
	if acc.Owner != ProgramID {
		return nil, fmt.Errorf("%w: %s", ErrNotMetadata, addr)
	}
	md := new(Metadata)
	if err := rlp.DecodeBytes(acc.Data, md); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotMetadata, addr, err)
	}
	return md, nil
}

// Load reads the metadata record at addr and checks that it belongs to mint.
func Load(ctx *runtime.Context, addr, mint crypto.Address) (*Metadata, error) {
	expected, _ := Address(mint)
	if expected != addr {
		return nil, fmt.Errorf("%w: expected %s", ErrAddressMismatch, expected)
	}
	acc, err := ctx.Load(addr)
	if err != nil {
		return nil, err
	}
	md, err := Decode(addr, acc)
	if err != nil {
		return nil, err
	}
	if md.Mint != mint {
		return nil, fmt.Errorf("%w: record names %s", ErrAddressMismatch, md.Mint)
	}
	return md, nil
}

// Create allocates the metadata record for mint. The mint authority must sign.
// A collection reference starts unverified.
func Create(ctx *runtime.Context, payer, mint, mintAuthority, updateAuthority crypto.Address, name, symbol string, collection *crypto.Address) (crypto.Address, error) {
	if ctx.Program() != ProgramID {
		return crypto.Address{}, errWrongInvocationScope
	}
	if len(name) > 32 || len(symbol) > 10 {
		return crypto.Address{}, ErrNameTooLong
	}
	acc, err := ctx.Load(mint)
	if err != nil {
		return crypto.Address{}, err
	}
	m, err := token.DecodeMint(mint, acc)
	if err != nil {
		return crypto.Address{}, err
	}
	if m.MintAuthority != mintAuthority {
		return crypto.Address{}, token.ErrMintAuthority
	}
	if err := ctx.RequireSigner(mintAuthority); err != nil {
		return crypto.Address{}, err
	}

	addr, bump := Address(mint)
	recordSeeds := append(seeds(mint), []byte{bump})
	sysCtx, err := ctx.Invoke(system.ProgramID, runtime.DerivedSigner(addr, recordSeeds...))
	if err != nil {
		return crypto.Address{}, err
	}
	if err := system.CreateAccount(sysCtx, payer, addr, RecordSize, ProgramID); err != nil {
		return crypto.Address{}, err
	}

	md := &Metadata{Mint: mint, UpdateAuthority: updateAuthority, Name: name, Symbol: symbol}
	if collection != nil {
		md.Collection = &Collection{Key: *collection}
	}
	if err := store(ctx, addr, md); err != nil {
		return crypto.Address{}, err
	}
	return addr, nil
}

// VerifyCollection marks the collection reference on record as verified. The
// update authority of the collection mint's own metadata must sign.
func VerifyCollection(ctx *runtime.Context, record, collectionMint, collectionRecord, authority crypto.Address) error {
	if ctx.Program() != ProgramID {
		return errWrongInvocationScope
	}
	acc, err := ctx.Load(record)
	if err != nil {
		return err
	}
	md, err := Decode(record, acc)
	if err != nil {
		return err
	}
	if md.Collection == nil {
		return ErrNoCollection
	}
	if md.Collection.Key != collectionMint {
		return ErrCollectionMismatch
	}
	parent, err := Load(ctx, collectionRecord, collectionMint)
	if err != nil {
		return err
	}
	if parent.UpdateAuthority != authority {
		return ErrUpdateAuthority
	}
	if err := ctx.RequireSigner(authority); err != nil {
		return err
	}
	md.Collection.Verified = true
	return store(ctx, record, md)
}

func store(ctx *runtime.Context, addr crypto.Address, md *Metadata) error {
	data, err := Encode(md)
	if err != nil {
		return err
	}
	acc, err := ctx.MustLoad(addr)
	if err != nil {
		return err
	}
	acc.Data = data
	return ctx.Store(addr, acc)
}
