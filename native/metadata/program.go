package metadata

import (
	"fmt"

	"vaultswap/core/runtime"
	"vaultswap/core/types"
	"vaultswap/crypto"
	"vaultswap/native/common"
)

const (
	InstructionCreate           = "create_metadata"
	InstructionVerifyCollection = "verify_collection"
)

var (
	discCreate           = common.InstructionDiscriminator(InstructionCreate)
	discVerifyCollection = common.InstructionDiscriminator(InstructionVerifyCollection)
)

// CreateArgs is the payload of create_metadata.
type CreateArgs struct {
	Name            string
	Symbol          string
	UpdateAuthority crypto.Address
	HasCollection   bool
	Collection      crypto.Address
}

type Program struct{}

func NewProgram() *Program { return &Program{} }

func (*Program) ID() crypto.Address { return ProgramID }
func (*Program) Name() string       { return "metadata" }

func (*Program) Execute(ctx *runtime.Context, data []byte) error {
	disc, payload, err := common.SplitInstruction(data)
	if err != nil {
		return err
	}
	switch disc {
	case discCreate:
		var args CreateArgs
		if err := common.DecodeArgs(payload, &args); err != nil {
			return fmt.Errorf("metadata: decode create_metadata: %w", err)
		}
		accs, err := ctx.RequireAccounts(4)
		if err != nil {
			return err
		}
		var collection *crypto.Address
		if args.HasCollection {
			collection = &args.Collection
		}
		addr, err := Create(ctx, accs[0], accs[1], accs[2], args.UpdateAuthority, args.Name, args.Symbol, collection)
		if err != nil {
			return err
		}
		if addr != accs[3] {
			return fmt.Errorf("%w: expected %s", ErrAddressMismatch, addr)
		}
		return nil
	case discVerifyCollection:
		accs, err := ctx.RequireAccounts(4)
		if err != nil {
			return err
		}
		return VerifyCollection(ctx, accs[0], accs[1], accs[2], accs[3])
	default:
		return fmt.Errorf("metadata: unknown instruction %x", disc)
	}
}

// NewCreateInstruction builds create_metadata for mint.
func NewCreateInstruction(payer, mint, mintAuthority crypto.Address, args CreateArgs) (types.Instruction, error) {
	data, err := common.EncodeInstruction(InstructionCreate, args)
	if err != nil {
		return types.Instruction{}, err
	}
	record, _ := Address(mint)
	return types.Instruction{
		Program: ProgramID,
		Accounts: []types.AccountMeta{
			{Address: payer, Signer: true, Writable: true},
			{Address: mint},
			{Address: mintAuthority, Signer: true},
			{Address: record, Writable: true},
		},
		Data: data,
	}, nil
}

// NewVerifyCollectionInstruction builds verify_collection for the record of
// mint against collectionMint.
func NewVerifyCollectionInstruction(mint, collectionMint, authority crypto.Address) (types.Instruction, error) {
	data, err := common.EncodeInstruction(InstructionVerifyCollection, nil)
	if err != nil {
		return types.Instruction{}, err
	}
	record, _ := Address(mint)
	collectionRecord, _ := Address(collectionMint)
	return types.Instruction{
		Program: ProgramID,
		Accounts: []types.AccountMeta{
			{Address: record, Writable: true},
			{Address: collectionMint},
			{Address: collectionRecord},
			{Address: authority, Signer: true},
		},
		Data: data,
	}, nil
}
