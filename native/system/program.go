package system

import (
	"fmt"

	"vaultswap/core/runtime"
	"vaultswap/core/types"
	"vaultswap/crypto"
	"vaultswap/native/common"
)

const (
	InstructionCreateAccount = "create_account"
	InstructionTransfer      = "transfer"
)

var (
	discCreateAccount = common.InstructionDiscriminator(InstructionCreateAccount)
	discTransfer      = common.InstructionDiscriminator(InstructionTransfer)
)

// CreateAccountArgs is the payload of create_account.
type CreateAccountArgs struct {
	Space uint64
	Owner crypto.Address
}

// TransferArgs is the payload of transfer.
type TransferArgs struct {
	Lamports uint64
}

// Program dispatches system instructions.
type Program struct{}

func NewProgram() *Program { return &Program{} }

func (*Program) ID() crypto.Address { return ProgramID }
func (*Program) Name() string       { return "system" }

func (*Program) Execute(ctx *runtime.Context, data []byte) error {
	disc, payload, err := common.SplitInstruction(data)
	if err != nil {
		return err
	}
	switch disc {
	case discCreateAccount:
		var args CreateAccountArgs
		if err := common.DecodeArgs(payload, &args); err != nil {
			return fmt.Errorf("system: decode create_account: %w", err)
		}
		accounts, err := ctx.RequireAccounts(2)
		if err != nil {
			return err
		}
		return CreateAccount(ctx, accounts[0], accounts[1], int(args.Space), args.Owner)
	case discTransfer:
		var args TransferArgs
		if err := common.DecodeArgs(payload, &args); err != nil {
			return fmt.Errorf("system: decode transfer: %w", err)
		}
		accounts, err := ctx.RequireAccounts(2)
		if err != nil {
			return err
		}
		return Transfer(ctx, accounts[0], accounts[1], args.Lamports)
	default:
		return fmt.Errorf("system: unknown instruction %x", disc)
	}
}

// NewCreateAccountInstruction allocates a fresh account signed by both parties.
func NewCreateAccountInstruction(payer, account crypto.Address, space uint64, owner crypto.Address) (types.Instruction, error) {
	data, err := common.EncodeInstruction(InstructionCreateAccount, CreateAccountArgs{Space: space, Owner: owner})
	if err != nil {
		return types.Instruction{}, err
	}
	return types.Instruction{
		Program: ProgramID,
		Accounts: []types.AccountMeta{
			{Address: payer, Signer: true, Writable: true},
			{Address: account, Signer: true, Writable: true},
		},
		Data: data,
	}, nil
}

// NewTransferInstruction moves lamports between wallets.
func NewTransferInstruction(from, to crypto.Address, lamports uint64) (types.Instruction, error) {
	data, err := common.EncodeInstruction(InstructionTransfer, TransferArgs{Lamports: lamports})
	if err != nil {
		return types.Instruction{}, err
	}
	return types.Instruction{
		Program: ProgramID,
		Accounts: []types.AccountMeta{
			{Address: from, Signer: true, Writable: true},
			{Address: to, Writable: true},
		},
		Data: data,
	}, nil
}
