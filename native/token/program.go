package token

import (
	"fmt"

	"vaultswap/core/runtime"
	"vaultswap/core/types"
	"vaultswap/crypto"
	"vaultswap/native/common"
)

const (
	InstructionCreateMint       = "create_mint"
	InstructionCreateAccount    = "create_account"
	InstructionCreateAssociated = "create_associated"
	InstructionMintTo           = "mint_to"
	InstructionTransferChecked  = "transfer_checked"
	InstructionCloseAccount     = "close_account"
)

var (
	discCreateMint       = common.InstructionDiscriminator(InstructionCreateMint)
	discCreateAccount    = common.InstructionDiscriminator(InstructionCreateAccount)
	discCreateAssociated = common.InstructionDiscriminator(InstructionCreateAssociated)
	discMintTo           = common.InstructionDiscriminator(InstructionMintTo)
	discTransferChecked  = common.InstructionDiscriminator(InstructionTransferChecked)
	discCloseAccount     = common.InstructionDiscriminator(InstructionCloseAccount)
)

type CreateMintArgs struct {
	Decimals      uint8
	MintAuthority crypto.Address
}

type AmountArgs struct {
	Amount uint64
}

type TransferCheckedArgs struct {
	Amount   uint64
	Decimals uint8
}

// Program dispatches token instructions.
type Program struct{}

func NewProgram() *Program { return &Program{} }

func (*Program) ID() crypto.Address { return ProgramID }
func (*Program) Name() string       { return "token" }

func (*Program) Execute(ctx *runtime.Context, data []byte) error {
	disc, payload, err := common.SplitInstruction(data)
	if err != nil {
		return err
	}
	switch disc {
	case discCreateMint:
		var args CreateMintArgs
		if err := common.DecodeArgs(payload, &args); err != nil {
			return fmt.Errorf("token: decode create_mint: %w", err)
		}
		accs, err := ctx.RequireAccounts(2)
		if err != nil {
			return err
		}
		return CreateMint(ctx, accs[0], accs[1], args.Decimals, args.MintAuthority)
	case discCreateAccount:
		accs, err := ctx.RequireAccounts(4)
		if err != nil {
			return err
		}
		return CreateAccount(ctx, accs[0], accs[1], accs[2], accs[3])
	case discCreateAssociated:
		accs, err := ctx.RequireAccounts(4)
		if err != nil {
			return err
		}
		expected, _ := AssociatedAddress(accs[2], accs[3])
		if expected != accs[1] {
			return fmt.Errorf("token: associated address mismatch: expected %s", expected)
		}
		_, err = CreateAssociatedAccount(ctx, accs[0], accs[2], accs[3])
		return err
	case discMintTo:
		var args AmountArgs
		if err := common.DecodeArgs(payload, &args); err != nil {
			return fmt.Errorf("token: decode mint_to: %w", err)
		}
		accs, err := ctx.RequireAccounts(3)
		if err != nil {
			return err
		}
		return MintTo(ctx, accs[0], accs[1], accs[2], args.Amount)
	case discTransferChecked:
		var args TransferCheckedArgs
		if err := common.DecodeArgs(payload, &args); err != nil {
			return fmt.Errorf("token: decode transfer_checked: %w", err)
		}
		accs, err := ctx.RequireAccounts(4)
		if err != nil {
			return err
		}
		return TransferChecked(ctx, accs[0], accs[1], accs[2], accs[3], args.Amount, args.Decimals)
	case discCloseAccount:
		accs, err := ctx.RequireAccounts(3)
		if err != nil {
			return err
		}
		return CloseAccount(ctx, accs[0], accs[1], accs[2])
	default:
		return fmt.Errorf("token: unknown instruction %x", disc)
	}
}

func newInstruction(name string, args interface{}, metas ...types.AccountMeta) (types.Instruction, error) {
	data, err := common.EncodeInstruction(name, args)
	if err != nil {
		return types.Instruction{}, err
	}
	return types.Instruction{Program: ProgramID, Accounts: metas, Data: data}, nil
}

func NewCreateMintInstruction(payer, mint crypto.Address, decimals uint8, authority crypto.Address) (types.Instruction, error) {
	return newInstruction(InstructionCreateMint, CreateMintArgs{Decimals: decimals, MintAuthority: authority},
		types.AccountMeta{Address: payer, Signer: true, Writable: true},
		types.AccountMeta{Address: mint, Signer: true, Writable: true},
	)
}

func NewCreateAssociatedInstruction(payer, owner, mint crypto.Address) (types.Instruction, error) {
	associated, _ := AssociatedAddress(owner, mint)
	return newInstruction(InstructionCreateAssociated, nil,
		types.AccountMeta{Address: payer, Signer: true, Writable: true},
		types.AccountMeta{Address: associated, Writable: true},
		types.AccountMeta{Address: owner},
		types.AccountMeta{Address: mint},
	)
}

func NewMintToInstruction(mint, destination, authority crypto.Address, amount uint64) (types.Instruction, error) {
	return newInstruction(InstructionMintTo, AmountArgs{Amount: amount},
		types.AccountMeta{Address: mint, Writable: true},
		types.AccountMeta{Address: destination, Writable: true},
		types.AccountMeta{Address: authority, Signer: true},
	)
}

func NewTransferCheckedInstruction(source, mint, destination, authority crypto.Address, amount uint64, decimals uint8) (types.Instruction, error) {
	return newInstruction(InstructionTransferChecked, TransferCheckedArgs{Amount: amount, Decimals: decimals},
		types.AccountMeta{Address: source, Writable: true},
		types.AccountMeta{Address: mint},
		types.AccountMeta{Address: destination, Writable: true},
		types.AccountMeta{Address: authority, Signer: true},
	)
}

func NewCloseAccountInstruction(account, destination, authority crypto.Address) (types.Instruction, error) {
	return newInstruction(InstructionCloseAccount, nil,
		types.AccountMeta{Address: account, Writable: true},
		types.AccountMeta{Address: destination, Writable: true},
		types.AccountMeta{Address: authority, Signer: true},
	)
}

func NewCreateAccountInstruction(payer, account, owner, mint crypto.Address) (types.Instruction, error) {
	return newInstruction(InstructionCreateAccount, nil,
		types.AccountMeta{Address: payer, Signer: true, Writable: true},
		types.AccountMeta{Address: account, Signer: true, Writable: true},
		types.AccountMeta{Address: owner},
		types.AccountMeta{Address: mint},
	)
}
