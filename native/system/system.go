// Package system implements the lamport-holding wallet program: account
// allocation with rent-exempt funding, lamport transfers, and account drains.
package system

import (
	"fmt"

	ledgererrors "vaultswap/core/errors"
	"vaultswap/core/runtime"
	"vaultswap/core/types"
	"vaultswap/crypto"
)

// ProgramID owns every plain wallet account.
var ProgramID = crypto.ProgramID("vaultswap/system")

func requireProgram(ctx *runtime.Context) error {
	if ctx.Program() != ProgramID {
		return fmt.Errorf("system: invoked under program %s", ctx.Program())
	}
	return nil
}

// CreateAccount allocates space bytes at address, owned by owner, funded with
// the rent-exempt minimum taken from payer. Both payer and address must be
// signers of ctx. An address that already holds lamports but no data is
// topped up rather than rejected.
func CreateAccount(ctx *runtime.Context, payer, address crypto.Address, space int, owner crypto.Address) error {
	if err := requireProgram(ctx); err != nil {
		return err
	}
	if err := ctx.RequireSigner(payer); err != nil {
		return err
	}
	if err := ctx.RequireSigner(address); err != nil {
		return err
	}
	if payer == address {
		return fmt.Errorf("%w: %s pays for itself", ledgererrors.ErrAccountAlreadyInUse, address)
	}
	existing, err := ctx.Load(address)
	if err != nil {
		return err
	}
	// A bare wallet holding only lamports is adopted: the payer tops it up to
	// the rent-exempt minimum.
	var held uint64
	if !existing.IsEmpty() {
		if existing.Owner != ProgramID || len(existing.Data) != 0 || existing.Executable {
			return fmt.Errorf("%w: %s", ledgererrors.ErrAccountAlreadyInUse, address)
		}
		held = existing.Lamports
	}
	lamports := ctx.Rent().MinimumBalance(space)
	if held < lamports {
		if err := debit(ctx, payer, lamports-held); err != nil {
			return err
		}
	} else {
		lamports = held
	}
	return ctx.Store(address, &types.Account{
		Lamports: lamports,
		Owner:    owner,
		Data:     make([]byte, space),
	})
}

// Transfer moves lamports between wallets. from must sign.
func Transfer(ctx *runtime.Context, from, to crypto.Address, lamports uint64) error {
	if err := requireProgram(ctx); err != nil {
		return err
	}
	if err := ctx.RequireSigner(from); err != nil {
		return err
	}
	if from == to || lamports == 0 {
		return nil
	}
	if err := debit(ctx, from, lamports); err != nil {
		return err
	}
	return Credit(ctx, to, lamports)
}

// Drain closes account by moving all of its lamports to destination and
// deleting it. Only the program that owns account may drain it.
func Drain(ctx *runtime.Context, account, destination crypto.Address) error {
	acc, err := ctx.MustLoad(account)
	if err != nil {
		return err
	}
	if acc.Owner != ctx.Program() {
		return fmt.Errorf("%w: %s", ledgererrors.ErrIllegalOwner, account)
	}
	if account == destination {
		return fmt.Errorf("system: cannot drain %s into itself", account)
	}
	lamports := acc.Lamports
	if err := ctx.Store(account, &types.Account{}); err != nil {
		return err
	}
	return Credit(ctx, destination, lamports)
}

// Credit adds lamports to addr, creating a system-owned wallet if needed.
func Credit(ctx *runtime.Context, addr crypto.Address, lamports uint64) error {
	acc, err := ctx.Load(addr)
	if err != nil {
		return err
	}
	if acc == nil {
		acc = &types.Account{Owner: ProgramID}
	}
	if acc.Lamports > ^uint64(0)-lamports {
		return fmt.Errorf("%w: %s", ledgererrors.ErrLamportOverflow, addr)
	}
	acc.Lamports += lamports
	return ctx.Store(addr, acc)
}

func debit(ctx *runtime.Context, addr crypto.Address, lamports uint64) error {
	acc, err := ctx.MustLoad(addr)
	if err != nil {
		return err
	}
	if acc.Owner != ProgramID {
		return fmt.Errorf("%w: %s", ledgererrors.ErrIllegalOwner, addr)
	}
	if acc.Lamports < lamports {
		return fmt.Errorf("%w: %s has %d, needs %d", ledgererrors.ErrInsufficientLamports, addr, acc.Lamports, lamports)
	}
	acc.Lamports -= lamports
	return ctx.Store(addr, acc)
}
