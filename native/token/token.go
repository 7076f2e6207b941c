// Package token implements fungible mints and token accounts with checked
// transfers and closures. Every entry point must run under a context whose
// program is ProgramID, obtained through runtime.Context.Invoke when called
// from another program.
package token

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"vaultswap/core/runtime"
	"vaultswap/core/types"
	"vaultswap/crypto"
	"vaultswap/native/system"
)

// ProgramID owns every mint and token account.
var ProgramID = crypto.ProgramID("vaultswap/token")

var (
	ErrMintMismatch      = errors.New("token: account mint mismatch")
	ErrDecimalsMismatch  = errors.New("token: decimals mismatch")
	ErrOwnerMismatch     = errors.New("token: authority is not the account owner")
	ErrInsufficientFunds = errors.New("token: insufficient funds")
	ErrOverflow          = errors.New("token: amount overflow")
	ErrNonZeroBalance    = errors.New("token: cannot close account with non-zero balance")
	ErrMintAuthority     = errors.New("token: invalid mint authority")
	ErrWrongProgram      = errors.New("token: invoked outside the token program")
	ErrCustodyLocked     = errors.New("token: derived owner must sign")
)

func requireProgram(ctx *runtime.Context) error {
	if ctx.Program() != ProgramID {
		return fmt.Errorf("%w: %s", ErrWrongProgram, ctx.Program())
	}
	return nil
}

// requireCustodian guards accounts held by program-derived owners. Those
// accounts can only be opened or credited while the owner signs, which only
// the deriving program can arrange.
func requireCustodian(ctx *runtime.Context, owner crypto.Address) error {
	if crypto.IsOnCurve(owner) || ctx.IsSigner(owner) {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrCustodyLocked, owner)
}

// AssociatedAddress is the canonical token account of owner for mint.
func AssociatedAddress(owner, mint crypto.Address) (crypto.Address, uint8) {
	return crypto.MustFindProgramAddress(associatedSeeds(owner, mint), ProgramID)
}

func associatedSeeds(owner, mint crypto.Address) [][]byte {
	return [][]byte{owner.Bytes(), ProgramID.Bytes(), mint.Bytes()}
}

// LoadMint reads a mint through ctx.
func LoadMint(ctx *runtime.Context, addr crypto.Address) (*Mint, error) {
	acc, err := ctx.Load(addr)
	if err != nil {
		return nil, err
	}
	return DecodeMint(addr, acc)
}

// LoadAccount reads a token account through ctx.
func LoadAccount(ctx *runtime.Context, addr crypto.Address) (*Account, error) {
	acc, err := ctx.Load(addr)
	if err != nil {
		return nil, err
	}
	return DecodeAccount(addr, acc)
}

func storeData(ctx *runtime.Context, addr crypto.Address, data []byte) error {
	acc, err := ctx.MustLoad(addr)
	if err != nil {
		return err
	}
	acc.Data = data
	return ctx.Store(addr, acc)
}

func storeAccount(ctx *runtime.Context, addr crypto.Address, a *Account) error {
	data, err := EncodeAccount(a)
	if err != nil {
		return err
	}
	return storeData(ctx, addr, data)
}

func storeMint(ctx *runtime.Context, addr crypto.Address, m *Mint) error {
	data, err := EncodeMint(m)
	if err != nil {
		return err
	}
	return storeData(ctx, addr, data)
}

func allocate(ctx *runtime.Context, payer, address crypto.Address, space int, signers ...runtime.Signer) error {
	sysCtx, err := ctx.Invoke(system.ProgramID, signers...)
	if err != nil {
		return err
	}
	return system.CreateAccount(sysCtx, payer, address, space, ProgramID)
}

// CreateMint allocates and initializes a mint. The mint address must sign.
func CreateMint(ctx *runtime.Context, payer, mint crypto.Address, decimals uint8, authority crypto.Address) error {
	if err := requireProgram(ctx); err != nil {
		return err
	}
	if err := allocate(ctx, payer, mint, MintSize); err != nil {
		return err
	}
	return storeMint(ctx, mint, &Mint{Decimals: decimals, MintAuthority: authority})
}

// CreateAccount allocates a token account at a signer-controlled address.
func CreateAccount(ctx *runtime.Context, payer, account, owner, mint crypto.Address) error {
	if err := requireProgram(ctx); err != nil {
		return err
	}
	if _, err := LoadMint(ctx, mint); err != nil {
		return err
	}
	if err := requireCustodian(ctx, owner); err != nil {
		return err
	}
	if err := allocate(ctx, payer, account, AccountSize); err != nil {
		return err
	}
	return storeAccount(ctx, account, &Account{Mint: mint, Owner: owner})
}

// CreateAssociatedAccount allocates the associated token account of owner for
// mint. Fails with ErrAccountAlreadyInUse when it already exists.
func CreateAssociatedAccount(ctx *runtime.Context, payer, owner, mint crypto.Address) (crypto.Address, error) {
	if err := requireProgram(ctx); err != nil {
		return crypto.Address{}, err
	}
	if _, err := LoadMint(ctx, mint); err != nil {
		return crypto.Address{}, err
	}
	if err := requireCustodian(ctx, owner); err != nil {
		return crypto.Address{}, err
	}
	address, bump := AssociatedAddress(owner, mint)
	seeds := append(associatedSeeds(owner, mint), []byte{bump})
	if err := allocate(ctx, payer, address, AccountSize, runtime.DerivedSigner(address, seeds...)); err != nil {
		return crypto.Address{}, err
	}
	if err := storeAccount(ctx, address, &Account{Mint: mint, Owner: owner}); err != nil {
		return crypto.Address{}, err
	}
	return address, nil
}

// MintTo credits amount of mint to destination. The mint authority must sign.
func MintTo(ctx *runtime.Context, mint, destination, authority crypto.Address, amount uint64) error {
	if err := requireProgram(ctx); err != nil {
		return err
	}
	m, err := LoadMint(ctx, mint)
	if err != nil {
		return err
	}
	if m.MintAuthority != authority {
		return ErrMintAuthority
	}
	if err := ctx.RequireSigner(authority); err != nil {
		return err
	}
	dst, err := LoadAccount(ctx, destination)
	if err != nil {
		return err
	}
	if dst.Mint != mint {
		return fmt.Errorf("%w: %s", ErrMintMismatch, destination)
	}
	if err := requireCustodian(ctx, dst.Owner); err != nil {
		return err
	}
	supply, err := addChecked(m.Supply, amount)
	if err != nil {
		return err
	}
	balance, err := addChecked(dst.Amount, amount)
	if err != nil {
		return err
	}
	m.Supply = supply
	dst.Amount = balance
	if err := storeMint(ctx, mint, m); err != nil {
		return err
	}
	return storeAccount(ctx, destination, dst)
}

// TransferChecked moves amount of mint from source to destination. authority
// must own source and be a signer of ctx; decimals must match the mint.
func TransferChecked(ctx *runtime.Context, source, mint, destination, authority crypto.Address, amount uint64, decimals uint8) error {
	if err := requireProgram(ctx); err != nil {
		return err
	}
	m, err := LoadMint(ctx, mint)
	if err != nil {
		return err
	}
	if m.Decimals != decimals {
		return fmt.Errorf("%w: mint %s has %d, got %d", ErrDecimalsMismatch, mint, m.Decimals, decimals)
	}
	src, err := LoadAccount(ctx, source)
	if err != nil {
		return err
	}
	dst, err := LoadAccount(ctx, destination)
	if err != nil {
		return err
	}
	if src.Mint != mint {
		return fmt.Errorf("%w: %s", ErrMintMismatch, source)
	}
	if dst.Mint != mint {
		return fmt.Errorf("%w: %s", ErrMintMismatch, destination)
	}
	if src.Owner != authority {
		return fmt.Errorf("%w: %s", ErrOwnerMismatch, source)
	}
	if err := ctx.RequireSigner(authority); err != nil {
		return err
	}
	if err := requireCustodian(ctx, dst.Owner); err != nil {
		return err
	}
	if src.Amount < amount {
		return fmt.Errorf("%w: %s has %d, needs %d", ErrInsufficientFunds, source, src.Amount, amount)
	}
	if source == destination {
		return nil
	}
	credited, err := addChecked(dst.Amount, amount)
	if err != nil {
		return err
	}
	src.Amount -= amount
	dst.Amount = credited
	if err := storeAccount(ctx, source, src); err != nil {
		return err
	}
	return storeAccount(ctx, destination, dst)
}

// CloseAccount deletes an empty token account and sends its lamports to
// destination. authority must own the account and be a signer of ctx.
func CloseAccount(ctx *runtime.Context, account, destination, authority crypto.Address) error {
	if err := requireProgram(ctx); err != nil {
		return err
	}
	acc, err := LoadAccount(ctx, account)
	if err != nil {
		return err
	}
	if acc.Owner != authority {
		return fmt.Errorf("%w: %s", ErrOwnerMismatch, account)
	}
	if err := ctx.RequireSigner(authority); err != nil {
		return err
	}
	if acc.Amount != 0 {
		return fmt.Errorf("%w: %s holds %d", ErrNonZeroBalance, account, acc.Amount)
	}
	return system.Drain(ctx, account, destination)
}

func addChecked(a, b uint64) (uint64, error) {
	sum := new(uint256.Int).Add(uint256.NewInt(a), uint256.NewInt(b))
	if !sum.IsUint64() {
		return 0, ErrOverflow
	}
	return sum.Uint64(), nil
}

// Balance is a convenience for tests and RPC: the amount held at addr, read
// straight from state.
func Balance(acc *types.Account, addr crypto.Address) (uint64, error) {
	a, err := DecodeAccount(addr, acc)
	if err != nil {
		return 0, err
	}
	return a.Amount, nil
}
