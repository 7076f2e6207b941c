// Package escrow implements the two-party swap program. An initializer locks
// an amount of one asset in a vault controlled by a derived authority; a taker
// completes the swap by paying the requested amount of another asset, or the
// initializer cancels and recovers the deposit. The room variant adds a
// collectible gate, a fixed stake and a lucky multiplier.
package escrow

import (
	"fmt"

	"vaultswap/core/runtime"
	"vaultswap/crypto"
	"vaultswap/native/common"
	"vaultswap/native/system"
	"vaultswap/native/token"
)

// CreateArgs are the arguments of init_escrow and init_room.
type CreateArgs struct {
	InitializerAmount uint64
	TakerAmount       uint64
	Identifier        string
}

// CreateAccounts lists the accounts of a create. The collectible fields are
// only read for rooms.
type CreateAccounts struct {
	Initializer         crypto.Address
	Mint                crypto.Address
	CollectibleMint     crypto.Address
	CollectibleHolding  crypto.Address
	CollectibleMetadata crypto.Address
	VaultAuthority      crypto.Address
	Vault               crypto.Address
	Deposit             crypto.Address
	Receive             crypto.Address
	Record              crypto.Address
}

// ExchangeAccounts lists the accounts of an exchange.
type ExchangeAccounts struct {
	Taker              crypto.Address
	InitializerMint    crypto.Address
	TakerMint          crypto.Address
	TakerDeposit       crypto.Address
	TakerReceive       crypto.Address
	InitializerDeposit crypto.Address
	InitializerReceive crypto.Address
	Initializer        crypto.Address
	Record             crypto.Address
	Vault              crypto.Address
	VaultAuthority     crypto.Address
}

// CancelAccounts lists the accounts of a cancel.
type CancelAccounts struct {
	Initializer    crypto.Address
	Mint           crypto.Address
	Vault          crypto.Address
	VaultAuthority crypto.Address
	Deposit        crypto.Address
	Record         crypto.Address
}

// Engine carries the escrow lifecycle rules.
type Engine struct {
	policy Policy
	gate   *Gate
	pauses common.PauseView
}

// NewEngine returns an engine with the default room policy and no pauses.
func NewEngine() *Engine {
	policy := DefaultPolicy()
	return &Engine{policy: policy, gate: NewGate(policy)}
}

// SetPolicy replaces the room policy.
func (e *Engine) SetPolicy(policy Policy) {
	if e == nil {
		return
	}
	e.policy = policy
	e.gate = NewGate(policy)
}

// Policy returns the active room policy.
func (e *Engine) Policy() Policy {
	if e == nil {
		return DefaultPolicy()
	}
	return e.policy
}

// SetPauses configures the pause view consulted before creating offers.
// Exchange and cancel are never paused so deposits cannot be stranded.
func (e *Engine) SetPauses(p common.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

func requireSigner(ctx *runtime.Context, addr crypto.Address) error {
	if !ctx.IsSigner(addr) {
		return fmt.Errorf("%w: %s", ErrMissingSigner, addr)
	}
	return nil
}

// Create opens a new offer of the given variant.
func (e *Engine) Create(ctx *runtime.Context, variant Variant, accs CreateAccounts, args CreateArgs) (*Record, error) {
	if err := common.Guard(e.pauses, variant.Module()); err != nil {
		return nil, err
	}
	if err := validateIdentifier(args.Identifier); err != nil {
		return nil, err
	}
	if err := requireSigner(ctx, accs.Initializer); err != nil {
		return nil, err
	}

	authority, bump := VaultAuthority()
	if accs.VaultAuthority != authority {
		return nil, mismatch("vault_authority", authority, accs.VaultAuthority)
	}
	record, recordBump, err := RecordAddress(args.Identifier)
	if err != nil {
		return nil, err
	}
	if accs.Record != record {
		return nil, mismatch("escrow_state", record, accs.Record)
	}
	vault, _ := token.AssociatedAddress(authority, accs.Mint)
	if accs.Vault != vault {
		return nil, mismatch("vault", vault, accs.Vault)
	}

	mint, err := token.LoadMint(ctx, accs.Mint)
	if err != nil {
		return nil, err
	}
	deposit, err := token.LoadAccount(ctx, accs.Deposit)
	if err != nil {
		return nil, err
	}
	if deposit.Mint != accs.Mint {
		return nil, mismatch("initializer_deposit_token_account.mint", accs.Mint, deposit.Mint)
	}
	if deposit.Amount < args.InitializerAmount {
		return nil, fmt.Errorf("%w: deposit holds %d, offer needs %d", ErrInsufficientFunds, deposit.Amount, args.InitializerAmount)
	}
	if _, err := token.LoadAccount(ctx, accs.Receive); err != nil {
		return nil, err
	}

	rec := &Record{
		Variant: variant,
		EscrowState: EscrowState{
			Identifier:                     args.Identifier,
			InitializerKey:                 accs.Initializer,
			InitializerDepositTokenAccount: accs.Deposit,
			InitializerReceiveTokenAccount: accs.Receive,
			InitializerAmount:              args.InitializerAmount,
			TakerAmount:                    args.TakerAmount,
			VaultAuthorityBump:             bump,
		},
	}

	var draw *LuckyDraw
	if variant == VariantRoom {
		if args.InitializerAmount != e.policy.RequiredStake {
			return nil, fmt.Errorf("%w: got %d, want %d", ErrStakeMismatch, args.InitializerAmount, e.policy.RequiredStake)
		}
		collection, err := e.gate.Check(ctx, accs.Initializer, accs.CollectibleMint, accs.CollectibleHolding, accs.CollectibleMetadata)
		if err != nil {
			return nil, err
		}
		result, err := e.policy.ApplyMultiplier(collection, ctx.Clock().UnixTimestamp, args.TakerAmount)
		if err != nil {
			return nil, err
		}
		draw = &result
		rec.TakerAmount = result.TakerAmount
		rec.CollectibleMint = accs.CollectibleMint
	}

	existing, err := ctx.Load(record)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.Owner == ProgramID {
		return nil, fmt.Errorf("%w: %q", ErrIdentifierInUse, args.Identifier)
	}

	// Allocate the record under its derived address and persist it before any
	// funds move.
	seeds := append(recordSeeds(args.Identifier), []byte{recordBump})
	sysCtx, err := ctx.Invoke(system.ProgramID, runtime.DerivedSigner(record, seeds...))
	if err != nil {
		return nil, err
	}
	if err := system.CreateAccount(sysCtx, accs.Initializer, record, variant.RecordSize(), ProgramID); err != nil {
		return nil, err
	}
	if err := storeRecord(ctx, record, rec); err != nil {
		return nil, err
	}

	// The authority co-signs so the token program lets the vault be opened
	// and credited.
	tokCtx, err := ctx.Invoke(token.ProgramID, runtime.DerivedSigner(authority, AuthoritySeeds(bump)...))
	if err != nil {
		return nil, err
	}
	if _, err := token.CreateAssociatedAccount(tokCtx, accs.Initializer, authority, accs.Mint); err != nil {
		return nil, err
	}
	if err := token.TransferChecked(tokCtx, accs.Deposit, accs.Mint, vault, accs.Initializer, args.InitializerAmount, mint.Decimals); err != nil {
		return nil, err
	}

	ctx.Emit(createdEvent(record, rec, accs.Mint, vault, draw))
	ctx.Logger().Debug("escrow created",
		"variant", variant.String(),
		"identifier", rec.Identifier,
		"initializer", rec.InitializerKey.String(),
		"initializerAmount", rec.InitializerAmount,
		"takerAmount", rec.TakerAmount)
	return rec, nil
}

// Exchange completes an offer. The taker pays the initializer, receives the
// vault contents, and the vault and record are closed to the initializer.
func (e *Engine) Exchange(ctx *runtime.Context, accs ExchangeAccounts) (*Record, error) {
	if err := requireSigner(ctx, accs.Taker); err != nil {
		return nil, err
	}
	rec, err := loadRecord(ctx, accs.Record)
	if err != nil {
		return nil, err
	}
	takerDeposit, err := token.LoadAccount(ctx, accs.TakerDeposit)
	if err != nil {
		return nil, err
	}
	if takerDeposit.Amount < rec.TakerAmount {
		return nil, fmt.Errorf("%w: taker holds %d, offer needs %d", ErrInsufficientFunds, takerDeposit.Amount, rec.TakerAmount)
	}
	if rec.InitializerDepositTokenAccount != accs.InitializerDeposit {
		return nil, mismatch("initializer_deposit_token_account", rec.InitializerDepositTokenAccount, accs.InitializerDeposit)
	}
	if rec.InitializerReceiveTokenAccount != accs.InitializerReceive {
		return nil, mismatch("initializer_receive_token_account", rec.InitializerReceiveTokenAccount, accs.InitializerReceive)
	}
	if rec.InitializerKey != accs.Initializer {
		return nil, mismatch("initializer", rec.InitializerKey, accs.Initializer)
	}
	authority, err := checkCustody(rec, accs.InitializerMint, accs.Vault, accs.VaultAuthority)
	if err != nil {
		return nil, err
	}
	initMint, err := token.LoadMint(ctx, accs.InitializerMint)
	if err != nil {
		return nil, err
	}
	takerMint, err := token.LoadMint(ctx, accs.TakerMint)
	if err != nil {
		return nil, err
	}

	tokCtx, err := ctx.Invoke(token.ProgramID)
	if err != nil {
		return nil, err
	}
	if err := token.TransferChecked(tokCtx, accs.TakerDeposit, accs.TakerMint, accs.InitializerReceive, accs.Taker, rec.TakerAmount, takerMint.Decimals); err != nil {
		return nil, err
	}
	authCtx, err := ctx.Invoke(token.ProgramID, runtime.DerivedSigner(authority, AuthoritySeeds(rec.VaultAuthorityBump)...))
	if err != nil {
		return nil, err
	}
	if err := token.TransferChecked(authCtx, accs.Vault, accs.InitializerMint, accs.TakerReceive, authority, rec.InitializerAmount, initMint.Decimals); err != nil {
		return nil, err
	}
	if err := token.CloseAccount(authCtx, accs.Vault, accs.Initializer, authority); err != nil {
		return nil, err
	}
	if err := system.Drain(ctx, accs.Record, accs.Initializer); err != nil {
		return nil, err
	}

	ctx.Emit(exchangedEvent(accs.Record, rec, accs.Taker))
	ctx.Logger().Debug("escrow exchanged",
		"identifier", rec.Identifier,
		"taker", accs.Taker.String())
	return rec, nil
}

// Cancel unwinds an offer, returning the vault contents to the stored deposit
// account and closing the vault and record to the initializer.
func (e *Engine) Cancel(ctx *runtime.Context, accs CancelAccounts) (*Record, error) {
	rec, err := loadRecord(ctx, accs.Record)
	if err != nil {
		return nil, err
	}
	if rec.InitializerKey != accs.Initializer {
		return nil, fmt.Errorf("%w: %s", ErrUnauthorized, accs.Initializer)
	}
	if err := requireSigner(ctx, accs.Initializer); err != nil {
		return nil, err
	}
	if rec.InitializerDepositTokenAccount != accs.Deposit {
		return nil, mismatch("initializer_deposit_token_account", rec.InitializerDepositTokenAccount, accs.Deposit)
	}
	authority, err := checkCustody(rec, accs.Mint, accs.Vault, accs.VaultAuthority)
	if err != nil {
		return nil, err
	}
	mint, err := token.LoadMint(ctx, accs.Mint)
	if err != nil {
		return nil, err
	}

	authCtx, err := ctx.Invoke(token.ProgramID, runtime.DerivedSigner(authority, AuthoritySeeds(rec.VaultAuthorityBump)...))
	if err != nil {
		return nil, err
	}
	if err := token.TransferChecked(authCtx, accs.Vault, accs.Mint, accs.Deposit, authority, rec.InitializerAmount, mint.Decimals); err != nil {
		return nil, err
	}
	if err := token.CloseAccount(authCtx, accs.Vault, accs.Initializer, authority); err != nil {
		return nil, err
	}
	if err := system.Drain(ctx, accs.Record, accs.Initializer); err != nil {
		return nil, err
	}

	ctx.Emit(cancelledEvent(accs.Record, rec))
	ctx.Logger().Debug("escrow cancelled", "identifier", rec.Identifier)
	return rec, nil
}

// checkCustody re-derives the authority from the stored bump and confirms the
// supplied authority and vault.
func checkCustody(rec *Record, mint, vault, suppliedAuthority crypto.Address) (crypto.Address, error) {
	authority, err := authorityFromBump(rec.VaultAuthorityBump)
	if err != nil {
		return crypto.Address{}, mismatch("vault_authority", crypto.Address{}, suppliedAuthority)
	}
	if authority != suppliedAuthority {
		return crypto.Address{}, mismatch("vault_authority", authority, suppliedAuthority)
	}
	expected, _ := token.AssociatedAddress(authority, mint)
	if expected != vault {
		return crypto.Address{}, mismatch("vault", expected, vault)
	}
	return authority, nil
}

// loadRecord resolves a live record owned by the program.
func loadRecord(ctx *runtime.Context, addr crypto.Address) (*Record, error) {
	acc, err := ctx.Load(addr)
	if err != nil {
		return nil, err
	}
	if acc.IsEmpty() || acc.Owner != ProgramID {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, addr)
	}
	rec, err := UnmarshalRecord(acc.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, addr)
	}
	return rec, nil
}

func storeRecord(ctx *runtime.Context, addr crypto.Address, rec *Record) error {
	data, err := rec.MarshalBinary()
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

// ReadRecord decodes a record from a raw account owner and data, for
// callers outside an instruction such as RPC.
func ReadRecord(owner crypto.Address, data []byte) (*Record, error) {
	if owner != ProgramID {
		return nil, ErrRecordNotFound
	}
	return UnmarshalRecord(data)
}
