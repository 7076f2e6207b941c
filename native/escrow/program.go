package escrow

import (
	"fmt"

	"vaultswap/core/runtime"
	"vaultswap/core/types"
	"vaultswap/crypto"
	"vaultswap/native/common"
	"vaultswap/native/token"
)

const (
	InstructionInitEscrow   = "init_escrow"
	InstructionInitRoom     = "init_room"
	InstructionExchange     = "exchange"
	InstructionCancel       = "cancel"
	InstructionLoseExchange = "lose_exchange"
)

var (
	discInitEscrow   = common.InstructionDiscriminator(InstructionInitEscrow)
	discInitRoom     = common.InstructionDiscriminator(InstructionInitRoom)
	discExchange     = common.InstructionDiscriminator(InstructionExchange)
	discCancel       = common.InstructionDiscriminator(InstructionCancel)
	discLoseExchange = common.InstructionDiscriminator(InstructionLoseExchange)
)

// Observer is notified of every dispatched escrow instruction.
type Observer interface {
	ObserveInstruction(op string, err error)
}

// Program exposes the engine to the transaction processor.
type Program struct {
	engine   *Engine
	observer Observer
}

// NewProgram wraps engine. A nil engine gets the defaults.
func NewProgram(engine *Engine) *Program {
	if engine == nil {
		engine = NewEngine()
	}
	return &Program{engine: engine}
}

// SetObserver installs an instruction observer.
func (p *Program) SetObserver(o Observer) { p.observer = o }

// Engine returns the wrapped engine.
func (p *Program) Engine() *Engine { return p.engine }

func (*Program) ID() crypto.Address { return ProgramID }
func (*Program) Name() string       { return "escrow" }

func (p *Program) Execute(ctx *runtime.Context, data []byte) error {
	disc, payload, err := common.SplitInstruction(data)
	if err != nil {
		return err
	}
	op, err := p.dispatch(ctx, disc, payload)
	if p.observer != nil && op != "" {
		p.observer.ObserveInstruction(op, err)
	}
	return err
}

func (p *Program) dispatch(ctx *runtime.Context, disc common.Discriminator, payload []byte) (string, error) {
	switch disc {
	case discInitEscrow:
		var args CreateArgs
		if err := common.DecodeArgs(payload, &args); err != nil {
			return InstructionInitEscrow, fmt.Errorf("escrow: decode %s: %w", InstructionInitEscrow, err)
		}
		accs, err := ctx.RequireAccounts(7)
		if err != nil {
			return InstructionInitEscrow, err
		}
		_, err = p.engine.Create(ctx, VariantEscrow, CreateAccounts{
			Initializer:    accs[0],
			Mint:           accs[1],
			VaultAuthority: accs[2],
			Vault:          accs[3],
			Deposit:        accs[4],
			Receive:        accs[5],
			Record:         accs[6],
		}, args)
		return InstructionInitEscrow, err
	case discInitRoom:
		var args CreateArgs
		if err := common.DecodeArgs(payload, &args); err != nil {
			return InstructionInitRoom, fmt.Errorf("escrow: decode %s: %w", InstructionInitRoom, err)
		}
		accs, err := ctx.RequireAccounts(10)
		if err != nil {
			return InstructionInitRoom, err
		}
		_, err = p.engine.Create(ctx, VariantRoom, CreateAccounts{
			Initializer:         accs[0],
			Mint:                accs[1],
			CollectibleMint:     accs[2],
			CollectibleHolding:  accs[3],
			CollectibleMetadata: accs[4],
			VaultAuthority:      accs[5],
			Vault:               accs[6],
			Deposit:             accs[7],
			Receive:             accs[8],
			Record:              accs[9],
		}, args)
		return InstructionInitRoom, err
	case discExchange:
		accs, err := ctx.RequireAccounts(11)
		if err != nil {
			return InstructionExchange, err
		}
		_, err = p.engine.Exchange(ctx, ExchangeAccounts{
			Taker:              accs[0],
			InitializerMint:    accs[1],
			TakerMint:          accs[2],
			TakerDeposit:       accs[3],
			TakerReceive:       accs[4],
			InitializerDeposit: accs[5],
			InitializerReceive: accs[6],
			Initializer:        accs[7],
			Record:             accs[8],
			Vault:              accs[9],
			VaultAuthority:     accs[10],
		})
		return InstructionExchange, err
	case discCancel:
		accs, err := ctx.RequireAccounts(6)
		if err != nil {
			return InstructionCancel, err
		}
		_, err = p.engine.Cancel(ctx, CancelAccounts{
			Initializer:    accs[0],
			Mint:           accs[1],
			Vault:          accs[2],
			VaultAuthority: accs[3],
			Deposit:        accs[4],
			Record:         accs[5],
		})
		return InstructionCancel, err
	case discLoseExchange:
		return InstructionLoseExchange, ErrInstructionUnspecified
	default:
		return "", fmt.Errorf("%w: %x", ErrUnknownInstruction, disc)
	}
}

func newInstruction(name string, args interface{}, metas ...types.AccountMeta) (types.Instruction, error) {
	data, err := common.EncodeInstruction(name, args)
	if err != nil {
		return types.Instruction{}, err
	}
	return types.Instruction{Program: ProgramID, Accounts: metas, Data: data}, nil
}

func readonly(addr crypto.Address) types.AccountMeta {
	return types.AccountMeta{Address: addr}
}

func writable(addr crypto.Address) types.AccountMeta {
	return types.AccountMeta{Address: addr, Writable: true}
}

func signer(addr crypto.Address) types.AccountMeta {
	return types.AccountMeta{Address: addr, Signer: true, Writable: true}
}

// NewInitEscrowInstruction builds init_escrow. The authority, vault and
// record addresses are derived.
func NewInitEscrowInstruction(initializer, mint, deposit, receive crypto.Address, args CreateArgs) (types.Instruction, error) {
	record, _, err := RecordAddress(args.Identifier)
	if err != nil {
		return types.Instruction{}, err
	}
	authority, _ := VaultAuthority()
	vault, _ := token.AssociatedAddress(authority, mint)
	return newInstruction(InstructionInitEscrow, args,
		signer(initializer),
		readonly(mint),
		readonly(authority),
		writable(vault),
		writable(deposit),
		readonly(receive),
		writable(record),
	)
}

// RoomCollectible identifies the collectible presented to the room gate.
type RoomCollectible struct {
	Mint    crypto.Address
	Holding crypto.Address
}

// NewInitRoomInstruction builds init_room. The collectible metadata address is
// derived from the collectible mint.
func NewInitRoomInstruction(initializer, mint, deposit, receive crypto.Address, collectible RoomCollectible, args CreateArgs) (types.Instruction, error) {
	record, _, err := RecordAddress(args.Identifier)
	if err != nil {
		return types.Instruction{}, err
	}
	authority, _ := VaultAuthority()
	vault, _ := token.AssociatedAddress(authority, mint)
	mdAddr := metadataAddress(collectible.Mint)
	return newInstruction(InstructionInitRoom, args,
		signer(initializer),
		readonly(mint),
		readonly(collectible.Mint),
		readonly(collectible.Holding),
		readonly(mdAddr),
		readonly(authority),
		writable(vault),
		writable(deposit),
		readonly(receive),
		writable(record),
	)
}

// ExchangeParams names the taker-side inputs of an exchange; the rest is read
// from the record.
type ExchangeParams struct {
	Taker        crypto.Address
	TakerMint    crypto.Address
	TakerDeposit crypto.Address
	TakerReceive crypto.Address
}

// NewExchangeInstruction builds exchange against a decoded record.
func NewExchangeInstruction(rec *Record, initializerMint crypto.Address, p ExchangeParams) (types.Instruction, error) {
	record, _, err := RecordAddress(rec.Identifier)
	if err != nil {
		return types.Instruction{}, err
	}
	authority, _ := VaultAuthority()
	vault, _ := token.AssociatedAddress(authority, initializerMint)
	return newInstruction(InstructionExchange, nil,
		types.AccountMeta{Address: p.Taker, Signer: true},
		readonly(initializerMint),
		readonly(p.TakerMint),
		writable(p.TakerDeposit),
		writable(p.TakerReceive),
		writable(rec.InitializerDepositTokenAccount),
		writable(rec.InitializerReceiveTokenAccount),
		writable(rec.InitializerKey),
		writable(record),
		writable(vault),
		readonly(authority),
	)
}

// NewCancelInstruction builds cancel against a decoded record.
func NewCancelInstruction(rec *Record, mint crypto.Address) (types.Instruction, error) {
	record, _, err := RecordAddress(rec.Identifier)
	if err != nil {
		return types.Instruction{}, err
	}
	authority, _ := VaultAuthority()
	vault, _ := token.AssociatedAddress(authority, mint)
	return newInstruction(InstructionCancel, nil,
		signer(rec.InitializerKey),
		readonly(mint),
		writable(vault),
		readonly(authority),
		writable(rec.InitializerDepositTokenAccount),
		writable(record),
	)
}

// NewLoseExchangeInstruction builds the reserved lose_exchange instruction.
func NewLoseExchangeInstruction() (types.Instruction, error) {
	return newInstruction(InstructionLoseExchange, nil)
}
