package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	ledgererrors "vaultswap/core/errors"
	"vaultswap/core/events"
	"vaultswap/core/runtime"
	"vaultswap/core/state"
	"vaultswap/core/types"
	"vaultswap/crypto"
	"vaultswap/native/escrow"
	"vaultswap/storage/trie"
)

// StateProcessor executes transactions against the account trie. Each
// transaction is atomic: it either commits every instruction or leaves the
// trie at its previous root and publishes nothing.
type StateProcessor struct {
	Trie     *trie.Trie
	state    *state.Manager
	programs map[crypto.Address]runtime.Program
	rent     runtime.Rent
	emitter  events.Emitter
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewStateProcessor opens a processor over tr with the given programs.
func NewStateProcessor(tr *trie.Trie, programs ...runtime.Program) *StateProcessor {
	sp := &StateProcessor{
		Trie:     tr,
		state:    state.NewManager(tr),
		programs: make(map[crypto.Address]runtime.Program),
		rent:     runtime.DefaultRent(),
		emitter:  events.NoopEmitter{},
		logger:   slog.Default(),
		tracer:   otel.Tracer("vaultswap/core"),
	}
	for _, p := range programs {
		sp.Register(p)
	}
	return sp
}

// Register adds or replaces a program.
func (sp *StateProcessor) Register(p runtime.Program) {
	if p == nil {
		return
	}
	sp.programs[p.ID()] = p
}

// Program returns the registered program for id.
func (sp *StateProcessor) Program(id crypto.Address) (runtime.Program, bool) {
	p, ok := sp.programs[id]
	return p, ok
}

// SetEmitter sets where committed events are published.
func (sp *StateProcessor) SetEmitter(e events.Emitter) {
	if e == nil {
		e = events.NoopEmitter{}
	}
	sp.emitter = e
}

// SetLogger replaces the processor logger.
func (sp *StateProcessor) SetLogger(l *slog.Logger) {
	if l != nil {
		sp.logger = l
	}
}

// State exposes the account manager for reads and genesis seeding.
func (sp *StateProcessor) State() *state.Manager { return sp.state }

// CurrentRoot returns the last committed state root.
func (sp *StateProcessor) CurrentRoot() common.Hash { return sp.Trie.Root() }

// Commit persists pending state at slot.
func (sp *StateProcessor) Commit(slot uint64) (common.Hash, error) {
	return sp.state.Commit(slot)
}

// ErrorKind classifies a transaction failure for receipts and RPC.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, types.ErrInvalidSignature),
		errors.Is(err, types.ErrSignatureCount),
		errors.Is(err, ledgererrors.ErrMissingSignature):
		return string(escrow.KindAuthorization)
	case errors.Is(err, ledgererrors.ErrUnknownProgram),
		errors.Is(err, types.ErrNoInstructions),
		errors.Is(err, ledgererrors.ErrAccountNotDeclared),
		errors.Is(err, ledgererrors.ErrAccountNotWritable),
		errors.Is(err, ledgererrors.ErrInvalidInstructionArg):
		return string(escrow.KindValidation)
	default:
		return string(escrow.KindOf(err))
	}
}

// ApplyTransaction verifies and executes tx at clock. A failed transaction
// still yields a receipt; the returned error is the execution failure.
func (sp *StateProcessor) ApplyTransaction(ctx context.Context, tx *types.Transaction, clock runtime.Clock) (*types.Receipt, error) {
	hash, err := tx.Hash()
	if err != nil {
		return nil, fmt.Errorf("hash transaction: %w", err)
	}
	ctx, span := sp.tracer.Start(ctx, "core.apply_transaction",
		trace.WithAttributes(
			attribute.Int64("slot", int64(clock.Slot)),
			attribute.Int("instructions", len(tx.Instructions)),
		))
	defer span.End()

	receipt := &types.Receipt{TxHash: hash, Slot: clock.Slot, BlockTime: clock.UnixTimestamp}
	buffer := &events.Buffer{}
	execErr := sp.execute(ctx, tx, clock, buffer)
	if execErr != nil {
		if err := sp.state.Revert(); err != nil {
			return nil, fmt.Errorf("revert after %v: %w", execErr, err)
		}
		receipt.Error = execErr.Error()
		receipt.ErrorKind = ErrorKind(execErr)
		span.RecordError(execErr)
		span.SetStatus(codes.Error, execErr.Error())
		sp.logger.Info("transaction rejected",
			slog.String("tx", receipt.TxHashHex()),
			slog.Uint64("slot", clock.Slot),
			slog.String("kind", receipt.ErrorKind),
			slog.String("error", execErr.Error()))
		return receipt, execErr
	}

	root, err := sp.state.Commit(clock.Slot)
	if err != nil {
		_ = sp.state.Revert()
		return nil, fmt.Errorf("commit slot %d: %w", clock.Slot, err)
	}
	receipt.Success = true
	for _, evt := range buffer.Events() {
		if payload := events.Payload(evt); payload != nil {
			receipt.Events = append(receipt.Events, *payload.Clone())
		}
	}
	buffer.Flush(sp.emitter)
	span.SetStatus(codes.Ok, "committed")
	sp.logger.Debug("transaction committed",
		slog.String("tx", receipt.TxHashHex()),
		slog.Uint64("slot", clock.Slot),
		slog.String("root", root.Hex()))
	return receipt, nil
}

func (sp *StateProcessor) execute(ctx context.Context, tx *types.Transaction, clock runtime.Clock, buffer *events.Buffer) error {
	if err := tx.Verify(); err != nil {
		return err
	}
	opts := runtime.Options{
		State:   sp.state,
		Clock:   clock,
		Rent:    sp.rent,
		Emitter: buffer,
		Logger:  sp.logger,
	}
	for i, ix := range tx.Instructions {
		program, ok := sp.programs[ix.Program]
		if !ok {
			return fmt.Errorf("instruction %d: %w: %s", i, ledgererrors.ErrUnknownProgram, ix.Program)
		}
		ixCtx, span := sp.tracer.Start(ctx, "core.instruction",
			trace.WithAttributes(attribute.String("program", program.Name())))
		err := program.Execute(runtime.NewContext(ixCtx, opts, ix), ix.Data)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.End()
			return fmt.Errorf("instruction %d (%s): %w", i, program.Name(), err)
		}
		span.End()
	}
	return nil
}
