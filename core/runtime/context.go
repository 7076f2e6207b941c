package runtime

import (
	"context"
	"fmt"
	"log/slog"

	ledgererrors "vaultswap/core/errors"
	"vaultswap/core/events"
	"vaultswap/core/state"
	"vaultswap/core/types"
	"vaultswap/crypto"
)

// Program is a native program the processor can dispatch instructions to.
type Program interface {
	ID() crypto.Address
	Name() string
	Execute(ctx *Context, data []byte) error
}

// Clock is the ledger time visible to programs.
type Clock struct {
	Slot          uint64
	UnixTimestamp int64
}

// Context is handed to a program for the duration of one instruction. Account
// access is limited to the accounts the instruction declared, and writes are
// limited to the ones declared writable.
type Context struct {
	ctx      context.Context
	state    *state.Manager
	program  crypto.Address
	accounts []types.AccountMeta
	signers  map[crypto.Address]struct{}
	writable map[crypto.Address]struct{}
	declared map[crypto.Address]struct{}
	clock    Clock
	rent     Rent
	emitter  events.Emitter
	logger   *slog.Logger
}

// Options carries the environment shared by every instruction in a transaction.
type Options struct {
	State   *state.Manager
	Clock   Clock
	Rent    Rent
	Emitter events.Emitter
	Logger  *slog.Logger
}

// NewContext builds the invocation context for a single instruction.
func NewContext(ctx context.Context, opts Options, ix types.Instruction) *Context {
	c := &Context{
		ctx:      ctx,
		state:    opts.State,
		program:  ix.Program,
		accounts: append([]types.AccountMeta(nil), ix.Accounts...),
		signers:  make(map[crypto.Address]struct{}),
		writable: make(map[crypto.Address]struct{}),
		declared: make(map[crypto.Address]struct{}),
		clock:    opts.Clock,
		rent:     opts.Rent,
		emitter:  opts.Emitter,
		logger:   opts.Logger,
	}
	if c.ctx == nil {
		c.ctx = context.Background()
	}
	if c.emitter == nil {
		c.emitter = events.NoopEmitter{}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.rent == (Rent{}) {
		c.rent = DefaultRent()
	}
	for _, meta := range ix.Accounts {
		c.declared[meta.Address] = struct{}{}
		if meta.Signer {
			c.signers[meta.Address] = struct{}{}
		}
		if meta.Writable {
			c.writable[meta.Address] = struct{}{}
		}
	}
	return c
}

func (c *Context) Context() context.Context { return c.ctx }
func (c *Context) Program() crypto.Address  { return c.program }
func (c *Context) Clock() Clock             { return c.clock }
func (c *Context) Rent() Rent               { return c.rent }
func (c *Context) Logger() *slog.Logger     { return c.logger }

// Accounts returns the instruction's ordered account list.
func (c *Context) Accounts() []types.AccountMeta {
	return append([]types.AccountMeta(nil), c.accounts...)
}

// RequireAccounts returns the first n declared addresses or an error when the
// instruction supplied fewer.
func (c *Context) RequireAccounts(n int) ([]crypto.Address, error) {
	if len(c.accounts) < n {
		return nil, fmt.Errorf("%w: expected %d accounts, got %d", ledgererrors.ErrInvalidInstructionArg, n, len(c.accounts))
	}
	out := make([]crypto.Address, n)
	for i := 0; i < n; i++ {
		out[i] = c.accounts[i].Address
	}
	return out, nil
}

func (c *Context) IsSigner(addr crypto.Address) bool {
	_, ok := c.signers[addr]
	return ok
}

func (c *Context) IsWritable(addr crypto.Address) bool {
	_, ok := c.writable[addr]
	return ok
}

// RequireSigner fails unless addr signed the transaction.
func (c *Context) RequireSigner(addr crypto.Address) error {
	if !c.IsSigner(addr) {
		return fmt.Errorf("%w: %s", ledgererrors.ErrMissingSignature, addr)
	}
	return nil
}

// Load returns a copy of the account at addr, or nil when it does not exist.
func (c *Context) Load(addr crypto.Address) (*types.Account, error) {
	if _, ok := c.declared[addr]; !ok {
		return nil, fmt.Errorf("%w: %s", ledgererrors.ErrAccountNotDeclared, addr)
	}
	acc, err := c.state.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	return acc, nil
}

// MustLoad is Load that treats a missing account as ErrAccountNotFound.
func (c *Context) MustLoad(addr crypto.Address) (*types.Account, error) {
	acc, err := c.Load(addr)
	if err != nil {
		return nil, err
	}
	if acc.IsEmpty() {
		return nil, fmt.Errorf("%w: %s", ledgererrors.ErrAccountNotFound, addr)
	}
	return acc, nil
}

// Store writes acc at addr. Storing an empty account deletes it.
func (c *Context) Store(addr crypto.Address, acc *types.Account) error {
	if _, ok := c.writable[addr]; !ok {
		return fmt.Errorf("%w: %s", ledgererrors.ErrAccountNotWritable, addr)
	}
	return c.state.PutAccount(addr, acc)
}

// Emit records an event; it is only published if the transaction commits.
func (c *Context) Emit(evt events.Event) {
	c.emitter.Emit(evt)
}
