package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"vaultswap/core/events"
	"vaultswap/core/genesis"
	"vaultswap/core/runtime"
	"vaultswap/core/state"
	"vaultswap/core/types"
	"vaultswap/crypto"
	nativecommon "vaultswap/native/common"
	"vaultswap/native/escrow"
	"vaultswap/native/metadata"
	"vaultswap/native/system"
	"vaultswap/native/token"
	"vaultswap/storage"
	"vaultswap/storage/trie"
)

var (
	ErrDuplicateTransaction = errors.New("core: transaction already processed")
	ErrReceiptNotFound      = errors.New("core: receipt not found")
	ErrEscrowNotFound       = errors.New("core: escrow not found")
)

var (
	headKey       = []byte("vaultswap/head")
	receiptPrefix = []byte("vaultswap/receipt/")
)

// Head is the latest committed ledger position.
type Head struct {
	Slot      uint64      `json:"slot"`
	Root      common.Hash `json:"root"`
	BlockTime int64       `json:"blockTime"`
}

// NodeConfig wires a node.
type NodeConfig struct {
	Logger   *slog.Logger
	Policy   *escrow.Policy
	Pauses   nativecommon.PauseView
	Genesis  *genesis.Spec
	Emitters []events.Emitter
	Observer escrow.Observer
	// Now overrides the wall clock, mostly for tests.
	Now func() time.Time
}

// Node owns the ledger and serializes every state transition.
type Node struct {
	db     storage.Database
	state  *StateProcessor
	escrow *escrow.Program
	hub    *events.Hub
	logger *slog.Logger
	now    func() time.Time

	mu   sync.Mutex
	head Head
}

// NewNode opens the ledger stored in db, seeding it from cfg.Genesis when db
// holds no committed head yet.
func NewNode(db storage.Database, cfg NodeConfig) (*Node, error) {
	if db == nil {
		return nil, fmt.Errorf("database must not be nil")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	head, fresh, err := loadHead(db)
	if err != nil {
		return nil, err
	}
	var root []byte
	if !fresh {
		root = head.Root.Bytes()
	}
	stateTrie, err := trie.NewTrie(db, root)
	if err != nil {
		return nil, fmt.Errorf("open state trie: %w", err)
	}

	engine := escrow.NewEngine()
	if cfg.Policy != nil {
		engine.SetPolicy(*cfg.Policy)
	}
	engine.SetPauses(cfg.Pauses)
	escrowProgram := escrow.NewProgram(engine)
	if cfg.Observer != nil {
		escrowProgram.SetObserver(cfg.Observer)
	}

	sp := NewStateProcessor(stateTrie,
		system.NewProgram(),
		token.NewProgram(),
		metadata.NewProgram(),
		escrowProgram,
	)
	sp.SetLogger(logger)
	if !fresh {
		if err := sp.State().CheckLayout(); err != nil {
			return nil, fmt.Errorf("open ledger: %w", err)
		}
	}

	hub := events.NewHub()
	emitters := events.Multi{hub}
	emitters = append(emitters, cfg.Emitters...)
	sp.SetEmitter(emitters)

	n := &Node{
		db:     db,
		state:  sp,
		escrow: escrowProgram,
		hub:    hub,
		logger: logger,
		now:    now,
		head:   head,
	}
	if fresh {
		if err := n.applyGenesis(cfg.Genesis); err != nil {
			return nil, err
		}
	}
	logger.Info("ledger opened",
		slog.Uint64("slot", n.head.Slot),
		slog.String("root", n.head.Root.Hex()))
	return n, nil
}

func (n *Node) applyGenesis(spec *genesis.Spec) error {
	blockTime := n.now().Unix()
	if spec != nil {
		if err := genesis.Apply(spec, n.state.State(), n.state.rent); err != nil {
			return fmt.Errorf("apply genesis: %w", err)
		}
		blockTime = spec.GenesisTimestamp().Unix()
	}
	if err := n.state.State().SetLayout(state.LayoutVersion); err != nil {
		return fmt.Errorf("stamp layout: %w", err)
	}
	root, err := n.state.Commit(0)
	if err != nil {
		return fmt.Errorf("commit genesis: %w", err)
	}
	n.head = Head{Slot: 0, Root: root, BlockTime: blockTime}
	return n.persistHead()
}

func loadHead(db storage.Database) (Head, bool, error) {
	raw, err := db.Get(headKey)
	if errors.Is(err, storage.ErrNotFound) {
		return Head{}, true, nil
	}
	if err != nil {
		return Head{}, false, fmt.Errorf("load head: %w", err)
	}
	var head Head
	if err := json.Unmarshal(raw, &head); err != nil {
		return Head{}, false, fmt.Errorf("decode head: %w", err)
	}
	return head, false, nil
}

func (n *Node) persistHead() error {
	raw, err := json.Marshal(n.head)
	if err != nil {
		return err
	}
	return n.db.Put(headKey, raw)
}

// Submit executes tx as the next slot. Submissions are serialized. A rejected
// transaction returns its receipt alongside the execution error.
func (n *Node) Submit(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	if tx == nil {
		return nil, types.ErrNoInstructions
	}
	hash, err := tx.Hash()
	if err != nil {
		return nil, err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if ok, err := n.db.Has(receiptKey(hash)); err != nil {
		return nil, err
	} else if ok {
		return nil, ErrDuplicateTransaction
	}

	blockTime := n.now().Unix()
	if blockTime < n.head.BlockTime {
		blockTime = n.head.BlockTime
	}
	clock := runtime.Clock{Slot: n.head.Slot + 1, UnixTimestamp: blockTime}
	receipt, execErr := n.state.ApplyTransaction(ctx, tx, clock)
	if receipt == nil {
		return nil, execErr
	}
	if receipt.Success {
		n.head = Head{Slot: clock.Slot, Root: n.state.CurrentRoot(), BlockTime: blockTime}
		if err := n.persistHead(); err != nil {
			return receipt, fmt.Errorf("persist head: %w", err)
		}
	}
	if err := n.storeReceipt(receipt); err != nil {
		return receipt, fmt.Errorf("persist receipt: %w", err)
	}
	return receipt, execErr
}

func receiptKey(hash [32]byte) []byte {
	key := make([]byte, 0, len(receiptPrefix)+len(hash))
	key = append(key, receiptPrefix...)
	return append(key, hash[:]...)
}

func (n *Node) storeReceipt(r *types.Receipt) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return n.db.Put(receiptKey(r.TxHash), raw)
}

// Receipt returns the stored receipt for hash.
func (n *Node) Receipt(hash [32]byte) (*types.Receipt, error) {
	raw, err := n.db.Get(receiptKey(hash))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrReceiptNotFound
	}
	if err != nil {
		return nil, err
	}
	var receipt types.Receipt
	if err := json.Unmarshal(raw, &receipt); err != nil {
		return nil, fmt.Errorf("decode receipt: %w", err)
	}
	receipt.TxHash = hash
	return &receipt, nil
}

// Head returns the latest committed position.
func (n *Node) Head() Head {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.head
}

// GetAccount returns the committed account at addr, or nil.
func (n *Node) GetAccount(addr crypto.Address) (*types.Account, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state.State().GetAccount(addr)
}

// GetTokenAccount decodes the token account at addr.
func (n *Node) GetTokenAccount(addr crypto.Address) (*token.Account, error) {
	acc, err := n.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	return token.DecodeAccount(addr, acc)
}

// GetMint decodes the mint at addr.
func (n *Node) GetMint(addr crypto.Address) (*token.Mint, error) {
	acc, err := n.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	return token.DecodeMint(addr, acc)
}

// GetEscrow resolves the live offer stored under identifier.
func (n *Node) GetEscrow(identifier string) (*escrow.Record, crypto.Address, error) {
	addr, _, err := escrow.RecordAddress(identifier)
	if err != nil {
		return nil, crypto.Address{}, err
	}
	acc, err := n.GetAccount(addr)
	if err != nil {
		return nil, addr, err
	}
	if acc.IsEmpty() {
		return nil, addr, ErrEscrowNotFound
	}
	rec, err := escrow.ReadRecord(acc.Owner, acc.Data)
	if err != nil {
		return nil, addr, ErrEscrowNotFound
	}
	return rec, addr, nil
}

// Events returns the committed event hub.
func (n *Node) Events() *events.Hub { return n.hub }

// EscrowEngine exposes the escrow rules, e.g. for policy reads.
func (n *Node) EscrowEngine() *escrow.Engine { return n.escrow.Engine() }
