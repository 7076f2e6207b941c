package escrow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"vaultswap/core/events"
	"vaultswap/core/runtime"
	"vaultswap/core/state"
	"vaultswap/core/types"
	"vaultswap/crypto"
	"vaultswap/native/metadata"
	"vaultswap/native/system"
	"vaultswap/native/token"
	"vaultswap/storage"
	"vaultswap/storage/trie"
)

const walletFunding = 1_000_000_000

type harness struct {
	t        *testing.T
	st       *state.Manager
	program  *Program
	programs map[crypto.Address]runtime.Program
	clock    runtime.Clock
	events   events.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	tr, err := trie.NewTrie(db, nil)
	require.NoError(t, err)
	h := &harness{
		t:       t,
		st:      state.NewManager(tr),
		program: NewProgram(NewEngine()),
		clock:   runtime.Clock{Slot: 1, UnixTimestamp: 1_700_000_005},
	}
	h.programs = map[crypto.Address]runtime.Program{
		ProgramID:        h.program,
		token.ProgramID:  token.NewProgram(),
		system.ProgramID: system.NewProgram(),
	}
	return h
}

func (h *harness) put(addr crypto.Address, acc *types.Account) {
	h.t.Helper()
	require.NoError(h.t, h.st.PutAccount(addr, acc))
	_, err := h.st.Commit(h.clock.Slot)
	require.NoError(h.t, err)
}

func (h *harness) newAddress() crypto.Address {
	h.t.Helper()
	key, err := crypto.GeneratePrivateKey()
	require.NoError(h.t, err)
	return key.Address()
}

func (h *harness) wallet() crypto.Address {
	addr := h.newAddress()
	h.put(addr, &types.Account{Lamports: walletFunding, Owner: system.ProgramID})
	return addr
}

func (h *harness) mint(decimals uint8, supply uint64) crypto.Address {
	h.t.Helper()
	addr := h.newAddress()
	data, err := token.EncodeMint(&token.Mint{Decimals: decimals, Supply: supply, MintAuthority: h.newAddress()})
	require.NoError(h.t, err)
	h.put(addr, &types.Account{Lamports: 1, Owner: token.ProgramID, Data: data})
	return addr
}

func (h *harness) tokenAccount(owner, mint crypto.Address, amount uint64) crypto.Address {
	h.t.Helper()
	addr := h.newAddress()
	h.setTokenAccount(addr, owner, mint, amount)
	return addr
}

func (h *harness) setTokenAccount(addr, owner, mint crypto.Address, amount uint64) {
	h.t.Helper()
	data, err := token.EncodeAccount(&token.Account{Mint: mint, Owner: owner, Amount: amount})
	require.NoError(h.t, err)
	h.put(addr, &types.Account{Lamports: 1, Owner: token.ProgramID, Data: data})
}

func (h *harness) metadata(mint crypto.Address, collection *metadata.Collection) crypto.Address {
	h.t.Helper()
	addr, _ := metadata.Address(mint)
	data, err := metadata.Encode(&metadata.Metadata{
		Mint:            mint,
		UpdateAuthority: h.newAddress(),
		Name:            "Piece",
		Symbol:          "PC",
		Collection:      collection,
	})
	require.NoError(h.t, err)
	h.put(addr, &types.Account{Lamports: 1, Owner: metadata.ProgramID, Data: data})
	return addr
}

// exec runs ix against the ledger, committing on success and reverting on
// failure.
func (h *harness) exec(ix types.Instruction) error {
	h.t.Helper()
	h.events.Reset()
	ctx := runtime.NewContext(context.Background(), runtime.Options{
		State:   h.st,
		Clock:   h.clock,
		Emitter: &h.events,
	}, ix)
	program, ok := h.programs[ix.Program]
	require.True(h.t, ok, "unknown program %s", ix.Program)
	if err := program.Execute(ctx, ix.Data); err != nil {
		h.events.Reset()
		require.NoError(h.t, h.st.Revert())
		return err
	}
	h.clock.Slot++
	_, err := h.st.Commit(h.clock.Slot)
	require.NoError(h.t, err)
	return nil
}

func (h *harness) account(addr crypto.Address) *types.Account {
	h.t.Helper()
	acc, err := h.st.GetAccount(addr)
	require.NoError(h.t, err)
	return acc
}

func (h *harness) exists(addr crypto.Address) bool {
	return !h.account(addr).IsEmpty()
}

func (h *harness) balance(addr crypto.Address) uint64 {
	h.t.Helper()
	amount, err := token.Balance(h.account(addr), addr)
	require.NoError(h.t, err)
	return amount
}

func (h *harness) lamports(addr crypto.Address) uint64 {
	return h.account(addr).Lamports
}

func (h *harness) record(identifier string) *Record {
	h.t.Helper()
	addr, _, err := RecordAddress(identifier)
	require.NoError(h.t, err)
	acc := h.account(addr)
	rec, err := ReadRecord(acc.Owner, acc.Data)
	require.NoError(h.t, err)
	return rec
}

// offer is a funded two-party setup: the initializer holds the locked asset and
// the taker holds the payment asset.
type offer struct {
	initializer  crypto.Address
	taker        crypto.Address
	lockMint     crypto.Address
	payMint      crypto.Address
	deposit      crypto.Address
	receive      crypto.Address
	takerDeposit crypto.Address
	takerReceive crypto.Address
}

func (h *harness) newOffer(lockBalance, payBalance uint64) offer {
	h.t.Helper()
	o := offer{
		initializer: h.wallet(),
		taker:       h.wallet(),
		lockMint:    h.mint(6, lockBalance),
		payMint:     h.mint(2, payBalance),
	}
	o.deposit = h.tokenAccount(o.initializer, o.lockMint, lockBalance)
	o.receive = h.tokenAccount(o.initializer, o.payMint, 0)
	o.takerDeposit = h.tokenAccount(o.taker, o.payMint, payBalance)
	o.takerReceive = h.tokenAccount(o.taker, o.lockMint, 0)
	return o
}

func (h *harness) create(o offer, args CreateArgs) error {
	h.t.Helper()
	ix, err := NewInitEscrowInstruction(o.initializer, o.lockMint, o.deposit, o.receive, args)
	require.NoError(h.t, err)
	return h.exec(ix)
}

func (h *harness) exchange(o offer, identifier string) error {
	h.t.Helper()
	rec := &Record{EscrowState: EscrowState{
		Identifier:                     identifier,
		InitializerKey:                 o.initializer,
		InitializerDepositTokenAccount: o.deposit,
		InitializerReceiveTokenAccount: o.receive,
	}}
	ix, err := NewExchangeInstruction(rec, o.lockMint, ExchangeParams{
		Taker:        o.taker,
		TakerMint:    o.payMint,
		TakerDeposit: o.takerDeposit,
		TakerReceive: o.takerReceive,
	})
	require.NoError(h.t, err)
	return h.exec(ix)
}

func (h *harness) cancel(o offer, identifier string) error {
	h.t.Helper()
	rec := &Record{EscrowState: EscrowState{
		Identifier:                     identifier,
		InitializerKey:                 o.initializer,
		InitializerDepositTokenAccount: o.deposit,
	}}
	ix, err := NewCancelInstruction(rec, o.lockMint)
	require.NoError(h.t, err)
	return h.exec(ix)
}
