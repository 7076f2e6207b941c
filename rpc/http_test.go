package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"vaultswap/core"
	"vaultswap/core/events"
	"vaultswap/core/genesis"
	"vaultswap/core/types"
	"vaultswap/crypto"
	"vaultswap/indexer"
	"vaultswap/native/escrow"
	"vaultswap/native/token"
	"vaultswap/storage"
)

type harness struct {
	node     *core.Node
	server   *httptest.Server
	client   *Client
	offers   *indexer.Indexer
	alice    *crypto.PrivateKey
	bob      *crypto.PrivateKey
	lockMint crypto.Address
	payMint  crypto.Address
	nonce    uint64
}

func mustKey(t *testing.T) *crypto.PrivateKey {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	return key
}

func newHarness(t *testing.T, cfg ServerConfig) *harness {
	t.Helper()
	h := &harness{alice: mustKey(t), bob: mustKey(t)}
	authority := mustKey(t)
	doc := strings.Join([]string{
		`genesisTime: "2024-05-01T00:00:00Z"`,
		`wallets:`,
		`  - {address: ` + h.alice.Address().String() + `, lamports: 10000000000}`,
		`  - {address: ` + h.bob.Address().String() + `, lamports: 10000000000}`,
		`mints:`,
		`  - {label: lock, decimals: 6, mintAuthority: ` + authority.Address().String() + `}`,
		`  - {label: pay, decimals: 2, mintAuthority: ` + authority.Address().String() + `}`,
		`tokenAccounts:`,
		`  - {owner: ` + h.alice.Address().String() + `, mint: lock, amount: 500}`,
		`  - {owner: ` + h.alice.Address().String() + `, mint: pay, amount: 0}`,
		`  - {owner: ` + h.bob.Address().String() + `, mint: pay, amount: 300}`,
		`  - {owner: ` + h.bob.Address().String() + `, mint: lock, amount: 0}`,
		``,
	}, "\n")
	spec, err := genesis.ParseSpec([]byte(doc))
	require.NoError(t, err)

	db, err := indexer.Open(indexer.DriverSQLite, fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	h.offers = indexer.New(db, nil)

	node, err := core.NewNode(storage.NewMemDB(), core.NodeConfig{
		Genesis:  spec,
		Emitters: []events.Emitter{h.offers},
		Now:      func() time.Time { return time.Unix(1_714_521_605, 0) },
	})
	require.NoError(t, err)
	h.node = node

	srv, err := NewServer(node, h.offers, cfg)
	require.NoError(t, err)
	h.server = httptest.NewServer(srv.Handler())
	t.Cleanup(h.server.Close)
	h.client = NewClient(h.server.URL, "")
	h.lockMint = genesis.MintAddress("lock")
	h.payMint = genesis.MintAddress("pay")
	return h
}

func (h *harness) ata(owner *crypto.PrivateKey, mint crypto.Address) crypto.Address {
	addr, _ := token.AssociatedAddress(owner.Address(), mint)
	return addr
}

func (h *harness) signed(t *testing.T, key *crypto.PrivateKey, ix types.Instruction) *types.Transaction {
	t.Helper()
	h.nonce++
	tx := &types.Transaction{Nonce: h.nonce, Instructions: []types.Instruction{ix}}
	require.NoError(t, tx.Sign(key))
	return tx
}

func (h *harness) createTx(t *testing.T, identifier string, amount, taker uint64) *types.Transaction {
	t.Helper()
	ix, err := escrow.NewInitEscrowInstruction(h.alice.Address(), h.lockMint,
		h.ata(h.alice, h.lockMint), h.ata(h.alice, h.payMint),
		escrow.CreateArgs{InitializerAmount: amount, TakerAmount: taker, Identifier: identifier})
	require.NoError(t, err)
	return h.signed(t, h.alice, ix)
}

func rpcCode(t *testing.T, err error) int {
	t.Helper()
	var rpcErr *RPCError
	require.True(t, errors.As(err, &rpcErr), "expected RPC error, got %v", err)
	return rpcErr.Code
}

func TestEscrowLifecycleOverRPC(t *testing.T) {
	h := newHarness(t, ServerConfig{})
	ctx := context.Background()

	receipt, err := h.client.SendTransaction(ctx, h.createTx(t, "deal", 200, 150))
	require.NoError(t, err)
	require.True(t, receipt.Success)
	require.Equal(t, escrow.EventEscrowCreated, receipt.Events[0].Type)

	offer, err := h.client.GetEscrow(ctx, "deal")
	require.NoError(t, err)
	require.Equal(t, "escrow", offer.Variant)
	require.Equal(t, "200", offer.InitializerAmount)
	require.Equal(t, "150", offer.TakerAmount)
	require.Equal(t, h.alice.Address(), offer.Initializer)
	require.Nil(t, offer.CollectibleMint)

	derived, err := h.client.DeriveAuthority(ctx, &h.lockMint, "deal")
	require.NoError(t, err)
	authority, bump := escrow.VaultAuthority()
	require.Equal(t, authority, derived.Authority)
	require.Equal(t, bump, derived.Bump)
	require.Equal(t, escrow.VaultAddress(h.lockMint), *derived.Vault)
	require.Equal(t, offer.Record, *derived.Record)

	vault, err := h.client.GetTokenAccount(ctx, *derived.Vault)
	require.NoError(t, err)
	require.Equal(t, "200", vault.Amount)
	require.Equal(t, authority, vault.Owner)

	open, err := h.client.ListOffers(ctx, indexer.Filter{Status: indexer.StatusOpen})
	require.NoError(t, err)
	require.Len(t, open, 1)
	require.Equal(t, "deal", open[0].Identifier)

	rec, _, err := h.node.GetEscrow("deal")
	require.NoError(t, err)
	ix, err := escrow.NewExchangeInstruction(rec, h.lockMint, escrow.ExchangeParams{
		Taker:        h.bob.Address(),
		TakerMint:    h.payMint,
		TakerDeposit: h.ata(h.bob, h.payMint),
		TakerReceive: h.ata(h.bob, h.lockMint),
	})
	require.NoError(t, err)
	tx := h.signed(t, h.bob, ix)
	receipt, err = h.client.SendTransaction(ctx, tx)
	require.NoError(t, err)
	require.True(t, receipt.Success)

	bobLock, err := h.client.GetTokenBalance(ctx, h.bob.Address(), h.lockMint)
	require.NoError(t, err)
	require.Equal(t, "200", bobLock.Amount)
	alicePay, err := h.client.GetTokenBalance(ctx, h.alice.Address(), h.payMint)
	require.NoError(t, err)
	require.Equal(t, "150", alicePay.Amount)

	_, err = h.client.GetEscrow(ctx, "deal")
	require.Equal(t, codeNotFound, rpcCode(t, err))
	_, err = h.client.GetTokenAccount(ctx, escrow.VaultAddress(h.lockMint))
	require.Equal(t, codeNotFound, rpcCode(t, err))

	exchanged, err := h.client.ListOffers(ctx, indexer.Filter{Status: indexer.StatusExchanged})
	require.NoError(t, err)
	require.Len(t, exchanged, 1)
	require.Equal(t, h.bob.Address().String(), exchanged[0].Taker)

	hash, err := tx.Hash()
	require.NoError(t, err)
	stored, err := h.client.GetReceipt(ctx, hash)
	require.NoError(t, err)
	require.True(t, stored.Success)
	require.Equal(t, uint64(2), stored.Slot)

	head, err := h.client.Head(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(2), head.Slot)
	require.Equal(t, h.node.Head().Root.Hex(), head.Root)
}

func TestRejectedTransactionCarriesKind(t *testing.T) {
	h := newHarness(t, ServerConfig{})
	ctx := context.Background()

	tx := h.createTx(t, "greedy", 900, 1)
	_, err := h.client.SendTransaction(ctx, tx)
	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	require.Equal(t, codeTxRejected, rpcErr.Code)
	data, ok := rpcErr.Data.(map[string]any)
	require.True(t, ok)
	require.Equal(t, string(escrow.KindValidation), data["kind"])

	_, err = h.client.SendTransaction(ctx, tx)
	require.ErrorAs(t, err, &rpcErr)
	require.Equal(t, codeTxRejected, rpcErr.Code)
	require.Equal(t, "duplicate", rpcErr.Data.(map[string]any)["kind"])

	acc, err := h.client.GetTokenBalance(ctx, h.alice.Address(), h.lockMint)
	require.NoError(t, err)
	require.Equal(t, "500", acc.Amount)
	require.Equal(t, uint64(0), h.node.Head().Slot)
}

func TestSendTransactionRequiresJWT(t *testing.T) {
	const secret = "rpc-test-secret"
	h := newHarness(t, ServerConfig{JWTSecret: secret, JWTIssuer: "vaultctl"})
	ctx := context.Background()

	_, err := h.client.SendTransaction(ctx, h.createTx(t, "auth", 10, 10))
	require.Equal(t, codeUnauthorized, rpcCode(t, err))

	bad := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": "someone-else",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	badToken, err := bad.SignedString([]byte(secret))
	require.NoError(t, err)
	_, err = NewClient(h.server.URL, badToken).SendTransaction(ctx, h.createTx(t, "auth", 10, 10))
	require.Equal(t, codeUnauthorized, rpcCode(t, err))

	good := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": "vaultctl",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	token, err := good.SignedString([]byte(secret))
	require.NoError(t, err)
	receipt, err := NewClient(h.server.URL, token).SendTransaction(ctx, h.createTx(t, "auth", 10, 10))
	require.NoError(t, err)
	require.True(t, receipt.Success)

	// Reads stay open.
	_, err = h.client.Head(ctx)
	require.NoError(t, err)
}

func TestRateLimit(t *testing.T) {
	h := newHarness(t, ServerConfig{RateLimitPerSec: 0.001, RateLimitBurst: 2})
	ctx := context.Background()
	_, err := h.client.Head(ctx)
	require.NoError(t, err)
	_, err = h.client.Head(ctx)
	require.NoError(t, err)
	_, err = h.client.Head(ctx)
	require.Equal(t, codeRateLimited, rpcCode(t, err))
}

func postRaw(t *testing.T, url, body string) (int, RPCResponse) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var decoded RPCResponse
	require.NoError(t, json.Unmarshal(raw, &decoded), string(raw))
	return resp.StatusCode, decoded
}

func TestProtocolErrors(t *testing.T) {
	h := newHarness(t, ServerConfig{})
	cases := []struct {
		name   string
		body   string
		status int
		code   int
	}{
		{"parse", `{"jsonrpc":`, http.StatusBadRequest, codeParseError},
		{"version", `{"jsonrpc":"1.0","method":"vs_head","id":1}`, http.StatusBadRequest, codeInvalidRequest},
		{"unknown method", `{"jsonrpc":"2.0","method":"vs_mint","id":1}`, http.StatusNotFound, codeMethodNotFound},
		{"missing param", `{"jsonrpc":"2.0","method":"vs_getAccount","params":[],"id":1}`, http.StatusBadRequest, codeInvalidParams},
		{"bad address", `{"jsonrpc":"2.0","method":"vs_getAccount","params":["nope"],"id":1}`, http.StatusBadRequest, codeInvalidParams},
		{"bad hex", `{"jsonrpc":"2.0","method":"vs_sendTransaction","params":["0xzz"],"id":1}`, http.StatusBadRequest, codeInvalidParams},
		{"bad identifier", `{"jsonrpc":"2.0","method":"vs_getEscrow","params":["` + strings.Repeat("x", escrow.MaxIdentifierLen+1) + `"],"id":1}`, http.StatusBadRequest, codeInvalidParams},
		{"unknown filter field", `{"jsonrpc":"2.0","method":"vs_listOffers","params":[{"colour":"red"}],"id":1}`, http.StatusBadRequest, codeInvalidParams},
		{"short hash", `{"jsonrpc":"2.0","method":"vs_getReceipt","params":["0x01"],"id":1}`, http.StatusBadRequest, codeInvalidParams},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, resp := postRaw(t, h.server.URL, tc.body)
			require.Equal(t, tc.status, status)
			require.NotNil(t, resp.Error)
			require.Equal(t, tc.code, resp.Error.Code)
		})
	}
}

func TestGetAccountForMissingAddress(t *testing.T) {
	h := newHarness(t, ServerConfig{})
	acc, err := h.client.GetAccount(context.Background(), mustKey(t).Address())
	require.NoError(t, err)
	require.False(t, acc.Exists)
	require.Equal(t, "0", acc.Lamports)
}

func TestHealthAndMetricsRoutes(t *testing.T) {
	h := newHarness(t, ServerConfig{})
	_, err := h.client.Head(context.Background())
	require.NoError(t, err)

	resp, err := http.Get(h.server.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get(requestIDHeader))

	resp, err = http.Get(h.server.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.True(t, bytes.Contains(body, []byte("vaultswap_rpc_requests_total")))
}

func TestEventStream(t *testing.T) {
	h := newHarness(t, ServerConfig{})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(h.server.URL, "http") + "/ws/events?types=" + escrow.EventEscrowCreated
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "done")

	// The subscription is registered asynchronously; the cursor replay covers
	// an event committed before it lands.
	_, err = h.client.SendTransaction(ctx, h.createTx(t, "streamed", 20, 30))
	require.NoError(t, err)

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var evt events.StreamEvent
	require.NoError(t, json.Unmarshal(data, &evt))
	require.Equal(t, escrow.EventEscrowCreated, evt.Event.Type)
	require.Equal(t, "streamed", evt.Event.Attributes["identifier"])
	require.Equal(t, "1", evt.Cursor)
}

func TestTrustedProxyParsing(t *testing.T) {
	_, err := parseProxies([]string{"10.0.0.0/8", "127.0.0.1", ""})
	require.NoError(t, err)
	_, err = parseProxies([]string{"not-an-ip"})
	require.Error(t, err)

	h := newHarness(t, ServerConfig{TrustedProxies: []string{"127.0.0.1"}})
	srv, err := NewServer(h.node, nil, ServerConfig{TrustedProxies: []string{"127.0.0.1"}})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "127.0.0.1:5555"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	require.Equal(t, "203.0.113.9", srv.clientSource(req))
	req.RemoteAddr = "192.0.2.1:5555"
	require.Equal(t, "192.0.2.1", srv.clientSource(req))
}

func TestListOffersWithoutIndexer(t *testing.T) {
	h := newHarness(t, ServerConfig{})
	srv, err := NewServer(h.node, nil, ServerConfig{})
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
	_, err = NewClient(ts.URL, "").ListOffers(context.Background(), indexer.Filter{})
	require.Equal(t, codeServerError, rpcCode(t, err))
}
