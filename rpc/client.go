package rpc

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"vaultswap/core/types"
	"vaultswap/crypto"
	"vaultswap/indexer"
)

// Client is a minimal JSON-RPC client for the vs_ namespace.
type Client struct {
	endpoint string
	token    string
	http     *http.Client
	nextID   atomic.Int64
}

// NewClient targets endpoint. token, when set, is sent as a bearer token.
func NewClient(endpoint, token string) *Client {
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/") + "/",
		token:    strings.TrimSpace(token),
		http:     &http.Client{Timeout: 30 * time.Second},
	}
}

// Call invokes method and decodes the result into out. JSON-RPC failures are
// returned as *RPCError.
func (c *Client) Call(ctx context.Context, method string, out any, params ...any) error {
	rawParams := make([]json.RawMessage, 0, len(params))
	for _, p := range params {
		raw, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("rpc: encode params: %w", err)
		}
		rawParams = append(rawParams, raw)
	}
	body, err := json.Marshal(RPCRequest{
		JSONRPC: jsonRPCVersion,
		Method:  method,
		Params:  rawParams,
		ID:      c.nextID.Add(1),
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("rpc: %s: %w", method, err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxRequestBytes*8))
	if err != nil {
		return fmt.Errorf("rpc: read response: %w", err)
	}
	var decoded RPCResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return fmt.Errorf("rpc: %s: unexpected response (HTTP %d): %w", method, resp.StatusCode, err)
	}
	if decoded.Error != nil {
		return decoded.Error
	}
	if out == nil || len(decoded.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(decoded.Result, out); err != nil {
		return fmt.Errorf("rpc: decode %s result: %w", method, err)
	}
	return nil
}

func (c *Client) SendTransaction(ctx context.Context, tx *types.Transaction) (*ReceiptResult, error) {
	raw, err := tx.Encode()
	if err != nil {
		return nil, err
	}
	var out ReceiptResult
	if err := c.Call(ctx, "vs_sendTransaction", &out, "0x"+hex.EncodeToString(raw)); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetAccount(ctx context.Context, addr crypto.Address) (*AccountResult, error) {
	var out AccountResult
	if err := c.Call(ctx, "vs_getAccount", &out, addr.String()); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetTokenBalance resolves owner's associated account for mint.
func (c *Client) GetTokenBalance(ctx context.Context, owner, mint crypto.Address) (*TokenAccountResult, error) {
	var out TokenAccountResult
	query := tokenAccountQuery{Owner: owner.String(), Mint: mint.String()}
	if err := c.Call(ctx, "vs_getTokenAccount", &out, query); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetTokenAccount(ctx context.Context, addr crypto.Address) (*TokenAccountResult, error) {
	var out TokenAccountResult
	if err := c.Call(ctx, "vs_getTokenAccount", &out, addr.String()); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetEscrow(ctx context.Context, identifier string) (*EscrowResult, error) {
	var out EscrowResult
	if err := c.Call(ctx, "vs_getEscrow", &out, identifier); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeriveAuthority returns the vault authority, plus the vault for mint and
// the record for identifier when those are non-empty.
func (c *Client) DeriveAuthority(ctx context.Context, mint *crypto.Address, identifier string) (*AuthorityResult, error) {
	query := authorityQuery{Identifier: identifier}
	if mint != nil {
		query.Mint = mint.String()
	}
	var out AuthorityResult
	if err := c.Call(ctx, "vs_deriveAuthority", &out, query); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListOffers(ctx context.Context, filter indexer.Filter) ([]indexer.Offer, error) {
	var out []indexer.Offer
	if err := c.Call(ctx, "vs_listOffers", &out, filter); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetReceipt(ctx context.Context, hash [32]byte) (*ReceiptResult, error) {
	var out ReceiptResult
	if err := c.Call(ctx, "vs_getReceipt", &out, "0x"+hex.EncodeToString(hash[:])); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Head(ctx context.Context) (*HeadResult, error) {
	var out HeadResult
	if err := c.Call(ctx, "vs_head", &out); err != nil {
		return nil, err
	}
	return &out, nil
}
