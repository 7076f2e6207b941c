package rpc

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"vaultswap/core"
	ledgererrors "vaultswap/core/errors"
	"vaultswap/core/types"
	"vaultswap/crypto"
	"vaultswap/indexer"
	"vaultswap/native/escrow"
	"vaultswap/native/token"
)

func invalidParams(message string, data any) *RPCError {
	return &RPCError{Code: codeInvalidParams, Message: message, Data: data}
}

func serverError(message string, err error) *RPCError {
	return &RPCError{Code: codeServerError, Message: message, Data: err.Error()}
}

func notFound(message string) *RPCError {
	return &RPCError{Code: codeNotFound, Message: message}
}

// stringParam decodes params[idx] as a non-empty string.
func stringParam(params []json.RawMessage, idx int, name string) (string, *RPCError) {
	if len(params) <= idx {
		return "", invalidParams(name+" parameter required", nil)
	}
	var value string
	if err := json.Unmarshal(params[idx], &value); err != nil {
		return "", invalidParams("invalid "+name, err.Error())
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", invalidParams(name+" must not be empty", nil)
	}
	return value, nil
}

func addressParam(params []json.RawMessage, idx int, name string) (crypto.Address, *RPCError) {
	raw, rpcErr := stringParam(params, idx, name)
	if rpcErr != nil {
		return crypto.Address{}, rpcErr
	}
	addr, err := crypto.DecodeAddress(raw)
	if err != nil {
		return crypto.Address{}, invalidParams("invalid "+name, err.Error())
	}
	return addr, nil
}

// objectParam decodes an optional params[0] object, rejecting unknown fields.
func objectParam(params []json.RawMessage, out any) *RPCError {
	if len(params) == 0 || len(bytes.TrimSpace(params[0])) == 0 || string(bytes.TrimSpace(params[0])) == "null" {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(params[0]))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return invalidParams("invalid parameter object", err.Error())
	}
	return nil
}

func decodeHex(raw string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(strings.TrimPrefix(raw, "0x"), "0X"))
}

// RejectionData accompanies codeTxRejected.
type RejectionData struct {
	Kind    string         `json:"kind"`
	Field   string         `json:"field,omitempty"`
	Receipt *ReceiptResult `json:"receipt,omitempty"`
}

func (s *Server) handleSendTransaction(ctx context.Context, r *http.Request, params []json.RawMessage) (any, *RPCError) {
	if rpcErr := s.requireAuth(r); rpcErr != nil {
		return nil, rpcErr
	}
	encoded, rpcErr := stringParam(params, 0, "transaction")
	if rpcErr != nil {
		return nil, rpcErr
	}
	raw, err := decodeHex(encoded)
	if err != nil {
		return nil, invalidParams("transaction must be hex encoded", err.Error())
	}
	tx, err := types.DecodeTransaction(raw)
	if err != nil {
		return nil, invalidParams("invalid transaction format", err.Error())
	}

	receipt, err := s.node.Submit(ctx, tx)
	switch {
	case errors.Is(err, core.ErrDuplicateTransaction):
		return nil, &RPCError{Code: codeTxRejected, Message: err.Error(), Data: RejectionData{Kind: "duplicate"}}
	case err != nil && receipt == nil:
		return nil, serverError("failed to process transaction", err)
	case err != nil && !receipt.Success:
		data := RejectionData{Kind: receipt.ErrorKind, Receipt: receiptResult(receipt)}
		var mismatch *escrow.AccountMismatchError
		if errors.As(err, &mismatch) {
			data.Field = mismatch.Field
		}
		return nil, &RPCError{Code: codeTxRejected, Message: err.Error(), Data: data}
	case err != nil:
		return nil, serverError("transaction committed but not persisted", err)
	}
	return receiptResult(receipt), nil
}

func (s *Server) handleGetAccount(_ context.Context, _ *http.Request, params []json.RawMessage) (any, *RPCError) {
	addr, rpcErr := addressParam(params, 0, "address")
	if rpcErr != nil {
		return nil, rpcErr
	}
	acc, err := s.node.GetAccount(addr)
	if err != nil {
		return nil, serverError("failed to load account", err)
	}
	return accountResult(addr, acc), nil
}

type tokenAccountQuery struct {
	Address string `json:"address"`
	Owner   string `json:"owner"`
	Mint    string `json:"mint"`
}

// handleGetTokenAccount accepts an address string or {owner, mint}, which
// resolves to the owner's associated account.
func (s *Server) handleGetTokenAccount(_ context.Context, _ *http.Request, params []json.RawMessage) (any, *RPCError) {
	if len(params) == 0 {
		return nil, invalidParams("address or {owner, mint} required", nil)
	}
	var addr crypto.Address
	if trimmed := bytes.TrimSpace(params[0]); len(trimmed) > 0 && trimmed[0] == '{' {
		var q tokenAccountQuery
		if rpcErr := objectParam(params, &q); rpcErr != nil {
			return nil, rpcErr
		}
		resolved, rpcErr := q.resolve()
		if rpcErr != nil {
			return nil, rpcErr
		}
		addr = resolved
	} else {
		decoded, rpcErr := addressParam(params, 0, "address")
		if rpcErr != nil {
			return nil, rpcErr
		}
		addr = decoded
	}
	acc, err := s.node.GetTokenAccount(addr)
	switch {
	case errors.Is(err, ledgererrors.ErrAccountNotFound):
		return nil, notFound("token account not found")
	case errors.Is(err, token.ErrNotTokenAccount):
		return nil, invalidParams("address is not a token account", addr.String())
	case err != nil:
		return nil, serverError("failed to load token account", err)
	}
	return tokenAccountResult(addr, acc), nil
}

func (q tokenAccountQuery) resolve() (crypto.Address, *RPCError) {
	if q.Address != "" {
		addr, err := crypto.DecodeAddress(q.Address)
		if err != nil {
			return crypto.Address{}, invalidParams("invalid address", err.Error())
		}
		return addr, nil
	}
	owner, err := crypto.DecodeAddress(q.Owner)
	if err != nil {
		return crypto.Address{}, invalidParams("invalid owner", err.Error())
	}
	mint, err := crypto.DecodeAddress(q.Mint)
	if err != nil {
		return crypto.Address{}, invalidParams("invalid mint", err.Error())
	}
	addr, _ := token.AssociatedAddress(owner, mint)
	return addr, nil
}

func (s *Server) handleGetEscrow(_ context.Context, _ *http.Request, params []json.RawMessage) (any, *RPCError) {
	identifier, rpcErr := stringParam(params, 0, "identifier")
	if rpcErr != nil {
		return nil, rpcErr
	}
	rec, addr, err := s.node.GetEscrow(identifier)
	switch {
	case errors.Is(err, core.ErrEscrowNotFound):
		return nil, notFound(fmt.Sprintf("no open offer %q", identifier))
	case escrow.KindOf(err) == escrow.KindValidation:
		return nil, invalidParams("invalid identifier", err.Error())
	case err != nil:
		return nil, serverError("failed to load offer", err)
	}
	return escrowResult(addr, rec), nil
}

type authorityQuery struct {
	Mint       string `json:"mint"`
	Identifier string `json:"identifier"`
}

func (s *Server) handleDeriveAuthority(_ context.Context, _ *http.Request, params []json.RawMessage) (any, *RPCError) {
	var q authorityQuery
	if rpcErr := objectParam(params, &q); rpcErr != nil {
		return nil, rpcErr
	}
	authority, bump := escrow.VaultAuthority()
	out := AuthorityResult{Authority: authority, Bump: bump}
	if q.Mint != "" {
		mint, err := crypto.DecodeAddress(q.Mint)
		if err != nil {
			return nil, invalidParams("invalid mint", err.Error())
		}
		vault := escrow.VaultAddress(mint)
		out.Vault = &vault
	}
	if q.Identifier != "" {
		record, recordBump, err := escrow.RecordAddress(q.Identifier)
		if err != nil {
			return nil, invalidParams("invalid identifier", err.Error())
		}
		out.Record = &record
		out.RecordBump = &recordBump
	}
	return out, nil
}

func (s *Server) handleListOffers(ctx context.Context, _ *http.Request, params []json.RawMessage) (any, *RPCError) {
	if s.offers == nil {
		return nil, &RPCError{Code: codeServerError, Message: "offer indexer disabled"}
	}
	var filter indexer.Filter
	if rpcErr := objectParam(params, &filter); rpcErr != nil {
		return nil, rpcErr
	}
	offers, err := s.offers.ListOffers(ctx, filter)
	if err != nil {
		return nil, serverError("failed to list offers", err)
	}
	if offers == nil {
		offers = []indexer.Offer{}
	}
	return offers, nil
}

func (s *Server) handleGetReceipt(_ context.Context, _ *http.Request, params []json.RawMessage) (any, *RPCError) {
	encoded, rpcErr := stringParam(params, 0, "hash")
	if rpcErr != nil {
		return nil, rpcErr
	}
	raw, err := decodeHex(encoded)
	if err != nil || len(raw) != 32 {
		return nil, invalidParams("hash must be 32 hex-encoded bytes", encoded)
	}
	var hash [32]byte
	copy(hash[:], raw)
	receipt, err := s.node.Receipt(hash)
	if errors.Is(err, core.ErrReceiptNotFound) {
		return nil, notFound("receipt not found")
	}
	if err != nil {
		return nil, serverError("failed to load receipt", err)
	}
	return receiptResult(receipt), nil
}

func (s *Server) handleHead(context.Context, *http.Request, []json.RawMessage) (any, *RPCError) {
	return headResult(s.node.Head()), nil
}
