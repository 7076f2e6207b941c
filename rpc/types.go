package rpc

import (
	"encoding/hex"
	"strconv"

	"vaultswap/core"
	"vaultswap/core/types"
	"vaultswap/crypto"
	"vaultswap/native/escrow"
	"vaultswap/native/token"
)

// Amounts are rendered as decimal strings so values above 2^53 survive
// JavaScript clients.

// ReceiptResult reflects the outcome of a processed transaction.
type ReceiptResult struct {
	TxHash    string        `json:"txHash"`
	Slot      uint64        `json:"slot"`
	BlockTime int64         `json:"blockTime"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
	ErrorKind string        `json:"errorKind,omitempty"`
	Events    []types.Event `json:"events"`
}

func receiptResult(r *types.Receipt) *ReceiptResult {
	if r == nil {
		return nil
	}
	events := r.Events
	if events == nil {
		events = []types.Event{}
	}
	return &ReceiptResult{
		TxHash:    r.TxHashHex(),
		Slot:      r.Slot,
		BlockTime: r.BlockTime,
		Success:   r.Success,
		Error:     r.Error,
		ErrorKind: r.ErrorKind,
		Events:    events,
	}
}

// AccountResult is a raw ledger account.
type AccountResult struct {
	Address    crypto.Address `json:"address"`
	Lamports   string         `json:"lamports"`
	Owner      crypto.Address `json:"owner"`
	Executable bool           `json:"executable"`
	Data       string         `json:"data"`
	Exists     bool           `json:"exists"`
}

func accountResult(addr crypto.Address, acc *types.Account) AccountResult {
	out := AccountResult{Address: addr, Lamports: "0", Data: "0x"}
	if acc == nil || acc.IsEmpty() {
		return out
	}
	out.Exists = true
	out.Lamports = strconv.FormatUint(acc.Lamports, 10)
	out.Owner = acc.Owner
	out.Executable = acc.Executable
	out.Data = "0x" + hex.EncodeToString(acc.Data)
	return out
}

// TokenAccountResult is a decoded token balance.
type TokenAccountResult struct {
	Address crypto.Address `json:"address"`
	Mint    crypto.Address `json:"mint"`
	Owner   crypto.Address `json:"owner"`
	Amount  string         `json:"amount"`
}

func tokenAccountResult(addr crypto.Address, acc *token.Account) TokenAccountResult {
	return TokenAccountResult{
		Address: addr,
		Mint:    acc.Mint,
		Owner:   acc.Owner,
		Amount:  strconv.FormatUint(acc.Amount, 10),
	}
}

// EscrowResult is a live offer record.
type EscrowResult struct {
	Identifier         string          `json:"identifier"`
	Record             crypto.Address  `json:"record"`
	Variant            string          `json:"variant"`
	Initializer        crypto.Address  `json:"initializer"`
	InitializerDeposit crypto.Address  `json:"initializerDeposit"`
	InitializerReceive crypto.Address  `json:"initializerReceive"`
	InitializerAmount  string          `json:"initializerAmount"`
	TakerAmount        string          `json:"takerAmount"`
	VaultAuthorityBump uint8           `json:"vaultAuthorityBump"`
	CollectibleMint    *crypto.Address `json:"collectibleMint,omitempty"`
}

func escrowResult(addr crypto.Address, rec *escrow.Record) EscrowResult {
	out := EscrowResult{
		Identifier:         rec.Identifier,
		Record:             addr,
		Variant:            rec.Variant.String(),
		Initializer:        rec.InitializerKey,
		InitializerDeposit: rec.InitializerDepositTokenAccount,
		InitializerReceive: rec.InitializerReceiveTokenAccount,
		InitializerAmount:  strconv.FormatUint(rec.InitializerAmount, 10),
		TakerAmount:        strconv.FormatUint(rec.TakerAmount, 10),
		VaultAuthorityBump: rec.VaultAuthorityBump,
	}
	if rec.Variant == escrow.VariantRoom {
		mint := rec.CollectibleMint
		out.CollectibleMint = &mint
	}
	return out
}

// AuthorityResult reports derived escrow addresses.
type AuthorityResult struct {
	Authority  crypto.Address  `json:"authority"`
	Bump       uint8           `json:"bump"`
	Vault      *crypto.Address `json:"vault,omitempty"`
	Record     *crypto.Address `json:"record,omitempty"`
	RecordBump *uint8          `json:"recordBump,omitempty"`
}

// HeadResult is the latest committed ledger position.
type HeadResult struct {
	Slot      uint64 `json:"slot"`
	Root      string `json:"root"`
	BlockTime int64  `json:"blockTime"`
}

func headResult(h core.Head) HeadResult {
	return HeadResult{Slot: h.Slot, Root: h.Root.Hex(), BlockTime: h.BlockTime}
}
