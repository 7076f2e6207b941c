package types

import "encoding/hex"

// Receipt records the outcome of a processed transaction.
type Receipt struct {
	TxHash    [32]byte `json:"-"`
	Slot      uint64   `json:"slot"`
	BlockTime int64    `json:"blockTime"`
	Success   bool     `json:"success"`
	Error     string   `json:"error,omitempty"`
	ErrorKind string   `json:"errorKind,omitempty"`
	Events    []Event  `json:"events"`
}

// TxHashHex renders the transaction hash with a 0x prefix.
func (r *Receipt) TxHashHex() string {
	if r == nil {
		return ""
	}
	return "0x" + hex.EncodeToString(r.TxHash[:])
}
