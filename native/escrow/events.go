package escrow

import (
	"strconv"

	"vaultswap/core/types"
	"vaultswap/crypto"
)

const (
	EventEscrowCreated   = "escrow.created"
	EventRoomCreated     = "room.created"
	EventEscrowExchanged = "escrow.exchanged"
	EventEscrowCancelled = "escrow.cancelled"
)

func u64(v uint64) string { return strconv.FormatUint(v, 10) }

func createdEvent(record crypto.Address, rec *Record, mint, vault crypto.Address, draw *LuckyDraw) *types.Event {
	attrs := map[string]string{
		"identifier":        rec.Identifier,
		"record":            record.String(),
		"initializer":       rec.InitializerKey.String(),
		"mint":              mint.String(),
		"vault":             vault.String(),
		"deposit":           rec.InitializerDepositTokenAccount.String(),
		"receive":           rec.InitializerReceiveTokenAccount.String(),
		"initializerAmount": u64(rec.InitializerAmount),
		"takerAmount":       u64(rec.TakerAmount),
	}
	typ := EventEscrowCreated
	if rec.Variant == VariantRoom {
		typ = EventRoomCreated
		attrs["collectibleMint"] = rec.CollectibleMint.String()
		if draw != nil {
			attrs["lucky"] = strconv.FormatBool(draw.Lucky)
			if draw.Eligible {
				attrs["draw"] = u64(draw.Draw)
			}
		}
	}
	return &types.Event{Type: typ, Attributes: attrs}
}

func exchangedEvent(record crypto.Address, rec *Record, taker crypto.Address) *types.Event {
	return &types.Event{
		Type: EventEscrowExchanged,
		Attributes: map[string]string{
			"identifier":        rec.Identifier,
			"record":            record.String(),
			"variant":           rec.Variant.String(),
			"initializer":       rec.InitializerKey.String(),
			"taker":             taker.String(),
			"initializerAmount": u64(rec.InitializerAmount),
			"takerAmount":       u64(rec.TakerAmount),
		},
	}
}

func cancelledEvent(record crypto.Address, rec *Record) *types.Event {
	return &types.Event{
		Type: EventEscrowCancelled,
		Attributes: map[string]string{
			"identifier":        rec.Identifier,
			"record":            record.String(),
			"variant":           rec.Variant.String(),
			"initializer":       rec.InitializerKey.String(),
			"initializerAmount": u64(rec.InitializerAmount),
		},
	}
}
