package config

import (
	"fmt"
	"strings"

	"vaultswap/crypto"
	"vaultswap/native/common"
	"vaultswap/native/escrow"
)

// Validate checks cross-field constraints after defaults are applied.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config must not be nil")
	}
	if _, err := cfg.Room.Policy(); err != nil {
		return err
	}
	if cfg.Room.LuckyThreshold >= cfg.Room.LuckyModulus {
		return fmt.Errorf("room: LuckyThreshold must be below LuckyModulus")
	}
	if cfg.RPC.RateLimitPerSec < 0 || cfg.RPC.RateLimitBurst < 0 {
		return fmt.Errorf("rpc: rate limits must not be negative")
	}
	switch strings.ToLower(cfg.Indexer.Driver) {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("indexer: unsupported driver %q", cfg.Indexer.Driver)
	}
	if cfg.Indexer.Enabled && strings.TrimSpace(cfg.Indexer.DSN) == "" {
		return fmt.Errorf("indexer: DSN required")
	}
	if cfg.Telemetry.SampleRatio < 0 || cfg.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry: SampleRatio must be within [0, 1]")
	}
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging: unknown level %q", cfg.Logging.Level)
	}
	return nil
}

// Policy converts the room section into the escrow policy.
func (r Room) Policy() (escrow.Policy, error) {
	policy := escrow.Policy{
		RequiredStake:  r.RequiredStake,
		LuckyModulus:   r.LuckyModulus,
		LuckyThreshold: r.LuckyThreshold,
	}
	for i, raw := range r.AllowedCollections {
		addr, err := crypto.DecodeAddress(raw)
		if err != nil {
			return escrow.Policy{}, fmt.Errorf("room: AllowedCollections[%d]: %w", i, err)
		}
		policy.AllowedCollections = append(policy.AllowedCollections, addr)
	}
	if strings.TrimSpace(r.LuckyCollection) != "" {
		addr, err := crypto.DecodeAddress(r.LuckyCollection)
		if err != nil {
			return escrow.Policy{}, fmt.Errorf("room: LuckyCollection: %w", err)
		}
		policy.LuckyCollection = addr
	}
	return policy, nil
}

// View returns the pause set keyed by guard module name.
func (p Pauses) View() common.StaticPauses {
	return common.StaticPauses{
		escrow.VariantEscrow.Module(): p.Escrow,
		escrow.VariantRoom.Module():   p.Room,
	}
}
