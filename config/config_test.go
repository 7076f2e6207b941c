package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"vaultswap/crypto"
	"vaultswap/native/escrow"
)

func TestLoadCreatesDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config not written: %v", err)
	}
	if cfg.Room.RequiredStake != escrow.DefaultRequiredStake {
		t.Fatalf("unexpected stake %d", cfg.Room.RequiredStake)
	}
	if cfg.RPC.Address != ":8545" {
		t.Fatalf("unexpected rpc address %q", cfg.RPC.Address)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Indexer.DSN != cfg.Indexer.DSN {
		t.Fatalf("reload changed DSN: %q vs %q", reloaded.Indexer.DSN, cfg.Indexer.DSN)
	}
}

func TestLoadParsesSections(t *testing.T) {
	club := crypto.ProgramID("config-test/club")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	contents := strings.Join([]string{
		`DataDir = "/var/lib/vaultswap"`,
		`Environment = "staging"`,
		`[Logging]`,
		`Level = "debug"`,
		`File = "/var/log/vaultswap.log"`,
		`[Room]`,
		`RequiredStake = 75`,
		`AllowedCollections = ["` + club.String() + `"]`,
		`LuckyCollection = "` + club.String() + `"`,
		`[Pauses]`,
		`Room = true`,
		`[RPC]`,
		`Address = "127.0.0.1:9000"`,
		`RateLimitPerSec = 5.5`,
		`JWTSecretEnv = "VAULTSWAP_JWT"`,
		`[Indexer]`,
		`Enabled = true`,
		`Driver = "postgres"`,
		`DSN = "postgres://localhost/offers"`,
		``,
	}, "\n")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Environment != "staging" || cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected top-level values: %+v", cfg)
	}
	policy, err := cfg.Room.Policy()
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	if policy.RequiredStake != 75 || !policy.Allows(club) || policy.LuckyCollection != club {
		t.Fatalf("unexpected policy %+v", policy)
	}
	if policy.LuckyModulus != 10 || policy.LuckyThreshold != 2 {
		t.Fatalf("lucky defaults not applied: %+v", policy)
	}
	view := cfg.Pauses.View()
	if !view.IsPaused("room") || view.IsPaused("escrow") {
		t.Fatalf("unexpected pauses %+v", view)
	}
	if cfg.RPC.RateLimitPerSec != 5.5 || cfg.RPC.RateLimitBurst != 40 {
		t.Fatalf("unexpected rpc limits %+v", cfg.RPC)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"unknown key":      "Bogus = 1\n",
		"bad collection":   "[Room]\nAllowedCollections = [\"nope\"]\n",
		"threshold":        "[Room]\nLuckyModulus = 4\nLuckyThreshold = 4\n",
		"driver":           "[Indexer]\nDriver = \"mysql\"\n",
		"level":            "[Logging]\nLevel = \"loud\"\n",
		"negative limiter": "[RPC]\nRateLimitPerSec = -1.0\n",
		"sample ratio":     "[Telemetry]\nSampleRatio = 1.5\n",
	}
	for name, contents := range cases {
		path := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
			t.Fatalf("%s: write: %v", name, err)
		}
		if _, err := Load(path); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}
