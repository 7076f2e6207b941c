package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	DataDir     string `toml:"DataDir"`
	Environment string `toml:"Environment"`
	GenesisFile string `toml:"GenesisFile"`

	Logging   Logging   `toml:"Logging"`
	Room      Room      `toml:"Room"`
	Pauses    Pauses    `toml:"Pauses"`
	RPC       RPC       `toml:"RPC"`
	Indexer   Indexer   `toml:"Indexer"`
	Telemetry Telemetry `toml:"Telemetry"`
}

// Load loads the configuration from the given path, writing a default file
// when none exists.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return nil, fmt.Errorf("config file %s has unknown keys: %s", path, strings.Join(keys, ", "))
	}
	cfg.applyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (cfg *Config) applyDefaults() {
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./vaultswap-data"
	}
	if strings.TrimSpace(cfg.Environment) == "" {
		cfg.Environment = "local"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.MaxSizeMB == 0 {
		cfg.Logging.MaxSizeMB = 100
	}
	if cfg.Room.RequiredStake == 0 {
		cfg.Room.RequiredStake = 50
	}
	if cfg.Room.LuckyModulus == 0 {
		cfg.Room.LuckyModulus = 10
		if cfg.Room.LuckyThreshold == 0 {
			cfg.Room.LuckyThreshold = 2
		}
	}
	if cfg.Room.AllowedCollections == nil {
		cfg.Room.AllowedCollections = []string{}
	}
	if cfg.RPC.Address == "" {
		cfg.RPC.Address = ":8545"
	}
	if cfg.RPC.RateLimitPerSec == 0 {
		cfg.RPC.RateLimitPerSec = 20
	}
	if cfg.RPC.RateLimitBurst == 0 {
		cfg.RPC.RateLimitBurst = 40
	}
	if cfg.RPC.ReadHeaderTimeout == 0 {
		cfg.RPC.ReadHeaderTimeout = 5
	}
	if cfg.RPC.ReadTimeout == 0 {
		cfg.RPC.ReadTimeout = 15
	}
	if cfg.RPC.WriteTimeout == 0 {
		cfg.RPC.WriteTimeout = 15
	}
	if cfg.RPC.IdleTimeout == 0 {
		cfg.RPC.IdleTimeout = 60
	}
	if cfg.Indexer.Driver == "" {
		cfg.Indexer.Driver = "sqlite"
	}
	if cfg.Indexer.DSN == "" && cfg.Indexer.Driver == "sqlite" {
		cfg.Indexer.DSN = filepath.Join(cfg.DataDir, "offers.db")
	}
	if cfg.Telemetry.Endpoint == "" {
		cfg.Telemetry.Endpoint = "localhost:4318"
	}
	if cfg.Telemetry.SampleRatio == 0 {
		cfg.Telemetry.SampleRatio = 1
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	cfg.Indexer.Enabled = true
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
