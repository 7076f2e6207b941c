package config

// Logging configures the slog handler and optional rotating file sink.
type Logging struct {
	Level      string `toml:"Level"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
	Compress   bool   `toml:"Compress"`
}

// Room carries the gated-offer policy. Collections are bech32 addresses.
type Room struct {
	RequiredStake      uint64   `toml:"RequiredStake"`
	AllowedCollections []string `toml:"AllowedCollections"`
	LuckyCollection    string   `toml:"LuckyCollection"`
	LuckyModulus       uint64   `toml:"LuckyModulus"`
	LuckyThreshold     uint64   `toml:"LuckyThreshold"`
}

// Pauses halts new offers per variant. Settlement is never paused.
type Pauses struct {
	Escrow bool `toml:"Escrow"`
	Room   bool `toml:"Room"`
}

// RPC configures the JSON-RPC listener.
type RPC struct {
	Address           string   `toml:"Address"`
	RateLimitPerSec   float64  `toml:"RateLimitPerSec"`
	RateLimitBurst    int      `toml:"RateLimitBurst"`
	JWTSecretEnv      string   `toml:"JWTSecretEnv"`
	JWTIssuer         string   `toml:"JWTIssuer"`
	TrustedProxies    []string `toml:"TrustedProxies"`
	ReadHeaderTimeout int      `toml:"ReadHeaderTimeout"`
	ReadTimeout       int      `toml:"ReadTimeout"`
	WriteTimeout      int      `toml:"WriteTimeout"`
	IdleTimeout       int      `toml:"IdleTimeout"`
}

// Indexer selects the offer index store. Driver is "sqlite" or "postgres".
type Indexer struct {
	Enabled bool   `toml:"Enabled"`
	Driver  string `toml:"Driver"`
	DSN     string `toml:"DSN"`
}

// Telemetry configures OpenTelemetry export.
type Telemetry struct {
	Endpoint           string            `toml:"Endpoint"`
	Insecure           bool              `toml:"Insecure"`
	Headers            map[string]string `toml:"Headers"`
	Traces             bool              `toml:"Traces"`
	Metrics            bool              `toml:"Metrics"`
	SampleRatio        float64           `toml:"SampleRatio"`
	InstanceID         string            `toml:"InstanceID"`
	ResourceAttributes map[string]string `toml:"ResourceAttributes"`
}
