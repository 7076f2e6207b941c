package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"vaultswap/config"
	"vaultswap/core"
	"vaultswap/core/events"
	"vaultswap/core/genesis"
	"vaultswap/indexer"
	"vaultswap/observability/logging"
	"vaultswap/observability/metrics"
	telemetry "vaultswap/observability/otel"
	"vaultswap/rpc"
	"vaultswap/storage"
)

const serviceName = "vaultswapd"

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	genesisFlag := flag.String("genesis", "", "Path to a genesis YAML file (overrides config GenesisFile)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if g := strings.TrimSpace(*genesisFlag); g != "" {
		cfg.GenesisFile = g
	}

	logger, err := logging.SetupWithOptions(serviceName, cfg.Environment, logging.Options{
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to configure logging: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("vaultswapd exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	shutdownTelemetry, err := telemetry.Init(ctx, telemetryConfig(cfg))
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown", slog.Any("error", err))
		}
	}()

	a, err := assemble(cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	err = a.server.Serve(ctx, cfg.RPC.Address)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func telemetryConfig(cfg *config.Config) telemetry.Config {
	attrs := map[string]string{
		"vaultswap.data_dir":       cfg.DataDir,
		"vaultswap.indexer.driver": cfg.Indexer.Driver,
	}
	for k, v := range cfg.Telemetry.ResourceAttributes {
		attrs[k] = v
	}
	return telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: version,
		Environment:    cfg.Environment,
		InstanceID:     cfg.Telemetry.InstanceID,
		Attributes:     attrs,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		Headers:        cfg.Telemetry.Headers,
		Traces:         cfg.Telemetry.Traces,
		Metrics:        cfg.Telemetry.Metrics,
		SampleRatio:    cfg.Telemetry.SampleRatio,
	}
}

// app holds the long-lived components the daemon owns.
type app struct {
	db     storage.Database
	node   *core.Node
	offers *indexer.Indexer
	server *rpc.Server
}

func (a *app) close() {
	if a.offers != nil {
		_ = a.offers.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}

// assemble opens storage, the ledger, the indexer and the RPC server from cfg.
func assemble(cfg *config.Config, logger *slog.Logger) (*app, error) {
	policy, err := cfg.Room.Policy()
	if err != nil {
		return nil, err
	}

	var spec *genesis.Spec
	if path := strings.TrimSpace(cfg.GenesisFile); path != "" {
		spec, err = genesis.LoadSpec(path)
		if err != nil {
			return nil, fmt.Errorf("load genesis: %w", err)
		}
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("prepare data directory: %w", err)
	}
	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "ledger"))
	if err != nil {
		return nil, fmt.Errorf("open ledger database: %w", err)
	}
	a := &app{db: db}

	escrowMetrics := metrics.Escrow()
	emitters := []events.Emitter{escrowMetrics}
	if cfg.Indexer.Enabled {
		offerDB, err := indexer.Open(cfg.Indexer.Driver, cfg.Indexer.DSN)
		if err != nil {
			a.close()
			return nil, err
		}
		a.offers = indexer.New(offerDB, logger)
		emitters = append(emitters, a.offers)
	}

	pauses := cfg.Pauses.View()
	node, err := core.NewNode(db, core.NodeConfig{
		Logger:   logger,
		Policy:   &policy,
		Pauses:   pauses,
		Genesis:  spec,
		Emitters: emitters,
		Observer: escrowMetrics,
	})
	if err != nil {
		a.close()
		return nil, fmt.Errorf("open node: %w", err)
	}
	a.node = node

	var secret string
	if env := strings.TrimSpace(cfg.RPC.JWTSecretEnv); env != "" {
		secret = os.Getenv(env)
	}
	server, err := rpc.NewServer(node, a.offers, rpc.ServerConfig{
		RateLimitPerSec:   cfg.RPC.RateLimitPerSec,
		RateLimitBurst:    cfg.RPC.RateLimitBurst,
		JWTSecret:         secret,
		JWTIssuer:         cfg.RPC.JWTIssuer,
		TrustedProxies:    cfg.RPC.TrustedProxies,
		ReadHeaderTimeout: time.Duration(cfg.RPC.ReadHeaderTimeout) * time.Second,
		ReadTimeout:       time.Duration(cfg.RPC.ReadTimeout) * time.Second,
		WriteTimeout:      time.Duration(cfg.RPC.WriteTimeout) * time.Second,
		IdleTimeout:       time.Duration(cfg.RPC.IdleTimeout) * time.Second,
		Logger:            logger,
	})
	if err != nil {
		a.close()
		return nil, err
	}
	a.server = server
	if secret == "" {
		logger.Warn("rpc transaction submission is unauthenticated", slog.String("jwt_env", cfg.RPC.JWTSecretEnv))
	}
	return a, nil
}
