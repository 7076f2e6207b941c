package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"vaultswap/cmd/internal/passphrase"
	"vaultswap/crypto"
	"vaultswap/rpc"
)

const (
	passphraseEnv  = "VAULTSWAP_PASSPHRASE"
	defaultRPCURL  = "http://127.0.0.1:8545"
	requestTimeout = 30 * time.Second
)

var (
	rpcFlag = &cli.StringFlag{
		Name:    "rpc",
		Usage:   "JSON-RPC endpoint of a vaultswapd node",
		Value:   defaultRPCURL,
		EnvVars: []string{"VAULTSWAP_RPC"},
	}
	tokenFlag = &cli.StringFlag{
		Name:    "token",
		Usage:   "bearer token for transaction submission",
		EnvVars: []string{"VAULTSWAP_RPC_TOKEN"},
	}
	keyFlag = &cli.StringFlag{
		Name:     "key",
		Usage:    "path to the signer's keystore file",
		Required: true,
	}
	identifierFlag = &cli.StringFlag{
		Name:     "identifier",
		Usage:    "offer identifier",
		Required: true,
	}
)

func newApp() *cli.App {
	return &cli.App{
		Name:  "vaultctl",
		Usage: "manage keys and escrow offers on a vaultswap ledger",
		Flags: []cli.Flag{rpcFlag, tokenFlag},
		Commands: []*cli.Command{
			commandKeygen,
			commandAddress,
			commandAuthority,
			commandEscrow,
			commandOffers,
			commandToken,
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func clientFrom(c *cli.Context) *rpc.Client {
	return rpc.NewClient(c.String(rpcFlag.Name), c.String(tokenFlag.Name))
}

func requestContext(c *cli.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Context, requestTimeout)
}

func writer(c *cli.Context) io.Writer {
	if c.App.Writer != nil {
		return c.App.Writer
	}
	return os.Stdout
}

func printJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(writer(c))
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func loadKey(c *cli.Context) (*crypto.PrivateKey, error) {
	pass, err := passphrase.NewSource(passphraseEnv, "").Get()
	if err != nil {
		return nil, err
	}
	key, err := crypto.LoadFromKeystore(c.String(keyFlag.Name), pass)
	if err != nil {
		return nil, fmt.Errorf("load keystore: %w", err)
	}
	return key, nil
}

func addressFlag(c *cli.Context, name string) (crypto.Address, error) {
	raw := strings.TrimSpace(c.String(name))
	if raw == "" {
		return crypto.Address{}, fmt.Errorf("--%s is required", name)
	}
	addr, err := crypto.DecodeAddress(raw)
	if err != nil {
		return crypto.Address{}, fmt.Errorf("--%s: %w", name, err)
	}
	return addr, nil
}
