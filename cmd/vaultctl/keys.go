package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"vaultswap/cmd/internal/passphrase"
	"vaultswap/crypto"
	"vaultswap/native/escrow"
)

var commandKeygen = &cli.Command{
	Name:      "keygen",
	Usage:     "generate a new ed25519 key into an encrypted keystore",
	ArgsUsage: "<keystore-file>",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "lightkdf", Usage: "use less secure scrypt parameters"},
	},
	Action: func(c *cli.Context) error {
		path := c.Args().First()
		if path == "" {
			return fmt.Errorf("keystore file argument required")
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("keystore %s already exists", path)
		}
		pass, err := passphrase.NewSource(passphraseEnv, "Choose keystore passphrase: ").Get()
		if err != nil {
			return err
		}
		key, err := crypto.GeneratePrivateKey()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return err
		}
		save := crypto.SaveToKeystore
		if c.Bool("lightkdf") {
			save = crypto.SaveToKeystoreLight
		}
		if err := save(path, key, pass); err != nil {
			return err
		}
		return printJSON(c, map[string]string{"address": key.Address().String(), "keystore": path})
	},
}

var commandAddress = &cli.Command{
	Name:  "address",
	Usage: "print the address held in a keystore",
	Flags: []cli.Flag{keyFlag},
	Action: func(c *cli.Context) error {
		key, err := loadKey(c)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(writer(c), key.Address().String())
		return err
	},
}

type authorityOutput struct {
	Authority  crypto.Address  `json:"authority"`
	Bump       uint8           `json:"bump"`
	Vault      *crypto.Address `json:"vault,omitempty"`
	Record     *crypto.Address `json:"record,omitempty"`
	RecordBump *uint8          `json:"recordBump,omitempty"`
}

var commandAuthority = &cli.Command{
	Name:  "authority",
	Usage: "derive the vault authority offline, optionally with a mint's vault and an offer's record",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "mint", Usage: "mint whose vault to derive"},
		&cli.StringFlag{Name: "identifier", Usage: "offer identifier whose record to derive"},
	},
	Action: func(c *cli.Context) error {
		authority, bump := escrow.VaultAuthority()
		out := authorityOutput{Authority: authority, Bump: bump}
		if c.String("mint") != "" {
			mint, err := addressFlag(c, "mint")
			if err != nil {
				return err
			}
			vault := escrow.VaultAddress(mint)
			out.Vault = &vault
		}
		if id := c.String("identifier"); id != "" {
			record, recordBump, err := escrow.RecordAddress(id)
			if err != nil {
				return err
			}
			out.Record = &record
			out.RecordBump = &recordBump
		}
		return printJSON(c, out)
	},
}
