package genesis

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"vaultswap/crypto"
)

// Spec is the YAML genesis document: funded wallets, mints, token balances
// and collectible metadata present at slot zero.
type Spec struct {
	GenesisTime   string             `yaml:"genesisTime"`
	Wallets       []WalletSpec       `yaml:"wallets"`
	Mints         []MintSpec         `yaml:"mints"`
	TokenAccounts []TokenAccountSpec `yaml:"tokenAccounts"`
	Metadata      []MetadataSpec     `yaml:"metadata"`

	genesisTimestamp time.Time
	mintsByLabel     map[string]crypto.Address
}

type WalletSpec struct {
	Address  string `yaml:"address"`
	Lamports uint64 `yaml:"lamports"`
}

// MintSpec declares a mint. Address may be omitted, in which case the mint
// lives at MintAddress(Label).
type MintSpec struct {
	Label         string `yaml:"label"`
	Address       string `yaml:"address,omitempty"`
	Decimals      uint8  `yaml:"decimals"`
	MintAuthority string `yaml:"mintAuthority"`
}

// TokenAccountSpec funds a token account. Mint is a mint label or address.
// Address defaults to the owner's associated account.
type TokenAccountSpec struct {
	Owner   string `yaml:"owner"`
	Mint    string `yaml:"mint"`
	Amount  uint64 `yaml:"amount"`
	Address string `yaml:"address,omitempty"`
}

// MetadataSpec attaches metadata to a mint. Collection is a mint label or
// address.
type MetadataSpec struct {
	Mint            string `yaml:"mint"`
	UpdateAuthority string `yaml:"updateAuthority"`
	Name            string `yaml:"name"`
	Symbol          string `yaml:"symbol"`
	Collection      string `yaml:"collection,omitempty"`
	Verified        bool   `yaml:"verified,omitempty"`
}

// MintAddress is the address of a label-only genesis mint.
func MintAddress(label string) crypto.Address {
	return crypto.ProgramID("vaultswap/genesis/mint/" + strings.ToLower(strings.TrimSpace(label)))
}

// LoadSpec reads and validates the genesis document at path.
func LoadSpec(path string) (*Spec, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("genesis spec path must be provided")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis spec %q: %w", path, err)
	}
	spec, err := ParseSpec(raw)
	if err != nil {
		return nil, fmt.Errorf("genesis spec %q: %w", path, err)
	}
	return spec, nil
}

// ParseSpec decodes and validates a YAML genesis document.
func ParseSpec(raw []byte) (*Spec, error) {
	var spec Spec
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := spec.validate(); err != nil {
		return nil, fmt.Errorf("invalid: %w", err)
	}
	return &spec, nil
}

// GenesisTimestamp is the parsed genesis time.
func (s *Spec) GenesisTimestamp() time.Time { return s.genesisTimestamp }

// ResolveMint maps a mint label or address to an address.
func (s *Spec) ResolveMint(ref string) (crypto.Address, error) {
	ref = strings.TrimSpace(ref)
	if addr, ok := s.mintsByLabel[strings.ToLower(ref)]; ok {
		return addr, nil
	}
	addr, err := crypto.DecodeAddress(ref)
	if err != nil {
		return crypto.Address{}, fmt.Errorf("unknown mint %q", ref)
	}
	return addr, nil
}

func (s *Spec) validate() error {
	ts, err := parseGenesisTime(s.GenesisTime)
	if err != nil {
		return err
	}
	s.genesisTimestamp = ts

	for i, w := range s.Wallets {
		if _, err := crypto.DecodeAddress(w.Address); err != nil {
			return fmt.Errorf("wallet[%d]: %w", i, err)
		}
	}

	s.mintsByLabel = make(map[string]crypto.Address, len(s.Mints))
	for i := range s.Mints {
		m := &s.Mints[i]
		key := strings.ToLower(strings.TrimSpace(m.Label))
		if key == "" {
			return fmt.Errorf("mint[%d]: label must be provided", i)
		}
		if _, exists := s.mintsByLabel[key]; exists {
			return fmt.Errorf("mint[%d]: duplicate label %q", i, m.Label)
		}
		addr := MintAddress(m.Label)
		if strings.TrimSpace(m.Address) != "" {
			if addr, err = crypto.DecodeAddress(m.Address); err != nil {
				return fmt.Errorf("mint[%d]: %w", i, err)
			}
		}
		if _, err := crypto.DecodeAddress(m.MintAuthority); err != nil {
			return fmt.Errorf("mint[%d] mintAuthority: %w", i, err)
		}
		s.mintsByLabel[key] = addr
	}

	for i, ta := range s.TokenAccounts {
		if _, err := crypto.DecodeAddress(ta.Owner); err != nil {
			return fmt.Errorf("tokenAccount[%d] owner: %w", i, err)
		}
		if _, err := s.ResolveMint(ta.Mint); err != nil {
			return fmt.Errorf("tokenAccount[%d]: %w", i, err)
		}
		if ta.Address != "" {
			if _, err := crypto.DecodeAddress(ta.Address); err != nil {
				return fmt.Errorf("tokenAccount[%d] address: %w", i, err)
			}
		}
	}

	for i, md := range s.Metadata {
		if _, err := s.ResolveMint(md.Mint); err != nil {
			return fmt.Errorf("metadata[%d]: %w", i, err)
		}
		if _, err := crypto.DecodeAddress(md.UpdateAuthority); err != nil {
			return fmt.Errorf("metadata[%d] updateAuthority: %w", i, err)
		}
		if md.Collection != "" {
			if _, err := s.ResolveMint(md.Collection); err != nil {
				return fmt.Errorf("metadata[%d] collection: %w", i, err)
			}
		} else if md.Verified {
			return fmt.Errorf("metadata[%d]: verified set without collection", i)
		}
	}
	return nil
}

func parseGenesisTime(value string) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return time.Time{}, fmt.Errorf("genesisTime must be provided")
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts, nil
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts, nil
	}
	return time.Time{}, fmt.Errorf("invalid genesisTime %q", value)
}
