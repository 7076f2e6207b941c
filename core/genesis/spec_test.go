package genesis

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"vaultswap/core/runtime"
	"vaultswap/core/state"
	"vaultswap/crypto"
	"vaultswap/native/metadata"
	"vaultswap/native/token"
	"vaultswap/storage"
	"vaultswap/storage/trie"
)

func testAddress(label string) string {
	return crypto.ProgramID("genesis-test/" + label).String()
}

func sampleSpec() string {
	alice := testAddress("alice")
	authority := testAddress("authority")
	return strings.Join([]string{
		`genesisTime: "2024-01-01T00:00:00Z"`,
		`wallets:`,
		`  - address: ` + alice,
		`    lamports: 5000000000`,
		`mints:`,
		`  - label: USDC`,
		`    decimals: 6`,
		`    mintAuthority: ` + authority,
		`  - label: club`,
		`    decimals: 0`,
		`    mintAuthority: ` + authority,
		`  - label: piece-1`,
		`    decimals: 0`,
		`    mintAuthority: ` + authority,
		`tokenAccounts:`,
		`  - owner: ` + alice,
		`    mint: usdc`,
		`    amount: 1000`,
		`  - owner: ` + alice,
		`    mint: piece-1`,
		`    amount: 1`,
		`metadata:`,
		`  - mint: piece-1`,
		`    updateAuthority: ` + authority,
		`    name: Piece One`,
		`    symbol: P1`,
		`    collection: club`,
		`    verified: true`,
		``,
	}, "\n")
}

func TestLoadSpecAndApply(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "genesis.yaml")
	if err := os.WriteFile(path, []byte(sampleSpec()), 0o600); err != nil {
		t.Fatalf("write spec: %v", err)
	}
	spec, err := LoadSpec(path)
	if err != nil {
		t.Fatalf("load spec: %v", err)
	}
	if spec.GenesisTimestamp().Year() != 2024 {
		t.Fatalf("unexpected genesis time %v", spec.GenesisTimestamp())
	}

	db := storage.NewMemDB()
	defer db.Close()
	tr, err := trie.NewTrie(db, nil)
	if err != nil {
		t.Fatalf("new trie: %v", err)
	}
	manager := state.NewManager(tr)
	if err := Apply(spec, manager, runtime.DefaultRent()); err != nil {
		t.Fatalf("apply: %v", err)
	}

	alice := crypto.MustDecodeAddress(testAddress("alice"))
	wallet, err := manager.GetAccount(alice)
	if err != nil || wallet == nil {
		t.Fatalf("wallet missing: %v", err)
	}
	if wallet.Lamports != 5_000_000_000 {
		t.Fatalf("unexpected lamports %d", wallet.Lamports)
	}

	usdc := MintAddress("USDC")
	holding, _ := token.AssociatedAddress(alice, usdc)
	acc, err := manager.GetAccount(holding)
	if err != nil {
		t.Fatalf("get holding: %v", err)
	}
	balance, err := token.Balance(acc, holding)
	if err != nil || balance != 1000 {
		t.Fatalf("unexpected balance %d (%v)", balance, err)
	}
	mintAcc, err := manager.GetAccount(usdc)
	if err != nil {
		t.Fatalf("get mint: %v", err)
	}
	mint, err := token.DecodeMint(usdc, mintAcc)
	if err != nil {
		t.Fatalf("decode mint: %v", err)
	}
	if mint.Supply != 1000 || mint.Decimals != 6 {
		t.Fatalf("unexpected mint %+v", mint)
	}
	if mintAcc.Lamports != runtime.DefaultRent().MinimumBalance(token.MintSize) {
		t.Fatalf("mint not rent exempt: %d", mintAcc.Lamports)
	}

	piece := MintAddress("piece-1")
	mdAddr, _ := metadata.Address(piece)
	mdAcc, err := manager.GetAccount(mdAddr)
	if err != nil {
		t.Fatalf("get metadata: %v", err)
	}
	md, err := metadata.Decode(mdAddr, mdAcc)
	if err != nil {
		t.Fatalf("decode metadata: %v", err)
	}
	if md.Collection == nil || !md.Collection.Verified || md.Collection.Key != MintAddress("club") {
		t.Fatalf("unexpected collection %+v", md.Collection)
	}
}

func TestParseSpecRejectsInvalidDocuments(t *testing.T) {
	authority := testAddress("authority")
	cases := map[string]string{
		"missing time":     "wallets: []\n",
		"unknown field":    "genesisTime: \"2024-01-01T00:00:00Z\"\nvalidators: []\n",
		"bad wallet":       "genesisTime: \"2024-01-01T00:00:00Z\"\nwallets:\n  - address: nope\n",
		"duplicate mint":   "genesisTime: \"2024-01-01T00:00:00Z\"\nmints:\n  - label: a\n    mintAuthority: " + authority + "\n  - label: A\n    mintAuthority: " + authority + "\n",
		"unknown mint ref": "genesisTime: \"2024-01-01T00:00:00Z\"\ntokenAccounts:\n  - owner: " + authority + "\n    mint: ghost\n",
		"verified alone":   "genesisTime: \"2024-01-01T00:00:00Z\"\nmints:\n  - label: a\n    mintAuthority: " + authority + "\nmetadata:\n  - mint: a\n    updateAuthority: " + authority + "\n    verified: true\n",
	}
	for name, doc := range cases {
		if _, err := ParseSpec([]byte(doc)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}
