package types

import (
	"errors"
	"testing"

	"vaultswap/crypto"
)

func newKey(t *testing.T) *crypto.PrivateKey {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key
}

func TestTransactionSignVerify(t *testing.T) {
	alice := newKey(t)
	bob := newKey(t)
	program := crypto.ProgramID("test")
	tx := &Transaction{
		Nonce: 7,
		Instructions: []Instruction{
			{Program: program, Accounts: []AccountMeta{
				{Address: alice.Address(), Signer: true, Writable: true},
				{Address: bob.Address(), Signer: true},
				{Address: alice.Address(), Signer: true},
			}, Data: []byte{1, 2, 3}},
		},
	}
	signers := tx.Signers()
	if len(signers) != 2 || signers[0] != alice.Address() || signers[1] != bob.Address() {
		t.Fatalf("unexpected signers %v", signers)
	}
	if err := tx.Sign(bob, alice); err != nil {
		t.Fatalf("sign: %v", err)
	}
	if err := tx.Verify(); err != nil {
		t.Fatalf("verify: %v", err)
	}

	raw, err := tx.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeTransaction(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if err := decoded.Verify(); err != nil {
		t.Fatalf("verify decoded: %v", err)
	}

	tx.Instructions[0].Data = []byte{9}
	if err := tx.Verify(); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature after tamper, got %v", err)
	}
}

func TestTransactionSignRequiresEveryKey(t *testing.T) {
	alice := newKey(t)
	bob := newKey(t)
	tx := &Transaction{Instructions: []Instruction{{
		Program:  crypto.ProgramID("test"),
		Accounts: []AccountMeta{{Address: alice.Address(), Signer: true}, {Address: bob.Address(), Signer: true}},
	}}}
	if err := tx.Sign(alice); !errors.Is(err, ErrMissingKey) {
		t.Fatalf("expected ErrMissingKey, got %v", err)
	}
	tx.Signatures = [][]byte{alice.Sign([]byte("x"))}
	if err := tx.Verify(); !errors.Is(err, ErrSignatureCount) {
		t.Fatalf("expected ErrSignatureCount, got %v", err)
	}
}
