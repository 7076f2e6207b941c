package escrow

import (
	"errors"
	"fmt"

	"vaultswap/crypto"
	"vaultswap/native/common"
)

// Kind classifies escrow failures so callers can tell a gate rejection from a
// funds problem without string matching.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindAuthorization Kind = "authorization"
	KindArithmetic    Kind = "arithmetic"
	KindTransfer      Kind = "transfer"
)

// Error is a named escrow failure.
type Error struct {
	kind Kind
	msg  string
}

func newError(kind Kind, msg string) *Error { return &Error{kind: kind, msg: msg} }

func (e *Error) Error() string { return "escrow: " + e.msg }
func (e *Error) Kind() Kind    { return e.kind }

var (
	// Validation.
	ErrInsufficientFunds  = newError(KindValidation, "insufficient funds")
	ErrAccountMismatch    = newError(KindValidation, "account mismatch")
	ErrIdentifierInUse    = newError(KindValidation, "identifier already in use")
	ErrIdentifierEmpty    = newError(KindValidation, "identifier must not be empty")
	ErrIdentifierTooLong  = newError(KindValidation, fmt.Sprintf("identifier exceeds %d bytes", MaxIdentifierLen))
	ErrStakeMismatch      = newError(KindValidation, "initializer amount does not equal the required stake")
	ErrRecordNotFound     = newError(KindValidation, "escrow record not found")
	ErrUnknownInstruction = newError(KindValidation, "unknown instruction")

	// Authorization.
	ErrMissingSigner         = newError(KindAuthorization, "required signer missing")
	ErrUnauthorized          = newError(KindAuthorization, "signer is not the record initializer")
	ErrInvalidNFTOwner       = newError(KindAuthorization, "collectible holding not owned by signer")
	ErrInvalidNFTAccountMint = newError(KindAuthorization, "collectible holding has wrong mint")
	ErrNFTAccountEmpty       = newError(KindAuthorization, "collectible holding does not hold exactly one unit")
	ErrInvalidNFTMintSupply  = newError(KindAuthorization, "collectible mint supply is not one")
	ErrCollectionMissing     = newError(KindAuthorization, "collectible has no collection reference")
	ErrCollectionNotVerified = newError(KindAuthorization, "collection not verified")
	ErrCollectionNotSame     = newError(KindAuthorization, "collection not allowed")

	// Arithmetic.
	ErrMultiplierOverflow = newError(KindArithmetic, "taker amount overflows when doubled")

	// lose_exchange is part of the dispatch surface but has no defined
	// behaviour yet.
	ErrInstructionUnspecified = newError(KindValidation, "instruction has no specified behaviour")
)

// AccountMismatchError reports which supplied account failed to match the
// stored or derived one. It matches ErrAccountMismatch under errors.Is, and
// unwraps to Cause when the mismatch was found by a failed load.
type AccountMismatchError struct {
	Field    string
	Expected crypto.Address
	Got      crypto.Address
	Cause    error
}

func mismatch(field string, expected, got crypto.Address) error {
	return &AccountMismatchError{Field: field, Expected: expected, Got: got}
}

func (e *AccountMismatchError) Error() string {
	msg := fmt.Sprintf("escrow: account mismatch for %s: expected %s, got %s", e.Field, e.Expected, e.Got)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *AccountMismatchError) Unwrap() error { return e.Cause }

func (e *AccountMismatchError) Kind() Kind { return KindValidation }

func (e *AccountMismatchError) Is(target error) bool { return target == ErrAccountMismatch }

// KindOf classifies err. Errors raised by the token or ledger layers are
// reported as transfer failures; they are never rewrapped.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var classified interface{ Kind() Kind }
	if errors.As(err, &classified) {
		return classified.Kind()
	}
	if errors.Is(err, common.ErrModulePaused) {
		return KindAuthorization
	}
	return KindTransfer
}
