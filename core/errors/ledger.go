package errors

import stderrors "errors"

var (
	ErrAccountNotFound       = stderrors.New("ledger: account not found")
	ErrAccountAlreadyInUse   = stderrors.New("ledger: account already in use")
	ErrInsufficientLamports  = stderrors.New("ledger: insufficient lamports")
	ErrLamportOverflow       = stderrors.New("ledger: lamport balance overflow")
	ErrAccountNotDeclared    = stderrors.New("ledger: account not declared by instruction")
	ErrAccountNotWritable    = stderrors.New("ledger: account not writable")
	ErrMissingSignature      = stderrors.New("ledger: missing required signature")
	ErrIllegalOwner          = stderrors.New("ledger: account owned by another program")
	ErrUnknownProgram        = stderrors.New("ledger: unknown program")
	ErrNotRentExempt         = stderrors.New("ledger: balance below rent-exempt minimum")
	ErrInvalidInstructionArg = stderrors.New("ledger: invalid instruction data")
)
