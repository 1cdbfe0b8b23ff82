package calculator

import (
	"errors"

	"github.com/fairshare/ledger/internal/money"
)

var (
	// ErrInvalidPolicy reports a split configuration that is malformed or incomplete.
	ErrInvalidPolicy = errors.New("invalid split policy")
	// ErrNonPositiveAmount reports a zero or negative amount where a positive one is required.
	ErrNonPositiveAmount = errors.New("amount must be positive")
	// ErrParse reports monetary text that could not be read.
	ErrParse = money.ErrParse
	// ErrSameParty reports a settlement from a party to itself.
	ErrSameParty = errors.New("from and to must be different parties")
	// ErrRoundingInvariant reports shares that do not add up to the expense
	// amount. It indicates a bug, not bad input.
	ErrRoundingInvariant = errors.New("shares do not sum to expense amount")
	// ErrInvalidEvent reports an event missing required fields.
	ErrInvalidEvent = errors.New("invalid event")
	// ErrDuplicateEvent reports an event ID already folded into the ledger.
	ErrDuplicateEvent = errors.New("duplicate event")
	// ErrUnknownExpense reports a void for an expense the ledger has not seen.
	ErrUnknownExpense = errors.New("unknown expense")
	// ErrAlreadyVoided reports a second void of the same expense.
	ErrAlreadyVoided = errors.New("expense already voided")
)
