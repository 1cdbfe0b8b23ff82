package service

import (
	"errors"

	"connectrpc.com/connect"

	"github.com/fairshare/ledger/internal/auth"
	"github.com/fairshare/ledger/internal/calculator"
	"github.com/fairshare/ledger/internal/storage"
)

var (
	// ErrNotInvolved is returned when the caller is not a party to the event
	// they are creating or changing.
	ErrNotInvolved = errors.New("caller is not involved in this event")
	// ErrNotAdmin is returned for operator RPCs called by anyone else.
	ErrNotAdmin = errors.New("caller is not an administrator")
)

// toConnectError maps domain errors onto connect codes. Errors that are
// already *connect.Error pass through unchanged.
func toConnectError(err error) error {
	if err == nil {
		return nil
	}
	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		return err
	}
	return connect.NewError(codeOf(err), err)
}

func codeOf(err error) connect.Code {
	switch {
	case errors.Is(err, calculator.ErrInvalidPolicy),
		errors.Is(err, calculator.ErrNonPositiveAmount),
		errors.Is(err, calculator.ErrParse),
		errors.Is(err, calculator.ErrSameParty),
		errors.Is(err, calculator.ErrInvalidEvent),
		errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, auth.ErrInvalidEmail):
		return connect.CodeInvalidArgument
	case errors.Is(err, storage.ErrNotFound),
		errors.Is(err, calculator.ErrUnknownExpense),
		errors.Is(err, auth.ErrUserNotFound):
		return connect.CodeNotFound
	case errors.Is(err, storage.ErrDuplicate),
		errors.Is(err, calculator.ErrDuplicateEvent),
		errors.Is(err, calculator.ErrAlreadyVoided),
		errors.Is(err, auth.ErrEmailExists):
		return connect.CodeAlreadyExists
	case errors.Is(err, ErrNotInvolved),
		errors.Is(err, ErrNotAdmin):
		return connect.CodePermissionDenied
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, auth.ErrInvalidToken):
		return connect.CodeUnauthenticated
	default:
		return connect.CodeInternal
	}
}
