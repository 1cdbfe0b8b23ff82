// Package auth issues and checks the bearer tokens that identify the calling
// party. Accounts are looked up through UserStorage; the ledger itself never
// sees passwords.
package auth

import (
	"context"

	"github.com/fairshare/ledger/internal/models"
)

// Authenticator verifies account credentials. PasswordAuthenticator is the
// only implementation today.
type Authenticator interface {
	// Register creates an account. Errors: ErrInvalidEmail, ErrWeakPassword,
	// ErrEmailExists.
	Register(ctx context.Context, email, displayName, credential string) (*models.User, error)

	// Authenticate returns the account for valid credentials, or ErrInvalidCredentials.
	Authenticate(ctx context.Context, email, credential string) (*models.User, error)

	// ValidateCredential reports whether credential is acceptable for a new account.
	ValidateCredential(credential string) error

	// User looks up an account by ID, or ErrUserNotFound.
	User(ctx context.Context, id string) (*models.User, error)
}
