package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/fairshare/ledger/internal/models"
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrMissingToken = errors.New("authorization token required")
)

// Issuer is the iss claim on every session token.
const Issuer = "fairshare-ledger"

// SessionClaims identify the ledger party a bearer token speaks for. The
// party is the standard sub claim.
type SessionClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Party returns the party named by the token subject.
func (c *SessionClaims) Party() models.Party {
	return models.Party(c.Subject)
}

// TokenIssuer signs and verifies HS256 session tokens.
type TokenIssuer struct {
	key    []byte
	ttl    time.Duration
	now    func() time.Time
	parser *jwt.Parser
}

// NewTokenIssuer returns an issuer whose tokens stay valid for ttl.
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	ti := &TokenIssuer{key: []byte(secret), ttl: ttl, now: time.Now}
	ti.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(func() time.Time { return ti.now() }),
	)
	return ti
}

// TTL reports how long issued tokens stay valid.
func (ti *TokenIssuer) TTL() time.Duration {
	return ti.ttl
}

// Issue signs a token for user's ledger party.
func (ti *TokenIssuer) Issue(user *models.User) (string, error) {
	party := models.Party(user.ID)
	if !party.Valid() {
		return "", fmt.Errorf("%w: user id %q is not a valid party", ErrInvalidToken, user.ID)
	}

	now := ti.now()
	claims := SessionClaims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   string(party),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ti.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ti.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature, issuer and lifetime of token and returns its
// claims. Every failure wraps ErrInvalidToken.
func (ti *TokenIssuer) Verify(token string) (*SessionClaims, error) {
	var claims SessionClaims
	if _, err := ti.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return ti.key, nil
	}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !claims.Party().Valid() {
		return nil, fmt.Errorf("%w: subject %q", ErrInvalidToken, claims.Subject)
	}
	return &claims, nil
}
