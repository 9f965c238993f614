// Package auth implements the stateless bearer-token gate. Tokens are signed
// JWTs carrying the user's identity claims; no session store exists, so a
// verified token reflects the account state at issuance time and may be
// stale.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTTL is the lifetime of an issued token: ten days.
const DefaultTTL = 10 * 24 * time.Hour

// ErrInvalidToken reports a token that failed signature, expiry, or shape
// verification.
var ErrInvalidToken = errors.New("invalid token")

// Identity is the set of claims embedded in every issued token.
type Identity struct {
	UserID      string `json:"_id"`
	ChannelName string `json:"channelName"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	LogoURL     string `json:"logoUrl"`
	LogoID      string `json:"logoId"`
}

// Claims is the full JWT payload.
type Claims struct {
	Identity
	jwt.RegisteredClaims
}

// Option configures a TokenManager.
type Option func(*TokenManager)

// WithTTL overrides the token lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(m *TokenManager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *TokenManager) {
		if now != nil {
			m.now = now
		}
	}
}

// TokenManager signs and verifies bearer tokens against a process-wide
// secret. It holds no mutable state and is safe for concurrent use.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager constructs a manager from the shared signing secret.
func NewTokenManager(secret string, opts ...Option) (*TokenManager, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("token secret is required")
	}
	manager := &TokenManager{
		secret: []byte(secret),
		ttl:    DefaultTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(manager)
		}
	}
	return manager, nil
}

// Issue signs a token embedding the identity with the configured expiry.
func (m *TokenManager) Issue(identity Identity) (string, error) {
	now := m.now()
	claims := Claims{
		Identity: identity,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token and returns its identity claims.
func (m *TokenManager) Verify(tokenString string) (Identity, error) {
	claims := &Claims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
	)
	token, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return Identity{}, ErrInvalidToken
	}
	if claims.UserID == "" {
		return Identity{}, ErrInvalidToken
	}
	return claims.Identity, nil
}
