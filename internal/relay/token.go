// Package relay is the privileged side of the split deployment: it owns the
// extension enumeration capability and exposes it to auditors over HTTP.
package relay

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Issuer is the "iss" claim stamped on every relay token.
const Issuer = "extperm-host"

// ScopeInventoryRead is the only scope a relay token currently carries.
const ScopeInventoryRead = "inventory:read"

// ErrNoSecret is returned when a token is requested from an issuer without a secret.
var ErrNoSecret = errors.New("relay secret is not configured")

// Claims are the JWT claims for a relay token.
type Claims struct {
	jwt.RegisteredClaims
	Scopes []string `json:"scopes"`
}

// HasScope reports whether the claims include scope.
func (c *Claims) HasScope(scope string) bool {
	if c == nil {
		return false
	}
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// TokenIssuer issues and verifies HS256 relay tokens with a shared secret.
// The auditor and the inventory host must be configured with the same secret.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer creates a TokenIssuer. ttl defaults to one hour.
// An empty secret yields an issuer in open mode: Enabled reports false and
// Issue refuses to sign.
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	if ttl == 0 {
		ttl = time.Hour
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Enabled reports whether a secret is configured.
func (t *TokenIssuer) Enabled() bool { return len(t.secret) > 0 }

// TTL returns the configured token lifetime.
func (t *TokenIssuer) TTL() time.Duration { return t.ttl }

// Issue signs a token for subject carrying the inventory read scope.
func (t *TokenIssuer) Issue(subject string) (string, error) {
	if !t.Enabled() {
		return "", ErrNoSecret
	}
	now := t.now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			ID:        uuid.New().String(),
		},
		Scopes: []string{ScopeInventoryRead},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a relay token, returning its claims on success.
func (t *TokenIssuer) Verify(tokenStr string) (*Claims, error) {
	if !t.Enabled() {
		return nil, ErrNoSecret
	}
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&Claims{},
		func(tok *jwt.Token) (any, error) {
			if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
			}
			return t.secret, nil
		},
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return nil, fmt.Errorf("verify token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}
