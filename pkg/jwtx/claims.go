package jwtx

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Default token TTLs, used when a provider does not configure its own.
const (
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// Claims are the access-token claims minted by the stateless driver.
type Claims struct {
	jwt.RegisteredClaims

	// SID is the session correlation id shared with the paired refresh token.
	SID string `json:"sid"`

	// Guard names the guard that issued the token.
	Guard string `json:"guard,omitempty"`

	// User is the sanitized public projection of the principal at issuance.
	// Informational only; verifiers re-resolve the principal by Subject.
	User map[string]any `json:"user,omitempty"`
}

// NewAccessClaims builds access-token claims valid from now for ttl.
func NewAccessClaims(
	subject, sid, guard string,
	user map[string]any,
	ttl time.Duration,
	issuer string,
	now time.Time,
) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		SID:   sid,
		Guard: guard,
		User:  user,
	}
}

// Expiry returns the exp claim, or nil when the token does not expire.
func (c *Claims) Expiry() *time.Time {
	if c.ExpiresAt == nil {
		return nil
	}
	t := c.ExpiresAt.UTC()
	return &t
}

// ValidateGuard rejects tokens minted by a different guard.
func (c *Claims) ValidateGuard(expected string) error {
	if c.Guard != expected {
		return ErrGuard
	}
	return nil
}
