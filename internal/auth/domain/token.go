package domain

import "time"

// TokenType classifies a stored token record.
type TokenType string

const (
	TokenTypeAccess    TokenType = "access"
	TokenTypeRefresh   TokenType = "refresh"
	TokenTypeBlacklist TokenType = "blacklist"
)

// Valid reports whether t is one of the known token types.
func (t TokenType) Valid() bool {
	switch t {
	case TokenTypeAccess, TokenTypeRefresh, TokenTypeBlacklist:
		return true
	}
	return false
}

// BearerTokenType is the token_type label returned with every token pair.
const BearerTokenType = "Bearer"

// TokenRecord is one persisted token. Token is the unique key; deleting the
// record revokes an opaque token, and a blacklist record revokes a signed one.
type TokenRecord struct {
	Token       string
	PrincipalID string
	Guard       string
	Type        TokenType
	SessionID   string
	CreatedAt   time.Time
	ExpiresAt   *time.Time // nil never expires
	Metadata    map[string]any
}

// Expired reports whether the record's expiry is at or before now.
func (r TokenRecord) Expired(now time.Time) bool {
	return r.ExpiresAt != nil && !now.Before(*r.ExpiresAt)
}

// TTL returns the remaining lifetime, or zero for non-expiring and already
// expired records.
func (r TokenRecord) TTL(now time.Time) time.Duration {
	if r.ExpiresAt == nil {
		return 0
	}
	return max(r.ExpiresAt.Sub(now), 0)
}

// AuthResponse is what login and refresh hand back to the caller.
type AuthResponse struct {
	User             map[string]any
	AccessToken      string
	RefreshToken     string
	TokenType        string
	ExpiresIn        time.Duration
	RefreshExpiresIn time.Duration
}

// InvalidationContext is built per logout call and handed to an invalidation
// strategy. SignedExpiry is set only for signed access tokens; its absence
// marks the access token as an opaque stored record. RequestedAt is the
// guard's clock at logout; records written by the strategy carry it.
type InvalidationContext struct {
	RequestedAt  time.Time

	AccessToken  string
	RefreshToken string
	PrincipalID  string
	Guard        string
	SessionID    string
	SignedExpiry *time.Time
	Claims       map[string]any
	Metadata     map[string]any
}
