package store

import (
	"context"
	"errors"
	"regexp"

	"github.com/aussiebroadwan/tokenguard/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
	ErrIdentifier    = errors.New("store: invalid identifier")
)

// Store is the root data access interface implemented by the sqlite driver.
// Tokens may also be served by a separate backend (see drivers/redis).
type Store interface {
	Tokens() Tokens
	Users() Users

	ApplyMigrations() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error

	Close() error
}

// TokenFilter narrows token queries. Zero fields match everything.
type TokenFilter struct {
	Guard     string
	SessionID string
	Types     []domain.TokenType
}

// Tokens persists token records.
type Tokens interface {
	// Store upserts rec by its token value.
	Store(ctx context.Context, rec domain.TokenRecord) (domain.TokenRecord, error)

	// Find returns ErrNotFound when no record has that token.
	Find(ctx context.Context, token string) (domain.TokenRecord, error)

	// FindBySession returns the records sharing a session correlation id.
	// filter.SessionID is ignored in favour of sessionID.
	FindBySession(ctx context.Context, sessionID string, filter TokenFilter) ([]domain.TokenRecord, error)

	// FindByPrincipal returns a principal's records, optionally for one guard.
	FindByPrincipal(ctx context.Context, principalID, guard string) ([]domain.TokenRecord, error)

	// Delete removes one record and reports how many were removed (0 or 1).
	Delete(ctx context.Context, token string) (int64, error)

	// DeleteByPrincipal removes a principal's records matching filter.
	DeleteByPrincipal(ctx context.Context, principalID string, filter TokenFilter) (int64, error)

	// IsBlacklisted reports whether a blacklist record exists for token.
	IsBlacklisted(ctx context.Context, token string) (bool, error)

	// CleanupExpired removes records whose expiry has passed.
	CleanupExpired(ctx context.Context) (int64, error)

	Ping(ctx context.Context) error
}

// Record is one user row keyed by column name.
type Record map[string]any

// Users is the principal directory. Table and column names come from guard
// configuration and must satisfy ValidIdentifier.
type Users interface {
	// FindByCredentialFields returns the first row of table where any of
	// fields equals the value given for it in values. Fields without a value
	// are skipped.
	FindByCredentialFields(ctx context.Context, values map[string]string, fields []string, table string) (Record, error)

	// FindByID returns the row of table whose idField equals id.
	FindByID(ctx context.Context, id, table, idField string) (Record, error)

	// Insert adds a row to table.
	Insert(ctx context.Context, table string, rec Record) error

	// Update sets columns on the row of table whose idField equals id.
	Update(ctx context.Context, table, idField, id string, set Record) error
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdentifier reports whether s is safe to use as a table or column name.
func ValidIdentifier(s string) bool {
	return len(s) <= 64 && identifierPattern.MatchString(s)
}

// MatchesFilter applies f to rec in memory, for backends that cannot filter
// natively.
func MatchesFilter(rec domain.TokenRecord, f TokenFilter) bool {
	if f.Guard != "" && rec.Guard != f.Guard {
		return false
	}
	if f.SessionID != "" && rec.SessionID != f.SessionID {
		return false
	}
	if len(f.Types) == 0 {
		return true
	}
	for _, t := range f.Types {
		if rec.Type == t {
			return true
		}
	}
	return false
}
