package cryptox

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"regexp"

	"github.com/hashicorp/go-secure-stdlib/base62"
)

const (
	// DefaultTokenLength is the number of random characters in an opaque token.
	DefaultTokenLength = 64

	// SessionIDLength is the length of the session identifier that prefixes a
	// refresh token.
	SessionIDLength = 20

	// PrefixSeparator joins an optional token prefix to its random part.
	PrefixSeparator = "|"
)

var (
	plainTokenPattern    = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	prefixedTokenPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+\|[A-Za-z0-9_-]+$`)
)

// ValidTokenPrefix reports whether prefix can precede PrefixSeparator in a
// token that IsValidTokenFormat accepts.
func ValidTokenPrefix(prefix string) bool {
	return plainTokenPattern.MatchString(prefix)
}

// GenerateToken returns a random token of length alphanumeric characters. When
// prefix is non-empty the result is "<prefix>|<random>".
func GenerateToken(length int, prefix string) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("token length must be positive, got %d", length)
	}
	if prefix != "" && !ValidTokenPrefix(prefix) {
		return "", fmt.Errorf("invalid token prefix %q", prefix)
	}

	random, err := base62.Random(length)
	if err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}

	if prefix == "" {
		return random, nil
	}
	return prefix + PrefixSeparator + random, nil
}

// IsValidTokenFormat reports whether token is either a bare run of
// [A-Za-z0-9_-] or two such runs joined by a single "|".
func IsValidTokenFormat(token string) bool {
	if token == "" {
		return false
	}
	return plainTokenPattern.MatchString(token) || prefixedTokenPattern.MatchString(token)
}

// FingerprintToken returns a deterministic SHA-256 fingerprint of a token,
// base64url encoded (43 chars). Used where the raw token must not appear in a
// key name.
func FingerprintToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
