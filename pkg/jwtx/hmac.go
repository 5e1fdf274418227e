package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretLength is the shortest HMAC secret accepted, in bytes.
const MinSecretLength = 32

// HMAC signs and verifies tokens with a shared secret (HS256, HS384 or HS512).
type HMAC struct {
	method *jwt.SigningMethodHMAC
	secret []byte
	issuer string
	leeway time.Duration
	now    func() time.Time
}

// Option configures an HMAC signer.
type Option func(*HMAC)

// WithIssuer sets the iss value that Verify requires. Empty disables the check.
func WithIssuer(iss string) Option {
	return func(h *HMAC) { h.issuer = iss }
}

// WithLeeway allows clock skew when validating exp and nbf.
func WithLeeway(d time.Duration) Option {
	return func(h *HMAC) { h.leeway = d }
}

// WithClock overrides the time source used for exp and nbf checks.
func WithClock(now func() time.Time) Option {
	return func(h *HMAC) { h.now = now }
}

// NewHMAC builds an HMAC signer for alg ("HS256" when empty).
func NewHMAC(alg string, secret []byte, opts ...Option) (*HMAC, error) {
	var method *jwt.SigningMethodHMAC
	switch alg {
	case "", "HS256":
		method = jwt.SigningMethodHS256
	case "HS384":
		method = jwt.SigningMethodHS384
	case "HS512":
		method = jwt.SigningMethodHS512
	default:
		return nil, fmt.Errorf("%w: unsupported algorithm %q", ErrAlgMismatch, alg)
	}

	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("%w: need at least %d bytes, got %d", ErrWeakSecret, MinSecretLength, len(secret))
	}

	h := &HMAC{method: method, secret: secret}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

func (h *HMAC) Alg() string { return h.method.Alg() }

// Issuer returns the configured iss value.
func (h *HMAC) Issuer() string { return h.issuer }

// Sign turns claims into a signed compact JWT.
func (h *HMAC) Sign(claims Claims) (string, error) {
	return jwt.NewWithClaims(h.method, claims).SignedString(h.secret)
}

// Verify checks the signature, algorithm, issuer, exp and nbf.
func (h *HMAC) Verify(token string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{h.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(h.leeway),
	}
	if h.issuer != "" {
		opts = append(opts, jwt.WithIssuer(h.issuer))
	}
	if h.now != nil {
		opts = append(opts, jwt.WithTimeFunc(h.now))
	}
	return h.parse(token, opts...)
}

// Decode checks the signature and algorithm but not the time-based claims,
// so an expired token can still be inspected during logout.
func (h *HMAC) Decode(token string) (*Claims, error) {
	return h.parse(token,
		jwt.WithValidMethods([]string{h.method.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
}

func (h *HMAC) parse(token string, opts ...jwt.ParserOption) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.NewParser(opts...).ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return h.secret, nil
	})
	if err != nil {
		return nil, mapParseError(err)
	}
	if !parsed.Valid {
		return nil, ErrMalformed
	}
	return claims, nil
}

func mapParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %w", ErrExpired, err)
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return fmt.Errorf("%w: %w", ErrNotYetValid, err)
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return fmt.Errorf("%w: %w", ErrIssuer, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %w", ErrInvalidSig, err)
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %w", ErrAlgMismatch, err)
	default:
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}
}
