package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies an authentication failure.
type ErrorKind string

const (
	KindInvalidCredentials ErrorKind = "invalid_credentials"
	KindInactivePrincipal  ErrorKind = "inactive_principal"
	KindMalformedToken     ErrorKind = "malformed_token"
	KindExpiredToken       ErrorKind = "expired_token"
	KindBlacklistedToken   ErrorKind = "blacklisted_token"
	KindUnknownToken       ErrorKind = "unknown_token"
	KindUnknownPrincipal   ErrorKind = "unknown_principal"
	KindMisconfiguredGuard ErrorKind = "misconfigured_guard"
)

// AuthError is the single error type surfaced by guards and drivers.
type AuthError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AuthError) Unwrap() error { return e.Err }

// Is matches any *AuthError of the same kind, so errors.Is(err,
// domain.ErrExpiredToken) works regardless of message.
func (e *AuthError) Is(target error) bool {
	t, ok := target.(*AuthError)
	return ok && t.Kind == e.Kind
}

// NewAuthError builds an AuthError wrapping cause, which may be nil.
func NewAuthError(kind ErrorKind, msg string, cause error) *AuthError {
	return &AuthError{Kind: kind, Message: msg, Err: cause}
}

// KindOf returns the kind of the first AuthError in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Kind, true
	}
	return "", false
}

// Sentinels for errors.Is comparisons.
var (
	ErrInvalidCredentials = &AuthError{Kind: KindInvalidCredentials, Message: "invalid credentials"}
	ErrInactivePrincipal  = &AuthError{Kind: KindInactivePrincipal, Message: "principal is inactive"}
	ErrMalformedToken     = &AuthError{Kind: KindMalformedToken, Message: "malformed token"}
	ErrExpiredToken       = &AuthError{Kind: KindExpiredToken, Message: "token expired"}
	ErrBlacklistedToken   = &AuthError{Kind: KindBlacklistedToken, Message: "token revoked"}
	ErrUnknownToken       = &AuthError{Kind: KindUnknownToken, Message: "unknown token"}
	ErrUnknownPrincipal   = &AuthError{Kind: KindUnknownPrincipal, Message: "unknown principal"}
	ErrMisconfiguredGuard = &AuthError{Kind: KindMisconfiguredGuard, Message: "guard misconfigured"}
)
