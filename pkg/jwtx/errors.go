package jwtx

import "errors"

// Verification failures. Errors returned by HMAC.Verify wrap exactly one of
// these so callers can map them with errors.Is.
var (
	ErrMalformed   = errors.New("jwtx: malformed token")
	ErrAlgMismatch = errors.New("jwtx: algorithm mismatch")
	ErrInvalidSig  = errors.New("jwtx: invalid signature")
	ErrWeakSecret  = errors.New("jwtx: secret too short")

	ErrIssuer      = errors.New("jwtx: issuer mismatch")
	ErrGuard       = errors.New("jwtx: guard mismatch")
	ErrExpired     = errors.New("jwtx: token expired")
	ErrNotYetValid = errors.New("jwtx: token not yet valid")
)
