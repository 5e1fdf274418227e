package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/tokenguard/pkg/slogx"
)

// Authenticator resolves a bearer token into a subject id and an identity
// value that is stored in the request context.
type Authenticator interface {
	Authenticate(ctx context.Context, bearer string) (subject string, identity any, err error)
}

// AuthenticatorFunc adapts a function to Authenticator.
type AuthenticatorFunc func(ctx context.Context, bearer string) (string, any, error)

func (f AuthenticatorFunc) Authenticate(ctx context.Context, bearer string) (string, any, error) {
	return f(ctx, bearer)
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	authz := r.Header.Get("Authorization")
	if len(authz) < len("Bearer ") || !strings.EqualFold(authz[:len("Bearer ")], "Bearer ") {
		return "", false
	}
	raw := strings.TrimSpace(authz[len("Bearer "):])
	return raw, raw != ""
}

// AuthnMiddleware rejects requests without a bearer token the Authenticator
// accepts.
func AuthnMiddleware(a Authenticator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			raw, ok := BearerToken(r)
			if !ok {
				WriteBearerError(w, "missing bearer token")
				return
			}

			subject, identity, err := a.Authenticate(ctx, raw)
			if err != nil {
				log.Warn("bearer authentication failed", "err", err)
				WriteBearerError(w, "token verification failed")
				return
			}

			ctx = context.WithValue(ctx, CtxKeySubject, subject)
			ctx = context.WithValue(ctx, CtxKeyPrincipal, identity)
			ctx = context.WithValue(ctx, CtxKeyToken, raw)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerChallenge builds an invalid_token WWW-Authenticate value. Characters
// RFC 6750 forbids in error_description are dropped from desc.
func BearerChallenge(desc string) string {
	desc = strings.Map(func(r rune) rune {
		if r < 0x20 || r > 0x7e || r == '"' || r == '\\' {
			return -1
		}
		return r
	}, desc)
	return `Bearer error="invalid_token", error_description="` + desc + `"`
}

// WriteBearerError writes an RFC 6750 invalid_token response.
func WriteBearerError(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", BearerChallenge(desc))
	WriteJSON(w, http.StatusUnauthorized, map[string]string{
		"error":             "invalid_token",
		"error_description": desc,
	})
}
