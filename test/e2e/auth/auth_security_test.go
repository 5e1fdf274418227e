package auth_test

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestCrossGuardTokensRejected checks a token is only honoured by the guard
// that issued it, even when guards share a secret or a store.
func TestCrossGuardTokensRejected(t *testing.T) {
	svc := setupAuthService(t, backendSQLite)
	ctx := t.Context()
	c := svc.Client

	api := login(t, svc, "api")
	web := login(t, svc, "web")

	_, err := c.Me(ctx, "admin", api.AccessToken)
	assertAPIError(t, err, http.StatusUnauthorized, "invalid_token")

	_, err = c.Refresh(ctx, "admin", api.RefreshToken)
	assertAPIError(t, err, http.StatusUnauthorized, "unknown_token")

	_, err = c.Me(ctx, "mobile", web.AccessToken)
	assertAPIError(t, err, http.StatusUnauthorized, "invalid_token")

	_, err = c.Me(ctx, "api", web.AccessToken)
	assertAPIError(t, err, http.StatusUnauthorized, "invalid_token")
}

// TestDeactivatedPrincipalLosesAccess deactivates the principal after login.
// Existing tokens stop verifying and cannot be refreshed.
func TestDeactivatedPrincipalLosesAccess(t *testing.T) {
	svc := setupAuthService(t, backendSQLite)
	ctx := t.Context()
	c := svc.Client

	tok := login(t, svc, "web")
	svc.setActive(t, false)

	_, err := c.Me(ctx, "web", tok.AccessToken)
	assertAPIError(t, err, http.StatusUnauthorized, "invalid_token")

	_, err = c.Refresh(ctx, "web", tok.RefreshToken)
	assertAPIError(t, err, http.StatusUnauthorized, "inactive_principal")

	_, err = c.Login(ctx, "web", map[string]string{"email": adminEmail, "password": adminPassword})
	assertAPIError(t, err, http.StatusUnauthorized, "inactive_principal")

	svc.setActive(t, true)
	login(t, svc, "web")
}

func TestBadCredentials(t *testing.T) {
	svc := setupAuthService(t, backendSQLite)
	ctx := t.Context()
	c := svc.Client

	_, err := c.Login(ctx, "api", map[string]string{"email": adminEmail, "password": "nope"})
	assertAPIError(t, err, http.StatusUnauthorized, "invalid_credentials")

	_, err = c.Login(ctx, "api", map[string]string{"email": "ghost@example.com", "password": adminPassword})
	assertAPIError(t, err, http.StatusUnauthorized, "invalid_credentials")

	_, err = c.Login(ctx, "api", map[string]string{"email": adminEmail})
	assertAPIError(t, err, http.StatusUnauthorized, "invalid_credentials")

	_, err = c.Login(ctx, "nowhere", map[string]string{"email": adminEmail, "password": adminPassword})
	assertAPIError(t, err, http.StatusNotFound, "unknown_guard")
}

func TestTamperedTokens(t *testing.T) {
	svc := setupAuthService(t, backendSQLite)
	ctx := t.Context()
	c := svc.Client

	tok := login(t, svc, "api")

	parts := strings.Split(tok.AccessToken, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))
	_, err := c.Me(ctx, "api", tampered)
	assertAPIError(t, err, http.StatusUnauthorized, "invalid_token")

	sid, _, ok := strings.Cut(tok.RefreshToken, "::")
	require.True(t, ok)
	_, err = c.Refresh(ctx, "api", sid+"::forged")
	assertAPIError(t, err, http.StatusUnauthorized, "unknown_token")

	_, err = c.Refresh(ctx, "api", "no-delimiter")
	assertAPIError(t, err, http.StatusUnauthorized, "malformed_token")
}
