package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/tokenguard/internal/auth/metrics"
	"github.com/aussiebroadwan/tokenguard/internal/auth/service"
	"github.com/aussiebroadwan/tokenguard/internal/auth/store"
	"github.com/aussiebroadwan/tokenguard/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/tokenguard/pkg/authsdk"
	"github.com/aussiebroadwan/tokenguard/pkg/httpx"
	"github.com/stretchr/testify/require"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func relaxed() httpx.RateLimitConfig {
	return httpx.RateLimitConfig{RequestsPerWindow: 1000, Window: time.Minute, Burst: 1000}
}

type testServer struct {
	srv    *httptest.Server
	client *authsdk.SDKClient
	db     *sqlite.Store
}

func newTestServer(t *testing.T, limits Limits, checks map[string]Pinger) *testServer {
	t.Helper()

	db, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.ApplyMigrations())
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.Users().Insert(context.Background(), "users", store.Record{
		"id":        "u1",
		"email":     "a@x.com",
		"username":  "alice",
		"name":      "Alice",
		"password":  "plain:p1",
		"is_active": 1,
	}))

	provider := service.ProviderConfig{
		IdentifyingFields: []string{"email", "username"},
		ActiveField:       "is_active",
		Secret:            strings.Repeat("k", 32),
	}
	cfg := service.GuardsConfig{
		Default: "api",
		Guards: map[string]service.GuardConfig{
			"api": {Driver: service.DriverJWT, Provider: "users"},
			"web": {Driver: service.DriverToken, Provider: "users"},
		},
		Providers: map[string]service.ProviderConfig{"users": provider},
	}

	m := metrics.New()
	manager := service.NewManager(cfg, db.Users(), db.Tokens(),
		service.WithMetrics(m),
		service.WithPasswordVerifier(service.PasswordVerifierFunc(func(plain, hash string) bool {
			return hash == "plain:"+plain
		})),
	)
	require.NoError(t, manager.Warm())

	if checks == nil {
		checks = map[string]Pinger{"database": db}
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := NewRouter(manager, m, checks, limits, "test", logger)
	router.ApplyRoutes()

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testServer{srv: srv, client: authsdk.NewSDKClient(srv.URL), db: db}
}

func relaxedLimits() Limits {
	return Limits{Login: relaxed(), Token: relaxed(), Public: relaxed()}
}

func requireAPIError(t *testing.T, err error, status int, code string) {
	t.Helper()
	var apiErr *authsdk.APIError
	require.True(t, errors.As(err, &apiErr), "expected APIError, got %v", err)
	require.Equal(t, status, apiErr.StatusCode)
	require.Equal(t, code, apiErr.Code)
}

func TestAuthFlow(t *testing.T) {
	for _, guard := range []string{"api", "web"} {
		t.Run(guard, func(t *testing.T) {
			ts := newTestServer(t, relaxedLimits(), nil)
			c := ts.client
			ctx := context.Background()

			tok, err := c.Login(ctx, guard, authsdk.LoginRequest{"email": "a@x.com", "password": "p1"})
			require.NoError(t, err)
			require.Equal(t, "Bearer", tok.TokenType)
			require.Equal(t, 900, tok.ExpiresIn)
			require.Equal(t, 7*24*3600, tok.RefreshExpiresIn)
			require.Equal(t, "Alice", tok.User["name"])
			require.NotContains(t, tok.User, "password")

			me, err := c.Me(ctx, guard, tok.AccessToken)
			require.NoError(t, err)
			require.Equal(t, "u1", me.ID)
			require.Equal(t, guard, me.Guard)
			require.Equal(t, "a@x.com", me.User["email"])

			refreshed, err := c.Refresh(ctx, guard, tok.RefreshToken)
			require.NoError(t, err)
			require.NotEqual(t, tok.RefreshToken, refreshed.RefreshToken)

			_, err = c.Refresh(ctx, guard, tok.RefreshToken)
			requireAPIError(t, err, http.StatusUnauthorized, "unknown_token")

			out, err := c.Logout(ctx, guard, refreshed.AccessToken)
			require.NoError(t, err)
			require.EqualValues(t, 2, out.Revoked)

			_, err = c.Me(ctx, guard, refreshed.AccessToken)
			requireAPIError(t, err, http.StatusUnauthorized, "invalid_token")

			_, err = c.Refresh(ctx, guard, refreshed.RefreshToken)
			requireAPIError(t, err, http.StatusUnauthorized, "unknown_token")
		})
	}
}

func TestLogoutAll(t *testing.T) {
	ts := newTestServer(t, relaxedLimits(), nil)
	c := ts.client
	ctx := context.Background()

	a, err := c.Login(ctx, "web", authsdk.LoginRequest{"identifier": "alice", "password": "p1"})
	require.NoError(t, err)
	b, err := c.Login(ctx, "web", authsdk.LoginRequest{"username": "alice", "password": "p1"})
	require.NoError(t, err)

	out, err := c.LogoutAll(ctx, "web", a.AccessToken)
	require.NoError(t, err)
	require.EqualValues(t, 4, out.Revoked)

	for _, tok := range []string{a.AccessToken, b.AccessToken} {
		_, err := c.Me(ctx, "web", tok)
		requireAPIError(t, err, http.StatusUnauthorized, "invalid_token")
	}

	// logout-all requires a valid bearer token; a principal id is not enough.
	_, err = c.LogoutAll(ctx, "web", "u1")
	requireAPIError(t, err, http.StatusUnauthorized, "invalid_token")
}

func TestLoginErrors(t *testing.T) {
	ts := newTestServer(t, relaxedLimits(), nil)
	c := ts.client
	ctx := context.Background()

	_, err := c.Login(ctx, "api", authsdk.LoginRequest{"email": "a@x.com", "password": "wrong"})
	requireAPIError(t, err, http.StatusUnauthorized, "invalid_credentials")

	_, err = c.Login(ctx, "ghost", authsdk.LoginRequest{"email": "a@x.com", "password": "p1"})
	requireAPIError(t, err, http.StatusNotFound, "unknown_guard")

	_, err = c.Login(ctx, "api", authsdk.LoginRequest{})
	requireAPIError(t, err, http.StatusBadRequest, "invalid_request")

	require.NoError(t, ts.db.Users().Update(ctx, "users", "id", "u1", store.Record{"is_active": 0}))
	_, err = c.Login(ctx, "api", authsdk.LoginRequest{"email": "a@x.com", "password": "p1"})
	requireAPIError(t, err, http.StatusUnauthorized, "inactive_principal")
}

func TestRefreshErrors(t *testing.T) {
	ts := newTestServer(t, relaxedLimits(), nil)

	res, err := http.Post(ts.srv.URL+"/v1/auth/api/refresh", "application/json",
		strings.NewReader(`{"refresh_token":"no-delimiter"}`))
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)
	require.Contains(t, res.Header.Get("WWW-Authenticate"), `error="invalid_token"`)

	res2, err := http.Post(ts.srv.URL+"/v1/auth/api/refresh", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer res2.Body.Close()
	require.Equal(t, http.StatusBadRequest, res2.StatusCode)
}

func TestLogoutErrors(t *testing.T) {
	ts := newTestServer(t, relaxedLimits(), nil)
	ctx := context.Background()

	_, err := ts.client.Logout(ctx, "api", "not-a-jwt")
	requireAPIError(t, err, http.StatusUnauthorized, "malformed_token")

	res, err := http.Post(ts.srv.URL+"/v1/auth/api/logout", "application/json", nil)
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestLogout_RefreshTokenInBody(t *testing.T) {
	ts := newTestServer(t, relaxedLimits(), nil)
	ctx := context.Background()

	tok, err := ts.client.Login(ctx, "web", authsdk.LoginRequest{"email": "a@x.com", "password": "p1"})
	require.NoError(t, err)

	res, err := http.Post(ts.srv.URL+"/v1/auth/web/logout", "application/json",
		strings.NewReader(`{"refresh_token":"`+tok.RefreshToken+`"}`))
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	_, err = ts.client.Refresh(ctx, "web", tok.RefreshToken)
	requireAPIError(t, err, http.StatusUnauthorized, "unknown_token")
}

func TestLoginRateLimit(t *testing.T) {
	limits := relaxedLimits()
	limits.Login = httpx.RateLimitConfig{RequestsPerWindow: 1, Window: time.Minute, Burst: 1}
	ts := newTestServer(t, limits, nil)
	ctx := context.Background()

	_, err := ts.client.Login(ctx, "api", authsdk.LoginRequest{"email": "a@x.com", "password": "p1"})
	require.NoError(t, err)

	_, err = ts.client.Login(ctx, "api", authsdk.LoginRequest{"email": "a@x.com", "password": "p1"})
	requireAPIError(t, err, http.StatusTooManyRequests, "rate_limit_exceeded")

	// Buckets are per guard.
	_, err = ts.client.Login(ctx, "web", authsdk.LoginRequest{"email": "a@x.com", "password": "p1"})
	require.NoError(t, err)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, relaxedLimits(), nil)
	ctx := context.Background()

	live, err := ts.client.GetLiveness(ctx)
	require.NoError(t, err)
	require.Equal(t, "ok", live.Status)
	require.Equal(t, "test", live.Version)

	ready, err := ts.client.GetReadiness(ctx)
	require.NoError(t, err)
	require.Equal(t, "ok", ready.Checks["database"])
}

func TestReadyz_Degraded(t *testing.T) {
	ts := newTestServer(t, relaxedLimits(), map[string]Pinger{
		"tokens": pingFunc(func(context.Context) error { return errors.New("connection refused") }),
	})

	res, err := http.Get(ts.srv.URL + "/readyz")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusServiceUnavailable, res.StatusCode)

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "connection refused")
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, relaxedLimits(), nil)

	_, err := ts.client.Login(context.Background(), "api", authsdk.LoginRequest{"email": "a@x.com", "password": "p1"})
	require.NoError(t, err)

	res, err := http.Get(ts.srv.URL + "/metrics")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `tokenguard_tokens_issued_total{guard="api",operation="login"} 1`)
}
