package auth_test

import (
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/aussiebroadwan/tokenguard/internal/auth/app"
	"github.com/aussiebroadwan/tokenguard/internal/auth/store"
	"github.com/aussiebroadwan/tokenguard/pkg/authsdk"
	"github.com/aussiebroadwan/tokenguard/pkg/cryptox"
	"github.com/aussiebroadwan/tokenguard/pkg/httpx"
)

/*
 * Common constants and helper functions for end-to-end tests. Each test
 * starts a full application (guard config file, SQLite users, the selected
 * token backend, HTTP router) and talks to it through the SDK.
 */

const (
	adminUserID   = "u-admin"
	adminUsername = "admin"
	adminEmail    = "admin@example.com"
	adminPassword = "Admin123!"
)

// guardsYAML configures one guard per interesting shape. "mobile" issues
// access tokens shorter than the SDK refresh buffer, so every Session call
// rotates its tokens.
const guardsYAML = `
default: api
guards:
  api:    {driver: jwt, provider: signed}
  admin:  {driver: jwt, provider: signed}
  web:    {driver: token, provider: users}
  mobile: {driver: token, provider: short}
providers:
  signed:
    secret: "e2e-secret-e2e-secret-e2e-secret-0001"
    issuer: tokenguard-e2e
    hidden_fields: [updated_at, created_at]
  users:
    token_prefix: web
  short:
    token_prefix: mob
    access_ttl_seconds: 10
`

type backend string

const (
	backendSQLite backend = app.TokenStoreSQLite
	backendRedis  backend = app.TokenStoreRedis
)

type service struct {
	BaseURL string
	Client  *authsdk.SDKClient
	DBFile  string
}

type setupOption func(*app.Config)

// withDefaultRateLimits keeps production rate limits. Most tests relax them.
func withDefaultRateLimits() setupOption {
	return func(cfg *app.Config) {
		cfg.Limits.Login = httpx.LoginLimit
		cfg.Limits.Token = httpx.TokenLimit
		cfg.Limits.Public = httpx.PublicLimit
	}
}

// forEachBackend runs fn once per token backend.
func forEachBackend(t *testing.T, fn func(t *testing.T, b backend)) {
	for _, b := range []backend{backendSQLite, backendRedis} {
		t.Run(string(b), func(t *testing.T) { fn(t, b) })
	}
}

// setupAuthService starts the application and returns a client for it.
func setupAuthService(t *testing.T, b backend, opts ...setupOption) *service {
	t.Helper()
	dir := t.TempDir()

	guardsFile := filepath.Join(dir, "guards.yaml")
	require.NoError(t, os.WriteFile(guardsFile, []byte(guardsYAML), 0o600))

	relaxed := httpx.RateLimitConfig{RequestsPerWindow: 1000, Window: time.Minute, Burst: 1000}
	cfg := app.Config{
		DatabaseFile:         filepath.Join(dir, "auth.db"),
		PepperFile:           filepath.Join(dir, "pepper"),
		TokenStore:           string(b),
		GuardsFile:           guardsFile,
		Env:                  "test",
		LogLevel:             "error",
		LogFormat:            "json",
		ShutdownGracePeriod:  time.Second,
		HousekeepingInterval: time.Hour,
	}
	cfg.Limits.Login, cfg.Limits.Token, cfg.Limits.Public = relaxed, relaxed, relaxed

	if b == backendRedis {
		cfg.RedisAddr = startRedis(t)
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	seedAdmin(t, cfg)

	application, err := app.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.Close() })

	srv := httptest.NewServer(application.Handler())
	t.Cleanup(srv.Close)

	return &service{
		BaseURL: srv.URL,
		Client:  authsdk.NewSDKClient(srv.URL),
		DBFile:  cfg.DatabaseFile,
	}
}

func seedAdmin(t *testing.T, cfg app.Config) {
	t.Helper()

	cryptox.SetPepperPath(cfg.PepperFile)
	db, err := app.OpenDatabase(cfg.DatabaseFile)
	require.NoError(t, err)
	defer db.Close()

	hash, err := cryptox.HashPassword(adminPassword)
	require.NoError(t, err)
	require.NoError(t, db.Users().Insert(context.Background(), "users", store.Record{
		"id":       adminUserID,
		"email":    adminEmail,
		"username": adminUsername,
		"name":     "Administrator",
		"password": hash,
	}))
}

// setActive flips the admin's active flag behind the service's back.
func (s *service) setActive(t *testing.T, active bool) {
	t.Helper()
	db, err := app.OpenDatabase(s.DBFile)
	require.NoError(t, err)
	defer db.Close()

	v := 0
	if active {
		v = 1
	}
	require.NoError(t, db.Users().Update(context.Background(), "users", "id", adminUserID, store.Record{"is_active": v}))
}

func startRedis(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis backend in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	return fmt.Sprintf("%s:%s", host, port.Port())
}

func login(t *testing.T, s *service, guard string) *authsdk.TokenResponse {
	t.Helper()
	resp, err := s.Client.Login(t.Context(), guard, authsdk.LoginRequest{
		"email":    adminEmail,
		"password": adminPassword,
	})
	require.NoError(t, err)
	assertTokenResponse(t, resp)
	return resp
}

func assertTokenResponse(t *testing.T, resp *authsdk.TokenResponse) {
	t.Helper()
	require.NotNil(t, resp)
	require.NotEmpty(t, resp.AccessToken)
	require.NotEmpty(t, resp.RefreshToken)
	require.Equal(t, "Bearer", resp.TokenType)
	require.Positive(t, resp.ExpiresIn)
	require.Greater(t, resp.RefreshExpiresIn, resp.ExpiresIn)
	require.Equal(t, adminUserID, resp.User["id"])
	require.NotContains(t, resp.User, "password")
}

// assertAPIError checks the HTTP status and error code of an SDK error.
func assertAPIError(t *testing.T, err error, status int, code string) {
	t.Helper()
	require.Error(t, err)
	var apiErr *authsdk.APIError
	require.True(t, errors.As(err, &apiErr), "expected APIError, got %v", err)
	require.Equal(t, status, apiErr.StatusCode, apiErr.Error())
	require.Equal(t, code, apiErr.Code, apiErr.Error())
}

func assertHealthy(t *testing.T, health *authsdk.HealthResponse, err error) {
	t.Helper()
	require.NoError(t, err)
	require.NotNil(t, health)
	require.Equal(t, "ok", health.Status)
}
