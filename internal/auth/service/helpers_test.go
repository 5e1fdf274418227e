package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/tokenguard/internal/auth/store"
	"github.com/aussiebroadwan/tokenguard/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/tokenguard/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

var testSecret = strings.Repeat("k", 32)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// plainVerifier treats "plain:<password>" as the hash of password.
var plainVerifier = PasswordVerifierFunc(func(plain, hash string) bool {
	return hash == "plain:"+plain
})

func testProvider() ProviderConfig {
	return ProviderConfig{
		Table:             "users",
		PrimaryKeyField:   "id",
		IdentifyingFields: []string{"email", "username"},
		PasswordField:     "password",
		ActiveField:       "is_active",
		HiddenFields:      []string{"updated_at"},
		Secret:            testSecret,
		Issuer:            "tokenguard-test",
		AccessTTLSeconds:  60,
		RefreshTTLSeconds: 3600,
	}
}

func testGuardsConfig() GuardsConfig {
	web := testProvider()
	web.Secret = ""
	web.TokenPrefix = "web"

	return GuardsConfig{
		Default: "api",
		Guards: map[string]GuardConfig{
			"api":   {Driver: DriverJWT, Provider: "users_jwt"},
			"admin": {Driver: DriverJWT, Provider: "users_jwt"},
			"web":   {Driver: DriverToken, Provider: "users_token"},
		},
		Providers: map[string]ProviderConfig{
			"users_jwt":   testProvider(),
			"users_token": web,
		},
	}
}

type testEnv struct {
	db      *sqlite.Store
	clock   *fakeClock
	manager *Manager
}

func newTestEnv(t *testing.T, opts ...ManagerOption) *testEnv {
	t.Helper()

	clock := &fakeClock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	db, err := sqlite.NewStore(":memory:", sqlite.WithClock(clock.Now))
	require.NoError(t, err)
	require.NoError(t, db.ApplyMigrations())
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	require.NoError(t, db.Users().Insert(ctx, "users", store.Record{
		"id":        "u1",
		"email":     "a@x.com",
		"username":  "alice",
		"name":      "Alice",
		"password":  "plain:p1",
		"is_active": 1,
	}))
	require.NoError(t, db.Users().Insert(ctx, "users", store.Record{
		"id":        "u2",
		"email":     "b@x.com",
		"username":  "bob",
		"name":      "Bob",
		"password":  "plain:p2",
		"is_active": 0,
	}))

	opts = append([]ManagerOption{WithPasswordVerifier(plainVerifier), WithClock(clock.Now)}, opts...)
	m := NewManager(testGuardsConfig(), db.Users(), db.Tokens(), opts...)
	require.NoError(t, m.Warm())

	return &testEnv{db: db, clock: clock, manager: m}
}

func (e *testEnv) login(t *testing.T, guard string) (access, refresh string) {
	t.Helper()
	resp, err := e.manager.Login(context.Background(), guard, map[string]string{"email": "a@x.com", "password": "p1"})
	require.NoError(t, err)
	return resp.AccessToken, resp.RefreshToken
}

func (e *testEnv) setActive(t *testing.T, id string, active bool) {
	t.Helper()
	v := 0
	if active {
		v = 1
	}
	require.NoError(t, e.db.Users().Update(context.Background(), "users", "id", id, store.Record{"is_active": v}))
}

// eachGuard runs fn once for the signed and once for the opaque guard.
func eachGuard(t *testing.T, fn func(t *testing.T, guard string)) {
	for _, guard := range []string{"api", "web"} {
		t.Run(guard, func(t *testing.T) { fn(t, guard) })
	}
}

func hashForTest(password string) (string, error) {
	return cryptox.HashPasswordBcrypt(password)
}
