package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/aussiebroadwan/tokenguard/internal/auth/metrics"
	"github.com/stretchr/testify/require"
)

func TestHousekeeping_RunOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	access, _ := env.login(t, "api")
	_, err := env.manager.Logout(ctx, "api", access)
	require.NoError(t, err)
	env.login(t, "web")

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hk := NewHousekeepingService(env.db.Tokens(), logger, metrics.New(), 0)
	require.Equal(t, time.Hour, hk.Interval)

	require.EqualValues(t, 0, hk.RunOnce(ctx))

	// Past access expiry: the blacklist record and the opaque access token go.
	env.clock.Advance(2 * time.Minute)
	require.EqualValues(t, 2, hk.RunOnce(ctx))

	// Past refresh expiry: the remaining refresh token goes too.
	env.clock.Advance(2 * time.Hour)
	require.EqualValues(t, 1, hk.RunOnce(ctx))

	left, err := env.db.Tokens().FindByPrincipal(ctx, "u1", "")
	require.NoError(t, err)
	require.Empty(t, left)
}

func TestHousekeeping_StartStop(t *testing.T) {
	env := newTestEnv(t)

	hk := NewHousekeepingService(env.db.Tokens(), nil, nil, time.Millisecond)
	hk.Start()
	time.Sleep(5 * time.Millisecond)
	hk.Stop()
}
