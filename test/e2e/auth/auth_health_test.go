package auth_test

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestLivezEndpoint verifies the liveness check endpoint.
func TestLivezEndpoint(t *testing.T) {
	svc := setupAuthService(t, backendSQLite)

	health, err := svc.Client.GetLiveness(t.Context())
	assertHealthy(t, health, err)
}

// TestReadyzEndpoint verifies readiness reports every backing store.
func TestReadyzEndpoint(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend) {
		svc := setupAuthService(t, b)

		health, err := svc.Client.GetReadiness(t.Context())
		assertHealthy(t, health, err)
		require.Equal(t, "ok", health.Checks["database"])
		if b == backendRedis {
			require.Equal(t, "ok", health.Checks["tokens"])
		}
	})
}
