package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/aussiebroadwan/tokenguard/pkg/authsdk"
	"github.com/aussiebroadwan/tokenguard/pkg/httpx"
)

const pingTimeout = 2 * time.Second

// health serves the liveness and readiness probes.
type health struct {
	started time.Time
	version string
	checks  map[string]Pinger
}

func (h *health) report(status string, checks map[string]string) authsdk.HealthResponse {
	return authsdk.HealthResponse{
		Status:  status,
		Uptime:  time.Since(h.started).Truncate(time.Second).String(),
		Version: h.version,
		Checks:  checks,
	}
}

// live answers 200 for as long as the process can serve requests.
func (h *health) live(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, h.report("ok", nil))
}

// ready pings every dependency in parallel and answers 503 if one fails.
func (h *health) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
	defer cancel()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]string, len(h.checks))
		status  = "ok"
	)
	for name, p := range h.checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := "ok"
			if err := p.Ping(ctx); err != nil {
				res = "error: " + err.Error()
			}

			mu.Lock()
			defer mu.Unlock()
			results[name] = res
			if res != "ok" {
				status = "degraded"
			}
		}()
	}
	wg.Wait()

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	httpx.WriteJSON(w, code, h.report(status, results))
}
