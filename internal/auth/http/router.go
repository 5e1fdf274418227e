package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/tokenguard/internal/auth/metrics"
	"github.com/aussiebroadwan/tokenguard/internal/auth/service"
	"github.com/aussiebroadwan/tokenguard/pkg/httpx"
	"github.com/aussiebroadwan/tokenguard/pkg/slogx"
)

// Pinger is a dependency readyz checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Limits are the rate limit profiles applied per route group.
type Limits struct {
	Login  httpx.RateLimitConfig
	Token  httpx.RateLimitConfig
	Public httpx.RateLimitConfig
}

// DefaultLimits returns the built-in profiles.
func DefaultLimits() Limits {
	return Limits{
		Login:  httpx.LoginLimit,
		Token:  httpx.TokenLimit,
		Public: httpx.PublicLimit,
	}
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	manager *service.Manager
	metrics *metrics.Metrics
	checks  map[string]Pinger
	limits  Limits
}

func NewRouter(
	manager *service.Manager,
	m *metrics.Metrics,
	checks map[string]Pinger,
	limits Limits,
	buildVersion string,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
		manager:      manager,
		metrics:      m,
		checks:       checks,
		limits:       limits,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	h := &AuthHandler{Manager: r.manager}
	authn := httpx.AuthnMiddleware(&guardAuthenticator{manager: r.manager})
	scope := guardScope(r.manager)

	// Credentials are limited per client address and guard.
	byIPAndGuard := httpx.CompositeKeyExtractor(":", httpx.IPKeyExtractor, httpx.PathValueKeyExtractor("guard"))

	r.Mux.Handle("POST /v1/auth/{guard}/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			scope,
			httpx.RateLimitMiddleware(r.limits.Login, byIPAndGuard),
		),
	)

	r.Mux.Handle("POST /v1/auth/{guard}/refresh",
		httpx.Chain(http.HandlerFunc(h.HandleRefresh),
			scope,
			httpx.RateLimitMiddleware(r.limits.Token, byIPAndGuard),
		),
	)

	// Logout accepts expired signed tokens, so it does not go through authn.
	r.Mux.Handle("POST /v1/auth/{guard}/logout",
		httpx.Chain(http.HandlerFunc(h.HandleLogout),
			scope,
			httpx.RateLimitMiddleware(r.limits.Token, byIPAndGuard),
		),
	)

	r.Mux.Handle("POST /v1/auth/{guard}/logout-all",
		httpx.Chain(http.HandlerFunc(h.HandleLogoutAll),
			scope,
			authn,
			httpx.RateLimitBySubject(r.limits.Token),
		),
	)

	r.Mux.Handle("GET /v1/auth/{guard}/me",
		httpx.Chain(http.HandlerFunc(h.HandleMe),
			scope,
			authn,
			httpx.RateLimitBySubject(r.limits.Public),
		),
	)
}

func (r *Router) registerSystem() {
	h := &health{started: r.startTime, version: r.buildVersion, checks: r.checks}

	r.Mux.Handle("GET /livez",
		httpx.Chain(http.HandlerFunc(h.live),
			httpx.RateLimitByIP(r.limits.Public),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(http.HandlerFunc(h.ready),
			httpx.RateLimitByIP(r.limits.Public),
		),
	)
	r.Mux.Handle("GET /metrics",
		httpx.Chain(r.metrics.Handler(),
			httpx.RateLimitByIP(r.limits.Public),
		),
	)
}
