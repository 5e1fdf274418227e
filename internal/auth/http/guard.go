package http

import (
	"context"
	"net/http"

	"github.com/aussiebroadwan/tokenguard/internal/auth/domain"
	"github.com/aussiebroadwan/tokenguard/internal/auth/service"
	"github.com/aussiebroadwan/tokenguard/pkg/httpx"
	"github.com/aussiebroadwan/tokenguard/pkg/slogx"
)

type ctxKey string

const ctxKeyGuard ctxKey = "guard"

// guardScope resolves the {guard} path value, answering 404 for unknown
// guards, and stores the guard name in the request context.
func guardScope(manager *service.Manager) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			g, err := manager.Guard(r.PathValue("guard"))
			if err != nil {
				writeAuthError(ctx, w, err)
				return
			}

			ctx = context.WithValue(ctx, ctxKeyGuard, g.Name())
			ctx = slogx.WithGuard(ctx, g.Name())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func guardFromContext(ctx context.Context) string {
	g, _ := ctx.Value(ctxKeyGuard).(string)
	return g
}

// guardAuthenticator verifies bearer tokens against the guard resolved by
// guardScope.
type guardAuthenticator struct {
	manager *service.Manager
}

func (a *guardAuthenticator) Authenticate(ctx context.Context, bearer string) (string, any, error) {
	p, err := a.manager.Verify(ctx, guardFromContext(ctx), bearer)
	if err != nil {
		return "", nil, err
	}
	return p.ID, p, nil
}

func principalFromContext(ctx context.Context) (domain.Principal, bool) {
	p, ok := httpx.PrincipalFromContext(ctx).(domain.Principal)
	return p, ok
}
