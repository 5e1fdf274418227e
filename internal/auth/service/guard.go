package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/aussiebroadwan/tokenguard/internal/auth/domain"
	"github.com/aussiebroadwan/tokenguard/internal/auth/metrics"
	"github.com/aussiebroadwan/tokenguard/internal/auth/store"
	"github.com/aussiebroadwan/tokenguard/pkg/slogx"
)

// Credential keys understood by Login besides the provider's identifying
// fields. "identifier" is tried against every identifying field.
const (
	CredentialPassword   = "password"
	CredentialIdentifier = "identifier"
)

// Guard is a named authentication context: one driver bound to one provider.
type Guard struct {
	name      string
	provider  ProviderConfig
	driver    Driver
	resolver  *PrincipalResolver
	tokens    store.Tokens
	passwords PasswordVerifier
	metrics   *metrics.Metrics
}

func (g *Guard) Name() string { return g.name }

func (g *Guard) Driver() Driver { return g.driver }

// Login checks credentials and starts a new session.
func (g *Guard) Login(ctx context.Context, creds map[string]string) (*domain.AuthResponse, error) {
	ctx = slogx.WithGuard(ctx, g.name)

	resp, err := g.login(ctx, creds)
	if err != nil {
		return nil, g.fail(ctx, "login", err)
	}
	g.metrics.TokenIssued(g.name, "login")
	slogx.FromContext(ctx).Info("login succeeded", slog.String("driver", string(g.driver.Kind())))
	return resp, nil
}

func (g *Guard) login(ctx context.Context, creds map[string]string) (*domain.AuthResponse, error) {
	lookup, password, err := g.credentialShape(creds)
	if err != nil {
		return nil, err
	}

	p, err := g.resolver.ByCredentials(ctx, lookup)
	if err != nil {
		return nil, err
	}
	if p.CredentialHash == "" || !g.passwords.Verify(password, p.CredentialHash) {
		return nil, domain.ErrInvalidCredentials
	}
	if !p.Active {
		return nil, domain.ErrInactivePrincipal
	}

	return g.driver.GenerateTokens(ctx, p)
}

// credentialShape splits creds into identifying-field lookups and the
// password, rejecting requests that carry neither an identifier nor a
// password.
func (g *Guard) credentialShape(creds map[string]string) (map[string]string, string, error) {
	password := creds[CredentialPassword]
	if password == "" {
		return nil, "", domain.NewAuthError(domain.KindInvalidCredentials, "password is required", nil)
	}

	lookup := make(map[string]string, len(g.provider.IdentifyingFields))
	ident := strings.TrimSpace(creds[CredentialIdentifier])
	for _, f := range g.provider.IdentifyingFields {
		if v := strings.TrimSpace(creds[f]); v != "" {
			lookup[f] = v
		} else if ident != "" {
			lookup[f] = ident
		}
	}
	if len(lookup) == 0 {
		return nil, "", domain.NewAuthError(domain.KindInvalidCredentials,
			"one of "+strings.Join(g.provider.IdentifyingFields, ", ")+" is required", nil)
	}
	return lookup, password, nil
}

// Verify validates an access token and returns its freshly loaded principal.
func (g *Guard) Verify(ctx context.Context, token string) (domain.Principal, error) {
	ctx = slogx.WithGuard(ctx, g.name)

	p, err := g.driver.VerifyToken(ctx, token)
	if err != nil {
		return domain.Principal{}, g.fail(ctx, "verify", err)
	}
	return p, nil
}

// Refresh rotates refreshToken into a new pair on the same session.
func (g *Guard) Refresh(ctx context.Context, refreshToken string) (*domain.AuthResponse, error) {
	ctx = slogx.WithGuard(ctx, g.name)

	resp, err := g.driver.RefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, g.fail(ctx, "refresh", err)
	}
	g.metrics.TokenIssued(g.name, "refresh")
	g.metrics.RefreshRotated(g.name)
	return resp, nil
}

// Logout ends the session token belongs to.
func (g *Guard) Logout(ctx context.Context, token string) (int64, error) {
	return g.invalidate(ctx, token, SingleDevice)
}

// LogoutAll ends every session of a principal. The argument may be any token
// the guard issued or the principal's id.
func (g *Guard) LogoutAll(ctx context.Context, tokenOrPrincipalID string) (int64, error) {
	ctx = slogx.WithGuard(ctx, g.name)

	n, err := g.driver.InvalidateToken(ctx, tokenOrPrincipalID, AllDevicesLogout{})
	if err == nil {
		g.loggedOut(ctx, AllDevices, n)
		return n, nil
	}
	if kind, ok := domain.KindOf(err); !ok || (kind != domain.KindMalformedToken && kind != domain.KindUnknownToken) {
		return 0, g.fail(ctx, "logout_all", err)
	}

	p, err := g.resolver.ByID(ctx, tokenOrPrincipalID)
	if err != nil {
		return 0, g.fail(ctx, "logout_all", err)
	}
	n, err = AllDevicesLogout{}.Invalidate(ctx, g.tokens, domain.InvalidationContext{
		PrincipalID: p.ID,
		Guard:       g.name,
	})
	if err != nil {
		return 0, g.fail(ctx, "logout_all", err)
	}
	g.loggedOut(ctx, AllDevices, n)
	return n, nil
}

func (g *Guard) invalidate(ctx context.Context, token string, t LogoutType) (int64, error) {
	ctx = slogx.WithGuard(ctx, g.name)

	strategy, err := StrategyFor(t)
	if err != nil {
		return 0, err
	}
	n, err := g.driver.InvalidateToken(ctx, token, strategy)
	if err != nil {
		return 0, g.fail(ctx, "logout", err)
	}
	g.loggedOut(ctx, t, n)
	return n, nil
}

func (g *Guard) loggedOut(ctx context.Context, t LogoutType, n int64) {
	g.metrics.Logout(g.name, t.String())
	slogx.FromContext(ctx).Info("logout completed",
		slog.String("type", t.String()),
		slog.Int64("records", n),
	)
}

// fail records err and returns it unchanged.
func (g *Guard) fail(ctx context.Context, op string, err error) error {
	l := slogx.FromContext(ctx)
	if kind, ok := domain.KindOf(err); ok {
		g.metrics.AuthFailure(g.name, op, string(kind))
		l.Debug("authentication rejected", slog.String("op", op), slog.String("kind", string(kind)))
		return err
	}
	g.metrics.AuthFailure(g.name, op, "internal")
	l.Error("authentication failed", slog.String("op", op), slog.Any("error", err))
	return err
}
