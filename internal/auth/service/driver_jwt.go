package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/tokenguard/internal/auth/domain"
	"github.com/aussiebroadwan/tokenguard/pkg/jwtx"
)

// JWTDriver issues HMAC-signed access tokens carrying the session id, paired
// with stored refresh tokens. Revocation of a signed token is a blacklist
// record keyed by the raw token.
type JWTDriver struct {
	session *sessionTokens
	signer  *jwtx.HMAC
}

var _ Driver = (*JWTDriver)(nil)

func newJWTDriver(s *sessionTokens, p ProviderConfig) (*JWTDriver, error) {
	signer, err := jwtx.NewHMAC(p.Algorithm, []byte(p.Secret),
		jwtx.WithIssuer(p.Issuer),
		jwtx.WithClock(s.now),
	)
	if err != nil {
		return nil, domain.NewAuthError(domain.KindMisconfiguredGuard,
			fmt.Sprintf("guard %q: signer", s.guard), err)
	}
	return &JWTDriver{session: s, signer: signer}, nil
}

func (d *JWTDriver) Kind() DriverKind { return DriverJWT }

func (d *JWTDriver) GenerateTokens(ctx context.Context, p domain.Principal) (*domain.AuthResponse, error) {
	return d.session.start(ctx, p, d.mint)
}

func (d *JWTDriver) mint(_ context.Context, p domain.Principal, sid string, now time.Time) (string, error) {
	claims := jwtx.NewAccessClaims(p.ID, sid, d.session.guard, p.Projection(), d.session.accessTTL, d.signer.Issuer(), now)
	tok, err := d.signer.Sign(claims)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return tok, nil
}

// VerifyToken checks, in order: blacklist, signature and expiry, guard
// binding, session liveness, and finally the principal itself.
func (d *JWTDriver) VerifyToken(ctx context.Context, token string) (domain.Principal, error) {
	if strings.TrimSpace(token) == "" {
		return domain.Principal{}, domain.NewAuthError(domain.KindMalformedToken, "empty token", nil)
	}

	blacklisted, err := d.session.tokens.IsBlacklisted(ctx, token)
	if err != nil {
		return domain.Principal{}, fmt.Errorf("check blacklist: %w", err)
	}
	if blacklisted {
		return domain.Principal{}, domain.ErrBlacklistedToken
	}

	claims, err := d.signer.Verify(token)
	if err != nil {
		return domain.Principal{}, jwtError(err)
	}
	if err := claims.ValidateGuard(d.session.guard); err != nil {
		return domain.Principal{}, domain.NewAuthError(domain.KindMalformedToken, "token issued by another guard", err)
	}
	if claims.Subject == "" || claims.SID == "" {
		return domain.Principal{}, domain.NewAuthError(domain.KindMalformedToken, "token lacks subject or session", nil)
	}

	alive, err := d.session.sessionAlive(ctx, claims.Subject, claims.SID)
	if err != nil {
		return domain.Principal{}, fmt.Errorf("check session: %w", err)
	}
	if !alive {
		return domain.Principal{}, domain.NewAuthError(domain.KindBlacklistedToken, "session revoked", nil)
	}

	return d.session.resolver.ActiveByID(ctx, claims.Subject)
}

func (d *JWTDriver) RefreshToken(ctx context.Context, refreshToken string) (*domain.AuthResponse, error) {
	return d.session.rotate(ctx, refreshToken, d.mint)
}

// InvalidateToken decodes an access token without time checks, so an
// expired one can still end its session. A refresh token is accepted too;
// deleting its session makes the session's access tokens fail verification.
func (d *JWTDriver) InvalidateToken(ctx context.Context, token string, strategy InvalidationStrategy) (int64, error) {
	if _, isRefresh := SplitRefreshToken(token); isRefresh {
		return d.session.invalidateRefresh(ctx, token, strategy)
	}

	claims, err := d.signer.Decode(token)
	if err != nil {
		return 0, jwtError(err)
	}
	if err := claims.ValidateGuard(d.session.guard); err != nil {
		return 0, domain.NewAuthError(domain.KindMalformedToken, "token issued by another guard", err)
	}

	exp := claims.Expiry()
	if exp == nil {
		t := d.session.now().Add(d.session.accessTTL).UTC()
		exp = &t
	}

	ic := domain.InvalidationContext{
		RequestedAt:  d.session.now(),
		AccessToken:  token,
		PrincipalID:  claims.Subject,
		Guard:        d.session.guard,
		SessionID:    claims.SID,
		SignedExpiry: exp,
		Claims: map[string]any{
			"sub": claims.Subject,
			"sid": claims.SID,
			"jti": claims.ID,
			"exp": exp.Unix(),
		},
		Metadata: map[string]any{"jti": claims.ID},
	}
	return strategy.Invalidate(ctx, d.session.tokens, ic)
}

// jwtError maps jwtx failures onto auth error kinds.
func jwtError(err error) error {
	switch {
	case errors.Is(err, jwtx.ErrExpired):
		return domain.NewAuthError(domain.KindExpiredToken, "access token expired", err)
	default:
		return domain.NewAuthError(domain.KindMalformedToken, "invalid access token", err)
	}
}
