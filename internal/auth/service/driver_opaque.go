package service

import (
	"context"
	"fmt"
	"time"

	"github.com/aussiebroadwan/tokenguard/internal/auth/domain"
	"github.com/aussiebroadwan/tokenguard/pkg/cryptox"
	"github.com/aussiebroadwan/tokenguard/pkg/slogx"
)

// OpaqueDriver issues random access tokens that exist only as store records.
// Verification is a lookup; deleting the record revokes the token.
type OpaqueDriver struct {
	session *sessionTokens
	prefix  string
}

var _ Driver = (*OpaqueDriver)(nil)

func newOpaqueDriver(s *sessionTokens, p ProviderConfig) *OpaqueDriver {
	return &OpaqueDriver{session: s, prefix: p.TokenPrefix}
}

func (d *OpaqueDriver) Kind() DriverKind { return DriverToken }

func (d *OpaqueDriver) GenerateTokens(ctx context.Context, p domain.Principal) (*domain.AuthResponse, error) {
	return d.session.start(ctx, p, d.mint)
}

func (d *OpaqueDriver) mint(ctx context.Context, p domain.Principal, sid string, now time.Time) (string, error) {
	tok, err := cryptox.GenerateToken(cryptox.DefaultTokenLength, d.prefix)
	if err != nil {
		return "", fmt.Errorf("generate access token: %w", err)
	}

	exp := now.Add(d.session.accessTTL)
	if _, err := d.session.tokens.Store(ctx, domain.TokenRecord{
		Token:       tok,
		PrincipalID: p.ID,
		Guard:       d.session.guard,
		Type:        domain.TokenTypeAccess,
		SessionID:   sid,
		CreatedAt:   now.UTC(),
		ExpiresAt:   &exp,
	}); err != nil {
		return "", fmt.Errorf("store access token: %w", err)
	}
	return tok, nil
}

func (d *OpaqueDriver) VerifyToken(ctx context.Context, token string) (domain.Principal, error) {
	rec, err := d.lookup(ctx, token)
	if err != nil {
		return domain.Principal{}, err
	}
	if rec.Type != domain.TokenTypeAccess {
		return domain.Principal{}, domain.NewAuthError(domain.KindUnknownToken, "not an access token", nil)
	}
	if rec.Expired(d.session.now()) {
		if _, err := d.session.tokens.Delete(ctx, token); err != nil {
			slogx.FromContext(ctx).Warn("failed to delete expired access token", "error", err)
		}
		return domain.Principal{}, domain.NewAuthError(domain.KindExpiredToken, "access token expired", nil)
	}
	return d.session.resolver.ActiveByID(ctx, rec.PrincipalID)
}

func (d *OpaqueDriver) RefreshToken(ctx context.Context, refreshToken string) (*domain.AuthResponse, error) {
	return d.session.rotate(ctx, refreshToken, d.mint)
}

// InvalidateToken accepts either half of a pair. The context carries no
// signed expiry, so strategies delete rather than blacklist.
func (d *OpaqueDriver) InvalidateToken(ctx context.Context, token string, strategy InvalidationStrategy) (int64, error) {
	if _, isRefresh := SplitRefreshToken(token); isRefresh {
		return d.session.invalidateRefresh(ctx, token, strategy)
	}

	rec, err := d.lookup(ctx, token)
	if err != nil {
		return 0, err
	}
	if rec.Type != domain.TokenTypeAccess {
		return 0, domain.NewAuthError(domain.KindUnknownToken, "token cannot be revoked", nil)
	}
	return strategy.Invalidate(ctx, d.session.tokens, domain.InvalidationContext{
		AccessToken: token,
		PrincipalID: rec.PrincipalID,
		Guard:       d.session.guard,
		SessionID:   rec.SessionID,
		Metadata:    rec.Metadata,
	})
}

// lookup validates the access token shape before touching the store.
func (d *OpaqueDriver) lookup(ctx context.Context, token string) (domain.TokenRecord, error) {
	if !cryptox.IsValidTokenFormat(token) {
		return domain.TokenRecord{}, domain.NewAuthError(domain.KindMalformedToken, "invalid token format", nil)
	}
	return d.session.find(ctx, token)
}
