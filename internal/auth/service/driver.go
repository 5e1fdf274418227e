package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/tokenguard/internal/auth/domain"
	"github.com/aussiebroadwan/tokenguard/internal/auth/store"
	"github.com/aussiebroadwan/tokenguard/pkg/cryptox"
	"github.com/aussiebroadwan/tokenguard/pkg/slogx"
)

// SessionDelimiter joins the session id and the secret part of a refresh token.
const SessionDelimiter = "::"

// Driver implements token issuance and verification for one token technology.
type Driver interface {
	Kind() DriverKind
	// GenerateTokens starts a new session for p.
	GenerateTokens(ctx context.Context, p domain.Principal) (*domain.AuthResponse, error)
	// VerifyToken validates an access token and re-resolves its principal.
	VerifyToken(ctx context.Context, token string) (domain.Principal, error)
	// RefreshToken rotates a refresh token, keeping its session id.
	RefreshToken(ctx context.Context, refreshToken string) (*domain.AuthResponse, error)
	// InvalidateToken revokes token using strategy.
	InvalidateToken(ctx context.Context, token string, strategy InvalidationStrategy) (int64, error)
}

// accessMinter issues the access half of a pair for session sid.
type accessMinter func(ctx context.Context, p domain.Principal, sid string, now time.Time) (string, error)

// sessionTokens holds what both drivers share: the refresh token scheme,
// rotation and principal re-resolution.
type sessionTokens struct {
	guard      string
	tokens     store.Tokens
	resolver   *PrincipalResolver
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// SplitRefreshToken returns the session id of a "<sid>::<secret>" token.
func SplitRefreshToken(token string) (sid string, ok bool) {
	sid, secret, found := strings.Cut(token, SessionDelimiter)
	if !found || sid == "" || secret == "" {
		return "", false
	}
	if !cryptox.IsValidTokenFormat(sid) || !cryptox.IsValidTokenFormat(secret) {
		return "", false
	}
	return sid, true
}

func newSessionID() (string, error) {
	return cryptox.GenerateToken(cryptox.SessionIDLength, "")
}

func (s *sessionTokens) issue(ctx context.Context, p domain.Principal, sid string, mint accessMinter) (*domain.AuthResponse, string, error) {
	now := s.now()

	access, err := mint(ctx, p, sid, now)
	if err != nil {
		return nil, "", err
	}

	secret, err := cryptox.GenerateToken(cryptox.DefaultTokenLength, "")
	if err != nil {
		return nil, "", fmt.Errorf("generate refresh token: %w", err)
	}
	refresh := sid + SessionDelimiter + secret

	exp := now.Add(s.refreshTTL)
	if _, err := s.tokens.Store(ctx, domain.TokenRecord{
		Token:       refresh,
		PrincipalID: p.ID,
		Guard:       s.guard,
		Type:        domain.TokenTypeRefresh,
		SessionID:   sid,
		CreatedAt:   now.UTC(),
		ExpiresAt:   &exp,
	}); err != nil {
		return nil, "", fmt.Errorf("store refresh token: %w", err)
	}

	return &domain.AuthResponse{
		User:             p.Projection(),
		AccessToken:      access,
		RefreshToken:     refresh,
		TokenType:        domain.BearerTokenType,
		ExpiresIn:        s.accessTTL,
		RefreshExpiresIn: s.refreshTTL,
	}, refresh, nil
}

func (s *sessionTokens) start(ctx context.Context, p domain.Principal, mint accessMinter) (*domain.AuthResponse, error) {
	sid, err := newSessionID()
	if err != nil {
		return nil, fmt.Errorf("generate session id: %w", err)
	}
	resp, _, err := s.issue(ctx, p, sid, mint)
	return resp, err
}

// rotate validates refreshToken, issues a new pair on the same session and
// deletes the old refresh record. The new record is written first, so two
// concurrent rotations of one token can both succeed.
func (s *sessionTokens) rotate(ctx context.Context, refreshToken string, mint accessMinter) (*domain.AuthResponse, error) {
	sid, ok := SplitRefreshToken(refreshToken)
	if !ok {
		return nil, domain.NewAuthError(domain.KindMalformedToken, "refresh token must be <session>::<secret>", nil)
	}

	rec, err := s.tokens.Find(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domain.NewAuthError(domain.KindUnknownToken, "refresh token not found", nil)
		}
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	if rec.Type != domain.TokenTypeRefresh || rec.Guard != s.guard {
		return nil, domain.NewAuthError(domain.KindUnknownToken, "not a refresh token for this guard", nil)
	}
	if rec.SessionID != "" && rec.SessionID != sid {
		return nil, domain.NewAuthError(domain.KindMalformedToken, "refresh token session mismatch", nil)
	}
	if rec.Expired(s.now()) {
		if _, err := s.tokens.Delete(ctx, refreshToken); err != nil {
			slogx.FromContext(ctx).Warn("failed to delete expired refresh token", "error", err)
		}
		return nil, domain.NewAuthError(domain.KindExpiredToken, "refresh token expired", nil)
	}

	p, err := s.resolver.ActiveByID(ctx, rec.PrincipalID)
	if err != nil {
		return nil, err
	}

	resp, _, err := s.issue(ctx, p, sid, mint)
	if err != nil {
		return nil, err
	}

	if _, err := s.tokens.Delete(ctx, refreshToken); err != nil {
		return nil, fmt.Errorf("delete rotated refresh token: %w", err)
	}
	return resp, nil
}

// sessionAlive reports whether session sid still holds a refresh token for
// principalID on this guard.
func (s *sessionTokens) sessionAlive(ctx context.Context, principalID, sid string) (bool, error) {
	recs, err := s.tokens.FindBySession(ctx, sid, store.TokenFilter{
		Guard: s.guard,
		Types: []domain.TokenType{domain.TokenTypeRefresh},
	})
	if err != nil {
		return false, err
	}
	now := s.now()
	for _, r := range recs {
		if r.PrincipalID == principalID && !r.Expired(now) {
			return true, nil
		}
	}
	return false, nil
}

// find loads a record issued by this guard.
func (s *sessionTokens) find(ctx context.Context, token string) (domain.TokenRecord, error) {
	rec, err := s.tokens.Find(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.TokenRecord{}, domain.NewAuthError(domain.KindUnknownToken, "token not found", nil)
		}
		return domain.TokenRecord{}, fmt.Errorf("find token: %w", err)
	}
	if rec.Guard != s.guard {
		return domain.TokenRecord{}, domain.NewAuthError(domain.KindUnknownToken, "token belongs to another guard", nil)
	}
	return rec, nil
}

// invalidateRefresh ends the session of a stored refresh token. The context
// carries no signed expiry, so strategies delete rather than blacklist.
func (s *sessionTokens) invalidateRefresh(ctx context.Context, token string, strategy InvalidationStrategy) (int64, error) {
	rec, err := s.find(ctx, token)
	if err != nil {
		return 0, err
	}
	if rec.Type != domain.TokenTypeRefresh {
		return 0, domain.NewAuthError(domain.KindUnknownToken, "not a refresh token", nil)
	}
	return strategy.Invalidate(ctx, s.tokens, domain.InvalidationContext{
		RefreshToken: token,
		PrincipalID:  rec.PrincipalID,
		Guard:        s.guard,
		SessionID:    rec.SessionID,
		Metadata:     rec.Metadata,
	})
}
