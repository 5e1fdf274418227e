package service

import (
	"context"
	"fmt"

	"github.com/aussiebroadwan/tokenguard/internal/auth/domain"
	"github.com/aussiebroadwan/tokenguard/internal/auth/store"
)

// LogoutType picks an invalidation strategy.
type LogoutType int

const (
	SingleDevice LogoutType = iota
	AllDevices
)

func (t LogoutType) String() string {
	switch t {
	case SingleDevice:
		return "single_device"
	case AllDevices:
		return "all_devices"
	default:
		return fmt.Sprintf("logout_type(%d)", int(t))
	}
}

// InvalidationStrategy revokes the tokens described by an invalidation
// context and reports how many records it created or removed.
type InvalidationStrategy interface {
	Invalidate(ctx context.Context, tokens store.Tokens, ic domain.InvalidationContext) (int64, error)
}

// StrategyFor returns the strategy for t. Strategies are stateless.
func StrategyFor(t LogoutType) (InvalidationStrategy, error) {
	switch t {
	case SingleDevice:
		return SingleDeviceLogout{}, nil
	case AllDevices:
		return AllDevicesLogout{}, nil
	default:
		return nil, fmt.Errorf("unsupported logout type %s", t)
	}
}

// SingleDeviceLogout revokes one device's session. A signed access token is
// blacklisted until its own expiry; an opaque one is deleted. Either way the
// refresh tokens sharing the session id are deleted so the device cannot
// mint new access tokens. Opaque sessions also lose their other access
// records, which covers logout by refresh token.
type SingleDeviceLogout struct{}

func (SingleDeviceLogout) Invalidate(ctx context.Context, tokens store.Tokens, ic domain.InvalidationContext) (int64, error) {
	var n int64
	sessionTypes := []domain.TokenType{domain.TokenTypeRefresh}

	if ic.SignedExpiry != nil {
		exp := *ic.SignedExpiry
		_, err := tokens.Store(ctx, domain.TokenRecord{
			Token:       ic.AccessToken,
			PrincipalID: ic.PrincipalID,
			Guard:       ic.Guard,
			Type:        domain.TokenTypeBlacklist,
			SessionID:   ic.SessionID,
			CreatedAt:   ic.RequestedAt.UTC(),
			ExpiresAt:   &exp,
			Metadata:    ic.Metadata,
		})
		if err != nil {
			return 0, fmt.Errorf("blacklist access token: %w", err)
		}
		n++
	} else {
		for _, tok := range []string{ic.AccessToken, ic.RefreshToken} {
			if tok == "" {
				continue
			}
			d, err := tokens.Delete(ctx, tok)
			if err != nil {
				return n, fmt.Errorf("delete token: %w", err)
			}
			n += d
		}
		sessionTypes = append(sessionTypes, domain.TokenTypeAccess)
	}

	if ic.SessionID != "" {
		d, err := tokens.DeleteByPrincipal(ctx, ic.PrincipalID, store.TokenFilter{
			Guard:     ic.Guard,
			SessionID: ic.SessionID,
			Types:     sessionTypes,
		})
		if err != nil {
			return n, fmt.Errorf("delete session tokens: %w", err)
		}
		n += d
	}

	return n, nil
}

// AllDevicesLogout deletes every record the principal holds on the guard,
// across all sessions and token types.
type AllDevicesLogout struct{}

func (AllDevicesLogout) Invalidate(ctx context.Context, tokens store.Tokens, ic domain.InvalidationContext) (int64, error) {
	if ic.PrincipalID == "" {
		return 0, domain.ErrUnknownPrincipal
	}
	n, err := tokens.DeleteByPrincipal(ctx, ic.PrincipalID, store.TokenFilter{Guard: ic.Guard})
	if err != nil {
		return 0, fmt.Errorf("delete principal tokens: %w", err)
	}
	return n, nil
}
