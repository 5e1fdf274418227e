package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/aussiebroadwan/tokenguard/internal/auth/domain"
	"github.com/aussiebroadwan/tokenguard/internal/auth/service"
	"github.com/aussiebroadwan/tokenguard/pkg/authsdk"
	"github.com/aussiebroadwan/tokenguard/pkg/httpx"
	"github.com/aussiebroadwan/tokenguard/pkg/slogx"
)

// writeAuthError maps service errors onto API errors. Every token and
// credential failure is a 401; token failures also carry a Bearer challenge.
func writeAuthError(ctx context.Context, w http.ResponseWriter, err error) {
	if errors.Is(err, service.ErrUnknownGuard) {
		authsdk.ErrUnknownGuard.WriteError(w)
		return
	}

	var ae *domain.AuthError
	if !errors.As(err, &ae) {
		slogx.FromContext(ctx).Error("request failed", "error", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	switch ae.Kind {
	case domain.KindMisconfiguredGuard:
		slogx.FromContext(ctx).Error("guard misconfigured", "error", err)
		authsdk.ErrServerError.WriteError(w)
		return
	case domain.KindMalformedToken, domain.KindExpiredToken, domain.KindBlacklistedToken,
		domain.KindUnknownToken, domain.KindUnknownPrincipal:
		w.Header().Set("WWW-Authenticate", httpx.BearerChallenge(ae.Message))
	}

	authsdk.NewAPIError(http.StatusUnauthorized, string(ae.Kind), ae.Message).WriteError(w)
}
