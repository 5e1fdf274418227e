package http

import (
	"net/http"
	"strings"

	"github.com/aussiebroadwan/tokenguard/internal/auth/domain"
	"github.com/aussiebroadwan/tokenguard/internal/auth/service"
	"github.com/aussiebroadwan/tokenguard/pkg/authsdk"
	"github.com/aussiebroadwan/tokenguard/pkg/httpx"
)

// AuthHandler serves the per-guard token lifecycle endpoints.
type AuthHandler struct {
	Manager *service.Manager
}

// HandleLogin serves POST /v1/auth/{guard}/login. The JSON body is a flat
// object of credential fields, for example {"email": ..., "password": ...}.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var creds authsdk.LoginRequest
	if err := httpx.DecodeJSON(w, r, &creds); err != nil || len(creds) == 0 {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	resp, err := h.Manager.Login(ctx, guardFromContext(ctx), creds)
	if err != nil {
		writeAuthError(ctx, w, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, toTokenResponse(resp))
}

// HandleRefresh serves POST /v1/auth/{guard}/refresh.
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req authsdk.TokenRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	resp, err := h.Manager.Refresh(ctx, guardFromContext(ctx), req.RefreshToken)
	if err != nil {
		writeAuthError(ctx, w, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, toTokenResponse(resp))
}

// HandleLogout serves POST /v1/auth/{guard}/logout. The token comes from the
// Authorization header, or from the body's "token" or "refresh_token".
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req authsdk.TokenRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	token, ok := httpx.BearerToken(r)
	if !ok {
		token = firstNonEmpty(req.Token, req.RefreshToken)
	}
	if token == "" {
		httpx.WriteBearerError(w, "missing bearer token")
		return
	}

	n, err := h.Manager.Logout(ctx, guardFromContext(ctx), token)
	if err != nil {
		writeAuthError(ctx, w, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, authsdk.LogoutResponse{Revoked: n})
}

// HandleLogoutAll serves POST /v1/auth/{guard}/logout-all. The bearer token
// has already been verified; every session of its principal is ended.
func (h *AuthHandler) HandleLogoutAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	n, err := h.Manager.LogoutAll(ctx, guardFromContext(ctx), httpx.TokenFromContext(ctx))
	if err != nil {
		writeAuthError(ctx, w, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, authsdk.LogoutResponse{Revoked: n})
}

// HandleMe serves GET /v1/auth/{guard}/me with the freshly resolved principal.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	p, ok := principalFromContext(ctx)
	if !ok {
		httpx.WriteBearerError(w, "missing principal")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.PrincipalResponse{
		ID:    p.ID,
		Guard: guardFromContext(ctx),
		User:  p.Projection(),
	})
}

func toTokenResponse(resp *domain.AuthResponse) authsdk.TokenResponse {
	return authsdk.TokenResponse{
		User:             resp.User,
		AccessToken:      resp.AccessToken,
		RefreshToken:     resp.RefreshToken,
		TokenType:        resp.TokenType,
		ExpiresIn:        int(resp.ExpiresIn.Seconds()),
		RefreshExpiresIn: int(resp.RefreshExpiresIn.Seconds()),
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
