package authsdk

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClient_ErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		NewAPIError(http.StatusUnauthorized, ErrorCodeInvalidCredentials, "bad password").WriteError(w)
	}))
	defer srv.Close()

	_, err := NewSDKClient(srv.URL).Login(context.Background(), "api", LoginRequest{"email": "a@x.com", "password": "nope"})

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	require.Equal(t, ErrorCodeInvalidCredentials, apiErr.Code)
}

func TestClient_NonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewSDKClient(srv.URL).GetLiveness(context.Background())

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	require.Equal(t, ErrorCodeServerError, apiErr.Code)
}

func TestSession_RefreshesExpiredToken(t *testing.T) {
	var refreshes atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/auth/api/refresh", func(w http.ResponseWriter, r *http.Request) {
		var req TokenRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "sid::r1", req.RefreshToken)
		refreshes.Add(1)

		_ = json.NewEncoder(w).Encode(TokenResponse{
			AccessToken:  "a2",
			RefreshToken: "sid::r2",
			TokenType:    "Bearer",
			ExpiresIn:    900,
		})
	})
	mux.HandleFunc("GET /v1/auth/api/me", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer a2", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(PrincipalResponse{ID: "user-1", Guard: "api"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	// expires_in 0 puts the session past its refresh point immediately
	s := NewSDKClient(srv.URL).NewSessionFromTokens("api", "a1", "sid::r1", 0)

	me, err := s.Me(context.Background())
	require.NoError(t, err)
	require.Equal(t, "user-1", me.ID)
	require.Equal(t, "sid::r2", s.RefreshToken())
	require.EqualValues(t, 1, refreshes.Load())

	// still fresh, no second refresh
	_, err = s.Me(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1, refreshes.Load())
}
