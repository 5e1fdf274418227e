package authsdk

import (
	"context"
	"net/http"
)

// Login submits credentials to a guard.
func (c *SDKClient) Login(ctx context.Context, guard string, creds LoginRequest) (*TokenResponse, error) {
	return c.tokenCall(ctx, guardPath(guard, "login"), creds)
}

// Refresh rotates a refresh token into a new token pair.
func (c *SDKClient) Refresh(ctx context.Context, guard, refreshToken string) (*TokenResponse, error) {
	return c.tokenCall(ctx, guardPath(guard, "refresh"), TokenRequest{RefreshToken: refreshToken})
}

// Logout ends the device session the access token belongs to.
func (c *SDKClient) Logout(ctx context.Context, guard, accessToken string) (*LogoutResponse, error) {
	return c.logoutCall(ctx, guardPath(guard, "logout"), accessToken)
}

// LogoutAll ends every session of the access token's principal on guard.
func (c *SDKClient) LogoutAll(ctx context.Context, guard, accessToken string) (*LogoutResponse, error) {
	return c.logoutCall(ctx, guardPath(guard, "logout-all"), accessToken)
}

// Me returns the principal the access token currently resolves to.
func (c *SDKClient) Me(ctx context.Context, guard, accessToken string) (*PrincipalResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, guardPath(guard, "me"), nil, accessToken)
	if err != nil {
		return nil, err
	}

	var out PrincipalResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *SDKClient) tokenCall(ctx context.Context, path string, body any) (*TokenResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, path, body, "")
	if err != nil {
		return nil, err
	}

	var out TokenResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *SDKClient) logoutCall(ctx context.Context, path, accessToken string) (*LogoutResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, path, nil, accessToken)
	if err != nil {
		return nil, err
	}

	var out LogoutResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}
