package authsdk

// LoginRequest carries the credentials for a guard's login endpoint. The
// identifying field names depend on the guard's provider ("email",
// "username", ...); "identifier" matches any of them.
type LoginRequest map[string]string

// TokenRequest is the body of the refresh, logout and logout-all endpoints.
type TokenRequest struct {
	// RefreshToken is required by refresh and optional elsewhere.
	RefreshToken string `json:"refresh_token,omitempty"`

	// Token is the access token, or for logout-all a principal id.
	Token string `json:"token,omitempty"`
}

// TokenResponse is returned from login and refresh.
type TokenResponse struct {
	User             map[string]any `json:"user"`
	AccessToken      string         `json:"access_token"`
	RefreshToken     string         `json:"refresh_token"`
	TokenType        string         `json:"token_type"`
	ExpiresIn        int            `json:"expires_in"`
	RefreshExpiresIn int            `json:"refresh_expires_in"`
}

// PrincipalResponse is returned from the me endpoint.
type PrincipalResponse struct {
	ID    string         `json:"id"`
	Guard string         `json:"guard"`
	User  map[string]any `json:"user"`
}

// LogoutResponse reports how many token records were removed.
type LogoutResponse struct {
	Revoked int64 `json:"revoked"`
}

// HealthResponse is returned from livez and readyz.
type HealthResponse struct {
	Status  string            `json:"status"`
	Uptime  string            `json:"uptime,omitempty"`
	Version string            `json:"version,omitempty"`
	Checks  map[string]string `json:"checks,omitempty"`
}
