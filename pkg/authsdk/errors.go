package authsdk

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/aussiebroadwan/tokenguard/pkg/httpx"
)

// Error codes written in the "error" field of failed responses. Token and
// credential failures reuse the authentication error kind names.
const (
	ErrorCodeInvalidRequest     = "invalid_request"
	ErrorCodeInvalidCredentials = "invalid_credentials"
	ErrorCodeInactivePrincipal  = "inactive_principal"
	ErrorCodeMalformedToken     = "malformed_token"
	ErrorCodeExpiredToken       = "expired_token"
	ErrorCodeBlacklistedToken   = "blacklisted_token"
	ErrorCodeUnknownToken       = "unknown_token"
	ErrorCodeUnknownPrincipal   = "unknown_principal"
	ErrorCodeUnknownGuard       = "unknown_guard"
	ErrorCodeInvalidToken       = "invalid_token"
	ErrorCodeRateLimited        = "rate_limit_exceeded"
	ErrorCodeServerError        = "server_error"
)

// APIError is the error body returned by the service. It is written by the
// server handlers and returned by the client on non-2xx responses.
type APIError struct {
	StatusCode  int    `json:"-"`
	Code        string `json:"error"`
	Description string `json:"error_description"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// WriteError writes e as a JSON response.
func (e *APIError) WriteError(w http.ResponseWriter) {
	httpx.WriteJSON(w, e.StatusCode, e)
}

// NewAPIError creates an APIError.
func NewAPIError(statusCode int, code, description string) *APIError {
	return &APIError{StatusCode: statusCode, Code: code, Description: description}
}

var (
	ErrInvalidRequest = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidRequest,
		Description: "the request is malformed or missing required parameters",
	}

	ErrInvalidToken = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidToken,
		Description: "the token is missing, invalid, expired or revoked",
	}

	ErrUnknownGuard = &APIError{
		StatusCode:  http.StatusNotFound,
		Code:        ErrorCodeUnknownGuard,
		Description: "no such guard",
	}

	ErrServerError = &APIError{
		StatusCode:  http.StatusInternalServerError,
		Code:        ErrorCodeServerError,
		Description: "internal server error",
	}
)

// parseErrorResponse turns a non-2xx response into an *APIError.
func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var e APIError
	if err := json.Unmarshal(body, &e); err == nil && e.Code != "" {
		e.StatusCode = resp.StatusCode
		return &e
	}

	return &APIError{
		StatusCode:  resp.StatusCode,
		Code:        ErrorCodeServerError,
		Description: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
}
