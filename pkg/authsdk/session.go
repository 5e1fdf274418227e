package authsdk

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Session holds a token pair for one guard and refreshes the access token
// shortly before it expires.
type Session struct {
	client *SDKClient
	guard  string

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	expiresAt    time.Time
}

// refreshBuffer is how long before expiry a Session refreshes.
const refreshBuffer = 30 * time.Second

// AuthenticateWithPassword logs in and returns a Session for guard.
func (c *SDKClient) AuthenticateWithPassword(ctx context.Context, guard string, creds LoginRequest) (*Session, error) {
	resp, err := c.Login(ctx, guard, creds)
	if err != nil {
		return nil, err
	}
	return newSession(c, guard, resp), nil
}

// NewSessionFromTokens wraps tokens obtained elsewhere.
func (c *SDKClient) NewSessionFromTokens(guard, accessToken, refreshToken string, expiresIn int) *Session {
	return &Session{
		client:       c,
		guard:        guard,
		accessToken:  accessToken,
		refreshToken: refreshToken,
		expiresAt:    time.Now().Add(time.Duration(expiresIn)*time.Second - refreshBuffer),
	}
}

func newSession(c *SDKClient, guard string, resp *TokenResponse) *Session {
	return c.NewSessionFromTokens(guard, resp.AccessToken, resp.RefreshToken, resp.ExpiresIn)
}

// AccessToken returns the current access token without checking expiry.
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

// RefreshToken returns the current refresh token.
func (s *Session) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshToken
}

// Me returns the session's principal, refreshing first if needed.
func (s *Session) Me(ctx context.Context) (*PrincipalResponse, error) {
	token, err := s.validToken(ctx)
	if err != nil {
		return nil, err
	}
	return s.client.Me(ctx, s.guard, token)
}

// Logout ends this device session.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.accessToken == "" {
		return errors.New("session already logged out")
	}
	if _, err := s.client.Logout(ctx, s.guard, s.accessToken); err != nil {
		return err
	}
	s.accessToken, s.refreshToken = "", ""
	return nil
}

func (s *Session) validToken(ctx context.Context) (string, error) {
	s.mu.RLock()
	if s.accessToken != "" && time.Now().Before(s.expiresAt) {
		token := s.accessToken
		s.mu.RUnlock()
		return token, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another goroutine may have refreshed while we waited.
	if s.accessToken != "" && time.Now().Before(s.expiresAt) {
		return s.accessToken, nil
	}
	if s.refreshToken == "" {
		return "", errors.New("access token expired and no refresh token available")
	}

	resp, err := s.client.Refresh(ctx, s.guard, s.refreshToken)
	if err != nil {
		return "", fmt.Errorf("failed to refresh token: %w", err)
	}

	s.accessToken = resp.AccessToken
	s.refreshToken = resp.RefreshToken
	s.expiresAt = time.Now().Add(time.Duration(resp.ExpiresIn)*time.Second - refreshBuffer)
	return s.accessToken, nil
}
