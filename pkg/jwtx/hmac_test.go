package jwtx_test

import (
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/tokenguard/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte(strings.Repeat("s", 32))

func newSigner(t *testing.T, alg string, opts ...jwtx.Option) *jwtx.HMAC {
	t.Helper()
	h, err := jwtx.NewHMAC(alg, testSecret, opts...)
	require.NoError(t, err)
	return h
}

func TestNewHMAC(t *testing.T) {
	for _, alg := range []string{"", "HS256", "HS384", "HS512"} {
		h, err := jwtx.NewHMAC(alg, testSecret)
		require.NoError(t, err, alg)
		if alg != "" {
			require.Equal(t, alg, h.Alg())
		}
	}

	_, err := jwtx.NewHMAC("RS256", testSecret)
	require.ErrorIs(t, err, jwtx.ErrAlgMismatch)

	_, err = jwtx.NewHMAC("HS256", []byte("short"))
	require.ErrorIs(t, err, jwtx.ErrWeakSecret)
}

func TestHMAC_SignVerify(t *testing.T) {
	h := newSigner(t, "HS256", jwtx.WithIssuer("tokenguard"))
	now := time.Now().UTC()

	claims := jwtx.NewAccessClaims("user-1", "sid-1", "api", map[string]any{"name": "Alice"}, time.Minute, "tokenguard", now)
	token, err := h.Sign(claims)
	require.NoError(t, err)

	got, err := h.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "user-1", got.Subject)
	require.Equal(t, "sid-1", got.SID)
	require.Equal(t, "api", got.Guard)
	require.Equal(t, "Alice", got.User["name"])
	require.Equal(t, claims.ID, got.ID)
}

func TestHMAC_VerifyFailures(t *testing.T) {
	h := newSigner(t, "HS256", jwtx.WithIssuer("tokenguard"))
	now := time.Now().UTC()

	sign := func(t *testing.T, s *jwtx.HMAC, c jwtx.Claims) string {
		t.Helper()
		tok, err := s.Sign(c)
		require.NoError(t, err)
		return tok
	}

	t.Run("garbage", func(t *testing.T) {
		_, err := h.Verify("not-a-jwt")
		require.ErrorIs(t, err, jwtx.ErrMalformed)
	})

	t.Run("expired", func(t *testing.T) {
		tok := sign(t, h, jwtx.NewAccessClaims("u", "s", "api", nil, time.Minute, "tokenguard", now.Add(-time.Hour)))
		_, err := h.Verify(tok)
		require.ErrorIs(t, err, jwtx.ErrExpired)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other, err := jwtx.NewHMAC("HS256", []byte(strings.Repeat("x", 32)))
		require.NoError(t, err)
		tok := sign(t, other, jwtx.NewAccessClaims("u", "s", "api", nil, time.Minute, "tokenguard", now))
		_, err = h.Verify(tok)
		require.ErrorIs(t, err, jwtx.ErrInvalidSig)
	})

	t.Run("algorithm mismatch", func(t *testing.T) {
		tok := sign(t, newSigner(t, "HS512"), jwtx.NewAccessClaims("u", "s", "api", nil, time.Minute, "tokenguard", now))
		_, err := h.Verify(tok)
		require.Error(t, err)
	})

	t.Run("issuer mismatch", func(t *testing.T) {
		tok := sign(t, h, jwtx.NewAccessClaims("u", "s", "api", nil, time.Minute, "someone-else", now))
		_, err := h.Verify(tok)
		require.ErrorIs(t, err, jwtx.ErrIssuer)
	})

	t.Run("missing exp", func(t *testing.T) {
		c := jwtx.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u", Issuer: "tokenguard"}}
		_, err := h.Verify(sign(t, h, c))
		require.Error(t, err)
	})
}

func TestHMAC_DecodeExpired(t *testing.T) {
	h := newSigner(t, "HS256")
	past := time.Now().UTC().Add(-time.Hour)

	tok, err := h.Sign(jwtx.NewAccessClaims("user-1", "sid-1", "api", nil, time.Minute, "", past))
	require.NoError(t, err)

	got, err := h.Decode(tok)
	require.NoError(t, err)
	require.Equal(t, "sid-1", got.SID)

	_, err = h.Decode(tok[:len(tok)-2] + "xx")
	require.Error(t, err)
}

func TestHMAC_WithClock(t *testing.T) {
	issued := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := issued
	h := newSigner(t, "HS256", jwtx.WithClock(func() time.Time { return clock }))
	require.Empty(t, h.Issuer())

	token, err := h.Sign(jwtx.NewAccessClaims("user-1", "sid-1", "api", nil, time.Minute, "", issued))
	require.NoError(t, err)

	clock = issued.Add(30 * time.Second)
	_, err = h.Verify(token)
	require.NoError(t, err)

	clock = issued.Add(2 * time.Minute)
	_, err = h.Verify(token)
	require.ErrorIs(t, err, jwtx.ErrExpired)
}
