package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type stringerID int

func (s stringerID) String() string { return "id-" + string(rune('0'+int(s))) }

func TestSanitize(t *testing.T) {
	t.Parallel()

	ts := time.Date(2025, 3, 4, 5, 6, 7, 0, time.FixedZone("X", 3600))
	in := map[string]any{
		"id":       int64(7),
		"name":     "Alice",
		"password": "secret",
		"token":    "hidden",
		"raw":      []byte("bytes"),
		"joined":   ts,
		"nil":      nil,
		"ok":       true,
		"score":    1.5,
		"ref":      stringerID(3),
		"nested": map[string]any{
			"at":   &ts,
			"list": []any{ts, []byte("x"), 1},
		},
		"tags":  []string{"a", "b"},
		"other": struct{ A int }{1},
	}

	out := Sanitize(in, "password", "token")

	require.NotContains(t, out, "password")
	require.NotContains(t, out, "token")
	require.Equal(t, int64(7), out["id"])
	require.Equal(t, "bytes", out["raw"])
	require.Equal(t, "2025-03-04T04:06:07Z", out["joined"])
	require.Nil(t, out["nil"])
	require.Equal(t, true, out["ok"])
	require.Equal(t, "id-3", out["ref"])
	require.Equal(t, []string{"a", "b"}, out["tags"])
	require.Equal(t, "{1}", out["other"])

	nested := out["nested"].(map[string]any)
	require.Equal(t, "2025-03-04T04:06:07Z", nested["at"])
	require.Equal(t, []any{"2025-03-04T04:06:07Z", "x", 1}, nested["list"])

	// The input is left alone.
	require.Equal(t, "secret", in["password"])
	require.IsType(t, time.Time{}, in["joined"])
}

func TestTruthy(t *testing.T) {
	t.Parallel()

	for _, v := range []any{true, int64(1), 1, 1.0, "1", "true", " TRUE ", []byte("t")} {
		require.True(t, truthy(v), "%#v", v)
	}
	for _, v := range []any{nil, false, int64(0), 0, 0.0, "0", "false", "", "yes please", struct{}{}} {
		require.False(t, truthy(v), "%#v", v)
	}
}
