package service

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

// Sanitize returns a copy of rec holding only JSON-friendly values, with the
// named fields removed. Times become RFC 3339 strings, byte slices become
// strings, and nested maps and slices are normalized recursively.
func Sanitize(rec map[string]any, drop ...string) map[string]any {
	out := make(map[string]any, len(rec))
	for k, v := range rec {
		if slices.Contains(drop, k) {
			continue
		}
		out[k] = normalize(v)
	}
	return out
}

func normalize(v any) any {
	switch val := v.(type) {
	case nil, string, bool, json.Number,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return val
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	case *time.Time:
		if val == nil {
			return nil
		}
		return val.UTC().Format(time.RFC3339Nano)
	case []byte:
		return string(val)
	case map[string]any:
		return Sanitize(val)
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = normalize(e)
		}
		return out
	case []string:
		return slices.Clone(val)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}
