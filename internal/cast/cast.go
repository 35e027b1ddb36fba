// Package cast converts loosely typed option values (from Go callers, YAML, or JSON) to concrete types.
package cast

import (
	"encoding/json"
	"math"
)

// ToFloat64 converts a numeric value to float64. Supports int/uint/float types and json.Number.
func ToFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	default:
		if i, ok := integer(v); ok {
			return float64(i), true
		}
		if u, ok := v.(uint64); ok {
			return float64(u), true
		}
		if u, ok := v.(uint); ok {
			return float64(u), true
		}
		return 0, false
	}
}

// ToInt64 converts a numeric value to int64. Unsigned values above math.MaxInt64 clamp;
// floats are truncated and NaN/Inf are rejected.
func ToInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case uint:
		return clampUint(uint64(x)), true
	case uint64:
		return clampUint(x), true
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0, false
		}
		return int64(x), true
	case float32:
		return ToInt64(float64(x))
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i, true
		}
		f, err := x.Float64()
		if err != nil {
			return 0, false
		}
		return ToInt64(f)
	default:
		return integer(v)
	}
}

// ToStringSlice converts v to []string. Accepts []string, []any where each element is string, or a single string.
func ToStringSlice(v any) ([]string, bool) {
	switch x := v.(type) {
	case []string:
		return x, true
	case string:
		return []string{x}, true
	case []any:
		out := make([]string, 0, len(x))
		for _, e := range x {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

func integer(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int64:
		return x, true
	case int32:
		return int64(x), true
	case int16:
		return int64(x), true
	case int8:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint8:
		return int64(x), true
	default:
		return 0, false
	}
}

func clampUint(u uint64) int64 {
	if u > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(u)
}
