package map2rec

import (
	"math"
	"strconv"
	"strings"
)

func asString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	default:
		return "", false
	}
}

// asInt accepts integral numbers and numeric strings, as produced by JSON
// decoding and by spreadsheet or CSV cells.
func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int8:
		return int(x), true
	case int16:
		return int(x), true
	case int32:
		return int(x), true
	case int64:
		if x > math.MaxInt || x < math.MinInt {
			return 0, false
		}
		return int(x), true
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) || x >= math.MaxInt || x < math.MinInt {
			return 0, false
		}
		return int(x), true
	case float32:
		return asInt(float64(x))
	case string:
		s := strings.TrimSpace(x)
		if n, err := strconv.Atoi(s); err == nil {
			return n, true
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return asInt(f)
	default:
		return 0, false
	}
}

func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case float64:
		// float64(MaxInt64) rounds up to 2^63, so the upper bound is exclusive.
		if x != math.Trunc(x) || math.IsInf(x, 0) || x >= math.MaxInt64 || x < math.MinInt64 {
			return 0, false
		}
		return int64(x), true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

func asFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func asAnySlice(v any) ([]any, bool) {
	switch xs := v.(type) {
	case []any:
		return append([]any(nil), xs...), true
	case []map[string]any:
		out := make([]any, 0, len(xs))
		for _, item := range xs {
			out = append(out, item)
		}
		return out, true
	default:
		return nil, false
	}
}

func firstPresent(in map[string]any, keys ...string) (any, bool) {
	for _, key := range keys {
		if v, ok := in[key]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}
