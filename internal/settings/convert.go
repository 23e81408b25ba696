package settings

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Get returns a typed plugin setting, or def when the setting is missing or
// cannot be converted to T.
func Get[T any](a Accessor, featureID, name string, def T) T {
	if a == nil {
		return def
	}
	return Convert(a.GetPluginSetting(featureID, name, nil), def)
}

// Convert coerces a stored value to the type of def. Backends decode numbers
// as float64 (JSON) or int64 (TOML), so numeric kinds convert freely.
func Convert[T any](v any, def T) T {
	if v == nil {
		return def
	}
	if t, ok := v.(T); ok {
		return t
	}

	var out any
	switch any(def).(type) {
	case string:
		switch s := v.(type) {
		case fmt.Stringer:
			out = s.String()
		case bool, int, int64, float64, float32, int32, uint, uint64:
			out = fmt.Sprint(s)
		}
	case bool:
		switch b := v.(type) {
		case string:
			if p, err := strconv.ParseBool(b); err == nil {
				out = p
			}
		default:
			if f, ok := toFloat(v); ok {
				out = f != 0
			}
		}
	case int:
		if n, ok := toInt(v); ok {
			out = int(n)
		}
	case int64:
		if n, ok := toInt(v); ok {
			out = n
		}
	case float64:
		if f, ok := toFloat(v); ok {
			out = f
		}
	case time.Duration:
		switch d := v.(type) {
		case string:
			if p, err := time.ParseDuration(d); err == nil {
				out = p
			}
		default:
			if n, ok := toInt(v); ok {
				out = time.Duration(n)
			}
		}
	case []string:
		if list, ok := v.([]any); ok {
			strs := make([]string, 0, len(list))
			for _, item := range list {
				s, ok := item.(string)
				if !ok {
					return def
				}
				strs = append(strs, s)
			}
			out = strs
		}
	default:
		// Composite values round-trip through JSON.
		data, err := json.Marshal(v)
		if err != nil {
			return def
		}
		var t T
		if err := json.Unmarshal(data, &t); err != nil {
			return def
		}
		return t
	}

	if t, ok := out.(T); ok {
		return t
	}
	return def
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}

func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	}
	f, ok := toFloat(v)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int64(f), true
}
