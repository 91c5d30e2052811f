package pipeline

import (
	"fmt"
	"math"
	"time"
)

// Option coercion helpers shared by the builtin strategies. YAML and JSON
// decode numbers inconsistently (int, int64, float64 depending on source),
// so Configure implementations go through these instead of asserting
// concrete types. A missing key yields the default and no error; a present
// key of the wrong shape is a configuration error naming the key.

// StringOption reads a string option.
func StringOption(opts map[string]any, key, def string) (string, error) {
	v, ok := opts[key]
	if !ok {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return def, fmt.Errorf("option %q: expected string, got %T", key, v)
	}
	return s, nil
}

// BoolOption reads a boolean option.
func BoolOption(opts map[string]any, key string, def bool) (bool, error) {
	v, ok := opts[key]
	if !ok {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return def, fmt.Errorf("option %q: expected bool, got %T", key, v)
	}
	return b, nil
}

// IntOption reads an integer option, accepting whole floats.
func IntOption(opts map[string]any, key string, def int) (int, error) {
	v, ok := opts[key]
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return def, fmt.Errorf("option %q: expected integer, got %v", key, n)
		}
		return int(n), nil
	}
	return def, fmt.Errorf("option %q: expected integer, got %T", key, v)
}

// Float64Option reads a floating-point option, accepting integers.
func Float64Option(opts map[string]any, key string, def float64) (float64, error) {
	v, ok := opts[key]
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	}
	return def, fmt.Errorf("option %q: expected number, got %T", key, v)
}

// DurationOption reads a duration option, as a Go duration string ("36h")
// or a number of seconds.
func DurationOption(opts map[string]any, key string, def time.Duration) (time.Duration, error) {
	v, ok := opts[key]
	if !ok {
		return def, nil
	}
	switch d := v.(type) {
	case string:
		parsed, err := time.ParseDuration(d)
		if err != nil {
			return def, fmt.Errorf("option %q: %w", key, err)
		}
		return parsed, nil
	case int:
		return time.Duration(d) * time.Second, nil
	case int64:
		return time.Duration(d) * time.Second, nil
	case float64:
		return time.Duration(d * float64(time.Second)), nil
	}
	return def, fmt.Errorf("option %q: expected duration string or seconds, got %T", key, v)
}

// StringSliceOption reads a list-of-strings option.
func StringSliceOption(opts map[string]any, key string, def []string) ([]string, error) {
	v, ok := opts[key]
	if !ok {
		return def, nil
	}
	switch list := v.(type) {
	case []string:
		return append([]string(nil), list...), nil
	case []any:
		out := make([]string, 0, len(list))
		for i, e := range list {
			s, ok := e.(string)
			if !ok {
				return def, fmt.Errorf("option %q[%d]: expected string, got %T", key, i, e)
			}
			out = append(out, s)
		}
		return out, nil
	}
	return def, fmt.Errorf("option %q: expected list of strings, got %T", key, v)
}
