package actions

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/rendis/gaiaflow/internal/expressions"
	"github.com/rendis/gaiaflow/pkg/schema"
)

func stringParam(m map[string]any, key, defaultVal string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return defaultVal
	}
	if s, ok := v.(string); ok {
		return s
	}
	return expressions.Stringify(v)
}

func requireString(action string, m map[string]any, key string) (string, error) {
	s := stringParam(m, key, "")
	if s == "" {
		return "", schema.NewErrorf(schema.ErrCodeValidation, "%s: parameter %q is required", action, key)
	}
	return s, nil
}

func boolParam(m map[string]any, key string, defaultVal bool) bool {
	switch v := m[key].(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func intParam(m map[string]any, key string, defaultVal int) int {
	switch n := m[key].(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i)
		}
	case string:
		if i, err := strconv.Atoi(n); err == nil {
			return i
		}
	}
	return defaultVal
}

// durationParam accepts a number of seconds or a Go duration string such
// as "90s" or "5m".
func durationParam(m map[string]any, key string, defaultVal time.Duration) time.Duration {
	var d time.Duration
	switch v := m[key].(type) {
	case int:
		d = time.Duration(v) * time.Second
	case int64:
		d = time.Duration(v) * time.Second
	case float64:
		d = time.Duration(v * float64(time.Second))
	case string:
		if parsed, err := time.ParseDuration(v); err == nil {
			d = parsed
		} else if secs, err := strconv.ParseFloat(v, 64); err == nil {
			d = time.Duration(secs * float64(time.Second))
		}
	}
	// Zero and negative values fall back to the default.
	if d <= 0 {
		return defaultVal
	}
	return d
}

func stringMapParam(m map[string]any, key string) map[string]string {
	raw, ok := m[key].(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		out[k] = expressions.Stringify(v)
	}
	return out
}

// withOutputVar proposes value as a variable update when the step set
// "output_var".
func withOutputVar(params map[string]any, output, value any) *Result {
	res := &Result{Output: output}
	if name := stringParam(params, "output_var", ""); name != "" {
		res.Variables = map[string]any{name: value}
	}
	return res
}
