package expressions

import (
	"encoding/json"
	"fmt"
	"regexp"
)

var variableRef = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)

// Substitute replaces every $name token in s with the string form of
// vars[name]. Tokens naming unknown variables are left untouched.
func Substitute(s string, vars map[string]any) string {
	if len(vars) == 0 {
		return s
	}
	return variableRef.ReplaceAllStringFunc(s, func(tok string) string {
		v, ok := vars[tok[1:]]
		if !ok {
			return tok
		}
		return Stringify(v)
	})
}

// SubstituteParams returns a deep copy of params with Substitute applied to
// every string value, including strings nested in maps and lists. Map keys
// and non-string values are copied as is.
func SubstituteParams(params map[string]any, vars map[string]any) map[string]any {
	if params == nil {
		return map[string]any{}
	}
	out, _ := substituteValue(params, vars).(map[string]any)
	return out
}

func substituteValue(v any, vars map[string]any) any {
	switch val := v.(type) {
	case string:
		return Substitute(val, vars)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = substituteValue(item, vars)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = substituteValue(item, vars)
		}
		return out
	default:
		return v
	}
}

// Stringify renders a variable value the way it appears after substitution:
// strings verbatim, nil as "", scalars via fmt, maps and lists as JSON.
func Stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case map[string]any, []any, map[string]string, []string:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	default:
		return fmt.Sprint(val)
	}
}
