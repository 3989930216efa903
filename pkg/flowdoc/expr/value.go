package expr

import (
	"encoding/json"
	"reflect"
	"strconv"
	"strings"

	"github.com/randalmurphal/flowdoc/pkg/flowdoc/template"
)

// Resolve turns one operand's text into a value: a quoted string, a
// literal, a number, a variable, or the text itself.
func Resolve(s string, vars map[string]any) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	switch strings.ToLower(s) {
	case "true":
		return true
	case "false":
		return false
	case "null", "nil":
		return nil
	}
	if v, ok := parseNumber(s); ok {
		return v
	}
	if v, ok := template.Lookup(vars, s); ok {
		return v
	}
	return s
}

// parseNumber returns an int64 for integers and a float64 otherwise.
func parseNumber(s string) (any, bool) {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f, true
	}
	return nil, false
}

// IsTruthy reports whether v counts as true: false, nil, "" and numeric
// zero are false, anything else is true.
func IsTruthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case json.Number:
		f, err := val.Float64()
		return err != nil || f != 0
	}
	if f, ok := numeric(v); ok {
		return f != 0
	}
	return true
}

// ToFloat64 converts v for ordering comparisons. Strings are parsed;
// anything else that is not a number is 0.
func ToFloat64(v any) float64 {
	switch val := v.(type) {
	case json.Number:
		f, _ := val.Float64()
		return f
	case string:
		f, _ := strconv.ParseFloat(strings.TrimSpace(val), 64)
		return f
	}
	f, _ := numeric(v)
	return f
}

// numeric widens any Go integer or float kind.
func numeric(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch {
	case rv.CanInt():
		return float64(rv.Int()), true
	case rv.CanUint():
		return float64(rv.Uint()), true
	case rv.CanFloat():
		return rv.Float(), true
	}
	return 0, false
}

// text renders a value for equality and contains.
func text(v any) string {
	switch val := v.(type) {
	case nil:
		return "<nil>"
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	default:
		return template.Format(val)
	}
}
