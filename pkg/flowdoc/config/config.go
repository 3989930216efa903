package config

import (
	"strings"
	"time"
)

// Config wraps a map[string]any for typed value extraction.
// Keys may be dotted paths into nested maps ("collab.mode"). Accessors
// return the default when the key is missing or the value has the
// wrong type.
type Config struct {
	data map[string]any
}

// New creates a Config from the given map.
// If data is nil, an empty Config is returned.
func New(data map[string]any) Config {
	if data == nil {
		data = make(map[string]any)
	}
	return Config{data: data}
}

// lookup resolves key, trying the literal key before the dotted path.
func (c Config) lookup(key string) (any, bool) {
	if v, ok := c.data[key]; ok {
		return v, true
	}
	cur := c.data
	parts := strings.Split(key, ".")
	for i, part := range parts {
		v, ok := cur[part]
		if !ok {
			return nil, false
		}
		if i == len(parts)-1 {
			return v, true
		}
		next, ok := asMap(v)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return nil, false
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Config:
		return m.data, true
	}
	return nil, false
}

// Sub returns the nested section at key, or an empty Config.
func (c Config) Sub(key string) Config {
	v, ok := c.lookup(key)
	if !ok {
		return New(nil)
	}
	m, _ := asMap(v)
	return New(m)
}

// get converts the value at key with conv, falling back to def when the
// key is missing or conv rejects the value.
func get[T any](c Config, key string, def T, conv func(any) (T, bool)) T {
	v, ok := c.lookup(key)
	if !ok {
		return def
	}
	if out, ok := conv(v); ok {
		return out
	}
	return def
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

// asInt accepts a float64 only when it has no fractional part.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), n == float64(int(n))
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// asDuration parses strings with time.ParseDuration and reads bare
// numbers as milliseconds, the unit documents use for timeouts and delays.
func asDuration(v any) (time.Duration, bool) {
	switch d := v.(type) {
	case time.Duration:
		return d, true
	case string:
		out, err := time.ParseDuration(d)
		return out, err == nil
	}
	if ms, ok := asFloat(v); ok {
		return time.Duration(ms * float64(time.Millisecond)), true
	}
	return 0, false
}

// asStrings rejects a list holding anything but strings.
func asStrings(v any) ([]string, bool) {
	switch list := v.(type) {
	case []string:
		return list, true
	case []any:
		out := make([]string, len(list))
		for i, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out[i] = s
		}
		return out, true
	}
	return nil, false
}

// String returns the string at key, or def.
func (c Config) String(key, def string) string { return get(c, key, def, asString) }

// Bool returns the boolean at key, or def.
func (c Config) Bool(key string, def bool) bool { return get(c, key, def, asBool) }

// Int returns the integer at key, or def.
func (c Config) Int(key string, def int) int { return get(c, key, def, asInt) }

// Float returns the number at key, or def.
func (c Config) Float(key string, def float64) float64 { return get(c, key, def, asFloat) }

// Duration returns the duration at key, or def. "1.5s" and 1500 both mean
// one and a half seconds.
func (c Config) Duration(key string, def time.Duration) time.Duration {
	return get(c, key, def, asDuration)
}

// StringSlice returns the string list at key, or def.
func (c Config) StringSlice(key string, def []string) []string {
	return get(c, key, def, asStrings)
}

// Any returns the raw value at key, or def.
func (c Config) Any(key string, def any) any {
	return get(c, key, def, func(v any) (any, bool) { return v, true })
}

// Has reports whether key resolves.
func (c Config) Has(key string) bool {
	_, ok := c.lookup(key)
	return ok
}

// Raw returns the underlying map. Callers must not modify it.
func (c Config) Raw() map[string]any { return c.data }
