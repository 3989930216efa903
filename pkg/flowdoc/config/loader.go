package config

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// decoders maps a settings file extension to its parser.
var decoders = map[string]func([]byte) (Config, error){
	".yaml": FromYAML,
	".yml":  FromYAML,
	".json": FromJSON,
}

// FromFile loads a settings file. The format follows the extension:
// .yaml, .yml or .json.
func FromFile(path string) (Config, error) {
	ext := strings.ToLower(filepath.Ext(path))
	decode, ok := decoders[ext]
	if !ok {
		return Config{}, fmt.Errorf("unsupported config file extension: %q", ext)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	cfg, err := decode(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// FromYAML parses a YAML settings document.
func FromYAML(data []byte) (Config, error) {
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Config{}, fmt.Errorf("parse yaml: %w", err)
	}
	return New(m), nil
}

// FromJSON parses a JSON settings document.
func FromJSON(data []byte) (Config, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return Config{}, fmt.Errorf("parse json: %w", err)
	}
	return New(m), nil
}

// ParseOverrides turns "collab.mode=pull" style pairs into a nested
// Config. Values are read as YAML scalars, so "3", "true" and "1.5"
// keep their types and anything else stays a string.
func ParseOverrides(pairs []string) (Config, error) {
	out := make(map[string]any)
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" || strings.HasPrefix(key, ".") || strings.HasSuffix(key, ".") {
			return Config{}, fmt.Errorf("override %q: want key=value", pair)
		}
		var v any = raw
		if raw != "" {
			if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
				v = raw
			}
			if _, nested := v.(map[string]any); nested {
				v = raw
			}
		}
		setPath(out, strings.Split(key, "."), v)
	}
	return New(out), nil
}

func setPath(m map[string]any, path []string, v any) {
	for _, part := range path[:len(path)-1] {
		next, ok := m[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			m[part] = next
		}
		m = next
	}
	m[path[len(path)-1]] = v
}

// Merge returns a Config with over's values on top of c's. Sections
// present in both merge key by key. Neither input is modified.
func (c Config) Merge(over Config) Config {
	return New(merge(c.data, over.data))
}

func merge(base, over map[string]any) map[string]any {
	out := maps.Clone(base)
	if out == nil {
		out = make(map[string]any, len(over))
	}
	for k, v := range over {
		sub, ok := asMap(v)
		if !ok {
			out[k] = v
			continue
		}
		if cur, ok := asMap(out[k]); ok {
			out[k] = merge(cur, sub)
			continue
		}
		out[k] = merge(nil, sub)
	}
	return out
}
