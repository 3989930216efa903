package template

import (
	"encoding/json"
	"strings"
)

// MissingAction decides what happens to a reference with no value.
type MissingAction int

const (
	// MissingKeep leaves the reference as written. Default.
	MissingKeep MissingAction = iota
	// MissingEmpty drops the reference.
	MissingEmpty
	// MissingError fails with *UndefinedVariableError.
	MissingError
)

// Option configures an Expander.
type Option func(*Expander)

// WithMissingAction sets the handling of unresolved references.
func WithMissingAction(action MissingAction) Option {
	return func(e *Expander) { e.missingAction = action }
}

// WithBraceStyle toggles ${path} references. On by default.
func WithBraceStyle(enabled bool) Option {
	return func(e *Expander) { e.braceStyle = enabled }
}

// WithDollarStyle toggles bare $name references. On by default.
func WithDollarStyle(enabled bool) Option {
	return func(e *Expander) { e.dollarStyle = enabled }
}

// WithEscaper passes every substituted value through fn. Text outside
// references is never escaped.
func WithEscaper(fn func(string) string) Option {
	return func(e *Expander) { e.escape = fn }
}

// EscapeJSON makes s safe to splice between the quotes of a JSON string.
func EscapeJSON(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		return s
	}
	return strings.TrimSuffix(strings.TrimPrefix(string(b), `"`), `"`)
}
