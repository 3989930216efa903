// Package ident generates identifiers for documents, pages and shapes.
//
// Ids are opaque strings. The engine never parses them; it only requires that
// they are unique within a graph and stable across serialization.
package ident

import (
	"strings"

	"github.com/google/uuid"
)

// New returns a random identifier (UUIDv4 without dashes).
func New() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// Short returns an 8 character identifier with the given prefix.
// Used for param nodes, where readability in serialized JSON matters more
// than global uniqueness.
func Short(prefix string) string {
	id := uuid.New().String()[:8]
	if prefix == "" {
		return id
	}
	return prefix + "-" + id
}

// Session returns a new collaboration session id.
func Session() string {
	return uuid.New().String()
}

// Valid reports whether id can be used as a shape or page id.
// Ids must be non-empty and contain no whitespace.
func Valid(id string) bool {
	if id == "" {
		return false
	}
	return !strings.ContainsAny(id, " \t\n\r")
}
