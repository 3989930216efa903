// Package store persists flow documents with a revision history.
package store

import (
	"context"
	"errors"
	"time"
)

// Store persists serialized documents. Every Save appends a revision;
// Load returns the newest. Implementations must be safe for concurrent use.
//
// A Store satisfies form.Saver.
type Store interface {
	// Save stores data as the next revision of document id.
	Save(ctx context.Context, id string, data []byte) error

	// Load returns the newest revision of id.
	// Returns ErrNotFound if the document doesn't exist.
	Load(ctx context.Context, id string) ([]byte, error)

	// LoadRevision returns revision rev of id.
	// Returns ErrNotFound if the revision doesn't exist.
	LoadRevision(ctx context.Context, id string, rev int) ([]byte, error)

	// List describes the newest revision of every document, ordered by id.
	List(ctx context.Context) ([]Info, error)

	// Revisions lists the revisions of id, oldest first.
	// Returns an empty slice (not an error) for an unknown document.
	Revisions(ctx context.Context, id string) ([]Info, error)

	// Delete removes id and all its revisions.
	// Returns nil if the document doesn't exist.
	Delete(ctx context.Context, id string) error

	// Prune drops all but the newest keep revisions of id and reports how
	// many were removed. keep is at least 1.
	Prune(ctx context.Context, id string, keep int) (int, error)

	// Close releases any resources (connections, files).
	Close() error
}

// Info describes one stored revision without loading it.
type Info struct {
	DocID     string
	Revision  int
	Timestamp time.Time
	Size      int64
}

// Sentinel errors for store operations.
var (
	// ErrNotFound indicates a document or revision doesn't exist.
	ErrNotFound = errors.New("document not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("document store closed")

	// ErrInvalidID indicates an id that cannot name a document.
	ErrInvalidID = errors.New("invalid document id")
)

func clampKeep(keep int) int {
	if keep < 1 {
		return 1
	}
	return keep
}
