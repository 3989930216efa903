package store

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory document store for tests and the CLI.
// Data is lost when the process exits.
type MemoryStore struct {
	mu     sync.RWMutex
	docs   map[string]*memoryDoc
	closed bool
}

type memoryDoc struct {
	next int
	revs []storedRevision
}

// storedRevision holds revision data with metadata for listings.
type storedRevision struct {
	rev       int
	data      []byte
	timestamp time.Time
}

func (r storedRevision) info(id string) Info {
	return Info{DocID: id, Revision: r.rev, Timestamp: r.timestamp, Size: int64(len(r.data))}
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]*memoryDoc)}
}

// Save implements Store.
func (m *MemoryStore) Save(_ context.Context, id string, data []byte) error {
	if id == "" {
		return ErrInvalidID
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	doc := m.docs[id]
	if doc == nil {
		doc = &memoryDoc{}
		m.docs[id] = doc
	}
	doc.next++
	doc.revs = append(doc.revs, storedRevision{
		rev:       doc.next,
		data:      slices.Clone(data),
		timestamp: time.Now().UTC(),
	})
	return nil
}

// Load implements Store.
func (m *MemoryStore) Load(_ context.Context, id string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}
	doc, ok := m.docs[id]
	if !ok || len(doc.revs) == 0 {
		return nil, ErrNotFound
	}
	return slices.Clone(doc.revs[len(doc.revs)-1].data), nil
}

// LoadRevision implements Store.
func (m *MemoryStore) LoadRevision(_ context.Context, id string, rev int) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}
	doc, ok := m.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	for _, r := range doc.revs {
		if r.rev == rev {
			return slices.Clone(r.data), nil
		}
	}
	return nil, ErrNotFound
}

// List implements Store.
func (m *MemoryStore) List(_ context.Context) ([]Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}
	infos := make([]Info, 0, len(m.docs))
	for id, doc := range m.docs {
		if len(doc.revs) > 0 {
			infos = append(infos, doc.revs[len(doc.revs)-1].info(id))
		}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].DocID < infos[j].DocID })
	return infos, nil
}

// Revisions implements Store.
func (m *MemoryStore) Revisions(_ context.Context, id string) ([]Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}
	doc, ok := m.docs[id]
	if !ok {
		return nil, nil
	}
	infos := make([]Info, 0, len(doc.revs))
	for _, r := range doc.revs {
		infos = append(infos, r.info(id))
	}
	return infos, nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	delete(m.docs, id)
	return nil
}

// Prune implements Store.
func (m *MemoryStore) Prune(_ context.Context, id string, keep int) (int, error) {
	keep = clampKeep(keep)
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ErrStoreClosed
	}
	doc, ok := m.docs[id]
	if !ok || len(doc.revs) <= keep {
		return 0, nil
	}
	n := len(doc.revs) - keep
	doc.revs = slices.Delete(doc.revs, 0, n)
	return n, nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.docs = nil
	return nil
}

// Len returns the number of stored revisions across all documents.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, doc := range m.docs {
		count += len(doc.revs)
	}
	return count
}
