package registry

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"sync"
)

// Sentinel errors for registry mutation.
var (
	// ErrFrozen indicates a registration was attempted after Freeze.
	ErrFrozen = errors.New("registry is frozen")

	// ErrDuplicate indicates a key was registered twice.
	ErrDuplicate = errors.New("duplicate registry key")
)

// Registry maps type tags to constructors or handlers.
// It is safe for concurrent use and optimized for read-heavy access: tables
// are filled during startup, frozen, then only read.
type Registry[K cmp.Ordered, V any] struct {
	name    string
	mu      sync.RWMutex
	entries map[K]V
	frozen  bool
}

// New creates an empty registry. The name is used in error messages.
func New[K cmp.Ordered, V any](name string) *Registry[K, V] {
	return &Registry[K, V]{
		name:    name,
		entries: make(map[K]V),
	}
}

// Register adds a value under key.
// Returns ErrDuplicate if key already exists and ErrFrozen after Freeze.
func (r *Registry[K, V]) Register(key K, value V) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return fmt.Errorf("%s: register %v: %w", r.name, key, ErrFrozen)
	}
	if _, exists := r.entries[key]; exists {
		return fmt.Errorf("%s: register %v: %w", r.name, key, ErrDuplicate)
	}
	r.entries[key] = value
	return nil
}

// MustRegister is Register for package init code; it panics on error.
func (r *Registry[K, V]) MustRegister(key K, value V) {
	if err := r.Register(key, value); err != nil {
		panic(err)
	}
}

// Replace overwrites or adds key. Returns ErrFrozen after Freeze.
func (r *Registry[K, V]) Replace(key K, value V) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return fmt.Errorf("%s: replace %v: %w", r.name, key, ErrFrozen)
	}
	r.entries[key] = value
	return nil
}

// Delete removes key. Returns ErrFrozen after Freeze.
func (r *Registry[K, V]) Delete(key K) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return fmt.Errorf("%s: delete %v: %w", r.name, key, ErrFrozen)
	}
	delete(r.entries, key)
	return nil
}

// Freeze makes the registry read-only. Calling it more than once is harmless.
func (r *Registry[K, V]) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Frozen reports whether Freeze has been called.
func (r *Registry[K, V]) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}

// Get returns the value for key and whether it exists.
func (r *Registry[K, V]) Get(key K) (V, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.entries[key]
	return v, ok
}

// MustGet returns the value for key, panicking if it is not registered.
func (r *Registry[K, V]) MustGet(key K) V {
	v, ok := r.Get(key)
	if !ok {
		panic(fmt.Sprintf("%s: key %v not registered", r.name, key))
	}
	return v
}

// Has reports whether key is registered.
func (r *Registry[K, V]) Has(key K) bool {
	_, ok := r.Get(key)
	return ok
}

// Keys returns all keys in ascending order.
func (r *Registry[K, V]) Keys() []K {
	r.mu.RLock()
	keys := make([]K, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	r.mu.RUnlock()

	slices.Sort(keys)
	return keys
}

// Len returns the number of entries.
func (r *Registry[K, V]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Range calls fn for each entry in key order until fn returns false.
// It iterates over a snapshot, so fn may call Register or Delete.
func (r *Registry[K, V]) Range(fn func(K, V) bool) {
	r.mu.RLock()
	snapshot := make(map[K]V, len(r.entries))
	for k, v := range r.entries {
		snapshot[k] = v
	}
	r.mu.RUnlock()

	keys := make([]K, 0, len(snapshot))
	for k := range snapshot {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, k := range keys {
		if !fn(k, snapshot[k]) {
			return
		}
	}
}

// Clone returns an unfrozen copy under a new name. Used to derive a
// restricted table (for example the runtime shape allow-list) from a full one.
func (r *Registry[K, V]) Clone(name string, keep func(K) bool) *Registry[K, V] {
	out := New[K, V](name)
	r.Range(func(k K, v V) bool {
		if keep == nil || keep(k) {
			out.entries[k] = v
		}
		return true
	})
	return out
}
