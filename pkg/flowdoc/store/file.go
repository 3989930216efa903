package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"
)

const (
	docExt     = ".json"
	revDirName = ".revisions"
)

// FileStore keeps each document as <dir>/<id>.json, readable and
// editable by hand, and each revision as an envelope under
// <dir>/.revisions/<id>/.
type FileStore struct {
	dir string

	mu      sync.RWMutex
	closed  bool
	written map[string][]byte
}

// NewFileStore opens the store rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Join(dir, revDirName), 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &FileStore{dir: dir, written: make(map[string][]byte)}, nil
}

// Dir returns the root directory.
func (f *FileStore) Dir() string { return f.dir }

func checkID(id string) error {
	if id == "" || strings.HasPrefix(id, ".") || strings.ContainsAny(id, `/\`+" \t\n") {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

func (f *FileStore) docPath(id string) string { return filepath.Join(f.dir, id+docExt) }
func (f *FileStore) revDir(id string) string  { return filepath.Join(f.dir, revDirName, id) }

func (f *FileStore) revPath(id string, rev int) string {
	return filepath.Join(f.revDir(id), fmt.Sprintf("%08d%s", rev, docExt))
}

// revNumbers returns the revision numbers of id in ascending order.
func (f *FileStore) revNumbers(id string) ([]int, error) {
	entries, err := os.ReadDir(f.revDir(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var revs []int
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), docExt)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(name)
		if err != nil {
			continue
		}
		revs = append(revs, n)
	}
	slices.Sort(revs)
	return revs, nil
}

// writeFile writes data to path through a temp file and rename.
func writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Save implements Store.
func (f *FileStore) Save(_ context.Context, id string, data []byte) error {
	if err := checkID(id); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrStoreClosed
	}
	revs, err := f.revNumbers(id)
	if err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	next := 1
	if len(revs) > 0 {
		next = revs[len(revs)-1] + 1
	}

	env, err := NewRevision(id, next, data).Marshal()
	if err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	if err := os.MkdirAll(f.revDir(id), 0o755); err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	if err := writeFile(f.revPath(id, next), env); err != nil {
		return fmt.Errorf("save revision: %w", err)
	}
	f.written[id] = bytes.Clone(data)
	if err := writeFile(f.docPath(id), data); err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	return nil
}

// Load implements Store. It reads <id>.json, including edits made
// outside the store.
func (f *FileStore) Load(_ context.Context, id string) ([]byte, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return nil, ErrStoreClosed
	}
	data, err := os.ReadFile(f.docPath(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	return data, nil
}

func (f *FileStore) readRevision(id string, rev int) (*Revision, error) {
	raw, err := os.ReadFile(f.revPath(id, rev))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load revision: %w", err)
	}
	r, err := UnmarshalRevision(raw)
	if err != nil {
		return nil, fmt.Errorf("load revision %s@%d: %w", id, rev, err)
	}
	return r, nil
}

// LoadRevision implements Store.
func (f *FileStore) LoadRevision(_ context.Context, id string, rev int) ([]byte, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return nil, ErrStoreClosed
	}
	r, err := f.readRevision(id, rev)
	if err != nil {
		return nil, err
	}
	return r.Data, nil
}

// List implements Store. Documents placed in the directory by hand are
// listed with revision 0.
func (f *FileStore) List(_ context.Context) ([]Info, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return nil, ErrStoreClosed
	}
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	var infos []Info
	for _, e := range entries {
		id, ok := strings.CutSuffix(e.Name(), docExt)
		if !ok || e.IsDir() || checkID(id) != nil {
			continue
		}
		revs, err := f.revNumbers(id)
		if err != nil {
			return nil, fmt.Errorf("list documents: %w", err)
		}
		if len(revs) > 0 {
			r, err := f.readRevision(id, revs[len(revs)-1])
			if err != nil {
				return nil, err
			}
			infos = append(infos, r.Info())
			continue
		}
		fi, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("list documents: %w", err)
		}
		infos = append(infos, Info{DocID: id, Timestamp: fi.ModTime().UTC(), Size: fi.Size()})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].DocID < infos[j].DocID })
	return infos, nil
}

// Revisions implements Store.
func (f *FileStore) Revisions(_ context.Context, id string) ([]Info, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return nil, ErrStoreClosed
	}
	revs, err := f.revNumbers(id)
	if err != nil {
		return nil, fmt.Errorf("list revisions: %w", err)
	}
	infos := make([]Info, 0, len(revs))
	for _, n := range revs {
		r, err := f.readRevision(id, n)
		if err != nil {
			return nil, err
		}
		infos = append(infos, r.Info())
	}
	return infos, nil
}

// Delete implements Store.
func (f *FileStore) Delete(_ context.Context, id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrStoreClosed
	}
	delete(f.written, id)
	if err := os.RemoveAll(f.revDir(id)); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if err := os.Remove(f.docPath(id)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

// Prune implements Store.
func (f *FileStore) Prune(_ context.Context, id string, keep int) (int, error) {
	if err := checkID(id); err != nil {
		return 0, err
	}
	keep = clampKeep(keep)
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return 0, ErrStoreClosed
	}
	revs, err := f.revNumbers(id)
	if err != nil {
		return 0, fmt.Errorf("prune document: %w", err)
	}
	if len(revs) <= keep {
		return 0, nil
	}
	removed := 0
	for _, n := range revs[:len(revs)-keep] {
		if err := os.Remove(f.revPath(id, n)); err != nil {
			return removed, fmt.Errorf("prune document: %w", err)
		}
		removed++
	}
	return removed, nil
}

// Close implements Store.
func (f *FileStore) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// ownWrite reports whether data is what the store last wrote for id.
func (f *FileStore) ownWrite(id string, data []byte) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	last, ok := f.written[id]
	return ok && bytes.Equal(last, data)
}
