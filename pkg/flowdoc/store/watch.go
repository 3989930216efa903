package store

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// WatchFunc receives the new contents of a document changed on disk.
type WatchFunc func(id string, data []byte)

// Watcher reports documents of a FileStore changed outside the store.
type Watcher struct {
	store   *FileStore
	watcher *fsnotify.Watcher
	fn      WatchFunc
	logger  *slog.Logger
	done    chan struct{}
	once    sync.Once
}

// Watch starts watching the store directory. fn is called from the
// watcher goroutine for every created or rewritten <id>.json whose
// contents differ from the store's own last write. Stop with Close.
func (f *FileStore) Watch(fn WatchFunc, logger *slog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(f.dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", f.dir, err)
	}
	w := &Watcher{store: f, watcher: fw, fn: fn, logger: logger, done: make(chan struct{})}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	defer close(w.done)
	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			w.changed(ev.Name)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if w.logger != nil {
				w.logger.Warn("document watcher error", "dir", w.store.dir, "error", err)
			}
		}
	}
}

func (w *Watcher) changed(path string) {
	id, ok := strings.CutSuffix(filepath.Base(path), docExt)
	if !ok || checkID(id) != nil {
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) && w.logger != nil {
			w.logger.Warn("read changed document", "doc_id", id, "error", err)
		}
		return
	}
	if len(data) == 0 || w.store.ownWrite(id, data) {
		return
	}
	w.fn(id, data)
}

// Close stops the watcher and waits for its goroutine.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		err = w.watcher.Close()
		<-w.done
	})
	return err
}
