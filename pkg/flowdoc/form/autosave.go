package form

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bep/debounce"

	fderrors "github.com/randalmurphal/flowdoc/pkg/flowdoc/errors"
	"github.com/randalmurphal/flowdoc/pkg/flowdoc/event"
	"github.com/randalmurphal/flowdoc/pkg/flowdoc/observability"
)

// DefaultAutosaveDelay is the debounce window before an automatic save.
const DefaultAutosaveDelay = 2000 * time.Millisecond

// Saver persists serialized documents. store.Memory, store.SQLite and
// store.Files satisfy it.
type Saver interface {
	Save(ctx context.Context, docID string, data []byte) error
}

// SaverFunc adapts a function to Saver.
type SaverFunc func(ctx context.Context, docID string, data []byte) error

// Save implements Saver.
func (f SaverFunc) Save(ctx context.Context, docID string, data []byte) error {
	return f(ctx, docID, data)
}

// AutoSaveConfig configures an AutoSaver.
type AutoSaveConfig struct {
	// Delay is the debounce window. Zero uses DefaultAutosaveDelay.
	Delay time.Duration
	// Retry is applied to each save. Zero value uses errors.SaveRetry.
	Retry fderrors.RetryConfig

	Logger  *slog.Logger
	Emitter event.Emitter
	Metrics observability.MetricsRecorder
	Spans   observability.SpanManager
}

// AutoSaver writes a document some time after the last change. Changes
// arriving inside the window restart it; whatever the document looks like
// when the window closes is what gets written.
type AutoSaver struct {
	docID    string
	saver    Saver
	snapshot func() ([]byte, error)
	schedule func(func())
	cfg      AutoSaveConfig

	// run serializes saves so that the last one to finish holds the
	// newest snapshot.
	run sync.Mutex

	mu      sync.Mutex
	dirty   bool
	closed  bool
	saves   int
	lastErr error
}

// NewAutoSaver creates a saver for docID. snapshot is called at save time
// to encode the current document.
func NewAutoSaver(docID string, saver Saver, snapshot func() ([]byte, error), cfg AutoSaveConfig) *AutoSaver {
	if cfg.Delay <= 0 {
		cfg.Delay = DefaultAutosaveDelay
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = fderrors.SaveRetry
	}
	if cfg.Emitter == nil {
		cfg.Emitter = event.Discard
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NoopMetrics{}
	}
	if cfg.Spans == nil {
		cfg.Spans = observability.NoopSpanManager{}
	}
	return &AutoSaver{
		docID:    docID,
		saver:    saver,
		snapshot: snapshot,
		schedule: debounce.New(cfg.Delay),
		cfg:      cfg,
	}
}

// Touch marks the document changed and restarts the debounce window.
func (a *AutoSaver) Touch() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.dirty = true
	a.mu.Unlock()
	a.schedule(a.fire)
}

func (a *AutoSaver) fire() {
	_ = a.save(context.Background())
}

// Flush writes the document now if it changed since the last save.
func (a *AutoSaver) Flush(ctx context.Context) error {
	return a.save(ctx)
}

// Close flushes and stops accepting changes. It is safe to call twice.
func (a *AutoSaver) Close(ctx context.Context) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()
	a.schedule(func() {})
	return a.save(ctx)
}

// Dirty reports whether there are changes not yet written.
func (a *AutoSaver) Dirty() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dirty
}

// Saves returns the number of successful saves.
func (a *AutoSaver) Saves() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.saves
}

// Err returns the error of the most recent failed save, cleared by the
// next successful one.
func (a *AutoSaver) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastErr
}

func (a *AutoSaver) save(ctx context.Context) error {
	a.run.Lock()
	defer a.run.Unlock()

	a.mu.Lock()
	if !a.dirty {
		a.mu.Unlock()
		return nil
	}
	a.dirty = false
	a.mu.Unlock()

	ctx, span := a.cfg.Spans.StartSaveSpan(ctx, a.docID)
	elapsed := observability.TimedOperation()

	data, err := a.snapshot()
	if err == nil {
		res := fderrors.WithRetryContext(ctx, a.cfg.Retry, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, a.saver.Save(ctx, a.docID, data)
		})
		err = res.Err
		if err != nil {
			observability.LogSaveError(a.cfg.Logger, a.docID, res.Attempts, err)
		}
	}
	a.cfg.Spans.EndSpanWithError(span, err)

	a.mu.Lock()
	if err != nil {
		a.dirty = true
		a.lastErr = err
		a.mu.Unlock()
		a.publish(ctx, event.New(event.TypeErrorOccurred, "autosave", a.docID, event.ErrorPayload{
			Op:       "save",
			Category: fderrors.Categorize(err).String(),
			Message:  err.Error(),
		}))
		return err
	}
	a.saves++
	a.lastErr = nil
	rev := a.saves
	a.mu.Unlock()

	observability.LogSave(a.cfg.Logger, a.docID, len(data), elapsed())
	a.cfg.Metrics.RecordDocumentSize(ctx, a.docID, int64(len(data)))
	a.publish(ctx, event.New(event.TypeDocumentSaved, "autosave", a.docID, event.SavePayload{
		SizeBytes: len(data),
		Revision:  rev,
	}))
	return nil
}

func (a *AutoSaver) publish(ctx context.Context, evt event.Event) {
	if err := a.cfg.Emitter.Publish(ctx, evt); err != nil && a.cfg.Logger != nil {
		a.cfg.Logger.Warn("publish failed", "event", evt.Type(), "error", err)
	}
}
