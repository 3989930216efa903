package command

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	fderrors "github.com/randalmurphal/flowdoc/pkg/flowdoc/errors"
	"github.com/randalmurphal/flowdoc/pkg/flowdoc/event"
	"github.com/randalmurphal/flowdoc/pkg/flowdoc/observability"
)

// DefaultHistoryLimit is the undo depth used when none is configured.
const DefaultHistoryLimit = 40

// Sentinel errors for History.
var (
	ErrNothingToUndo = errors.New("nothing to undo")
	ErrNothingToRedo = errors.New("nothing to redo")
)

// History runs commands against one host and keeps undo and redo stacks.
// All methods are safe for concurrent use; commands run one at a time.
type History struct {
	mu    sync.Mutex
	host  Host
	undo  []Command
	redo  []Command
	limit int

	docID   string
	emitter event.Emitter
	metrics observability.MetricsRecorder
	spans   observability.SpanManager
	logger  *slog.Logger
}

// HistoryOption configures a History.
type HistoryOption func(*History)

// WithLimit bounds the undo stack. Values below 1 keep the default.
func WithLimit(n int) HistoryOption {
	return func(h *History) {
		if n > 0 {
			h.limit = n
		}
	}
}

// WithDocID tags events with a document id.
func WithDocID(id string) HistoryOption {
	return func(h *History) { h.docID = id }
}

// WithEmitter publishes command events to e.
func WithEmitter(e event.Emitter) HistoryOption {
	return func(h *History) {
		if e != nil {
			h.emitter = e
		}
	}
}

// WithMetrics records command metrics.
func WithMetrics(m observability.MetricsRecorder) HistoryOption {
	return func(h *History) {
		if m != nil {
			h.metrics = m
		}
	}
}

// WithSpanManager traces command transitions.
func WithSpanManager(s observability.SpanManager) HistoryOption {
	return func(h *History) {
		if s != nil {
			h.spans = s
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) HistoryOption {
	return func(h *History) { h.logger = l }
}

// NewHistory creates a history for host.
func NewHistory(host Host, opts ...HistoryOption) *History {
	h := &History{
		host:    host,
		limit:   DefaultHistoryLimit,
		emitter: event.Discard,
		metrics: observability.NoopMetrics{},
		spans:   observability.NoopSpanManager{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Do executes c and pushes it on the undo stack, clearing redo.
// A command that was already executed is ignored.
func (h *History) Do(ctx context.Context, c Command) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c.State() != StateCreated {
		return nil
	}
	if err := h.apply(ctx, c, TransitionExecute, c.Execute); err != nil {
		return err
	}
	h.undo = append(h.undo, c)
	if over := len(h.undo) - h.limit; over > 0 {
		clear(h.undo[:over])
		h.undo = h.undo[over:]
	}
	h.redo = nil
	return nil
}

// Undo reverts the most recent command.
func (h *History) Undo(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.undo) == 0 {
		return ErrNothingToUndo
	}
	c := h.undo[len(h.undo)-1]
	if err := h.apply(ctx, c, TransitionUndo, c.Undo); err != nil {
		return err
	}
	h.undo = h.undo[:len(h.undo)-1]
	h.redo = append(h.redo, c)
	return nil
}

// Redo reapplies the most recently undone command.
func (h *History) Redo(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.redo) == 0 {
		return ErrNothingToRedo
	}
	c := h.redo[len(h.redo)-1]
	if err := h.apply(ctx, c, TransitionRedo, c.Redo); err != nil {
		return err
	}
	h.redo = h.redo[:len(h.redo)-1]
	h.undo = append(h.undo, c)
	return nil
}

// CanUndo reports whether Undo has something to revert.
func (h *History) CanUndo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.undo) > 0
}

// CanRedo reports whether Redo has something to reapply.
func (h *History) CanRedo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.redo) > 0
}

// Len returns the undo and redo stack depths.
func (h *History) Len() (undo, redo int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.undo), len(h.redo)
}

// Reset drops both stacks without touching the host.
func (h *History) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.undo, h.redo = nil, nil
}

var transitionEvents = map[string]string{
	TransitionExecute: event.TypeCommandExecuted,
	TransitionUndo:    event.TypeCommandUndone,
	TransitionRedo:    event.TypeCommandRedone,
}

func (h *History) apply(ctx context.Context, c Command, transition string, fn func(Host) error) error {
	ctx, span := h.spans.StartCommandSpan(ctx, c.Name(), transition)
	start := time.Now()
	err := fn(h.host)
	elapsed := time.Since(start)
	h.spans.EndSpanWithError(span, err)
	h.metrics.RecordCommand(ctx, c.Name(), transition, elapsed, err)

	ms := float64(elapsed.Microseconds()) / 1000
	if err != nil {
		observability.LogCommandError(h.logger, c.Name(), transition, err)
		_ = h.emitter.Publish(ctx, event.New(event.TypeErrorOccurred, "history", h.docID, event.ErrorPayload{
			Op:       "command." + transition,
			Category: fderrors.Categorize(err).String(),
			Message:  err.Error(),
		}))
		return err
	}
	observability.LogCommand(h.logger, c.Name(), transition, ms)
	_ = h.emitter.Publish(ctx, event.New(transitionEvents[transition], "history", h.docID, event.CommandPayload{
		Command:    c.Name(),
		Transition: transition,
		DurationMs: ms,
	}))
	return nil
}
