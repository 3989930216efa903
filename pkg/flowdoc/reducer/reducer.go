package reducer

import (
	"context"
	"log/slog"
	"sync"

	"github.com/randalmurphal/flowdoc/pkg/flowdoc/observability"
	"github.com/randalmurphal/flowdoc/pkg/flowdoc/params"
	"github.com/randalmurphal/flowdoc/pkg/flowdoc/registry"
)

// Reducer maps a tree and an action to a new tree.
// Implementations must not mutate the input tree.
type Reducer interface {
	Type() string
	Reduce(t params.Tree, a Action) (params.Tree, error)
}

// Func builds a Reducer from a function.
func Func(typ string, fn func(params.Tree, Action) (params.Tree, error)) Reducer {
	return funcReducer{typ: typ, fn: fn}
}

type funcReducer struct {
	typ string
	fn  func(params.Tree, Action) (params.Tree, error)
}

func (r funcReducer) Type() string { return r.typ }

func (r funcReducer) Reduce(t params.Tree, a Action) (params.Tree, error) { return r.fn(t, a) }

// Dispatcher routes actions to reducers by type.
type Dispatcher struct {
	table   *registry.Registry[string, Reducer]
	base    *Dispatcher
	freeze  sync.Once
	logger  *slog.Logger
	metrics observability.MetricsRecorder
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithBase delegates unknown action types to base.
func WithBase(base *Dispatcher) Option {
	return func(d *Dispatcher) { d.base = base }
}

// WithLogger sets the logger used by ApplyToShape.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// WithMetrics records one dispatch metric per action.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(d *Dispatcher) {
		if m != nil {
			d.metrics = m
		}
	}
}

// NewDispatcher returns an empty dispatcher.
func NewDispatcher(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		table:   registry.New[string, Reducer]("reducers"),
		metrics: observability.NoopMetrics{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Register adds r under r.Type(). It fails once dispatching has started or
// when the type is taken.
func (d *Dispatcher) Register(r Reducer) error {
	return d.table.Register(r.Type(), r)
}

// MustRegister is Register that panics on error.
func (d *Dispatcher) MustRegister(rs ...Reducer) {
	for _, r := range rs {
		d.table.MustRegister(r.Type(), r)
	}
}

// Lookup finds the reducer for typ here or along the base chain.
func (d *Dispatcher) Lookup(typ string) (Reducer, bool) {
	for cur := d; cur != nil; cur = cur.base {
		if r, ok := cur.table.Get(typ); ok {
			return r, true
		}
	}
	return nil, false
}

// Types lists the action types handled here, base chain excluded.
func (d *Dispatcher) Types() []string {
	return d.table.Keys()
}

// Dispatch applies the reducer registered for a.Type to t. Unknown types
// return t unchanged.
func (d *Dispatcher) Dispatch(ctx context.Context, t params.Tree, a Action) (params.Tree, error) {
	d.freeze.Do(d.freezeChain)

	r, ok := d.Lookup(a.Type)
	if !ok {
		d.metrics.RecordDispatch(ctx, a.Type, false)
		return t, nil
	}
	out, err := r.Reduce(t, a)
	if err != nil {
		return t, &Error{Action: a.Type, ID: a.ID, Err: err}
	}
	d.metrics.RecordDispatch(ctx, a.Type, !params.Same(t, out))
	return out, nil
}

func (d *Dispatcher) freezeChain() {
	for cur := d; cur != nil; cur = cur.base {
		cur.table.Freeze()
	}
}
