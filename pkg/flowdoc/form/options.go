package form

import (
	"log/slog"
	"slices"
	"time"

	"github.com/randalmurphal/flowdoc/pkg/flowdoc/command"
	fderrors "github.com/randalmurphal/flowdoc/pkg/flowdoc/errors"
	"github.com/randalmurphal/flowdoc/pkg/flowdoc/event"
	"github.com/randalmurphal/flowdoc/pkg/flowdoc/expr"
	"github.com/randalmurphal/flowdoc/pkg/flowdoc/httpnode"
	"github.com/randalmurphal/flowdoc/pkg/flowdoc/observability"
	"github.com/randalmurphal/flowdoc/pkg/flowdoc/reducer"
	"github.com/randalmurphal/flowdoc/pkg/flowdoc/shape"
)

// availableTypes are the shape types Want may create by default. Scripts
// and the form root are deliberately absent.
var availableTypes = []string{
	shape.TypeButton,
	shape.TypeCheckbox,
	shape.TypeDiv,
	shape.TypeImage,
	shape.TypeInput,
	shape.TypeLabel,
	shape.TypeRadio,
	shape.TypeSelect,
	shape.TypeTextArea,
}

// AvailableShapeTypes returns the shape types Want accepts by default.
func AvailableShapeTypes() []string {
	return slices.Clone(availableTypes)
}

// Kinds returns a kind table with the built-in kinds plus the HTTP node.
func Kinds() *shape.Kinds {
	k := shape.NewKinds()
	if err := httpnode.Register(k); err != nil {
		panic(err)
	}
	return k
}

type config struct {
	docID        string
	kinds        *shape.Kinds
	allowed      []string
	historyLimit int
	reducers     map[string]*reducer.Dispatcher
	evaluator    *expr.Evaluator
	invalidator  command.Invalidator

	saver     Saver
	saveDelay time.Duration
	saveRetry fderrors.RetryConfig

	logger  *slog.Logger
	emitter event.Emitter
	metrics observability.MetricsRecorder
	spans   observability.SpanManager
}

func defaultConfig() config {
	return config{
		allowed:      availableTypes,
		historyLimit: command.DefaultHistoryLimit,
		reducers:     make(map[string]*reducer.Dispatcher),
		saveDelay:    DefaultAutosaveDelay,
		saveRetry:    fderrors.SaveRetry,
		emitter:      event.Discard,
		metrics:      observability.NoopMetrics{},
		spans:        observability.NoopSpanManager{},
	}
}

// Option configures an Agent.
type Option func(*config)

// WithDocID sets the id of a new document. Edit and Run keep the stored id.
func WithDocID(id string) Option {
	return func(c *config) { c.docID = id }
}

// WithKinds sets the shape kind table. Default: Kinds().
func WithKinds(k *shape.Kinds) Option {
	return func(c *config) { c.kinds = k }
}

// WithAllowedTypes replaces the allow-list used by Want.
func WithAllowedTypes(types ...string) Option {
	return func(c *config) { c.allowed = slices.Clone(types) }
}

// WithHistoryLimit bounds the undo stack.
func WithHistoryLimit(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.historyLimit = n
		}
	}
}

// WithReducers routes Dispatch for shapeType to d. Shapes of other types
// use reducer.Generic, HTTP nodes use httpnode.Reducers.
func WithReducers(shapeType string, d *reducer.Dispatcher) Option {
	return func(c *config) { c.reducers[shapeType] = d }
}

// WithEvaluator sets the evaluator for visibility rules.
func WithEvaluator(e *expr.Evaluator) Option {
	return func(c *config) { c.evaluator = e }
}

// WithInvalidator is told whenever a form command changed the shape set.
func WithInvalidator(inv command.Invalidator) Option {
	return func(c *config) { c.invalidator = inv }
}

// WithAutoSave persists the document through s after every change,
// debounced by delay. A delay of zero uses DefaultAutosaveDelay.
func WithAutoSave(s Saver, delay time.Duration) Option {
	return func(c *config) {
		c.saver = s
		if delay > 0 {
			c.saveDelay = delay
		}
	}
}

// WithSaveRetry sets the retry policy for autosave. Default: errors.SaveRetry.
func WithSaveRetry(r fderrors.RetryConfig) Option {
	return func(c *config) { c.saveRetry = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithEmitter publishes document events to e.
func WithEmitter(e event.Emitter) Option {
	return func(c *config) {
		if e != nil {
			c.emitter = e
		}
	}
}

// WithMetrics records command, dispatch and save metrics.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(c *config) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithSpanManager traces commands and saves.
func WithSpanManager(s observability.SpanManager) Option {
	return func(c *config) {
		if s != nil {
			c.spans = s
		}
	}
}
