package form

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/randalmurphal/flowdoc/pkg/flowdoc"
	"github.com/randalmurphal/flowdoc/pkg/flowdoc/command"
	"github.com/randalmurphal/flowdoc/pkg/flowdoc/event"
	"github.com/randalmurphal/flowdoc/pkg/flowdoc/expr"
	"github.com/randalmurphal/flowdoc/pkg/flowdoc/httpnode"
	"github.com/randalmurphal/flowdoc/pkg/flowdoc/reducer"
	"github.com/randalmurphal/flowdoc/pkg/flowdoc/shape"
)

// KeyValue is the extra field holding the current value of a named field.
const KeyValue = "value"

// Agent drives one mounted document: it owns the graph, its first page
// and the page's command history.
type Agent struct {
	cfg       config
	container Container
	readOnly  bool
	docID     string
	history   *command.History
	saver     *AutoSaver
	generic   *reducer.Dispatcher

	mu     sync.RWMutex
	graph  *flowdoc.Graph
	page   *flowdoc.Page
	unsub  func()
	focus  *flowdoc.FocusFunc
	closed bool

	generation atomic.Int64
}

func newConfig(opts []Option) config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.kinds == nil {
		cfg.kinds = Kinds()
	}
	if cfg.evaluator == nil {
		cfg.evaluator = expr.New()
	}
	return cfg
}

// New mounts an empty form document on c. The page gets a form root
// sized to the container.
func New(c Container, opts ...Option) (*Agent, error) {
	if err := checkContainer(c); err != nil {
		return nil, err
	}
	cfg := newConfig(opts)
	g := flowdoc.NewGraph(
		flowdoc.WithID(cfg.docID),
		flowdoc.WithKinds(cfg.kinds),
		flowdoc.WithLogger(cfg.logger),
	)
	page := g.AddPage("form")
	if err := addRoot(page, c); err != nil {
		return nil, fmt.Errorf("new: %w", err)
	}
	return mount(c, g, page, false, cfg), nil
}

// Edit mounts a serialized document on c for interactive editing.
func Edit(c Container, serialized []byte, opts ...Option) (*Agent, error) {
	a, err := load(c, serialized, flowdoc.ModeConfiguration, opts)
	if err != nil {
		return nil, fmt.Errorf("edit: %w", err)
	}
	return a, nil
}

func load(c Container, serialized []byte, mode flowdoc.Mode, opts []Option) (*Agent, error) {
	if err := checkContainer(c); err != nil {
		return nil, err
	}
	cfg := newConfig(opts)
	g, err := flowdoc.Load(serialized, flowdoc.WithKinds(cfg.kinds), flowdoc.WithLogger(cfg.logger))
	if err != nil {
		return nil, err
	}
	page := g.FirstPage()
	if page.Len() == 0 {
		if err := addRoot(page, c); err != nil {
			return nil, err
		}
	} else if err := page.ValidateForm(); err != nil {
		return nil, err
	}
	page.Mode = mode

	a := mount(c, g, page, mode.ReadOnly() || mode == flowdoc.ModeDisplay, cfg)
	a.publish(event.New(event.TypeDocumentLoaded, "form", g.ID, event.PagePayload{PageID: page.ID}))
	return a, nil
}

func addRoot(page *flowdoc.Page, c Container) error {
	root, err := page.NewShape(shape.TypeForm, 0, 0)
	if err != nil {
		return err
	}
	b := c.Bounds()
	root.Width, root.Height = b.Width, b.Height
	return page.Insert(root, -1)
}

func mount(c Container, g *flowdoc.Graph, page *flowdoc.Page, readOnly bool, cfg config) *Agent {
	a := &Agent{
		cfg:       cfg,
		container: c,
		readOnly:  readOnly,
		docID:     g.ID,
		graph:     g,
		page:      page,
	}
	a.history = command.NewHistory(page,
		command.WithLimit(cfg.historyLimit),
		command.WithDocID(g.ID),
		command.WithEmitter(cfg.emitter),
		command.WithMetrics(cfg.metrics),
		command.WithSpanManager(cfg.spans),
		command.WithLogger(cfg.logger),
	)

	dopts := []reducer.Option{reducer.WithLogger(cfg.logger), reducer.WithMetrics(cfg.metrics)}
	a.generic = reducer.Generic(dopts...)
	a.cfg.reducers = maps.Clone(cfg.reducers)
	if _, ok := a.cfg.reducers[httpnode.TypeHTTP]; !ok {
		a.cfg.reducers[httpnode.TypeHTTP] = httpnode.Reducers(dopts...)
	}

	if cfg.saver != nil {
		a.saver = NewAutoSaver(g.ID, cfg.saver, g.Serialize, AutoSaveConfig{
			Delay:   cfg.saveDelay,
			Retry:   cfg.saveRetry,
			Logger:  cfg.logger,
			Emitter: cfg.emitter,
			Metrics: cfg.metrics,
			Spans:   cfg.spans,
		})
	}
	a.unsub = page.Subscribe(a.changed)
	a.focus = flowdoc.NewFocusFunc(a.focusChanged)
	page.AddFocusListener(a.focus)
	return a
}

var changeEvents = map[flowdoc.ChangeKind]string{
	flowdoc.ShapeAdded:   event.TypeShapeAdded,
	flowdoc.ShapeRemoved: event.TypeShapeRemoved,
	flowdoc.ShapeUpdated: event.TypeShapeUpdated,
	flowdoc.PageReset:    event.TypePageUpdated,
}

func (a *Agent) changed(c flowdoc.Change) {
	if c.Shape != nil {
		a.publish(event.New(changeEvents[c.Kind], "form", a.docID, event.ShapePayload{
			PageID:    c.PageID,
			ShapeID:   c.Shape.ID,
			ShapeType: c.Shape.Type,
		}))
	} else {
		a.publish(event.New(changeEvents[c.Kind], "form", a.docID, event.PagePayload{PageID: c.PageID}))
	}
	if a.saver != nil {
		a.saver.Touch()
	}
}

func (a *Agent) focusChanged(p *flowdoc.Page, focused []*shape.Shape) {
	ids := make([]string, len(focused))
	for i, s := range focused {
		ids[i] = s.ID
	}
	a.publish(event.New(event.TypeFocusChanged, "form", a.docID, event.FocusPayload{PageID: p.ID, ShapeIDs: ids}))
}

func (a *Agent) publish(evt event.Event) {
	if err := a.cfg.emitter.Publish(context.Background(), evt); err != nil && a.cfg.logger != nil {
		a.cfg.logger.Warn("publish failed", "event", evt.Type(), "error", err)
	}
}

func (a *Agent) invalidator() command.Invalidator {
	return command.InvalidatorFunc(func() {
		a.generation.Add(1)
		if a.cfg.invalidator != nil {
			a.cfg.invalidator.Invalidate()
		}
	})
}

func (a *Agent) live() (*flowdoc.Page, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return nil, ErrClosed
	}
	return a.page, nil
}

func (a *Agent) editable() (*flowdoc.Page, error) {
	p, err := a.live()
	if err != nil {
		return nil, err
	}
	if a.readOnly || p.Mode.ReadOnly() {
		return nil, ErrReadOnly
	}
	return p, nil
}

// ID returns the document id.
func (a *Agent) ID() string { return a.docID }

// Container returns the surface the document is mounted on.
func (a *Agent) Container() Container { return a.container }

// Graph returns the document, nil after Close.
func (a *Agent) Graph() *flowdoc.Graph {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.graph
}

// Page returns the edited page, nil after Close.
func (a *Agent) Page() *flowdoc.Page {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.page
}

// History returns the command history of the page.
func (a *Agent) History() *command.History { return a.history }

// AutoSaver returns the autosaver, nil unless WithAutoSave was given.
func (a *Agent) AutoSaver() *AutoSaver { return a.saver }

// ReadOnly reports whether structural edits are refused.
func (a *Agent) ReadOnly() bool { return a.readOnly }

// Generation counts form invalidations caused by commands.
func (a *Agent) Generation() int64 { return a.generation.Load() }

// Serialize commits pending text edits of focused shapes, then encodes
// the document.
func (a *Agent) Serialize() ([]byte, error) {
	p, err := a.live()
	if err != nil {
		return nil, err
	}
	p.Unselect()
	a.mu.RLock()
	g := a.graph
	a.mu.RUnlock()
	if g == nil {
		return nil, ErrClosed
	}
	return g.Serialize()
}

// Select focuses the given shapes.
func (a *Agent) Select(ids ...string) error {
	p, err := a.live()
	if err != nil {
		return err
	}
	return p.Select(ids...)
}

// AddFocusListener registers l for focus changes.
func (a *Agent) AddFocusListener(l flowdoc.FocusListener) {
	if p, err := a.live(); err == nil {
		p.AddFocusListener(l)
	}
}

// RemoveFocusListener removes exactly the registration of l.
func (a *Agent) RemoveFocusListener(l flowdoc.FocusListener) bool {
	p, err := a.live()
	if err != nil {
		return false
	}
	return p.RemoveFocusListener(l)
}

// Want creates a shape of an allow-listed type and adds it through the
// command engine. props may set x, y, width, height, index, text,
// container and deletable; other keys are stored as extra fields. The
// shape goes into the form root unless props name a container.
func (a *Agent) Want(ctx context.Context, typ string, props map[string]any) (*shape.Shape, error) {
	if !slices.Contains(a.cfg.allowed, typ) {
		return nil, fmt.Errorf("want %q: %w", typ, ErrShapeNotAllowed)
	}
	page, err := a.editable()
	if err != nil {
		return nil, err
	}

	id, _ := props["id"].(string)
	s, err := page.NewShape(typ, 0, 0, id)
	if err != nil {
		return nil, fmt.Errorf("want %s: %w", typ, err)
	}
	if root := page.Form(); root != nil {
		s.Container = root.ID
	}
	if err := applyProps(s, props); err != nil {
		return nil, fmt.Errorf("want %s: %w", typ, err)
	}
	if _, ok := props["index"]; !ok {
		s.Index = len(page.Children(s.Container))
	}

	if err := a.history.Do(ctx, command.NewFormAdd(command.NewAdd(s), a.invalidator())); err != nil {
		return nil, fmt.Errorf("want %s: %w", typ, err)
	}
	return page.ShapeByID(s.ID), nil
}

func applyProps(s *shape.Shape, props map[string]any) error {
	for _, k := range slices.Sorted(maps.Keys(props)) {
		v := props[k]
		switch k {
		case "id", "type":
		case "x", "y", "width", "height", "index":
			f, ok := number(v)
			if !ok {
				return fmt.Errorf("%w: %s must be a number, got %T", ErrInvalidProperty, k, v)
			}
			switch k {
			case "x":
				s.X = f
			case "y":
				s.Y = f
			case "width":
				s.Width = f
			case "height":
				s.Height = f
			case "index":
				s.Index = int(f)
			}
		case "text", "container":
			str, ok := v.(string)
			if !ok {
				return fmt.Errorf("%w: %s must be a string, got %T", ErrInvalidProperty, k, v)
			}
			if k == "text" {
				s.Text = str
			} else {
				s.Container = str
			}
		case "deletable":
			b, ok := v.(bool)
			if !ok {
				return fmt.Errorf("%w: deletable must be a bool, got %T", ErrInvalidProperty, v)
			}
			s.Deletable = b
		default:
			if err := s.Set(k, v); err != nil {
				return err
			}
		}
	}
	return nil
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// Clear deletes every deletable shape as one undoable command. The form
// root is fixed and stays.
func (a *Agent) Clear(ctx context.Context) error {
	page, err := a.editable()
	if err != nil {
		return err
	}
	shapes := page.Shapes()
	if len(shapes) == 0 {
		return nil
	}
	ids := make([]string, len(shapes))
	for i, s := range shapes {
		ids[i] = s.ID
	}
	return a.history.Do(ctx, command.NewFormDelete(command.NewDelete(ids...), a.invalidator()))
}

// Delete removes shapes and their contents as one undoable command.
func (a *Agent) Delete(ctx context.Context, ids ...string) error {
	if _, err := a.editable(); err != nil {
		return err
	}
	return a.history.Do(ctx, command.NewFormDelete(command.NewDelete(ids...), a.invalidator()))
}

// Dispatch reduces the parameter tree stored under key on a shape and
// records the result as an undoable config change. An empty key means
// inputParams. It reports whether the tree changed.
func (a *Agent) Dispatch(ctx context.Context, shapeID, key string, act reducer.Action) (bool, error) {
	page, err := a.editable()
	if err != nil {
		return false, err
	}
	s := page.ShapeByID(shapeID)
	if s == nil {
		return false, fmt.Errorf("dispatch %s: %w", shapeID, flowdoc.ErrShapeNotFound)
	}
	if key == "" {
		key = shape.KeyInputParams
	}

	next, changed, err := reducer.ApplyToShape(ctx, a.dispatcher(s.Type), s, key, act)
	if err != nil || !changed {
		return false, err
	}
	cmd, err := command.NewConfigChange(s, next)
	if err != nil {
		return false, err
	}
	if err := a.history.Do(ctx, cmd); err != nil {
		return false, err
	}
	return true, nil
}

func (a *Agent) dispatcher(typ string) *reducer.Dispatcher {
	if d, ok := a.cfg.reducers[typ]; ok {
		return d
	}
	return a.generic
}

// Undo reverts the last command.
func (a *Agent) Undo(ctx context.Context) error {
	if _, err := a.editable(); err != nil {
		return err
	}
	return a.history.Undo(ctx)
}

// Redo reapplies the last undone command.
func (a *Agent) Redo(ctx context.Context) error {
	if _, err := a.editable(); err != nil {
		return err
	}
	return a.history.Redo(ctx)
}

// Data returns the values of all named fields, keyed by name.
func (a *Agent) Data() map[string]any {
	data := make(map[string]any)
	p, err := a.live()
	if err != nil {
		return data
	}
	for _, s := range p.Shapes() {
		name := fieldName(s)
		if name == "" {
			continue
		}
		var v any
		if _, err := s.Get(KeyValue, &v); err != nil {
			continue
		}
		data[name] = v
	}
	return data
}

func fieldName(s *shape.Shape) string {
	var name string
	if _, err := s.Get(shape.KeyName, &name); err != nil {
		return ""
	}
	return name
}

// Flush writes pending autosave changes now.
func (a *Agent) Flush(ctx context.Context) error {
	if a.saver == nil {
		return nil
	}
	return a.saver.Flush(ctx)
}

// Close commits pending drafts, stops autosave after a final flush,
// detaches from the page and drops the graph. It is safe to call twice.
func (a *Agent) Close(ctx context.Context) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	page, unsub, focus := a.page, a.unsub, a.focus
	a.graph, a.page, a.unsub, a.focus = nil, nil, nil, nil
	a.mu.Unlock()

	page.Unselect()
	var err error
	if a.saver != nil {
		err = a.saver.Close(ctx)
	}
	unsub()
	page.RemoveFocusListener(focus)
	a.history.Reset()
	return err
}
