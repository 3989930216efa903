package flowdoc

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"

	"github.com/randalmurphal/flowdoc/pkg/flowdoc/ident"
	"github.com/randalmurphal/flowdoc/pkg/flowdoc/observability"
	"github.com/randalmurphal/flowdoc/pkg/flowdoc/shape"
)

// Mode is the interaction mode of a page.
type Mode string

// Page modes.
const (
	ModeConfiguration Mode = "configuration"
	ModeDisplay       Mode = "display"
	ModeRuntime       Mode = "runtime"
	ModeHistory       Mode = "history"
)

// ReadOnly reports whether structural edits are refused in this mode.
func (m Mode) ReadOnly() bool {
	return m == ModeRuntime || m == ModeHistory
}

// ChangeKind classifies a page change notification.
type ChangeKind int

const (
	ShapeAdded ChangeKind = iota
	ShapeRemoved
	ShapeUpdated
	PageReset
)

func (k ChangeKind) String() string {
	switch k {
	case ShapeAdded:
		return "shape_added"
	case ShapeRemoved:
		return "shape_removed"
	case ShapeUpdated:
		return "shape_updated"
	case PageReset:
		return "page_reset"
	default:
		return "unknown"
	}
}

// Change is delivered to page subscribers. Shape is nil for PageReset.
type Change struct {
	Kind   ChangeKind
	PageID string
	Shape  *shape.Shape
}

// Page owns the shapes of one page. Shapes are kept in page order with an
// id index; containment is expressed through each shape's Container id.
//
// Page is safe for concurrent use. Metadata fields (Name, Mode, Scale,
// ScrollX, ScrollY) are plain fields and belong to the page owner.
type Page struct {
	ID      string
	Name    string
	Mode    Mode
	Scale   float64
	ScrollX float64
	ScrollY float64

	mu      sync.RWMutex
	shapes  []*shape.Shape
	byID    map[string]*shape.Shape
	focused []string
	extra   map[string]json.RawMessage

	kinds  *shape.Kinds
	logger *slog.Logger

	lmu     sync.Mutex
	subs    map[int]func(Change)
	nextSub int
	focus   []FocusListener
}

// NewPage returns an empty page. An empty id gets a fresh one.
func NewPage(id string, opts ...Option) *Page {
	cfg := graphConfig{kinds: defaultKinds}
	for _, opt := range opts {
		opt(&cfg)
	}
	return newPage(id, cfg)
}

func newPage(id string, cfg graphConfig) *Page {
	if id == "" {
		id = ident.New()
	}
	cfg.kinds.Freeze()
	return &Page{
		ID:     id,
		Mode:   ModeConfiguration,
		Scale:  1,
		byID:   make(map[string]*shape.Shape),
		kinds:  cfg.kinds,
		logger: cfg.logger,
		subs:   make(map[int]func(Change)),
	}
}

// Kinds returns the shape kind table of this page.
func (p *Page) Kinds() *shape.Kinds {
	return p.kinds
}

// NewShape instantiates a shape of typ at the page root without inserting it.
// An optional id overrides the generated one.
func (p *Page) NewShape(typ string, x, y float64, id ...string) (*shape.Shape, error) {
	kind, ok := p.kinds.Get(typ)
	if !ok {
		return nil, &UnknownTypeError{Type: typ}
	}
	var sid string
	if len(id) > 0 {
		sid = id[0]
	}
	s, err := kind.New(sid, x, y)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", typ, err)
	}
	s.Container = p.ID
	s.Index = len(p.Children(p.ID))
	return s, nil
}

// CreateShape instantiates a shape of typ and appends it to the page.
func (p *Page) CreateShape(typ string, x, y float64, id ...string) (*shape.Shape, error) {
	s, err := p.NewShape(typ, x, y, id...)
	if err != nil {
		return nil, err
	}
	if err := p.Insert(s, -1); err != nil {
		return nil, err
	}
	return s, nil
}

// Insert adds s at position at in page order; a negative or out of range
// position appends. An empty Container is set to the page id.
func (p *Page) Insert(s *shape.Shape, at int) error {
	if s == nil || !ident.Valid(s.ID) {
		return fmt.Errorf("insert: %w: invalid shape id", ErrInvalidContainer)
	}
	if !p.kinds.Has(s.Type) {
		return &UnknownTypeError{Type: s.Type, ShapeID: s.ID}
	}

	p.mu.Lock()
	if _, dup := p.byID[s.ID]; dup {
		p.mu.Unlock()
		return fmt.Errorf("insert %s: %w", s.ID, ErrDuplicateShape)
	}
	if s.Container == "" {
		s.Container = p.ID
	}
	if err := p.checkChainLocked(s.ID, s.Container); err != nil {
		p.mu.Unlock()
		return err
	}
	if at < 0 || at > len(p.shapes) {
		at = len(p.shapes)
	}
	p.shapes = slices.Insert(p.shapes, at, s)
	p.byID[s.ID] = s
	p.mu.Unlock()

	observability.LogShape(p.logger, "added", p.ID, s.ID, s.Type)
	p.notify(Change{Kind: ShapeAdded, PageID: p.ID, Shape: s})
	return nil
}

// Remove takes the shape with id off the page and returns it with its
// former position in page order. Children are left in place; use the
// command engine to remove subtrees.
func (p *Page) Remove(id string) (*shape.Shape, int, error) {
	p.mu.Lock()
	s, ok := p.byID[id]
	if !ok {
		p.mu.Unlock()
		return nil, -1, fmt.Errorf("remove %s: %w", id, ErrShapeNotFound)
	}
	pos := slices.Index(p.shapes, s)
	p.shapes = slices.Delete(p.shapes, pos, pos+1)
	delete(p.byID, id)
	p.focused = slices.DeleteFunc(p.focused, func(f string) bool { return f == id })
	p.mu.Unlock()

	observability.LogShape(p.logger, "removed", p.ID, s.ID, s.Type)
	p.notify(Change{Kind: ShapeRemoved, PageID: p.ID, Shape: s})
	return s, pos, nil
}

// Replace swaps the shape carrying s.ID for s, keeping its page position.
func (p *Page) Replace(s *shape.Shape) error {
	if s == nil {
		return fmt.Errorf("replace: %w", ErrShapeNotFound)
	}
	if !p.kinds.Has(s.Type) {
		return &UnknownTypeError{Type: s.Type, ShapeID: s.ID}
	}

	p.mu.Lock()
	old, ok := p.byID[s.ID]
	if !ok {
		p.mu.Unlock()
		return fmt.Errorf("replace %s: %w", s.ID, ErrShapeNotFound)
	}
	if s.Container == "" {
		s.Container = p.ID
	}
	if s.Container != old.Container {
		if err := p.checkChainLocked(s.ID, s.Container); err != nil {
			p.mu.Unlock()
			return err
		}
	}
	p.shapes[slices.Index(p.shapes, old)] = s
	p.byID[s.ID] = s
	p.mu.Unlock()

	observability.LogShape(p.logger, "updated", p.ID, s.ID, s.Type)
	p.notify(Change{Kind: ShapeUpdated, PageID: p.ID, Shape: s})
	return nil
}

// checkChainLocked walks from container towards the page root. The walk is
// bounded by the shape count, so a loop not passing through id still ends.
// The direct container must be of a container kind.
func (p *Page) checkChainLocked(id, container string) error {
	cur := container
	for steps := 0; ; steps++ {
		if cur == "" || cur == p.ID {
			return nil
		}
		if cur == id || steps > len(p.byID) {
			return &ContainmentError{ShapeID: id, Container: container, Err: ErrContainmentCycle}
		}
		next, ok := p.byID[cur]
		if !ok {
			return &ContainmentError{ShapeID: id, Container: container, Err: ErrInvalidContainer}
		}
		if steps == 0 {
			if k, ok := p.kinds.Get(next.Type); ok && !k.Container {
				return &ContainmentError{ShapeID: id, Container: container, Err: ErrNotContainer}
			}
		}
		cur = next.Container
	}
}

// ShapeByID returns the shape with id, or nil.
func (p *Page) ShapeByID(id string) *shape.Shape {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.byID[id]
}

// Shapes returns the page's shapes in page order, keeping only those that
// satisfy every predicate.
func (p *Page) Shapes(preds ...func(*shape.Shape) bool) []*shape.Shape {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]*shape.Shape, 0, len(p.shapes))
outer:
	for _, s := range p.shapes {
		for _, pred := range preds {
			if !pred(s) {
				continue outer
			}
		}
		out = append(out, s)
	}
	return out
}

// Len returns the number of shapes on the page.
func (p *Page) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.shapes)
}

// Position returns the page-order position of id, or -1.
func (p *Page) Position(id string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.IndexFunc(p.shapes, func(s *shape.Shape) bool { return s.ID == id })
}

// Container resolves the container of s. The bool is true when the
// container is the page itself; the shape is then nil.
func (p *Page) Container(s *shape.Shape) (*shape.Shape, bool) {
	if s.Container == "" || s.Container == p.ID {
		return nil, true
	}
	return p.ShapeByID(s.Container), false
}

// Children returns the direct children of containerID ordered by Index,
// ties broken by page order.
func (p *Page) Children(containerID string) []*shape.Shape {
	root := containerID == p.ID
	kids := p.Shapes(func(s *shape.Shape) bool {
		return s.Container == containerID || (root && s.Container == "")
	})
	sort.SliceStable(kids, func(i, j int) bool { return kids[i].Index < kids[j].Index })
	return kids
}

// Descendants returns every shape below id, parents before children.
func (p *Page) Descendants(id string) []*shape.Shape {
	all := p.Shapes()
	byContainer := make(map[string][]*shape.Shape, len(all))
	for _, s := range all {
		c := s.Container
		if c == "" {
			c = p.ID
		}
		byContainer[c] = append(byContainer[c], s)
	}

	var out []*shape.Shape
	seen := map[string]bool{id: true}
	var visit func(string)
	visit = func(parent string) {
		kids := byContainer[parent]
		sort.SliceStable(kids, func(i, j int) bool { return kids[i].Index < kids[j].Index })
		for _, k := range kids {
			if seen[k.ID] {
				continue
			}
			seen[k.ID] = true
			out = append(out, k)
			visit(k.ID)
		}
	}
	visit(id)
	return out
}

// Clear removes every shape, notifying ShapeRemoved for each.
// This is the raw operation; editors should clear through a command.
func (p *Page) Clear() {
	for _, s := range slices.Backward(p.Shapes()) {
		_, _, _ = p.Remove(s.ID)
	}
}

// Reset drops all shapes and focus and restores the default view without
// per-shape notifications. Subscribers receive a single PageReset.
func (p *Page) Reset() {
	p.mu.Lock()
	p.shapes = nil
	p.byID = make(map[string]*shape.Shape)
	p.focused = nil
	p.Scale, p.ScrollX, p.ScrollY = 1, 0, 0
	p.mu.Unlock()
	p.notify(Change{Kind: PageReset, PageID: p.ID})
}

// ValidateContainment checks that every container resolves and that every
// chain reaches the page within len(shapes) steps.
func (p *Page) ValidateContainment() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, s := range p.shapes {
		if err := p.checkChainLocked(s.ID, s.Container); err != nil {
			return err
		}
	}
	return nil
}

// ValidateForm checks the dynamic-form rule: exactly one root "form" shape,
// every other shape descending from it.
func (p *Page) ValidateForm() error {
	if err := p.ValidateContainment(); err != nil {
		return err
	}
	roots := p.Shapes(func(s *shape.Shape) bool { return s.Type == shape.TypeForm })
	if len(roots) != 1 {
		return fmt.Errorf("%w: want 1 form shape, found %d", ErrInvalidForm, len(roots))
	}
	root := roots[0]
	if _, atPage := p.Container(root); !atPage {
		return fmt.Errorf("%w: form %s is not at the page root", ErrInvalidForm, root.ID)
	}

	inForm := map[string]bool{root.ID: true}
	for _, d := range p.Descendants(root.ID) {
		inForm[d.ID] = true
	}
	for _, s := range p.Shapes() {
		if !inForm[s.ID] {
			return fmt.Errorf("%w: shape %s is outside form %s", ErrInvalidForm, s.ID, root.ID)
		}
	}
	return nil
}

// Form returns the root form shape, or nil.
func (p *Page) Form() *shape.Shape {
	for _, s := range p.Children(p.ID) {
		if s.Type == shape.TypeForm {
			return s
		}
	}
	return nil
}

// Subscribe registers fn for shape index changes and returns a func that
// removes it. fn runs synchronously after the change is applied.
func (p *Page) Subscribe(fn func(Change)) (cancel func()) {
	p.lmu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = fn
	p.lmu.Unlock()

	return func() {
		p.lmu.Lock()
		delete(p.subs, id)
		p.lmu.Unlock()
	}
}

func (p *Page) notify(c Change) {
	p.lmu.Lock()
	ids := make([]int, 0, len(p.subs))
	for id := range p.subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]func(Change), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, p.subs[id])
	}
	p.lmu.Unlock()

	for _, fn := range fns {
		fn(c)
	}
}
