package flowdoc

import (
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/randalmurphal/flowdoc/pkg/flowdoc/ident"
	"github.com/randalmurphal/flowdoc/pkg/flowdoc/shape"
)

// DefaultVersion is written into new documents.
const DefaultVersion = "1.0.0"

// Graph is the persisted flow document: an ordered set of pages plus
// free-form settings. Unknown top-level fields survive a load/save cycle.
type Graph struct {
	ID       string
	Version  string
	Settings map[string]any

	mu    sync.RWMutex
	pages []*Page
	extra map[string]json.RawMessage
	cfg   graphConfig
}

// NewGraph returns an empty graph.
func NewGraph(opts ...Option) *Graph {
	cfg := graphConfig{kinds: defaultKinds}
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.kinds.Freeze()
	id := cfg.id
	if id == "" {
		id = ident.New()
	}
	return &Graph{
		ID:       id,
		Version:  DefaultVersion,
		Settings: make(map[string]any),
		cfg:      cfg,
	}
}

// Load builds a graph from serialized JSON.
func Load(data []byte, opts ...Option) (*Graph, error) {
	g := NewGraph(opts...)
	if err := g.Deserialize(data); err != nil {
		return nil, err
	}
	return g, nil
}

// Kinds returns the shape kind table shared by all pages.
func (g *Graph) Kinds() *shape.Kinds {
	return g.cfg.kinds
}

// AddPage appends a new empty page.
func (g *Graph) AddPage(name string) *Page {
	p := newPage("", g.cfg)
	p.Name = name
	g.mu.Lock()
	g.pages = append(g.pages, p)
	g.mu.Unlock()
	return p
}

// InsertPage adds an existing page at position at (negative appends).
func (g *Graph) InsertPage(p *Page, at int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if slices.ContainsFunc(g.pages, func(q *Page) bool { return q.ID == p.ID }) {
		return fmt.Errorf("insert page %s: duplicate id", p.ID)
	}
	if at < 0 || at > len(g.pages) {
		at = len(g.pages)
	}
	g.pages = slices.Insert(g.pages, at, p)
	return nil
}

// NewPage returns a detached page configured like this graph's pages.
func (g *Graph) NewPage(id string) *Page {
	return newPage(id, g.cfg)
}

// RemovePage drops the page with id.
func (g *Graph) RemovePage(id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	i := slices.IndexFunc(g.pages, func(p *Page) bool { return p.ID == id })
	if i < 0 {
		return fmt.Errorf("remove page %s: %w", id, ErrPageNotFound)
	}
	g.pages = slices.Delete(g.pages, i, i+1)
	return nil
}

// Page returns the page with id, or nil.
func (g *Graph) Page(id string) *Page {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, p := range g.pages {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// Pages returns the pages in order.
func (g *Graph) Pages() []*Page {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return slices.Clone(g.pages)
}

// FirstPage returns the first page, creating one when the graph is empty.
func (g *Graph) FirstPage() *Page {
	g.mu.RLock()
	if len(g.pages) > 0 {
		p := g.pages[0]
		g.mu.RUnlock()
		return p
	}
	g.mu.RUnlock()
	return g.AddPage("")
}

// Shape finds a shape on any page.
func (g *Graph) Shape(id string) (*shape.Shape, *Page) {
	for _, p := range g.Pages() {
		if s := p.ShapeByID(id); s != nil {
			return s, p
		}
	}
	return nil, nil
}

// ShapeCount returns the number of shapes across all pages.
func (g *Graph) ShapeCount() int {
	n := 0
	for _, p := range g.Pages() {
		n += p.Len()
	}
	return n
}

var graphKeys = []string{"id", "version", "pages", "settings"}

type wireGraph struct {
	ID       string            `json:"id"`
	Version  looseString       `json:"version"`
	Pages    []json.RawMessage `json:"pages"`
	Settings map[string]any    `json:"settings,omitempty"`
}

// MarshalJSON encodes the graph.
func (g *Graph) MarshalJSON() ([]byte, error) {
	g.mu.RLock()
	pages := slices.Clone(g.pages)
	w := struct {
		ID       string         `json:"id"`
		Version  string         `json:"version"`
		Pages    []*Page        `json:"pages"`
		Settings map[string]any `json:"settings,omitempty"`
	}{ID: g.ID, Version: g.Version, Pages: pages, Settings: g.Settings}
	extra := g.extra
	g.mu.RUnlock()

	if w.Pages == nil {
		w.Pages = []*Page{}
	}
	core, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("graph %s: %w", g.ID, err)
	}
	return appendExtra(core, extra, graphKeys), nil
}

// Serialize returns the document as JSON.
func (g *Graph) Serialize() ([]byte, error) {
	return json.Marshal(g)
}

// Deserialize replaces the graph with data. On error the graph is unchanged.
func (g *Graph) Deserialize(data []byte) error {
	var w wireGraph
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decode graph: %w", err)
	}
	extra, err := splitExtra(data, graphKeys)
	if err != nil {
		return fmt.Errorf("decode graph: %w", err)
	}

	pages := make([]*Page, 0, len(w.Pages))
	for i, raw := range w.Pages {
		p := newPage("", g.cfg)
		if err := p.Deserialize(raw); err != nil {
			return fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, p)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if w.ID != "" {
		g.ID = w.ID
	}
	g.Version = string(w.Version)
	g.Settings = w.Settings
	if g.Settings == nil {
		g.Settings = make(map[string]any)
	}
	g.pages = pages
	g.extra = extra
	return nil
}
