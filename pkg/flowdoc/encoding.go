package flowdoc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"

	"github.com/randalmurphal/flowdoc/pkg/flowdoc/shape"
)

// appendExtra splices extra fields into the JSON object core, skipping keys
// that core already defines.
func appendExtra(core []byte, extra map[string]json.RawMessage, known []string) []byte {
	if len(extra) == 0 {
		return core
	}
	var buf bytes.Buffer
	buf.Write(core[:len(core)-1])
	for _, k := range slices.Sorted(maps.Keys(extra)) {
		if slices.Contains(known, k) {
			continue
		}
		key, _ := json.Marshal(k)
		val := extra[k]
		if len(val) == 0 {
			val = json.RawMessage("null")
		}
		buf.WriteByte(',')
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes()
}

// splitExtra returns the fields of obj not listed in known.
func splitExtra(obj []byte, known []string) (map[string]json.RawMessage, error) {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(obj, &all); err != nil {
		return nil, err
	}
	for _, k := range known {
		delete(all, k)
	}
	if len(all) == 0 {
		return nil, nil
	}
	return all, nil
}

// looseString accepts a JSON string or number.
type looseString string

func (l *looseString) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*l = looseString(s)
		return nil
	}
	if string(b) == "null" {
		*l = ""
		return nil
	}
	if _, err := strconv.ParseFloat(string(b), 64); err != nil {
		return fmt.Errorf("version: %w", err)
	}
	*l = looseString(b)
	return nil
}

var pageKeys = []string{"id", "name", "mode", "scale", "scrollX", "scrollY", "shapes"}

type wirePage struct {
	ID      string         `json:"id"`
	Name    string         `json:"name,omitempty"`
	Mode    Mode           `json:"mode,omitempty"`
	Scale   float64        `json:"scale,omitempty"`
	ScrollX float64        `json:"scrollX"`
	ScrollY float64        `json:"scrollY"`
	Shapes  []*shape.Shape `json:"shapes"`
}

// MarshalJSON encodes the page with its shapes in page order.
func (p *Page) MarshalJSON() ([]byte, error) {
	p.mu.RLock()
	w := wirePage{
		ID: p.ID, Name: p.Name, Mode: p.Mode,
		Scale: p.Scale, ScrollX: p.ScrollX, ScrollY: p.ScrollY,
		Shapes: slices.Clone(p.shapes),
	}
	extra := p.extra
	p.mu.RUnlock()

	if w.Shapes == nil {
		w.Shapes = []*shape.Shape{}
	}
	core, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("page %s: %w", p.ID, err)
	}
	return appendExtra(core, extra, pageKeys), nil
}

// Serialize returns the page as JSON.
func (p *Page) Serialize() ([]byte, error) {
	return json.Marshal(p)
}

// Deserialize replaces the page contents with data. Shape ids, containers
// and unknown fields are kept as they are. Unknown shape types, duplicate
// ids and broken containment are rejected and leave the page unchanged.
func (p *Page) Deserialize(data []byte) error {
	var w wirePage
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decode page: %w", err)
	}
	extra, err := splitExtra(data, pageKeys)
	if err != nil {
		return fmt.Errorf("decode page: %w", err)
	}

	id := w.ID
	if id == "" {
		id = p.ID
	}
	byID := make(map[string]*shape.Shape, len(w.Shapes))
	shapes := make([]*shape.Shape, 0, len(w.Shapes))
	for _, s := range w.Shapes {
		if s == nil {
			continue
		}
		if !p.kinds.Has(s.Type) {
			return &UnknownTypeError{Type: s.Type, ShapeID: s.ID}
		}
		if _, dup := byID[s.ID]; dup {
			return fmt.Errorf("page %s shape %s: %w", id, s.ID, ErrDuplicateShape)
		}
		byID[s.ID] = s
		shapes = append(shapes, s)
	}

	staged := &Page{ID: id, byID: byID, shapes: shapes}
	if err := staged.ValidateContainment(); err != nil {
		return err
	}

	p.mu.Lock()
	p.ID = id
	p.Name = w.Name
	if w.Mode != "" {
		p.Mode = w.Mode
	}
	p.Scale = w.Scale
	if p.Scale == 0 {
		p.Scale = 1
	}
	p.ScrollX, p.ScrollY = w.ScrollX, w.ScrollY
	p.shapes = shapes
	p.byID = byID
	p.focused = nil
	p.extra = extra
	p.mu.Unlock()

	p.notify(Change{Kind: PageReset, PageID: p.ID})
	return nil
}
