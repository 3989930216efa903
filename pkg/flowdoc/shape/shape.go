// Package shape defines the serialized node record of a flow document and
// the table of shape kinds that can be instantiated by type tag.
package shape

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	"github.com/randalmurphal/flowdoc/pkg/flowdoc/geom"
	"github.com/randalmurphal/flowdoc/pkg/flowdoc/params"
)

// Well-known keys inside Extra.
const (
	KeyInputParams  = "inputParams"
	KeyOutputParams = "outputParams"
	KeyVisibleWhen  = "visibleWhen"
	KeyName         = "name"
)

// Shape is one node of a page. Container holds the id of the parent shape
// or of the page itself; shapes never point at each other directly.
type Shape struct {
	ID        string
	Type      string
	Container string
	X, Y      float64
	Width     float64
	Height    float64
	// Index is the z-order among siblings.
	Index     int
	Deletable bool
	Text      string

	// Extra holds every type-specific field verbatim.
	Extra map[string]json.RawMessage

	draft *string
}

// Bounds returns the shape geometry.
func (s *Shape) Bounds() geom.Rect {
	return geom.Rect{X: s.X, Y: s.Y, Width: s.Width, Height: s.Height}
}

// Clone returns a deep copy. A pending draft is carried over.
func (s *Shape) Clone() *Shape {
	cp := *s
	if s.Extra != nil {
		cp.Extra = make(map[string]json.RawMessage, len(s.Extra))
		for k, v := range s.Extra {
			cp.Extra[k] = slices.Clone(v)
		}
	}
	if s.draft != nil {
		d := *s.draft
		cp.draft = &d
	}
	return &cp
}

// SetDraft records an uncommitted text edit.
func (s *Shape) SetDraft(text string) {
	s.draft = &text
}

// Draft returns the pending text edit, if any.
func (s *Shape) Draft() (string, bool) {
	if s.draft == nil {
		return "", false
	}
	return *s.draft, true
}

// CommitDraft moves a pending edit into Text. It reports whether there was one.
func (s *Shape) CommitDraft() bool {
	if s.draft == nil {
		return false
	}
	s.Text = *s.draft
	s.draft = nil
	return true
}

// Get decodes the Extra field key into dst. It reports false when absent.
func (s *Shape) Get(key string, dst any) (bool, error) {
	raw, ok := s.Extra[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return true, fmt.Errorf("shape %s field %s: %w", s.ID, key, err)
	}
	return true, nil
}

// Set encodes value into the Extra field key.
func (s *Shape) Set(key string, value any) error {
	if isCoreKey(key) {
		return fmt.Errorf("shape %s: %q is not an extra field", s.ID, key)
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("shape %s field %s: %w", s.ID, key, err)
	}
	if s.Extra == nil {
		s.Extra = make(map[string]json.RawMessage)
	}
	s.Extra[key] = raw
	return nil
}

// Params returns the parameter tree stored under key, nil if absent.
func (s *Shape) Params(key string) (params.Tree, error) {
	raw, ok := s.Extra[key]
	if !ok {
		return nil, nil
	}
	t, err := params.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("shape %s %s: %w", s.ID, key, err)
	}
	return t, nil
}

// WithParams returns a copy of s carrying tree under key. s is untouched.
func (s *Shape) WithParams(key string, tree params.Tree) (*Shape, error) {
	raw, err := json.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("shape %s %s: %w", s.ID, key, err)
	}
	cp := *s
	cp.Extra = maps.Clone(s.Extra)
	if cp.Extra == nil {
		cp.Extra = make(map[string]json.RawMessage, 1)
	}
	cp.Extra[key] = raw
	return &cp, nil
}

// VisibleWhen returns the visibility expression, empty when always visible.
func (s *Shape) VisibleWhen() string {
	var expr string
	if _, err := s.Get(KeyVisibleWhen, &expr); err != nil {
		return ""
	}
	return expr
}

var coreKeys = []string{"id", "type", "container", "x", "y", "width", "height", "index", "deletable", "text"}

func isCoreKey(k string) bool {
	return slices.Contains(coreKeys, k)
}

type wireShape struct {
	ID        string  `json:"id"`
	Type      string  `json:"type"`
	Container string  `json:"container"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
	Index     int     `json:"index"`
	Deletable *bool   `json:"deletable,omitempty"`
	Text      string  `json:"text,omitempty"`
}

// MarshalJSON writes the core fields followed by Extra in key order.
func (s *Shape) MarshalJSON() ([]byte, error) {
	w := wireShape{
		ID: s.ID, Type: s.Type, Container: s.Container,
		X: s.X, Y: s.Y, Width: s.Width, Height: s.Height,
		Index: s.Index, Text: s.Text,
	}
	deletable := s.Deletable
	w.Deletable = &deletable

	core, err := json.Marshal(w)
	if err != nil {
		return nil, err
	}
	if len(s.Extra) == 0 {
		return core, nil
	}

	var buf bytes.Buffer
	buf.Write(core[:len(core)-1])
	for _, k := range slices.Sorted(maps.Keys(s.Extra)) {
		if isCoreKey(k) {
			continue
		}
		key, _ := json.Marshal(k)
		val := s.Extra[k]
		if len(val) == 0 {
			val = json.RawMessage("null")
		}
		buf.WriteByte(',')
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads core fields and keeps the rest in Extra.
// deletable defaults to true when absent.
func (s *Shape) UnmarshalJSON(data []byte) error {
	var w wireShape
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for _, k := range coreKeys {
		delete(all, k)
	}

	*s = Shape{
		ID: w.ID, Type: w.Type, Container: w.Container,
		X: w.X, Y: w.Y, Width: w.Width, Height: w.Height,
		Index: w.Index, Text: w.Text, Deletable: true,
	}
	if w.Deletable != nil {
		s.Deletable = *w.Deletable
	}
	if len(all) > 0 {
		s.Extra = all
	}
	return nil
}
