package params

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"

	"github.com/randalmurphal/flowdoc/pkg/flowdoc/ident"
)

// Type is the declared value type of a Param.
type Type string

// Param value types.
const (
	TypeString  Type = "String"
	TypeInteger Type = "Integer"
	TypeNumber  Type = "Number"
	TypeBoolean Type = "Boolean"
	TypeObject  Type = "Object"
	TypeArray   Type = "Array"
)

// Valid reports whether t is a known type. The empty type is allowed.
func (t Type) Valid() bool {
	switch t {
	case "", TypeString, TypeInteger, TypeNumber, TypeBoolean, TypeObject, TypeArray:
		return true
	}
	return false
}

// From is the provenance of a Param value.
type From string

// Provenance tags.
const (
	FromInput     From = "Input"
	FromExpand    From = "Expand"
	FromReference From = "Reference"
)

// Param is one named, typed configurable value.
//
// Value holds a Tree when From is FromExpand. Otherwise it holds a decoded
// JSON value: string, json.Number, bool, nil, map[string]any or []any.
// Reducers may also store float64 or int.
type Param struct {
	ID    string
	Name  string
	Type  Type
	From  From
	Value any

	// Extra keeps every other field verbatim (referenceNode, description, ...).
	Extra map[string]json.RawMessage

	// absent marks core fields missing from the decoded object so they are
	// not written back while still zero.
	absent field
}

type field uint8

const (
	fieldID field = 1 << iota
	fieldName
	fieldValue
)

// omits reports whether f was absent on decode and is still unset.
func (p *Param) omits(f field, unset bool) bool {
	return p.absent&f != 0 && unset
}

// New returns a Param with a fresh id.
func New(name string, typ Type, from From, value any) *Param {
	return &Param{ID: ident.New(), Name: name, Type: typ, From: from, Value: value}
}

// Group returns an Expand param holding children.
func Group(name string, children ...*Param) *Param {
	return New(name, TypeObject, FromExpand, Tree(children))
}

// With returns a shallow copy of p with fn applied. p itself is untouched.
func (p *Param) With(fn func(*Param)) *Param {
	cp := *p
	fn(&cp)
	return &cp
}

// Children returns the nested tree of an Expand param, or nil.
func (p *Param) Children() Tree {
	if p == nil {
		return nil
	}
	t, _ := p.Value.(Tree)
	return t
}

// Child returns the direct child named name, or nil.
func (p *Param) Child(name string) *Param {
	return p.Children().Named(name)
}

// String returns the value as a string. Non-string scalars are formatted.
func (p *Param) String() string {
	if p == nil {
		return ""
	}
	switch v := p.Value.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case Tree:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Float returns the value as a number when it is numeric or a numeric string.
func (p *Param) Float() (float64, bool) {
	if p == nil {
		return 0, false
	}
	var f float64
	switch v := p.Value.(type) {
	case float64:
		f = v
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case json.Number:
		n, err := v.Float64()
		if err != nil {
			return 0, false
		}
		f = n
	case string:
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false
		}
		f = n
	default:
		return 0, false
	}
	return f, !math.IsNaN(f)
}

// Bool returns the value as a bool.
func (p *Param) Bool() (bool, bool) {
	if p == nil {
		return false, false
	}
	b, ok := p.Value.(bool)
	return b, ok
}

// Field returns an Extra field decoded into dst.
func (p *Param) Field(key string, dst any) error {
	raw, ok := p.Extra[key]
	if !ok {
		return fmt.Errorf("param %s: no field %q", p.ID, key)
	}
	return json.Unmarshal(raw, dst)
}

// MarshalJSON emits id, name, type, from, value, then extra fields. Keys
// absent from the decoded object stay absent until they are set.
func (p *Param) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	write := func(key string, v any) error {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("param %s: marshal %s: %w", p.ID, key, err)
		}
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		k, _ := json.Marshal(key)
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(b)
		return nil
	}

	if !p.omits(fieldID, p.ID == "") {
		if err := write("id", p.ID); err != nil {
			return nil, err
		}
	}
	if !p.omits(fieldName, p.Name == "") {
		if err := write("name", p.Name); err != nil {
			return nil, err
		}
	}
	if p.Type != "" {
		if err := write("type", p.Type); err != nil {
			return nil, err
		}
	}
	if p.From != "" {
		if err := write("from", p.From); err != nil {
			return nil, err
		}
	}
	if !p.omits(fieldValue, p.Value == nil) {
		if err := write("value", p.Value); err != nil {
			return nil, err
		}
	}
	for _, k := range slices.Sorted(maps.Keys(p.Extra)) {
		if err := write(k, p.Extra[k]); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a param, keeping unknown fields in Extra.
func (p *Param) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	*p = Param{}
	for key, f := range map[string]field{"id": fieldID, "name": fieldName, "value": fieldValue} {
		if _, ok := fields[key]; !ok {
			p.absent |= f
		}
	}
	str := func(key string) (string, error) {
		raw, ok := fields[key]
		delete(fields, key)
		if !ok || string(raw) == "null" {
			return "", nil
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("param field %s: %w", key, err)
		}
		return s, nil
	}

	var err error
	if p.ID, err = str("id"); err != nil {
		return err
	}
	if p.Name, err = str("name"); err != nil {
		return err
	}
	var s string
	if s, err = str("type"); err != nil {
		return err
	}
	p.Type = Type(s)
	if s, err = str("from"); err != nil {
		return err
	}
	p.From = From(s)

	if raw, ok := fields["value"]; ok {
		delete(fields, "value")
		v, err := decodeValue(raw, p.From == FromExpand)
		if err != nil {
			return fmt.Errorf("param %s value: %w", p.ID, err)
		}
		p.Value = v
	}
	if len(fields) > 0 {
		p.Extra = fields
	}
	return nil
}

func decodeValue(raw json.RawMessage, expand bool) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' && (expand || looksLikeTree(trimmed)) {
		var t Tree
		if err := json.Unmarshal(trimmed, &t); err != nil {
			return nil, err
		}
		if t == nil {
			t = Tree{}
		}
		return t, nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// looksLikeTree reports whether raw is a non-empty array whose elements are
// all objects carrying a name plus a type, from or value.
func looksLikeTree(raw []byte) bool {
	var items []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil || len(items) == 0 {
		return false
	}
	for _, it := range items {
		if _, ok := it["name"]; !ok {
			return false
		}
		_, hasType := it["type"]
		_, hasFrom := it["from"]
		_, hasValue := it["value"]
		if !hasType && !hasFrom && !hasValue {
			return false
		}
	}
	return true
}
