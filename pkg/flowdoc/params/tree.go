package params

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
)

// Tree is an ordered list of params. Treat it as immutable.
type Tree []*Param

// Find returns the param with id anywhere in t, or nil.
func (t Tree) Find(id string) *Param {
	for _, p := range t {
		if p == nil {
			continue
		}
		if p.ID == id {
			return p
		}
		if found := p.Children().Find(id); found != nil {
			return found
		}
	}
	return nil
}

// Named returns the first direct child named name, or nil.
func (t Tree) Named(name string) *Param {
	for _, p := range t {
		if p != nil && p.Name == name {
			return p
		}
	}
	return nil
}

// Path follows names from the top of t, descending into Expand children.
func (t Tree) Path(names ...string) *Param {
	var cur *Param
	level := t
	for _, n := range names {
		cur = level.Named(n)
		if cur == nil {
			return nil
		}
		level = cur.Children()
	}
	return cur
}

// Parent returns the Expand param that directly holds id, or nil when id
// sits at the top level or is absent.
func (t Tree) Parent(id string) *Param {
	for _, p := range t {
		kids := p.Children()
		if kids == nil {
			continue
		}
		for _, c := range kids {
			if c != nil && c.ID == id {
				return p
			}
		}
		if found := kids.Parent(id); found != nil {
			return found
		}
	}
	return nil
}

// Walk calls fn for every param depth-first until fn returns false.
func (t Tree) Walk(fn func(p *Param, depth int) bool) {
	walk(t, 0, fn)
}

func walk(t Tree, depth int, fn func(*Param, int) bool) bool {
	for _, p := range t {
		if p == nil {
			continue
		}
		if !fn(p, depth) {
			return false
		}
		if !walk(p.Children(), depth+1, fn) {
			return false
		}
	}
	return true
}

// Len counts every param in t, nested ones included.
func (t Tree) Len() int {
	n := 0
	t.Walk(func(*Param, int) bool { n++; return true })
	return n
}

// Update replaces the param with id by fn(copy) and returns the new tree.
// Only the path to the changed node is copied. When id is absent, t is
// returned unchanged with ok false.
func Update(t Tree, id string, fn func(*Param)) (Tree, bool) {
	for i, p := range t {
		if p == nil {
			continue
		}
		if p.ID == id {
			return replaceAt(t, i, p.With(fn)), true
		}
		kids := p.Children()
		if kids == nil {
			continue
		}
		if next, ok := Update(kids, id, fn); ok {
			return replaceAt(t, i, p.With(func(cp *Param) { cp.Value = next })), true
		}
	}
	return t, false
}

// UpdateChildren replaces the children of Expand param id by fn(children).
func UpdateChildren(t Tree, id string, fn func(Tree) Tree) (Tree, bool) {
	target := t.Find(id)
	if target == nil {
		return t, false
	}
	kids := target.Children()
	if kids == nil && target.From != FromExpand {
		return t, false
	}
	return Update(t, id, func(cp *Param) {
		cp.Value = fn(kids)
		cp.From = FromExpand
	})
}

// Set assigns one property of the param with id. Known keys are id, name,
// type, from and value; any other key goes to Extra.
func Set(t Tree, id, key string, value any) (Tree, error) {
	var setErr error
	out, ok := Update(t, id, func(cp *Param) {
		setErr = assign(cp, key, value)
	})
	if !ok {
		return t, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if setErr != nil {
		return t, setErr
	}
	return out, nil
}

func assign(p *Param, key string, value any) error {
	switch key {
	case "value":
		p.Value = value
		p.absent &^= fieldValue
		return nil
	case "id", "name", "type", "from":
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("param %s: %s must be a string, got %T", p.ID, key, value)
		}
		switch key {
		case "id":
			p.ID = s
			p.absent &^= fieldID
		case "name":
			p.Name = s
			p.absent &^= fieldName
		case "type":
			p.Type = Type(s)
		case "from":
			p.From = From(s)
		}
		return nil
	default:
		raw, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("param %s: encode %s: %w", p.ID, key, err)
		}
		extra := maps.Clone(p.Extra)
		if extra == nil {
			extra = make(map[string]json.RawMessage, 1)
		}
		extra[key] = raw
		p.Extra = extra
		return nil
	}
}

// Append adds children to the Expand param parentID. An empty parentID
// appends at the top level.
func Append(t Tree, parentID string, children ...*Param) (Tree, error) {
	if parentID == "" {
		return append(slices.Clip(t), children...), nil
	}
	out, ok := UpdateChildren(t, parentID, func(kids Tree) Tree {
		return append(slices.Clip(kids), children...)
	})
	if !ok {
		return t, fmt.Errorf("%w: %s", ErrNotExpandable, parentID)
	}
	return out, nil
}

// Delete removes the param with id wherever it sits.
func Delete(t Tree, id string) (Tree, bool) {
	if i := slices.IndexFunc(t, func(p *Param) bool { return p != nil && p.ID == id }); i >= 0 {
		return slices.Delete(slices.Clone(t), i, i+1), true
	}
	parent := t.Parent(id)
	if parent == nil {
		return t, false
	}
	return UpdateChildren(t, parent.ID, func(kids Tree) Tree {
		i := slices.IndexFunc(kids, func(p *Param) bool { return p != nil && p.ID == id })
		return slices.Delete(slices.Clone(kids), i, i+1)
	})
}

// Move places the param with id at position to within its own list.
// to is clamped to the list bounds.
func Move(t Tree, id string, to int) (Tree, bool) {
	reorder := func(list Tree) Tree {
		from := slices.IndexFunc(list, func(p *Param) bool { return p != nil && p.ID == id })
		dst := min(max(to, 0), len(list)-1)
		if from == dst {
			return list
		}
		p := list[from]
		out := slices.Delete(slices.Clone(list), from, from+1)
		return slices.Insert(out, dst, p)
	}
	if slices.ContainsFunc(t, func(p *Param) bool { return p != nil && p.ID == id }) {
		return reorder(t), true
	}
	parent := t.Parent(id)
	if parent == nil {
		return t, false
	}
	return UpdateChildren(t, parent.ID, reorder)
}

func replaceAt(t Tree, i int, p *Param) Tree {
	out := slices.Clone(t)
	out[i] = p
	return out
}

// Same reports whether a and b hold the identical top-level nodes. It is
// the change detector for trees produced by this package: an update that
// touched anything yields a tree for which Same is false.
func Same(a, b Tree) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Equal reports deep structural equality.
func Equal(a, b Tree) bool {
	if Same(a, b) {
		return true
	}
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	return errA == nil && errB == nil && bytes.Equal(ja, jb)
}

// Clone returns a deep copy sharing nothing with t.
func (t Tree) Clone() Tree {
	if t == nil {
		return nil
	}
	out := make(Tree, len(t))
	for i, p := range t {
		if p == nil {
			continue
		}
		cp := *p
		cp.Extra = maps.Clone(p.Extra)
		switch v := p.Value.(type) {
		case Tree:
			cp.Value = v.Clone()
		case map[string]any, []any:
			cp.Value = cloneJSON(v)
		}
		out[i] = &cp
	}
	return out
}

func cloneJSON(v any) any {
	switch x := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(x))
		for k, e := range x {
			m[k] = cloneJSON(e)
		}
		return m
	case []any:
		s := make([]any, len(x))
		for i, e := range x {
			s[i] = cloneJSON(e)
		}
		return s
	default:
		return v
	}
}

// Parse decodes a JSON array of params.
func Parse(data []byte) (Tree, error) {
	var t Tree
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse params: %w", err)
	}
	return t, nil
}
