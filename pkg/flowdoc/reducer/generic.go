package reducer

import (
	"encoding/json"
	"fmt"
	"maps"
	"strconv"
	"strings"

	"github.com/randalmurphal/flowdoc/pkg/flowdoc/params"
)

// Generic action types.
const (
	ChangeConfig = "changeConfig"
	AddConfig    = "addConfig"
	DeleteConfig = "deleteConfig"
	RenameConfig = "renameConfig"
	ChangeFrom   = "changeFrom"
	MoveConfig   = "moveConfig"
)

// Generic returns a dispatcher holding the reducers every node type shares.
func Generic(opts ...Option) *Dispatcher {
	d := NewDispatcher(opts...)
	d.MustRegister(
		Func(ChangeConfig, changeConfig),
		Func(AddConfig, addConfig),
		Func(DeleteConfig, deleteConfig),
		Func(RenameConfig, renameConfig),
		Func(ChangeFrom, changeFrom),
		Func(MoveConfig, moveConfig),
	)
	return d
}

// changeConfig sets UpdateKey (default "value") on param ID.
func changeConfig(t params.Tree, a Action) (params.Tree, error) {
	key := a.UpdateKey
	if key == "" {
		key = "value"
	}
	return params.Set(t, a.ID, key, a.Value)
}

// addConfig appends Value, a param, to the Expand group ID. An empty ID
// appends at the top level.
func addConfig(t params.Tree, a Action) (params.Tree, error) {
	p, err := ToParam(a.Value)
	if err != nil {
		return t, err
	}
	if p.ID == "" {
		p.ID = ChildID(t, a.ID, p.Name)
	}
	return params.Append(t, a.ID, p)
}

func deleteConfig(t params.Tree, a Action) (params.Tree, error) {
	out, ok := params.Delete(t, a.ID)
	if !ok {
		return t, fmt.Errorf("%w: %s", params.ErrNotFound, a.ID)
	}
	return out, nil
}

func renameConfig(t params.Tree, a Action) (params.Tree, error) {
	name, ok := a.Value.(string)
	if !ok || name == "" {
		return t, fmt.Errorf("%w: name must be a non-empty string", ErrBadValue)
	}
	return params.Set(t, a.ID, "name", name)
}

// referenceKeys are the Extra fields describing a Reference source.
var referenceKeys = []string{"referenceNode", "referenceId", "referenceKey"}

// changeFrom switches provenance and resets the value to the empty value
// of the new provenance.
func changeFrom(t params.Tree, a Action) (params.Tree, error) {
	from := params.From(a.String())
	var reset any
	switch from {
	case params.FromInput:
		reset = ""
	case params.FromReference:
		reset = []any{}
	case params.FromExpand:
		reset = params.Tree{}
	default:
		return t, fmt.Errorf("%w: unknown from %q", ErrBadValue, from)
	}
	out, ok := params.Update(t, a.ID, func(p *params.Param) {
		p.From = from
		p.Value = reset
		if p.Extra != nil {
			p.Extra = maps.Clone(p.Extra)
			for _, k := range referenceKeys {
				delete(p.Extra, k)
			}
		}
	})
	if !ok {
		return t, fmt.Errorf("%w: %s", params.ErrNotFound, a.ID)
	}
	return out, nil
}

// moveConfig moves param ID to position Value within its list.
func moveConfig(t params.Tree, a Action) (params.Tree, error) {
	to, ok := a.Int()
	if !ok {
		return t, fmt.Errorf("%w: position must be an integer", ErrBadValue)
	}
	out, ok := params.Move(t, a.ID, to)
	if !ok {
		return t, fmt.Errorf("%w: %s", params.ErrNotFound, a.ID)
	}
	return out, nil
}

// ToParam converts an action value into a param. It accepts *params.Param,
// params.Param and decoded JSON objects.
func ToParam(v any) (*params.Param, error) {
	var p *params.Param
	switch x := v.(type) {
	case *params.Param:
		if x == nil {
			return nil, fmt.Errorf("%w: nil param", ErrBadValue)
		}
		cp := *x
		p = &cp
	case params.Param:
		p = &x
	case map[string]any:
		raw, err := json.Marshal(x)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadValue, err)
		}
		p = new(params.Param)
		if err := json.Unmarshal(raw, p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadValue, err)
		}
	default:
		return nil, fmt.Errorf("%w: expected a param, got %T", ErrBadValue, v)
	}
	return p, nil
}

// ChildID derives the id of a new child of parentID from its name. The
// result does not depend on anything but t, so reducing the same input
// twice yields the same ids.
func ChildID(t params.Tree, parentID, name string) string {
	base := strings.Join(strings.Fields(name), "_")
	if base == "" {
		base = "param"
	}
	if parentID != "" {
		base = parentID + "." + base
	}
	id := base
	for n := 2; t.Find(id) != nil; n++ {
		id = base + "-" + strconv.Itoa(n)
	}
	return id
}
