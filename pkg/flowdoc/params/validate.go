package params

import (
	"encoding/json"
	"fmt"
	"math"

	fderrors "github.com/randalmurphal/flowdoc/pkg/flowdoc/errors"
)

// Validate reports problems in t without changing it. Invalid trees are
// still stored and serialized; the result is for display.
func Validate(t Tree) []*fderrors.ValidationError {
	var out []*fderrors.ValidationError
	seen := make(map[string]bool)
	add := func(p *Param, field, msg string, args ...any) {
		out = append(out, &fderrors.ValidationError{
			ParamID: p.ID,
			Field:   field,
			Message: fmt.Sprintf(msg, args...),
		})
	}

	t.Walk(func(p *Param, _ int) bool {
		switch {
		case p.ID == "":
			add(p, "id", "missing id on %q", p.Name)
		case seen[p.ID]:
			add(p, "id", "duplicate id")
		}
		seen[p.ID] = true

		if !p.Type.Valid() {
			add(p, "type", "unknown type %q", p.Type)
		}
		switch p.From {
		case "", FromInput, FromReference:
		case FromExpand:
			if _, ok := p.Value.(Tree); !ok && p.Value != nil {
				add(p, "value", "expand value must be a list of params")
			}
		default:
			add(p, "from", "unknown provenance %q", p.From)
		}

		if p.From == FromInput || p.From == "" {
			checkScalar(p, add)
		}
		return true
	})
	return out
}

func checkScalar(p *Param, add func(*Param, string, string, ...any)) {
	if p.Value == nil {
		return
	}
	switch p.Type {
	case TypeInteger:
		f, ok := p.Float()
		if !ok || math.IsInf(f, 0) || f != math.Trunc(f) {
			add(p, "value", "expected integer, got %v", p.Value)
		}
	case TypeNumber:
		if _, ok := p.Float(); !ok {
			add(p, "value", "expected number, got %v", p.Value)
		}
	case TypeBoolean:
		if _, ok := p.Value.(bool); !ok {
			add(p, "value", "expected boolean, got %v", p.Value)
		}
	case TypeString:
		switch p.Value.(type) {
		case string, json.Number:
		default:
			add(p, "value", "expected string, got %T", p.Value)
		}
	}
}
