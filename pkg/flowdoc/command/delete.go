package command

import (
	"slices"
	"sort"

	"github.com/randalmurphal/flowdoc/pkg/flowdoc/shape"
)

// Delete removes shapes together with everything they contain.
//
// A requested shape whose subtree holds a non-deletable shape is skipped
// without error. Each removed shape is recorded with its full form and its
// page position so that Undo puts it back exactly.
type Delete struct {
	lifecycle
	ids     []string
	removed []placement
}

// NewDelete builds a delete command for ids.
func NewDelete(ids ...string) *Delete {
	return &Delete{ids: slices.Clone(ids)}
}

// Name implements Command.
func (d *Delete) Name() string { return "delete" }

// Removed returns snapshots of the shapes removed by the last execute or
// redo, innermost first.
func (d *Delete) Removed() []*shape.Shape {
	out := make([]*shape.Shape, len(d.removed))
	for i, p := range d.removed {
		out[i] = p.snap.Clone()
	}
	return out
}

// Execute implements Command.
func (d *Delete) Execute(h Host) error {
	return d.run(d.Name(), TransitionExecute, func() error {
		removed, err := removeAll(h, d.plan(h))
		if err != nil {
			return err
		}
		d.removed = removed
		return nil
	})
}

// Undo reinserts the removed shapes, outermost first, at their recorded
// positions.
func (d *Delete) Undo(h Host) error {
	return d.run(d.Name(), TransitionUndo, func() error {
		items := slices.Clone(d.removed)
		slices.Reverse(items)
		return insertAll(h, items)
	})
}

// Redo removes the same shapes again.
func (d *Delete) Redo(h Host) error {
	return d.run(d.Name(), TransitionRedo, func() error {
		ids := make([]string, len(d.removed))
		for i, p := range d.removed {
			ids[i] = p.snap.ID
		}
		removed, err := removeAll(h, ids)
		if err != nil {
			return err
		}
		d.removed = removed
		return nil
	})
}

// plan returns the ids to remove, deepest first.
func (d *Delete) plan(h Host) []string {
	seen := make(map[string]bool)
	var subtrees []*shape.Shape
	for _, id := range d.ids {
		s := h.ShapeByID(id)
		if s == nil || seen[id] {
			continue
		}
		tree := append([]*shape.Shape{s}, h.Descendants(id)...)
		if slices.ContainsFunc(tree, func(x *shape.Shape) bool { return !x.Deletable }) {
			continue
		}
		for _, x := range tree {
			if !seen[x.ID] {
				seen[x.ID] = true
				subtrees = append(subtrees, x)
			}
		}
	}

	depth := make(map[string]int, len(subtrees))
	for _, s := range subtrees {
		depth[s.ID] = depthOf(h, s)
	}
	sort.SliceStable(subtrees, func(i, j int) bool { return depth[subtrees[i].ID] > depth[subtrees[j].ID] })

	ids := make([]string, len(subtrees))
	for i, s := range subtrees {
		ids[i] = s.ID
	}
	return ids
}

// depthOf counts the shape containers above s.
func depthOf(h Host, s *shape.Shape) int {
	visited := map[string]bool{s.ID: true}
	n := 0
	for c := h.ShapeByID(s.Container); c != nil && !visited[c.ID]; c = h.ShapeByID(c.Container) {
		visited[c.ID] = true
		n++
	}
	return n
}
