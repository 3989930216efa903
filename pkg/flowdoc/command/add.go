package command

import (
	"github.com/randalmurphal/flowdoc/pkg/flowdoc/shape"
)

// Add inserts shapes from snapshots. Containers are inserted before the
// shapes they own.
type Add struct {
	lifecycle
	snapshots []*shape.Shape
}

// NewAdd builds an add command from shape snapshots. The snapshots are
// copied; later changes to the arguments do not affect the command.
func NewAdd(snapshots ...*shape.Shape) *Add {
	seen := make(map[string]bool, len(snapshots))
	snaps := make([]*shape.Shape, 0, len(snapshots))
	for _, s := range snapshots {
		if s == nil || seen[s.ID] {
			continue
		}
		seen[s.ID] = true
		snaps = append(snaps, s.Clone())
	}
	return &Add{snapshots: topoOrder(snaps)}
}

// NewAddShapes captures shapes that were already built, together with
// everything they contain on h. Shapes already on h are left in place by
// Execute and owned by the command from then on.
func NewAddShapes(h Host, shapes ...*shape.Shape) *Add {
	var all []*shape.Shape
	for _, s := range shapes {
		if s == nil {
			continue
		}
		all = append(all, s)
		all = append(all, h.Descendants(s.ID)...)
	}
	return NewAdd(all...)
}

// Name implements Command.
func (a *Add) Name() string { return "add" }

// IDs returns the ids this command adds, containers first.
func (a *Add) IDs() []string {
	ids := make([]string, len(a.snapshots))
	for i, s := range a.snapshots {
		ids[i] = s.ID
	}
	return ids
}

// Execute implements Command.
func (a *Add) Execute(h Host) error {
	return a.run(a.Name(), TransitionExecute, func() error { return a.insert(h) })
}

// Undo removes the added shapes, innermost first.
func (a *Add) Undo(h Host) error {
	return a.run(a.Name(), TransitionUndo, func() error {
		var ids []string
		for i := len(a.snapshots) - 1; i >= 0; i-- {
			if h.ShapeByID(a.snapshots[i].ID) != nil {
				ids = append(ids, a.snapshots[i].ID)
			}
		}
		_, err := removeAll(h, ids)
		return err
	})
}

// Redo recreates the shapes from the saved snapshots.
func (a *Add) Redo(h Host) error {
	return a.run(a.Name(), TransitionRedo, func() error { return a.insert(h) })
}

func (a *Add) insert(h Host) error {
	items := make([]placement, 0, len(a.snapshots))
	for _, s := range a.snapshots {
		if h.ShapeByID(s.ID) != nil {
			continue
		}
		items = append(items, placement{snap: s, pos: -1})
	}
	return insertAll(h, items)
}

// topoOrder orders snapshots so that a container precedes its children.
// Snapshots caught in a containment loop keep their relative order at the
// end, where Insert will reject them.
func topoOrder(snaps []*shape.Shape) []*shape.Shape {
	pending := make(map[string]bool, len(snaps))
	for _, s := range snaps {
		pending[s.ID] = true
	}
	out := make([]*shape.Shape, 0, len(snaps))
	for len(out) < len(snaps) {
		progressed := false
		for _, s := range snaps {
			if !pending[s.ID] || pending[s.Container] {
				continue
			}
			pending[s.ID] = false
			out = append(out, s)
			progressed = true
		}
		if !progressed {
			for _, s := range snaps {
				if pending[s.ID] {
					out = append(out, s)
				}
			}
			break
		}
	}
	return out
}
