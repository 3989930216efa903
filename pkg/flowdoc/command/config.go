package command

import (
	"fmt"

	"github.com/randalmurphal/flowdoc/pkg/flowdoc/shape"
)

// ConfigChange swaps one version of a shape for another, typically a shape
// carrying a reduced parameter tree.
type ConfigChange struct {
	lifecycle
	before, after *shape.Shape
}

// NewConfigChange records the shape before and after an edit. Both must
// carry the same id.
func NewConfigChange(before, after *shape.Shape) (*ConfigChange, error) {
	if before == nil || after == nil || before.ID != after.ID {
		return nil, fmt.Errorf("config change: before and after must be the same shape")
	}
	return &ConfigChange{before: before.Clone(), after: after.Clone()}, nil
}

// Name implements Command.
func (c *ConfigChange) Name() string { return "configChange" }

// ShapeID returns the edited shape's id.
func (c *ConfigChange) ShapeID() string { return c.before.ID }

// Execute implements Command.
func (c *ConfigChange) Execute(h Host) error {
	return c.run(c.Name(), TransitionExecute, func() error { return h.Replace(c.after.Clone()) })
}

// Undo implements Command.
func (c *ConfigChange) Undo(h Host) error {
	return c.run(c.Name(), TransitionUndo, func() error { return h.Replace(c.before.Clone()) })
}

// Redo implements Command.
func (c *ConfigChange) Redo(h Host) error {
	return c.run(c.Name(), TransitionRedo, func() error { return h.Replace(c.after.Clone()) })
}
