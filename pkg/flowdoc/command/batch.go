package command

import (
	"slices"
)

// Batch runs several commands as one. Undo runs them in reverse.
type Batch struct {
	lifecycle
	name string
	cmds []Command
}

// NewBatch groups cmds under name.
func NewBatch(name string, cmds ...Command) *Batch {
	return &Batch{name: name, cmds: slices.Clone(cmds)}
}

// Name implements Command.
func (b *Batch) Name() string { return b.name }

// Commands returns the grouped commands.
func (b *Batch) Commands() []Command { return slices.Clone(b.cmds) }

// Execute implements Command.
func (b *Batch) Execute(h Host) error {
	return b.run(b.name, TransitionExecute, func() error { return b.forward(h) })
}

// Undo implements Command.
func (b *Batch) Undo(h Host) error {
	return b.run(b.name, TransitionUndo, func() error {
		for i := len(b.cmds) - 1; i >= 0; i-- {
			if err := b.cmds[i].Undo(h); err != nil {
				for _, c := range b.cmds[i+1:] {
					_ = advance(c, h)
				}
				return err
			}
		}
		return nil
	})
}

// Redo implements Command.
func (b *Batch) Redo(h Host) error {
	return b.run(b.name, TransitionRedo, func() error { return b.forward(h) })
}

func (b *Batch) forward(h Host) error {
	for i, c := range b.cmds {
		if err := advance(c, h); err != nil {
			for j := i - 1; j >= 0; j-- {
				_ = b.cmds[j].Undo(h)
			}
			return err
		}
	}
	return nil
}

// advance executes a fresh command and redoes an undone one.
func advance(c Command, h Host) error {
	if c.State() == StateUndone {
		return c.Redo(h)
	}
	return c.Execute(h)
}
