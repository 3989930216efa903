package command

// Invalidator is told when the shape set of a form changed and cached
// layout or visibility must be recomputed.
type Invalidator interface {
	Invalidate()
}

// InvalidatorFunc adapts a function to Invalidator.
type InvalidatorFunc func()

// Invalidate implements Invalidator.
func (f InvalidatorFunc) Invalidate() { f() }

// invalidating decorates a command and invalidates the form after every
// transition that changed the command's state.
type invalidating struct {
	Command
	name string
	inv  Invalidator
}

// NewFormAdd decorates an add for use inside a form.
func NewFormAdd(inner *Add, inv Invalidator) Command {
	return &invalidating{Command: inner, name: "formAdd", inv: inv}
}

// NewFormDelete decorates a delete for use inside a form.
func NewFormDelete(inner *Delete, inv Invalidator) Command {
	return &invalidating{Command: inner, name: "formDelete", inv: inv}
}

func (c *invalidating) Name() string { return c.name }

func (c *invalidating) Execute(h Host) error { return c.wrap(c.Command.Execute, h) }
func (c *invalidating) Undo(h Host) error    { return c.wrap(c.Command.Undo, h) }
func (c *invalidating) Redo(h Host) error    { return c.wrap(c.Command.Redo, h) }

func (c *invalidating) wrap(fn func(Host) error, h Host) error {
	before := c.State()
	if err := fn(h); err != nil {
		return err
	}
	if c.State() != before && c.inv != nil {
		c.inv.Invalidate()
	}
	return nil
}
