package command

import (
	"errors"
	"fmt"

	"github.com/randalmurphal/flowdoc/pkg/flowdoc/shape"
)

// Host is the shape index a command operates on. *flowdoc.Page satisfies it.
type Host interface {
	ShapeByID(id string) *shape.Shape
	Insert(s *shape.Shape, at int) error
	Remove(id string) (*shape.Shape, int, error)
	Replace(s *shape.Shape) error
	Descendants(id string) []*shape.Shape
}

// Command is a reversible unit of change.
type Command interface {
	Name() string
	Execute(h Host) error
	Undo(h Host) error
	Redo(h Host) error
	State() State
}

// State is the lifecycle position of a command.
type State int

// Command states.
const (
	StateCreated State = iota
	StateExecuted
	StateUndone
	StateRedone
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateExecuted:
		return "executed"
	case StateUndone:
		return "undone"
	case StateRedone:
		return "redone"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Transition names, used in errors, logs and events.
const (
	TransitionExecute = "execute"
	TransitionUndo    = "undo"
	TransitionRedo    = "redo"
)

// ErrInvalidTransition is wrapped by every *TransitionError.
var ErrInvalidTransition = errors.New("invalid command transition")

// TransitionError reports a transition the command's state does not allow.
type TransitionError struct {
	Command    string
	Transition string
	From       State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("command %s: cannot %s from %s", e.Command, e.Transition, e.From)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// lifecycle tracks state for the concrete commands.
type lifecycle struct {
	state State
}

func (l *lifecycle) State() State { return l.state }

// begin reports whether transition may run. A repeated execute is reported
// as (false, nil) so callers can no-op.
func (l *lifecycle) begin(name, transition string) (bool, error) {
	switch transition {
	case TransitionExecute:
		return l.state == StateCreated, nil
	case TransitionUndo:
		if l.state == StateExecuted || l.state == StateRedone {
			return true, nil
		}
	case TransitionRedo:
		if l.state == StateUndone {
			return true, nil
		}
	}
	return false, &TransitionError{Command: name, Transition: transition, From: l.state}
}

func (l *lifecycle) finish(transition string) {
	switch transition {
	case TransitionExecute:
		l.state = StateExecuted
	case TransitionUndo:
		l.state = StateUndone
	case TransitionRedo:
		l.state = StateRedone
	}
}

// run guards fn with the lifecycle check and advances state on success.
func (l *lifecycle) run(name, transition string, fn func() error) error {
	ok, err := l.begin(name, transition)
	if !ok || err != nil {
		return err
	}
	if err := fn(); err != nil {
		return fmt.Errorf("%s %s: %w", name, transition, err)
	}
	l.finish(transition)
	return nil
}

// placement is a shape snapshot together with its page-order position.
type placement struct {
	snap *shape.Shape
	pos  int
}

// insertAll inserts placements in order. On failure the ones already
// inserted are removed again, newest first.
func insertAll(h Host, items []placement) error {
	for i, it := range items {
		if err := h.Insert(it.snap.Clone(), it.pos); err != nil {
			for j := i - 1; j >= 0; j-- {
				_, _, _ = h.Remove(items[j].snap.ID)
			}
			return err
		}
	}
	return nil
}

// removeAll removes ids in order and returns what it removed. On failure
// the removed shapes are put back, newest first.
func removeAll(h Host, ids []string) ([]placement, error) {
	out := make([]placement, 0, len(ids))
	for _, id := range ids {
		s, pos, err := h.Remove(id)
		if err != nil {
			restore(h, out)
			return nil, err
		}
		out = append(out, placement{snap: s.Clone(), pos: pos})
	}
	return out, nil
}

// restore reinserts removed placements in reverse removal order, which puts
// every shape back at its recorded position.
func restore(h Host, removed []placement) {
	for i := len(removed) - 1; i >= 0; i-- {
		_ = h.Insert(removed[i].snap.Clone(), removed[i].pos)
	}
}
