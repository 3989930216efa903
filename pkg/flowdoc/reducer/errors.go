package reducer

import (
	"errors"
	"fmt"
)

// ErrBadValue is returned when an action value has the wrong shape.
var ErrBadValue = errors.New("bad action value")

// Error wraps a reducer failure with the action that caused it.
type Error struct {
	Action string
	ID     string
	Err    error
}

func (e *Error) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("reduce %s: %v", e.Action, e.Err)
	}
	return fmt.Sprintf("reduce %s on %s: %v", e.Action, e.ID, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
