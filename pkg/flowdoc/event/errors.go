package event

import (
	"errors"
	"fmt"
)

// ErrBusClosed is wrapped by publish failures on a closed bus.
var ErrBusClosed = errors.New("event bus closed")

// EventError ties a delivery failure to the event involved.
type EventError struct {
	Event   Event
	Message string
	Err     error
}

func (e *EventError) Error() string {
	var id, typ string
	if e.Event != nil {
		id, typ = e.Event.ID(), e.Event.Type()
	}
	msg := fmt.Sprintf("%s event %s: %s", typ, id, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *EventError) Unwrap() error { return e.Err }
