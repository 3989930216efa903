package event

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types published by the engine.
const (
	TypeShapeAdded   = "shape.added"
	TypeShapeRemoved = "shape.removed"
	TypeShapeUpdated = "shape.updated"
	TypePageAdded    = "page.added"
	TypePageRemoved  = "page.removed"
	TypePageUpdated  = "page.updated"
	TypeFocusChanged = "focus.changed"

	TypeCommandExecuted = "command.executed"
	TypeCommandUndone   = "command.undone"
	TypeCommandRedone   = "command.redone"

	TypeDocumentSaved  = "document.saved"
	TypeDocumentLoaded = "document.loaded"
	TypeFormSubmitted  = "form.submitted"

	TypeCollabState   = "collab.state"
	TypeErrorOccurred = "error.occurred"
)

// Event is an immutable notification.
type Event interface {
	ID() string
	Type() string
	// Source names the emitting component ("page", "history", "collab", ...).
	Source() string
	// DocID is the document the event belongs to, empty when not known.
	DocID() string
	Timestamp() time.Time
	Data() any
}

// Metadata contains common event fields.
type Metadata struct {
	EventID     string    `json:"id"`
	EventType   string    `json:"type"`
	EventSource string    `json:"source"`
	Doc         string    `json:"doc_id,omitempty"`
	Time        time.Time `json:"timestamp"`
}

// BaseEvent is the generic Event implementation. T is the payload type.
type BaseEvent[T any] struct {
	Meta    Metadata `json:"metadata"`
	Payload T        `json:"payload"`
}

func (e *BaseEvent[T]) ID() string           { return e.Meta.EventID }
func (e *BaseEvent[T]) Type() string         { return e.Meta.EventType }
func (e *BaseEvent[T]) Source() string       { return e.Meta.EventSource }
func (e *BaseEvent[T]) DocID() string        { return e.Meta.Doc }
func (e *BaseEvent[T]) Timestamp() time.Time { return e.Meta.Time }
func (e *BaseEvent[T]) Data() any            { return e.Payload }

// TypedData returns the strongly-typed payload.
func (e *BaseEvent[T]) TypedData() T {
	return e.Payload
}

// MarshalJSON implements json.Marshaler.
func (e *BaseEvent[T]) MarshalJSON() ([]byte, error) {
	type alias BaseEvent[T]
	return json.Marshal((*alias)(e))
}

// Option configures event creation.
type Option func(*Metadata)

// WithEventID sets a specific event id (default: random uuid).
func WithEventID(id string) Option {
	return func(m *Metadata) { m.EventID = id }
}

// WithTimestamp sets a specific timestamp (default: time.Now()).
func WithTimestamp(t time.Time) Option {
	return func(m *Metadata) { m.Time = t }
}

// New creates an event.
func New[T any](eventType, source, docID string, payload T, opts ...Option) *BaseEvent[T] {
	meta := Metadata{
		EventID:     uuid.NewString(),
		EventType:   eventType,
		EventSource: source,
		Doc:         docID,
		Time:        time.Now(),
	}
	for _, opt := range opts {
		opt(&meta)
	}
	return &BaseEvent[T]{Meta: meta, Payload: payload}
}

// ShapePayload describes a shape change.
type ShapePayload struct {
	PageID    string `json:"page_id"`
	ShapeID   string `json:"shape_id"`
	ShapeType string `json:"shape_type"`
	// Remote is true when the change arrived from a collaborator.
	Remote bool `json:"remote,omitempty"`
}

// PagePayload describes a page change.
type PagePayload struct {
	PageID string `json:"page_id"`
	Remote bool   `json:"remote,omitempty"`
}

// FocusPayload lists the focused shapes of a page.
type FocusPayload struct {
	PageID   string   `json:"page_id"`
	ShapeIDs []string `json:"shape_ids"`
}

// CommandPayload describes a command transition.
type CommandPayload struct {
	Command    string  `json:"command"`
	Transition string  `json:"transition"`
	DurationMs float64 `json:"duration_ms"`
}

// SavePayload describes a persisted document.
type SavePayload struct {
	SizeBytes int `json:"size_bytes"`
	Revision  int `json:"revision"`
}

// SubmitPayload carries submitted form data.
type SubmitPayload struct {
	Data map[string]any `json:"data"`
}

// StatePayload describes a collaboration state change.
type StatePayload struct {
	Session string `json:"session"`
	Mode    string `json:"mode"`
	State   string `json:"state"`
}

// ErrorPayload reports a failure on an asynchronous path.
type ErrorPayload struct {
	Op       string `json:"op"`
	Category string `json:"category"`
	Code     int    `json:"code,omitempty"`
	Message  string `json:"message"`
}

// Handler processes events.
type Handler interface {
	Handle(ctx context.Context, evt Event) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, evt Event) error

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, evt Event) error {
	return f(ctx, evt)
}

// TypedHandler calls fn only for events whose payload is a T.
func TypedHandler[T any](fn func(ctx context.Context, payload T, evt Event) error) Handler {
	return HandlerFunc(func(ctx context.Context, evt Event) error {
		p, ok := evt.Data().(T)
		if !ok {
			return &EventError{Event: evt, Message: "unexpected payload type"}
		}
		return fn(ctx, p, evt)
	})
}

// Emitter is the publishing side of a Bus.
type Emitter interface {
	Publish(ctx context.Context, evt Event) error
}

// Discard is an Emitter that drops every event.
var Discard Emitter = discard{}

type discard struct{}

func (discard) Publish(context.Context, Event) error { return nil }
