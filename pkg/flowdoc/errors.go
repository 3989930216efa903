package flowdoc

import (
	"errors"
	"fmt"
)

// Sentinel errors for document structure.
var (
	// ErrUnknownShapeType indicates a type tag with no registered kind.
	ErrUnknownShapeType = errors.New("unknown shape type")

	// ErrInvalidContainer indicates a container id that resolves to neither
	// a shape nor the page.
	ErrInvalidContainer = errors.New("invalid container")

	// ErrContainmentCycle indicates a container chain that loops.
	ErrContainmentCycle = errors.New("containment cycle")

	// ErrNotContainer indicates a container whose kind may not own shapes.
	ErrNotContainer = errors.New("shape kind is not a container")

	// ErrDuplicateShape indicates a shape id already present on the page.
	ErrDuplicateShape = errors.New("duplicate shape id")

	// ErrShapeNotFound indicates an id with no shape on the page.
	ErrShapeNotFound = errors.New("shape not found")

	// ErrInvalidForm indicates a page that breaks the single-form-root rule.
	ErrInvalidForm = errors.New("invalid form page")

	// ErrPageNotFound indicates an unknown page id.
	ErrPageNotFound = errors.New("page not found")
)

// UnknownTypeError reports a shape type with no registered kind.
type UnknownTypeError struct {
	Type    string
	ShapeID string
}

// Error implements the error interface.
func (e *UnknownTypeError) Error() string {
	if e.ShapeID != "" {
		return fmt.Sprintf("shape %s: unknown shape type %q", e.ShapeID, e.Type)
	}
	return fmt.Sprintf("unknown shape type %q", e.Type)
}

// Unwrap returns ErrUnknownShapeType for errors.Is support.
func (e *UnknownTypeError) Unwrap() error {
	return ErrUnknownShapeType
}

// ContainmentError reports a shape whose container chain is broken.
type ContainmentError struct {
	ShapeID   string
	Container string
	// Err is ErrInvalidContainer, ErrNotContainer or ErrContainmentCycle.
	Err error
}

// Error implements the error interface.
func (e *ContainmentError) Error() string {
	return fmt.Sprintf("shape %s in container %q: %v", e.ShapeID, e.Container, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ContainmentError) Unwrap() error {
	return e.Err
}
