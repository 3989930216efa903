package form

import "errors"

// Sentinel errors returned by the form API.
var (
	// ErrUnusableContainer indicates a missing or zero-sized host surface.
	ErrUnusableContainer = errors.New("unusable container")

	// ErrReadOnly indicates a structural edit in a read-only mode.
	ErrReadOnly = errors.New("document is read-only")

	// ErrShapeNotAllowed indicates a Want for a type outside the allow-list.
	ErrShapeNotAllowed = errors.New("shape type not allowed")

	// ErrInvalidProperty indicates a Want property of the wrong type.
	ErrInvalidProperty = errors.New("invalid shape property")

	// ErrInvalidMode indicates a Run mode that allows editing.
	ErrInvalidMode = errors.New("invalid run mode")

	// ErrAlreadySubmitted indicates a second Submit on a runtime.
	ErrAlreadySubmitted = errors.New("form already submitted")

	// ErrClosed indicates use of a closed agent.
	ErrClosed = errors.New("agent closed")
)
