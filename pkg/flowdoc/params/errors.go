package params

import "errors"

var (
	// ErrNotFound is returned when no param carries the requested id.
	ErrNotFound = errors.New("param not found")

	// ErrNotExpandable is returned when children are added to a param that
	// is not an Expand group.
	ErrNotExpandable = errors.New("param is not an expand group")
)
