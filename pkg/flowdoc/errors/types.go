package errors

import (
	"fmt"
	"time"
)

// CodeSessionInvalid is the collaboration server's "session invalid" code.
const CodeSessionInvalid = 3000

// HTTPError represents a non-2xx response.
type HTTPError struct {
	StatusCode int
	Method     string
	Endpoint   string
	Message    string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	switch {
	case e.Method != "" && e.Endpoint != "":
		return fmt.Sprintf("HTTP %d from %s %s: %s", e.StatusCode, e.Method, e.Endpoint, e.Message)
	case e.Endpoint != "":
		return fmt.Sprintf("HTTP %d at %s: %s", e.StatusCode, e.Endpoint, e.Message)
	default:
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
	}
}

// TransportError is a websocket or polling failure on the collaboration path.
type TransportError struct {
	// Op is what was being attempted ("dial", "read", "poll", ...).
	Op string
	// Code is the close or response code, 0 when none was received.
	Code int
	Err  error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("collab %s (code %d): %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("collab %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// ValidationError describes an invalid parameter value. The value stays in
// the document; the error is for the editor to display.
type ValidationError struct {
	ShapeID string
	ParamID string
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	var field string
	for _, part := range []string{e.ShapeID, e.ParamID, e.Field} {
		if part == "" {
			continue
		}
		if field != "" {
			field += "."
		}
		field += part
	}
	if field != "" {
		return fmt.Sprintf("validation error on %s: %s", field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// TimeoutError indicates an operation timed out.
type TimeoutError struct {
	Operation string
	Duration  time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout after %s: %s", e.Duration, e.Operation)
}
