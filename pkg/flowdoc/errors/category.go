// Package errors classifies failures raised while editing, saving and
// synchronizing flow documents, and retries the ones worth retrying.
//
// Three families of failure exist:
//   - Configuration: a caller broke a document invariant. Returned at once.
//   - Transport: HTTP or websocket trouble on an asynchronous path. Reported
//     as events and retried while transient.
//   - Validation: a parameter holds a value the editor should flag. The
//     document keeps the value; nothing is rejected.
package errors

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
)

// Category says what a caller should do about an error.
type Category int

const (
	// CategoryTransient: try again later (5xx, 408, 429, dropped socket).
	CategoryTransient Category = iota
	// CategoryPermanent: the same call will fail the same way.
	CategoryPermanent
	// CategoryValidation: the document holds a value worth flagging.
	CategoryValidation
	// CategorySessionInvalid: the hub dropped the collaboration session.
	// Reconnect rather than repeat the request.
	CategorySessionInvalid
)

var categoryNames = map[Category]string{
	CategoryTransient:      "transient",
	CategoryPermanent:      "permanent",
	CategoryValidation:     "validation",
	CategorySessionInvalid: "session_invalid",
}

// String returns the name used in error events, e.g. "session_invalid".
func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return "unknown"
}

// CategorizedError pins a category on an error.
type CategorizedError struct {
	Err      error
	Category Category
	// Retries counts the attempts made before giving up.
	Retries int
	// Context names the operation, e.g. "save document".
	Context string
}

func (e *CategorizedError) Error() string {
	msg := fmt.Sprintf("%s (category: %s, attempts: %d)", e.Err, e.Category, e.Retries)
	if e.Context == "" {
		return msg
	}
	return e.Context + ": " + msg
}

func (e *CategorizedError) Unwrap() error { return e.Err }

// NewCategorized wraps err with category c.
func NewCategorized(err error, c Category, context string) *CategorizedError {
	return &CategorizedError{Err: err, Category: c, Context: context}
}

// Transient marks err as worth retrying.
func Transient(err error, context string) *CategorizedError {
	return NewCategorized(err, CategoryTransient, context)
}

// Permanent marks err as final.
func Permanent(err error, context string) *CategorizedError {
	return NewCategorized(err, CategoryPermanent, context)
}

// rules are tried in order; the first that recognizes the error wins.
var rules = []func(error) (Category, bool){
	func(err error) (Category, bool) {
		var e *CategorizedError
		if errors.As(err, &e) {
			return e.Category, true
		}
		return 0, false
	},
	func(err error) (Category, bool) {
		var e *HTTPError
		if !errors.As(err, &e) {
			return 0, false
		}
		if e.StatusCode >= 500 || e.StatusCode == 408 || e.StatusCode == 429 {
			return CategoryTransient, true
		}
		return CategoryPermanent, true
	},
	func(err error) (Category, bool) {
		var e *TransportError
		if !errors.As(err, &e) {
			return 0, false
		}
		if e.Code == CodeSessionInvalid {
			return CategorySessionInvalid, true
		}
		return CategoryTransient, true
	},
	func(err error) (Category, bool) {
		var e *ValidationError
		return CategoryValidation, errors.As(err, &e)
	},
	func(err error) (Category, bool) {
		var e *TimeoutError
		if errors.As(err, &e) || errors.Is(err, context.DeadlineExceeded) {
			return CategoryTransient, true
		}
		return 0, false
	},
	func(err error) (Category, bool) {
		return CategoryPermanent, errors.Is(err, context.Canceled)
	},
	// Connection-level trouble on hub sockets and polls.
	func(err error) (Category, bool) {
		switch {
		case errors.Is(err, io.ErrUnexpectedEOF),
			errors.Is(err, syscall.ECONNRESET),
			errors.Is(err, syscall.ECONNREFUSED),
			errors.Is(err, syscall.EPIPE):
			return CategoryTransient, true
		}
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return CategoryTransient, true
		}
		return 0, false
	},
}

// Categorize decides how err should be handled. Unrecognized errors and
// nil are permanent.
func Categorize(err error) Category {
	if err == nil {
		return CategoryPermanent
	}
	for _, rule := range rules {
		if c, ok := rule(err); ok {
			return c
		}
	}
	return CategoryPermanent
}

// IsRetryable reports whether err is transient.
func IsRetryable(err error) bool { return Categorize(err) == CategoryTransient }

// IsValidation reports whether err only flags a value.
func IsValidation(err error) bool { return Categorize(err) == CategoryValidation }

// IsSessionInvalid reports whether err means the collaboration session ended.
func IsSessionInvalid(err error) bool { return Categorize(err) == CategorySessionInvalid }
