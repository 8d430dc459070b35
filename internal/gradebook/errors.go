package gradebook

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// Kind classifies engine failures. The transport maps kinds to status codes.
type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindConflict   Kind = "conflict"
	KindInternal   Kind = "internal"
)

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrValidation = &Error{Kind: KindValidation}
	ErrNotFound   = &Error{Kind: KindNotFound}
	ErrConflict   = &Error{Kind: KindConflict}
	ErrInternal   = &Error{Kind: KindInternal}
)

// FieldError is used to indicate an error with a specific input field.
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

// Error is the only error type the engine returns.
//
// Message is safe to show to a caller. For internal errors the storage cause
// lives in Err only and never leaks into Message.
type Error struct {
	Kind    Kind
	Message string

	// StudentID names the batch entry that failed, when there is one.
	StudentID int
	// Value and Bound describe a rejected mark and the weight it was checked against.
	Value *float64
	Bound *float64

	Fields []FieldError

	// Retry marks internal errors the caller should simply try again later.
	Retry bool

	Err error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}

// KindOf reports the kind of err. Errors that did not come from the engine
// count as internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func validationError(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func notFoundError(cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...), Err: cause}
}

func conflictError(format string, args ...interface{}) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func internalError(op string, cause error) *Error {
	return &Error{
		Kind:    KindInternal,
		Message: "internal error: could not " + op,
		Err:     pkgerrors.Wrap(cause, op),
	}
}

// asEngineError passes engine errors through and wraps anything else (driver,
// begin/commit failures) as internal.
func asEngineError(op string, err error) error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return internalError(op, err)
}
