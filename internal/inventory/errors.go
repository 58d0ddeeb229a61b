package inventory

import (
	"errors"
	"fmt"

	"github.com/MrWong99/boxkeeper/internal/semantic"
)

// Code classifies an inventory failure.
type Code string

const (
	// CodeNotFound means no item or box resolved from the given name. The
	// error carries ranked suggestions when any exist.
	CodeNotFound Code = "not_found"

	// CodeConflict means the request is valid but contradicts current state,
	// such as removing a non-empty box or moving an item into the box it is
	// already in. Nothing was changed.
	CodeConflict Code = "conflict"

	// CodeInvalid means the request itself is unusable (empty name,
	// non-positive quantity).
	CodeInvalid Code = "invalid"

	// CodeTransport means the record store failed. The operation was
	// aborted and the mirror is unchanged.
	CodeTransport Code = "transport"
)

// Error is the error type returned by every [Service] operation.
type Error struct {
	Code Code

	// Op is the operation that failed ("add", "remove", ...).
	Op string

	// Msg is a short human-readable description.
	Msg string

	// Name is the unresolved item or box name for CodeNotFound.
	Name string

	// Box is true when Name is a box name rather than an item name.
	Box bool

	// Suggestions holds near misses for CodeNotFound, best first.
	Suggestions []semantic.Match

	// Err is the underlying cause, if any.
	Err error
}

// Error implements [error].
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("inventory: %s: %s: %v", e.Op, e.Msg, e.Err)
	}
	return fmt.Sprintf("inventory: %s: %s", e.Op, e.Msg)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// IsCode reports whether err is an [*Error] with the given code.
func IsCode(err error, code Code) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

// CodeOf returns the code of err, or "" when err is not an [*Error].
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func noBox(op, name string) *Error {
	return &Error{Code: CodeNotFound, Op: op, Msg: fmt.Sprintf("no box named %q", name), Name: name, Box: true}
}

func noItem(op, name string) *Error {
	return &Error{Code: CodeNotFound, Op: op, Msg: fmt.Sprintf("no item matching %q", name), Name: name}
}

func conflict(op, format string, args ...any) *Error {
	return &Error{Code: CodeConflict, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func invalid(op, format string, args ...any) *Error {
	return &Error{Code: CodeInvalid, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func transport(op, what string, err error) *Error {
	return &Error{Code: CodeTransport, Op: op, Msg: what, Err: err}
}
