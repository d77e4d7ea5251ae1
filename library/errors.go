package library

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Match them with errors.Is.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrDuplicateKey    = errors.New("duplicate key")
	ErrInvalidState    = errors.New("invalid state")
	ErrIOFailure       = errors.New("io failure")
)

// Error is the error type returned by repositories and the LibraryManager.
type Error struct {
	Kind error
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Is(target error) bool { return target == e.Kind }
func (e *Error) Unwrap() error        { return e.Err }

func InvalidArgument(msg string) error { return &Error{Kind: ErrInvalidArgument, Msg: msg} }
func DuplicateKey(msg string) error    { return &Error{Kind: ErrDuplicateKey, Msg: msg} }
func InvalidState(msg string) error    { return &Error{Kind: ErrInvalidState, Msg: msg} }

// NotFound reports a missing entity, e.g. NotFound("book", 999) -> "book 999 not found".
func NotFound(entity string, id int64) error {
	return &Error{Kind: ErrNotFound, Msg: fmt.Sprintf("%s %d not found", entity, id)}
}

// IOFailure wraps an error from the underlying store.
func IOFailure(op string, err error) error {
	return &Error{Kind: ErrIOFailure, Msg: op, Err: err}
}

// ValidationError collects every failed field rule of a single request.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string { return strings.Join(e.Problems, "; ") }

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidArgument }

// Kind returns the kind sentinel of err, or nil for errors that did not come from this package.
func Kind(err error) error {
	for _, k := range []error{ErrInvalidArgument, ErrNotFound, ErrDuplicateKey, ErrInvalidState, ErrIOFailure} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
