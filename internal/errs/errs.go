// Package errs classifies domain errors into the three kinds callers act on:
// validation, conflict and not found.
package errs

import "errors"

// Kind is the category of a domain error.
type Kind string

const (
	KindValidation Kind = "validation"
	KindConflict   Kind = "conflict"
	KindNotFound   Kind = "not_found"
)

var (
	// ErrValidation matches every validation error with errors.Is.
	ErrValidation = &Error{Kind: KindValidation, Code: "validation_error"}
	// ErrConflict matches every conflict error with errors.Is.
	ErrConflict = &Error{Kind: KindConflict, Code: "conflict"}
	// ErrNotFound matches every not found error with errors.Is.
	ErrNotFound = &Error{Kind: KindNotFound, Code: "not_found"}
)

// Error is a sentinel carrying a stable snake_case code and its kind.
type Error struct {
	Kind Kind
	Code string
}

func (e *Error) Error() string { return e.Code }

// Is reports a match against the same sentinel or against the kind sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if e == t {
		return true
	}
	switch t {
	case ErrValidation, ErrConflict, ErrNotFound:
		return e.Kind == t.Kind
	}
	return false
}

func Validation(code string) *Error { return &Error{Kind: KindValidation, Code: code} }

func Conflict(code string) *Error { return &Error{Kind: KindConflict, Code: code} }

func NotFound(code string) *Error { return &Error{Kind: KindNotFound, Code: code} }

// KindOf returns the kind of err, or "" when err is not a domain error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// CodeOf returns the code of the first domain error in err's chain.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
