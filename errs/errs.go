package errs

import (
	"errors"
	"fmt"
)

// Kind classifies service errors so handlers can map them to HTTP statuses
// without string matching.
type Kind int

const (
	KindValidation Kind = iota
	KindPrecondition
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindPrecondition:
		return "precondition"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by the service layer. Code is a
// stable machine-readable identifier (e.g. "ownership_missing_origin").
type Error struct {
	Kind Kind
	Code string
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

func (e *Error) Unwrap() error { return e.err }

// Is lets errors.Is match on kind sentinels (e.g. errs.NotFound).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code != "" && t.Code != e.Code {
		return false
	}
	return t.Kind == e.Kind
}

// Kind sentinels for errors.Is checks.
var (
	Validation   = &Error{Kind: KindValidation}
	Precondition = &Error{Kind: KindPrecondition}
	NotFound     = &Error{Kind: KindNotFound}
	Conflict     = &Error{Kind: KindConflict}
)

func Validationf(code, format string, args ...any) error {
	return &Error{Kind: KindValidation, Code: code, msg: fmt.Sprintf(format, args...)}
}

func Preconditionf(code, format string, args ...any) error {
	return &Error{Kind: KindPrecondition, Code: code, msg: fmt.Sprintf(format, args...)}
}

func NotFoundf(code, format string, args ...any) error {
	return &Error{Kind: KindNotFound, Code: code, msg: fmt.Sprintf(format, args...)}
}

func Conflictf(code, format string, args ...any) error {
	return &Error{Kind: KindConflict, Code: code, msg: fmt.Sprintf(format, args...)}
}

// ConflictWrap keeps the storage error in the chain so callers can still
// inspect the driver-level cause.
func ConflictWrap(err error, code, msg string) error {
	return &Error{Kind: KindConflict, Code: code, msg: msg, err: err}
}

// Wrap adds context and preserves the error chain (errors.Is/As works).
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// CodeOf returns the machine code carried by err, or "" for foreign errors.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
