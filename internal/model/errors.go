package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures crossing the remote API boundary.
type ErrorKind string

// Error kinds.
const (
	KindNetworkFailure  ErrorKind = "network_failure"
	KindUnexpectedShape ErrorKind = "unexpected_shape"
	KindParseFailure    ErrorKind = "parse_failure"
	KindInvalidAmount   ErrorKind = "invalid_amount"
	KindAuthExpired     ErrorKind = "auth_expired"
)

// Sentinels usable with errors.Is against any *Error of the same kind.
var (
	ErrNetworkFailure  = &Error{Kind: KindNetworkFailure}
	ErrUnexpectedShape = &Error{Kind: KindUnexpectedShape}
	ErrParseFailure    = &Error{Kind: KindParseFailure}
	ErrInvalidAmount   = &Error{Kind: KindInvalidAmount}
	ErrAuthExpired     = &Error{Kind: KindAuthExpired}
)

// Error is a classified failure.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

// NewError wraps err with a kind and the operation that failed.
func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
