package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an operation failure. The kind decides whether a caller
// may retry: conflict errors are retryable after re-reading state, the
// rest are not.
type Kind int

const (
	KindBadRequest Kind = iota + 1
	KindNotFound
	KindForbidden
	KindUnprocessable
	KindLimitExceeded
)

// Machine-readable error codes carried alongside the kind.
const (
	CodeInvalidPasscode = "invalid_passcode"
	CodePinNotFound     = "PinNotFound"
	CodePinNotReclaimed = "PinNotReclaimed"
	CodePinNotRecreated = "PinNotRecreated"
	CodeProfileNotFound = "ProfileNotFound"
)

type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
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
	return t.Kind == e.Kind && (t.Code == "" || t.Code == e.Code)
}

func BadRequest(message string) error {
	return &Error{Kind: KindBadRequest, Message: message}
}

func NotFound(code, message string) error {
	return &Error{Kind: KindNotFound, Code: code, Message: message}
}

func Forbidden(message string) error {
	return &Error{Kind: KindForbidden, Message: message}
}

func Unprocessable(code, message string) error {
	return &Error{Kind: KindUnprocessable, Code: code, Message: message}
}

func LimitExceeded(message string) error {
	return &Error{Kind: KindLimitExceeded, Message: message}
}

func Wrap(kind Kind, message string, err error) error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of err, or zero when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// CodeOf returns the machine code of err, or empty when none is attached.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Status maps err to an HTTP status code. Unknown errors map to 500.
func Status(err error) int {
	switch KindOf(err) {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindUnprocessable:
		return http.StatusUnprocessableEntity
	case KindLimitExceeded:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
