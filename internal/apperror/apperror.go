package apperror

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Kind is the machine-readable error category returned to API callers.
type Kind string

const (
	KindUnauthenticated   Kind = "UNAUTHENTICATED"
	KindPermissionDenied  Kind = "PERMISSION_DENIED"
	KindInvalidArgument   Kind = "INVALID_ARGUMENT"
	KindNotFound          Kind = "NOT_FOUND"
	KindAlreadyExists     Kind = "ALREADY_EXISTS"
	KindResourceExhausted Kind = "RESOURCE_EXHAUSTED"
	KindInternal          Kind = "INTERNAL"
)

// Error carries a Kind, a human-readable message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error with the same kind and message, so package level
// sentinels keep working after being wrapped with extra context.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Unauthenticated(message string) *Error  { return New(KindUnauthenticated, message) }
func PermissionDenied(message string) *Error { return New(KindPermissionDenied, message) }
func InvalidArgument(message string) *Error  { return New(KindInvalidArgument, message) }
func NotFound(message string) *Error         { return New(KindNotFound, message) }
func AlreadyExists(message string) *Error    { return New(KindAlreadyExists, message) }
func ResourceExhausted(message string) *Error {
	return New(KindResourceExhausted, message)
}

// Internal wraps an unexpected store or collaborator failure.
func Internal(err error, message string) *Error {
	return Wrap(KindInternal, err, message)
}

// KindOf returns the kind of the first *Error in err's chain, INTERNAL otherwise.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Message returns the public message for err. Unknown errors never leak
// their text to the caller.
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal error"
}

// HTTPStatus maps a kind to the response status code.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindUnauthenticated:
		return fiber.StatusUnauthorized
	case KindPermissionDenied:
		return fiber.StatusForbidden
	case KindInvalidArgument:
		return fiber.StatusBadRequest
	case KindNotFound:
		return fiber.StatusNotFound
	case KindAlreadyExists:
		return fiber.StatusConflict
	case KindResourceExhausted:
		return fiber.StatusTooManyRequests
	default:
		return fiber.StatusInternalServerError
	}
}
