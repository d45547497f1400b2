package errors

import (
	"fmt"
	"net/http"
)

// default error is internal service error at handler level
// if error has different status code use ErrorWithStatusCode
type ErrorWithStatusCode struct {
	Message    string
	StatusCode int
}

func (e *ErrorWithStatusCode) Error() string {
	return e.Message
}

// Check if err is instance of T for custom error types
func Is[T error](err error) bool {
	if _, ok := err.(T); ok {
		return true
	}
	return false
}

// InvalidInputError: malformed or missing parameters, never retried.
type InvalidInputError struct {
	Message string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("Invalid input: %s", e.Message)
}

func InvalidInput(format string, args ...any) *InvalidInputError {
	return &InvalidInputError{Message: fmt.Sprintf(format, args...)}
}

// NotAllowedError: authorization-level denial, e.g. acting on another
// user's resource.
type NotAllowedError struct {
	Message string
}

func (e *NotAllowedError) Error() string {
	return fmt.Sprintf("Not allowed: %s", e.Message)
}

func NotAllowed(format string, args ...any) *NotAllowedError {
	return &NotAllowedError{Message: fmt.Sprintf(format, args...)}
}

// NotFoundError: referenced entity absent.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string {
	return e.Message
}

func NotFound(format string, args ...any) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ConfirmationExpiredError: TTL lapsed, state purged, terminal.
type ConfirmationExpiredError struct {
	Message string
}

func (e *ConfirmationExpiredError) Error() string {
	return e.Message
}

func ConfirmationExpired(format string, args ...any) *ConfirmationExpiredError {
	return &ConfirmationExpiredError{Message: fmt.Sprintf(format, args...)}
}

// ConfirmationMismatchError: wrong code or action, state preserved so the
// user can retry with the mailed code.
type ConfirmationMismatchError struct {
	Message string
}

func (e *ConfirmationMismatchError) Error() string {
	return e.Message
}

func ConfirmationMismatch(format string, args ...any) *ConfirmationMismatchError {
	return &ConfirmationMismatchError{Message: fmt.Sprintf(format, args...)}
}

// StatusCode maps the error taxonomy to boundary status codes.
func StatusCode(err error) int {
	switch e := err.(type) {
	case *ErrorWithStatusCode:
		return e.StatusCode
	case *InvalidInputError:
		return http.StatusBadRequest
	case *NotAllowedError:
		return http.StatusForbidden
	case *NotFoundError:
		return http.StatusNotFound
	case *ConfirmationMismatchError:
		return http.StatusNotAcceptable
	case *ConfirmationExpiredError:
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}
