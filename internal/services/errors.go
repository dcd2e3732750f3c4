package services

import "errors"

// Failure kinds. Every error returned by a service wraps exactly one of these.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInternal     = errors.New("internal error")
)

var (
	ErrEmailTaken          = newError(ErrConflict, "email already registered")
	ErrNoPrincipal         = newError(ErrUnauthorized, "unauthorized")
	ErrInvalidCredentials  = newError(ErrUnauthorized, "invalid email or password")
	ErrTokenRequired       = newError(ErrBadRequest, "refresh token is required")
	ErrInvalidRefreshToken = newError(ErrUnauthorized, "invalid or expired refresh token")
	ErrSessionNotFound     = newError(ErrNotFound, "session not found")
	ErrUserNotFound        = newError(ErrNotFound, "user not found")
	ErrCourseNotFound      = newError(ErrNotFound, "course not found")
	ErrAlreadyEnrolled     = newError(ErrConflict, "student is already enrolled in this course")
)

// Error carries a caller-safe message, its kind, and an optional cause that
// is only meant for server-side logs.
type Error struct {
	kind  error
	msg   string
	cause error
}

func newError(kind error, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

func invalid(msg string) *Error {
	return &Error{kind: ErrBadRequest, msg: msg}
}

func internal(msg string, cause error) *Error {
	return &Error{kind: ErrInternal, msg: msg, cause: cause}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.msg + ": " + e.cause.Error()
	}
	return e.msg
}

// Message is the text safe to return to a client.
func (e *Error) Message() string { return e.msg }

func (e *Error) Unwrap() []error {
	if e.cause != nil {
		return []error{e.kind, e.cause}
	}
	return []error{e.kind}
}

// PublicMessage returns the caller-safe text for err.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message()
	}
	return "internal server error"
}
