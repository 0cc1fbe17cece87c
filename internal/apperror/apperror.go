package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrValidation      = errors.New("validation failed")
	ErrDuplicate       = errors.New("duplicate")
	ErrConflict        = errors.New("conflict")
	ErrInvalidCreds    = errors.New("invalid credentials")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrProvider        = errors.New("provider error")
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
	Code    string // Optional: coarse machine-readable code (used on OAuth redirects)
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Duplicate reports a uniqueness violation on a specific field, e.g. a
// registration attempt with an email that already has an account.
func Duplicate(field, message string) *AppError {
	return &AppError{
		Err:     ErrDuplicate,
		Message: message,
		Field:   field,
	}
}

// Conflict reports a concurrent-write conflict: a save lost the race against
// another request mutating the same record.
func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// InvalidCredentials is returned for every local login failure — unknown
// email, provider-only account, or wrong password. The message is identical
// in all three cases so the response never reveals which part was wrong.
func InvalidCredentials() *AppError {
	return &AppError{
		Err:     ErrInvalidCreds,
		Message: "invalid credentials",
	}
}

// Unauthenticated reports a request that requires a valid platform identity
// but carried none, or carried an invalid/expired token.
func Unauthenticated(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthenticated,
		Message: message,
	}
}

// Provider reports an upstream OAuth provider failure. Code is the coarse
// identifier forwarded to the client on the failure redirect; Message holds
// the detail that is logged server-side and never leaves the server.
func Provider(code, message string) *AppError {
	return &AppError{
		Err:     ErrProvider,
		Message: message,
		Code:    code,
	}
}
