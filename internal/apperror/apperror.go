// Package apperror defines the error vocabulary shared by the service and
// repository layers. Each sentinel names a failure category; the HTTP layer
// maps categories to status codes with errors.Is, so services never import
// net/http and handlers never parse error strings.
package apperror

import (
	"errors"
	"fmt"
)

// Sentinel category errors. Wrap chains are expected: a repository error
// wrapped twice by the service still matches its sentinel via errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation failed")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

// AppError pairs a category sentinel with a message fit for the client.
// Error() returns only Message; the sentinel travels through Unwrap so
// errors.Is can classify without string matching.
type AppError struct {
	Err     error
	Message string
	Field   string // input field at fault, when there is one
}

func (e *AppError) Error() string { return e.Message }

func (e *AppError) Unwrap() error { return e.Err }

// NotFound reports that a resource lookup came up empty.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

// ValidationFailed reports rejected input, naming the offending field.
func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Conflict reports a uniqueness violation, e.g. registering an email that
// another member already uses. Mapped to 409.
func Conflict(field, message string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: message,
		Field:   field,
	}
}

// Forbidden reports that an authenticated caller lacks permission. Mapped
// to 403.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthorized reports failed authentication — bad credentials or a
// missing/expired token. Mapped to 401.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}
