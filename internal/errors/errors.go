// Package errors provides the typed error kinds surfaced by the inventory core.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode identifies the kind of failure. The API layer maps codes to
// transport statuses; the core only guarantees the right code is set.
type ErrorCode string

const (
	// Business errors
	ErrNotFound   ErrorCode = "NOT_FOUND"
	ErrConflict   ErrorCode = "CONFLICT"
	ErrValidation ErrorCode = "VALIDATION_ERROR"

	// Infrastructure errors
	ErrInternal   ErrorCode = "INTERNAL_ERROR"
	ErrDatabase   ErrorCode = "DATABASE_ERROR"
	ErrMigration  ErrorCode = "MIGRATION_FAILED"
	ErrConstraint ErrorCode = "CONSTRAINT_VIOLATION"
	ErrConfig     ErrorCode = "CONFIG_INVALID"

	// Scheduler errors
	ErrSweepFailed ErrorCode = "SWEEP_FAILED"
)

// AppError represents an application error with code and message.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an error code.
func Wrap(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NotFound reports a missing node, record or item.
func NotFound(format string, args ...interface{}) *AppError {
	return New(ErrNotFound, fmt.Sprintf(format, args...))
}

// Conflict reports a request that would break a structural or lifecycle invariant.
func Conflict(format string, args ...interface{}) *AppError {
	return New(ErrConflict, fmt.Sprintf(format, args...))
}

// Validation reports malformed input, including a missing owner scope.
func Validation(format string, args ...interface{}) *AppError {
	return New(ErrValidation, fmt.Sprintf(format, args...))
}

// Is checks if an error, or any error it wraps, carries the given code.
func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// CodeOf returns the code of the first AppError in the chain, or ErrInternal.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}
