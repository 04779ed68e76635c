// Package errors tests for error kinds and error handling.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

// TestAppError_Error verifies error message formatting.
func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appError *AppError
		want     string
	}{
		{
			name:     "error without underlying error",
			appError: &AppError{Code: ErrInternal, Message: "something failed"},
			want:     "[INTERNAL_ERROR] something failed",
		},
		{
			name:     "error with underlying error",
			appError: &AppError{Code: ErrDatabase, Message: "query failed", Err: errors.New("connection lost")},
			want:     "[DATABASE_ERROR] query failed: connection lost",
		},
		{
			name:     "conflict error",
			appError: &AppError{Code: ErrConflict, Message: "space has children"},
			want:     "[CONFLICT] space has children",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.appError.Error()
			if got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestAppError_Unwrap verifies unwrapping of underlying error.
func TestAppError_Unwrap(t *testing.T) {
	underlyingErr := errors.New("underlying error")

	err := Wrap(ErrDatabase, "failed", underlyingErr)
	if err.Unwrap() != underlyingErr {
		t.Errorf("Unwrap() = %v, want %v", err.Unwrap(), underlyingErr)
	}
	if New(ErrInternal, "failed").Unwrap() != nil {
		t.Error("Unwrap() without underlying error should be nil")
	}
}

// TestKindConstructors verifies the business error constructors.
func TestKindConstructors(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		code ErrorCode
		msg  string
	}{
		{"not found", NotFound("space %s not found", "abc"), ErrNotFound, "space abc not found"},
		{"conflict", Conflict("item %s already lent", "i1"), ErrConflict, "item i1 already lent"},
		{"validation", Validation("owner is required"), ErrValidation, "owner is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("Code = %q, want %q", tt.err.Code, tt.code)
			}
			if tt.err.Message != tt.msg {
				t.Errorf("Message = %q, want %q", tt.err.Message, tt.msg)
			}
		})
	}
}

// TestIs verifies error code checking, including wrapped chains.
func TestIs(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code ErrorCode
		want bool
	}{
		{"matching AppError", NotFound("missing"), ErrNotFound, true},
		{"non-matching AppError", NotFound("missing"), ErrConflict, false},
		{"wrapped with fmt", fmt.Errorf("move: %w", Conflict("cycle")), ErrConflict, true},
		{"non-AppError", errors.New("standard error"), ErrInternal, false},
		{"nil error", nil, ErrInternal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.want {
				t.Errorf("Is() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestCodeOf verifies code extraction falls back to internal.
func TestCodeOf(t *testing.T) {
	if got := CodeOf(fmt.Errorf("ctx: %w", Validation("bad"))); got != ErrValidation {
		t.Errorf("CodeOf() = %q, want %q", got, ErrValidation)
	}
	if got := CodeOf(errors.New("plain")); got != ErrInternal {
		t.Errorf("CodeOf() = %q, want %q", got, ErrInternal)
	}
}

// TestErrorCodes_areUnique verifies all error codes are unique and uppercase.
func TestErrorCodes_areUnique(t *testing.T) {
	codes := []ErrorCode{
		ErrNotFound, ErrConflict, ErrValidation,
		ErrInternal, ErrDatabase, ErrMigration, ErrConstraint, ErrConfig,
		ErrSweepFailed,
	}

	seen := make(map[ErrorCode]bool)
	for _, code := range codes {
		if seen[code] {
			t.Errorf("ErrorCode %q is duplicated", code)
		}
		seen[code] = true
		if string(code) != strings.ToUpper(string(code)) {
			t.Errorf("ErrorCode %q should be uppercase", code)
		}
	}
}
