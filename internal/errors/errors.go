// Package errors defines the structured error taxonomy shared by the repository,
// the estimation engine and the HTTP handlers.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode classifies an error for programmatic handling.
type ErrorCode string

const (
	// ErrCodeValidation indicates a record is missing required fields or conflicts with another.
	ErrCodeValidation ErrorCode = "VALIDATION"
	// ErrCodeNotFound indicates an operation referenced an unknown id.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeInvalidTransition indicates a lifecycle change that is not allowed.
	ErrCodeInvalidTransition ErrorCode = "INVALID_TRANSITION"
	// ErrCodeInvalidArgument indicates a precondition violation by the caller.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	// ErrCodeInternal indicates a failure of a collaborator such as the database.
	ErrCodeInternal ErrorCode = "INTERNAL"
)

// Sentinels for errors.Is; matching is by code only.
var (
	ErrValidation        = New(ErrCodeValidation, "validation failed")
	ErrNotFound          = New(ErrCodeNotFound, "not found")
	ErrInvalidTransition = New(ErrCodeInvalidTransition, "invalid transition")
	ErrInvalidArgument   = New(ErrCodeInvalidArgument, "invalid argument")
	ErrInternal          = New(ErrCodeInternal, "internal error")
)

// StructuredError carries a code, a human-readable message, an optional cause
// and optional key/value context for logs.
type StructuredError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]any
}

// Error implements the error interface.
func (e *StructuredError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *StructuredError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a StructuredError with the same code.
func (e *StructuredError) Is(target error) bool {
	t, ok := target.(*StructuredError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// New creates a StructuredError with the given code and message.
func New(code ErrorCode, message string) *StructuredError {
	return &StructuredError{Code: code, Message: message}
}

// NewWithContext creates a StructuredError with context information.
func NewWithContext(code ErrorCode, message string, context map[string]any) *StructuredError {
	return &StructuredError{Code: code, Message: message, Context: context}
}

// Wrap wraps an existing error with a code and message.
func Wrap(code ErrorCode, message string, cause error) *StructuredError {
	return &StructuredError{Code: code, Message: message, Cause: cause}
}

// Validation reports missing or conflicting record fields.
func Validation(message string, context map[string]any) *StructuredError {
	return NewWithContext(ErrCodeValidation, message, context)
}

// NotFound reports an unknown id of the given kind ("recipe", "routing template").
func NotFound(kind, id string) *StructuredError {
	return NewWithContext(ErrCodeNotFound, fmt.Sprintf("%s %q not found", kind, id), map[string]any{"id": id})
}

// InvalidTransition reports a rejected lifecycle change.
func InvalidTransition(id string, from, to string) *StructuredError {
	return NewWithContext(ErrCodeInvalidTransition,
		fmt.Sprintf("cannot move %s from %s to %s", id, from, to),
		map[string]any{"id": id, "from": from, "to": to})
}

// InvalidArgument reports a precondition violation.
func InvalidArgument(message string) *StructuredError {
	return New(ErrCodeInvalidArgument, message)
}

// Internal wraps a collaborator failure.
func Internal(message string, cause error) *StructuredError {
	return Wrap(ErrCodeInternal, message, cause)
}

// CodeOf returns the code of the first StructuredError in err's chain, or
// ErrCodeInternal when there is none.
func CodeOf(err error) ErrorCode {
	var structured *StructuredError
	if stderrors.As(err, &structured) {
		return structured.Code
	}
	return ErrCodeInternal
}
