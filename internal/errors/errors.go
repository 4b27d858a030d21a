package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrTypeConnection   ErrorType = "connection"
	ErrTypeEmptySchema  ErrorType = "empty_schema"
	ErrTypeSubstitution ErrorType = "substitution"
	ErrTypeExecution    ErrorType = "execution"
	ErrTypeParse        ErrorType = "parse"
	ErrTypeMapping      ErrorType = "mapping"
	ErrTypeValidation   ErrorType = "validation"
	ErrTypeConfig       ErrorType = "config"
	ErrTypeFileSystem   ErrorType = "filesystem"
	ErrTypeUnsupported  ErrorType = "unsupported"
	ErrTypeInternal     ErrorType = "internal"
)

// Error represents a structured error with type and optional suggestions
type Error struct {
	Type        ErrorType
	Message     string
	Cause       error
	Suggestions []string
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}

	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// WithSuggestion adds a suggestion for resolving the error
func (e *Error) WithSuggestion(suggestion string) *Error {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// New creates a new structured error
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
	}
}

// Newf creates a new structured error with formatted message
func Newf(errType ErrorType, format string, args ...any) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an existing error with formatted message
func Wrapf(err error, errType ErrorType, format string, args ...any) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Cause:   err,
	}
}

// IsType checks if an error is of a specific type
func IsType(err error, errType ErrorType) bool {
	var structErr *Error
	if errors.As(err, &structErr) {
		return structErr.Type == errType
	}

	return false
}

// GetType returns the error type if it's a structured error
func GetType(err error) ErrorType {
	var structErr *Error
	if errors.As(err, &structErr) {
		return structErr.Type
	}

	return ErrTypeInternal
}

// Suggestions collects the suggestions attached anywhere in the error chain.
func Suggestions(err error) []string {
	var out []string
	for err != nil {
		var structErr *Error
		if !errors.As(err, &structErr) {
			break
		}
		out = append(out, structErr.Suggestions...)
		err = structErr.Cause
	}
	return out
}

// NewConnectionError reports a failed connection attempt. The session may retry.
func NewConnectionError(store string, cause error) *Error {
	return Wrapf(cause, ErrTypeConnection, "could not connect to %s", store).
		WithSuggestion("Check the host, credentials and database name, then try again")
}

// NewEmptySchemaError reports a store without any introspectable table or collection.
func NewEmptySchemaError(store string) *Error {
	return Newf(ErrTypeEmptySchema, "no tables or collections found in the %s database", store).
		WithSuggestion("Upload a dataset first")
}
