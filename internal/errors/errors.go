package errors

import (
	"errors"
	"fmt"
)

// DocError is the structured error type for docai.
// It carries enough context to decide whether a failure is contained to a
// file, a batch, or the whole run.
type DocError struct {
	// Code is the unique error code (e.g., "ERR_201_FILE_READ").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, External, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *DocError) Error() string {
	if e.Cause != nil && e.Cause.Error() != e.Message {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *DocError) Unwrap() error {
	return e.Cause
}

// Is matches another DocError by code, so errors.Is works against sentinel values.
func (e *DocError) Is(target error) bool {
	if t, ok := target.(*DocError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *DocError) WithDetail(key, value string) *DocError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *DocError) WithSuggestion(suggestion string) *DocError {
	e.Suggestion = suggestion
	return e
}

// New creates a new DocError with the given code and message.
// Category and severity are derived from the code.
func New(code string, message string, cause error) *DocError {
	return &DocError{
		Code:     code,
		Message:  message,
		Category: categoryFromCode(code),
		Severity: severityFromCode(code),
		Cause:    cause,
	}
}

// Wrap creates a DocError from an existing error.
func Wrap(code string, err error) *DocError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a fatal configuration error.
func ConfigError(message string, cause error) *DocError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// IOError creates a read-side I/O error.
func IOError(message string, cause error) *DocError {
	return New(ErrCodeFileRead, message, cause)
}

// ExternalError creates an error for a failing collaborator service.
func ExternalError(code string, message string, cause error) *DocError {
	return New(code, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *DocError {
	return New(ErrCodeInvalidInput, message, cause)
}

// IsFatal reports whether any DocError in the chain has fatal severity.
func IsFatal(err error) bool {
	var de *DocError
	if errors.As(err, &de) {
		return de.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code of the first DocError in the chain.
func GetCode(err error) string {
	var de *DocError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// GetCategory extracts the category of the first DocError in the chain.
func GetCategory(err error) Category {
	var de *DocError
	if errors.As(err, &de) {
		return de.Category
	}
	return ""
}
