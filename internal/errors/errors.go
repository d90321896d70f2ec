package errors

import (
	"fmt"
)

// AituError is the structured error type for aiturag.
// It provides rich context for error handling, logging, and user presentation.
type AituError struct {
	// Code is the unique error code (e.g., "ERR_402_INDEX_LOAD").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Ingest, Index, ...).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool
}

// Error implements the error interface.
func (e *AituError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *AituError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with AituError.
func (e *AituError) Is(target error) bool {
	if t, ok := target.(*AituError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *AituError) WithDetail(key, value string) *AituError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a new AituError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *AituError {
	return &AituError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates an AituError from an existing error.
// The error's message becomes the AituError message.
func Wrap(code string, err error) *AituError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if ae, ok := err.(*AituError); ok {
		return ae.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors abort the current operation.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if ae, ok := err.(*AituError); ok {
		return ae.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from an AituError.
// Returns empty string if not an AituError.
func GetCode(err error) string {
	if ae, ok := err.(*AituError); ok {
		return ae.Code
	}
	return ""
}

// GetCategory extracts the category from an AituError.
func GetCategory(err error) Category {
	if ae, ok := err.(*AituError); ok {
		return ae.Category
	}
	return ""
}
