package errors

import (
	"fmt"
)

// IngestError is the structured error type for the ingestion pipeline.
// It provides rich context for error handling, logging, and the run summary.
type IngestError struct {
	// Code is the unique error code (e.g., "ERR_201_FILE_NOT_FOUND").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Network, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *IngestError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *IngestError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
func (e *IngestError) Is(target error) bool {
	if t, ok := target.(*IngestError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *IngestError) WithDetail(key, value string) *IngestError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *IngestError) WithSuggestion(suggestion string) *IngestError {
	e.Suggestion = suggestion
	return e
}

// New creates a new IngestError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *IngestError {
	return &IngestError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates an IngestError from an existing error.
// The error's message becomes the IngestError message.
func Wrap(code string, err error) *IngestError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error. Fatal at startup.
func ConfigError(message string, cause error) *IngestError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// IOError creates an I/O-related error.
func IOError(message string, cause error) *IngestError {
	return New(ErrCodeFileRead, message, cause)
}

// NetworkError creates a network-related error.
// Network errors are typically retryable.
func NetworkError(message string, cause error) *IngestError {
	return New(ErrCodeNetworkUnavailable, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *IngestError {
	return New(ErrCodeInvalidInput, message, cause)
}

// ParseError creates a parse-related error. The run continues past it.
func ParseError(message string, cause error) *IngestError {
	return New(ErrCodeParseFailed, message, cause)
}

// StorageError creates a vector-store error.
func StorageError(message string, cause error) *IngestError {
	return New(ErrCodeUpsertFailed, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *IngestError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if ie, ok := err.(*IngestError); ok {
		return ie.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the run.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if ie, ok := err.(*IngestError); ok {
		return ie.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from an IngestError.
// Returns empty string if not an IngestError.
func GetCode(err error) string {
	if ie, ok := err.(*IngestError); ok {
		return ie.Code
	}
	return ""
}

// GetCategory extracts the category from an IngestError.
func GetCategory(err error) Category {
	if ie, ok := err.(*IngestError); ok {
		return ie.Category
	}
	return ""
}
