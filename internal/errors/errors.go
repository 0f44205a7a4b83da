package errors

import (
	stderrors "errors"
	"fmt"
)

// ScopeError is the structured error type for CodeScope.
// It provides rich context for error handling, logging, and user presentation.
type ScopeError struct {
	// Code is the unique error code (e.g., "ERR_201_PATH_NOT_FOUND").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Analysis, etc.).
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
func (e *ScopeError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *ScopeError) Unwrap() error {
	return e.Cause
}

// Is matches errors by code, enabling errors.Is() against sentinels
// built with the same code.
func (e *ScopeError) Is(target error) bool {
	if t, ok := target.(*ScopeError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *ScopeError) WithDetail(key, value string) *ScopeError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
// Returns the error for method chaining.
func (e *ScopeError) WithSuggestion(suggestion string) *ScopeError {
	e.Suggestion = suggestion
	return e
}

// New creates a new ScopeError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *ScopeError {
	return &ScopeError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a ScopeError from an existing error.
// The error's message becomes the ScopeError message.
func Wrap(code string, err error) *ScopeError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// PathNotFound reports that the requested ingestion root does not exist.
func PathNotFound(path string) *ScopeError {
	return New(ErrCodePathNotFound, fmt.Sprintf("path not found: %s", path), nil).
		WithDetail("path", path).
		WithSuggestion("check that the directory exists and is readable")
}

// FileLoad reports that a single file could not be read or decoded.
// The ingestion run skips the file and continues.
func FileLoad(path string, cause error) *ScopeError {
	return New(ErrCodeFileLoad, fmt.Sprintf("failed to load file: %s", path), cause).
		WithDetail("path", path)
}

// EntityExtraction reports that structural analysis failed for a file.
// The file still gets indexed, just without entity metadata.
func EntityExtraction(path string, cause error) *ScopeError {
	return New(ErrCodeEntityExtraction, fmt.Sprintf("entity extraction failed: %s", path), cause).
		WithDetail("path", path)
}

// IndexReplace reports that deleting the previous index contents failed.
func IndexReplace(cause error) *ScopeError {
	return New(ErrCodeIndexReplace, "failed to clear previous index contents", cause)
}

// IndexInsert reports that inserting new records into the index failed.
// This is fatal to the ingestion run and may leave a partial index.
func IndexInsert(cause error) *ScopeError {
	return New(ErrCodeIndexInsert, "failed to insert records into index", cause).
		WithSuggestion("re-run ingestion to rebuild the index from scratch")
}

// Retrieval reports that a search operation failed.
func Retrieval(cause error) *ScopeError {
	return New(ErrCodeRetrieval, "retrieval failed", cause)
}

// GenerationUnavailable reports that the answer-generation backend is
// unreachable.
func GenerationUnavailable(cause error) *ScopeError {
	return New(ErrCodeGenerationUnavailable, "generation backend unavailable", cause).
		WithSuggestion("check that the model server is running (e.g. `ollama serve`)")
}

// IsRetryable checks if an error is retryable.
// Returns true if the error is a ScopeError with Retryable flag set.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if se, ok := err.(*ScopeError); ok {
		return se.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current operation.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if se, ok := err.(*ScopeError); ok {
		return se.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a ScopeError.
// Returns empty string if not a ScopeError.
func GetCode(err error) string {
	if se, ok := err.(*ScopeError); ok {
		return se.Code
	}
	return ""
}

// GetCategory extracts the category from a ScopeError.
// Returns empty string if not a ScopeError.
func GetCategory(err error) Category {
	if se, ok := err.(*ScopeError); ok {
		return se.Category
	}
	return ""
}

// CodeIs reports whether any error in the chain is a ScopeError with the
// given code.
func CodeIs(err error, code string) bool {
	var se *ScopeError
	if stderrors.As(err, &se) {
		return se.Code == code
	}
	return false
}
