// Package tarangerr provides the structured error type the core
// surfaces: a typed value with a namespaced code, a category/severity
// classification, a retryable flag, and free-form details.
package tarangerr

import (
	"fmt"
)

// Error is the structured error type returned across the core's package
// boundaries: chunker, indexer, retriever, tool executor, and stream
// client all surface this type (or wrap it) rather than bare errors.
type Error struct {
	// Code is the unique error code (e.g., "ERR_PATH_ESCAPE").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Index, IO, Network, Validation, Internal).
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
func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code, enabling
// errors.Is(err, tarangerr.New(Code, ...)) comparisons.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error. Returns the error for
// method chaining.
func (e *Error) WithDetail(key, value string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *Error) WithSuggestion(suggestion string) *Error {
	e.Suggestion = suggestion
	return e
}

// New creates an Error with the given code and message. Category,
// severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *Error {
	return &Error{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates an Error from an existing error, reusing its message.
func Wrap(code string, err error) *Error {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// NotIndexed reports that a retrieval/search_code call found no valid
// manifest for the project.
func NotIndexed(path string) *Error {
	return New(ErrNotIndexed, fmt.Sprintf("project %q has not been indexed", path), nil).
		WithSuggestion("run the indexer before searching or retrieving")
}

// PathEscape reports that a tool-targeted path resolved outside the
// project root.
func PathEscape(requested string) *Error {
	return New(ErrPathEscape, fmt.Sprintf("path %q escapes the project root", requested), nil).
		WithDetail("path", requested)
}

// NetworkError creates a network-related error. Network errors are
// retryable by default.
func NetworkError(message string, cause error) *Error {
	return New(ErrNetwork, message, cause)
}

// AuthError creates an authentication-related error;
// never retryable - the stream client must not retry a 401.
func AuthError(message string, cause error) *Error {
	return New(ErrAuth, message, cause)
}

// ProtocolError creates a wire-protocol error.
func ProtocolError(message string, cause error) *Error {
	return New(ErrProtocol, message, cause)
}

// StateVersionMismatch reports that a persisted manifest or execution
// state document carries an unknown schema version; callers treat this
// as "absent" and rebuild.
func StateVersionMismatch(path string, got, want int) *Error {
	return New(ErrStateVersionMismatch,
		fmt.Sprintf("%q has schema version %d, expected %d", path, got, want), nil).
		WithDetail("path", path)
}

// NoopEdit reports edit_file's stagnation guard: the proposed
// replacement is identical to the search text after trimming, so
// applying it would change nothing.
func NoopEdit(path string) *Error {
	return New(ErrNoopEdit, "search and replace are identical after trimming whitespace", nil).
		WithDetail("path", path).
		WithDetail("stagnation", "true")
}

// SearchNotFound reports edit_file's pre-flight rejection rule (c): the
// search text is not a substring of the current file content.
func SearchNotFound(path string) *Error {
	return New(ErrSearchNotFound, "search text not found in file", nil).
		WithDetail("path", path).
		WithSuggestion("re-read the file before editing it")
}

// Cancelled reports that the user cancelled the in-flight task.
func Cancelled(taskID string) *Error {
	return New(ErrCancelled, "task cancelled by user", nil).
		WithDetail("task_id", taskID)
}

// TimeoutError reports a per-tool timeout or an expired task deadline.
func TimeoutError(message string) *Error {
	return New(ErrTimeout, message, nil)
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if e, ok := err.(*Error); ok {
		return e.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if e, ok := err.(*Error); ok {
		return e.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from an Error, or "" if err isn't one.
func GetCode(err error) string {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return ""
}

// GetCategory extracts the category from an Error, or "" if err isn't one.
func GetCategory(err error) Category {
	if e, ok := err.(*Error); ok {
		return e.Category
	}
	return ""
}
