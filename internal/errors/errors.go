package errors

import (
	"fmt"
)

// HubError is the structured error type for AmanHub.
// It provides rich context for error handling, logging, and user presentation.
type HubError struct {
	// Code is the unique error code (e.g., "ERR_601_LOCK_HELD").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Git, etc.).
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
func (e *HubError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *HubError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with HubError.
func (e *HubError) Is(target error) bool {
	if t, ok := target.(*HubError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *HubError) WithDetail(key, value string) *HubError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
// Returns the error for method chaining.
func (e *HubError) WithSuggestion(suggestion string) *HubError {
	e.Suggestion = suggestion
	return e
}

// New creates a new HubError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *HubError {
	return &HubError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a HubError from an existing error.
// The error's message becomes the HubError message.
func Wrap(code string, err error) *HubError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// LockHeld creates the error returned when a repository's write lock is
// already held by another writer. Callers are expected to back off and
// retry on their own schedule; the lock registry never blocks.
func LockHeld(alias string) *HubError {
	return New(ErrCodeLockHeld, fmt.Sprintf("write lock for %q is held by another writer", alias), nil).
		WithDetail("alias", alias)
}

// DuplicateJob creates the error returned when a background job of the same
// operation type is already in flight for the alias. The existing job's id
// travels in the error details so callers can report or await it.
func DuplicateJob(operationType, alias, existingJobID string) *HubError {
	return New(ErrCodeDuplicateJob,
		fmt.Sprintf("a %s job for %q is already in flight (job %s)", operationType, alias, existingJobID), nil).
		WithDetail("alias", alias).
		WithDetail("operation_type", operationType).
		WithDetail("job_id", existingJobID)
}

// RepoNotFound creates the error returned for an unknown repository alias.
func RepoNotFound(alias string) *HubError {
	return New(ErrCodeRepoNotFound, fmt.Sprintf("no tracked repository with alias %q", alias), nil).
		WithDetail("alias", alias)
}

// InvalidBranch creates the error returned for a malformed branch name.
func InvalidBranch(branch string) *HubError {
	return New(ErrCodeInvalidBranch, fmt.Sprintf("invalid branch name %q", branch), nil).
		WithDetail("branch", branch)
}

// StageError creates a pipeline stage failure wrapping the stage's error.
func StageError(stage string, err error) *HubError {
	return Wrap(ErrCodePipelineStage, err).WithDetail("stage", stage)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *HubError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *HubError {
	return New(ErrCodeInternal, message, cause)
}

// IsLockHeld reports whether err is a lock-contention error.
func IsLockHeld(err error) bool {
	return GetCode(err) == ErrCodeLockHeld
}

// IsDuplicateJob reports whether err is a duplicate-job error.
func IsDuplicateJob(err error) bool {
	return GetCode(err) == ErrCodeDuplicateJob
}

// IsNotFound reports whether err is an unknown-alias error.
func IsNotFound(err error) bool {
	return GetCode(err) == ErrCodeRepoNotFound
}

// ExistingJobID extracts the in-flight job id from a duplicate-job error.
// Returns empty string for any other error.
func ExistingJobID(err error) string {
	he, ok := err.(*HubError)
	if !ok || he.Code != ErrCodeDuplicateJob {
		return ""
	}
	return he.Details["job_id"]
}

// IsRetryable checks if an error is retryable.
// Returns true if the error is a HubError with Retryable flag set.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if he, ok := err.(*HubError); ok {
		return he.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current operation.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if he, ok := err.(*HubError); ok {
		return he.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a HubError.
// Returns empty string if not a HubError.
func GetCode(err error) string {
	if he, ok := err.(*HubError); ok {
		return he.Code
	}
	return ""
}

// GetCategory extracts the category from a HubError.
// Returns empty string if not a HubError.
func GetCategory(err error) Category {
	if he, ok := err.(*HubError); ok {
		return he.Category
	}
	return ""
}
