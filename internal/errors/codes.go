// Package errors provides structured error handling for AmanHub.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO errors (file, disk, snapshot)
//   - 3XX: Git errors (fetch, checkout)
//   - 4XX: Validation errors
//   - 5XX: Internal errors
//   - 6XX: Concurrency errors (locks, jobs)
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates file and disk I/O errors.
	CategoryIO Category = "IO"
	// CategoryGit indicates git fetch/checkout errors.
	CategoryGit Category = "GIT"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
	// CategoryConcurrency indicates lock contention and duplicate-job errors.
	CategoryConcurrency Category = "CONCURRENCY"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
	// SeverityInfo indicates informational only.
	SeverityInfo Severity = "INFO"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound   = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid    = "ERR_102_CONFIG_INVALID"
	ErrCodeConfigPermission = "ERR_103_CONFIG_PERMISSION"

	// IO errors (200-299)
	ErrCodeFileNotFound    = "ERR_201_FILE_NOT_FOUND"
	ErrCodeFilePermission  = "ERR_202_FILE_PERMISSION"
	ErrCodeDiskFull        = "ERR_203_DISK_FULL"
	ErrCodeSnapshotCorrupt = "ERR_204_SNAPSHOT_CORRUPT"
	ErrCodePointerCorrupt  = "ERR_205_POINTER_CORRUPT"

	// Git errors (300-399)
	ErrCodeGitFetchTransient  = "ERR_301_GIT_FETCH_TRANSIENT"
	ErrCodeGitFetchCorruption = "ERR_302_GIT_FETCH_CORRUPTION"
	ErrCodeGitFetchUnknown    = "ERR_303_GIT_FETCH_UNKNOWN"
	ErrCodeGitCheckout        = "ERR_304_GIT_CHECKOUT"

	// Validation errors (400-499)
	ErrCodeInvalidInput  = "ERR_401_INVALID_INPUT"
	ErrCodeInvalidBranch = "ERR_402_INVALID_BRANCH"
	ErrCodeRepoNotFound  = "ERR_403_REPO_NOT_FOUND"
	ErrCodeInvalidAlias  = "ERR_404_INVALID_ALIAS"

	// Internal errors (500-599)
	ErrCodeInternal       = "ERR_501_INTERNAL"
	ErrCodeIndexFailed    = "ERR_502_INDEX_FAILED"
	ErrCodeSnapshotFailed = "ERR_503_SNAPSHOT_FAILED"
	ErrCodePipelineStage  = "ERR_504_PIPELINE_STAGE"
	ErrCodeCleanupFailed  = "ERR_505_CLEANUP_FAILED"

	// Concurrency errors (600-699)
	ErrCodeLockHeld     = "ERR_601_LOCK_HELD"
	ErrCodeDuplicateJob = "ERR_602_DUPLICATE_JOB"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Extract numeric portion (e.g., "601" from "ERR_601_LOCK_HELD")
	numStr := code[4:7]
	if len(numStr) < 1 {
		return CategoryInternal
	}

	switch numStr[0] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '3':
		return CategoryGit
	case '4':
		return CategoryValidation
	case '6':
		return CategoryConcurrency
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	// Fatal errors
	switch code {
	case ErrCodeGitFetchCorruption, ErrCodeSnapshotCorrupt, ErrCodeDiskFull:
		return SeverityFatal
	}

	// Retryable errors get warning severity
	if isRetryableCode(code) {
		return SeverityWarning
	}

	// Default to error severity
	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
// Transient git failures are candidates for caller-driven retry; nothing
// in the refresh or branch-change paths retries internally.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeGitFetchTransient:
		return true
	default:
		return false
	}
}
