package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubError_Unwrap_PreservesOriginalError(t *testing.T) {
	// Given: an original error
	originalErr := errors.New("original error")

	// When: wrapping with HubError
	hubErr := New(ErrCodeFileNotFound, "file not found: test.txt", originalErr)

	// Then: unwrapping returns original error
	require.NotNil(t, hubErr)
	assert.Equal(t, originalErr, errors.Unwrap(hubErr))
	assert.True(t, errors.Is(hubErr, originalErr))
}

func TestHubError_Error_ReturnsFormattedMessage(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		message  string
		expected string
	}{
		{
			name:     "config error",
			code:     ErrCodeConfigNotFound,
			message:  "config file not found",
			expected: "[ERR_101_CONFIG_NOT_FOUND] config file not found",
		},
		{
			name:     "lock error",
			code:     ErrCodeLockHeld,
			message:  "lock held",
			expected: "[ERR_601_LOCK_HELD] lock held",
		},
		{
			name:     "git error",
			code:     ErrCodeGitFetchTransient,
			message:  "connection refused",
			expected: "[ERR_301_GIT_FETCH_TRANSIENT] connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message, nil)
			assert.Equal(t, tt.expected, err.Error())
		})
	}
}

func TestHubError_Is_MatchesByCode(t *testing.T) {
	err1 := New(ErrCodeLockHeld, "lock for a held", nil)
	err2 := New(ErrCodeLockHeld, "lock for b held", nil)

	assert.True(t, errors.Is(err1, err2))

	other := New(ErrCodeRepoNotFound, "unknown alias", nil)
	assert.False(t, errors.Is(err1, other))
}

func TestCategoryFromCode(t *testing.T) {
	tests := []struct {
		code     string
		category Category
	}{
		{ErrCodeConfigInvalid, CategoryConfig},
		{ErrCodeFileNotFound, CategoryIO},
		{ErrCodeGitFetchTransient, CategoryGit},
		{ErrCodeInvalidBranch, CategoryValidation},
		{ErrCodeInternal, CategoryInternal},
		{ErrCodeLockHeld, CategoryConcurrency},
		{ErrCodeDuplicateJob, CategoryConcurrency},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.category, categoryFromCode(tt.code))
		})
	}
}

func TestLockHeld_CarriesAlias(t *testing.T) {
	err := LockHeld("backend")

	assert.True(t, IsLockHeld(err))
	assert.Equal(t, "backend", err.Details["alias"])
	assert.False(t, err.Retryable)
}

func TestDuplicateJob_CarriesExistingJobID(t *testing.T) {
	err := DuplicateJob("change_branch", "backend", "job-123")

	assert.True(t, IsDuplicateJob(err))
	assert.Equal(t, "job-123", ExistingJobID(err))
	assert.Equal(t, "change_branch", err.Details["operation_type"])
}

func TestExistingJobID_EmptyForOtherErrors(t *testing.T) {
	assert.Empty(t, ExistingJobID(RepoNotFound("x")))
	assert.Empty(t, ExistingJobID(errors.New("plain")))
}

func TestRetryable_OnlyTransientGitErrors(t *testing.T) {
	assert.True(t, IsRetryable(New(ErrCodeGitFetchTransient, "refused", nil)))
	assert.False(t, IsRetryable(New(ErrCodeGitFetchCorruption, "bad object", nil)))
	assert.False(t, IsRetryable(New(ErrCodeGitFetchUnknown, "???", nil)))
}

func TestIsFatal_CorruptionIsFatal(t *testing.T) {
	assert.True(t, IsFatal(New(ErrCodeGitFetchCorruption, "pack corrupt", nil)))
	assert.False(t, IsFatal(New(ErrCodeGitFetchTransient, "refused", nil)))
	assert.False(t, IsFatal(errors.New("plain")))
}

func TestStageError_RecordsStage(t *testing.T) {
	cause := errors.New("index build failed")
	err := StageError("index", cause)

	assert.Equal(t, ErrCodePipelineStage, err.Code)
	assert.Equal(t, "index", err.Details["stage"])
	assert.True(t, errors.Is(err, cause))
}
