package gitops

import (
	"strings"

	hubErrors "github.com/Aman-CERP/amanhub/internal/errors"
)

// corruptionPatterns are stderr fragments that indicate a damaged object
// store or packfile. Corruption is fatal for the attempt: re-fetching will
// not help until the clone is repaired or recreated.
var corruptionPatterns = []string{
	"could not read",
	"unresolved deltas",
	"invalid index-pack",
	"loose object is corrupt",
	"packfile",
	"bad object",
}

// transientPatterns are stderr fragments for network and auth failures that
// a caller may reasonably retry.
var transientPatterns = []string{
	"connection refused",
	"connection timed out",
	"could not resolve host",
	"authentication failed",
	"ssl",
	"tls",
	"early eof",
	"remote end hung up",
}

// ClassifyFetchError turns a failed git fetch into a structured error with
// a corruption, transient, or unknown category based on stderr contents.
func ClassifyFetchError(stderr string, cause error) *hubErrors.HubError {
	lower := strings.ToLower(stderr)

	for _, p := range corruptionPatterns {
		if strings.Contains(lower, p) {
			return hubErrors.New(hubErrors.ErrCodeGitFetchCorruption, strings.TrimSpace(stderr), cause).
				WithDetail("pattern", p).
				WithSuggestion("the clone's object store is damaged; re-clone or run git fsck")
		}
	}

	for _, p := range transientPatterns {
		if strings.Contains(lower, p) {
			return hubErrors.New(hubErrors.ErrCodeGitFetchTransient, strings.TrimSpace(stderr), cause).
				WithDetail("pattern", p)
		}
	}

	return hubErrors.New(hubErrors.ErrCodeGitFetchUnknown, strings.TrimSpace(stderr), cause)
}

// ValidBranchName checks a branch name against the git ref-name rules we
// care about before any job is created. This rejects the obviously
// malformed names; git itself remains the final arbiter at checkout.
func ValidBranchName(branch string) bool {
	if branch == "" || len(branch) > 255 {
		return false
	}
	if strings.HasPrefix(branch, "-") || strings.HasPrefix(branch, "/") || strings.HasSuffix(branch, "/") {
		return false
	}
	if strings.HasSuffix(branch, ".lock") || strings.HasSuffix(branch, ".") {
		return false
	}
	if strings.Contains(branch, "..") || strings.Contains(branch, "//") || strings.Contains(branch, "@{") {
		return false
	}

	for _, r := range branch {
		switch {
		case r <= 0x20 || r == 0x7f:
			return false
		case strings.ContainsRune("~^:?*[\\", r):
			return false
		}
	}
	return true
}
