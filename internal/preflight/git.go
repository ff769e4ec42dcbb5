package preflight

import (
	"os/exec"
	"strings"
)

// CheckGitBinary verifies that git is installed and runnable. Every
// refresh and branch change shells out to it.
func (c *Checker) CheckGitBinary() CheckResult {
	result := CheckResult{
		Name:     "git_binary",
		Required: true,
	}

	path, err := exec.LookPath("git")
	if err != nil {
		result.Status = StatusFail
		result.Message = "git not found in PATH"
		return result
	}

	out, err := exec.Command(path, "--version").Output()
	if err != nil {
		result.Status = StatusFail
		result.Message = "git --version failed: " + err.Error()
		return result
	}

	result.Status = StatusPass
	result.Message = strings.TrimSpace(string(out))
	result.Details = path
	return result
}
