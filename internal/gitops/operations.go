// Package gitops wraps the git invocations the lifecycle orchestrator
// depends on. The Operations interface allows mocking git in tests.
package gitops

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"
)

// Operations defines the git surface consumed by the refresh scheduler and
// the branch-change pipeline.
type Operations interface {
	// Clone creates a fresh clone of url at clonePath, checked out to
	// branch when non-empty.
	Clone(url, clonePath, branch string) error

	// CurrentBranch returns the checked-out branch of the clone.
	// For detached HEAD, returns "detached-{short-hash}".
	CurrentBranch(clonePath string) (string, error)

	// Fetch updates remote refs. Failures are classified (corruption,
	// transient, unknown) from git's stderr.
	Fetch(clonePath, remote string) error

	// CheckoutAndPull checks out branch and fast-forwards it from its
	// upstream.
	CheckoutAndPull(clonePath, branch string) error

	// LsFiles lists the files tracked on branch, relative to the clone root.
	LsFiles(clonePath, branch string) ([]string, error)

	// HeadCommit returns the full commit hash of HEAD.
	HeadCommit(clonePath string) (string, error)
}

// gitOps is the real implementation using exec.Command.
type gitOps struct{}

// NewOperations returns the default git operations implementation.
func NewOperations() Operations {
	return &gitOps{}
}

// run executes git with the given args in dir, returning stdout.
// stderr is captured separately for error classification.
func run(dir string, args ...string) (string, string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

func (g *gitOps) Clone(url, clonePath, branch string) error {
	args := []string{"clone", url, clonePath}
	if branch != "" {
		args = []string{"clone", "--branch", branch, url, clonePath}
	}
	if _, stderr, err := run(".", args...); err != nil {
		return ClassifyFetchError(stderr, err)
	}
	return nil
}

func (g *gitOps) CurrentBranch(clonePath string) (string, error) {
	out, _, err := run(clonePath, "branch", "--show-current")
	branch := strings.TrimSpace(out)
	if err == nil && branch != "" {
		return branch, nil
	}

	// Might be detached HEAD
	out, stderr, err := run(clonePath, "rev-parse", "--short", "HEAD")
	if err != nil {
		return "", fmt.Errorf("resolve current branch: %s: %w", strings.TrimSpace(stderr), err)
	}
	return "detached-" + strings.TrimSpace(out), nil
}

func (g *gitOps) Fetch(clonePath, remote string) error {
	if remote == "" {
		remote = "origin"
	}
	_, stderr, err := run(clonePath, "fetch", remote, "--prune")
	if err != nil {
		return ClassifyFetchError(stderr, err)
	}
	return nil
}

func (g *gitOps) CheckoutAndPull(clonePath, branch string) error {
	if _, stderr, err := run(clonePath, "checkout", branch); err != nil {
		return fmt.Errorf("checkout %s: %s: %w", branch, strings.TrimSpace(stderr), err)
	}
	if _, stderr, err := run(clonePath, "pull", "--ff-only"); err != nil {
		return fmt.Errorf("pull %s: %s: %w", branch, strings.TrimSpace(stderr), err)
	}
	return nil
}

func (g *gitOps) LsFiles(clonePath, branch string) ([]string, error) {
	out, stderr, err := run(clonePath, "ls-files", "--with-tree", branch)
	if err != nil {
		return nil, fmt.Errorf("ls-files %s: %s: %w", branch, strings.TrimSpace(stderr), err)
	}

	var files []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		files = append(files, line)
	}
	return files, nil
}

func (g *gitOps) HeadCommit(clonePath string) (string, error) {
	out, stderr, err := run(clonePath, "rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("rev-parse HEAD: %s: %w", strings.TrimSpace(stderr), err)
	}
	return strings.TrimSpace(out), nil
}
