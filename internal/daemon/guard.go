// Package daemon holds process-level plumbing for the amanhub refresh
// daemon: the single-instance guard and the PID file.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// InstanceGuard prevents two amanhub daemons from serving the same data
// directory. It is a cross-process advisory file lock; a second `serve`
// fails fast instead of corrupting shared state.
type InstanceGuard struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewInstanceGuard creates a guard over the given lock file path.
func NewInstanceGuard(path string) *InstanceGuard {
	return &InstanceGuard{
		path:  path,
		flock: flock.New(path),
	}
}

// Path returns the lock file path.
func (g *InstanceGuard) Path() string {
	return g.path
}

// TryAcquire attempts the lock without blocking. False means another
// daemon already owns this data directory.
func (g *InstanceGuard) TryAcquire() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(g.path), 0o755); err != nil {
		return false, fmt.Errorf("create lock directory: %w", err)
	}
	acquired, err := g.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("acquire daemon lock: %w", err)
	}
	g.locked = acquired
	return acquired, nil
}

// Release unlocks and removes the lock file. Safe to call when the lock
// was never acquired.
func (g *InstanceGuard) Release() error {
	if !g.locked {
		return nil
	}
	g.locked = false
	if err := g.flock.Unlock(); err != nil {
		return fmt.Errorf("release daemon lock: %w", err)
	}
	_ = os.Remove(g.path)
	return nil
}
