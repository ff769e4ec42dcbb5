// Package locks provides the per-repository write-lock registry.
//
// Every mutation of a tracked repository's published state (scheduled
// refresh, branch change) must hold the alias's write lock. Locks are
// process-local and in-memory only: a restart releases everything, which is
// the desired behavior because all on-disk state is republished atomically.
package locks

import (
	"sync"

	hubErrors "github.com/Aman-CERP/amanhub/internal/errors"
)

// Registry grants exclusive, non-reentrant write access per repository alias.
// Acquisition is fail-fast: Acquire never blocks, and WithLock returns a
// lock-held error instead of waiting. Locks for distinct aliases are fully
// independent.
type Registry struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewRegistry creates an empty write-lock registry.
func NewRegistry() *Registry {
	return &Registry{
		held: make(map[string]struct{}),
	}
}

// Acquire attempts to take the write lock for alias without blocking.
// Returns true iff the lock was free; under concurrent callers exactly one
// wins. A second acquire while held returns false, including from the same
// caller (non-reentrant).
func (r *Registry) Acquire(alias string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.held[alias]; taken {
		return false
	}
	r.held[alias] = struct{}{}
	return true
}

// Release frees the write lock for alias. Releasing an alias that is not
// held is a no-op so cleanup paths may double-release safely.
func (r *Registry) Release(alias string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.held, alias)
}

// IsLocked reports whether alias is currently held. This is a point-in-time
// probe and never blocks, even while another caller holds the lock.
func (r *Registry) IsLocked(alias string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, taken := r.held[alias]
	return taken
}

// WithLock runs fn while holding the alias's write lock, releasing it on
// every exit path including panics. If the lock is contended it fails fast
// with a lock-held error and fn is never called.
func (r *Registry) WithLock(alias string, fn func() error) error {
	if !r.Acquire(alias) {
		return hubErrors.LockHeld(alias)
	}
	defer r.Release(alias)

	return fn()
}
