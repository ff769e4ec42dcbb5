package snapshot

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// CleanupManager deletes superseded snapshots after a grace period so
// in-flight readers of the old snapshot are never disrupted by a swap.
// Deletion is deferred, never synchronous with the swap.
//
// The in-memory queue is only a hint: every sweep also scans the store
// for version directories no alias points at, so snapshots superseded by
// a process that has since exited are still reclaimed once their grace
// period elapses.
type CleanupManager struct {
	store *Store
	grace time.Duration
	tick  time.Duration

	mu      sync.Mutex
	pending []pendingDelete

	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

type pendingDelete struct {
	path  string
	after time.Time
}

// NewCleanupManager creates a cleanup manager over store. grace is how
// long a superseded snapshot survives after being scheduled; tick is the
// sweep interval.
func NewCleanupManager(store *Store, grace, tick time.Duration) *CleanupManager {
	if tick <= 0 {
		tick = 30 * time.Second
	}
	return &CleanupManager{
		store: store,
		grace: grace,
		tick:  tick,
	}
}

// ScheduleCleanup queues path for deletion once the grace period elapses.
// Safe to call before Start; queued entries are swept once running.
func (c *CleanupManager) ScheduleCleanup(path string) {
	if path == "" {
		return
	}
	now := time.Now()

	// Stamp the supersession time onto the directory itself, so a sweep
	// in a later process still honors the grace period.
	_ = os.Chtimes(path, now, now)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.pending = append(c.pending, pendingDelete{
		path:  path,
		after: now.Add(c.grace),
	})
	slog.Debug("snapshot cleanup scheduled",
		slog.String("path", path),
		slog.Duration("grace", c.grace))
}

// PendingCount returns the number of queued deletions.
func (c *CleanupManager) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Start launches the background sweep loop.
func (c *CleanupManager) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.tick)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.sweep()
			}
		}
	}()
}

// Stop signals the sweep loop to exit and waits for it.
func (c *CleanupManager) Stop() {
	c.stopOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		c.wg.Wait()
	})
}

// SweepNow runs one sweep synchronously. One-shot commands use it before
// exiting, since their process will not live through the grace period.
func (c *CleanupManager) SweepNow() {
	c.sweep()
}

// sweep deletes every queued snapshot whose grace period has elapsed.
func (c *CleanupManager) sweep() {
	now := time.Now()

	c.mu.Lock()
	var due []string
	var keep []pendingDelete
	for _, p := range c.pending {
		if now.After(p.after) {
			due = append(due, p.path)
		} else {
			keep = append(keep, p)
		}
	}
	c.pending = keep
	c.mu.Unlock()

	for _, path := range due {
		c.remove(path)
	}

	c.sweepOrphans(now)
}

// sweepOrphans reclaims version directories no alias points at once they
// are older than the grace period. This is what recovers snapshots whose
// scheduling process exited before their grace period elapsed.
func (c *CleanupManager) sweepOrphans(now time.Time) {
	if c.store == nil {
		return
	}

	aliases, err := os.ReadDir(c.store.root)
	if err != nil {
		return
	}
	for _, entry := range aliases {
		if !entry.IsDir() {
			continue
		}
		alias := entry.Name()
		active, _ := c.store.ActiveSnapshot(alias)
		latest, _, _ := c.store.LatestTimestamp(alias)

		snaps, err := c.store.Snapshots(alias)
		if err != nil {
			continue
		}
		for _, path := range snaps {
			if path == active {
				continue
			}
			// The newest snapshot may be mid-publication: created but not
			// yet swapped in. It becomes eligible once something supersedes it.
			if filepath.Base(path) == versionPrefix+strconv.FormatInt(latest, 10) {
				continue
			}
			info, err := os.Stat(path)
			if err != nil || now.Sub(info.ModTime()) < c.grace {
				continue
			}
			c.remove(path)
		}
	}
}

func (c *CleanupManager) remove(path string) {
	if err := os.RemoveAll(path); err != nil {
		slog.Warn("snapshot cleanup failed",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return
	}
	slog.Info("snapshot removed", slog.String("path", path))
}
