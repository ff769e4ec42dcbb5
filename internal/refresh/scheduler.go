// Package refresh implements the golden-repository refresh daemon: a single
// background loop that polls tracked repositories on a jittered cadence,
// detects local changes via filesystem mtimes, and republishes snapshots
// copy-on-write.
package refresh

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/Aman-CERP/amanhub/internal/gitops"
	"github.com/Aman-CERP/amanhub/internal/locks"
	"github.com/Aman-CERP/amanhub/internal/pipeline"
	"github.com/Aman-CERP/amanhub/internal/registry"
	"github.com/Aman-CERP/amanhub/internal/snapshot"
)

// Recorder receives one row per executed refresh for the run-history store.
type Recorder interface {
	RecordRun(alias string, startedAt time.Time, duration time.Duration, changed bool, errMsg string) error
}

// Result is the outcome of one refresh attempt. Alias is always set, even
// on partial failure; dashboards key off it.
type Result struct {
	Alias    string
	Skipped  bool
	Changed  bool
	Snapshot string
	Duration time.Duration
	Err      error
}

// Options configures the scheduler.
type Options struct {
	// Interval is the per-repository refresh cadence.
	Interval time.Duration
	// Enabled gates the whole daemon; when false, ticks are no-ops.
	Enabled bool
	// Tick overrides the derived poll interval. Zero means
	// PollInterval(Interval). Tests use short ticks.
	Tick time.Duration
}

// Scheduler is the refresh daemon. One goroutine services all aliases;
// per-alias exclusivity comes from the write-lock registry, not from
// per-alias loops.
type Scheduler struct {
	opts      Options
	registry  *registry.Store
	locks     *locks.Registry
	git       gitops.Operations
	indexer   pipeline.Indexer
	detector  *snapshot.ChangeDetector
	snapshots *snapshot.Store
	cleanup   pipeline.CleanupScheduler
	recorder  Recorder

	mu      sync.Mutex
	dirty   map[string]struct{}
	running bool

	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// NewScheduler creates a refresh scheduler. recorder may be nil.
func NewScheduler(
	opts Options,
	reg *registry.Store,
	lockReg *locks.Registry,
	git gitops.Operations,
	indexer pipeline.Indexer,
	snapshots *snapshot.Store,
	cleanup pipeline.CleanupScheduler,
	recorder Recorder,
) *Scheduler {
	return &Scheduler{
		opts:      opts,
		registry:  reg,
		locks:     lockReg,
		git:       git,
		indexer:   indexer,
		detector:  snapshot.NewChangeDetector(snapshots),
		snapshots: snapshots,
		cleanup:   cleanup,
		recorder:  recorder,
		dirty:     make(map[string]struct{}),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start launches the daemon loop. It is non-blocking; use Stop to shut the
// loop down.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	go s.loop(ctx)
}

// Stop signals the loop to exit and waits for it to finish. In-flight work
// for the current alias completes before the loop exits; the write lock is
// always released.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	if !running {
		return
	}
	s.stopOnce.Do(func() { close(s.stopCh) })
	<-s.doneCh
}

// MarkDirty flags an alias as due on the next tick regardless of its
// next_run. Purely an accelerator: correctness still rests on the mtime
// comparison performed under the write lock.
func (s *Scheduler) MarkDirty(alias string) {
	s.mu.Lock()
	s.dirty[alias] = struct{}{}
	s.mu.Unlock()
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.doneCh)
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	tick := s.opts.Tick
	if tick <= 0 {
		tick = PollInterval(s.opts.Interval)
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	slog.Info("refresh daemon started",
		slog.Duration("interval", s.opts.Interval),
		slog.Duration("tick", tick),
		slog.Bool("enabled", s.opts.Enabled))

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick runs one poll cycle. Per-alias failures are recorded and logged;
// nothing raises out of the loop.
func (s *Scheduler) tick(ctx context.Context) {
	if !s.opts.Enabled {
		return
	}

	repos, err := s.registry.ListRepos()
	if err != nil {
		slog.Error("refresh tick: list repos", slog.String("error", err.Error()))
		return
	}

	now := time.Now()
	for _, repo := range repos {
		due, err := s.isDue(repo.Alias, now)
		if err != nil {
			slog.Error("refresh tick: read tracking",
				slog.String("alias", repo.Alias),
				slog.String("error", err.Error()))
			continue
		}
		if !due {
			continue
		}

		res := s.refreshOne(ctx, repo)
		if res.Skipped {
			slog.Debug("refresh skipped, lock held", slog.String("alias", res.Alias))
			continue
		}
		if res.Err != nil {
			slog.Error("refresh failed",
				slog.String("alias", res.Alias),
				slog.Duration("elapsed", res.Duration),
				slog.String("error", res.Err.Error()))
			continue
		}
		slog.Info("refresh completed",
			slog.String("alias", res.Alias),
			slog.Bool("changed", res.Changed),
			slog.Duration("elapsed", res.Duration))
	}
}

func (s *Scheduler) isDue(alias string, now time.Time) (bool, error) {
	s.mu.Lock()
	_, dirty := s.dirty[alias]
	s.mu.Unlock()
	if dirty {
		return true, nil
	}

	rec, err := s.registry.GetTracking(alias)
	if err != nil {
		return false, err
	}
	if rec == nil {
		// First refresh attempt for this alias.
		return true, nil
	}
	return now.After(rec.NextRun), nil
}

// RefreshAlias refreshes one alias immediately, bypassing the due check.
// Used by the tick loop and by on-demand CLI refreshes.
func (s *Scheduler) RefreshAlias(ctx context.Context, alias string) (Result, error) {
	repo, err := s.registry.GetRepo(alias)
	if err != nil {
		return Result{Alias: alias, Err: err}, err
	}
	res := s.refreshOne(ctx, *repo)
	return res, res.Err
}

// refreshOne performs the locked refresh of a single repository. The lock
// is a pure gate: acquire-or-skip, never wait. It is held across the
// detect/index/snapshot/swap sequence and always released, including on
// failure.
func (s *Scheduler) refreshOne(ctx context.Context, repo registry.TrackedRepo) Result {
	res := Result{Alias: repo.Alias}
	if !s.locks.Acquire(repo.Alias) {
		res.Skipped = true
		return res
	}
	defer s.locks.Release(repo.Alias)

	s.mu.Lock()
	delete(s.dirty, repo.Alias)
	s.mu.Unlock()

	start := time.Now()
	prev, err := s.registry.GetTracking(repo.Alias)
	if err != nil {
		slog.Warn("read refresh tracking",
			slog.String("alias", repo.Alias),
			slog.String("error", err.Error()))
	}
	s.markRunning(repo.Alias, start, prev)

	res.Changed, res.Snapshot, res.Err = s.republish(ctx, repo)
	res.Duration = time.Since(start)

	s.saveTracking(repo.Alias, start, res, prev)

	if s.recorder != nil {
		errMsg := ""
		if res.Err != nil {
			errMsg = res.Err.Error()
		}
		if err := s.recorder.RecordRun(repo.Alias, start, res.Duration, res.Changed, errMsg); err != nil {
			slog.Warn("record refresh run",
				slog.String("alias", repo.Alias),
				slog.String("error", err.Error()))
		}
	}
	return res
}

// republish detects changes and, if any, rebuilds indexes and swaps in a
// fresh snapshot. The superseded snapshot goes to deferred cleanup.
func (s *Scheduler) republish(ctx context.Context, repo registry.TrackedRepo) (bool, string, error) {
	changed, err := s.detector.HasLocalChanges(repo.ClonePath, repo.Alias)
	if err != nil {
		return false, "", err
	}
	if !changed {
		return false, "", nil
	}

	repoDir := filepath.Dir(repo.ClonePath)
	if err := s.indexer.Index(ctx, repoDir); err != nil {
		return true, "", err
	}

	snapPath, err := s.snapshots.CreateSnapshot(repo.Alias, repoDir)
	if err != nil {
		return true, "", err
	}

	old, err := s.snapshots.SwapAlias(repo.Alias, snapPath)
	if err != nil {
		s.cleanup.ScheduleCleanup(snapPath)
		return true, "", err
	}
	s.cleanup.ScheduleCleanup(old)
	return true, snapPath, nil
}

// markRunning publishes an in-progress tracking row so status reporting
// shows a refresh while it runs. next_run and the last published hashes
// carry over from the previous record.
func (s *Scheduler) markRunning(alias string, start time.Time, prev *registry.TrackingRecord) {
	rec := registry.TrackingRecord{
		Alias:   alias,
		LastRun: start,
		NextRun: start.Add(s.opts.Interval + Jitter(s.opts.Interval)),
		Status:  registry.StatusRunning,
	}
	if prev != nil {
		rec.NextRun = prev.NextRun
		rec.CommitHashes = prev.CommitHashes
	}
	if err := s.registry.SaveTracking(rec); err != nil {
		slog.Warn("save refresh tracking",
			slog.String("alias", alias),
			slog.String("error", err.Error()))
	}
}

// saveTracking persists the cycle outcome. next_run advances even on
// failure so one bad cycle never stalls future attempts.
func (s *Scheduler) saveTracking(alias string, start time.Time, res Result, prev *registry.TrackingRecord) {
	rec := registry.TrackingRecord{
		Alias:   alias,
		LastRun: start,
		NextRun: start.Add(s.opts.Interval + Jitter(s.opts.Interval)),
		Status:  registry.StatusCompleted,
	}
	if res.Err != nil {
		rec.Status = registry.StatusFailed
		rec.ErrorMessage = res.Err.Error()
		// A failed cycle published nothing; the hashes of the last
		// successful publication still stand.
		if prev != nil {
			rec.CommitHashes = prev.CommitHashes
		}
	} else {
		rec.CommitHashes = s.commitHashes(alias)
	}

	if err := s.registry.SaveTracking(rec); err != nil {
		slog.Error("save refresh tracking",
			slog.String("alias", alias),
			slog.String("error", err.Error()))
	}
}

// commitHashes records the published HEAD per clone. Best effort: a
// missing hash is an empty map entry, never a failed refresh.
func (s *Scheduler) commitHashes(alias string) map[string]string {
	repo, err := s.registry.GetRepo(alias)
	if err != nil {
		return nil
	}
	head, err := s.git.HeadCommit(repo.ClonePath)
	if err != nil {
		slog.Debug("read head commit",
			slog.String("alias", alias),
			slog.String("error", err.Error()))
		return nil
	}
	return map[string]string{alias: head}
}
