// Package pipeline implements the branch-change pipeline: repointing a
// golden repository's active branch and republishing its snapshot without
// ever exposing a half-built state.
package pipeline

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	hubErrors "github.com/Aman-CERP/amanhub/internal/errors"
	"github.com/Aman-CERP/amanhub/internal/fts"
	"github.com/Aman-CERP/amanhub/internal/gitops"
	"github.com/Aman-CERP/amanhub/internal/jobs"
	"github.com/Aman-CERP/amanhub/internal/locks"
	"github.com/Aman-CERP/amanhub/internal/registry"
	"github.com/Aman-CERP/amanhub/internal/snapshot"
)

// OperationChangeBranch is the job operation type for branch changes.
const OperationChangeBranch = "change_branch"

// Stage names, in execution order. Failure at any stage aborts the whole
// change; no stage is retried individually.
const (
	StageFetch     = "fetch_and_validate"
	StageCheckout  = "checkout_and_pull"
	StageIndex     = "index"
	StageSnapshot  = "cow_snapshot"
	StageIsolation = "fts_branch_isolation_cleanup"
	StageSwap      = "swap_alias"
)

// Indexer is the external index builder collaborator. It rebuilds the
// repo's indexes from the checked-out tree under repoDir.
type Indexer interface {
	Index(ctx context.Context, repoDir string) error
}

// CleanupScheduler receives superseded snapshots for deferred deletion.
type CleanupScheduler interface {
	ScheduleCleanup(path string)
}

// ChangeResult reports the outcome of ChangeBranchAsync. JobID is empty on
// the no-op fast path (the repository was already on the target branch).
type ChangeResult struct {
	JobID   string
	Success bool
}

// Pipeline wires the collaborators of a branch change.
type Pipeline struct {
	registry  *registry.Store
	locks     *locks.Registry
	git       gitops.Operations
	indexer   Indexer
	fts       fts.Engine
	snapshots *snapshot.Store
	cleanup   CleanupScheduler
	submitter jobs.Submitter
}

// New creates a branch-change pipeline.
func New(
	reg *registry.Store,
	lockReg *locks.Registry,
	git gitops.Operations,
	indexer Indexer,
	engine fts.Engine,
	snapshots *snapshot.Store,
	cleanup CleanupScheduler,
	submitter jobs.Submitter,
) *Pipeline {
	return &Pipeline{
		registry:  reg,
		locks:     lockReg,
		git:       git,
		indexer:   indexer,
		fts:       engine,
		snapshots: snapshots,
		cleanup:   cleanup,
		submitter: submitter,
	}
}

// ChangeBranchAsync validates the request and submits a background job
// running the synchronous pipeline.
//
// Fast path: if the repository is already on targetBranch the call returns
// success with no job id, without touching the write lock or the job
// system. Malformed branch names and unknown aliases fail before any job is
// created; a concurrent in-flight change for the alias surfaces as a
// duplicate-job error carrying the existing job id.
func (p *Pipeline) ChangeBranchAsync(alias, targetBranch, submitter string) (ChangeResult, error) {
	if !gitops.ValidBranchName(targetBranch) {
		return ChangeResult{}, hubErrors.InvalidBranch(targetBranch)
	}

	repo, err := p.registry.GetRepo(alias)
	if err != nil {
		return ChangeResult{}, err
	}

	current, err := p.git.CurrentBranch(repo.ClonePath)
	if err == nil && current == targetBranch {
		return ChangeResult{Success: true}, nil
	}

	jobID, err := p.submitter.Submit(OperationChangeBranch, alias, submitter, &BranchChangeCommand{
		Pipeline:     p,
		Alias:        alias,
		TargetBranch: targetBranch,
	})
	if err != nil {
		return ChangeResult{}, err
	}
	return ChangeResult{JobID: jobID, Success: true}, nil
}

// ChangeBranch runs the synchronous pipeline under the alias's write lock.
// The previously published snapshot stays fully intact and serving until the
// final swap; a failure at any stage leaves it untouched.
func (p *Pipeline) ChangeBranch(ctx context.Context, alias, targetBranch string) error {
	return p.locks.WithLock(alias, func() error {
		return p.run(ctx, alias, targetBranch)
	})
}

func (p *Pipeline) run(ctx context.Context, alias, targetBranch string) error {
	start := time.Now()
	repo, err := p.registry.GetRepo(alias)
	if err != nil {
		return err
	}
	repoDir := filepath.Dir(repo.ClonePath)

	// Stage 1: fetch remote refs. Failures come back already classified
	// (corruption / transient / unknown).
	if err := p.git.Fetch(repo.ClonePath, "origin"); err != nil {
		return err
	}

	// Stage 2: point the base clone at the target branch.
	if err := p.git.CheckoutAndPull(repo.ClonePath, targetBranch); err != nil {
		return hubErrors.StageError(StageCheckout, err)
	}

	// Stage 3: rebuild indexes from the checked-out tree.
	if err := p.indexer.Index(ctx, repoDir); err != nil {
		return hubErrors.StageError(StageIndex, err)
	}

	// Stage 4: copy-on-write snapshot of the indexed state.
	snapPath, err := p.snapshots.CreateSnapshot(alias, repoDir)
	if err != nil {
		return hubErrors.StageError(StageSnapshot, err)
	}

	// Stage 5: prune the snapshot's own index copy down to the files that
	// actually exist on the target branch. This must run against the copy,
	// after the CoW: the index commit may not have fully persisted to the
	// base clone's segment files when the copy was taken.
	if err := p.isolate(snapPath, repo.ClonePath, targetBranch); err != nil {
		p.cleanup.ScheduleCleanup(snapPath)
		return hubErrors.StageError(StageIsolation, err)
	}

	// Stage 6: the sole externally observable commit point.
	old, err := p.snapshots.SwapAlias(alias, snapPath)
	if err != nil {
		p.cleanup.ScheduleCleanup(snapPath)
		return hubErrors.StageError(StageSwap, err)
	}
	p.cleanup.ScheduleCleanup(old)

	if err := p.registry.SetDefaultBranch(alias, targetBranch); err != nil {
		// The swap already happened; record the mismatch loudly rather than
		// pretending the change failed.
		slog.Error("branch recorded out of sync with published snapshot",
			slog.String("alias", alias),
			slog.String("branch", targetBranch),
			slog.String("error", err.Error()))
	}

	slog.Info("branch change published",
		slog.String("alias", alias),
		slog.String("branch", targetBranch),
		slog.String("snapshot", snapPath),
		slog.Duration("elapsed", time.Since(start)))
	return nil
}

// isolate removes documents for files absent from the target branch from
// the snapshot's index copy, committing once.
func (p *Pipeline) isolate(snapPath, clonePath, targetBranch string) error {
	onBranch, err := p.git.LsFiles(clonePath, targetBranch)
	if err != nil {
		return err
	}
	keep := make(map[string]struct{}, len(onBranch))
	for _, f := range onBranch {
		keep[f] = struct{}{}
	}

	indexDir := filepath.Join(snapPath, snapshot.FtsDirName)
	indexed, err := p.fts.ListIndexedPaths(indexDir)
	if err != nil {
		return err
	}

	for _, doc := range indexed {
		if _, ok := keep[doc]; !ok {
			if err := p.fts.DeleteDocument(indexDir, doc); err != nil {
				return err
			}
		}
	}
	return p.fts.Commit(indexDir)
}
