package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	hubErrors "github.com/Aman-CERP/amanhub/internal/errors"
	"github.com/Aman-CERP/amanhub/internal/fts"
	"github.com/Aman-CERP/amanhub/internal/gitops"
	"github.com/Aman-CERP/amanhub/internal/jobs"
	"github.com/Aman-CERP/amanhub/internal/locks"
	"github.com/Aman-CERP/amanhub/internal/registry"
	"github.com/Aman-CERP/amanhub/internal/snapshot"
)

// recordingEngine wraps a real Bleve engine and records call order so tests
// can assert the isolation stage runs against the snapshot's copy.
type recordingEngine struct {
	inner    fts.Engine
	mu       sync.Mutex
	calls    []string
	listDirs []string
	commits  int
	onCommit func()
}

func (r *recordingEngine) ListIndexedPaths(dir string) ([]string, error) {
	r.mu.Lock()
	r.calls = append(r.calls, "list")
	r.listDirs = append(r.listDirs, dir)
	r.mu.Unlock()
	return r.inner.ListIndexedPaths(dir)
}

func (r *recordingEngine) DeleteDocument(dir, path string) error {
	r.mu.Lock()
	r.calls = append(r.calls, "delete:"+path)
	r.mu.Unlock()
	return r.inner.DeleteDocument(dir, path)
}

func (r *recordingEngine) Commit(dir string) error {
	r.mu.Lock()
	r.calls = append(r.calls, "commit")
	r.commits++
	hook := r.onCommit
	r.mu.Unlock()
	if hook != nil {
		hook()
	}
	return r.inner.Commit(dir)
}

// recordingCleanup collects scheduled paths instead of deleting.
type recordingCleanup struct {
	mu    sync.Mutex
	paths []string
}

func (r *recordingCleanup) ScheduleCleanup(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if path != "" {
		r.paths = append(r.paths, path)
	}
}

// recordingSubmitter fails or records without running anything.
type recordingSubmitter struct {
	submitted []string
	err       error
}

func (r *recordingSubmitter) Submit(op, alias, submitter string, cmd jobs.Command) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	r.submitted = append(r.submitted, op+"/"+alias)
	return "job-1", nil
}

type testEnv struct {
	pipeline  *Pipeline
	registry  *registry.Store
	locks     *locks.Registry
	git       *gitops.MockOperations
	engine    *recordingEngine
	snapshots *snapshot.Store
	cleanup   *recordingCleanup
	repoDir   string
}

// newTestEnv builds a pipeline over a real snapshot store, a real Bleve
// engine, and a source tree with three files.
func newTestEnv(t *testing.T, submitter jobs.Submitter) *testEnv {
	t.Helper()

	dataDir := t.TempDir()
	repoDir := filepath.Join(dataDir, "repos", "backend")
	sourceDir := filepath.Join(repoDir, "source")
	for _, f := range []string{"src/auth.py", "src/user.py", "src/dev_only.py"} {
		path := filepath.Join(sourceDir, f)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("print('x')"), 0o644))
	}

	reg, err := registry.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close() })
	require.NoError(t, reg.AddRepo(registry.TrackedRepo{
		Alias:         "backend",
		SourceURL:     "https://example.com/backend.git",
		DefaultBranch: "main",
		ClonePath:     sourceDir,
	}))

	snaps, err := snapshot.NewStore(filepath.Join(dataDir, ".versioned"))
	require.NoError(t, err)

	env := &testEnv{
		registry:  reg,
		locks:     locks.NewRegistry(),
		git:       &gitops.MockOperations{},
		engine:    &recordingEngine{inner: fts.NewBleveEngine()},
		snapshots: snaps,
		cleanup:   &recordingCleanup{},
		repoDir:   repoDir,
	}
	env.pipeline = New(reg, env.locks, env.git, fts.NewTreeIndexer(), env.engine, snaps, env.cleanup, submitter)
	return env
}

func TestChangeBranchAsync_FastPathWhenAlreadyOnBranch(t *testing.T) {
	sub := &recordingSubmitter{}
	env := newTestEnv(t, sub)
	env.git.CurrentBranchFunc = func(string) (string, error) { return "develop", nil }

	res, err := env.pipeline.ChangeBranchAsync("backend", "develop", "jane")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Empty(t, res.JobID)
	assert.Empty(t, sub.submitted)
	assert.False(t, env.locks.IsLocked("backend"))
}

func TestChangeBranchAsync_InvalidBranchRejectedBeforeSubmission(t *testing.T) {
	sub := &recordingSubmitter{}
	env := newTestEnv(t, sub)

	_, err := env.pipeline.ChangeBranchAsync("backend", "bad..name", "jane")
	require.Error(t, err)
	assert.Equal(t, hubErrors.ErrCodeInvalidBranch, hubErrors.GetCode(err))
	assert.Empty(t, sub.submitted)
}

func TestChangeBranchAsync_UnknownAliasRejectedBeforeSubmission(t *testing.T) {
	sub := &recordingSubmitter{}
	env := newTestEnv(t, sub)

	_, err := env.pipeline.ChangeBranchAsync("ghost", "develop", "jane")
	require.Error(t, err)
	assert.True(t, hubErrors.IsNotFound(err))
	assert.Empty(t, sub.submitted)
}

func TestChangeBranchAsync_PropagatesDuplicateJob(t *testing.T) {
	dup := hubErrors.DuplicateJob(OperationChangeBranch, "backend", "job-0")
	env := newTestEnv(t, &recordingSubmitter{err: dup})

	_, err := env.pipeline.ChangeBranchAsync("backend", "develop", "jane")
	require.Error(t, err)
	assert.True(t, hubErrors.IsDuplicateJob(err))
	assert.Equal(t, "job-0", hubErrors.ExistingJobID(err))
}

func TestChangeBranchAsync_SubmitsJob(t *testing.T) {
	sub := &recordingSubmitter{}
	env := newTestEnv(t, sub)

	res, err := env.pipeline.ChangeBranchAsync("backend", "develop", "jane")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "job-1", res.JobID)
	assert.Equal(t, []string{"change_branch/backend"}, sub.submitted)
}

func TestChangeBranch_FullRun_IsolatesAndPublishes(t *testing.T) {
	env := newTestEnv(t, &recordingSubmitter{})
	env.git.LsFilesFunc = func(string, string) ([]string, error) {
		return []string{"src/auth.py", "src/user.py"}, nil
	}

	require.NoError(t, env.pipeline.ChangeBranch(context.Background(), "backend", "develop"))

	// The alias now serves a snapshot whose index holds only branch files.
	active, err := env.snapshots.ActiveSnapshot("backend")
	require.NoError(t, err)
	indexDir := filepath.Join(active, snapshot.FtsDirName)

	engine := fts.NewBleveEngine()
	paths, err := engine.ListIndexedPaths(indexDir)
	require.NoError(t, err)
	require.NoError(t, engine.Commit(indexDir))
	assert.ElementsMatch(t, []string{"src/auth.py", "src/user.py"}, paths)

	// Exactly one deletion, exactly one commit.
	assert.Equal(t, []string{"list", "delete:src/dev_only.py", "commit"}, env.engine.calls)
	assert.Equal(t, 1, env.engine.commits)

	// Isolation ran against the snapshot's own copy, not the base clone.
	require.Len(t, env.engine.listDirs, 1)
	assert.Equal(t, indexDir, env.engine.listDirs[0])

	// The branch is recorded and the lock released.
	repo, err := env.registry.GetRepo("backend")
	require.NoError(t, err)
	assert.Equal(t, "develop", repo.DefaultBranch)
	assert.False(t, env.locks.IsLocked("backend"))
}

func TestChangeBranch_SwapHappensAfterIsolation(t *testing.T) {
	env := newTestEnv(t, &recordingSubmitter{})
	env.git.LsFilesFunc = func(string, string) ([]string, error) {
		return []string{"src/auth.py", "src/user.py", "src/dev_only.py"}, nil
	}

	// Publish a first snapshot so there is an observable "old" state.
	require.NoError(t, env.pipeline.ChangeBranch(context.Background(), "backend", "develop"))
	oldActive, err := env.snapshots.ActiveSnapshot("backend")
	require.NoError(t, err)

	// During the next run's commit, the alias must still point at the old
	// snapshot: the swap is the sole visible commit point.
	var activeAtCommit string
	env.engine.onCommit = func() {
		activeAtCommit, _ = env.snapshots.ActiveSnapshot("backend")
	}

	require.NoError(t, env.pipeline.ChangeBranch(context.Background(), "backend", "release-1"))

	assert.Equal(t, oldActive, activeAtCommit)
	newActive, err := env.snapshots.ActiveSnapshot("backend")
	require.NoError(t, err)
	assert.NotEqual(t, oldActive, newActive)

	// The superseded snapshot went to deferred cleanup, not deletion.
	assert.Contains(t, env.cleanup.paths, oldActive)
	assert.DirExists(t, oldActive)
}

func TestChangeBranch_FailureLeavesPublishedSnapshotIntact(t *testing.T) {
	env := newTestEnv(t, &recordingSubmitter{})
	env.git.LsFilesFunc = func(string, string) ([]string, error) {
		return []string{"src/auth.py", "src/user.py", "src/dev_only.py"}, nil
	}

	require.NoError(t, env.pipeline.ChangeBranch(context.Background(), "backend", "develop"))
	published, err := env.snapshots.ActiveSnapshot("backend")
	require.NoError(t, err)

	env.git.CheckoutAndPullFunc = func(string, string) error {
		return errors.New("checkout exploded")
	}

	err = env.pipeline.ChangeBranch(context.Background(), "backend", "release-1")
	require.Error(t, err)
	he, ok := err.(*hubErrors.HubError)
	require.True(t, ok)
	assert.Equal(t, StageCheckout, he.Details["stage"])

	// The previously published snapshot still serves.
	active, err := env.snapshots.ActiveSnapshot("backend")
	require.NoError(t, err)
	assert.Equal(t, published, active)
	assert.False(t, env.locks.IsLocked("backend"))
}

func TestChangeBranch_ClassifiedFetchErrorPropagates(t *testing.T) {
	env := newTestEnv(t, &recordingSubmitter{})
	env.git.FetchFunc = func(string, string) error {
		return gitops.ClassifyFetchError("fatal: Could not resolve host: example.com", errors.New("exit status 128"))
	}

	err := env.pipeline.ChangeBranch(context.Background(), "backend", "develop")
	require.Error(t, err)
	assert.Equal(t, hubErrors.ErrCodeGitFetchTransient, hubErrors.GetCode(err))
	assert.True(t, hubErrors.IsRetryable(err))
}

func TestChangeBranch_FailedIsolationDiscardsOrphanSnapshot(t *testing.T) {
	env := newTestEnv(t, &recordingSubmitter{})
	env.git.LsFilesFunc = func(string, string) ([]string, error) {
		return nil, errors.New("ls-files exploded")
	}

	err := env.pipeline.ChangeBranch(context.Background(), "backend", "develop")
	require.Error(t, err)

	// The never-published snapshot was handed to cleanup, and the alias was
	// never published.
	require.Len(t, env.cleanup.paths, 1)
	_, err = env.snapshots.ActiveSnapshot("backend")
	assert.Error(t, err)
}

func TestChangeBranch_FailsFastWhenLockHeld(t *testing.T) {
	env := newTestEnv(t, &recordingSubmitter{})
	require.True(t, env.locks.Acquire("backend"))
	defer env.locks.Release("backend")

	err := env.pipeline.ChangeBranch(context.Background(), "backend", "develop")
	require.Error(t, err)
	assert.True(t, hubErrors.IsLockHeld(err))
}

func TestChangeBranchAsync_EndToEndWithRealPool(t *testing.T) {
	pool := jobs.NewPool(1, 8)
	env := newTestEnv(t, pool)
	pool.Start(context.Background())
	defer pool.Stop()

	release := make(chan struct{})
	env.git.CheckoutAndPullFunc = func(string, string) error {
		<-release
		return nil
	}
	env.git.LsFilesFunc = func(string, string) ([]string, error) {
		return []string{"src/auth.py", "src/user.py", "src/dev_only.py"}, nil
	}

	res, err := env.pipeline.ChangeBranchAsync("backend", "develop", "jane")
	require.NoError(t, err)
	require.NotEmpty(t, res.JobID)

	// While the first change is in flight, a second submission is rejected
	// with the first job's id.
	require.Eventually(t, func() bool {
		job, ok := pool.Job(res.JobID)
		return ok && job.Status == jobs.JobRunning
	}, time.Second, 5*time.Millisecond)

	_, err = env.pipeline.ChangeBranchAsync("backend", "release-1", "joe")
	require.Error(t, err)
	assert.True(t, hubErrors.IsDuplicateJob(err))
	assert.Equal(t, res.JobID, hubErrors.ExistingJobID(err))

	close(release)
	require.Eventually(t, func() bool {
		job, ok := pool.Job(res.JobID)
		return ok && job.Status == jobs.JobSucceeded
	}, 5*time.Second, 10*time.Millisecond)
}
