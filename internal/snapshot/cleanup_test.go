package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanupManager_DeletesAfterGrace(t *testing.T) {
	dir := t.TempDir()
	victim := filepath.Join(dir, "v_1000")
	require.NoError(t, os.MkdirAll(victim, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(victim, "f"), []byte("x"), 0o644))

	c := NewCleanupManager(nil, 50*time.Millisecond, 20*time.Millisecond)
	c.Start(context.Background())
	defer c.Stop()

	c.ScheduleCleanup(victim)

	// Still present inside the grace period.
	time.Sleep(25 * time.Millisecond)
	assert.DirExists(t, victim)

	// Gone once the grace period elapses.
	require.Eventually(t, func() bool {
		_, err := os.Stat(victim)
		return os.IsNotExist(err)
	}, time.Second, 10*time.Millisecond)
}

func TestCleanupManager_HoldsDuringGrace(t *testing.T) {
	dir := t.TempDir()
	victim := filepath.Join(dir, "v_2000")
	require.NoError(t, os.MkdirAll(victim, 0o755))

	c := NewCleanupManager(nil, time.Hour, 10*time.Millisecond)
	c.Start(context.Background())
	defer c.Stop()

	c.ScheduleCleanup(victim)
	time.Sleep(50 * time.Millisecond)

	assert.DirExists(t, victim)
	assert.Equal(t, 1, c.PendingCount())
}

func TestCleanupManager_EmptyPathIgnored(t *testing.T) {
	c := NewCleanupManager(nil, time.Minute, time.Minute)
	c.ScheduleCleanup("")
	assert.Zero(t, c.PendingCount())
}

func TestCleanupManager_StopIsIdempotent(t *testing.T) {
	c := NewCleanupManager(nil, time.Minute, time.Minute)
	c.Start(context.Background())
	c.Stop()
	c.Stop()
}

// publish creates a snapshot for alias from a one-file source tree and
// swaps the alias to it; returns the snapshot path.
func publish(t *testing.T, store *Store, alias string) string {
	t.Helper()
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "f"), []byte("x"), 0o644))

	snap, err := store.CreateSnapshot(alias, src)
	require.NoError(t, err)
	_, err = store.SwapAlias(alias, snap)
	require.NoError(t, err)
	return snap
}

func TestCleanupManager_ReclaimsAcrossRestart(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	old := publish(t, store, "svc")
	time.Sleep(1100 * time.Millisecond) // distinct snapshot timestamps
	current := publish(t, store, "svc")

	// The process that swapped exits before its grace period elapses:
	// the superseded snapshot was scheduled but never deleted.
	first := NewCleanupManager(store, time.Hour, time.Minute)
	first.ScheduleCleanup(old)
	first.SweepNow()
	assert.DirExists(t, old)

	// The next process has an empty queue. Backdate the orphan past the
	// grace period; the disk scan must still find and reclaim it.
	past := time.Now().Add(-2 * time.Minute)
	require.NoError(t, os.Chtimes(old, past, past))

	next := NewCleanupManager(store, time.Minute, time.Minute)
	assert.Zero(t, next.PendingCount())
	next.SweepNow()

	assert.NoDirExists(t, old)
	assert.DirExists(t, current)
}

func TestCleanupManager_SweepSparesActiveAndRecent(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	old := publish(t, store, "svc")
	time.Sleep(1100 * time.Millisecond)
	current := publish(t, store, "svc")

	// Superseded but still inside the grace period: untouched.
	c := NewCleanupManager(store, time.Minute, time.Minute)
	c.SweepNow()
	assert.DirExists(t, old)
	assert.DirExists(t, current)
}

func TestCleanupManager_SweepSparesUnpublishedLatest(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	publish(t, store, "svc")

	// A newer snapshot exists but nothing points at it yet, as during a
	// branch change between snapshot creation and swap.
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "g"), []byte("y"), 0o644))
	time.Sleep(1100 * time.Millisecond)
	pending, err := store.CreateSnapshot("svc", src)
	require.NoError(t, err)

	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(pending, past, past))

	c := NewCleanupManager(store, time.Minute, time.Minute)
	c.SweepNow()
	assert.DirExists(t, pending)
}
