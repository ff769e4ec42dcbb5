package telemetry

import (
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *RunStore {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	db.SetMaxOpenConns(1)

	require.NoError(t, InitRunHistorySchema(db))
	store, err := NewRunStore(db)
	require.NoError(t, err)
	return store
}

func TestRecordAndRecentRuns(t *testing.T) {
	store := newTestStore(t)
	base := time.Now().Add(-time.Hour).Truncate(time.Second)

	require.NoError(t, store.RecordRun("backend", base, 250*time.Millisecond, true, ""))
	require.NoError(t, store.RecordRun("backend", base.Add(time.Minute), 100*time.Millisecond, false, ""))
	require.NoError(t, store.RecordRun("frontend", base, 50*time.Millisecond, false, "index exploded"))

	runs, err := store.RecentRuns("backend", 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	// Most recent first.
	assert.Equal(t, base.Add(time.Minute).Unix(), runs[0].StartedAt.Unix())
	assert.False(t, runs[0].Changed)
	assert.Equal(t, base.Unix(), runs[1].StartedAt.Unix())
	assert.True(t, runs[1].Changed)
	assert.Equal(t, 250*time.Millisecond, runs[1].Duration)
}

func TestRecentRunsLimit(t *testing.T) {
	store := newTestStore(t)
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		require.NoError(t, store.RecordRun("backend", base.Add(time.Duration(i)*time.Minute), time.Second, false, ""))
	}

	runs, err := store.RecentRuns("backend", 3)
	require.NoError(t, err)
	assert.Len(t, runs, 3)
}

func TestStatsAggregation(t *testing.T) {
	store := newTestStore(t)
	base := time.Now().Add(-time.Hour).Truncate(time.Second)

	require.NoError(t, store.RecordRun("backend", base, 100*time.Millisecond, true, ""))
	require.NoError(t, store.RecordRun("backend", base.Add(time.Minute), 300*time.Millisecond, false, "fetch refused"))

	stats, err := store.Stats("backend")
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalRuns)
	assert.Equal(t, int64(1), stats.FailedRuns)
	assert.Equal(t, int64(1), stats.ChangedRuns)
	assert.Equal(t, 200*time.Millisecond, stats.AvgDuration)
	assert.Equal(t, base.Add(time.Minute).Unix(), stats.LastRun.Unix())
}

func TestStatsEmptyAlias(t *testing.T) {
	store := newTestStore(t)
	stats, err := store.Stats("ghost")
	require.NoError(t, err)
	assert.Zero(t, stats.TotalRuns)
	assert.True(t, stats.LastRun.IsZero())
}

func TestPrune(t *testing.T) {
	store := newTestStore(t)
	old := time.Now().Add(-48 * time.Hour)
	recent := time.Now().Add(-time.Minute)

	require.NoError(t, store.RecordRun("backend", old, time.Second, false, ""))
	require.NoError(t, store.RecordRun("backend", recent, time.Second, false, ""))

	n, err := store.Prune(time.Now().Add(-24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	runs, err := store.RecentRuns("backend", 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}
