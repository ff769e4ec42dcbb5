package telemetry

import (
	"database/sql"
	"fmt"
	"time"
)

// RunStats aggregates an alias's run history for status output.
type RunStats struct {
	Alias       string
	TotalRuns   int64
	FailedRuns  int64
	ChangedRuns int64
	AvgDuration time.Duration
	LastRun     time.Time
}

// Stats computes aggregate run statistics for one alias. A repository with
// no recorded runs yields zero-valued stats, not an error.
func (s *RunStore) Stats(alias string) (RunStats, error) {
	stats := RunStats{Alias: alias}
	row := s.db.QueryRow(
		`SELECT COUNT(*),
		        COALESCE(SUM(CASE WHEN error != '' THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(changed), 0),
		        COALESCE(AVG(duration_ms), 0),
		        COALESCE(MAX(started_at), 0)
		 FROM refresh_runs WHERE alias = ?`, alias)

	var avgMS float64
	var lastRun int64
	if err := row.Scan(&stats.TotalRuns, &stats.FailedRuns, &stats.ChangedRuns, &avgMS, &lastRun); err != nil {
		if err == sql.ErrNoRows {
			return stats, nil
		}
		return stats, fmt.Errorf("aggregate refresh runs %s: %w", alias, err)
	}
	stats.AvgDuration = time.Duration(avgMS) * time.Millisecond
	if lastRun > 0 {
		stats.LastRun = time.Unix(lastRun, 0)
	}
	return stats, nil
}
