// Package telemetry persists refresh-run history so operators can see what
// the daemon has been doing per alias.
package telemetry

import (
	"database/sql"
	"fmt"
	"time"
)

// RunRecord is one executed refresh cycle.
type RunRecord struct {
	ID        int64
	Alias     string
	StartedAt time.Time
	Duration  time.Duration
	Changed   bool
	Error     string
}

// RunStore records refresh runs in SQLite. It shares the registry's
// database handle; that handle already serializes writers.
type RunStore struct {
	db *sql.DB
}

// NewRunStore creates a run store over an existing database connection.
func NewRunStore(db *sql.DB) (*RunStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	return &RunStore{db: db}, nil
}

// InitRunHistorySchema creates the run-history table if it does not exist.
func InitRunHistorySchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS refresh_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		alias TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		changed INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_refresh_runs_alias
		ON refresh_runs(alias, started_at DESC);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create run history schema: %w", err)
	}
	return nil
}

// RecordRun appends one run row. Satisfies the scheduler's recorder
// interface.
func (s *RunStore) RecordRun(alias string, startedAt time.Time, duration time.Duration, changed bool, errMsg string) error {
	_, err := s.db.Exec(
		`INSERT INTO refresh_runs (alias, started_at, duration_ms, changed, error)
		 VALUES (?, ?, ?, ?, ?)`,
		alias, startedAt.Unix(), duration.Milliseconds(), boolToInt(changed), errMsg)
	if err != nil {
		return fmt.Errorf("record refresh run %s: %w", alias, err)
	}
	return nil
}

// RecentRuns returns the newest runs for an alias, most recent first.
func (s *RunStore) RecentRuns(alias string, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT id, alias, started_at, duration_ms, changed, error
		 FROM refresh_runs WHERE alias = ?
		 ORDER BY started_at DESC, id DESC LIMIT ?`, alias, limit)
	if err != nil {
		return nil, fmt.Errorf("query refresh runs %s: %w", alias, err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var (
			rec        RunRecord
			started    int64
			durationMS int64
			changed    int
		)
		if err := rows.Scan(&rec.ID, &rec.Alias, &started, &durationMS, &changed, &rec.Error); err != nil {
			return nil, fmt.Errorf("scan refresh run: %w", err)
		}
		rec.StartedAt = time.Unix(started, 0)
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		rec.Changed = changed != 0
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Prune deletes run rows older than the cutoff.
func (s *RunStore) Prune(before time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM refresh_runs WHERE started_at < ?`, before.Unix())
	if err != nil {
		return 0, fmt.Errorf("prune refresh runs: %w", err)
	}
	return res.RowsAffected()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
