// Package registry persists the set of tracked repositories and their
// refresh tracking records in SQLite.
package registry

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	hubErrors "github.com/Aman-CERP/amanhub/internal/errors"
)

// RefreshStatus is the lifecycle state of an alias's latest refresh.
type RefreshStatus string

const (
	StatusPending   RefreshStatus = "pending"
	StatusRunning   RefreshStatus = "running"
	StatusCompleted RefreshStatus = "completed"
	StatusFailed    RefreshStatus = "failed"
)

// TrackedRepo is one golden repository under management. The alias is the
// stable external name readers resolve; clone_path is the base clone the
// scheduler refreshes.
type TrackedRepo struct {
	Alias         string
	SourceURL     string
	DefaultBranch string
	ClonePath     string
	CreatedAt     time.Time
}

// TrackingRecord is the persisted refresh state for one alias. It is
// created lazily on the first refresh attempt and updated after every poll
// cycle; it is never deleted while the alias exists.
type TrackingRecord struct {
	Alias        string
	LastRun      time.Time
	NextRun      time.Time
	Status       RefreshStatus
	CommitHashes map[string]string
	ErrorMessage string
}

// Store is the SQLite-backed repository registry.
type Store struct {
	db *sql.DB
}

// Open creates or opens the registry database at path. WAL mode allows the
// CLI to read while the refresh daemon writes.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create registry dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open registry: %w", err)
	}
	// The tracking backend serializes writes; one writer connection is the
	// cheapest way to guarantee that with this driver.
	db.SetMaxOpenConns(1)

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// DB exposes the underlying handle so sibling stores (telemetry) can share
// the database file.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS tracked_repos (
		alias TEXT PRIMARY KEY,
		source_url TEXT NOT NULL,
		default_branch TEXT NOT NULL,
		clone_path TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS refresh_tracking (
		alias TEXT PRIMARY KEY REFERENCES tracked_repos(alias),
		last_run INTEGER NOT NULL DEFAULT 0,
		next_run INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'pending',
		commit_hashes TEXT NOT NULL DEFAULT '{}',
		error_message TEXT NOT NULL DEFAULT ''
	);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create registry schema: %w", err)
	}
	return nil
}

// AddRepo registers a new tracked repository.
func (s *Store) AddRepo(repo TrackedRepo) error {
	if repo.CreatedAt.IsZero() {
		repo.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(
		`INSERT INTO tracked_repos (alias, source_url, default_branch, clone_path, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		repo.Alias, repo.SourceURL, repo.DefaultBranch, repo.ClonePath, repo.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("add repo %s: %w", repo.Alias, err)
	}
	return nil
}

// GetRepo looks up a tracked repository by alias.
func (s *Store) GetRepo(alias string) (*TrackedRepo, error) {
	row := s.db.QueryRow(
		`SELECT alias, source_url, default_branch, clone_path, created_at
		 FROM tracked_repos WHERE alias = ?`, alias)

	var repo TrackedRepo
	var createdAt int64
	if err := row.Scan(&repo.Alias, &repo.SourceURL, &repo.DefaultBranch, &repo.ClonePath, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, hubErrors.RepoNotFound(alias)
		}
		return nil, fmt.Errorf("get repo %s: %w", alias, err)
	}
	repo.CreatedAt = time.Unix(createdAt, 0)
	return &repo, nil
}

// ListRepos returns all tracked repositories ordered by alias.
func (s *Store) ListRepos() ([]TrackedRepo, error) {
	rows, err := s.db.Query(
		`SELECT alias, source_url, default_branch, clone_path, created_at
		 FROM tracked_repos ORDER BY alias`)
	if err != nil {
		return nil, fmt.Errorf("list repos: %w", err)
	}
	defer rows.Close()

	var repos []TrackedRepo
	for rows.Next() {
		var repo TrackedRepo
		var createdAt int64
		if err := rows.Scan(&repo.Alias, &repo.SourceURL, &repo.DefaultBranch, &repo.ClonePath, &createdAt); err != nil {
			return nil, err
		}
		repo.CreatedAt = time.Unix(createdAt, 0)
		repos = append(repos, repo)
	}
	return repos, rows.Err()
}

// RemoveRepo deletes a repository and its tracking record.
func (s *Store) RemoveRepo(alias string) error {
	if _, err := s.db.Exec(`DELETE FROM refresh_tracking WHERE alias = ?`, alias); err != nil {
		return fmt.Errorf("remove tracking %s: %w", alias, err)
	}
	res, err := s.db.Exec(`DELETE FROM tracked_repos WHERE alias = ?`, alias)
	if err != nil {
		return fmt.Errorf("remove repo %s: %w", alias, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return hubErrors.RepoNotFound(alias)
	}
	return nil
}

// SetDefaultBranch updates the repository's active branch. Branch changes
// are the only mutation of a TrackedRepo after registration.
func (s *Store) SetDefaultBranch(alias, branch string) error {
	res, err := s.db.Exec(`UPDATE tracked_repos SET default_branch = ? WHERE alias = ?`, branch, alias)
	if err != nil {
		return fmt.Errorf("set branch %s: %w", alias, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return hubErrors.RepoNotFound(alias)
	}
	return nil
}

// SaveTracking upserts the refresh tracking record for an alias.
func (s *Store) SaveTracking(rec TrackingRecord) error {
	hashes, err := json.Marshal(nonNil(rec.CommitHashes))
	if err != nil {
		return fmt.Errorf("marshal commit hashes: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO refresh_tracking (alias, last_run, next_run, status, commit_hashes, error_message)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(alias) DO UPDATE SET
			last_run = excluded.last_run,
			next_run = excluded.next_run,
			status = excluded.status,
			commit_hashes = excluded.commit_hashes,
			error_message = excluded.error_message`,
		rec.Alias, rec.LastRun.Unix(), rec.NextRun.Unix(), string(rec.Status), string(hashes), rec.ErrorMessage)
	if err != nil {
		return fmt.Errorf("save tracking %s: %w", rec.Alias, err)
	}
	return nil
}

// GetTracking returns the tracking record for alias, or nil if the alias
// has never been refreshed.
func (s *Store) GetTracking(alias string) (*TrackingRecord, error) {
	row := s.db.QueryRow(
		`SELECT alias, last_run, next_run, status, commit_hashes, error_message
		 FROM refresh_tracking WHERE alias = ?`, alias)

	var rec TrackingRecord
	var lastRun, nextRun int64
	var status, hashes string
	if err := row.Scan(&rec.Alias, &lastRun, &nextRun, &status, &hashes, &rec.ErrorMessage); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get tracking %s: %w", alias, err)
	}

	rec.LastRun = time.Unix(lastRun, 0)
	rec.NextRun = time.Unix(nextRun, 0)
	rec.Status = RefreshStatus(status)
	if err := json.Unmarshal([]byte(hashes), &rec.CommitHashes); err != nil {
		return nil, fmt.Errorf("decode commit hashes %s: %w", alias, err)
	}
	return &rec, nil
}

func nonNil(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
