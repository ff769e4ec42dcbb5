// Package snapshot implements the versioned-snapshot store behind every
// published repository alias.
//
// Layout on disk, under the store root:
//
//	.versioned/<alias>/v_<unix_ts>/   immutable snapshot directories
//	.versioned/<alias>/current        alias pointer file (snapshot path)
//
// A snapshot is created once and never mutated afterward; readers resolve
// the alias pointer and then read the snapshot without further
// coordination. Publishing is a single atomic pointer write, so readers
// observe old-then-new and never a half-built state.
package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	versionPrefix = "v_"
	pointerFile   = "current"

	// pointerCacheSize bounds the alias pointer read cache. Readers resolve
	// the pointer on every query; swaps invalidate the entry.
	pointerCacheSize = 256
)

// Store creates immutable, timestamped snapshots and atomically repoints
// aliases at them.
type Store struct {
	root string

	mu     sync.Mutex
	lastTS map[string]int64

	cache *lru.Cache[string, string]
}

// NewStore creates a snapshot store rooted at dir (the ".versioned"
// directory). The directory is created if missing.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot root: %w", err)
	}
	cache, err := lru.New[string, string](pointerCacheSize)
	if err != nil {
		return nil, err
	}
	return &Store{
		root:   dir,
		lastTS: make(map[string]int64),
		cache:  cache,
	}, nil
}

// Root returns the store's root directory.
func (s *Store) Root() string {
	return s.root
}

// aliasDir returns the per-alias directory, creating it if needed.
func (s *Store) aliasDir(alias string) (string, error) {
	dir := filepath.Join(s.root, alias)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create alias dir: %w", err)
	}
	return dir, nil
}

// nextTimestamp returns a unique snapshot timestamp for alias. Two
// snapshots within the same second bump the later one forward so version
// names never collide.
func (s *Store) nextTimestamp(alias string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := time.Now().Unix()
	if last, ok := s.lastTS[alias]; ok && ts <= last {
		ts = last + 1
	}
	s.lastTS[alias] = ts
	return ts
}

// CreateSnapshot produces a new immutable snapshot of sourceDir named
// v_<unix_ts> under the alias's version directory and returns its path.
// Source files are hard-linked where possible (copy-on-write style); the
// full-text index subtree is deep-copied so the snapshot's index can be
// pruned without touching the base clone's segment files. The existing
// published snapshot, if any, is never modified.
func (s *Store) CreateSnapshot(alias, sourceDir string) (string, error) {
	dir, err := s.aliasDir(alias)
	if err != nil {
		return "", err
	}

	ts := s.nextTimestamp(alias)
	dest := filepath.Join(dir, fmt.Sprintf("%s%d", versionPrefix, ts))

	// Build into a temp name first so a crash never leaves a directory that
	// parses as a completed snapshot.
	tmp := dest + ".tmp"
	if err := copyTree(sourceDir, tmp, []string{FtsDirName}); err != nil {
		_ = os.RemoveAll(tmp)
		return "", fmt.Errorf("snapshot %s: %w", alias, err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		_ = os.RemoveAll(tmp)
		return "", fmt.Errorf("publish snapshot dir: %w", err)
	}
	return dest, nil
}

// SwapAlias atomically repoints alias at newSnapshotPath and returns the
// previously active snapshot path ("" if none). The pointer is written to a
// temp file and renamed into place, so concurrent readers see either the
// old or the new target, never a torn write.
func (s *Store) SwapAlias(alias, newSnapshotPath string) (string, error) {
	dir, err := s.aliasDir(alias)
	if err != nil {
		return "", err
	}

	old, _ := s.ActiveSnapshot(alias)

	ptr := filepath.Join(dir, pointerFile)
	tmp := ptr + ".tmp"
	if err := os.WriteFile(tmp, []byte(newSnapshotPath+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("write alias pointer: %w", err)
	}
	if err := os.Rename(tmp, ptr); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("swap alias pointer: %w", err)
	}

	s.cache.Add(alias, newSnapshotPath)
	return old, nil
}

// ActiveSnapshot resolves the alias pointer to the currently published
// snapshot path. Returns os.ErrNotExist if the alias has never been
// published.
func (s *Store) ActiveSnapshot(alias string) (string, error) {
	if path, ok := s.cache.Get(alias); ok {
		return path, nil
	}

	data, err := os.ReadFile(filepath.Join(s.root, alias, pointerFile))
	if err != nil {
		return "", err
	}
	path := strings.TrimSpace(string(data))
	if path != "" {
		s.cache.Add(alias, path)
	}
	return path, nil
}

// LatestTimestamp returns the greatest snapshot timestamp recorded for
// alias, and false if no snapshot exists yet.
func (s *Store) LatestTimestamp(alias string) (int64, bool, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, alias))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, err
	}

	var max int64
	found := false
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), versionPrefix) {
			continue
		}
		ts, err := strconv.ParseInt(strings.TrimPrefix(e.Name(), versionPrefix), 10, 64)
		if err != nil {
			continue
		}
		if !found || ts > max {
			max = ts
			found = true
		}
	}
	return max, found, nil
}

// Snapshots lists the snapshot directories recorded for alias, oldest first.
func (s *Store) Snapshots(alias string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, alias))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), versionPrefix) {
			paths = append(paths, filepath.Join(s.root, alias, e.Name()))
		}
	}
	return paths, nil
}
