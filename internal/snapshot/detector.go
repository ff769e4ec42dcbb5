package snapshot

import (
	"io/fs"
	"path/filepath"
)

// ChangeDetector decides whether a source tree has been modified since the
// alias's most recent snapshot.
type ChangeDetector struct {
	store *Store
}

// NewChangeDetector creates a detector backed by the given store.
func NewChangeDetector(store *Store) *ChangeDetector {
	return &ChangeDetector{store: store}
}

// HasLocalChanges reports whether any file under sourcePath was modified
// after the alias's latest snapshot timestamp.
//
// The comparison keeps sub-second precision: snapshot timestamps are whole
// seconds, so an edit half a second after the snapshot must still register.
// Truncating the mtime to an integer first would lose exactly those edits.
// A tree whose newest mtime equals the snapshot timestamp is unchanged.
func (d *ChangeDetector) HasLocalChanges(sourcePath, alias string) (bool, error) {
	latest, found, err := d.store.LatestTimestamp(alias)
	if err != nil {
		return false, err
	}
	if !found {
		// Never snapshotted: everything counts as changed.
		return true, nil
	}

	maxMtime, err := MaxMtime(sourcePath)
	if err != nil {
		return false, err
	}

	return maxMtime > float64(latest), nil
}

// MaxMtime returns the maximum modification time across the tree as
// floating-point seconds since the epoch. Unreadable entries are skipped;
// directories count too, since git operations touch them.
func MaxMtime(sourcePath string) (float64, error) {
	var max float64

	err := filepath.WalkDir(sourcePath, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return nil // Skip files we can't access
		}
		info, err := entry.Info()
		if err != nil {
			return nil
		}
		mtime := float64(info.ModTime().UnixNano()) / 1e9
		if mtime > max {
			max = mtime
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return max, nil
}
