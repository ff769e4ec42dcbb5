package snapshot

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FtsDirName is the subdirectory of a golden repo that holds its full-text
// index. It must be deep-copied into snapshots: hard links would share
// segment files with the live index, and the branch-isolation cleanup
// mutates the snapshot's copy.
const FtsDirName = "fts"

// copyTree copies src into dst. Regular files are hard-linked where the
// filesystem allows it, falling back to a byte copy; files under any of the
// deepCopy top-level prefixes are always byte-copied. Symlinks are
// recreated, other irregular files skipped.
func copyTree(src, dst string, deepCopy []string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		switch {
		case d.IsDir():
			return os.MkdirAll(target, 0o755)

		case d.Type()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return fmt.Errorf("read symlink %s: %w", rel, err)
			}
			return os.Symlink(link, target)

		case d.Type().IsRegular():
			if mustDeepCopy(rel, deepCopy) {
				return copyFile(path, target)
			}
			if err := os.Link(path, target); err != nil {
				// Cross-device or unsupported; degrade to a byte copy.
				return copyFile(path, target)
			}
			return nil

		default:
			// Sockets, devices and the like have no place in a snapshot.
			return nil
		}
	})
}

// mustDeepCopy reports whether rel falls under one of the deep-copy
// prefixes (top-level directory match).
func mustDeepCopy(rel string, prefixes []string) bool {
	for _, p := range prefixes {
		if rel == p || strings.HasPrefix(rel, p+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// copyFile copies a single regular file preserving its mode.
func copyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}
	return out.Close()
}
