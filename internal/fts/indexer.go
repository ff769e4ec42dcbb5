package fts

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/blevesearch/bleve/v2"

	"github.com/Aman-CERP/amanhub/internal/gitignore"
)

const (
	// maxFileSize caps what gets indexed; larger files are almost never
	// useful search targets and bloat segments.
	maxFileSize = 1 << 20 // 1 MiB

	// indexBatchSize bounds memory while indexing large trees.
	indexBatchSize = 200
)

// Document is the indexed representation of one source file.
type Document struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// TreeIndexer builds the full-text index for a golden repository: it
// indexes every text file under <repoDir>/source into <repoDir>/fts.
// It satisfies the Indexer collaborator of the refresh scheduler and the
// branch-change pipeline.
type TreeIndexer struct {
	// SourceDirName is the clone subdirectory inside a golden repo dir.
	SourceDirName string
	// IndexDirName is the fts subdirectory inside a golden repo dir.
	IndexDirName string
}

// NewTreeIndexer creates an indexer with the standard golden-repo layout.
func NewTreeIndexer() *TreeIndexer {
	return &TreeIndexer{
		SourceDirName: "source",
		IndexDirName:  "fts",
	}
}

// Index rebuilds the repo's full-text index from the checked-out tree.
// The previous index directory is replaced wholesale; a rebuild after a
// branch change must not leave documents from the old branch behind.
func (ix *TreeIndexer) Index(ctx context.Context, repoDir string) error {
	sourceDir := filepath.Join(repoDir, ix.SourceDirName)
	indexDir := filepath.Join(repoDir, ix.IndexDirName)

	if err := os.RemoveAll(indexDir); err != nil {
		return fmt.Errorf("clear fts index: %w", err)
	}

	idx, err := bleve.New(indexDir, bleve.NewIndexMapping())
	if err != nil {
		return fmt.Errorf("create fts index: %w", err)
	}
	defer idx.Close()

	start := time.Now()
	indexed := 0
	batch := idx.NewBatch()

	ignore := gitignore.New()
	if path := filepath.Join(sourceDir, ".gitignore"); fileExists(path) {
		_ = ignore.AddFromFile(path, "")
	}

	err = filepath.WalkDir(sourceDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // Skip unreadable entries
		}
		rel, relErr := filepath.Rel(sourceDir, path)
		if relErr != nil {
			return nil
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			if rel != "." && ignore.Match(rel, true) {
				return filepath.SkipDir
			}
			// Nested .gitignore files scope to their own directory.
			if rel != "." {
				if nested := filepath.Join(path, ".gitignore"); fileExists(nested) {
					_ = ignore.AddFromFile(nested, filepath.ToSlash(rel))
				}
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if ignore.Match(rel, false) {
			return nil
		}

		info, err := d.Info()
		if err != nil || info.Size() > maxFileSize {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil || isBinary(data) {
			return nil
		}

		if err := batch.Index(rel, Document{Path: rel, Content: string(data)}); err != nil {
			return fmt.Errorf("index %s: %w", rel, err)
		}
		indexed++

		if batch.Size() >= indexBatchSize {
			if err := idx.Batch(batch); err != nil {
				return fmt.Errorf("flush index batch: %w", err)
			}
			batch = idx.NewBatch()
		}
		return nil
	})
	if err != nil {
		return err
	}

	if batch.Size() > 0 {
		if err := idx.Batch(batch); err != nil {
			return fmt.Errorf("flush index batch: %w", err)
		}
	}

	slog.Debug("fts index built",
		slog.String("repo_dir", repoDir),
		slog.Int("documents", indexed),
		slog.Duration("elapsed", time.Since(start)))
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// isBinary applies git's heuristic: a NUL byte in the first 8000 bytes.
func isBinary(data []byte) bool {
	probe := data
	if len(probe) > 8000 {
		probe = probe[:8000]
	}
	return bytes.IndexByte(probe, 0) >= 0
}
