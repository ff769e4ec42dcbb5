// Package fts provides the full-text index surface the lifecycle
// orchestrator consumes: building an index over a checked-out tree and
// pruning documents from a snapshot's copy of that index. The engine is
// Bleve-backed; document IDs are file paths relative to the source root.
package fts

import (
	"fmt"
	"sync"

	"github.com/blevesearch/bleve/v2"
)

// Engine is the full-text index collaborator used by the branch-isolation
// cleanup. Deletions accumulate per index directory and are applied by a
// single Commit.
type Engine interface {
	// ListIndexedPaths returns the document IDs (file paths) present in the
	// index at indexDir.
	ListIndexedPaths(indexDir string) ([]string, error)

	// DeleteDocument stages removal of the document for path from the index
	// at indexDir. Nothing is applied until Commit.
	DeleteDocument(indexDir, path string) error

	// Commit applies staged deletions for indexDir and flushes the index to
	// disk.
	Commit(indexDir string) error
}

// listPageSize is the page size for walking all document IDs.
const listPageSize = 1000

// BleveEngine implements Engine over Bleve indexes on disk. It keeps at
// most one open handle per index directory and a pending deletion batch
// alongside it.
type BleveEngine struct {
	mu      sync.Mutex
	open    map[string]bleve.Index
	batches map[string]*bleve.Batch
}

var _ Engine = (*BleveEngine)(nil)

// NewBleveEngine creates an engine with no open indexes.
func NewBleveEngine() *BleveEngine {
	return &BleveEngine{
		open:    make(map[string]bleve.Index),
		batches: make(map[string]*bleve.Batch),
	}
}

// index returns the open handle for dir, opening it on first use.
// Must be called with e.mu held.
func (e *BleveEngine) index(dir string) (bleve.Index, error) {
	if idx, ok := e.open[dir]; ok {
		return idx, nil
	}
	idx, err := bleve.Open(dir)
	if err != nil {
		return nil, fmt.Errorf("open fts index %s: %w", dir, err)
	}
	e.open[dir] = idx
	return idx, nil
}

// ListIndexedPaths pages through a match-all query collecting document IDs.
func (e *BleveEngine) ListIndexedPaths(indexDir string) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx, err := e.index(indexDir)
	if err != nil {
		return nil, err
	}

	var paths []string
	for from := 0; ; from += listPageSize {
		req := bleve.NewSearchRequestOptions(bleve.NewMatchAllQuery(), listPageSize, from, false)
		res, err := idx.Search(req)
		if err != nil {
			return nil, fmt.Errorf("list indexed paths: %w", err)
		}
		for _, hit := range res.Hits {
			paths = append(paths, hit.ID)
		}
		if uint64(from+len(res.Hits)) >= res.Total || len(res.Hits) == 0 {
			break
		}
	}
	return paths, nil
}

// DeleteDocument stages a deletion in the directory's pending batch.
func (e *BleveEngine) DeleteDocument(indexDir, path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx, err := e.index(indexDir)
	if err != nil {
		return err
	}

	batch, ok := e.batches[indexDir]
	if !ok {
		batch = idx.NewBatch()
		e.batches[indexDir] = batch
	}
	batch.Delete(path)
	return nil
}

// Commit applies the pending batch, then closes the handle so the segment
// files on disk are complete before anyone copies or serves the directory.
func (e *BleveEngine) Commit(indexDir string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx, ok := e.open[indexDir]
	if !ok {
		return nil
	}

	if batch, staged := e.batches[indexDir]; staged && batch.Size() > 0 {
		if err := idx.Batch(batch); err != nil {
			return fmt.Errorf("apply fts deletions: %w", err)
		}
	}
	delete(e.batches, indexDir)
	delete(e.open, indexDir)

	if err := idx.Close(); err != nil {
		return fmt.Errorf("close fts index: %w", err)
	}
	return nil
}
