package fts

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildRepo creates a golden-repo dir with the given source files and a
// built fts index; returns the repo dir and the index dir.
func buildRepo(t *testing.T, files map[string]string) (string, string) {
	t.Helper()
	repoDir := t.TempDir()
	sourceDir := filepath.Join(repoDir, "source")

	for rel, content := range files {
		path := filepath.Join(sourceDir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	ix := NewTreeIndexer()
	require.NoError(t, ix.Index(context.Background(), repoDir))
	return repoDir, filepath.Join(repoDir, "fts")
}

func TestTreeIndexer_IndexesSourceFiles(t *testing.T) {
	_, indexDir := buildRepo(t, map[string]string{
		"src/auth.py": "def login(): pass",
		"src/user.py": "class User: pass",
		"README.md":   "# service",
	})

	engine := NewBleveEngine()
	paths, err := engine.ListIndexedPaths(indexDir)
	require.NoError(t, err)
	require.NoError(t, engine.Commit(indexDir))

	assert.ElementsMatch(t, []string{"src/auth.py", "src/user.py", "README.md"}, paths)
}

func TestTreeIndexer_SkipsBinaryFiles(t *testing.T) {
	_, indexDir := buildRepo(t, map[string]string{
		"src/auth.py": "def login(): pass",
		"blob.bin":    "head\x00tail",
	})

	engine := NewBleveEngine()
	paths, err := engine.ListIndexedPaths(indexDir)
	require.NoError(t, err)
	require.NoError(t, engine.Commit(indexDir))

	assert.ElementsMatch(t, []string{"src/auth.py"}, paths)
}

func TestTreeIndexer_RebuildReplacesOldDocuments(t *testing.T) {
	repoDir, indexDir := buildRepo(t, map[string]string{
		"src/dev_only.py": "print('dev')",
	})

	// Remove the file and rebuild; the old document must not survive.
	require.NoError(t, os.Remove(filepath.Join(repoDir, "source", "src", "dev_only.py")))
	require.NoError(t, os.WriteFile(filepath.Join(repoDir, "source", "src", "main.py"), []byte("print('hi')"), 0o644))

	ix := NewTreeIndexer()
	require.NoError(t, ix.Index(context.Background(), repoDir))

	engine := NewBleveEngine()
	paths, err := engine.ListIndexedPaths(indexDir)
	require.NoError(t, err)
	require.NoError(t, engine.Commit(indexDir))

	assert.ElementsMatch(t, []string{"src/main.py"}, paths)
}

func TestBleveEngine_DeleteThenCommitPrunesDocuments(t *testing.T) {
	_, indexDir := buildRepo(t, map[string]string{
		"src/auth.py":     "def login(): pass",
		"src/user.py":     "class User: pass",
		"src/dev_only.py": "print('dev')",
	})

	engine := NewBleveEngine()
	require.NoError(t, engine.DeleteDocument(indexDir, "src/dev_only.py"))
	require.NoError(t, engine.Commit(indexDir))

	// Re-open and verify the document is gone.
	paths, err := engine.ListIndexedPaths(indexDir)
	require.NoError(t, err)
	require.NoError(t, engine.Commit(indexDir))

	assert.ElementsMatch(t, []string{"src/auth.py", "src/user.py"}, paths)
}

func TestBleveEngine_CommitWithoutOpenIsNoop(t *testing.T) {
	engine := NewBleveEngine()
	assert.NoError(t, engine.Commit(filepath.Join(t.TempDir(), "never-opened")))
}

func TestBleveEngine_DeletionsNotVisibleBeforeCommit(t *testing.T) {
	_, indexDir := buildRepo(t, map[string]string{
		"a.go": "package a",
		"b.go": "package b",
	})

	engine := NewBleveEngine()
	require.NoError(t, engine.DeleteDocument(indexDir, "a.go"))

	paths, err := engine.ListIndexedPaths(indexDir)
	require.NoError(t, err)
	assert.Len(t, paths, 2)

	require.NoError(t, engine.Commit(indexDir))
	paths, err = engine.ListIndexedPaths(indexDir)
	require.NoError(t, err)
	require.NoError(t, engine.Commit(indexDir))
	assert.ElementsMatch(t, []string{"b.go"}, paths)
}

func TestTreeIndexer_RespectsGitignore(t *testing.T) {
	_, indexDir := buildRepo(t, map[string]string{
		".gitignore":          "*.log\nbuild/\n",
		"src/auth.py":         "def login(): pass",
		"src/.gitignore":      "generated_*.py\n",
		"src/generated_pb.py": "stubs = {}",
		"debug.log":           "trace trace",
		"build/out.py":        "compiled = True",
	})

	engine := NewBleveEngine()
	paths, err := engine.ListIndexedPaths(indexDir)
	require.NoError(t, err)
	require.NoError(t, engine.Commit(indexDir))

	assert.ElementsMatch(t, []string{".gitignore", "src/auth.py", "src/.gitignore"}, paths)
}
