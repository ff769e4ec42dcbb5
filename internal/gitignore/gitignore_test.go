package gitignore

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func matcher(patterns ...string) *Matcher {
	m := New()
	for _, p := range patterns {
		m.AddPattern(p)
	}
	return m
}

func TestMatcher_Patterns(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		path     string
		isDir    bool
		ignored  bool
	}{
		{"suffix wildcard", []string{"*.log"}, "refresh.log", false, true},
		{"suffix wildcard nested", []string{"*.log"}, "logs/refresh.log", false, true},
		{"suffix wildcard miss", []string{"*.log"}, "refresh.go", false, false},
		{"exact name", []string{"registry.db"}, "registry.db", false, true},
		{"exact name any depth", []string{"registry.db"}, "data/registry.db", false, true},
		{"question mark", []string{"v_?"}, "v_1", false, true},
		{"question mark no slash", []string{"v_?"}, "v_12", false, false},
		{"star stops at slash", []string{"src/*.py"}, "src/auth.py", false, true},
		{"star stops at slash deep", []string{"src/*.py"}, "src/api/auth.py", false, false},
		{"double star prefix", []string{"**/segment.zap"}, "fts/store/segment.zap", false, true},
		{"double star middle", []string{"fts/**/root.bolt"}, "fts/a/b/root.bolt", false, true},
		{"anchored root only", []string{"/build"}, "build", true, true},
		{"anchored not nested", []string{"/build"}, "vendor/build", true, false},
		{"internal slash anchors", []string{"doc/frotz"}, "doc/frotz", true, true},
		{"internal slash not nested", []string{"doc/frotz"}, "a/doc/frotz", true, false},
		{"dir only matches dir", []string{"tmp/"}, "tmp", true, true},
		{"dir only skips file", []string{"tmp/"}, "tmp", false, false},
		{"dir only matches contents", []string{"tmp/"}, "tmp/scratch.py", false, true},
		{"character class", []string{"v_[0-9]"}, "v_7", false, true},
		{"comment ignored", []string{"# *.py"}, "auth.py", false, false},
		{"escaped hash literal", []string{`\#known`}, "#known", false, true},
		{"blank ignored", []string{"   "}, "auth.py", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := matcher(tt.patterns...).Match(tt.path, tt.isDir)
			assert.Equal(t, tt.ignored, got, "path %q", tt.path)
		})
	}
}

func TestMatcher_NegationRestoresPath(t *testing.T) {
	m := matcher("*.log", "!audit.log")

	assert.True(t, m.Match("refresh.log", false))
	assert.False(t, m.Match("audit.log", false))
}

func TestMatcher_LastRuleWins(t *testing.T) {
	m := matcher("!audit.log", "*.log")

	// The negation precedes the ignore rule, so it has no effect.
	assert.True(t, m.Match("audit.log", false))
}

func TestMatcher_BaseScopesNestedRules(t *testing.T) {
	m := New()
	m.AddPatternWithBase("generated_*.py", "src")

	assert.True(t, m.Match("src/generated_pb.py", false))
	assert.False(t, m.Match("generated_pb.py", false), "nested rule escaped its base")
	assert.False(t, m.Match("tools/generated_pb.py", false))
}

func TestMatcher_AddFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".gitignore")
	content := "# build output\n*.zap\n\n/dist\n!keep.zap\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	m := New()
	require.NoError(t, m.AddFromFile(path, ""))

	assert.True(t, m.Match("fts/segment.zap", false))
	assert.False(t, m.Match("keep.zap", false))
	assert.True(t, m.Match("dist", true))
	assert.False(t, m.Match("src/dist", true))
}

func TestMatcher_AddFromFileMissing(t *testing.T) {
	m := New()
	assert.Error(t, m.AddFromFile(filepath.Join(t.TempDir(), "absent"), ""))
}

func TestMatcher_ConcurrentUse(t *testing.T) {
	m := matcher("*.log")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.AddPattern("build/")
				_ = m.Match("refresh.log", false)
				_ = m.Match("build/out.py", false)
			}
		}()
	}
	wg.Wait()

	assert.True(t, m.Match("refresh.log", false))
	assert.True(t, m.Match("build", true))
}
