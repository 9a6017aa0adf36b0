package resolve

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qasimio/operon/internal/graph"
)

func newTestRepo(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return dir
}

func TestPathExactMatch(t *testing.T) {
	dir := newTestRepo(t, map[string]string{"app/main.py": "x = 1\n"})
	r := New(dir, nil)

	resolved, ok := r.Path("app/main.py")
	assert.True(t, ok)
	assert.Equal(t, "app/main.py", resolved)
}

func TestPathCaseInsensitive(t *testing.T) {
	dir := newTestRepo(t, map[string]string{"app/Handlers.py": "x = 1\n"})
	r := New(dir, nil)

	resolved, ok := r.Path("app/handlers.py")
	assert.True(t, ok)
	assert.Equal(t, "app/Handlers.py", resolved)
}

func TestPathBasenamePrefersShallowest(t *testing.T) {
	dir := newTestRepo(t, map[string]string{
		"util.py":           "a = 1\n",
		"pkg/sub/util.py":   "b = 2\n",
		"other/deep/own.py": "c = 3\n",
	})
	r := New(dir, nil)

	resolved, ok := r.Path("util.py")
	assert.True(t, ok)
	assert.Equal(t, "util.py", resolved)

	resolved, ok = r.Path("somewhere/else/util.py")
	assert.True(t, ok)
	assert.Equal(t, "util.py", resolved)
}

func TestPathFuzzyStem(t *testing.T) {
	dir := newTestRepo(t, map[string]string{
		"services/payment_service.py": "x = 1\n",
	})
	r := New(dir, nil)

	resolved, ok := r.Path("payment.py")
	assert.True(t, ok)
	assert.Equal(t, "services/payment_service.py", resolved)
}

func TestPathSymbolFallback(t *testing.T) {
	dir := newTestRepo(t, map[string]string{"core/engine.py": "def ignite():\n    pass\n"})
	g, _, err := graph.NewBuilder(dir).Build(false)
	require.NoError(t, err)
	r := New(dir, g)

	resolved, ok := r.Path("ignite")
	assert.True(t, ok)
	assert.Equal(t, "core/engine.py", resolved)
}

func TestPathMissReturnsInput(t *testing.T) {
	dir := newTestRepo(t, map[string]string{"a.py": "x = 1\n"})
	r := New(dir, nil)

	resolved, ok := r.Path("brand_new_file.py")
	assert.False(t, ok)
	assert.Equal(t, "brand_new_file.py", resolved)
}

func TestPathShortStemNeverHijacksMiss(t *testing.T) {
	// Single-letter stems are substrings of almost anything; the miss
	// must survive so the agent can create the new file.
	dir := newTestRepo(t, map[string]string{
		"a.py":  "x = 1\n",
		"db.py": "y = 2\n",
	})
	r := New(dir, nil)

	resolved, ok := r.Path("database_backend.py")
	assert.False(t, ok)
	assert.Equal(t, "database_backend.py", resolved)
}

func TestReadResolved(t *testing.T) {
	dir := newTestRepo(t, map[string]string{"a.py": "x = 1\n"})
	r := New(dir, nil)

	resolved, content, ok := r.ReadResolved("a.py")
	assert.True(t, ok)
	assert.Equal(t, "a.py", resolved)
	assert.Equal(t, "x = 1\n", content)

	_, _, ok = r.ReadResolved("missing.py")
	assert.False(t, ok)
}
