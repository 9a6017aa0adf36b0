package agent

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qasimio/operon/internal/approval"
	"github.com/qasimio/operon/internal/gitsafe"
	"github.com/qasimio/operon/internal/graph"
	"github.com/qasimio/operon/internal/oracle"
	"github.com/qasimio/operon/internal/ui"
)

func newAgentRepo(t *testing.T, files map[string]string) (string, *graph.Graph) {
	t.Helper()
	dir := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	g, _, err := graph.NewBuilder(dir).Build(false)
	require.NoError(t, err)
	return dir, g
}

func TestRunDeleteLinesFastPath(t *testing.T) {
	dir, g := newAgentRepo(t, map[string]string{
		"x.py": "a = 1\nb = 2\nc = 3\nd = 4\ne = 5\nf = 6\n",
	})
	scripted := &oracle.Scripted{}
	sink := &ui.MemorySink{}
	gate := approval.NewGate(sink, approval.WithAutoApprove())

	orch := New(dir, g, scripted, gate, sink, nil)
	result, err := orch.Run(context.Background(), "delete lines 3-5 in x.py")
	require.NoError(t, err)

	assert.Equal(t, PhaseDone, result.Phase)
	assert.Equal(t, []string{"x.py"}, result.FilesModified)
	assert.Empty(t, scripted.Calls, "the fast path must not consult the oracle")

	data, err := os.ReadFile(filepath.Join(dir, "x.py"))
	require.NoError(t, err)
	assert.Equal(t, "a = 1\nb = 2\nf = 6\n", string(data))
	assert.True(t, sink.Has("approval"), "the write must pass through the gate")
}

func TestRunAddImportFastPath(t *testing.T) {
	dir, g := newAgentRepo(t, map[string]string{
		"app.py": "def f():\n    pass\n",
	})
	sink := &ui.MemorySink{}
	gate := approval.NewGate(sink, approval.WithAutoApprove())

	orch := New(dir, g, &oracle.Scripted{}, gate, sink, nil)
	result, err := orch.Run(context.Background(), "add import json to app.py")
	require.NoError(t, err)

	assert.Equal(t, PhaseDone, result.Phase)
	data, _ := os.ReadFile(filepath.Join(dir, "app.py"))
	assert.Equal(t, "import json\ndef f():\n    pass\n", string(data))
}

func TestRunBreaksRepeatedActionLoop(t *testing.T) {
	dir, g := newAgentRepo(t, map[string]string{
		"x.py": "a = 1\n",
	})
	plan := `{"steps": [{"description": "investigate the module", "file": "x.py", "rule": {"kind": "nontrivial_diff"}}]}`
	readLoop := `{"tool": "read_file", "args": {"path": "x.py"}}`
	scripted := &oracle.Scripted{Responses: []string{plan, readLoop}}
	sink := &ui.MemorySink{}
	gate := approval.NewGate(sink, approval.WithAutoApprove())

	orch := New(dir, g, scripted, gate, sink, nil)
	result, err := orch.Run(context.Background(), "investigate the module thoroughly")
	require.NoError(t, err)

	assert.True(t, sink.Has("loop_detected"))
	assert.Equal(t, PhaseFailed, result.Phase)
	assert.Equal(t, "loop", result.Reason)
	assert.Empty(t, result.FilesModified)
}

func TestRunRejectsWriteWhenGateDeclines(t *testing.T) {
	dir, g := newAgentRepo(t, map[string]string{
		"x.py": "a = 1\nb = 2\nc = 3\n",
	})
	sink := &ui.MemorySink{}
	gate := approval.NewGate(sink)
	go func() {
		for req := range gate.Requests() {
			req.Respond(approval.Rejected)
		}
	}()

	orch := New(dir, g, &oracle.Scripted{}, gate, sink, nil)
	result, err := orch.Run(context.Background(), "delete lines 2-2 in x.py")
	require.NoError(t, err)

	assert.Equal(t, PhaseFailed, result.Phase)
	data, _ := os.ReadFile(filepath.Join(dir, "x.py"))
	assert.Equal(t, "a = 1\nb = 2\nc = 3\n", string(data), "declined edits never touch disk")
}

func TestRunCancelledContext(t *testing.T) {
	dir, g := newAgentRepo(t, map[string]string{"x.py": "a = 1\n"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	orch := New(dir, g, &oracle.Scripted{}, approval.NewGate(ui.NullSink{}, approval.WithAutoApprove()), ui.NullSink{}, nil)
	result, err := orch.Run(ctx, "delete lines 1-1 in x.py")
	require.NoError(t, err)

	assert.True(t, result.Cancelled)
	assert.Equal(t, PhaseFailed, result.Phase)
}

func TestRunSurfacesRollbackFailureWithNoEdits(t *testing.T) {
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "u.py"), []byte("user = 1\n"), 0644))
	_, err = wt.Add("u.py")
	require.NoError(t, err)
	_, err = wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "tester", Email: "tester@localhost"},
	})
	require.NoError(t, err)

	// user work pending before the run; Begin shelves it
	require.NoError(t, os.WriteFile(filepath.Join(dir, "u.py"), []byte("user = 2\n"), 0644))

	sink := &ui.MemorySink{}
	sidecar, err := gitsafe.Begin(dir, sink)
	require.NoError(t, err)
	require.NotNil(t, sidecar)

	g, _, err := graph.NewBuilder(dir).Build(false)
	require.NoError(t, err)

	// make the shelved file unrestorable so the stash re-apply fails
	require.NoError(t, os.Remove(filepath.Join(dir, "u.py")))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "u.py"), 0755))

	orch := New(dir, g, &oracle.Scripted{}, approval.NewGate(sink, approval.WithAutoApprove()), sink, sidecar)
	result, err := orch.Run(context.Background(), "improve the error messages everywhere")
	require.Error(t, err, "a failed stash re-apply must not be swallowed")

	var partial *gitsafe.ErrRollbackPartial
	assert.ErrorAs(t, err, &partial)
	assert.Equal(t, PhaseFailed, result.Phase)
	assert.Empty(t, result.FilesModified)
}

func TestRunSyntaxRejectKeepsFileIntact(t *testing.T) {
	// Deleting only the opening line leaves an unbalanced paren, which
	// the syntax check must refuse to write.
	dir, g := newAgentRepo(t, map[string]string{
		"x.py": "x = (\n    1\n)\n",
	})
	sink := &ui.MemorySink{}
	gate := approval.NewGate(sink, approval.WithAutoApprove())

	orch := New(dir, g, &oracle.Scripted{}, gate, sink, nil)
	result, err := orch.Run(context.Background(), "delete lines 1-1 in x.py")
	require.NoError(t, err)

	assert.Equal(t, PhaseFailed, result.Phase)
	data, _ := os.ReadFile(filepath.Join(dir, "x.py"))
	assert.Equal(t, "x = (\n    1\n)\n", string(data))
}
