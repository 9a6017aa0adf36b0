package gitsafe

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qasimio/operon/internal/ui"
)

func initRepo(t *testing.T, files map[string]string) (string, *git.Repository) {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	wt, err := repo.Worktree()
	require.NoError(t, err)
	for rel, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
		_, err = wt.Add(rel)
		require.NoError(t, err)
	}
	_, err = wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "tester", Email: "tester@localhost"},
	})
	require.NoError(t, err)
	return dir, repo
}

func readFile(t *testing.T, dir, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

func TestBeginWithoutRepository(t *testing.T) {
	s, err := Begin(t.TempDir(), ui.NullSink{})
	assert.NoError(t, err)
	assert.Nil(t, s)
}

func TestBeginLeavesPrimaryBranch(t *testing.T) {
	dir, repo := initRepo(t, map[string]string{"f.py": "v1\n"})

	s, err := Begin(dir, ui.NullSink{})
	require.NoError(t, err)
	require.NotNil(t, s)

	head, err := repo.Head()
	require.NoError(t, err)
	assert.Equal(t, s.Branch(), head.Name().Short())
	assert.NotEqual(t, "master", head.Name().Short())
	assert.Contains(t, s.Branch(), "operon/task-")
}

func TestRollbackRestoresAgentFilesAndUserStash(t *testing.T) {
	dir, _ := initRepo(t, map[string]string{
		"f.py": "agent target v1\n",
		"u.py": "user file v1\n",
	})

	// user has pending, uncommitted edits to U before the run starts
	require.NoError(t, os.WriteFile(filepath.Join(dir, "u.py"), []byte("user pending edits\n"), 0644))

	s, err := Begin(dir, ui.NullSink{})
	require.NoError(t, err)
	require.NotNil(t, s)

	// shelving put U back at HEAD for the duration of the run
	assert.Equal(t, "user file v1\n", readFile(t, dir, "u.py"))

	// agent rewrites F, then the run is cancelled
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f.py"), []byte("agent rewrite\n"), 0644))
	require.NoError(t, s.Rollback([]string{"f.py"}))

	assert.Equal(t, "agent target v1\n", readFile(t, dir, "f.py"), "agent edits rolled back to HEAD")
	assert.Equal(t, "user pending edits\n", readFile(t, dir, "u.py"), "user stash reapplied")
}

func TestRollbackSurfacesStashConflict(t *testing.T) {
	dir, _ := initRepo(t, map[string]string{"shared.py": "v1\n"})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "shared.py"), []byte("user edit\n"), 0644))

	s, err := Begin(dir, ui.NullSink{})
	require.NoError(t, err)

	// agent touches the same file the user had dirty
	require.NoError(t, os.WriteFile(filepath.Join(dir, "shared.py"), []byte("agent edit\n"), 0644))
	err = s.Rollback([]string{"shared.py"})

	var partial *ErrRollbackPartial
	require.ErrorAs(t, err, &partial)
	assert.Len(t, partial.Failures, 1)
	// the user version survives in the persisted stash document
	if _, statErr := os.Stat(filepath.Join(dir, ".operon", "stash-"+s.StashTag()+".json")); statErr != nil {
		t.Fatalf("stash document missing: %v", statErr)
	}
}

func TestCommitRecordsAgentWorkAndReappliesStash(t *testing.T) {
	dir, repo := initRepo(t, map[string]string{
		"f.py": "v1\n",
		"u.py": "user v1\n",
	})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "u.py"), []byte("user wip\n"), 0644))

	s, err := Begin(dir, ui.NullSink{})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "f.py"), []byte("agent v2\n"), 0644))
	require.NoError(t, s.Commit([]string{"f.py"}, "operon: update f"))

	head, err := repo.Head()
	require.NoError(t, err)
	commit, err := repo.CommitObject(head.Hash())
	require.NoError(t, err)
	assert.Equal(t, "operon: update f", commit.Message)
	assert.Equal(t, "operon", commit.Author.Name)

	assert.Equal(t, "user wip\n", readFile(t, dir, "u.py"), "user work returns after commit")
	assert.Equal(t, "agent v2\n", readFile(t, dir, "f.py"))
}

func TestRollbackDeletesFilesAbsentAtHead(t *testing.T) {
	dir, _ := initRepo(t, map[string]string{"f.py": "v1\n"})

	s, err := Begin(dir, ui.NullSink{})
	require.NoError(t, err)

	// agent creates a brand new file, then the run fails
	require.NoError(t, os.WriteFile(filepath.Join(dir, "new.py"), []byte("agent made this\n"), 0644))
	require.NoError(t, s.Rollback([]string{"new.py"}))

	_, statErr := os.Stat(filepath.Join(dir, "new.py"))
	assert.True(t, os.IsNotExist(statErr), "created file must be removed on rollback")
}
