package gitsafe

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/google/uuid"

	"github.com/qasimio/operon/internal/fileutil"
	"github.com/qasimio/operon/internal/ui"
)

// primaryBranches never receive agent commits directly.
var primaryBranches = map[string]bool{"main": true, "master": true}

// ErrRollbackPartial marks a rollback that could not fully restore
// the working tree. It is fatal to the run and surfaced verbatim.
type ErrRollbackPartial struct {
	Failures []string
}

func (e *ErrRollbackPartial) Error() string {
	return "rollback_partial: " + strings.Join(e.Failures, "; ")
}

// stashEntry preserves one dirty file across a run. Deleted is set
// when the file did not exist in the worktree (user had removed it).
type stashEntry struct {
	Path    string `json:"path"`
	Content string `json:"content,omitempty"`
	Deleted bool   `json:"deleted,omitempty"`
}

type stashDoc struct {
	Tag     string       `json:"tag"`
	Head    string       `json:"head"`
	Entries []stashEntry `json:"entries"`
}

// Sidecar wraps the repository's version control for one agent run.
// It records HEAD, shelves uncommitted user work under a unique tag,
// and keeps every restore operation scoped to the files the agent
// actually touched.
type Sidecar struct {
	RepoRoot string

	repo   *git.Repository
	sink   ui.Sink
	head   plumbing.Hash
	tag    string
	stash  map[string]stashEntry
	branch string
	active bool
}

// Begin opens the repository and prepares the run: records HEAD,
// shelves dirty files, and moves off the primary branch. Repositories
// without version control come back as (nil, nil); the pipeline then
// runs without transactional safety and says so.
func Begin(repoRoot string, sink ui.Sink) (*Sidecar, error) {
	repo, err := git.PlainOpen(repoRoot)
	if err != nil {
		if err == git.ErrRepositoryNotExists {
			sink.Event("git", "no repository found, running without rollback safety")
			return nil, nil
		}
		return nil, fmt.Errorf("opening repository: %w", err)
	}

	headRef, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("reading HEAD: %w", err)
	}

	s := &Sidecar{
		RepoRoot: repoRoot,
		repo:     repo,
		sink:     sink,
		head:     headRef.Hash(),
		tag:      "operon-" + uuid.NewString()[:8],
		stash:    make(map[string]stashEntry),
		active:   true,
	}

	if err := s.shelveDirtyFiles(); err != nil {
		return nil, err
	}
	if err := s.leavePrimaryBranch(headRef); err != nil {
		return nil, err
	}
	return s, nil
}

// Head returns the commit recorded at run start.
func (s *Sidecar) Head() string {
	return s.head.String()
}

// Branch returns the working branch for this run.
func (s *Sidecar) Branch() string {
	return s.branch
}

// StashTag returns the unique tag identifying shelved user work.
func (s *Sidecar) StashTag() string {
	return s.tag
}

// shelveDirtyFiles saves every uncommitted change under the run tag
// and restores those files to their HEAD state.
func (s *Sidecar) shelveDirtyFiles() error {
	wt, err := s.repo.Worktree()
	if err != nil {
		return err
	}
	status, err := wt.Status()
	if err != nil {
		return fmt.Errorf("reading worktree status: %w", err)
	}
	if status.IsClean() {
		return nil
	}

	for path, st := range status {
		if st.Worktree == git.Unmodified && st.Staging == git.Unmodified {
			continue
		}
		abs := filepath.Join(s.RepoRoot, filepath.FromSlash(path))
		entry := stashEntry{Path: path}
		if data, err := os.ReadFile(abs); err == nil {
			entry.Content = string(data)
		} else {
			entry.Deleted = true
		}
		s.stash[path] = entry
	}

	for path := range s.stash {
		if err := s.restoreFromHead(path); err != nil {
			return fmt.Errorf("shelving %s: %w", path, err)
		}
	}

	if err := s.persistStash(); err != nil {
		return err
	}
	ui.Eventf(s.sink, "git", "shelved %d dirty file(s) under %s", len(s.stash), s.tag)
	return nil
}

// leavePrimaryBranch creates and switches to a dedicated run branch
// when HEAD is on main or master.
func (s *Sidecar) leavePrimaryBranch(headRef *plumbing.Reference) error {
	name := headRef.Name()
	if !name.IsBranch() || !primaryBranches[name.Short()] {
		s.branch = name.Short()
		return nil
	}

	wt, err := s.repo.Worktree()
	if err != nil {
		return err
	}
	s.branch = "operon/task-" + s.tag
	err = wt.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(s.branch),
		Create: true,
		Keep:   true,
	})
	if err != nil {
		return fmt.Errorf("switching to %s: %w", s.branch, err)
	}
	ui.Eventf(s.sink, "git", "working on branch %s", s.branch)
	return nil
}

// Rollback restores every file in modified to its recorded-HEAD state
// and re-applies shelved user work into files outside that set. Files
// the agent never touched are never rewritten from HEAD.
func (s *Sidecar) Rollback(modified []string) error {
	if !s.active {
		return nil
	}
	failures := make([]string, 0)
	for _, path := range modified {
		if err := s.restoreFromHead(path); err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", path, err))
		}
	}

	conflicts := s.reapplyStash(fileutil.ToSet(modified))
	failures = append(failures, conflicts...)

	if len(failures) > 0 {
		return &ErrRollbackPartial{Failures: failures}
	}
	ui.Eventf(s.sink, "git", "rolled back %d file(s) to %s", len(modified), s.head.String()[:8])
	return nil
}

// Commit records the agent's modified files and then re-applies the
// shelved user work.
func (s *Sidecar) Commit(modified []string, message string) error {
	if !s.active || len(modified) == 0 {
		s.reapplyStash(nil)
		return nil
	}
	wt, err := s.repo.Worktree()
	if err != nil {
		return err
	}
	for _, path := range modified {
		if _, err := wt.Add(path); err != nil {
			return fmt.Errorf("staging %s: %w", path, err)
		}
	}
	hash, err := wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{Name: "operon", Email: "operon@localhost"},
	})
	if err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	ui.Eventf(s.sink, "git", "committed %d file(s) as %s", len(modified), hash.String()[:8])

	if conflicts := s.reapplyStash(fileutil.ToSet(modified)); len(conflicts) > 0 {
		return &ErrRollbackPartial{Failures: conflicts}
	}
	return nil
}

// restoreFromHead rewrites one file to its content at the recorded
// HEAD, deleting it when it did not exist there.
func (s *Sidecar) restoreFromHead(path string) error {
	commit, err := s.repo.CommitObject(s.head)
	if err != nil {
		return err
	}
	tree, err := commit.Tree()
	if err != nil {
		return err
	}
	abs := filepath.Join(s.RepoRoot, filepath.FromSlash(path))

	f, err := tree.File(path)
	if err == object.ErrFileNotFound {
		if removeErr := os.Remove(abs); removeErr != nil && !os.IsNotExist(removeErr) {
			return removeErr
		}
		return nil
	}
	if err != nil {
		return err
	}
	content, err := f.Contents()
	if err != nil {
		return err
	}
	return fileutil.WriteFileAtomic(abs, []byte(content), 0644)
}

// reapplyStash writes shelved user work back, skipping files in the
// exclude set. Skipped entries are surfaced as conflicts, never
// silently dropped. Returns conflict descriptions.
func (s *Sidecar) reapplyStash(exclude map[string]bool) []string {
	if len(s.stash) == 0 {
		return nil
	}
	conflicts := make([]string, 0)
	for _, path := range sortedKeys(s.stash) {
		entry := s.stash[path]
		if exclude[path] {
			conflicts = append(conflicts, fmt.Sprintf("stash conflict: %s was modified by both user and agent; user version kept in %s", path, s.stashFile()))
			continue
		}
		abs := filepath.Join(s.RepoRoot, filepath.FromSlash(path))
		if entry.Deleted {
			if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
				conflicts = append(conflicts, fmt.Sprintf("restoring deletion of %s: %v", path, err))
			}
			continue
		}
		if err := fileutil.WriteFileAtomic(abs, []byte(entry.Content), 0644); err != nil {
			conflicts = append(conflicts, fmt.Sprintf("restoring %s: %v", path, err))
		}
	}

	if len(conflicts) == 0 {
		os.Remove(s.stashFile())
		s.stash = make(map[string]stashEntry)
		ui.Eventf(s.sink, "git", "re-applied shelved work (%s)", s.tag)
	}
	return conflicts
}

func (s *Sidecar) persistStash() error {
	doc := stashDoc{Tag: s.tag, Head: s.head.String()}
	for _, path := range sortedKeys(s.stash) {
		doc.Entries = append(doc.Entries, s.stash[path])
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return fileutil.WriteFileAtomic(s.stashFile(), data, 0600)
}

func (s *Sidecar) stashFile() string {
	return filepath.Join(s.RepoRoot, ".operon", "stash-"+s.tag+".json")
}

func sortedKeys(m map[string]stashEntry) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
