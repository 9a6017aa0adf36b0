package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/qasimio/operon/internal/fileutil"
)

const (
	// IndexFile is the file-hash cache, relative to the repo root.
	IndexFile      = ".operon/index.json"
	CurrentVersion = "2"
)

// FileState tracks the last indexed hash of a single file
type FileState struct {
	Hash      string    `json:"hash"`
	Language  string    `json:"language,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// State is the persisted file-hash cache used to report what changed
// between index runs.
type State struct {
	Version   string               `json:"version"`
	UpdatedAt time.Time            `json:"updated_at"`
	Files     map[string]FileState `json:"files"`
}

// NewState creates a new empty state
func NewState() *State {
	return &State{
		Version: CurrentVersion,
		Files:   make(map[string]FileState),
	}
}

// Load reads the cache, returning an empty state when absent.
func Load(repoRoot string) (*State, error) {
	data, err := os.ReadFile(filepath.Join(repoRoot, filepath.FromSlash(IndexFile)))
	if err != nil {
		if os.IsNotExist(err) {
			return NewState(), nil
		}
		return nil, err
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, err
	}
	if st.Files == nil {
		st.Files = make(map[string]FileState)
	}
	if st.Version == "" {
		st.Version = CurrentVersion
	}
	return &st, nil
}

// Save persists the cache atomically.
func (s *State) Save(repoRoot string) error {
	if s.Version == "" {
		s.Version = CurrentVersion
	}
	if s.Files == nil {
		s.Files = make(map[string]FileState)
	}
	s.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return fileutil.WriteFileAtomic(filepath.Join(repoRoot, filepath.FromSlash(IndexFile)), data, 0644)
}

// SetFile records the current hash for a file.
func (s *State) SetFile(path, hash, language string) {
	s.Files[path] = FileState{
		Hash:      hash,
		Language:  language,
		UpdatedAt: time.Now(),
	}
}

// RemoveFile drops a file from tracking.
func (s *State) RemoveFile(path string) {
	delete(s.Files, path)
}

// HasChanged returns true if the file hash differs from stored.
func (s *State) HasChanged(path, currentHash string) bool {
	stored, ok := s.Files[path]
	if !ok {
		return true
	}
	return stored.Hash != currentHash
}

// ChangedFiles returns files that are new or modified, sorted.
func (s *State) ChangedFiles(currentHashes map[string]string) []string {
	changed := make([]string, 0)
	for path, hash := range currentHashes {
		if s.HasChanged(path, hash) {
			changed = append(changed, path)
		}
	}
	sort.Strings(changed)
	return changed
}

// DeletedFiles returns tracked files that no longer exist, sorted.
func (s *State) DeletedFiles(currentFiles map[string]bool) []string {
	deleted := make([]string, 0)
	for path := range s.Files {
		if !currentFiles[path] {
			deleted = append(deleted, path)
		}
	}
	sort.Strings(deleted)
	return deleted
}
