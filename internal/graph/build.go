package graph

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/qasimio/operon/internal/fileutil"
	"github.com/qasimio/operon/internal/parser"
)

// Builder owns the persisted graph document. Only Build and persist
// mutate the on-disk view.
type Builder struct {
	RepoRoot    string
	Registry    *parser.Registry
	IgnoreRules []string
}

func NewBuilder(repoRoot string) *Builder {
	return &Builder{
		RepoRoot: repoRoot,
		Registry: parser.NewRegistry(),
	}
}

// BuildStats summarizes one build pass.
type BuildStats struct {
	Files     int
	Symbols   int
	Reindexed int
	Removed   int
}

// Load returns the persisted graph, or an empty shell when the document
// is missing, unreadable, or carries a different schema version. A
// schema mismatch therefore forces a full rebuild on the next Build.
func Load(repoRoot string) (*Graph, error) {
	data, err := os.ReadFile(filepath.Join(repoRoot, filepath.FromSlash(GraphFile)))
	if err != nil {
		if os.IsNotExist(err) {
			return NewGraph(), nil
		}
		return nil, err
	}

	var g Graph
	if err := json.Unmarshal(data, &g); err != nil {
		return NewGraph(), nil
	}
	if g.SchemaVersion != SchemaVersion {
		return NewGraph(), nil
	}
	if g.Files == nil {
		g.Files = make(map[string]*FileRecord)
	}
	if g.CrossRefs == nil {
		g.CrossRefs = make(map[string][]UsageSite)
	}
	return &g, nil
}

// Build walks the repository and refreshes the graph. With incremental
// set, files whose stored hash matches the disk hash keep their cached
// records; everything else is re-extracted. Records for vanished files
// are dropped. The result is persisted atomically before returning.
func (b *Builder) Build(incremental bool) (*Graph, BuildStats, error) {
	var g *Graph
	if incremental {
		loaded, err := Load(b.RepoRoot)
		if err != nil {
			return nil, BuildStats{}, err
		}
		g = loaded
	} else {
		g = NewGraph()
	}

	tracked, err := fileutil.ScanTrackedFiles(b.RepoRoot, b.Registry.SupportedExtensions(), b.IgnoreRules)
	if err != nil {
		return nil, BuildStats{}, fmt.Errorf("walking %s: %w", b.RepoRoot, err)
	}

	stats := BuildStats{}
	seen := make(map[string]bool, len(tracked))
	for _, file := range tracked {
		seen[file.Path] = true
		if existing, ok := g.Files[file.Path]; ok && existing.Hash == file.Hash {
			continue
		}

		content, err := os.ReadFile(filepath.Join(b.RepoRoot, filepath.FromSlash(file.Path)))
		if err != nil {
			continue
		}
		extracted := b.Registry.Extract(file.Path, content)
		if extracted == nil {
			continue
		}
		g.Files[file.Path] = &FileRecord{
			Path:       file.Path,
			Hash:       file.Hash,
			Language:   extracted.Language,
			ModTime:    file.ModTime,
			Symbols:    extracted.Symbols,
			Usages:     extracted.Usages,
			ParseFault: extracted.ParseFault,
		}
		stats.Reindexed++
	}

	for path := range g.Files {
		if !seen[path] {
			delete(g.Files, path)
			stats.Removed++
		}
	}

	g.rebuildCrossRefs()

	stats.Files = len(g.Files)
	stats.Symbols = len(g.CrossRefs)

	if err := b.Persist(g); err != nil {
		return nil, stats, err
	}
	return g, stats, nil
}

// Persist writes the graph document atomically: a torn write can never
// replace the previous complete version.
func (b *Builder) Persist(g *Graph) error {
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(b.RepoRoot, filepath.FromSlash(GraphFile))
	return fileutil.WriteFileAtomic(path, data, 0644)
}

// LoadOrBuild loads the persisted graph and builds it when empty.
func (b *Builder) LoadOrBuild() (*Graph, error) {
	g, err := Load(b.RepoRoot)
	if err != nil {
		return nil, err
	}
	if len(g.Files) > 0 {
		return g, nil
	}
	g, _, err = b.Build(true)
	return g, err
}
