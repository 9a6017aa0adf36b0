package resolve

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/qasimio/operon/internal/graph"
	"github.com/qasimio/operon/internal/ignore"
)

// minFuzzyStem guards the fuzzy tier against single-character stems.
const minFuzzyStem = 3

// Resolver maps user-supplied filenames to repository-relative paths
// using tiered matching.
type Resolver struct {
	RepoRoot    string
	Graph       *graph.Graph
	IgnoreRules []string
}

func New(repoRoot string, g *graph.Graph) *Resolver {
	return &Resolver{RepoRoot: repoRoot, Graph: g}
}

// Path resolves userPath and reports whether any tier hit. On a miss
// the input comes back unchanged so callers may choose to create it.
func (r *Resolver) Path(userPath string) (string, bool) {
	if strings.TrimSpace(userPath) == "" {
		return userPath, false
	}
	userPath = filepath.ToSlash(userPath)

	// Tier 1: exact relative path.
	if isFile(filepath.Join(r.RepoRoot, filepath.FromSlash(userPath))) {
		return userPath, true
	}

	all := r.allFiles()

	// Tier 2: case-insensitive exact match.
	lower := strings.ToLower(userPath)
	for _, rel := range all {
		if strings.ToLower(rel) == lower {
			return rel, true
		}
	}

	// Tier 3: recursive basename match, shortest path wins.
	base := strings.ToLower(filepath.Base(userPath))
	matches := make([]string, 0)
	for _, rel := range all {
		if strings.ToLower(filepath.Base(rel)) == base {
			matches = append(matches, rel)
		}
	}
	if len(matches) > 0 {
		return shortest(matches), true
	}

	// Tier 4: fuzzy stem containment, ties by longest common prefix.
	stem := strings.ToLower(stemOf(userPath))
	if len(stem) > minFuzzyStem {
		fuzzy := make([]string, 0)
		for _, rel := range all {
			candidate := strings.ToLower(stemOf(rel))
			// The candidate stem must clear the length floor too, or
			// a file like a.py would swallow every unresolved name.
			if strings.Contains(candidate, stem) ||
				(len(candidate) > minFuzzyStem && strings.Contains(stem, candidate)) {
				fuzzy = append(fuzzy, rel)
			}
		}
		if len(fuzzy) == 1 {
			return fuzzy[0], true
		}
		if len(fuzzy) > 1 {
			sort.SliceStable(fuzzy, func(i, j int) bool {
				pi := commonPrefixLen(strings.ToLower(stemOf(fuzzy[i])), stem)
				pj := commonPrefixLen(strings.ToLower(stemOf(fuzzy[j])), stem)
				if pi != pj {
					return pi > pj
				}
				return len(strings.Split(fuzzy[i], "/")) < len(strings.Split(fuzzy[j], "/"))
			})
			return fuzzy[0], true
		}
	}

	// Tier 5: the token may name a symbol; use its defining file.
	if r.Graph != nil {
		token := stemOf(userPath)
		if file, ok := r.Graph.DefiningFile(token); ok {
			return file, true
		}
	}

	return userPath, false
}

// Exists reports whether userPath resolves to a tracked file.
func (r *Resolver) Exists(userPath string) bool {
	_, found := r.Path(userPath)
	return found
}

// ReadResolved resolves userPath and reads it.
func (r *Resolver) ReadResolved(userPath string) (resolved string, content string, ok bool) {
	resolved, found := r.Path(userPath)
	if !found {
		return resolved, "", false
	}
	data, err := os.ReadFile(filepath.Join(r.RepoRoot, filepath.FromSlash(resolved)))
	if err != nil {
		return resolved, "", false
	}
	return resolved, string(data), true
}

func (r *Resolver) allFiles() []string {
	matcher := ignore.NewMatcher(r.IgnoreRules)
	out := make([]string, 0)
	filepath.Walk(r.RepoRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		rel, relErr := filepath.Rel(r.RepoRoot, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if matcher.ShouldIgnore(rel, info.IsDir()) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.IsDir() {
			out = append(out, rel)
		}
		return nil
	})
	sort.Strings(out)
	return out
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func shortest(paths []string) string {
	best := paths[0]
	for _, p := range paths[1:] {
		if depth(p) < depth(best) || (depth(p) == depth(best) && p < best) {
			best = p
		}
	}
	return best
}

func depth(path string) int {
	return len(strings.Split(path, "/"))
}

func stemOf(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func commonPrefixLen(a, b string) int {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return n
}
