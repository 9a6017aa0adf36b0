package refactor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/qasimio/operon/internal/graph"
)

// FileEdit is the planned change for one file.
type FileEdit struct {
	Path        string
	Occurrences int
	Before      string
	After       string
	Err         error
}

// Renamer performs repository-wide symbol renames. Python files are
// renamed on the identifier token stream; other languages get a
// word-boundary regex rewrite.
type Renamer struct {
	RepoRoot string
	Graph    *graph.Graph
}

func NewRenamer(repoRoot string, g *graph.Graph) *Renamer {
	return &Renamer{RepoRoot: repoRoot, Graph: g}
}

// Plan collects the edits for renaming old to new across every file
// that references old. Nothing is written.
func (r *Renamer) Plan(oldName, newName string) ([]FileEdit, error) {
	if !isIdentifier(newName) {
		return nil, fmt.Errorf("%q is not a valid identifier", newName)
	}

	files := make([]string, 0)
	seen := make(map[string]bool)
	for _, site := range r.Graph.Query(oldName) {
		if !seen[site.File] {
			seen[site.File] = true
			files = append(files, site.File)
		}
	}
	sort.Strings(files)
	if len(files) == 0 {
		return nil, fmt.Errorf("symbol %q not found", oldName)
	}

	edits := make([]FileEdit, 0, len(files))
	for _, file := range files {
		edit := FileEdit{Path: file}
		data, err := os.ReadFile(filepath.Join(r.RepoRoot, filepath.FromSlash(file)))
		if err != nil {
			edit.Err = err
			edits = append(edits, edit)
			continue
		}
		edit.Before = string(data)

		if strings.HasSuffix(file, ".py") || strings.HasSuffix(file, ".pyw") {
			edit.After, edit.Occurrences, edit.Err = renamePythonTokens(data, oldName, newName)
		} else {
			edit.After, edit.Occurrences = renameByWordBoundary(edit.Before, oldName, newName)
		}
		edits = append(edits, edit)
	}
	return edits, nil
}

// Apply writes the planned edits atomically. Files whose plan failed
// are skipped and reported; err is non-nil when any file failed.
func (r *Renamer) Apply(edits []FileEdit) error {
	return applyEdits(r.RepoRoot, "rename", edits)
}

// renamePythonTokens rewrites exactly the identifier tokens equal to
// oldName, walking the syntax tree so substrings and attribute names
// inside strings are never touched.
func renamePythonTokens(content []byte, oldName, newName string) (string, int, error) {
	p := sitter.NewParser()
	p.SetLanguage(python.GetLanguage())
	tree, err := p.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return "", 0, err
	}
	defer tree.Close()

	type span struct{ start, end int }
	var spans []span
	var walk func(node *sitter.Node)
	walk = func(node *sitter.Node) {
		if node.Type() == "identifier" && node.Content(content) == oldName {
			spans = append(spans, span{int(node.StartByte()), int(node.EndByte())})
			return
		}
		for i := 0; i < int(node.ChildCount()); i++ {
			walk(node.Child(i))
		}
	}
	walk(tree.RootNode())

	if len(spans) == 0 {
		return string(content), 0, nil
	}

	var b strings.Builder
	prev := 0
	for _, s := range spans {
		b.Write(content[prev:s.start])
		b.WriteString(newName)
		prev = s.end
	}
	b.Write(content[prev:])
	return b.String(), len(spans), nil
}

func renameByWordBoundary(content, oldName, newName string) (string, int) {
	re, err := regexp.Compile(`\b` + regexp.QuoteMeta(oldName) + `\b`)
	if err != nil {
		return content, 0
	}
	count := len(re.FindAllStringIndex(content, -1))
	if count == 0 {
		return content, 0
	}
	return re.ReplaceAllString(content, newName), count
}

var identifierRe = regexp.MustCompile(`^[A-Za-z_]\w*$`)

func isIdentifier(name string) bool {
	return identifierRe.MatchString(name)
}
