package graph

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/qasimio/operon/internal/parser"
)

func TestQuerySplitsDefinitionsAndUsages(t *testing.T) {
	g := NewGraph()
	g.Files["a.py"] = &FileRecord{
		Path: "a.py",
		Usages: map[string][]parser.Occurrence{
			"helper": {
				{Line: 1, Kind: parser.UsageDefinition},
				{Line: 9, Kind: parser.UsageCall},
			},
		},
	}
	g.Files["b.py"] = &FileRecord{
		Path: "b.py",
		Usages: map[string][]parser.Occurrence{
			"helper": {{Line: 4, Kind: parser.UsageCall}},
		},
	}
	g.rebuildCrossRefs()

	all := g.Query("helper")
	defs := g.FindDefinitions("helper")
	uses := g.FindUsages("helper")

	if len(all) != 3 {
		t.Fatalf("expected 3 sites, got %d", len(all))
	}
	if len(defs) != 1 || defs[0].File != "a.py" || defs[0].Line != 1 {
		t.Fatalf("unexpected definitions: %+v", defs)
	}
	if len(uses) != 2 {
		t.Fatalf("expected 2 usages, got %d", len(uses))
	}
	// union is disjoint and covers the full query
	if len(defs)+len(uses) != len(all) {
		t.Fatalf("definitions and usages must partition the query result")
	}
}

func TestCrossRefsOrderedByFileThenLine(t *testing.T) {
	g := NewGraph()
	g.Files["b.py"] = &FileRecord{
		Path:   "b.py",
		Usages: map[string][]parser.Occurrence{"x": {{Line: 2, Kind: parser.UsageCall}}},
	}
	g.Files["a.py"] = &FileRecord{
		Path: "a.py",
		Usages: map[string][]parser.Occurrence{"x": {
			{Line: 9, Kind: parser.UsageCall},
			{Line: 3, Kind: parser.UsageCall},
		}},
	}
	g.rebuildCrossRefs()

	sites := g.Query("x")
	if len(sites) != 3 {
		t.Fatalf("expected 3 sites, got %d", len(sites))
	}
	if sites[0].File != "a.py" || sites[0].Line != 3 {
		t.Fatalf("unexpected first site: %+v", sites[0])
	}
	if sites[2].File != "b.py" {
		t.Fatalf("unexpected last site: %+v", sites[2])
	}
}

func TestEnclosingSymbolPicksInnermost(t *testing.T) {
	g := NewGraph()
	g.Files["a.py"] = &FileRecord{
		Path: "a.py",
		Symbols: []parser.Symbol{
			{Name: "Big", Kind: parser.SymbolClass, Start: 1, End: 30},
			{Name: "method", Kind: parser.SymbolFunction, Start: 5, End: 10, Parent: "Big"},
		},
	}

	sym, ok := g.EnclosingSymbol("a.py", 7)
	if !ok || sym.Name != "method" {
		t.Fatalf("expected innermost method, got %+v ok=%v", sym, ok)
	}
	sym, ok = g.EnclosingSymbol("a.py", 20)
	if !ok || sym.Name != "Big" {
		t.Fatalf("expected enclosing class, got %+v ok=%v", sym, ok)
	}
	if _, ok := g.EnclosingSymbol("a.py", 99); ok {
		t.Fatalf("expected no symbol outside any span")
	}
}

func TestBuildIncrementalReindexesOnlyChangedFiles(t *testing.T) {
	dir := t.TempDir()
	write := func(rel, content string) {
		t.Helper()
		path := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	write("a.py", "def one():\n    return 1\n")
	write("b.py", "def two():\n    return 2\n")

	b := NewBuilder(dir)
	g, stats, err := b.Build(false)
	if err != nil {
		t.Fatalf("full build: %v", err)
	}
	if stats.Files != 2 || stats.Reindexed != 2 {
		t.Fatalf("unexpected full build stats: %+v", stats)
	}
	if _, ok := g.SymbolSpan("a.py", "one"); !ok {
		t.Fatalf("expected symbol one in a.py")
	}

	write("b.py", "def two():\n    return 22\n")
	g, stats, err = b.Build(true)
	if err != nil {
		t.Fatalf("incremental build: %v", err)
	}
	if stats.Reindexed != 1 {
		t.Fatalf("expected 1 reindexed file, got %d", stats.Reindexed)
	}
	if stats.Files != 2 {
		t.Fatalf("expected 2 files, got %d", stats.Files)
	}
	if g.Files["b.py"].Hash == "" {
		t.Fatalf("hash missing after rebuild")
	}

	// removal is picked up on the next pass
	if err := os.Remove(filepath.Join(dir, "a.py")); err != nil {
		t.Fatal(err)
	}
	_, stats, err = b.Build(true)
	if err != nil {
		t.Fatalf("build after removal: %v", err)
	}
	if stats.Removed != 1 || stats.Files != 1 {
		t.Fatalf("expected removal to drop a.py: %+v", stats)
	}
}

func TestLoadRejectsSchemaMismatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".operon", "symbol_graph.json")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	doc := `{"schema_version": 1, "files": {"old.py": {"path": "old.py"}}}`
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}

	g, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(g.Files) != 0 {
		t.Fatalf("stale schema should reset to an empty graph, got %d files", len(g.Files))
	}
}
