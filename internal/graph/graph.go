package graph

import (
	"sort"
	"strings"
	"time"

	"github.com/qasimio/operon/internal/parser"
)

const (
	// GraphFile is the persisted graph document, relative to the repo root.
	GraphFile     = ".operon/symbol_graph.json"
	SchemaVersion = 5
)

// FileRecord holds everything the graph knows about one tracked file.
type FileRecord struct {
	Path       string                         `json:"path"`
	Hash       string                         `json:"hash"`
	Language   string                         `json:"language,omitempty"`
	ModTime    time.Time                      `json:"mod_time,omitempty"`
	Symbols    []parser.Symbol                `json:"symbols,omitempty"`
	Usages     map[string][]parser.Occurrence `json:"usages,omitempty"`
	ParseFault string                         `json:"parse_fault,omitempty"`
}

// UsageSite is one occurrence of a symbol somewhere in the repository.
type UsageSite struct {
	Symbol string           `json:"symbol"`
	File   string           `json:"file"`
	Line   int              `json:"line"`
	Kind   parser.UsageKind `json:"kind"`
}

// Graph is the repository-wide symbol graph. CrossRefs maps a symbol
// name to every usage site, ordered by file then line.
type Graph struct {
	SchemaVersion int                     `json:"schema_version"`
	Files         map[string]*FileRecord  `json:"files"`
	CrossRefs     map[string][]UsageSite  `json:"cross_refs"`
}

// NewGraph returns an empty shell at the current schema version.
func NewGraph() *Graph {
	return &Graph{
		SchemaVersion: SchemaVersion,
		Files:         make(map[string]*FileRecord),
		CrossRefs:     make(map[string][]UsageSite),
	}
}

// Query returns all cross-ref entries for a symbol name (exact,
// case-sensitive match).
func (g *Graph) Query(name string) []UsageSite {
	return g.CrossRefs[name]
}

// FindDefinitions returns only the definition sites for a symbol.
func (g *Graph) FindDefinitions(name string) []UsageSite {
	out := make([]UsageSite, 0)
	for _, site := range g.Query(name) {
		if site.Kind == parser.UsageDefinition {
			out = append(out, site)
		}
	}
	return out
}

// FindUsages returns every non-definition site for a symbol.
func (g *Graph) FindUsages(name string) []UsageSite {
	out := make([]UsageSite, 0)
	for _, site := range g.Query(name) {
		if site.Kind != parser.UsageDefinition {
			out = append(out, site)
		}
	}
	return out
}

// SymbolsInFile returns the symbol records for one file, or nil.
func (g *Graph) SymbolsInFile(path string) []parser.Symbol {
	record, ok := g.Files[path]
	if !ok {
		return nil
	}
	return record.Symbols
}

// SearchByPrefix returns symbol names starting with prefix,
// case-insensitive, sorted.
func (g *Graph) SearchByPrefix(prefix string) []string {
	p := strings.ToLower(prefix)
	out := make([]string, 0)
	for name := range g.CrossRefs {
		if strings.HasPrefix(strings.ToLower(name), p) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// DefiningFile returns the file holding the first definition of name.
func (g *Graph) DefiningFile(name string) (string, bool) {
	defs := g.FindDefinitions(name)
	if len(defs) == 0 {
		return "", false
	}
	return defs[0].File, true
}

// SymbolSpan returns the record for a named function/class in a file.
func (g *Graph) SymbolSpan(path, name string) (parser.Symbol, bool) {
	for _, sym := range g.SymbolsInFile(path) {
		if sym.Name != name {
			continue
		}
		if sym.Kind == parser.SymbolFunction || sym.Kind == parser.SymbolClass {
			return sym, true
		}
	}
	return parser.Symbol{}, false
}

// EnclosingSymbol returns the innermost function/class whose span
// contains line.
func (g *Graph) EnclosingSymbol(path string, line int) (parser.Symbol, bool) {
	best := parser.Symbol{}
	found := false
	for _, sym := range g.SymbolsInFile(path) {
		if sym.Kind != parser.SymbolFunction && sym.Kind != parser.SymbolClass {
			continue
		}
		if line < sym.Start || line > sym.End {
			continue
		}
		if !found || sym.End-sym.Start < best.End-best.Start {
			best = sym
			found = true
		}
	}
	return best, found
}

// Paths returns all tracked file paths, sorted.
func (g *Graph) Paths() []string {
	out := make([]string, 0, len(g.Files))
	for path := range g.Files {
		out = append(out, path)
	}
	sort.Strings(out)
	return out
}

// FileSummary builds a one-line human summary of what a file contains.
func (g *Graph) FileSummary(path string) string {
	symbols := g.SymbolsInFile(path)
	if len(symbols) == 0 {
		return "(empty)"
	}

	var classes, functions, vars []string
	for _, sym := range symbols {
		switch sym.Kind {
		case parser.SymbolClass:
			classes = append(classes, sym.Name)
		case parser.SymbolFunction:
			if sym.Parent == "" {
				functions = append(functions, sym.Name)
			}
		case parser.SymbolVariable:
			vars = append(vars, sym.Name)
		}
	}

	parts := make([]string, 0, 3)
	if len(classes) > 0 {
		parts = append(parts, "classes: "+strings.Join(capList(classes, 4), ", "))
	}
	if len(functions) > 0 {
		parts = append(parts, "functions: "+strings.Join(capList(functions, 8), ", "))
	}
	if len(vars) > 0 {
		parts = append(parts, "vars: "+strings.Join(capList(vars, 6), ", "))
	}
	if len(parts) == 0 {
		return "(empty)"
	}
	return strings.Join(parts, " | ")
}

// rebuildCrossRefs reassembles the cross-reference index from per-file
// usage maps, keeping the file-map and cross-ref invariant aligned.
func (g *Graph) rebuildCrossRefs() {
	refs := make(map[string][]UsageSite)
	for _, path := range g.Paths() {
		record := g.Files[path]
		for name, occs := range record.Usages {
			if len(name) < 2 {
				continue
			}
			for _, occ := range occs {
				refs[name] = append(refs[name], UsageSite{
					Symbol: name,
					File:   path,
					Line:   occ.Line,
					Kind:   occ.Kind,
				})
			}
		}
	}
	for name, sites := range refs {
		sort.SliceStable(sites, func(i, j int) bool {
			if sites[i].File == sites[j].File {
				return sites[i].Line < sites[j].Line
			}
			return sites[i].File < sites[j].File
		})
		refs[name] = sites
	}
	g.CrossRefs = refs
}

func capList(values []string, n int) []string {
	if len(values) > n {
		return values[:n]
	}
	return values
}
