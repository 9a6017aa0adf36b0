package docsgen

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/qasimio/operon/internal/chunk"
	"github.com/qasimio/operon/internal/fileutil"
	"github.com/qasimio/operon/internal/graph"
	"github.com/qasimio/operon/internal/oracle"
	"github.com/qasimio/operon/internal/parser"
	"github.com/qasimio/operon/internal/ui"
)

const summaryPrompt = `Summarize what this %s does in one or two plain sentences. Reply with the summary only, no preamble.

%s`

// SymbolDoc is the rendered documentation for one symbol.
type SymbolDoc struct {
	Name      string
	Kind      string
	Start     int
	End       int
	Signature string
	Summary   string
	FromCache bool
}

// Generator emits per-symbol documentation. With an oracle configured
// it asks for prose summaries, cached by symbol content hash; without
// one it falls back to structural one-liners.
type Generator struct {
	RepoRoot string
	Graph    *graph.Graph
	Oracle   oracle.Oracle
	Sink     ui.Sink
	Model    string

	cache map[string]Record
	dirty bool
}

func NewGenerator(repoRoot string, g *graph.Graph, o oracle.Oracle, sink ui.Sink) *Generator {
	gen := &Generator{
		RepoRoot: repoRoot,
		Graph:    g,
		Oracle:   o,
		Sink:     sink,
		Model:    oracle.LoadConfig(repoRoot).Model,
	}
	gen.cache = LoadCache(gen.cachePath())
	return gen
}

// SummarizeFile documents every function and class in file.
func (g *Generator) SummarizeFile(ctx context.Context, file string) ([]SymbolDoc, error) {
	symbols := g.Graph.SymbolsInFile(file)
	if symbols == nil {
		return nil, fmt.Errorf("%s is not in the symbol graph", file)
	}

	docs := make([]SymbolDoc, 0, len(symbols))
	for _, sym := range symbols {
		if sym.Kind != parser.SymbolFunction && sym.Kind != parser.SymbolClass {
			continue
		}
		doc := SymbolDoc{
			Name:      qualifiedName(sym),
			Kind:      sym.Kind.String(),
			Start:     sym.Start,
			End:       sym.End,
			Signature: Signature(sym),
		}
		doc.Summary, doc.FromCache = g.summarize(ctx, file, sym)
		docs = append(docs, doc)
	}

	if g.dirty {
		if err := WriteCache(g.cachePath(), g.cache); err != nil {
			ui.Eventf(g.Sink, "warn", "summary cache not written: %v", err)
		}
		g.dirty = false
	}
	return docs, nil
}

// summarize returns the best available summary for one symbol:
// cached oracle prose, fresh oracle prose, or the structural line.
func (g *Generator) summarize(ctx context.Context, file string, sym parser.Symbol) (string, bool) {
	structural := StructuralSummary(sym)
	if g.Oracle == nil {
		return structural, false
	}

	c, ok := chunk.Extract(g.RepoRoot, g.Graph, file, sym.Name)
	if !ok {
		return structural, false
	}
	contentHash := fileutil.HashBytes([]byte(c.Source))
	symbolID := file + "::" + qualifiedName(sym)
	key := CacheKey(symbolID, contentHash, g.Model)
	if record, hit := g.cache[key]; hit {
		return record.Summary, true
	}

	reply, err := g.Oracle.Call(ctx, fmt.Sprintf(summaryPrompt, sym.Kind.String(), c.Source), false)
	if err != nil {
		ui.Eventf(g.Sink, "warn", "summary for %s fell back to structure: %v", sym.Name, err)
		return structural, false
	}
	summary := strings.TrimSpace(reply)
	if summary == "" {
		return structural, false
	}

	g.cache[key] = Record{
		SymbolID:    symbolID,
		File:        file,
		Kind:        sym.Kind.String(),
		ContentHash: contentHash,
		Model:       g.Model,
		Summary:     summary,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	}
	g.dirty = true
	return summary, false
}

// DocsMarkdown renders the documentation body for one file.
func (g *Generator) DocsMarkdown(ctx context.Context, file string) (string, error) {
	docs, err := g.SummarizeFile(ctx, file)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", file)
	if len(docs) == 0 {
		b.WriteString("No functions or classes.\n")
		return b.String(), nil
	}
	for _, doc := range docs {
		fmt.Fprintf(&b, "### `%s` (%s, lines %d-%d)\n\n", doc.Signature, doc.Kind, doc.Start, doc.End)
		fmt.Fprintf(&b, "%s\n\n", doc.Summary)
	}
	return strings.TrimRight(b.String(), "\n") + "\n", nil
}

// WriteDocs upserts the managed block for file into outPath. Returns
// whether the target changed.
func (g *Generator) WriteDocs(ctx context.Context, file, outPath string) (bool, error) {
	body, err := g.DocsMarkdown(ctx, file)
	if err != nil {
		return false, err
	}
	return UpsertManagedFile(outPath, body)
}

func (g *Generator) cachePath() string {
	return filepath.Join(g.RepoRoot, filepath.FromSlash(CacheFile))
}

// Signature renders a symbol with its parameter list.
func Signature(sym parser.Symbol) string {
	name := qualifiedName(sym)
	if sym.Kind != parser.SymbolFunction {
		return name
	}
	sig := name + "(" + strings.Join(sym.Params, ", ") + ")"
	if sym.IsAsync {
		sig = "async " + sig
	}
	return sig
}

// StructuralSummary builds the no-oracle one-liner: docstring first
// line when present, otherwise a description from the record itself.
func StructuralSummary(sym parser.Symbol) string {
	if sym.Docstring != "" {
		first := strings.SplitN(strings.TrimSpace(sym.Docstring), "\n", 2)[0]
		if first != "" {
			return first
		}
	}
	switch sym.Kind {
	case parser.SymbolClass:
		return fmt.Sprintf("Class %s.", sym.Name)
	case parser.SymbolFunction:
		if len(sym.Params) > 0 {
			return fmt.Sprintf("Function %s taking %s.", sym.Name, strings.Join(sym.Params, ", "))
		}
		return fmt.Sprintf("Function %s.", sym.Name)
	default:
		kind := sym.Kind.String()
		if kind != "" {
			kind = strings.ToUpper(kind[:1]) + kind[1:]
		}
		return fmt.Sprintf("%s %s.", kind, sym.Name)
	}
}

func qualifiedName(sym parser.Symbol) string {
	if sym.Parent != "" {
		return sym.Parent + "." + sym.Name
	}
	return sym.Name
}
