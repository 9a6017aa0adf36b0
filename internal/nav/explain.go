package nav

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/qasimio/operon/internal/chunk"
	"github.com/qasimio/operon/internal/docsgen"
	"github.com/qasimio/operon/internal/graph"
	"github.com/qasimio/operon/internal/parser"
)

// ErrNotFound marks a lookup miss; the CLI maps it to exit code 2.
type ErrNotFound struct {
	Query string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("symbol %q not found", e.Query)
}

var locationRe = regexp.MustCompile(`^(.+):(\d+)$`)

// Explain resolves a query that is either a symbol name or a
// <file>:<line> location and builds its report.
func Explain(repoRoot string, g *graph.Graph, query string) (*SymbolReport, error) {
	if m := locationRe.FindStringSubmatch(query); m != nil {
		line, err := strconv.Atoi(m[2])
		if err == nil {
			return explainLocation(repoRoot, g, m[1], line)
		}
	}
	return explainSymbol(repoRoot, g, query)
}

func explainSymbol(repoRoot string, g *graph.Graph, name string) (*SymbolReport, error) {
	file, ok := g.DefiningFile(name)
	if !ok {
		return nil, &ErrNotFound{Query: name}
	}
	sym, ok := g.SymbolSpan(file, name)
	if !ok {
		// Defined but not a function/class: fall back to the record list.
		for _, candidate := range g.SymbolsInFile(file) {
			if candidate.Name == name {
				sym = candidate
				ok = true
				break
			}
		}
	}
	if !ok {
		return nil, &ErrNotFound{Query: name}
	}
	return buildReport(repoRoot, g, file, sym), nil
}

func explainLocation(repoRoot string, g *graph.Graph, file string, line int) (*SymbolReport, error) {
	record, exists := g.Files[file]
	if !exists {
		return nil, &ErrNotFound{Query: file}
	}
	sym, ok := g.EnclosingSymbol(record.Path, line)
	if !ok {
		return nil, &ErrNotFound{Query: fmt.Sprintf("%s:%d", file, line)}
	}
	return buildReport(repoRoot, g, record.Path, sym), nil
}

func buildReport(repoRoot string, g *graph.Graph, file string, sym parser.Symbol) *SymbolReport {
	report := &SymbolReport{
		Name:      sym.Name,
		Kind:      sym.Kind.String(),
		File:      file,
		Start:     sym.Start,
		End:       sym.End,
		Signature: docsgen.Signature(sym),
		Docstring: sym.Docstring,
	}
	if c, ok := chunk.Extract(repoRoot, g, file, sym.Name); ok {
		report.Source = c.Source
	}
	for _, site := range g.FindUsages(sym.Name) {
		if site.Kind == parser.UsageCall {
			report.Callers = append(report.Callers, site)
		}
	}
	return report
}

// Usages collects definition and usage sites for a symbol.
func Usages(g *graph.Graph, name string) (*UsageReport, error) {
	sites := g.Query(name)
	if len(sites) == 0 {
		return nil, &ErrNotFound{Query: name}
	}
	return &UsageReport{
		Symbol:      name,
		Definitions: g.FindDefinitions(name),
		Usages:      g.FindUsages(name),
	}, nil
}

// Flow lists the direct callees of a function, resolved against the
// graph. Call names are taken from the function's own source block.
func Flow(repoRoot string, g *graph.Graph, funcName string) (*FlowReport, error) {
	file, ok := g.DefiningFile(funcName)
	if !ok {
		return nil, &ErrNotFound{Query: funcName}
	}
	c, ok := chunk.Extract(repoRoot, g, file, funcName)
	if !ok {
		return nil, &ErrNotFound{Query: funcName}
	}

	names := callNames(c.Source)
	report := &FlowReport{Function: funcName, File: file}
	for _, name := range names {
		if name == funcName {
			continue
		}
		callee := FlowCallee{Name: name}
		if defs := g.FindDefinitions(name); len(defs) > 0 {
			callee.Defined = true
			callee.File = defs[0].File
			callee.Line = defs[0].Line
		}
		report.Callees = append(report.Callees, callee)
	}
	return report, nil
}

// callNames extracts called function names from a Python source block
// in first-call order, deduplicated.
func callNames(source string) []string {
	p := sitter.NewParser()
	p.SetLanguage(python.GetLanguage())
	content := []byte(source)
	tree, err := p.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return callNamesByRegex(source)
	}
	defer tree.Close()

	seen := make(map[string]bool)
	out := make([]string, 0)
	var walk func(node *sitter.Node)
	walk = func(node *sitter.Node) {
		if node.Type() == "call" {
			if fn := node.ChildByFieldName("function"); fn != nil {
				name := calleeName(fn, content)
				if name != "" && !seen[name] {
					seen[name] = true
					out = append(out, name)
				}
			}
		}
		for i := 0; i < int(node.ChildCount()); i++ {
			walk(node.Child(i))
		}
	}
	walk(tree.RootNode())
	return out
}

// calleeName reduces a call target to its final identifier.
func calleeName(node *sitter.Node, content []byte) string {
	switch node.Type() {
	case "identifier":
		return node.Content(content)
	case "attribute":
		if attr := node.ChildByFieldName("attribute"); attr != nil {
			return attr.Content(content)
		}
	}
	return ""
}

var callRe = regexp.MustCompile(`([A-Za-z_]\w*)\s*\(`)

func callNamesByRegex(source string) []string {
	seen := make(map[string]bool)
	out := make([]string, 0)
	for _, m := range callRe.FindAllStringSubmatch(source, -1) {
		name := m[1]
		if strings.HasPrefix(name, "def") || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}
