package chunk

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/qasimio/operon/internal/graph"
	"github.com/qasimio/operon/internal/parser"
)

// Chunk is the smallest self-contained source block enclosing a symbol.
// Derived on demand, never persisted.
type Chunk struct {
	File      string
	Symbol    string
	Kind      string
	Start     int
	End       int
	Source    string
	Docstring string
	Score     float64
}

// fallbackContext is the line window returned around a match when no
// authoritative span is available.
const fallbackContext = 20

// Extract returns the source block defining symbolName in file. For
// files with symbol records the exact span is used; otherwise the
// result is ±20 lines of context around the first occurrence.
func Extract(repoRoot string, g *graph.Graph, file, symbolName string) (Chunk, bool) {
	content, err := os.ReadFile(filepath.Join(repoRoot, filepath.FromSlash(file)))
	if err != nil {
		return Chunk{}, false
	}
	lines := strings.Split(string(content), "\n")

	if sym, ok := g.SymbolSpan(file, symbolName); ok {
		return chunkFromSymbol(file, sym, lines), true
	}

	for i, line := range lines {
		if strings.Contains(line, symbolName) {
			start := i - 3
			if start < 0 {
				start = 0
			}
			end := i + fallbackContext
			if end > len(lines) {
				end = len(lines)
			}
			return Chunk{
				File:   file,
				Symbol: symbolName,
				Kind:   "block",
				Start:  start + 1,
				End:    end,
				Source: strings.Join(lines[start:end], "\n"),
			}, true
		}
	}
	return Chunk{}, false
}

// FileChunks returns one chunk per function/class/variable in a file.
func FileChunks(repoRoot string, g *graph.Graph, file string) []Chunk {
	symbols := g.SymbolsInFile(file)
	if len(symbols) == 0 {
		return nil
	}
	content, err := os.ReadFile(filepath.Join(repoRoot, filepath.FromSlash(file)))
	if err != nil {
		return nil
	}
	lines := strings.Split(string(content), "\n")

	out := make([]Chunk, 0, len(symbols))
	for _, sym := range symbols {
		switch sym.Kind {
		case parser.SymbolFunction, parser.SymbolClass, parser.SymbolVariable:
			out = append(out, chunkFromSymbol(file, sym, lines))
		}
	}
	return out
}

func chunkFromSymbol(file string, sym parser.Symbol, lines []string) Chunk {
	start := sym.Start
	if start < 1 {
		start = 1
	}
	end := sym.End
	if end > len(lines) {
		end = len(lines)
	}
	source := ""
	if start <= end {
		source = strings.Join(lines[start-1:end], "\n")
	}
	name := sym.Name
	if sym.Parent != "" {
		name = sym.Parent + "." + sym.Name
	}
	return Chunk{
		File:      file,
		Symbol:    name,
		Kind:      sym.Kind.String(),
		Start:     start,
		End:       end,
		Source:    source,
		Docstring: sym.Docstring,
	}
}
