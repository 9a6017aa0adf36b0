package search

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/qasimio/operon/internal/graph"
)

// Hit is one matching line.
type Hit struct {
	File string `json:"file"`
	Line int    `json:"line"`
	Text string `json:"text"`
}

// maxLineLength keeps pathological minified lines out of results.
const maxLineLength = 500

// Exact scans every tracked file for a literal query string. Results
// come back in graph path order, capped at limit (0 means no cap).
func Exact(repoRoot string, g *graph.Graph, query string, limit int) []Hit {
	if strings.TrimSpace(query) == "" {
		return nil
	}

	hits := make([]Hit, 0)
	for _, path := range g.Paths() {
		f, err := os.Open(filepath.Join(repoRoot, filepath.FromSlash(path)))
		if err != nil {
			continue
		}
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		lineNo := 0
		for scanner.Scan() {
			lineNo++
			line := scanner.Text()
			if !strings.Contains(line, query) {
				continue
			}
			text := strings.TrimSpace(line)
			if len(text) > maxLineLength {
				text = text[:maxLineLength]
			}
			hits = append(hits, Hit{File: path, Line: lineNo, Text: text})
			if limit > 0 && len(hits) >= limit {
				f.Close()
				return hits
			}
		}
		f.Close()
	}
	return hits
}
