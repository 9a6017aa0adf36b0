package chunk

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/qasimio/operon/internal/graph"
)

var identifierRe = regexp.MustCompile(`[A-Za-z][A-Za-z0-9_]*`)

// scoreSourceWindow bounds how much chunk source contributes tokens.
const scoreSourceWindow = 400

// Tokenize splits text on non-identifier characters and lowercases.
func Tokenize(text string) []string {
	raw := identifierRe.FindAllString(text, -1)
	out := make([]string, 0, len(raw))
	for _, tok := range raw {
		if len(tok) > 1 {
			out = append(out, strings.ToLower(tok))
		}
	}
	return out
}

// Score computes Jaccard overlap between the query tokens and tokens
// drawn from the chunk's name, docstring, and leading source.
func Score(c Chunk, queryTokens []string) float64 {
	text := c.Symbol + " " + c.Docstring + " " + truncate(c.Source, scoreSourceWindow)
	chunkTokens := make(map[string]bool)
	for _, tok := range Tokenize(text) {
		chunkTokens[tok] = true
	}
	if len(chunkTokens) == 0 || len(queryTokens) == 0 {
		return 0
	}

	querySet := make(map[string]bool, len(queryTokens))
	for _, tok := range queryTokens {
		querySet[tok] = true
	}

	intersection := 0
	for tok := range querySet {
		if chunkTokens[tok] {
			intersection++
		}
	}
	union := len(chunkTokens)
	for tok := range querySet {
		if !chunkTokens[tok] {
			union++
		}
	}
	return float64(intersection) / float64(union)
}

// Relevant finds and ranks the chunks most relevant to query, greedily
// filling maxChars. A chunk is never split across the budget boundary.
func Relevant(query, repoRoot string, g *graph.Graph, maxChars int) []Chunk {
	queryTokens := Tokenize(query)
	if len(queryTokens) == 0 {
		return nil
	}

	candidates := make([]Chunk, 0)
	for _, file := range candidateFiles(queryTokens, g) {
		candidates = append(candidates, FileChunks(repoRoot, g, file)...)
	}

	for i := range candidates {
		candidates[i].Score = Score(candidates[i], queryTokens)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if kindPriority(a.Kind) != kindPriority(b.Kind) {
			return kindPriority(a.Kind) < kindPriority(b.Kind)
		}
		if a.End-a.Start != b.End-b.Start {
			return a.End-a.Start < b.End-b.Start
		}
		if a.File != b.File {
			return a.File < b.File
		}
		return a.Start < b.Start
	})

	selected := make([]Chunk, 0)
	total := 0
	for _, c := range candidates {
		if c.Score <= 0 {
			break
		}
		size := len(c.Source)
		if total+size > maxChars && len(selected) > 0 {
			continue
		}
		if size > maxChars && len(selected) == 0 {
			continue
		}
		selected = append(selected, c)
		total += size
		if total >= maxChars {
			break
		}
	}
	return selected
}

// AssembleContext builds the bounded context string handed to the
// oracle: ranked chunks, each prefixed by a locator header.
func AssembleContext(query, repoRoot string, g *graph.Graph, maxChars int) string {
	chunks := Relevant(query, repoRoot, g, maxChars)
	if len(chunks) == 0 {
		return ""
	}

	var b strings.Builder
	for _, c := range chunks {
		fmt.Fprintf(&b, "%s:%d-%d (%s %s)\n", c.File, c.Start, c.End, c.Kind, c.Symbol)
		b.WriteString(c.Source)
		if !strings.HasSuffix(c.Source, "\n") {
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// candidateFiles narrows the scan to files whose cross-refs mention a
// query token, falling back to every tracked file.
func candidateFiles(queryTokens []string, g *graph.Graph) []string {
	seen := make(map[string]bool)
	out := make([]string, 0)
	add := func(file string) {
		if !seen[file] {
			seen[file] = true
			out = append(out, file)
		}
	}

	for _, tok := range queryTokens {
		for name, sites := range g.CrossRefs {
			if !strings.HasPrefix(strings.ToLower(name), tok) {
				continue
			}
			limit := 5
			for _, site := range sites {
				add(site.File)
				limit--
				if limit == 0 {
					break
				}
			}
		}
	}
	if len(out) == 0 {
		return g.Paths()
	}
	sort.Strings(out)
	return out
}

func kindPriority(kind string) int {
	switch kind {
	case "function":
		return 0
	case "class":
		return 1
	case "variable":
		return 2
	default:
		return 3
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
