package diff

import (
	"regexp"
	"strings"
)

// Reason classifies the outcome of one Apply call.
type Reason string

const (
	ReasonOK        Reason = "ok"
	ReasonNoop      Reason = "noop"
	ReasonAppended  Reason = "appended"
	ReasonNoMatch   Reason = "no_match"
	ReasonAmbiguous Reason = "ambiguous"
)

// Changed reports whether the reason implies the text was modified.
func (r Reason) Changed() bool {
	return r == ReasonOK || r == ReasonAppended
}

// Block is one parsed SEARCH/REPLACE pair.
type Block struct {
	Search  string
	Replace string
}

// Marker variants accepted in payloads: the canonical conflict-style
// fences, anonymous fences without the SEARCH/REPLACE words, and bare
// SEARCH:/REPLACE: labels.
var (
	startRe = regexp.MustCompile(`^(<{5,9}(\s*SEARCH)?|SEARCH:)\s*$`)
	sepRe   = regexp.MustCompile(`^(={5,9}|REPLACE:)\s*$`)
	endRe   = regexp.MustCompile(`^>{5,9}(\s*REPLACE)?\s*$`)
	fenceRe = regexp.MustCompile("^```")
)

// ParseBlocks extracts every SEARCH/REPLACE pair from a payload, in
// order. Code fences around the markers are tolerated, and a replace
// section missing its end marker is closed by the next start marker or
// end of input. Payloads with no well-formed block return nil.
func ParseBlocks(payload string) []Block {
	lines := strings.Split(payload, "\n")

	blocks := make([]Block, 0)
	var search, replace []string
	state := 0 // 0 outside, 1 in search, 2 in replace

	closeBlock := func() {
		blocks = append(blocks, Block{
			Search:  strings.Join(trimEmptyEdges(search), "\n"),
			Replace: strings.Join(trimEmptyEdges(replace), "\n"),
		})
		search = nil
		replace = nil
		state = 0
	}

	for _, line := range lines {
		trimmed := strings.TrimRight(line, " \t\r")
		if fenceRe.MatchString(strings.TrimSpace(trimmed)) && state != 1 && state != 2 {
			continue
		}
		switch state {
		case 0:
			if startRe.MatchString(trimmed) {
				search = nil
				replace = nil
				state = 1
			}
		case 1:
			if sepRe.MatchString(trimmed) {
				state = 2
			} else if startRe.MatchString(trimmed) {
				search = nil
			} else {
				search = append(search, line)
			}
		case 2:
			if endRe.MatchString(trimmed) {
				closeBlock()
			} else if startRe.MatchString(trimmed) {
				closeBlock()
				search = nil
				replace = nil
				state = 1
			} else if fenceRe.MatchString(strings.TrimSpace(trimmed)) {
				closeBlock()
			} else {
				replace = append(replace, line)
			}
		}
	}
	if state == 2 {
		closeBlock()
	}
	if len(blocks) == 0 {
		return nil
	}
	return blocks
}

// Apply splices replace over the unique occurrence of search in
// original. The original text comes back untouched for no_match,
// ambiguous, and noop.
//
// Matching runs in two tiers: first comparing lines with only trailing
// whitespace stripped, then fully trimmed. A search block that matches
// more than one range in either tier is ambiguous and nothing changes.
// On a single match the replacement is re-indented to the indentation
// of the first matched line, preserving the relative indent the
// replacement already carries.
//
// An empty search block targets the whole file: import-only
// replacements are inserted at the top, anything else is appended.
func Apply(original, search, replace string) (string, Reason) {
	if strings.TrimSpace(search) == "" {
		return applyToWholeFile(original, replace)
	}

	origLines := strings.Split(original, "\n")
	searchLines := trimEmptyEdges(strings.Split(search, "\n"))
	if len(searchLines) == 0 {
		return original, ReasonNoMatch
	}

	matches := findMatches(origLines, searchLines, rstrip)
	if len(matches) == 0 {
		matches = findMatches(origLines, searchLines, strings.TrimSpace)
	}
	if len(matches) == 0 {
		matches = findFuzzyMatches(origLines, searchLines)
	}
	switch {
	case len(matches) == 0:
		return original, ReasonNoMatch
	case len(matches) > 1:
		return original, ReasonAmbiguous
	}

	start := matches[0]
	prefix := leadingWhitespace(origLines[start])
	var replaced []string
	if strings.TrimSpace(replace) != "" {
		replaced = reindent(strings.Split(rstripBlock(replace), "\n"), prefix)
	}

	patched := make([]string, 0, len(origLines)-len(searchLines)+len(replaced))
	patched = append(patched, origLines[:start]...)
	patched = append(patched, replaced...)
	patched = append(patched, origLines[start+len(searchLines):]...)

	result := strings.Join(patched, "\n")
	if result == original {
		return original, ReasonNoop
	}
	return result, ReasonOK
}

// ApplyAll applies parsed blocks left-to-right against successive
// intermediate results. It stops at the first failing block and
// reports its reason; anyChanged tells whether earlier blocks already
// modified the text.
func ApplyAll(original string, blocks []Block) (patched string, reason Reason, anyChanged bool) {
	patched = original
	reason = ReasonNoop
	for _, block := range blocks {
		next, r := Apply(patched, block.Search, block.Replace)
		if r == ReasonNoMatch || r == ReasonAmbiguous {
			return patched, r, anyChanged
		}
		if r.Changed() {
			anyChanged = true
			reason = r
		}
		patched = next
	}
	if anyChanged && reason == ReasonAppended {
		reason = ReasonOK
	}
	if !anyChanged {
		reason = ReasonNoop
	}
	return patched, reason, anyChanged
}

func applyToWholeFile(original, replace string) (string, Reason) {
	if strings.TrimSpace(replace) == "" {
		return original, ReasonNoop
	}
	if isImportBlock(replace) {
		if strings.Contains(original, strings.TrimSpace(replace)) {
			return original, ReasonNoop
		}
		return strings.TrimRight(replace, "\n") + "\n" + original, ReasonAppended
	}
	body := strings.TrimRight(original, " \t\n")
	if body == "" {
		return strings.TrimSpace(replace) + "\n", ReasonAppended
	}
	return body + "\n\n" + strings.TrimSpace(replace) + "\n", ReasonAppended
}

// InsertImport places an import line at the top of the module, after
// any existing import block. Already-present imports are a noop.
func InsertImport(original, importLine string) (string, Reason) {
	importLine = strings.TrimSpace(importLine)
	if importLine == "" {
		return original, ReasonNoop
	}
	lines := strings.Split(original, "\n")
	for _, line := range lines {
		if strings.TrimSpace(line) == importLine {
			return original, ReasonNoop
		}
	}

	insertAt := 0
	for i, line := range lines {
		if isImportLine(line) {
			insertAt = i + 1
		}
	}

	out := make([]string, 0, len(lines)+1)
	out = append(out, lines[:insertAt]...)
	out = append(out, importLine)
	out = append(out, lines[insertAt:]...)
	return strings.Join(out, "\n"), ReasonAppended
}

// InsertAbove inserts line directly above the first line containing
// target, matching the target's indentation.
func InsertAbove(original, target, line string) (string, Reason) {
	lines := strings.Split(original, "\n")
	for i, existing := range lines {
		if !strings.Contains(existing, target) {
			continue
		}
		indented := leadingWhitespace(existing) + strings.TrimSpace(line)
		out := make([]string, 0, len(lines)+1)
		out = append(out, lines[:i]...)
		out = append(out, indented)
		out = append(out, lines[i:]...)
		return strings.Join(out, "\n"), ReasonOK
	}
	return original, ReasonNoMatch
}

// AppendToFile appends text separated from the existing content by a
// blank line.
func AppendToFile(original, text string) (string, Reason) {
	return applyToWholeFile(original, text)
}

// findMatches returns the start index of every contiguous line range
// whose normalized form equals the normalized search block.
func findMatches(origLines, searchLines []string, normalize func(string) string) []int {
	normSearch := make([]string, len(searchLines))
	for i, line := range searchLines {
		normSearch[i] = normalize(line)
	}

	matches := make([]int, 0, 1)
	for start := 0; start+len(searchLines) <= len(origLines); start++ {
		hit := true
		for j := range normSearch {
			if normalize(origLines[start+j]) != normSearch[j] {
				hit = false
				break
			}
		}
		if hit {
			matches = append(matches, start)
		}
	}
	return matches
}

// findFuzzyMatches tolerates a single mismatched interior line. The
// first and last search lines must still match, so short blocks never
// fuzzy-match at all.
func findFuzzyMatches(origLines, searchLines []string) []int {
	if len(searchLines) < 3 {
		return nil
	}
	norm := func(s string) string { return strings.TrimSpace(s) }

	matches := make([]int, 0, 1)
	for start := 0; start+len(searchLines) <= len(origLines); start++ {
		mismatches := 0
		for j := range searchLines {
			if norm(origLines[start+j]) == norm(searchLines[j]) {
				continue
			}
			if j == 0 || j == len(searchLines)-1 {
				mismatches = 2
				break
			}
			mismatches++
			if mismatches > 1 {
				break
			}
		}
		if mismatches <= 1 {
			matches = append(matches, start)
		}
	}
	return matches
}

// reindent shifts replacement lines to prefix, first removing the
// block's own minimum leading whitespace so relative indentation
// survives.
func reindent(lines []string, prefix string) []string {
	minIndent := -1
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		n := len(leadingWhitespace(line))
		if minIndent < 0 || n < minIndent {
			minIndent = n
		}
	}
	if minIndent < 0 {
		minIndent = 0
	}

	out := make([]string, len(lines))
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			out[i] = ""
			continue
		}
		body := line
		if len(leadingWhitespace(body)) >= minIndent {
			body = body[minIndent:]
		}
		out[i] = prefix + body
	}
	return out
}

func leadingWhitespace(line string) string {
	for i, r := range line {
		if r != ' ' && r != '\t' {
			return line[:i]
		}
	}
	return line
}

func rstrip(line string) string {
	return strings.TrimRight(line, " \t\r")
}

func rstripBlock(block string) string {
	return strings.TrimRight(block, "\n")
}

// trimEmptyEdges drops leading and trailing blank lines.
func trimEmptyEdges(lines []string) []string {
	start := 0
	for start < len(lines) && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	end := len(lines)
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	return lines[start:end]
}

func isImportBlock(text string) bool {
	any := false
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if !isImportLine(trimmed) {
			return false
		}
		any = true
	}
	return any
}

func isImportLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.HasPrefix(trimmed, "import ") || strings.HasPrefix(trimmed, "from ")
}
