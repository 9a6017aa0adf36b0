package refactor

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/qasimio/operon/internal/graph"
	"github.com/qasimio/operon/internal/parser"
)

// Migrator changes a function's parameter order and rewrites
// positional arguments at every call site to match, preserving
// keyword arguments as written.
type Migrator struct {
	RepoRoot string
	Graph    *graph.Graph
}

func NewMigrator(repoRoot string, g *graph.Graph) *Migrator {
	return &Migrator{RepoRoot: repoRoot, Graph: g}
}

// ParseParams splits a comma-separated parameter spec.
func ParseParams(spec string) []string {
	parts := strings.Split(spec, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Plan computes the definition rewrite and every call-site rewrite
// for moving funcName to newParams. Nothing is written.
func (m *Migrator) Plan(funcName string, newParams []string) ([]FileEdit, error) {
	defFile, ok := m.Graph.DefiningFile(funcName)
	if !ok {
		return nil, fmt.Errorf("function %q not found", funcName)
	}
	sym, ok := m.Graph.SymbolSpan(defFile, funcName)
	if !ok || sym.Kind != parser.SymbolFunction {
		return nil, fmt.Errorf("%q is not a function", funcName)
	}
	oldParams := stripSelf(sym.Params)

	for _, p := range append(append([]string(nil), oldParams...), newParams...) {
		if strings.HasPrefix(p, "*") {
			return nil, fmt.Errorf("cannot migrate variadic signature of %q", funcName)
		}
	}

	files := make([]string, 0)
	seen := map[string]bool{defFile: true}
	files = append(files, defFile)
	for _, site := range m.Graph.Query(funcName) {
		if !seen[site.File] {
			seen[site.File] = true
			files = append(files, site.File)
		}
	}
	sort.Strings(files[1:])

	edits := make([]FileEdit, 0, len(files))
	for _, file := range files {
		edit := FileEdit{Path: file}
		data, err := os.ReadFile(filepath.Join(m.RepoRoot, filepath.FromSlash(file)))
		if err != nil {
			edit.Err = err
			edits = append(edits, edit)
			continue
		}
		edit.Before = string(data)
		edit.After = edit.Before

		if file == defFile {
			edit.After, edit.Occurrences, edit.Err = rewriteDefinition(edit.After, funcName, sym.Params, newParams)
			if edit.Err != nil {
				edits = append(edits, edit)
				continue
			}
		}
		after, n, err := rewriteCallSites(edit.After, funcName, oldParams, newParams)
		edit.After = after
		edit.Occurrences += n
		edit.Err = err
		edits = append(edits, edit)
	}
	return edits, nil
}

// Apply writes the planned edits atomically, reporting per-file
// failures.
func (m *Migrator) Apply(edits []FileEdit) error {
	return applyEdits(m.RepoRoot, "signature migration", edits)
}

// rewriteDefinition replaces the def parameter list, keeping a
// leading self/cls receiver in place.
func rewriteDefinition(content, funcName string, defParams, newParams []string) (string, int, error) {
	re, err := regexp.Compile(`(def\s+` + regexp.QuoteMeta(funcName) + `\s*)\(([^)]*)\)`)
	if err != nil {
		return content, 0, err
	}
	loc := re.FindStringSubmatchIndex(content)
	if loc == nil {
		return content, 0, fmt.Errorf("definition of %q not found in file", funcName)
	}

	rendered := newParams
	if len(defParams) > 0 && (defParams[0] == "self" || defParams[0] == "cls") {
		rendered = append([]string{defParams[0]}, newParams...)
	}
	replacement := content[loc[2]:loc[3]] + "(" + strings.Join(rendered, ", ") + ")"
	return content[:loc[0]] + replacement + content[loc[1]:], 1, nil
}

// rewriteCallSites reorders positional arguments at each call to the
// new parameter order. Keyword arguments pass through untouched, in
// their original relative order.
func rewriteCallSites(content, funcName string, oldParams, newParams []string) (string, int, error) {
	nameRe, err := regexp.Compile(`\b` + regexp.QuoteMeta(funcName) + `\s*\(`)
	if err != nil {
		return content, 0, err
	}

	count := 0
	var b strings.Builder
	rest := content
	for {
		loc := nameRe.FindStringIndex(rest)
		if loc == nil {
			b.WriteString(rest)
			break
		}
		// Skip the definition itself.
		if defAt(rest, loc[0]) {
			b.WriteString(rest[:loc[1]])
			rest = rest[loc[1]:]
			continue
		}

		openAt := loc[1] - 1
		closeAt, ok := matchParen(rest, openAt)
		if !ok {
			b.WriteString(rest[:loc[1]])
			rest = rest[loc[1]:]
			continue
		}

		args := splitTopLevel(rest[openAt+1 : closeAt])
		rebuilt, changed := reorderArgs(args, oldParams, newParams)
		b.WriteString(rest[:openAt+1])
		b.WriteString(rebuilt)
		if changed {
			count++
		}
		rest = rest[closeAt:]
	}
	return b.String(), count, nil
}

func reorderArgs(args, oldParams, newParams []string) (string, bool) {
	positional := make([]string, 0, len(args))
	kwargs := make([]string, 0)
	for _, arg := range args {
		if isKwarg(arg) {
			kwargs = append(kwargs, arg)
		} else {
			positional = append(positional, arg)
		}
	}

	byName := make(map[string]string, len(positional))
	for i, value := range positional {
		if i >= len(oldParams) {
			// More positionals than known parameters; leave the call as is.
			return strings.Join(args, ", "), false
		}
		byName[oldParams[i]] = value
	}

	reordered := make([]string, 0, len(args))
	for _, param := range newParams {
		if value, ok := byName[param]; ok {
			reordered = append(reordered, value)
		}
	}
	reordered = append(reordered, kwargs...)

	rebuilt := strings.Join(reordered, ", ")
	return rebuilt, rebuilt != strings.Join(args, ", ")
}

// splitTopLevel splits an argument list on commas outside brackets
// and strings.
func splitTopLevel(argText string) []string {
	if strings.TrimSpace(argText) == "" {
		return nil
	}
	out := make([]string, 0, 4)
	depth := 0
	var quote byte
	start := 0
	for i := 0; i < len(argText); i++ {
		ch := argText[i]
		switch {
		case quote != 0:
			if ch == quote && (i == 0 || argText[i-1] != '\\') {
				quote = 0
			}
		case ch == '\'' || ch == '"':
			quote = ch
		case ch == '(' || ch == '[' || ch == '{':
			depth++
		case ch == ')' || ch == ']' || ch == '}':
			depth--
		case ch == ',' && depth == 0:
			out = append(out, strings.TrimSpace(argText[start:i]))
			start = i + 1
		}
	}
	out = append(out, strings.TrimSpace(argText[start:]))
	return out
}

// isKwarg detects name=value at the top level, excluding comparison
// operators.
func isKwarg(arg string) bool {
	eq := strings.IndexByte(arg, '=')
	if eq <= 0 || eq == len(arg)-1 {
		return false
	}
	if arg[eq+1] == '=' || arg[eq-1] == '!' || arg[eq-1] == '<' || arg[eq-1] == '>' {
		return false
	}
	return identifierRe.MatchString(strings.TrimSpace(arg[:eq]))
}

func matchParen(text string, openAt int) (int, bool) {
	depth := 0
	var quote byte
	for i := openAt; i < len(text); i++ {
		ch := text[i]
		switch {
		case quote != 0:
			if ch == quote && text[i-1] != '\\' {
				quote = 0
			}
		case ch == '\'' || ch == '"':
			quote = ch
		case ch == '(':
			depth++
		case ch == ')':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// defAt reports whether the match at offset is part of a def
// statement.
func defAt(text string, offset int) bool {
	lineStart := strings.LastIndexByte(text[:offset], '\n') + 1
	prefix := strings.TrimSpace(text[lineStart:offset])
	return prefix == "def" || prefix == "async def"
}

func stripSelf(params []string) []string {
	if len(params) > 0 && (params[0] == "self" || params[0] == "cls") {
		return params[1:]
	}
	return params
}
