package agent

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/qasimio/operon/internal/graph"
)

// Deterministic shortcut for structurally trivial edits: when the
// goal classifies into the pattern library the SEARCH/REPLACE pair is
// constructed directly and the oracle is never consulted.

var wrapTryRe = regexp.MustCompile(`wrap\s+([A-Za-z_]\w*)\s+(?:in|with)\s+try`)

// FastPath builds the edit for a classified rule against the current
// file content. ok is false when the pattern library cannot produce a
// deterministic edit and the oracle must be asked instead.
func FastPath(rule Rule, goal, path, content string, g *graph.Graph) (search, replace string, ok bool) {
	switch rule.Kind {
	case RuleAddImport:
		return "", importLineFor(path, rule.Name) + "\n", true

	case RuleDeleteLines:
		lines := strings.Split(content, "\n")
		if rule.StartLine < 1 || rule.EndLine > len(lines) {
			return "", "", false
		}
		return strings.Join(lines[rule.StartLine-1:rule.EndLine], "\n"), "", true

	case RuleUpdateAssignment:
		return updateAssignmentEdit(content, rule.Name, rule.Value)

	case RuleAddComment:
		return addCommentEdit(path, content, rule.Text)

	default:
		if m := wrapTryRe.FindStringSubmatch(strings.ToLower(goal)); m != nil {
			return wrapInTryEdit(path, content, m[1], g)
		}
		return "", "", false
	}
}

func importLineFor(path, name string) string {
	switch filepath.Ext(path) {
	case ".js", ".jsx", ".ts", ".tsx":
		return "import " + name + " from \"" + name + "\";"
	case ".java":
		return "import " + name + ";"
	default:
		return "import " + name
	}
}

// updateAssignmentEdit rewrites the first binding of name, keeping
// the quoting style of the previous value when the new one is not a
// bare literal.
func updateAssignmentEdit(content, name, value string) (string, string, bool) {
	re, err := regexp.Compile(`^(\s*)` + regexp.QuoteMeta(name) + `\s*(=|:)\s*(.*)$`)
	if err != nil {
		return "", "", false
	}
	for _, line := range strings.Split(content, "\n") {
		m := re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		newValue := value
		old := strings.TrimSpace(m[3])
		if quote := quoteOf(old); quote != "" && !isBareLiteral(value) {
			newValue = quote + value + quote
		}
		return line, name + " " + m[2] + " " + newValue, true
	}
	return "", "", false
}

// addCommentEdit inserts the comment above the first matching symbol
// mentioned in the text, or at the top of the file.
func addCommentEdit(path, content, text string) (string, string, bool) {
	lines := strings.Split(content, "\n")
	if len(lines) == 0 {
		return "", "", false
	}
	prefix := commentPrefix(path)
	comment := prefix + " " + strings.TrimSpace(text)

	anchor := lines[0]
	if strings.TrimSpace(anchor) == "" {
		for _, line := range lines {
			if strings.TrimSpace(line) != "" {
				anchor = line
				break
			}
		}
	}
	if strings.TrimSpace(anchor) == "" {
		return "", "", false
	}
	return anchor, comment + "\n" + anchor, true
}

// wrapInTryEdit wraps a Python function body in try/except. The span
// comes from the graph; repositories without a record for the
// function fall through to the oracle.
func wrapInTryEdit(path, content, funcName string, g *graph.Graph) (string, string, bool) {
	if g == nil || filepath.Ext(path) != ".py" {
		return "", "", false
	}
	sym, ok := g.SymbolSpan(path, funcName)
	if !ok {
		return "", "", false
	}
	lines := strings.Split(content, "\n")
	if sym.Start < 1 || sym.End > len(lines) || sym.Start >= sym.End {
		return "", "", false
	}

	// Body starts after the def line; decorators precede it.
	bodyStart := sym.Start
	for bodyStart <= sym.End {
		if strings.Contains(lines[bodyStart-1], "def ") {
			break
		}
		bodyStart++
	}
	if bodyStart > sym.End {
		return "", "", false
	}
	body := lines[bodyStart : sym.End]
	if len(body) == 0 {
		return "", "", false
	}

	indent := leadingIndent(body[0])
	wrapped := make([]string, 0, len(body)+3)
	wrapped = append(wrapped, indent+"try:")
	for _, line := range body {
		if strings.TrimSpace(line) == "" {
			wrapped = append(wrapped, "")
			continue
		}
		wrapped = append(wrapped, "    "+line)
	}
	wrapped = append(wrapped, indent+"except Exception:")
	wrapped = append(wrapped, indent+"    raise")

	return strings.Join(body, "\n"), strings.Join(wrapped, "\n"), true
}

func commentPrefix(path string) string {
	switch filepath.Ext(path) {
	case ".py":
		return "#"
	default:
		return "//"
	}
}

func quoteOf(value string) string {
	if len(value) >= 2 {
		if value[0] == '"' && value[len(value)-1] == '"' {
			return `"`
		}
		if value[0] == '\'' && value[len(value)-1] == '\'' {
			return "'"
		}
	}
	return ""
}

var bareLiteralRe = regexp.MustCompile(`^-?\d+(\.\d+)?$|^(true|false|True|False|None|null)$`)

func isBareLiteral(value string) bool {
	return bareLiteralRe.MatchString(value)
}

func leadingIndent(line string) string {
	for i, r := range line {
		if r != ' ' && r != '\t' {
			return line[:i]
		}
	}
	return line
}
