package agent

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Goal-derived validation. Rules are tried in order; the first
// matching classification decides. Rule 0 (no change means failure)
// always applies first.

var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "please": true, "now": true,
	"then": true, "also": true, "just": true, "in": true, "on": true,
	"of": true, "for": true, "and": true, "file": true,
}

var (
	deleteLinesRe = regexp.MustCompile(`delete\s+lines?\s+(\d+)\s*(?:-|to|through)\s*(\d+)`)
	addImportRe   = regexp.MustCompile(`add\s+(?:an?\s+)?import\s+([A-Za-z_][\w.]*)`)
	assignmentRe  = regexp.MustCompile(`(?:update|set|change)\s+([A-Za-z_]\w*)\s*(?:=|to)\s*(\S+)`)
	addCommentRe  = regexp.MustCompile(`add\s+(?:a\s+)?comment\s+(.+)`)
)

// ClassifyRule maps a goal to its validator rule. The goal is
// lowercased and stopword-filtered before pattern matching.
func ClassifyRule(goal string) Rule {
	normalized := normalizeGoal(goal)

	if m := deleteLinesRe.FindStringSubmatch(normalized); m != nil {
		start, _ := strconv.Atoi(m[1])
		end, _ := strconv.Atoi(m[2])
		if start <= end {
			return Rule{Kind: RuleDeleteLines, StartLine: start, EndLine: end}
		}
	}
	if m := addImportRe.FindStringSubmatch(normalized); m != nil {
		return Rule{Kind: RuleAddImport, Name: m[1]}
	}
	if m := assignmentRe.FindStringSubmatch(normalized); m != nil {
		return Rule{Kind: RuleUpdateAssignment, Name: m[1], Value: strings.Trim(m[2], `"'`)}
	}
	if m := addCommentRe.FindStringSubmatch(normalized); m != nil {
		return Rule{Kind: RuleAddComment, Text: strings.Trim(strings.TrimSpace(m[1]), `"'`)}
	}
	return Rule{Kind: RuleNontrivialDiff}
}

// Validate checks a post-edit file against the rule derived from goal.
func Validate(goal, before, after string) bool {
	return CheckRule(ClassifyRule(goal), before, after)
}

// CheckRule checks a post-edit file against an explicit rule variant.
func CheckRule(rule Rule, before, after string) bool {
	if before == after {
		return false
	}

	switch rule.Kind {
	case RuleDeleteLines:
		removed := countLines(before) - countLines(after)
		return removed == rule.EndLine-rule.StartLine+1
	case RuleAddImport:
		return !containsToken(before, rule.Name) && containsToken(after, rule.Name)
	case RuleUpdateAssignment:
		return hasAssignment(after, rule.Name, rule.Value)
	case RuleAddComment:
		return countCommentsContaining(after, rule.Text) > countCommentsContaining(before, rule.Text)
	default:
		return hasNontrivialDiff(before, after)
	}
}

func normalizeGoal(goal string) string {
	fields := strings.Fields(strings.ToLower(goal))
	kept := make([]string, 0, len(fields))
	for _, f := range fields {
		if stopwords[f] {
			continue
		}
		kept = append(kept, f)
	}
	return strings.Join(kept, " ")
}

func countLines(text string) int {
	if text == "" {
		return 0
	}
	return strings.Count(text, "\n") + 1
}

func containsToken(text, token string) bool {
	re, err := regexp.Compile(`(?m)\b` + regexp.QuoteMeta(token) + `\b`)
	if err != nil {
		return strings.Contains(text, token)
	}
	return re.MatchString(text)
}

// hasAssignment accepts `name = value` with flexible whitespace and
// optional quoting around a string literal.
func hasAssignment(text, name, value string) bool {
	quoted := regexp.QuoteMeta(value)
	pattern := `(?m)\b` + regexp.QuoteMeta(name) + `\s*(?:=|:)\s*(?:["']` + quoted + `["']|` + quoted + `(?:[\s,;#)\]]|$))`
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(text)
}

func countCommentsContaining(text, fragment string) int {
	fragment = strings.ToLower(fragment)
	count := 0
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "#") && !strings.HasPrefix(trimmed, "//") {
			continue
		}
		if fragment == "" || strings.Contains(strings.ToLower(trimmed), fragment) {
			count++
		}
	}
	return count
}

// hasNontrivialDiff reports whether at least one non-whitespace line
// was added or removed.
func hasNontrivialDiff(before, after string) bool {
	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A: difflib.SplitLines(before),
		B: difflib.SplitLines(after),
	})
	if err != nil {
		return before != after
	}
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, "+++") || strings.HasPrefix(line, "---") {
			continue
		}
		if len(line) < 2 || (line[0] != '+' && line[0] != '-') {
			continue
		}
		if strings.TrimSpace(line[1:]) != "" {
			return true
		}
	}
	return false
}
