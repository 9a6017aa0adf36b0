package agent

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qasimio/operon/internal/diff"
	"github.com/qasimio/operon/internal/graph"
)

func TestFastPathDeleteLines(t *testing.T) {
	content := "l1\nl2\nl3\nl4\nl5\nl6\n"
	rule := ClassifyRule("delete lines 3-5 in x.py")
	require.Equal(t, RuleDeleteLines, rule.Kind)

	search, replace, ok := FastPath(rule, "delete lines 3-5 in x.py", "x.py", content, nil)
	require.True(t, ok)
	assert.Equal(t, "l3\nl4\nl5", search)
	assert.Empty(t, replace)

	patched, reason := diff.Apply(content, search, replace)
	assert.Equal(t, diff.ReasonOK, reason)
	assert.Equal(t, "l1\nl2\nl6\n", patched)

	before := strings.Count(content, "\n")
	after := strings.Count(patched, "\n")
	assert.Equal(t, 3, before-after, "exactly three lines removed")
	assert.True(t, CheckRule(rule, content, patched))
}

func TestFastPathDeleteLinesOutOfRange(t *testing.T) {
	rule := Rule{Kind: RuleDeleteLines, StartLine: 5, EndLine: 99}
	_, _, ok := FastPath(rule, "", "x.py", "one\ntwo\n", nil)
	assert.False(t, ok)
}

func TestFastPathAddImport(t *testing.T) {
	rule := Rule{Kind: RuleAddImport, Name: "json"}

	search, replace, ok := FastPath(rule, "", "app.py", "x = 1\n", nil)
	require.True(t, ok)
	assert.Empty(t, search)
	assert.Equal(t, "import json\n", replace)

	patched, reason := diff.Apply("def f():\n    pass\n", search, replace)
	assert.Equal(t, diff.ReasonAppended, reason)
	assert.Equal(t, "import json\ndef f():\n    pass\n", patched)
}

func TestFastPathUpdateAssignment(t *testing.T) {
	content := "RETRIES = 3\nOTHER = 9\n"
	rule := Rule{Kind: RuleUpdateAssignment, Name: "RETRIES", Value: "5"}

	search, replace, ok := FastPath(rule, "", "cfg.py", content, nil)
	require.True(t, ok)
	assert.Equal(t, "RETRIES = 3", search)
	assert.Equal(t, "RETRIES = 5", replace)
}

func TestFastPathUpdateAssignmentKeepsQuoting(t *testing.T) {
	content := "MODE = 'slow'\n"
	rule := Rule{Kind: RuleUpdateAssignment, Name: "MODE", Value: "fast"}

	_, replace, ok := FastPath(rule, "", "cfg.py", content, nil)
	require.True(t, ok)
	assert.Equal(t, "MODE = 'fast'", replace)
}

func TestFastPathAddComment(t *testing.T) {
	content := "def f():\n    pass\n"
	rule := Rule{Kind: RuleAddComment, Text: "entry point"}

	search, replace, ok := FastPath(rule, "", "app.py", content, nil)
	require.True(t, ok)
	assert.Equal(t, "def f():", search)
	assert.Equal(t, "# entry point\ndef f():", replace)

	patched, reason := diff.Apply(content, search, replace)
	assert.Equal(t, diff.ReasonOK, reason)
	assert.True(t, CheckRule(rule, content, patched))
}

func TestFastPathWrapInTry(t *testing.T) {
	dir := t.TempDir()
	content := "def risky():\n    x = 1\n    return x\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "m.py"), []byte(content), 0644))
	g, _, err := graph.NewBuilder(dir).Build(false)
	require.NoError(t, err)

	rule := Rule{Kind: RuleNontrivialDiff}
	search, replace, ok := FastPath(rule, "wrap risky in try", "m.py", content, g)
	require.True(t, ok)
	assert.Equal(t, "    x = 1\n    return x", search)

	patched, reason := diff.Apply(content, search, replace)
	require.Equal(t, diff.ReasonOK, reason)
	want := "def risky():\n" +
		"    try:\n" +
		"        x = 1\n" +
		"        return x\n" +
		"    except Exception:\n" +
		"        raise\n"
	assert.Equal(t, want, patched)
}

func TestFastPathFallsThroughForFreeformGoals(t *testing.T) {
	_, _, ok := FastPath(Rule{Kind: RuleNontrivialDiff}, "rework error handling", "m.py", "x = 1\n", nil)
	assert.False(t, ok)
}
