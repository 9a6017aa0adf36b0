package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyRule(t *testing.T) {
	cases := []struct {
		goal string
		want Rule
	}{
		{
			goal: "delete lines 3-5 in x.py",
			want: Rule{Kind: RuleDeleteLines, StartLine: 3, EndLine: 5},
		},
		{
			goal: "please delete lines 10 to 12",
			want: Rule{Kind: RuleDeleteLines, StartLine: 10, EndLine: 12},
		},
		{
			goal: "add an import json to app.py",
			want: Rule{Kind: RuleAddImport, Name: "json"},
		},
		{
			goal: "update MAX_RETRIES = 5",
			want: Rule{Kind: RuleUpdateAssignment, Name: "max_retries", Value: "5"},
		},
		{
			goal: "set timeout to 30",
			want: Rule{Kind: RuleUpdateAssignment, Name: "timeout", Value: "30"},
		},
		{
			goal: "add a comment explaining retries",
			want: Rule{Kind: RuleAddComment, Text: "explaining retries"},
		},
		{
			goal: "refactor the payment flow to use the new client",
			want: Rule{Kind: RuleNontrivialDiff},
		},
	}
	for _, tc := range cases {
		t.Run(tc.goal, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifyRule(tc.goal))
		})
	}
}

func TestCheckRuleNoChangeAlwaysFails(t *testing.T) {
	content := "a = 1\n"
	for _, rule := range []Rule{
		{Kind: RuleDeleteLines, StartLine: 1, EndLine: 1},
		{Kind: RuleAddImport, Name: "json"},
		{Kind: RuleNontrivialDiff},
	} {
		assert.False(t, CheckRule(rule, content, content), "rule %s", rule.Kind)
	}
}

func TestCheckRuleDeleteLines(t *testing.T) {
	before := "l1\nl2\nl3\nl4\nl5\nl6\n"
	after := "l1\nl2\nl6\n"

	rule := Rule{Kind: RuleDeleteLines, StartLine: 3, EndLine: 5}
	assert.True(t, CheckRule(rule, before, after))

	// wrong count
	assert.False(t, CheckRule(rule, before, "l1\nl2\nl5\nl6\n"))
}

func TestCheckRuleAddImport(t *testing.T) {
	rule := Rule{Kind: RuleAddImport, Name: "json"}

	assert.True(t, CheckRule(rule, "x = 1\n", "import json\nx = 1\n"))
	// token already present before the edit
	assert.False(t, CheckRule(rule, "import json\n", "import json\nx = 1\n"))
	// substring is not a token match
	assert.False(t, CheckRule(rule, "x = 1\n", "import jsonschema\nx = 1\n"))
}

func TestCheckRuleUpdateAssignment(t *testing.T) {
	rule := Rule{Kind: RuleUpdateAssignment, Name: "RETRIES", Value: "5"}

	assert.True(t, CheckRule(rule, "RETRIES = 3\n", "RETRIES = 5\n"))
	assert.True(t, CheckRule(rule, "RETRIES = 3\n", "RETRIES=5\n"))
	assert.False(t, CheckRule(rule, "RETRIES = 3\n", "RETRIES = 50\n"))

	quoted := Rule{Kind: RuleUpdateAssignment, Name: "MODE", Value: "fast"}
	assert.True(t, CheckRule(quoted, "MODE = 'slow'\n", "MODE = 'fast'\n"))
}

func TestCheckRuleAddComment(t *testing.T) {
	rule := Rule{Kind: RuleAddComment, Text: "retry logic"}

	before := "def f():\n    pass\n"
	after := "# retry logic lives here\ndef f():\n    pass\n"
	assert.True(t, CheckRule(rule, before, after))

	// a comment that does not mention the fragment fails
	assert.False(t, CheckRule(rule, before, "# unrelated\ndef f():\n    pass\n"))
}

func TestCheckRuleNontrivialDiff(t *testing.T) {
	rule := Rule{Kind: RuleNontrivialDiff}

	assert.True(t, CheckRule(rule, "a = 1\n", "a = 2\n"))
	// whitespace-only changes do not count
	assert.False(t, CheckRule(rule, "a = 1\n", "a = 1\n\n"))
}
