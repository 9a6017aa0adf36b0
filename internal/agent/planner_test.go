package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qasimio/operon/internal/oracle"
)

func TestPlanCrudGoalSkipsOracle(t *testing.T) {
	scripted := &oracle.Scripted{}

	steps, err := Plan(context.Background(), "delete lines 3-5 in x.py", t.TempDir(), nil, scripted)
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, RuleDeleteLines, steps[0].Rule.Kind)
	assert.Equal(t, "x.py", steps[0].File)
	assert.Empty(t, scripted.Calls, "deterministic plans must not consult the oracle")
}

func TestParsePlanValid(t *testing.T) {
	raw := `{"steps": [
		{"description": "add retry import", "file": "net.py", "rule": {"kind": "add_import", "name": "retry"}},
		{"description": "which backoff?", "is_question": true},
		{"description": "rework the client", "file": "net.py"}
	]}`

	steps, err := parsePlan(raw)
	require.NoError(t, err)
	require.Len(t, steps, 3)
	assert.Equal(t, RuleAddImport, steps[0].Rule.Kind)
	assert.True(t, steps[1].IsQuestion)
	// missing rule defaults to the catch-all
	assert.Equal(t, RuleNontrivialDiff, steps[2].Rule.Kind)
}

func TestParsePlanBareArray(t *testing.T) {
	raw := `[{"description": "do it", "file": "a.py"}]`

	steps, err := parsePlan(raw)
	require.NoError(t, err)
	assert.Len(t, steps, 1)
}

func TestParsePlanRejectsMalformed(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{name: "not json", raw: "do some stuff"},
		{name: "no steps", raw: `{"steps": []}`},
		{name: "missing description", raw: `{"steps": [{"file": "a.py"}]}`},
		{name: "missing file", raw: `{"steps": [{"description": "x"}]}`},
		{name: "bad line range", raw: `{"steps": [{"description": "x", "file": "a.py", "rule": {"kind": "delete_lines", "start_line": 9, "end_line": 3}}]}`},
		{name: "import without name", raw: `{"steps": [{"description": "x", "file": "a.py", "rule": {"kind": "add_import"}}]}`},
		{name: "unknown rule kind", raw: `{"steps": [{"description": "x", "file": "a.py", "rule": {"kind": "teleport"}}]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parsePlan(tc.raw)
			assert.Error(t, err)
		})
	}
}

func TestTargetFileFromGoal(t *testing.T) {
	assert.Equal(t, "x.py", targetFileFromGoal("delete lines 3-5 in x.py", nil))
	assert.Equal(t, "app/main.py", targetFileFromGoal(`update "app/main.py" now`, nil))
	assert.Equal(t, "", targetFileFromGoal("make everything faster", nil))
}
