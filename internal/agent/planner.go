package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/qasimio/operon/internal/chunk"
	"github.com/qasimio/operon/internal/graph"
	"github.com/qasimio/operon/internal/oracle"
)

// contextBudget bounds the retrieved-context portion of the planner
// prompt, in characters.
const contextBudget = 6000

const planPrompt = `You are planning code edits for the goal below. Reply with JSON only:
{"steps": [{"description": "...", "file": "path/to/file", "rule": {"kind": "delete_lines|add_import|update_assignment|add_comment|nontrivial_diff", "start_line": 0, "end_line": 0, "name": "", "value": "", "text": ""}, "is_question": false}]}

Each step is one atomic edit to one file. Use rule kind "nontrivial_diff" unless a more specific rule clearly applies.

Goal: %s

Repository:
%s

Relevant code:
%s`

// Plan produces the ordered step list for a goal. Goals that classify
// into the deterministic pattern library yield a single-step plan
// without consulting the oracle.
func Plan(ctx context.Context, goal, repoRoot string, g *graph.Graph, o oracle.Oracle) ([]PlanStep, error) {
	rule := ClassifyRule(goal)
	if rule.Kind != RuleNontrivialDiff {
		file := targetFileFromGoal(goal, g)
		return []PlanStep{{
			Description: goal,
			File:        file,
			Rule:        rule,
		}}, nil
	}

	prompt := fmt.Sprintf(planPrompt, goal, RepoSummary(g), chunk.AssembleContext(goal, repoRoot, g, contextBudget))
	raw, err := o.Call(ctx, prompt, true)
	if err != nil {
		return nil, err
	}
	return parsePlan(raw)
}

// parsePlan treats planner output as untrusted and validates it
// against the step schema. A malformed plan fails the run.
func parsePlan(raw string) ([]PlanStep, error) {
	var doc struct {
		Steps []PlanStep `json:"steps"`
	}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		// Some models emit the bare array.
		var steps []PlanStep
		if arrErr := json.Unmarshal([]byte(raw), &steps); arrErr != nil {
			return nil, fmt.Errorf("plan: %w", err)
		}
		doc.Steps = steps
	}
	if len(doc.Steps) == 0 {
		return nil, fmt.Errorf("plan: no steps")
	}

	for i := range doc.Steps {
		step := &doc.Steps[i]
		if strings.TrimSpace(step.Description) == "" {
			return nil, fmt.Errorf("plan: step %d has no description", i+1)
		}
		if step.Rule.Kind == "" {
			step.Rule.Kind = RuleNontrivialDiff
		}
		switch step.Rule.Kind {
		case RuleDeleteLines:
			if step.Rule.StartLine < 1 || step.Rule.EndLine < step.Rule.StartLine {
				return nil, fmt.Errorf("plan: step %d has invalid line range", i+1)
			}
		case RuleAddImport, RuleUpdateAssignment:
			if step.Rule.Name == "" {
				return nil, fmt.Errorf("plan: step %d rule %s needs a name", i+1, step.Rule.Kind)
			}
		case RuleAddComment:
			if step.Rule.Text == "" {
				return nil, fmt.Errorf("plan: step %d rule add_comment needs text", i+1)
			}
		case RuleNontrivialDiff:
		default:
			return nil, fmt.Errorf("plan: step %d has unknown rule kind %q", i+1, step.Rule.Kind)
		}
		if !step.IsQuestion && strings.TrimSpace(step.File) == "" {
			return nil, fmt.Errorf("plan: step %d names no file", i+1)
		}
	}
	return doc.Steps, nil
}

// targetFileFromGoal scans the goal for something that looks like a
// file reference.
func targetFileFromGoal(goal string, g *graph.Graph) string {
	for _, field := range strings.Fields(goal) {
		cleaned := strings.Trim(field, `"'.,;:`)
		if strings.ContainsRune(cleaned, '.') && !strings.HasSuffix(cleaned, ".") {
			return cleaned
		}
	}
	if g != nil {
		// Fall back to the only file when the repo has exactly one.
		paths := g.Paths()
		if len(paths) == 1 {
			return paths[0]
		}
	}
	return ""
}

// RepoSummary renders a compact per-file outline used in planner
// prompts.
func RepoSummary(g *graph.Graph) string {
	if g == nil || len(g.Files) == 0 {
		return "(empty repository)"
	}
	var b strings.Builder
	for _, path := range g.Paths() {
		fmt.Fprintf(&b, "%s: %s\n", path, g.FileSummary(path))
	}
	return strings.TrimRight(b.String(), "\n")
}
