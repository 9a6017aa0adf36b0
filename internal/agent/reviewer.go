package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/qasimio/operon/internal/fileutil"
	"github.com/qasimio/operon/internal/ui"
)

const reviewPrompt = `Judge whether this edit satisfies its step. Reply with JSON only:
{"decision": "approve" or "reject", "reason": "..."}

Goal: %s
Step: %s

Current content of %s:
%s`

// reviewerIteration runs the deterministic reviewer for the current
// step and, only when a structural change is confirmed, asks the
// oracle for a goal-satisfaction judgement.
func (o *Orchestrator) reviewerIteration(ctx context.Context, step PlanStep) error {
	writes := o.stepWrites[o.state.StepIndex]

	// Empty files-modified at REVIEWER entry is a reject, not a
	// silent success.
	if len(writes) == 0 {
		return o.rejectStep("no edits produced")
	}

	for _, path := range writes {
		// Disk, not cache: the fingerprint must reflect what a reader
		// would actually see.
		data, err := os.ReadFile(filepath.Join(o.RepoRoot, filepath.FromSlash(path)))
		if err != nil {
			return o.rejectStep(fmt.Sprintf("cannot read %s: %v", path, err))
		}
		hash := fileutil.HashBytes(data)
		recorded, ok := o.state.DiffMemory[path]
		if !ok || hash != recorded || hash == o.state.PreEditHash[path] {
			return o.rejectStep("no change on disk")
		}
	}

	last := writes[len(writes)-1]
	after := o.state.ContextBuffer[last]

	rule := step.Rule
	if rule.Kind == "" {
		rule = ClassifyRule(step.Description)
	}
	before := o.beforeContent(last)
	if !CheckRule(rule, before, after) {
		return o.rejectStep(fmt.Sprintf("validator %s failed", rule.Kind))
	}
	// A specific rule passing is a deterministic verdict; only the
	// default rule needs the oracle's judgement.
	if rule.Kind != RuleNontrivialDiff {
		return o.approveStep()
	}

	decision, reason, err := o.oracleJudgement(ctx, step, last, after)
	if err != nil {
		return err
	}
	if decision != "approve" {
		return o.rejectStep(reason)
	}
	return o.approveStep()
}

func (o *Orchestrator) approveStep() error {
	action := Action{Tool: "approve_step", Args: map[string]string{"step": fmt.Sprint(o.state.StepIndex)}}
	proceed, err := o.dispatch(action)
	if err != nil || !proceed {
		return err
	}

	o.state.Observe("approve_step", o.currentStepLabel())
	o.state.StepIndex++
	o.state.Budgets.Rejects = 0
	if o.state.StepIndex >= len(o.state.Plan) {
		o.state.Phase = PhaseDone
		return nil
	}
	o.state.Phase = PhaseCoder
	ui.Eventf(o.Sink, "phase", "CODER: step %d/%d", o.state.StepIndex+1, len(o.state.Plan))
	return nil
}

func (o *Orchestrator) rejectStep(reason string) error {
	action := Action{Tool: "reject_step", Args: map[string]string{
		"step":   fmt.Sprint(o.state.StepIndex),
		"reason": reason,
	}}
	proceed, err := o.dispatch(action)
	if err != nil || !proceed {
		return err
	}

	o.state.Observe("reject_step", reason)
	o.stepRejects[o.state.StepIndex]++
	if o.stepRejects[o.state.StepIndex] >= RejectThreshold {
		return &fatalError{reason: "unachievable: step rejected " + fmt.Sprint(RejectThreshold) + " times"}
	}
	o.state.Phase = PhaseCoder
	ui.Eventf(o.Sink, "phase", "CODER: retrying after reject (%s)", reason)
	return nil
}

func (o *Orchestrator) oracleJudgement(ctx context.Context, step PlanStep, path, content string) (string, string, error) {
	prompt := fmt.Sprintf(reviewPrompt, o.state.Goal, step.Description, path, content)
	raw, err := o.Oracle.Call(ctx, prompt, true)
	if err != nil {
		return "", "", err
	}
	var verdict struct {
		Decision string `json:"decision"`
		Reason   string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(raw), &verdict); err != nil {
		return "", "", fmt.Errorf("review verdict: %w", err)
	}
	verdict.Decision = strings.ToLower(strings.TrimSpace(verdict.Decision))
	if verdict.Reason == "" {
		verdict.Reason = "oracle gave no reason"
	}
	return verdict.Decision, verdict.Reason, nil
}

// beforeContent is the pre-edit snapshot taken at the file's first
// write this run. Files created by the agent start empty.
func (o *Orchestrator) beforeContent(path string) string {
	return o.snapshots[path]
}

func (o *Orchestrator) currentStepLabel() string {
	if step, ok := o.state.CurrentStep(); ok {
		return step.Description
	}
	return fmt.Sprint("step ", o.state.StepIndex)
}
