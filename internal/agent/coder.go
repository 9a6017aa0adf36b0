package agent

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/qasimio/operon/internal/approval"
	"github.com/qasimio/operon/internal/chunk"
	"github.com/qasimio/operon/internal/diff"
	"github.com/qasimio/operon/internal/fileutil"
	"github.com/qasimio/operon/internal/search"
	"github.com/qasimio/operon/internal/ui"
)

const actionPrompt = `You are executing one edit step. Reply with JSON only:
{"tool": "<name>", "args": {"key": "value"}}

Available tools: find_file(name), read_file(path), semantic_search(query), exact_search(query), rewrite_function(path), create_file(path, content), insert_line(path, target, line), append_file(path, text).

Step: %s
Target file: %s
Goal: %s

Recent observations:
%s`

const editPrompt = `Produce the edit for this step as one or more fenced blocks:

<<<<<<< SEARCH
...exact lines from the current file...
=======
...replacement lines...
>>>>>>> REPLACE

A blank SEARCH section appends. Match the file exactly.

Step: %s
Goal: %s

Current content of %s:
%s`

// coderIteration performs one CODER action for the current step.
func (o *Orchestrator) coderIteration(ctx context.Context, step PlanStep) error {
	action, err := o.nextCoderAction(ctx, step)
	if err != nil {
		return err
	}

	proceed, err := o.dispatch(action)
	if err != nil || !proceed {
		return err
	}

	if writeTools[action.Tool] {
		return o.executeWrite(ctx, step, action)
	}
	return o.executeReadOnly(action)
}

// nextCoderAction picks the next tool call deterministically where
// possible and consults the oracle otherwise.
func (o *Orchestrator) nextCoderAction(ctx context.Context, step PlanStep) (Action, error) {
	target := step.File
	if target != "" {
		resolved, found := o.Resolver.Path(target)
		if found {
			target = resolved
		}
		if found && !o.state.FilesRead[target] {
			return Action{Tool: "read_file", Args: map[string]string{"path": target}}, nil
		}
		if !found {
			o.state.Observe("path_unresolved", target)
			// An unresolved target with content to add becomes a new file.
			if step.Rule.Kind != RuleDeleteLines {
				return Action{Tool: "create_file", Args: map[string]string{"path": target}}, nil
			}
		}
	}

	if !o.fastPathTried[o.state.StepIndex] && target != "" {
		o.fastPathTried[o.state.StepIndex] = true
		content := o.state.ContextBuffer[target]
		if search, replace, ok := FastPath(step.Rule, step.Description, target, content, o.Graph); ok {
			return Action{Tool: "rewrite_function", Args: map[string]string{
				"path":    target,
				"search":  search,
				"replace": replace,
			}}, nil
		}
	}

	prompt := fmt.Sprintf(actionPrompt, step.Description, target, o.state.Goal, o.state.ObservationText())
	raw, err := o.Oracle.Call(ctx, prompt, true)
	if err != nil {
		return Action{}, err
	}
	return ParseAction(raw)
}

// executeReadOnly runs search and read tools and records their
// observations.
func (o *Orchestrator) executeReadOnly(action Action) error {
	switch action.Tool {
	case "find_file":
		resolved, found := o.Resolver.Path(action.Args["name"])
		if !found {
			o.state.Observe("find_file", "path_unresolved: "+action.Args["name"])
			return nil
		}
		o.state.Observe("find_file", resolved)

	case "read_file":
		path := action.Args["path"]
		resolved, content, ok := o.Resolver.ReadResolved(path)
		if !ok {
			o.state.Observe("read_file", "path_unresolved: "+path)
			return nil
		}
		o.state.ContextBuffer[resolved] = content
		o.state.FilesRead[resolved] = true
		o.state.Observe("read_file", fmt.Sprintf("%s (%d lines)", resolved, strings.Count(content, "\n")+1))

	case "semantic_search":
		chunks := chunk.Relevant(action.Args["query"], o.RepoRoot, o.Graph, 2000)
		if len(chunks) == 0 {
			o.state.Observe("semantic_search", "no results")
			return nil
		}
		hits := make([]string, 0, len(chunks))
		for _, c := range chunks {
			hits = append(hits, fmt.Sprintf("%s:%d-%d %s", c.File, c.Start, c.End, c.Symbol))
		}
		o.state.Observe("semantic_search", strings.Join(hits, "; "))

	case "exact_search":
		hits := search.Exact(o.RepoRoot, o.Graph, action.Args["query"], 10)
		if len(hits) == 0 {
			o.state.Observe("exact_search", "no results")
			return nil
		}
		lines := make([]string, 0, len(hits))
		for _, hit := range hits {
			lines = append(lines, fmt.Sprintf("%s:%d %s", hit.File, hit.Line, hit.Text))
		}
		o.state.Observe("exact_search", strings.Join(lines, "; "))

	default:
		return fmt.Errorf("unknown tool %q", action.Tool)
	}
	return nil
}

// executeWrite runs the edit pipeline for one write action: resolve,
// read disk, build the candidate, syntax-check, gate, atomic write,
// fingerprint, handoff.
func (o *Orchestrator) executeWrite(ctx context.Context, step PlanStep, action Action) error {
	target := action.Args["path"]
	resolved, found := o.Resolver.Path(target)
	creating := false
	if !found {
		if action.Tool != "create_file" {
			o.state.Observe(action.Tool, "path_unresolved: "+target)
			return nil
		}
		resolved = filepath.ToSlash(target)
		creating = true
	}

	// Disk is authoritative; the context buffer may be stale.
	before := ""
	if !creating {
		data, err := os.ReadFile(filepath.Join(o.RepoRoot, filepath.FromSlash(resolved)))
		if err != nil {
			return fmt.Errorf("reading %s: %w", resolved, err)
		}
		before = string(data)
	}

	after, reason, err := o.buildCandidate(ctx, step, action, resolved, before)
	if err != nil {
		return err
	}
	if reason == diff.ReasonNoop || before == after {
		o.state.Observe(action.Tool, "noop: "+resolved)
		o.registerNoop()
		return nil
	}
	if reason == diff.ReasonNoMatch || reason == diff.ReasonAmbiguous {
		o.state.Observe(action.Tool, string(reason)+": "+resolved)
		return nil
	}

	if syntaxErr := o.Registry.CheckSyntax(resolved, []byte(after)); syntaxErr != nil {
		o.state.Observe("syntax_reject", fmt.Sprintf("%s: %v", resolved, syntaxErr))
		return nil
	}

	search := action.Args["search"]
	replace := action.Args["replace"]
	if strings.TrimSpace(search) == "" && strings.TrimSpace(replace) == "" {
		// Whole-file writes carry the new content as the proposal.
		replace = after
	}
	decision, why := o.Gate.Ask(ctx, action.Tool, approval.Payload{
		File:    resolved,
		Search:  search,
		Replace: replace,
		Summary: step.Description,
	})
	if decision != approval.Approved {
		o.state.Observe("approval", fmt.Sprintf("rejected %s (%s)", resolved, why))
		return nil
	}

	if _, tracked := o.state.PreEditHash[resolved]; !tracked {
		o.state.PreEditHash[resolved] = fileutil.HashBytes([]byte(before))
		o.snapshots[resolved] = before
	}
	abs := filepath.Join(o.RepoRoot, filepath.FromSlash(resolved))
	if err := fileutil.WriteFileAtomic(abs, []byte(after), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", resolved, err)
	}

	// Fingerprint ordering matters: the diff-memory record follows the
	// rename so rollback stays surgical even under cancellation.
	o.state.DiffMemory[resolved] = fileutil.HashBytes([]byte(after))
	o.state.MarkModified(resolved)
	o.state.ContextBuffer[resolved] = after
	o.stepWrites[o.state.StepIndex] = append(o.stepWrites[o.state.StepIndex], resolved)
	o.state.Budgets.NoopStreak = 0

	if err := diff.WriteReport(o.RepoRoot, diff.Report{
		File:    resolved,
		Search:  search,
		Replace: replace,
		Reason:  reason,
		Unified: diff.Unified(resolved, before, after),
	}); err != nil {
		o.state.Observe("warn", "last_diff not recorded: "+err.Error())
	}

	o.state.Observe(action.Tool, "wrote "+resolved)
	o.state.Phase = PhaseReviewer
	ui.Eventf(o.Sink, "phase", "REVIEWER: %s", resolved)
	return nil
}

// buildCandidate produces the post-edit content for a write action.
// SEARCH/REPLACE failures re-consult the oracle with the full file
// content, up to EditRetries times.
func (o *Orchestrator) buildCandidate(ctx context.Context, step PlanStep, action Action, path, before string) (string, diff.Reason, error) {
	switch action.Tool {
	case "create_file":
		content := action.Args["content"]
		if content == "" {
			produced, err := o.oracleBlocks(ctx, step, path, before)
			if err != nil {
				return "", diff.ReasonNoMatch, err
			}
			patched, reason, _ := diff.ApplyAll(before, produced)
			return patched, reason, nil
		}
		return content, diff.ReasonAppended, nil

	case "insert_line":
		patched, reason := diff.InsertAbove(before, action.Args["target"], action.Args["line"])
		return patched, reason, nil

	case "append_file":
		patched, reason := diff.AppendToFile(before, action.Args["text"])
		return patched, reason, nil
	}

	// rewrite_function
	search, hasSearch := action.Args["search"]
	replace := action.Args["replace"]
	if hasSearch {
		patched, reason := diff.Apply(before, search, replace)
		return patched, reason, nil
	}

	var lastReason diff.Reason = diff.ReasonNoMatch
	for attempt := 0; attempt <= EditRetries; attempt++ {
		blocks, err := o.oracleBlocks(ctx, step, path, before)
		if err != nil {
			return "", lastReason, err
		}
		patched, reason, _ := diff.ApplyAll(before, blocks)
		if reason != diff.ReasonNoMatch && reason != diff.ReasonAmbiguous {
			if len(blocks) > 0 {
				action.Args["search"] = blocks[0].Search
				action.Args["replace"] = blocks[0].Replace
			}
			return patched, reason, nil
		}
		lastReason = reason
		o.state.Observe("retry", fmt.Sprintf("%s on %s (attempt %d)", reason, path, attempt+1))
	}
	return before, lastReason, nil
}

func (o *Orchestrator) oracleBlocks(ctx context.Context, step PlanStep, path, content string) ([]diff.Block, error) {
	prompt := fmt.Sprintf(editPrompt, step.Description, o.state.Goal, path, content)
	raw, err := o.Oracle.Call(ctx, prompt, false)
	if err != nil {
		return nil, err
	}
	blocks := diff.ParseBlocks(raw)
	if blocks == nil {
		return nil, fmt.Errorf("oracle produced no edit blocks")
	}
	return blocks, nil
}
