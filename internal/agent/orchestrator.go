package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/qasimio/operon/internal/approval"
	"github.com/qasimio/operon/internal/gitsafe"
	"github.com/qasimio/operon/internal/graph"
	"github.com/qasimio/operon/internal/oracle"
	"github.com/qasimio/operon/internal/parser"
	"github.com/qasimio/operon/internal/resolve"
	"github.com/qasimio/operon/internal/ui"
)

// Result is the terminal outcome of one run.
type Result struct {
	Phase         Phase
	Reason        string
	FilesModified []string
	Steps         int
	Cancelled     bool
}

// Orchestrator drives the phase machine. It is single-threaded: one
// action per iteration, budgets checked between actions, cancellation
// polled between steps. Collaborators are passed in at construction;
// the orchestrator exclusively mutates plan, history, and budgets.
type Orchestrator struct {
	RepoRoot string
	Graph    *graph.Graph
	Registry *parser.Registry
	Resolver *resolve.Resolver
	Oracle   oracle.Oracle
	Gate     *approval.Gate
	Sink     ui.Sink
	Sidecar  *gitsafe.Sidecar

	state *State

	// per-step bookkeeping
	stepWrites     map[int][]string
	stepRejects    map[int]int
	fastPathTried  map[int]bool
	snapshots      map[string]string
	loopBreaksUsed int
}

func New(repoRoot string, g *graph.Graph, o oracle.Oracle, gate *approval.Gate, sink ui.Sink, sidecar *gitsafe.Sidecar) *Orchestrator {
	reg := parser.NewRegistry()
	return &Orchestrator{
		RepoRoot:      repoRoot,
		Graph:         g,
		Registry:      reg,
		Resolver:      resolve.New(repoRoot, g),
		Oracle:        o,
		Gate:          gate,
		Sink:          sink,
		Sidecar:       sidecar,
		stepWrites:    make(map[int][]string),
		stepRejects:   make(map[int]int),
		fastPathTried: make(map[int]bool),
		snapshots:     make(map[string]string),
	}
}

// Run executes the goal to termination. The returned result is always
// valid; err is set only for internal failures that prevented a clean
// terminal state.
func (o *Orchestrator) Run(ctx context.Context, goal string) (Result, error) {
	o.state = NewState(goal, o.RepoRoot)
	ui.Eventf(o.Sink, "phase", "PLANNER: %s", goal)

	plan, err := Plan(ctx, goal, o.RepoRoot, o.Graph, o.Oracle)
	if err != nil {
		if errors.Is(err, oracle.ErrUnavailable) {
			return o.terminate(ctx, PhaseFailed, "oracle_unavailable: "+err.Error())
		}
		return o.terminate(ctx, PhaseFailed, "plan: "+err.Error())
	}
	o.state.Plan = plan
	o.state.Phase = PhaseCoder
	ui.Eventf(o.Sink, "phase", "CODER: %d step(s) planned", len(plan))

	for {
		if ctx.Err() != nil {
			res, terr := o.terminate(ctx, PhaseFailed, "cancelled")
			res.Cancelled = true
			return res, terr
		}
		if o.state.Phase == PhaseDone || o.state.Phase == PhaseFailed {
			break
		}
		if o.state.Budgets.Steps >= MaxSteps {
			return o.terminate(ctx, PhaseFailed, fmt.Sprintf("step budget exhausted (%d)", MaxSteps))
		}

		step, ok := o.state.CurrentStep()
		if !ok {
			return o.terminate(ctx, PhaseDone, "all steps complete")
		}
		if step.IsQuestion {
			o.state.Observe("plan", "question step skipped: "+step.Description)
			o.state.StepIndex++
			continue
		}

		var iterErr error
		switch o.state.Phase {
		case PhaseCoder:
			iterErr = o.coderIteration(ctx, step)
		case PhaseReviewer:
			iterErr = o.reviewerIteration(ctx, step)
		}
		if iterErr != nil {
			if errors.Is(iterErr, oracle.ErrUnavailable) {
				return o.terminate(ctx, PhaseFailed, "oracle_unavailable: "+iterErr.Error())
			}
			var fatal *fatalError
			if errors.As(iterErr, &fatal) {
				return o.terminate(ctx, PhaseFailed, fatal.reason)
			}
			// Recoverable errors stay local to the step.
			o.state.Observe("error", iterErr.Error())
		}
	}

	reason := "goal satisfied"
	if o.state.Phase == PhaseFailed {
		reason = "failed"
	}
	return o.terminate(ctx, o.state.Phase, reason)
}

// fatalError aborts the run with a terminal FAILED result.
type fatalError struct {
	reason string
}

func (e *fatalError) Error() string { return e.reason }

// dispatch runs jail, budget, history, and loop checks for one action,
// then returns whether execution may proceed. The forced handoff on a
// detected loop is applied here.
func (o *Orchestrator) dispatch(action Action) (proceed bool, err error) {
	if !Permitted(o.state.Phase, action.Tool) {
		return false, fmt.Errorf("tool_forbidden: %s not permitted in %s", action.Tool, o.state.Phase)
	}
	o.state.Budgets.Steps++
	o.state.History.Push(action.Canonical())

	if o.state.History.LastThreeIdentical() {
		o.loopBreaksUsed++
		o.Sink.Event("loop_detected", action.Canonical())
		o.state.ClearObservations()
		if o.loopBreaksUsed > 1 {
			return false, &fatalError{reason: "loop"}
		}
		o.forceHandoff()
		return false, nil
	}
	return true, nil
}

// forceHandoff flips CODER to REVIEWER and vice versa.
func (o *Orchestrator) forceHandoff() {
	if o.state.Phase == PhaseCoder {
		o.state.Phase = PhaseReviewer
		ui.Eventf(o.Sink, "phase", "REVIEWER (forced)")
		return
	}
	o.state.Phase = PhaseCoder
	ui.Eventf(o.Sink, "phase", "CODER (forced)")
}

// registerNoop advances the no-op streak and forces a handoff past
// the threshold.
func (o *Orchestrator) registerNoop() {
	o.state.Budgets.NoopStreak++
	if o.state.Budgets.NoopStreak > NoopStreakMax {
		o.Sink.Event("noop_streak", fmt.Sprintf("%d consecutive no-ops", o.state.Budgets.NoopStreak))
		o.state.Budgets.NoopStreak = 0
		o.forceHandoff()
	}
}

// terminate settles the run: commit on DONE, scoped rollback
// otherwise. Rollback failures replace the result reason; they must
// be loud.
func (o *Orchestrator) terminate(ctx context.Context, phase Phase, reason string) (Result, error) {
	o.state.Phase = phase
	res := Result{
		Phase:         phase,
		Reason:        reason,
		FilesModified: append([]string(nil), o.state.FilesModified...),
		Steps:         o.state.Budgets.Steps,
	}

	if o.Sidecar == nil {
		ui.Eventf(o.Sink, "phase", "%s: %s", phase, reason)
		return res, nil
	}

	if phase == PhaseDone {
		if err := o.Sidecar.Commit(o.state.FilesModified, "operon: "+o.state.Goal); err != nil {
			return res, err
		}
	} else {
		// Even with nothing modified, rollback re-applies the user's
		// shelved work and can fail partially.
		if err := o.Sidecar.Rollback(o.state.FilesModified); err != nil {
			res.Reason = err.Error()
			return res, err
		}
	}

	ui.Eventf(o.Sink, "phase", "%s: %s", phase, reason)
	return res, nil
}
