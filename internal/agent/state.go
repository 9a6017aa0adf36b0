package agent

import (
	"sort"
	"strings"
)

// Phase is the current position in the PLANNER/CODER/REVIEWER machine.
type Phase string

const (
	PhasePlanner  Phase = "PLANNER"
	PhaseCoder    Phase = "CODER"
	PhaseReviewer Phase = "REVIEWER"
	PhaseDone     Phase = "DONE"
	PhaseFailed   Phase = "FAILED"
)

// Run budgets. MaxSteps counts tool calls across the whole run.
const (
	MaxSteps        = 35
	NoopStreakMax   = 2
	RejectThreshold = 3
	EditRetries     = 2

	historySize    = 12
	observationCap = 24
)

// RuleKind tags a validator rule variant.
type RuleKind string

const (
	RuleDeleteLines      RuleKind = "delete_lines"
	RuleAddImport        RuleKind = "add_import"
	RuleUpdateAssignment RuleKind = "update_assignment"
	RuleAddComment       RuleKind = "add_comment"
	RuleNontrivialDiff   RuleKind = "nontrivial_diff"
)

// Rule is the tagged validator variant attached to a plan step. Only
// the fields relevant to the kind are set.
type Rule struct {
	Kind      RuleKind `json:"kind"`
	StartLine int      `json:"start_line,omitempty"`
	EndLine   int      `json:"end_line,omitempty"`
	Name      string   `json:"name,omitempty"`
	Value     string   `json:"value,omitempty"`
	Text      string   `json:"text,omitempty"`
}

// PlanStep is one atomic write milestone emitted by the planner.
type PlanStep struct {
	Description string `json:"description"`
	File        string `json:"file"`
	Rule        Rule   `json:"rule"`
	IsQuestion  bool   `json:"is_question,omitempty"`
}

// Observation is one recent tool result, kept in a bounded ring.
type Observation struct {
	Tool    string
	Summary string
}

// Budgets groups the counters that bound a run. Only the orchestrator
// mutates them.
type Budgets struct {
	Steps      int
	NoopStreak int
	Rejects    int
}

// History is the bounded action ring used for loop detection.
type History struct {
	entries []string
}

// Push appends the canonical form of an action.
func (h *History) Push(canonical string) {
	h.entries = append(h.entries, canonical)
	if len(h.entries) > historySize {
		h.entries = h.entries[len(h.entries)-historySize:]
	}
}

// LastThreeIdentical reports whether the three most recent actions are
// the same.
func (h *History) LastThreeIdentical() bool {
	n := len(h.entries)
	if n < 3 {
		return false
	}
	return h.entries[n-1] == h.entries[n-2] && h.entries[n-1] == h.entries[n-3]
}

// Canonicalize renders an action as action name plus sorted payload,
// so equivalent actions compare equal regardless of argument order.
func Canonicalize(tool string, args map[string]string) string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(tool)
	for _, k := range keys {
		b.WriteString("|")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(args[k])
	}
	return b.String()
}

// State is the per-run agent state: plan and progress, recent
// observations, file tracking, and the diff memory consulted by the
// reviewer. Created at run start, destroyed at termination.
type State struct {
	Goal     string
	RepoRoot string
	Phase    Phase

	Plan      []PlanStep
	StepIndex int

	Observations []Observation
	History      History
	Budgets      Budgets

	ContextBuffer map[string]string
	FilesRead     map[string]bool
	FilesModified []string

	// DiffMemory maps file path to the content hash recorded after its
	// last approved write. Entries are never cleared mid-run.
	DiffMemory map[string]string
	// PreEditHash maps file path to its hash before the first agent
	// edit, so the reviewer can detect writes that changed nothing.
	PreEditHash map[string]string
}

func NewState(goal, repoRoot string) *State {
	return &State{
		Goal:          goal,
		RepoRoot:      repoRoot,
		Phase:         PhasePlanner,
		ContextBuffer: make(map[string]string),
		FilesRead:     make(map[string]bool),
		DiffMemory:    make(map[string]string),
		PreEditHash:   make(map[string]string),
	}
}

// Observe appends a tool result to the bounded ring.
func (s *State) Observe(tool, summary string) {
	s.Observations = append(s.Observations, Observation{Tool: tool, Summary: summary})
	if len(s.Observations) > observationCap {
		s.Observations = s.Observations[len(s.Observations)-observationCap:]
	}
}

// ClearObservations wipes the ring. Used by the loop breaker.
func (s *State) ClearObservations() {
	s.Observations = nil
}

// MarkModified records an approved write for path.
func (s *State) MarkModified(path string) {
	for _, existing := range s.FilesModified {
		if existing == path {
			return
		}
	}
	s.FilesModified = append(s.FilesModified, path)
}

// CurrentStep returns the active plan step.
func (s *State) CurrentStep() (PlanStep, bool) {
	if s.StepIndex < 0 || s.StepIndex >= len(s.Plan) {
		return PlanStep{}, false
	}
	return s.Plan[s.StepIndex], true
}

// ObservationText renders recent observations for oracle prompts.
func (s *State) ObservationText() string {
	if len(s.Observations) == 0 {
		return "(none)"
	}
	var b strings.Builder
	for _, obs := range s.Observations {
		b.WriteString("- ")
		b.WriteString(obs.Tool)
		b.WriteString(": ")
		b.WriteString(obs.Summary)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
