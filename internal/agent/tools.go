package agent

import (
	"encoding/json"
	"fmt"
)

// Action is one tool invocation requested by the oracle or by the
// deterministic rules.
type Action struct {
	Tool string            `json:"tool"`
	Args map[string]string `json:"args"`
}

// Canonical renders the action for the loop-detection history.
func (a Action) Canonical() string {
	return Canonicalize(a.Tool, a.Args)
}

var coderTools = map[string]bool{
	"find_file":        true,
	"read_file":        true,
	"semantic_search":  true,
	"exact_search":     true,
	"rewrite_function": true,
	"create_file":      true,
	"insert_line":      true,
	"append_file":      true,
}

var reviewerTools = map[string]bool{
	"approve_step": true,
	"reject_step":  true,
	"finish":       true,
}

// writeTools declare a disk mutation; they flow through the edit
// pipeline and the approval gate.
var writeTools = map[string]bool{
	"rewrite_function": true,
	"create_file":      true,
	"insert_line":      true,
	"append_file":      true,
}

// Permitted enforces the phase/tool jail before dispatch.
func Permitted(phase Phase, tool string) bool {
	switch phase {
	case PhaseCoder:
		return coderTools[tool]
	case PhaseReviewer:
		return reviewerTools[tool]
	default:
		return false
	}
}

// ParseAction decodes an oracle action reply.
func ParseAction(raw string) (Action, error) {
	var a Action
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		return Action{}, fmt.Errorf("action: %w", err)
	}
	if a.Tool == "" {
		return Action{}, fmt.Errorf("action: missing tool")
	}
	if a.Args == nil {
		a.Args = make(map[string]string)
	}
	return a, nil
}
