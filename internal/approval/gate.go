package approval

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/qasimio/operon/internal/ui"
)

// DecisionTimeout bounds how long an edit waits for a user decision.
const DecisionTimeout = 300 * time.Second

// Decision is the user's answer to one approval request.
type Decision string

const (
	Approved Decision = "approved"
	Rejected Decision = "rejected"
)

// Payload describes the proposed edit shown to the user.
type Payload struct {
	File    string
	Search  string
	Replace string
	Summary string
}

// Request is one pending approval. The responder answers through
// Respond exactly once.
type Request struct {
	Action  string
	Payload Payload
	reply   chan Decision
}

// Respond delivers the decision. Extra calls after the first are
// dropped.
func (r *Request) Respond(d Decision) {
	select {
	case r.reply <- d:
	default:
	}
}

// Gate is the synchronous checkpoint between the agent and the user.
// Requests flow through a single-slot queue: at most one edit is ever
// awaiting a decision.
type Gate struct {
	sink        ui.Sink
	requests    chan *Request
	timeout     time.Duration
	autoApprove bool
}

// Option configures a Gate.
type Option func(*Gate)

// WithTimeout overrides the decision timeout.
func WithTimeout(d time.Duration) Option {
	return func(g *Gate) { g.timeout = d }
}

// WithAutoApprove switches the gate to headless mode: every
// well-formed request is approved without waiting. Decisions are
// still logged.
func WithAutoApprove() Option {
	return func(g *Gate) { g.autoApprove = true }
}

func NewGate(sink ui.Sink, opts ...Option) *Gate {
	g := &Gate{
		sink:     sink,
		requests: make(chan *Request, 1),
		timeout:  DecisionTimeout,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Requests exposes the responder side of the queue. The interactive
// front end receives each pending request here and answers it.
func (g *Gate) Requests() <-chan *Request {
	return g.requests
}

// Ask blocks until the user decides, the timeout expires, or ctx is
// cancelled. Timeout and cancellation both come back as Rejected. An
// empty payload (no search and no replace) is rejected immediately.
func (g *Gate) Ask(ctx context.Context, action string, payload Payload) (Decision, string) {
	if strings.TrimSpace(payload.Search) == "" && strings.TrimSpace(payload.Replace) == "" {
		g.log(action, payload.File, Rejected, "no content")
		return Rejected, "no content"
	}

	if g.autoApprove {
		g.log(action, payload.File, Approved, "auto")
		return Approved, "auto"
	}

	req := &Request{
		Action:  action,
		Payload: payload,
		reply:   make(chan Decision, 1),
	}

	timer := time.NewTimer(g.timeout)
	defer timer.Stop()

	select {
	case g.requests <- req:
	case <-timer.C:
		g.log(action, payload.File, Rejected, "timeout")
		return Rejected, "timeout"
	case <-ctx.Done():
		g.log(action, payload.File, Rejected, "cancelled")
		return Rejected, "cancelled"
	}

	select {
	case decision := <-req.reply:
		reason := "user"
		g.log(action, payload.File, decision, reason)
		return decision, reason
	case <-timer.C:
		g.withdraw(req)
		g.log(action, payload.File, Rejected, "timeout")
		return Rejected, "timeout"
	case <-ctx.Done():
		g.withdraw(req)
		g.log(action, payload.File, Rejected, "cancelled")
		return Rejected, "cancelled"
	}
}

// withdraw removes an abandoned request from the queue so it cannot
// occupy the slot forever when no responder ever picks it up.
func (g *Gate) withdraw(req *Request) {
	select {
	case stale := <-g.requests:
		if stale != req {
			// A different caller's request; put it back.
			select {
			case g.requests <- stale:
			default:
			}
		}
	default:
	}
}

func (g *Gate) log(action, file string, decision Decision, reason string) {
	g.sink.Event("approval", fmt.Sprintf("%s %s: %s (%s)", action, file, decision, reason))
}
