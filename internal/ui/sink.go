package ui

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Sink receives run events. It is passed explicitly into every
// component that reports progress or decisions, so headless and
// multi-instance runs stay possible.
type Sink interface {
	Event(kind, message string)
}

// ConsoleSink writes one line per event.
type ConsoleSink struct {
	Out     io.Writer
	Verbose bool

	mu sync.Mutex
}

func NewConsoleSink(out io.Writer, verbose bool) *ConsoleSink {
	return &ConsoleSink{Out: out, Verbose: verbose}
}

func (s *ConsoleSink) Event(kind, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Verbose {
		fmt.Fprintf(s.Out, "%s [%s] %s\n", time.Now().Format("15:04:05"), kind, message)
		return
	}
	fmt.Fprintf(s.Out, "[%s] %s\n", kind, message)
}

// NullSink discards everything.
type NullSink struct{}

func (NullSink) Event(string, string) {}

// MemorySink records events for inspection in tests.
type MemorySink struct {
	mu     sync.Mutex
	events []RecordedEvent
}

type RecordedEvent struct {
	Kind    string
	Message string
}

func (s *MemorySink) Event(kind, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, RecordedEvent{Kind: kind, Message: message})
}

func (s *MemorySink) Events() []RecordedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RecordedEvent, len(s.events))
	copy(out, s.events)
	return out
}

// Has reports whether any recorded event carries the given kind.
func (s *MemorySink) Has(kind string) bool {
	for _, ev := range s.Events() {
		if ev.Kind == kind {
			return true
		}
	}
	return false
}

func Eventf(s Sink, kind, format string, args ...interface{}) {
	s.Event(kind, fmt.Sprintf(format, args...))
}
