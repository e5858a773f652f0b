package uthread

import (
	"fmt"
	"sync"
)

// ReplayObserver compares events against a recorded trace and keeps the
// first divergence.
type ReplayObserver struct {
	trace     []Event
	idx       int
	err       error
	mu        sync.Mutex
	traceFile string
}

var _ Replayer = (*ReplayObserver)(nil)

// NewReplayObserver creates a replay observer from a trace file.
func NewReplayObserver(traceFile string) (*ReplayObserver, error) {
	trace, err := LoadTrace(traceFile)
	if err != nil {
		return nil, err
	}
	return &ReplayObserver{trace: trace, traceFile: traceFile}, nil
}

// NewReplayObserverFromEvents creates a replay observer for an in-memory
// trace.
func NewReplayObserverFromEvents(trace []Event) *ReplayObserver {
	return &ReplayObserver{trace: append([]Event(nil), trace...)}
}

// OnEvent checks the event against the next expected one.
func (s *ReplayObserver) OnEvent(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return
	}
	if s.idx >= len(s.trace) {
		s.err = fmt.Errorf("event %d: unexpected %s of thread %d, trace has %d events",
			s.idx, e.Kind, e.Tid, len(s.trace))
		return
	}
	if expected := s.trace[s.idx]; expected != e {
		s.err = fmt.Errorf("event %d: got %s of thread %d at quantum %d, want %s of thread %d at quantum %d",
			s.idx, e.Kind, e.Tid, e.Quantum, expected.Kind, expected.Tid, expected.Quantum)
		return
	}
	s.idx++
}

// OnFinalize flags a trace that was not fully replayed.
// The divergence is kept for Err rather than returned.
func (s *ReplayObserver) OnFinalize() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil && s.idx < len(s.trace) {
		s.err = fmt.Errorf("execution ended after %d of %d events", s.idx, len(s.trace))
	}
	return nil
}

// Err returns the first divergence, if any.
func (s *ReplayObserver) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// ReplayTrace reloads the trace file and starts over.
func (s *ReplayObserver) ReplayTrace() error {
	trace, err := LoadTrace(s.traceFile)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.trace = trace
	s.idx = 0
	s.err = nil
	s.mu.Unlock()
	return nil
}
