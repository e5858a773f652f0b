package uthread

import "sync"

// RecordObserver records all events and writes them to a trace file.
// It doesn't influence scheduling - just observes.
type RecordObserver struct {
	trace     []Event
	mu        sync.Mutex
	traceFile string
}

var _ Recorder = (*RecordObserver)(nil)

// NewRecordObserver creates a new recording observer. An empty traceFile
// keeps the trace in memory only.
func NewRecordObserver(traceFile string) *RecordObserver {
	return &RecordObserver{traceFile: traceFile}
}

// OnEvent records the event without blocking.
func (s *RecordObserver) OnEvent(e Event) {
	s.mu.Lock()
	s.trace = append(s.trace, e)
	s.mu.Unlock()
}

// OnFinalize saves the recorded trace to file.
func (s *RecordObserver) OnFinalize() error {
	if s.traceFile == "" {
		return nil
	}
	return s.RecordTrace()
}

// Events returns a copy of the events recorded so far.
func (s *RecordObserver) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.trace...)
}

// RecordTrace saves the current trace to file.
func (s *RecordObserver) RecordTrace() error {
	return SaveTrace(s.traceFile, s.Events())
}
