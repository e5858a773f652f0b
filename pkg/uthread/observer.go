package uthread

// Observer is notified of scheduling events.
// Implementations are called synchronously while timer interrupts are
// deferred, so they must not call back into the runtime.
type Observer interface {
	// OnEvent is called for every scheduling event, in order.
	OnEvent(e Event)

	// OnFinalize is called once when the runtime shuts down (e.g., save
	// trace). A returned error is reported on the runtime's error writer.
	OnFinalize() error
}

// Recorder is an observer that can save its execution trace.
type Recorder interface {
	Observer
	Events() []Event
	RecordTrace() error
}

// Replayer is an observer that checks execution against a recorded trace.
type Replayer interface {
	Observer
	Err() error
}
