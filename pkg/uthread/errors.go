package uthread

import "errors"

// Caller errors. They are returned wrapped with detail and can be matched
// with errors.Is. None of them leaves the runtime in a modified state.
var (
	ErrInvalidQuantum     = errors.New("quantum length should be positive")
	ErrTooManyThreads     = errors.New("max thread count exceeded")
	ErrInvalidID          = errors.New("illegal thread id")
	ErrMainThread         = errors.New("operation not allowed on the main thread")
	ErrInvalidDuration    = errors.New("sleep duration should not be negative")
	ErrNilEntry           = errors.New("thread entry function is nil")
	ErrAlreadyInitialized = errors.New("runtime already initialized")
	ErrNotInitialized     = errors.New("runtime not initialized")
	ErrThreadExiting      = errors.New("calling thread is terminating")
)
