package uthread

import (
	"fmt"
	"os"
	"sync"
)

// Process-wide runtime instance
var (
	std   *Runtime
	stdMu sync.Mutex
)

func current() *Runtime {
	stdMu.Lock()
	defer stdMu.Unlock()
	return std
}

// Init creates the process-wide runtime with the given quantum and makes
// the caller its main thread (id 0). It may only be called once.
// See ConfigFromEnv for the environment variables it honours.
func Init(quantumUsecs int) error {
	cfg, err := ConfigFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "thread library error: %v\n", err)
		return err
	}
	cfg.Quantum = quantumUsecs
	return InitWithConfig(cfg)
}

// InitWithConfig is Init with a full configuration.
func InitWithConfig(cfg Config) error {
	stdMu.Lock()
	defer stdMu.Unlock()
	if std != nil {
		fmt.Fprintf(std.errw, "thread library error: %v\n", ErrAlreadyInitialized)
		return ErrAlreadyInitialized
	}
	r, err := Start(cfg)
	if err != nil {
		return err
	}
	std = r
	return nil
}

// MustInit is like Init but ends the process with status 1 on failure.
func MustInit(quantumUsecs int) {
	if err := Init(quantumUsecs); err != nil {
		os.Exit(1)
	}
}

func notInitialized() error {
	fmt.Fprintf(os.Stderr, "thread library error: %v\n", ErrNotInitialized)
	return ErrNotInitialized
}

// Spawn creates a thread in the process-wide runtime.
func Spawn(entry func()) (int, error) {
	r := current()
	if r == nil {
		return -1, notInitialized()
	}
	return r.Spawn(entry)
}

// MustSpawn is like Spawn but ends the process with status 1 on failure.
func MustSpawn(entry func()) {
	if _, err := Spawn(entry); err != nil {
		os.Exit(1)
	}
}

// Terminate destroys a thread of the process-wide runtime.
func Terminate(id int) error {
	r := current()
	if r == nil {
		return notInitialized()
	}
	return r.Terminate(id)
}

// Block blocks a thread of the process-wide runtime.
func Block(id int) error {
	r := current()
	if r == nil {
		return notInitialized()
	}
	return r.Block(id)
}

// Resume resumes a thread of the process-wide runtime.
func Resume(id int) error {
	r := current()
	if r == nil {
		return notInitialized()
	}
	return r.Resume(id)
}

// Sleep puts the running thread of the process-wide runtime to sleep.
func Sleep(usecs int) error {
	r := current()
	if r == nil {
		return notInitialized()
	}
	return r.Sleep(usecs)
}

// GetTid returns the running thread id, or -1 before Init.
func GetTid() int {
	r := current()
	if r == nil {
		return -1
	}
	return r.GetTid()
}

// GetTotalQuantums returns the global quantum count, or 0 before Init.
func GetTotalQuantums() int {
	r := current()
	if r == nil {
		return 0
	}
	return r.GetTotalQuantums()
}

// GetQuantums returns the quantum count of a thread.
func GetQuantums(id int) (int, error) {
	r := current()
	if r == nil {
		return -1, notInitialized()
	}
	return r.GetQuantums(id)
}

// Checkpoint delivers pending timer interrupts of the process-wide
// runtime. It does nothing before Init.
func Checkpoint() {
	if r := current(); r != nil {
		r.Checkpoint()
	}
}
