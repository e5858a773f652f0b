// Package uthread multiplexes user-level threads onto a single logical
// thread of execution.
//
// Each thread is backed by a goroutine, and exactly one of them runs at any
// time. A quantum timer preempts the running thread in round-robin order and
// a sleep timer wakes threads that asked to sleep. Both timers are
// delivered at checkpoints, never in the middle of an API call.
//
// The package-level functions operate on a process-wide runtime created by
// Init. Tests and embedders that need several independent runtimes use
// Start directly.
package uthread

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/amirkhaki/uthreads/pkg/sleepq"
)

// DefaultMaxThreads bounds the number of live threads, main included.
const DefaultMaxThreads = 100

// Config configures a runtime.
type Config struct {
	// Quantum is the time slice in microseconds. It must be positive.
	Quantum int

	// MaxThreads bounds the number of live threads. Zero means
	// DefaultMaxThreads.
	MaxThreads int

	// Clock drives both timers and sleep wake times. Nil means the real
	// clock.
	Clock clockwork.Clock

	// Errors receives one diagnostic line per failed call. Nil means
	// os.Stderr.
	Errors io.Writer

	// Exit ends the process. Nil means os.Exit. If it returns, the
	// goroutine that called it exits instead.
	Exit func(code int)

	// Observers are notified of every scheduling event.
	Observers []Observer
}

// ConfigFromEnv returns the default configuration adjusted by the
// environment:
//   - UTHREADS_MAX_THREADS: live thread limit (default: 100)
//   - UTHREADS_TRACE: if set, scheduling events are recorded to this file
//     when the main thread terminates
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if s := os.Getenv("UTHREADS_MAX_THREADS"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return cfg, fmt.Errorf("invalid UTHREADS_MAX_THREADS %q", s)
		}
		cfg.MaxThreads = n
	}
	if path := os.Getenv("UTHREADS_TRACE"); path != "" {
		cfg.Observers = append(cfg.Observers, NewRecordObserver(path))
	}
	return cfg, nil
}

// Runtime is the state of one scheduler. All of it is owned by whichever
// thread currently runs; methods must only be called from thread code.
type Runtime struct {
	quantum    time.Duration
	maxThreads int
	clock      clockwork.Clock
	errw       io.Writer
	exit       func(int)
	observers  []Observer

	running  *thread
	threads  map[int]*thread
	ready    readyQueue
	ids      idPool
	quantums int
	sleeping *sleepq.Queue

	quantumTimer clockwork.Timer
	sleepTimer   clockwork.Timer
	deferred     int
	down         bool

	// exiting is the terminated thread whose deferred calls are running.
	exiting *thread
}

// Start creates a runtime and turns the calling goroutine into its main
// thread, running its first quantum.
func Start(cfg Config) (*Runtime, error) {
	errw := cfg.Errors
	if errw == nil {
		errw = os.Stderr
	}
	if cfg.Quantum <= 0 {
		err := fmt.Errorf("%w: %d", ErrInvalidQuantum, cfg.Quantum)
		fmt.Fprintf(errw, "thread library error: %v\n", err)
		return nil, err
	}

	r := &Runtime{
		quantum:    time.Duration(cfg.Quantum) * time.Microsecond,
		maxThreads: cfg.MaxThreads,
		clock:      cfg.Clock,
		errw:       errw,
		exit:       cfg.Exit,
		observers:  cfg.Observers,
		threads:    make(map[int]*thread),
		sleeping:   sleepq.New(),
	}
	if r.maxThreads <= 0 {
		r.maxThreads = DefaultMaxThreads
	}
	if r.clock == nil {
		r.clock = clockwork.NewRealClock()
	}
	if r.exit == nil {
		r.exit = os.Exit
	}

	r.quantumTimer = r.clock.NewTimer(r.quantum)
	r.sleepTimer = r.clock.NewTimer(time.Hour)
	r.sleepTimer.Stop()

	m := &thread{id: r.ids.get(), state: Running, quanta: 1, ctx: newExecContext()}
	r.threads[m.id] = m
	r.running = m
	r.resetQuantumTimer()
	return r, nil
}

// fail reports a caller error and returns it.
func (r *Runtime) fail(err error) error {
	fmt.Fprintf(r.errw, "thread library error: %v\n", err)
	return err
}

// reap kills a parked thread and waits until its goroutine has run its
// deferred calls. Runtime calls made from them fail with ErrThreadExiting.
func (r *Runtime) reap(t *thread) {
	prev := r.exiting
	r.exiting = t
	t.ctx.destroy()
	t.ctx.wait()
	r.exiting = prev
}

// checkExiting rejects calls made by the deferred code of a terminated
// thread.
func (r *Runtime) checkExiting() error {
	if r.exiting == nil {
		return nil
	}
	return r.fail(fmt.Errorf("%w: thread %d", ErrThreadExiting, r.exiting.id))
}

// shutdown stops both timers, releases every parked thread and finalizes
// the observers.
func (r *Runtime) shutdown() {
	if r.down {
		return
	}
	r.down = true
	r.quantumTimer.Stop()
	r.sleepTimer.Stop()
	for id, t := range r.threads {
		if t != r.running {
			r.reap(t)
		}
		delete(r.threads, id)
	}
	for _, o := range r.observers {
		if err := o.OnFinalize(); err != nil {
			fmt.Fprintf(r.errw, "uthreads: %v\n", err)
		}
	}
}
