package uthread_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/amirkhaki/uthreads/pkg/uthread"
)

const quantum = 100000 // µs

var q = time.Duration(quantum) * time.Microsecond

type fakeClock interface {
	clockwork.Clock
	Advance(d time.Duration)
}

type harness struct {
	r    *uthread.Runtime
	clk  fakeClock
	rec  *uthread.RecordObserver
	errs bytes.Buffer
}

// expire advances simulated time by one quantum and lets the running
// thread take the resulting interrupt.
func (h *harness) expire() {
	h.clk.Advance(q)
	h.r.Checkpoint()
}

// step advances simulated time by d and hits a checkpoint.
func (h *harness) step(d time.Duration) {
	h.clk.Advance(d)
	h.r.Checkpoint()
}

// spin is a thread body that keeps giving up its quantum.
func (h *harness) spin() {
	for {
		h.expire()
	}
}

// run starts a runtime on a fresh goroutine, which becomes the main thread,
// and runs body on it. If body returns, the main thread is terminated.
// run returns the exit status the runtime requested.
func run(t *testing.T, cfg uthread.Config, body func(h *harness)) (*harness, int) {
	t.Helper()

	h := &harness{
		clk: clockwork.NewFakeClock(),
		rec: uthread.NewRecordObserver(""),
	}
	exitCh := make(chan int, 1)
	done := make(chan struct{})
	if cfg.Quantum == 0 {
		cfg.Quantum = quantum
	}
	cfg.Clock = h.clk
	cfg.Errors = &h.errs
	cfg.Exit = func(code int) { exitCh <- code }
	cfg.Observers = append(cfg.Observers, h.rec)

	go func() {
		defer close(done)
		r, err := uthread.Start(cfg)
		if err != nil {
			t.Errorf("Start() error = %v", err)
			return
		}
		h.r = r
		body(h)
		r.Terminate(uthread.MainID)
	}()

	select {
	case code := <-exitCh:
		select {
		case <-done:
		case <-time.After(10 * time.Second):
			t.Fatal("main thread did not exit after process exit")
		}
		return h, code
	case <-done:
		// Another thread may have ended the process and released main
		// before reporting the exit status.
		select {
		case code := <-exitCh:
			return h, code
		case <-time.After(time.Second):
			t.Fatal("main thread ended without exiting the process")
		}
	case <-time.After(10 * time.Second):
		t.Fatal("runtime did not exit in time")
	}
	return h, -1
}
