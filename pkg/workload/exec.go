package workload

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/amirkhaki/uthreads/pkg/uthread"
)

// Options configures Run.
type Options struct {
	// Clock drives the runtime. A fake clock makes the run simulated:
	// every spin step advances it by one tick instead of busy-waiting.
	// Nil means the real clock.
	Clock clockwork.Clock

	// Out receives one line per executed action. Nil discards them.
	Out io.Writer

	// Errors, Exit and Observers are passed to the runtime.
	Errors    io.Writer
	Exit      func(code int)
	Observers []uthread.Observer
}

type advancer interface {
	Advance(d time.Duration)
}

type executor struct {
	w     *Workload
	r     *uthread.Runtime
	clk   clockwork.Clock
	tick  time.Duration
	out   io.Writer
	names map[string]int
}

// Run starts a runtime on the calling goroutine, which becomes the main
// thread, and executes the workload. When the main script ends the main
// thread is terminated, so Run only returns if the runtime cannot start.
func Run(w *Workload, opts Options) error {
	if w.main == nil && w.threads == nil {
		if err := w.compile(); err != nil {
			return err
		}
	}
	clk := opts.Clock
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	out := opts.Out
	if out == nil {
		out = io.Discard
	}

	r, err := uthread.Start(uthread.Config{
		Quantum:    w.Quantum,
		MaxThreads: w.MaxThreads,
		Clock:      clk,
		Errors:     opts.Errors,
		Exit:       opts.Exit,
		Observers:  opts.Observers,
	})
	if err != nil {
		return err
	}

	e := &executor{
		w:     w,
		r:     r,
		clk:   clk,
		tick:  time.Duration(w.Tick) * time.Microsecond,
		out:   out,
		names: make(map[string]int),
	}
	e.script(w.main)
	r.Terminate(uthread.MainID)
	return nil
}

func (e *executor) script(actions []Action) {
	for _, a := range actions {
		fmt.Fprintf(e.out, "%6d  t%-3d %s\n", e.r.GetTotalQuantums(), e.r.GetTid(), a)
		e.do(a)
	}
}

// do executes one action. Runtime errors are reported by the runtime
// itself and do not stop the script.
func (e *executor) do(a Action) {
	switch a.Op {
	case OpSpin:
		for i := 0; i < a.N; i++ {
			e.work(e.tick)
		}
	case OpSleep:
		e.r.Sleep(a.N)
	case OpBlock:
		e.r.Block(e.resolve(a.Ref))
	case OpResume:
		e.r.Resume(e.resolve(a.Ref))
	case OpTerminate:
		e.r.Terminate(e.resolve(a.Ref))
	case OpSpawn:
		name := a.Ref
		id, err := e.r.Spawn(func() { e.script(e.w.threads[name]) })
		if err == nil {
			e.names[name] = id
		}
	case OpExit:
		e.r.Terminate(e.r.GetTid())
	}
}

// work burns d of the thread's time, taking interrupts as it goes.
func (e *executor) work(d time.Duration) {
	if fc, ok := e.clk.(advancer); ok {
		fc.Advance(d)
		e.r.Checkpoint()
		return
	}
	for start := e.clk.Now(); e.clk.Since(start) < d; {
		e.r.Checkpoint()
	}
}

// resolve maps a thread reference to an id, or -1 if it names nothing.
func (e *executor) resolve(ref string) int {
	switch ref {
	case "self":
		return e.r.GetTid()
	case "main":
		return uthread.MainID
	}
	if id, err := strconv.Atoi(ref); err == nil {
		return id
	}
	if id, ok := e.names[ref]; ok {
		return id
	}
	return -1
}
