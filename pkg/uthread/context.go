package uthread

import (
	"runtime"
	"sync"
)

// execContext is the saved execution state of a thread.
//
// Every thread runs on its own goroutine, but only the goroutine holding
// the baton executes; all others are parked in capture. Handing the baton
// over (restore) and parking (capture) together form a context switch.
// The saved interrupt-deferral depth travels with the context, so a thread
// resumes with the mask it had when it was switched out.
type execContext struct {
	wake chan struct{}
	kill chan struct{}
	once sync.Once

	// done is closed once a synthesized goroutine has run all of its
	// deferred calls. It is nil for the main thread.
	done chan struct{}

	// onExit, if set, runs on the goroutine after its deferred calls.
	onExit func()

	// mask is the deferral depth saved at capture time.
	mask int
}

func newExecContext() *execContext {
	return &execContext{
		wake: make(chan struct{}, 1),
		kill: make(chan struct{}),
	}
}

// synthesize prepares a context that runs entry on first restore, with an
// empty mask. The goroutine is started immediately and parks until then.
func synthesize(entry func()) *execContext {
	c := newExecContext()
	c.done = make(chan struct{})
	go func() {
		defer c.exited()
		c.capture()
		entry()
	}()
	return c
}

// exited is the outermost deferred call of a synthesized goroutine.
func (c *execContext) exited() {
	close(c.done)
	if c.onExit != nil {
		c.onExit()
	}
}

// capture parks the calling goroutine until the context is restored. If
// the context is killed while parked, the goroutine exits.
func (c *execContext) capture() {
	select {
	case <-c.wake:
	case <-c.kill:
		runtime.Goexit()
	}
}

// restore transfers the baton to the context. The caller must park or exit
// right after and must not touch runtime state in between.
func (c *execContext) restore() {
	c.wake <- struct{}{}
}

// destroy releases a parked context.
func (c *execContext) destroy() {
	c.once.Do(func() { close(c.kill) })
}

// wait returns once a destroyed synthesized goroutine has unwound.
func (c *execContext) wait() {
	if c.done != nil {
		<-c.done
	}
}
