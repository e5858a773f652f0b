package uthread

import (
	"fmt"
	"runtime"
)

// Spawn creates a ready thread that runs entry once dispatched and returns
// its id: the smallest id released by a terminated thread, or the next
// unused one. Returning from entry terminates the thread.
func (r *Runtime) Spawn(entry func()) (int, error) {
	if err := r.checkExiting(); err != nil {
		return -1, err
	}
	if entry == nil {
		return -1, r.fail(ErrNilEntry)
	}
	r.block()
	defer r.unblock()

	if len(r.threads) >= r.maxThreads {
		return -1, r.fail(fmt.Errorf("%w: %d live threads", ErrTooManyThreads, len(r.threads)))
	}

	t := &thread{id: r.ids.get(), state: Ready}
	t.ctx = synthesize(func() {
		r.deferred = 0
		entry()
		r.Terminate(t.id)
	})
	r.threads[t.id] = t
	r.ready.push(t)
	r.emit(Event{Quantum: r.quantums, Tid: t.id, Kind: KindSpawn})
	return t.id, nil
}

// Terminate destroys a thread. Terminating the main thread destroys every
// thread and ends the process with status 0. Terminating the running
// thread hands control to the next ready thread and never returns.
//
// The goroutine of a terminated thread runs its pending deferred calls
// before anything else is scheduled. Runtime calls made from them fail
// with ErrThreadExiting.
func (r *Runtime) Terminate(id int) error {
	if err := r.checkExiting(); err != nil {
		return err
	}
	r.block()
	t, ok := r.threads[id]
	if !ok {
		r.unblock()
		return r.fail(fmt.Errorf("%w: %d", ErrInvalidID, id))
	}
	r.emit(Event{Quantum: r.quantums, Tid: id, Kind: KindTerminate})

	if id == MainID {
		r.shutdown()
		r.exit(0)
		runtime.Goexit()
	}

	if t == r.running {
		r.exiting = t
		t.ctx.onExit = func() {
			r.exiting = nil
			r.dispatchNext()
			r.resetQuantumTimer()
			delete(r.threads, id)
			r.ids.release(id)
			r.running.ctx.restore()
		}
		runtime.Goexit()
	}

	delete(r.threads, id)
	r.ids.release(id)
	if t.asleep {
		r.sleeping.Remove(id)
	} else if t.state == Ready {
		r.ready.remove(t)
	}
	r.reap(t)
	r.unblock()
	return nil
}

// Block moves a thread to the Blocked state. Blocking the running thread
// switches away from it; the call returns once the thread has been resumed
// and dispatched again. Blocking a blocked thread has no effect. The main
// thread cannot be blocked.
func (r *Runtime) Block(id int) error {
	if err := r.checkExiting(); err != nil {
		return err
	}
	r.block()
	t, ok := r.threads[id]
	if !ok || id == MainID {
		r.unblock()
		return r.fail(fmt.Errorf("%w: %d", ErrInvalidID, id))
	}
	if t.state == Blocked {
		r.unblock()
		return nil
	}

	wasQueued := t.state == Ready && !t.asleep
	t.state = Blocked
	r.emit(Event{Quantum: r.quantums, Tid: id, Kind: KindBlock})
	if t == r.running {
		r.yield(t)
		r.unblock()
		return nil
	}
	if wasQueued {
		r.ready.remove(t)
	}
	r.unblock()
	return nil
}

// Resume makes a blocked thread ready again. A thread that is still asleep
// stays out of the ready queue until its sleep timer fires. Resuming a
// thread that is not blocked has no effect.
func (r *Runtime) Resume(id int) error {
	if err := r.checkExiting(); err != nil {
		return err
	}
	t, ok := r.threads[id]
	if !ok {
		return r.fail(fmt.Errorf("%w: %d", ErrInvalidID, id))
	}
	if t.state != Blocked {
		return nil
	}
	if !t.asleep {
		r.ready.push(t)
	}
	t.state = Ready
	r.emit(Event{Quantum: r.quantums, Tid: id, Kind: KindResume})
	return nil
}

// GetTid returns the id of the running thread. Deferred calls of a
// terminated thread see that thread's id.
func (r *Runtime) GetTid() int {
	if r.exiting != nil {
		return r.exiting.id
	}
	return r.running.id
}

// GetTotalQuantums returns the number of quanta started since Start,
// the main thread's first one included.
func (r *Runtime) GetTotalQuantums() int {
	return r.quantums
}

// GetQuantums returns the number of quanta the thread has run.
func (r *Runtime) GetQuantums(id int) (int, error) {
	t, ok := r.threads[id]
	if !ok {
		return -1, r.fail(fmt.Errorf("%w: %d", ErrInvalidID, id))
	}
	return t.quanta, nil
}

// ThreadInfo is a snapshot of a thread control block.
type ThreadInfo struct {
	ID     int
	State  State
	Quanta int
	Asleep bool
}

// Stat returns a snapshot of a live thread.
func (r *Runtime) Stat(id int) (ThreadInfo, error) {
	t, ok := r.threads[id]
	if !ok {
		return ThreadInfo{}, r.fail(fmt.Errorf("%w: %d", ErrInvalidID, id))
	}
	return ThreadInfo{ID: t.id, State: t.state, Quanta: t.quanta, Asleep: t.asleep}, nil
}

// ReadyQueue returns the ids of the queued threads in dispatch order.
func (r *Runtime) ReadyQueue() []int {
	return r.ready.ids()
}
