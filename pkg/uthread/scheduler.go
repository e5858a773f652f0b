package uthread

import (
	"fmt"
	"runtime"
)

// dispatchNext makes the head of the ready queue the running thread.
func (r *Runtime) dispatchNext() {
	t := r.ready.pop()
	if t == nil {
		r.fatal("ready queue is empty at dispatch")
		return
	}
	t.state = Running
	t.quanta++
	r.running = t
}

// resetQuantumTimer gives the running thread a full quantum and counts it.
// A pending expiry left over from the previous thread is dropped.
func (r *Runtime) resetQuantumTimer() {
	r.quantums++
	if !r.quantumTimer.Stop() {
		select {
		case <-r.quantumTimer.Chan():
		default:
		}
	}
	r.quantumTimer.Reset(r.quantum)
	r.emit(Event{Quantum: r.quantums, Tid: r.running.id, Kind: KindDispatch})
}

// onQuantum preempts the running thread. It returns once the preempted
// thread is dispatched again.
func (r *Runtime) onQuantum() {
	cur := r.running
	cur.state = Ready
	r.ready.push(cur)
	r.emit(Event{Quantum: r.quantums, Tid: cur.id, Kind: KindPreempt})
	r.dispatchNext()
	r.resetQuantumTimer()
	r.switchTo(cur, r.running)
}

// switchTo saves from, restores to and returns when from runs again.
func (r *Runtime) switchTo(from, to *thread) {
	if from == to {
		return
	}
	from.ctx.mask = r.deferred
	to.ctx.restore()
	from.ctx.capture()
	r.deferred = from.ctx.mask
}

// yield performs a voluntary switch away from the running thread, which
// has already left the Running state. It returns when cur is dispatched
// again.
func (r *Runtime) yield(cur *thread) {
	r.dispatchNext()
	r.resetQuantumTimer()
	r.switchTo(cur, r.running)
}

func (r *Runtime) emit(e Event) {
	for _, o := range r.observers {
		o.OnEvent(e)
	}
}

// fatal reports an infrastructure failure and ends the process. The calling
// goroutine never continues.
func (r *Runtime) fatal(format string, args ...any) {
	fmt.Fprintf(r.errw, "system error: "+format+"\n", args...)
	r.shutdown()
	r.exit(1)
	runtime.Goexit()
}
