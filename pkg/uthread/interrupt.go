package uthread

// Timer interrupts are never run asynchronously. An expired timer leaves
// one pending value in its channel, and the running thread takes it at a
// delivery point: Checkpoint, or the moment deferral is lifted. Both
// handlers run deferred, so they are critical sections with respect to
// each other and to the API.

// block defers delivery of both timer interrupts.
func (r *Runtime) block() {
	r.deferred++
}

// unblock lifts one level of deferral and delivers whatever became pending
// once no deferral is left.
func (r *Runtime) unblock() {
	r.deferred--
	if r.deferred == 0 {
		r.deliver()
	}
}

// deliver runs the handler of every pending interrupt, sleep timer first.
// A quantum handler may switch the running thread away; deliver carries on
// once that thread is dispatched again.
func (r *Runtime) deliver() {
	for r.deferred == 0 && !r.down {
		select {
		case <-r.sleepTimer.Chan():
			r.deferred++
			r.onSleepTimer()
			r.deferred--
			continue
		default:
		}

		select {
		case <-r.quantumTimer.Chan():
			r.deferred++
			r.onQuantum()
			r.deferred--
		default:
			return
		}
	}
}

// Checkpoint is a delivery point: pending timer interrupts are handled here
// unless deferred. Long-running thread code must reach a checkpoint
// regularly to be preemptible.
func (r *Runtime) Checkpoint() {
	if r.deferred == 0 {
		r.deliver()
	}
}
