package uthread

import (
	"fmt"
	"time"
)

// minSleepDelay is used to rearm the sleep timer for a wake time that has
// already passed. A zero delay would leave the timer disarmed.
const minSleepDelay = 2 * time.Microsecond

// Sleep suspends the running thread for at least usecs microseconds. The
// main thread cannot sleep. The thread is not made ready again until the
// sleep timer fires for it; if it is blocked in the meantime it stays
// blocked until resumed.
func (r *Runtime) Sleep(usecs int) error {
	if err := r.checkExiting(); err != nil {
		return err
	}
	r.block()
	cur := r.running
	if cur.id == MainID {
		r.unblock()
		return r.fail(fmt.Errorf("%w: sleep", ErrMainThread))
	}
	if usecs < 0 {
		r.unblock()
		return r.fail(fmt.Errorf("%w: %d", ErrInvalidDuration, usecs))
	}

	r.sleeping.Add(cur.id, r.clock.Now().Add(time.Duration(usecs)*time.Microsecond))
	r.resetSleepTimer()
	cur.asleep = true
	cur.state = Ready
	r.emit(Event{Quantum: r.quantums, Tid: cur.id, Kind: KindSleep})
	r.yield(cur)
	r.unblock()
	return nil
}

// onSleepTimer wakes the earliest sleeper whose time has come.
func (r *Runtime) onSleepTimer() {
	e := r.sleeping.PeekLive()
	if e == nil {
		return
	}
	if e.Wake.After(r.clock.Now()) {
		// The timer was armed for an entry that has since been
		// tombstoned.
		r.resetSleepTimer()
		return
	}

	t := r.threads[e.ID]
	if t.state != Blocked {
		t.state = Ready
		r.ready.push(t)
	}
	t.asleep = false
	r.sleeping.Pop()
	r.emit(Event{Quantum: r.quantums, Tid: t.id, Kind: KindWake})
	r.resetSleepTimer()
}

// resetSleepTimer arms the sleep timer for the earliest live entry.
func (r *Runtime) resetSleepTimer() {
	e := r.sleeping.PeekLive()
	if e == nil {
		return
	}
	d := e.Wake.Sub(r.clock.Now())
	if d <= 0 {
		d = minSleepDelay
	}
	if !r.sleepTimer.Stop() {
		select {
		case <-r.sleepTimer.Chan():
		default:
		}
	}
	r.sleepTimer.Reset(d)
}
