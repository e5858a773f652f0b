package uthread_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirkhaki/uthreads/pkg/uthread"
)

const tick = 10 * time.Millisecond

func TestSleepMainThread(t *testing.T) {
	var err error
	run(t, uthread.Config{}, func(h *harness) {
		err = h.r.Sleep(1000)
	})
	assert.ErrorIs(t, err, uthread.ErrMainThread)
}

func TestSleepNegativeDuration(t *testing.T) {
	var err error
	var state uthread.ThreadInfo
	run(t, uthread.Config{}, func(h *harness) {
		id, _ := h.r.Spawn(func() {
			err = h.r.Sleep(-1)
			h.spin()
		})
		h.expire()
		state, _ = h.r.Stat(id)
	})
	assert.ErrorIs(t, err, uthread.ErrInvalidDuration)
	assert.False(t, state.Asleep)
}

func TestSleepWakesAfterDuration(t *testing.T) {
	var slept, woke time.Time
	var during, atWake uthread.ThreadInfo
	var readyAtWake []int
	h, _ := run(t, uthread.Config{}, func(h *harness) {
		id, _ := h.r.Spawn(func() {
			slept = h.clk.Now()
			assert.NoError(t, h.r.Sleep(50000))
			woke = h.clk.Now()
			h.spin()
		})
		h.expire()

		for i := 0; i < 4; i++ {
			h.step(tick)
		}
		during, _ = h.r.Stat(id)

		h.step(tick)
		atWake, _ = h.r.Stat(id)
		readyAtWake = h.r.ReadyQueue()

		// Ready, but main keeps the rest of its quantum.
		for woke.IsZero() {
			h.step(tick)
		}
	})

	assert.True(t, during.Asleep)
	assert.Equal(t, uthread.Ready, during.State)
	assert.False(t, atWake.Asleep)
	assert.Equal(t, []int{1}, readyAtWake)
	assert.GreaterOrEqual(t, woke.Sub(slept), 50*time.Millisecond)
	assert.Equal(t, slept.Add(q), woke, "re-dispatched at the first quantum boundary after waking")

	var kinds []uthread.Kind
	for _, e := range h.rec.Events() {
		if e.Tid == 1 && (e.Kind == uthread.KindSleep || e.Kind == uthread.KindWake) {
			kinds = append(kinds, e.Kind)
		}
	}
	assert.Equal(t, []uthread.Kind{uthread.KindSleep, uthread.KindWake}, kinds)
}

func TestSleepingThreadIsNotDispatched(t *testing.T) {
	h, _ := run(t, uthread.Config{}, func(h *harness) {
		_, _ = h.r.Spawn(func() {
			_ = h.r.Sleep(10 * quantum)
			h.spin()
		})
		_, _ = h.r.Spawn(h.spin)
		for i := 0; i < 3; i++ {
			h.expire()
		}
	})

	// 1 runs once, then only 2 and main alternate while 1 sleeps.
	assert.Equal(t, []int{0, 1, 2, 0, 2, 0, 2, 0}, uthread.DispatchOrder(h.rec.Events()))
}

func TestSleepThenBlockNeedsResume(t *testing.T) {
	var afterWake, afterResume uthread.ThreadInfo
	var readyAfterWake, readyAfterResume []int
	run(t, uthread.Config{}, func(h *harness) {
		id, _ := h.r.Spawn(func() {
			_ = h.r.Sleep(50000)
			h.spin()
		})
		h.expire()
		require.NoError(t, h.r.Block(id))

		h.step(60 * time.Millisecond)
		afterWake, _ = h.r.Stat(id)
		readyAfterWake = h.r.ReadyQueue()

		require.NoError(t, h.r.Resume(id))
		afterResume, _ = h.r.Stat(id)
		readyAfterResume = h.r.ReadyQueue()
	})

	assert.Equal(t, uthread.Blocked, afterWake.State)
	assert.False(t, afterWake.Asleep)
	assert.Empty(t, readyAfterWake)
	assert.Equal(t, uthread.Ready, afterResume.State)
	assert.Equal(t, []int{1}, readyAfterResume)
}

func TestResumeWhileAsleepWaitsForTimer(t *testing.T) {
	var beforeWake, afterWake []int
	var resumed uthread.ThreadInfo
	run(t, uthread.Config{}, func(h *harness) {
		id, _ := h.r.Spawn(func() {
			_ = h.r.Sleep(50000)
			h.spin()
		})
		h.expire()
		require.NoError(t, h.r.Block(id))
		require.NoError(t, h.r.Resume(id))
		resumed, _ = h.r.Stat(id)
		beforeWake = h.r.ReadyQueue()

		h.step(50 * time.Millisecond)
		afterWake = h.r.ReadyQueue()
	})

	assert.Equal(t, uthread.Ready, resumed.State)
	assert.True(t, resumed.Asleep)
	assert.Empty(t, beforeWake)
	assert.Equal(t, []int{1}, afterWake)
}

func TestTerminateSleepingThread(t *testing.T) {
	var second uthread.ThreadInfo
	var ready []int
	run(t, uthread.Config{}, func(h *harness) {
		a, _ := h.r.Spawn(func() {
			_ = h.r.Sleep(10000)
			h.spin()
		})
		_, _ = h.r.Spawn(func() {
			_ = h.r.Sleep(100000)
			h.spin()
		})
		h.expire()
		require.NoError(t, h.r.Terminate(a))

		// The sleep timer still fires for the tombstoned entry; the other
		// sleeper must not be woken early.
		h.step(20 * time.Millisecond)
		second, _ = h.r.Stat(2)
		ready = h.r.ReadyQueue()
	})

	assert.True(t, second.Asleep)
	assert.Empty(t, ready)
}

func TestReusedIDSleepsIndependently(t *testing.T) {
	var woke []int
	run(t, uthread.Config{}, func(h *harness) {
		a, _ := h.r.Spawn(func() {
			_ = h.r.Sleep(10000)
			h.spin()
		})
		h.expire()
		require.NoError(t, h.r.Terminate(a))

		b, _ := h.r.Spawn(func() {
			_ = h.r.Sleep(30000)
			woke = append(woke, h.r.GetTid())
			h.spin()
		})
		require.Equal(t, a, b)
		h.expire()

		for i := 0; i < 20 && len(woke) == 0; i++ {
			h.step(tick)
		}
	})

	assert.Equal(t, []int{1}, woke)
}
