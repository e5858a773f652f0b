package uthread_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirkhaki/uthreads/pkg/uthread"
)

func TestBlockSelfAndResume(t *testing.T) {
	var log []string
	var blocked uthread.ThreadInfo
	var readyWhileBlocked []int
	var statErr error
	run(t, uthread.Config{}, func(h *harness) {
		id, _ := h.r.Spawn(func() {
			log = append(log, "before")
			assert.NoError(t, h.r.Block(h.r.GetTid()))
			log = append(log, "after")
		})
		h.expire()
		blocked, _ = h.r.Stat(id)
		readyWhileBlocked = h.r.ReadyQueue()

		// Nobody else is ready; main runs on.
		h.expire()
		assert.Equal(t, []string{"before"}, log)

		assert.NoError(t, h.r.Resume(id))
		h.expire()
		_, statErr = h.r.Stat(id)
	})

	assert.Equal(t, uthread.Blocked, blocked.State)
	assert.Empty(t, readyWhileBlocked)
	assert.Equal(t, []string{"before", "after"}, log)
	assert.ErrorIs(t, statErr, uthread.ErrInvalidID, "returning from entry terminates the thread")
}

func TestBlockAndResumeAreIdempotent(t *testing.T) {
	var errs []error
	var afterBlock, afterResume []int
	run(t, uthread.Config{}, func(h *harness) {
		a, _ := h.r.Spawn(h.spin)
		b, _ := h.r.Spawn(h.spin)

		errs = append(errs, h.r.Block(a), h.r.Block(a))
		afterBlock = h.r.ReadyQueue()
		errs = append(errs, h.r.Resume(a), h.r.Resume(a), h.r.Resume(b))
		afterResume = h.r.ReadyQueue()
	})

	for i, err := range errs {
		assert.NoError(t, err, "call %d", i)
	}
	assert.Equal(t, []int{2}, afterBlock)
	assert.Equal(t, []int{2, 1}, afterResume)
}

func TestBlockedThreadIsSkipped(t *testing.T) {
	h, _ := run(t, uthread.Config{}, func(h *harness) {
		a, _ := h.r.Spawn(h.spin)
		_, _ = h.r.Spawn(h.spin)
		assert.NoError(t, h.r.Block(a))
		h.expire()
		h.expire()
	})

	assert.Equal(t, []int{0, 2, 0, 2, 0}, uthread.DispatchOrder(h.rec.Events()))
}

func TestInvalidIDs(t *testing.T) {
	var blockMain, blockUnknown, resumeUnknown, resumeMain, terminateUnknown, quantaUnknown error
	h, _ := run(t, uthread.Config{}, func(h *harness) {
		blockMain = h.r.Block(uthread.MainID)
		blockUnknown = h.r.Block(42)
		resumeUnknown = h.r.Resume(42)
		resumeMain = h.r.Resume(uthread.MainID)
		terminateUnknown = h.r.Terminate(-1)
		_, quantaUnknown = h.r.GetQuantums(7)
	})

	assert.ErrorIs(t, blockMain, uthread.ErrInvalidID)
	assert.ErrorIs(t, blockUnknown, uthread.ErrInvalidID)
	assert.ErrorIs(t, resumeUnknown, uthread.ErrInvalidID)
	assert.NoError(t, resumeMain)
	assert.ErrorIs(t, terminateUnknown, uthread.ErrInvalidID)
	assert.ErrorIs(t, quantaUnknown, uthread.ErrInvalidID)
	assert.Contains(t, h.errs.String(), "thread library error: illegal thread id: 42\n")
}

func TestTerminateSelfNeverReturns(t *testing.T) {
	returned := false
	var tidAfter int
	var statErr error
	run(t, uthread.Config{}, func(h *harness) {
		id, _ := h.r.Spawn(func() {
			_ = h.r.Terminate(h.r.GetTid())
			returned = true
		})
		h.expire()
		tidAfter = h.r.GetTid()
		_, statErr = h.r.Stat(id)
	})

	assert.False(t, returned)
	assert.Equal(t, uthread.MainID, tidAfter)
	assert.ErrorIs(t, statErr, uthread.ErrInvalidID)
}

func TestTerminateOtherKeepsRunning(t *testing.T) {
	var tid int
	var ready []int
	run(t, uthread.Config{}, func(h *harness) {
		a, _ := h.r.Spawn(h.spin)
		_, _ = h.r.Spawn(h.spin)
		assert.NoError(t, h.r.Terminate(a))
		tid = h.r.GetTid()
		ready = h.r.ReadyQueue()
	})

	assert.Equal(t, uthread.MainID, tid)
	assert.Equal(t, []int{2}, ready)
}

func TestTerminateBlockedThread(t *testing.T) {
	var ready []int
	run(t, uthread.Config{}, func(h *harness) {
		a, _ := h.r.Spawn(h.spin)
		_, _ = h.r.Spawn(h.spin)
		assert.NoError(t, h.r.Block(a))
		assert.NoError(t, h.r.Terminate(a))
		ready = h.r.ReadyQueue()
	})
	assert.Equal(t, []int{2}, ready)
}

func TestTerminateMainFromOtherThread(t *testing.T) {
	mainResumed := false
	h, code := run(t, uthread.Config{}, func(h *harness) {
		_, _ = h.r.Spawn(func() {
			_ = h.r.Terminate(uthread.MainID)
		})
		_, _ = h.r.Spawn(h.spin)
		_, _ = h.r.Spawn(h.spin)
		h.expire()
		mainResumed = true
	})

	assert.Equal(t, 0, code)
	assert.False(t, mainResumed)
	events := h.rec.Events()
	require.NotEmpty(t, events)
	assert.Equal(t, uthread.Event{Quantum: 2, Tid: 0, Kind: uthread.KindTerminate}, events[len(events)-1])
}

func TestTerminateMainWithManyThreads(t *testing.T) {
	_, code := run(t, uthread.Config{}, func(h *harness) {
		for i := 0; i < 10; i++ {
			_, err := h.r.Spawn(h.spin)
			assert.NoError(t, err)
		}
		assert.NoError(t, h.r.Block(3))
		h.expire()
	})
	assert.Equal(t, 0, code)
}

func TestSelfTerminateRunsDeferredCallsFirst(t *testing.T) {
	var order []string
	var deferTid, spawnID, reused int
	var spawnErr, sleepErr, terminateErr error
	h, code := run(t, uthread.Config{}, func(h *harness) {
		_, _ = h.r.Spawn(func() {
			defer func() {
				order = append(order, "deferred")
				deferTid = h.r.GetTid()
				spawnID, spawnErr = h.r.Spawn(func() {})
				sleepErr = h.r.Sleep(10)
				terminateErr = h.r.Terminate(uthread.MainID)
			}()
			h.r.Terminate(h.r.GetTid())
		})
		h.expire()
		order = append(order, "main")
		reused, _ = h.r.Spawn(h.spin)
	})

	assert.Equal(t, 0, code)
	assert.Equal(t, []string{"deferred", "main"}, order)
	assert.Equal(t, 1, deferTid)
	assert.Equal(t, -1, spawnID)
	assert.ErrorIs(t, spawnErr, uthread.ErrThreadExiting)
	assert.ErrorIs(t, sleepErr, uthread.ErrThreadExiting)
	assert.ErrorIs(t, terminateErr, uthread.ErrThreadExiting)
	assert.Equal(t, 1, reused)
	assert.Contains(t, h.errs.String(), "calling thread is terminating")

	var spawns []uthread.Event
	for _, e := range h.rec.Events() {
		if e.Kind == uthread.KindSpawn {
			spawns = append(spawns, e)
		}
	}
	assert.Equal(t, []uthread.Event{
		{Quantum: 1, Tid: 1, Kind: uthread.KindSpawn},
		{Quantum: 3, Tid: 1, Kind: uthread.KindSpawn},
	}, spawns)
	assert.Equal(t, []int{0, 1, 0}, uthread.DispatchOrder(h.rec.Events()))
}

func TestTerminateWaitsForDeferredCallsOfParkedThread(t *testing.T) {
	var order []string
	var deferTid int
	var resumeErr, blockErr error
	run(t, uthread.Config{}, func(h *harness) {
		id, _ := h.r.Spawn(func() {
			defer func() {
				order = append(order, "deferred")
				deferTid = h.r.GetTid()
				resumeErr = h.r.Resume(uthread.MainID)
				blockErr = h.r.Block(uthread.MainID)
			}()
			h.spin()
		})
		h.expire()
		assert.NoError(t, h.r.Terminate(id))
		order = append(order, "main")
		assert.Equal(t, uthread.MainID, h.r.GetTid())
	})

	assert.Equal(t, []string{"deferred", "main"}, order)
	assert.Equal(t, 1, deferTid)
	assert.ErrorIs(t, resumeErr, uthread.ErrThreadExiting)
	assert.ErrorIs(t, blockErr, uthread.ErrThreadExiting)
}
