// Package sleepq orders sleeping threads by wake time.
//
// Removal is lazy: Remove marks the thread's pending entry dead and leaves
// it in place. Dead entries are still returned by Peek and must be
// discarded by the caller with Pop.
package sleepq

import (
	"container/heap"
	"time"
)

// Entry is a single wake request.
type Entry struct {
	ID   int
	Wake time.Time
	Dead bool

	seq uint64
}

// Queue is a min-ordered collection of wake entries. The zero value is not
// usable; call New.
type Queue struct {
	h    entryHeap
	live map[int]*Entry
	seq  uint64
}

// New returns an empty queue.
func New() *Queue {
	return &Queue{live: make(map[int]*Entry)}
}

// Add registers a wake request for id. A previous live entry for the same
// id is tombstoned first.
func (q *Queue) Add(id int, wake time.Time) {
	q.Remove(id)
	q.seq++
	e := &Entry{ID: id, Wake: wake, seq: q.seq}
	heap.Push(&q.h, e)
	q.live[id] = e
}

// Peek returns the earliest entry, dead or alive, or nil if the queue is
// empty.
func (q *Queue) Peek() *Entry {
	if len(q.h) == 0 {
		return nil
	}
	return q.h[0]
}

// Pop discards the earliest entry.
func (q *Queue) Pop() {
	if len(q.h) == 0 {
		return
	}
	e := heap.Pop(&q.h).(*Entry)
	if q.live[e.ID] == e {
		delete(q.live, e.ID)
	}
}

// Remove tombstones the live entry of id, if any.
func (q *Queue) Remove(id int) {
	e, ok := q.live[id]
	if !ok {
		return
	}
	e.Dead = true
	delete(q.live, id)
}

// PeekLive drops dead entries from the front and returns the earliest live
// entry, or nil.
func (q *Queue) PeekLive() *Entry {
	for e := q.Peek(); e != nil; e = q.Peek() {
		if !e.Dead {
			return e
		}
		q.Pop()
	}
	return nil
}

// Len reports the number of live entries.
func (q *Queue) Len() int {
	return len(q.live)
}

type entryHeap []*Entry

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	if h[i].Wake.Equal(h[j].Wake) {
		return h[i].seq < h[j].seq
	}
	return h[i].Wake.Before(h[j].Wake)
}

func (h entryHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *entryHeap) Push(x any) { *h = append(*h, x.(*Entry)) }

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}
