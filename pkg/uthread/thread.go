package uthread

import "container/heap"

// MainID is the id of the thread that called Init.
const MainID = 0

// State is the scheduling state of a thread.
//
// A thread with an outstanding Sleep keeps its Ready or Blocked state and
// is additionally flagged asleep, which keeps it out of the ready queue.
type State uint8

const (
	// Ready means the thread may be dispatched. Unless it is asleep it
	// sits in the ready queue.
	Ready State = iota
	// Running means the thread holds the baton and executes user code.
	// Exactly one thread is Running outside of interrupt handlers.
	Running
	// Blocked means the thread waits for an explicit Resume.
	Blocked
)

func (s State) String() string {
	switch s {
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Blocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// thread is the control block of one user-level thread.
type thread struct {
	id     int
	state  State
	quanta int
	asleep bool
	ctx    *execContext

	// next links the thread into the ready queue.
	next *thread
}

// readyQueue is a FIFO of threads linked through thread.next.
type readyQueue struct {
	head, tail *thread
	n          int
}

func (q *readyQueue) push(t *thread) {
	t.next = nil
	if q.tail != nil {
		q.tail.next = t
	}
	q.tail = t
	if q.head == nil {
		q.head = t
	}
	q.n++
}

func (q *readyQueue) pop() *thread {
	t := q.head
	if t == nil {
		return nil
	}
	q.head = t.next
	if q.tail == t {
		q.tail = nil
	}
	t.next = nil
	q.n--
	return t
}

// remove unlinks t if it is queued and reports whether it was.
func (q *readyQueue) remove(t *thread) bool {
	var prev *thread
	for cur := q.head; cur != nil; prev, cur = cur, cur.next {
		if cur != t {
			continue
		}
		if prev == nil {
			q.head = cur.next
		} else {
			prev.next = cur.next
		}
		if q.tail == cur {
			q.tail = prev
		}
		cur.next = nil
		q.n--
		return true
	}
	return false
}

// ids returns the queued thread ids in dispatch order.
func (q *readyQueue) ids() []int {
	out := make([]int, 0, q.n)
	for cur := q.head; cur != nil; cur = cur.next {
		out = append(out, cur.id)
	}
	return out
}

// idPool hands out the smallest released id before minting a new one.
type idPool struct {
	free intHeap
	next int
}

func (p *idPool) get() int {
	if len(p.free) > 0 {
		return heap.Pop(&p.free).(int)
	}
	id := p.next
	p.next++
	return id
}

func (p *idPool) release(id int) {
	heap.Push(&p.free, id)
}

type intHeap []int

func (h intHeap) Len() int           { return len(h) }
func (h intHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h intHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *intHeap) Push(x any)        { *h = append(*h, x.(int)) }
func (h *intHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
