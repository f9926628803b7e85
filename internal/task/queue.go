package task

import (
	"sync"
	"sync/atomic"

	"code.hybscloud.com/lfq"
)

// Task is one unit of deferred work. A task closure takes ownership of any
// payload it captures at push time; after a successful push only the
// goroutine that eventually runs the task may touch that payload.
type Task func()

// Mode selects what producers do when a queue is full.
type Mode uint8

const (
	// BestEffort queues shed load: TryPush and Push both fail fast when
	// the queue is full. Used for the data path, where drops are counted
	// rather than waited out.
	BestEffort Mode = iota
	// Waiting queues let Push block until space frees up or the queue
	// closes. Used for control events that must not be lost.
	Waiting
)

// Queue is a bounded multi-producer/single-consumer FIFO of tasks. Any
// goroutine may push; only the scheduler's consumer pops.
//
// The lock-free ring underneath rounds its size up to a power of two, so
// admission goes through a separate depth gate to keep the configured
// capacity exact: a queue built with capacity 100 rejects the 101st push.
type Queue struct {
	name string
	mode Mode
	cap  int32

	ring   *lfq.MPSC[Task]
	depth  atomic.Int32
	closed atomic.Bool

	mu      sync.Mutex
	space   *sync.Cond
	waiters atomic.Int32

	sched *Scheduler
}

func newQueue(sched *Scheduler, name string, capacity int, mode Mode) *Queue {
	if capacity < 2 {
		capacity = 2
	}
	q := &Queue{
		name:  name,
		mode:  mode,
		cap:   int32(capacity),
		ring:  lfq.NewMPSC[Task](capacity),
		sched: sched,
	}
	q.space = sync.NewCond(&q.mu)
	return q
}

// Name returns the queue's registration name.
func (q *Queue) Name() string { return q.name }

// Cap returns the configured capacity.
func (q *Queue) Cap() int { return int(q.cap) }

// Len returns the current depth, counting pushes that have been admitted
// but not yet consumed.
func (q *Queue) Len() int { return int(q.depth.Load()) }

// reserve claims one slot against the configured capacity.
func (q *Queue) reserve() bool {
	for {
		d := q.depth.Load()
		if d >= q.cap {
			return false
		}
		if q.depth.CompareAndSwap(d, d+1) {
			return true
		}
	}
}

// release returns one slot. Called by the consumer after a pop, and by a
// producer whose ring insert was refused after the queue closed.
func (q *Queue) release() {
	q.depth.Add(-1)
	if q.waiters.Load() != 0 {
		q.mu.Lock()
		q.space.Broadcast()
		q.mu.Unlock()
	}
}

// TryPush enqueues t without blocking. It reports false when the queue is
// full or closed; in that case the caller keeps ownership of whatever t
// captures.
func (q *Queue) TryPush(t Task) bool {
	if q.closed.Load() || !q.reserve() {
		return false
	}
	if err := q.ring.Enqueue(&t); err != nil {
		// The depth gate keeps the ring under its physical capacity, so
		// this only happens when a close raced in.
		q.release()
		return false
	}
	q.sched.wake()
	return true
}

// Push enqueues t, blocking for space on Waiting queues. On BestEffort
// queues it is identical to TryPush. It reports false once the queue has
// closed.
func (q *Queue) Push(t Task) bool {
	if q.mode != Waiting {
		return q.TryPush(t)
	}
	for {
		if q.TryPush(t) {
			return true
		}
		if q.closed.Load() {
			return false
		}
		q.mu.Lock()
		q.waiters.Add(1)
		for q.depth.Load() >= q.cap && !q.closed.Load() {
			q.space.Wait()
		}
		q.waiters.Add(-1)
		q.mu.Unlock()
	}
}

// close rejects all further pushes and releases blocked producers. Tasks
// already queued are abandoned; the scheduler stops serving them.
func (q *Queue) close() {
	if q.closed.Swap(true) {
		return
	}
	q.ring.Drain()
	q.mu.Lock()
	q.space.Broadcast()
	q.mu.Unlock()
}
