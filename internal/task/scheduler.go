// Package task provides the execution backbone of the stack: bounded
// multi-producer/single-consumer task queues drained by one goroutine, a
// tick-driven timer registry, and a small worker pool for offloaded chores.
//
// The ownership rule is strict. Producers only push; every queued task, every
// timer callback, and all state those touch run on the single consumer
// goroutine. Anything shared beyond that is atomic.
package task

import (
	"sync"
	"sync/atomic"
)

// Scheduler owns a fixed set of task queues, the timer registry, and the
// worker pool. One goroutine calls RunNextTask in a loop; everything else
// pushes.
type Scheduler struct {
	mu     sync.Mutex
	queues []*Queue

	// cursor is the index of the queue served last. Consumer-only.
	cursor int

	// signal holds at most one token meaning "a push happened". Every
	// successful push deposits a token after its task became visible, so a
	// consumer that scans empty and then blocks here cannot miss work.
	signal chan struct{}

	stopped atomic.Bool

	timers  *TimerRegistry
	workers *WorkerPool
}

// NewScheduler builds a scheduler with nofWorkers background workers.
func NewScheduler(nofWorkers int) *Scheduler {
	return &Scheduler{
		cursor:  -1,
		signal:  make(chan struct{}, 1),
		timers:  newTimerRegistry(),
		workers: NewWorkerPool(nofWorkers),
	}
}

// NewQueue registers a queue. Registration order fixes the round-robin
// service order. All queues must be created before the consumer loop
// starts; the consumer reads the queue set unlocked.
func (s *Scheduler) NewQueue(name string, capacity int, mode Mode) *Queue {
	q := newQueue(s, name, capacity, mode)
	s.mu.Lock()
	s.queues = append(s.queues, q)
	s.mu.Unlock()
	return q
}

// Timers returns the tick-driven timer registry.
func (s *Scheduler) Timers() *TimerRegistry { return s.timers }

// Workers returns the background worker pool.
func (s *Scheduler) Workers() *WorkerPool { return s.workers }

func (s *Scheduler) wake() {
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

// RunNextTask executes exactly one task and reports true, blocking until a
// task is available. It reports false once the scheduler has stopped;
// tasks still queued at that point are abandoned.
//
// Queues are served strict round-robin: each scan starts at the queue after
// the one served last, so a saturated queue cannot starve the others.
// Consumer goroutine only.
func (s *Scheduler) RunNextTask() bool {
	for {
		if s.stopped.Load() {
			return false
		}
		if t, ok := s.pop(); ok {
			t()
			return true
		}
		<-s.signal
	}
}

func (s *Scheduler) pop() (Task, bool) {
	n := len(s.queues)
	for i := 1; i <= n; i++ {
		idx := (s.cursor + i) % n
		q := s.queues[idx]
		t, err := q.ring.Dequeue()
		if err != nil {
			continue
		}
		q.release()
		s.cursor = idx
		return t, true
	}
	return nil, false
}

// Stop closes every queue, releases blocked producers and the consumer, and
// waits for in-flight worker chores. Idempotent. Safe to call from a task
// running on the consumer itself: the consumer observes the stop on its
// next RunNextTask call.
func (s *Scheduler) Stop() {
	if s.stopped.Swap(true) {
		return
	}
	s.mu.Lock()
	queues := s.queues
	s.mu.Unlock()
	for _, q := range queues {
		q.close()
	}
	s.wake()
	s.workers.Stop()
}
