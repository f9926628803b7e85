package task

import (
	"container/heap"
	"sync"
)

// TimerRegistry schedules callbacks in tick time. Tick advances the clock
// by exactly one and fires whatever came due on the calling goroutine; the
// wall clock is never consulted, so timers stall when ticking stalls and
// coalesced ticks replay them one step at a time.
type TimerRegistry struct {
	mu    sync.Mutex
	now   uint64
	queue deadlineHeap
}

func newTimerRegistry() *TimerRegistry { return &TimerRegistry{} }

// Now returns the number of ticks advanced since start.
func (r *TimerRegistry) Now() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.now
}

// Tick advances the clock by one and runs the callbacks of every timer
// whose deadline was reached. Callbacks run outside the registry lock and
// may re-arm their timer.
func (r *TimerRegistry) Tick() {
	r.mu.Lock()
	r.now++
	var due []func()
	for len(r.queue) > 0 && r.queue[0].at <= r.now {
		e := heap.Pop(&r.queue).(deadlineEntry)
		if e.t.gen != e.gen || !e.t.running {
			continue
		}
		e.t.running = false
		e.t.expired = true
		if e.t.fn != nil {
			due = append(due, e.t.fn)
		}
	}
	r.mu.Unlock()
	for _, fn := range due {
		fn()
	}
}

// NewTimer returns an unarmed timer bound to the registry.
func (r *TimerRegistry) NewTimer() *Timer { return &Timer{reg: r} }

// Timer is a one-shot tick timer. Set configures it, Run arms it, and Run
// after expiry re-arms it for another full duration. Stale heap entries are
// invalidated by generation, not removed.
type Timer struct {
	reg      *TimerRegistry
	duration uint32
	deadline uint64
	gen      uint64
	running  bool
	expired  bool
	fn       func()
}

// Set configures the duration in ticks and the expiry callback, disarming
// any pending run.
func (t *Timer) Set(durationTicks uint32, fn func()) {
	t.reg.mu.Lock()
	defer t.reg.mu.Unlock()
	t.gen++
	t.running = false
	t.expired = false
	t.duration = durationTicks
	t.fn = fn
}

// Run arms the timer: it expires after the configured duration counted from
// the current tick. Running it again restarts the countdown.
func (t *Timer) Run() {
	t.reg.mu.Lock()
	defer t.reg.mu.Unlock()
	t.gen++
	t.running = true
	t.expired = false
	t.deadline = t.reg.now + uint64(t.duration)
	heap.Push(&t.reg.queue, deadlineEntry{at: t.deadline, gen: t.gen, t: t})
}

// Stop disarms the timer without firing it.
func (t *Timer) Stop() {
	t.reg.mu.Lock()
	defer t.reg.mu.Unlock()
	t.gen++
	t.running = false
	t.expired = false
}

// IsRunning reports whether the timer is armed and not yet expired.
func (t *Timer) IsRunning() bool {
	t.reg.mu.Lock()
	defer t.reg.mu.Unlock()
	return t.running
}

// IsExpired reports whether the timer ran to expiry since it was last
// armed, stopped, or reconfigured.
func (t *Timer) IsExpired() bool {
	t.reg.mu.Lock()
	defer t.reg.mu.Unlock()
	return t.expired
}

// TimeLeft returns the ticks remaining until expiry, zero when not running.
func (t *Timer) TimeLeft() uint32 {
	t.reg.mu.Lock()
	defer t.reg.mu.Unlock()
	if !t.running || t.deadline <= t.reg.now {
		return 0
	}
	return uint32(t.deadline - t.reg.now)
}

type deadlineEntry struct {
	at  uint64
	gen uint64
	t   *Timer
}

type deadlineHeap []deadlineEntry

func (h deadlineHeap) Len() int           { return len(h) }

func (h deadlineHeap) Less(i, j int) bool { return h[i].at < h[j].at }

func (h deadlineHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *deadlineHeap) Push(x any)        { *h = append(*h, x.(deadlineEntry)) }

func (h *deadlineHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}
