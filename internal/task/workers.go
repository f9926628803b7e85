package task

import "sync"

const workerBacklog = 128

// WorkerPool runs offloaded chores (trace file writes, similar I/O) on a
// small fixed set of goroutines so the consumer loop never blocks on disk.
// Submission is best-effort; callers decide what a refused chore means.
type WorkerPool struct {
	mu      sync.RWMutex
	jobs    chan func()
	stopped bool
	wg      sync.WaitGroup
}

// NewWorkerPool starts n workers, at least one.
func NewWorkerPool(n int) *WorkerPool {
	if n < 1 {
		n = 1
	}
	p := &WorkerPool{jobs: make(chan func(), workerBacklog)}
	p.wg.Add(n)
	for range n {
		go func() {
			defer p.wg.Done()
			for fn := range p.jobs {
				fn()
			}
		}()
	}
	return p
}

// Go submits fn for background execution. It reports false when the pool
// has stopped or the backlog is full.
func (p *WorkerPool) Go(fn func()) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return false
	}
	select {
	case p.jobs <- fn:
		return true
	default:
		return false
	}
}

// Stop refuses further submissions and waits for queued and in-flight
// chores to finish. Idempotent.
func (p *WorkerPool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.jobs)
	p.mu.Unlock()
	p.wg.Wait()
}
