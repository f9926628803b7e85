package task

import (
	"sync/atomic"
	"testing"
	"time"
)

// TestWorkerPool_RunsChores verifies submitted chores execute.
func TestWorkerPool_RunsChores(t *testing.T) {
	p := NewWorkerPool(2)

	var ran atomic.Int32
	for i := 0; i < 10; i++ {
		if !p.Go(func() { ran.Add(1) }) {
			t.Fatalf("submission %d refused", i)
		}
	}

	deadline := time.After(time.Second)
	for ran.Load() != 10 {
		select {
		case <-deadline:
			t.Fatalf("ran %d of 10 chores", ran.Load())
		default:
			time.Sleep(time.Millisecond)
		}
	}
	p.Stop()
}

// TestWorkerPool_StopWaitsForInflight verifies Stop returns only after
// queued chores finish.
func TestWorkerPool_StopWaitsForInflight(t *testing.T) {
	p := NewWorkerPool(1)

	var done atomic.Bool
	if !p.Go(func() {
		time.Sleep(50 * time.Millisecond)
		done.Store(true)
	}) {
		t.Fatal("submission refused")
	}

	p.Stop()
	if !done.Load() {
		t.Error("Stop returned before the in-flight chore finished")
	}
}

// TestWorkerPool_RefusesAfterStop verifies submissions fail once stopped.
func TestWorkerPool_RefusesAfterStop(t *testing.T) {
	p := NewWorkerPool(1)
	p.Stop()
	if p.Go(noop) {
		t.Error("Go accepted a chore after Stop")
	}
	p.Stop() // idempotent
}
