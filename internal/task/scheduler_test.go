package task

import (
	"testing"
	"time"
)

// TestScheduler_RoundRobinAcrossQueues verifies a saturated queue cannot
// starve the others: each scan starts after the queue served last.
func TestScheduler_RoundRobinAcrossQueues(t *testing.T) {
	s := NewScheduler(1)
	defer s.Stop()
	data := s.NewQueue("data", 64, BestEffort)
	main := s.NewQueue("main", 8, Waiting)
	cfg := s.NewQueue("cfg", 8, Waiting)

	for data.TryPush(noop) {
	}

	ranMain := false
	ranCfg := false
	main.TryPush(func() { ranMain = true })
	cfg.TryPush(func() { ranCfg = true })

	// Three queues: three drains must serve each queue once, whatever the
	// backlog on the first.
	for i := 0; i < 3; i++ {
		if !s.RunNextTask() {
			t.Fatalf("drain %d found no task", i)
		}
	}
	if !ranMain {
		t.Error("main queue task starved behind saturated data queue")
	}
	if !ranCfg {
		t.Error("cfg queue task starved behind saturated data queue")
	}
}

// TestScheduler_ServesAllQueuesUnderRefill keeps the data queue topped up
// between drains and checks the other queues still make progress.
func TestScheduler_ServesAllQueuesUnderRefill(t *testing.T) {
	s := NewScheduler(1)
	defer s.Stop()
	data := s.NewQueue("data", 4, BestEffort)
	main := s.NewQueue("main", 4, Waiting)
	syncq := s.NewQueue("sync", 4, Waiting)

	served := make(map[string]int)
	push := func(q *Queue, name string) {
		q.TryPush(func() { served[name]++ })
	}

	for i := 0; i < 30; i++ {
		for data.TryPush(func() { served["data"]++ }) {
		}
		push(main, "main")
		push(syncq, "sync")
		for j := 0; j < 3; j++ {
			if !s.RunNextTask() {
				t.Fatal("drain found no task")
			}
		}
	}

	if served["main"] == 0 || served["sync"] == 0 {
		t.Errorf("starved queues: served = %v", served)
	}
}

// TestScheduler_RunNextTaskBlocksUntilPush verifies the consumer parks when
// idle and a later push wakes it.
func TestScheduler_RunNextTaskBlocksUntilPush(t *testing.T) {
	s := NewScheduler(1)
	defer s.Stop()
	q := s.NewQueue("main", 8, Waiting)

	ran := make(chan struct{})
	go func() {
		s.RunNextTask()
		close(ran)
	}()

	select {
	case <-ran:
		t.Fatal("RunNextTask returned with nothing queued")
	case <-time.After(50 * time.Millisecond):
	}

	q.Push(noop)

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("push did not wake the consumer")
	}
}

// TestScheduler_StopReleasesConsumer verifies Stop wakes a parked consumer
// and RunNextTask reports no more work.
func TestScheduler_StopReleasesConsumer(t *testing.T) {
	s := NewScheduler(1)
	s.NewQueue("main", 8, Waiting)

	result := make(chan bool, 1)
	go func() {
		result <- s.RunNextTask()
	}()
	time.Sleep(20 * time.Millisecond)

	s.Stop()

	select {
	case got := <-result:
		if got {
			t.Error("RunNextTask reported work after Stop")
		}
	case <-time.After(time.Second):
		t.Fatal("consumer not released by Stop")
	}

	// Second Stop is a no-op.
	s.Stop()
}

// TestScheduler_AbandonsQueuedTasksOnStop verifies tasks still queued when
// the scheduler stops never execute.
func TestScheduler_AbandonsQueuedTasksOnStop(t *testing.T) {
	s := NewScheduler(1)
	q := s.NewQueue("main", 8, Waiting)

	ran := false
	q.Push(func() { ran = true })
	s.Stop()

	if s.RunNextTask() {
		t.Error("RunNextTask served a task after Stop")
	}
	if ran {
		t.Error("queued task executed after Stop")
	}
}
