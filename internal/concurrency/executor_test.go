package concurrency

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLockFreeQueue_SPSC(t *testing.T) {
	q := NewLockFreeQueue[int](1000)
	if q.Cap() != 1024 {
		t.Fatalf("capacity = %d, want 1024", q.Cap())
	}
	const items = 100000

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= items; i++ {
			for !q.Enqueue(i) {
				time.Sleep(time.Microsecond)
			}
		}
	}()

	next := 1
	deadline := time.Now().Add(10 * time.Second)
	for next <= items && time.Now().Before(deadline) {
		v, ok := q.Dequeue()
		if !ok {
			continue
		}
		if v != next {
			t.Fatalf("out of order: got %d, want %d", v, next)
		}
		next++
	}
	wg.Wait()
	if next != items+1 {
		t.Fatalf("received %d items, want %d", next-1, items)
	}
	if q.Len() != 0 {
		t.Errorf("queue not empty: %d", q.Len())
	}
}

func TestLockFreeQueue_Full(t *testing.T) {
	q := NewLockFreeQueue[int](2)
	if !q.Enqueue(1) || !q.Enqueue(2) {
		t.Fatal("enqueue into empty queue failed")
	}
	if q.Enqueue(3) {
		t.Error("enqueue into full queue succeeded")
	}
	if v, _ := q.Dequeue(); v != 1 {
		t.Errorf("got %d, want 1", v)
	}
	if !q.Enqueue(3) {
		t.Error("enqueue after dequeue failed")
	}
}

func TestExecutorRunsEveryTask(t *testing.T) {
	e := NewExecutor(1, -1, nil)
	defer e.Close()

	var mu sync.Mutex
	var got []int
	done := make(chan struct{})
	const n = 5000 // exceeds the local queue, exercising the global fallback
	for i := 0; i < n; i++ {
		i := i
		if err := e.Submit(func() {
			mu.Lock()
			got = append(got, i)
			if len(got) == n {
				close(done)
			}
			mu.Unlock()
		}); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("tasks did not complete")
	}
	if len(got) != n {
		t.Fatalf("ran %d tasks, want %d", len(got), n)
	}
}

func TestExecutorRecoversPanics(t *testing.T) {
	e := NewExecutor(2, -1, nil)
	defer e.Close()

	var ran int32
	var wg sync.WaitGroup
	wg.Add(2)
	e.Submit(func() { defer wg.Done(); panic("boom") })
	e.Submit(func() { defer wg.Done(); atomic.StoreInt32(&ran, 1) })
	wg.Wait()

	if atomic.LoadInt32(&ran) != 1 {
		t.Error("task after panic did not run")
	}
	deadline := time.Now().Add(time.Second)
	for e.Stats()["panics"] != 1 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if got := e.Stats()["panics"]; got != 1 {
		t.Errorf("panics = %d, want 1", got)
	}
}

func TestExecutorCloseDrainsAndRejects(t *testing.T) {
	e := NewExecutor(1, -1, nil)
	var count int32
	block := make(chan struct{})
	e.Submit(func() { <-block })
	for i := 0; i < 10; i++ {
		e.Submit(func() { atomic.AddInt32(&count, 1) })
	}
	go func() {
		time.Sleep(10 * time.Millisecond)
		close(block)
	}()
	e.Close()

	if got := atomic.LoadInt32(&count); got != 10 {
		t.Errorf("drained %d tasks, want 10", got)
	}
	if err := e.Submit(func() {}); !errors.Is(err, ErrExecutorClosed) {
		t.Errorf("Submit after Close: %v", err)
	}
	e.Close()
	stats := e.Stats()
	if stats["pending_tasks"] != 0 {
		t.Errorf("pending = %d", stats["pending_tasks"])
	}
}

func TestPinCurrentThread(t *testing.T) {
	done := make(chan error, 1)
	go func() {
		defer UnpinCurrentThread()
		done <- PinCurrentThread(0)
	}()
	if err := <-done; err != nil {
		t.Logf("affinity not permitted here: %v", err)
	}
}
