// File: internal/concurrency/executor.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Executor dispatches tasks across worker goroutines, using lock-free local
// queues and a global queue fallback. The engine runs session setup on a
// single-worker Executor so the accept loop never waits for it.

package concurrency

import (
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
)

// TaskFunc is a unit of work to execute.
type TaskFunc func()

// localQueueSize is the capacity of each worker's lock-free queue.
const localQueueSize = 1024

// Executor manages a fixed pool of worker goroutines.
type Executor struct {
	globalQueue chan TaskFunc              // fallback queue when a local queue is full
	localQueues []*lockFreeQueue[TaskFunc] // per-worker lock-free queues
	workers     []*worker                  // worker instances
	closeCh     chan struct{}              // signals executor shutdown
	closed      int32                      // atomic flag: 1 if closed
	numWorkers  int32
	logger      *slog.Logger
	wg          sync.WaitGroup

	mu   sync.Mutex // serializes producers so each local queue keeps one producer
	next int        // round-robin index, guarded by mu

	// statistics
	totalTasks     int64
	completedTasks int64
	panics         int64
}

// NewExecutor starts numWorkers goroutines. If numWorkers <= 0, defaults to
// runtime.NumCPU(). A non-negative firstCPU pins worker i to CPU firstCPU+i.
func NewExecutor(numWorkers, firstCPU int, logger *slog.Logger) *Executor {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	if logger == nil {
		logger = slog.Default()
	}
	e := &Executor{
		globalQueue: make(chan TaskFunc, numWorkers*4),
		closeCh:     make(chan struct{}),
		numWorkers:  int32(numWorkers),
		logger:      logger.With("component", "executor"),
	}
	e.localQueues = make([]*lockFreeQueue[TaskFunc], numWorkers)
	e.workers = make([]*worker, numWorkers)
	for i := 0; i < numWorkers; i++ {
		e.localQueues[i] = NewLockFreeQueue[TaskFunc](localQueueSize)
		e.workers[i] = &worker{
			id:         i,
			executor:   e,
			localQueue: e.localQueues[i],
			wake:       make(chan struct{}, 1),
		}
	}
	e.wg.Add(numWorkers)
	for i, w := range e.workers {
		cpu := -1
		if firstCPU >= 0 {
			cpu = firstCPU + i
		}
		go w.run(cpu)
	}
	return e
}

// Submit enqueues a task, returning ErrExecutorClosed if the executor is
// closed. When the chosen local queue is full Submit blocks on the global
// queue rather than dropping the task.
func (e *Executor) Submit(task TaskFunc) error {
	if task == nil {
		return nil
	}
	e.mu.Lock()
	if atomic.LoadInt32(&e.closed) == 1 {
		e.mu.Unlock()
		return ErrExecutorClosed
	}
	atomic.AddInt64(&e.totalTasks, 1)
	w := e.workers[e.next]
	e.next = (e.next + 1) % len(e.workers)
	if w.localQueue.Enqueue(task) {
		e.mu.Unlock()
		w.signal()
		return nil
	}
	e.mu.Unlock()

	select {
	case e.globalQueue <- task:
		return nil
	case <-e.closeCh:
		atomic.AddInt64(&e.totalTasks, -1)
		return ErrExecutorClosed
	}
}

// NumWorkers returns the number of workers.
func (e *Executor) NumWorkers() int {
	return int(atomic.LoadInt32(&e.numWorkers))
}

// Close stops accepting tasks, lets the workers drain what is already
// queued and waits for them to exit.
func (e *Executor) Close() {
	e.mu.Lock()
	if atomic.LoadInt32(&e.closed) == 1 {
		e.mu.Unlock()
		return
	}
	atomic.StoreInt32(&e.closed, 1)
	close(e.closeCh)
	e.mu.Unlock()

	e.wg.Wait()
	// tasks that raced into the global queue after the workers drained it
	for {
		select {
		case task := <-e.globalQueue:
			e.execute(task)
		default:
			return
		}
	}
}

// Stats returns basic executor metrics.
func (e *Executor) Stats() map[string]int64 {
	total := atomic.LoadInt64(&e.totalTasks)
	done := atomic.LoadInt64(&e.completedTasks)
	return map[string]int64{
		"total_tasks":     total,
		"completed_tasks": done,
		"pending_tasks":   total - done,
		"panics":          atomic.LoadInt64(&e.panics),
		"num_workers":     int64(e.NumWorkers()),
	}
}

// execute runs the task and updates statistics, recovering from panics.
func (e *Executor) execute(task TaskFunc) {
	defer func() {
		if r := recover(); r != nil {
			atomic.AddInt64(&e.panics, 1)
			e.logger.Error("task panicked", "panic", r)
		}
		atomic.AddInt64(&e.completedTasks, 1)
	}()
	task()
}

// worker represents a single executor goroutine.
type worker struct {
	id         int
	executor   *Executor
	localQueue *lockFreeQueue[TaskFunc]
	wake       chan struct{}
}

func (w *worker) signal() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// run is the main loop for a worker, optionally pinned to cpu.
func (w *worker) run(cpu int) {
	e := w.executor
	defer e.wg.Done()
	if cpu >= 0 {
		if err := PinCurrentThread(cpu); err != nil {
			e.logger.Warn("pin failed", "worker", w.id, "cpu", cpu, "error", err)
		}
		defer UnpinCurrentThread()
	}
	for {
		if task, ok := w.localQueue.Dequeue(); ok {
			e.execute(task)
			continue
		}
		select {
		case task := <-e.globalQueue:
			e.execute(task)
		case <-w.wake:
		case <-e.closeCh:
			w.drain()
			return
		}
	}
}

// drain runs everything still queued for this worker at shutdown.
func (w *worker) drain() {
	e := w.executor
	for {
		if task, ok := w.localQueue.Dequeue(); ok {
			e.execute(task)
			continue
		}
		select {
		case task := <-e.globalQueue:
			e.execute(task)
		default:
			return
		}
	}
}
