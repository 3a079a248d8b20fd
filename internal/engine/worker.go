// File: internal/engine/worker.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// A Worker is one goroutine locked to an OS thread, owning one selector.

package engine

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/momentics/hioload-nio/internal/concurrency"
	"github.com/momentics/hioload-nio/internal/session"
	"github.com/momentics/hioload-nio/reactor"
)

// ReadBufferSize is the per-worker scratch used for each socket read.
const ReadBufferSize = 64 * 1024

// Role tells a worker which readiness it serves.
type Role uint8

const (
	RoleRead Role = iota
	RoleWrite
)

func (r Role) String() string {
	if r == RoleRead {
		return "read"
	}
	return "write"
}

// Worker runs a readiness loop for the sessions assigned to it.
type Worker[T any] struct {
	id      int
	role    Role
	cpu     int // -1 leaves the thread unpinned
	sel     *reactor.Selector[*session.Session[T]]
	eng     *Engine[T]
	timeout time.Duration
	scratch []byte
	logger  *slog.Logger

	stopping int32
	started  int32
	done     chan struct{}
}

func newWorker[T any](eng *Engine[T], id int, role Role, cpu int) (*Worker[T], error) {
	sel, err := reactor.NewSelector[*session.Session[T]](reactor.DefaultMaxEvents)
	if err != nil {
		return nil, err
	}
	w := &Worker[T]{
		id:      id,
		role:    role,
		cpu:     cpu,
		sel:     sel,
		eng:     eng,
		timeout: eng.cfg.SelectTimeout,
		logger:  eng.logger.With("component", "worker", "role", role.String(), "worker", id),
		done:    make(chan struct{}),
	}
	if role == RoleRead {
		w.scratch = make([]byte, ReadBufferSize)
	}
	sel.OnPanic = func(v any) {
		w.logger.Error("selector task panicked", "panic", v)
	}
	return w, nil
}

// Selector returns the worker's selector.
func (w *Worker[T]) Selector() *reactor.Selector[*session.Session[T]] { return w.sel }

// Start launches the loop goroutine.
func (w *Worker[T]) Start() {
	if atomic.CompareAndSwapInt32(&w.started, 0, 1) {
		go w.run()
	}
}

// Stop asks the loop to exit and wakes it.
func (w *Worker[T]) Stop() {
	atomic.StoreInt32(&w.stopping, 1)
	_ = w.sel.Wakeup()
}

// Done is closed once the loop has exited and its selector is closed.
func (w *Worker[T]) Done() <-chan struct{} { return w.done }

func (w *Worker[T]) run() {
	defer close(w.done)
	if err := concurrency.PinCurrentThread(w.cpu); err != nil {
		w.logger.Warn("cpu pinning failed", "cpu", w.cpu, "error", err)
	}
	defer concurrency.UnpinCurrentThread()
	defer w.shutdown()

	for atomic.LoadInt32(&w.stopping) == 0 {
		ready, err := w.sel.Wait(w.timeout)
		if err != nil {
			if atomic.LoadInt32(&w.stopping) == 1 {
				return
			}
			w.logger.Warn("selector wait failed", "error", err)
			continue
		}
		for _, r := range ready {
			w.handle(r)
		}
	}
}

func (w *Worker[T]) handle(r reactor.Ready[*session.Session[T]]) {
	s := r.Attachment
	if s == nil || s.Closed() {
		return
	}
	switch w.role {
	case RoleRead:
		if r.Readable || r.Hangup {
			w.eng.onReadable(s, w.scratch)
		}
	case RoleWrite:
		if r.Hangup {
			s.Logger().Debug("hangup on write side")
			s.Close()
			return
		}
		if r.Writable {
			w.eng.onWritable(s)
		}
	}
}

// shutdown closes the selector, running tasks still queued, then closes
// every session that was registered with it. Other workers may be closing
// the same sessions concurrently; Session.Close runs once.
func (w *Worker[T]) shutdown() {
	if err := w.sel.Close(); err != nil {
		w.logger.Warn("selector close failed", "error", err)
	}
	left := w.sel.Detached()
	for _, s := range left {
		s.Close()
	}
	if len(left) > 0 {
		w.logger.Debug("closed sessions at shutdown", "count", len(left))
	}
}
