// File: internal/session/write_queue.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Outbound byte queue shared by producers and the write worker.

package session

import (
	"sync"

	"github.com/eapache/queue"
	"github.com/momentics/hioload-nio/pool"
)

// outbound is one queued write. Only the flushing worker advances b; buf
// keeps the original slice for return to the pool.
type outbound struct {
	b   []byte
	buf []byte
}

// writeQueue is a mutex-guarded FIFO of pending writes. armed records that
// write interest is enabled (or an enable is in flight) on the write worker.
type writeQueue struct {
	buffers *pool.SlabPool // nil disables pooling

	mu      sync.Mutex
	q       *queue.Queue
	pending int // bytes queued and not yet written
	armed   bool
}

func newWriteQueue(buffers *pool.SlabPool) *writeQueue {
	return &writeQueue{buffers: buffers, q: queue.New()}
}

// copyOf copies b into a pooled slice when a pool is set.
func (w *writeQueue) copyOf(b []byte) []byte {
	var buf []byte
	if w.buffers != nil {
		buf = w.buffers.Get(len(b))
	} else {
		buf = make([]byte, len(b))
	}
	copy(buf, b)
	return buf
}

func (w *writeQueue) recycle(ob *outbound) {
	if w.buffers != nil && ob.buf != nil {
		w.buffers.Put(ob.buf)
	}
	ob.buf, ob.b = nil, nil
}

// push copies b onto the queue and reports whether the caller must enable
// write interest.
func (w *writeQueue) push(b []byte) (arm bool) {
	buf := w.copyOf(b)
	w.mu.Lock()
	defer w.mu.Unlock()
	w.q.Add(&outbound{b: buf, buf: buf})
	w.pending += len(buf)
	if w.armed {
		return false
	}
	w.armed = true
	return true
}

// front returns the oldest pending write. When the queue is empty it
// disarms and returns nil.
func (w *writeQueue) front() *outbound {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.q.Length() == 0 {
		w.armed = false
		return nil
	}
	return w.q.Peek().(*outbound)
}

// consume records n bytes of the front entry as written and drops the
// entry once it is empty.
func (w *writeQueue) consume(ob *outbound, n int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	ob.b = ob.b[n:]
	w.pending -= n
	if len(ob.b) == 0 && w.q.Length() > 0 && w.q.Peek() == ob {
		w.q.Remove()
		w.recycle(ob)
	}
}

// claim marks the queue armed if it holds data. Used when the session is
// first registered with its write worker.
func (w *writeQueue) claim() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.q.Length() == 0 {
		return false
	}
	w.armed = true
	return true
}

// reset drops everything still queued.
func (w *writeQueue) reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for w.q.Length() > 0 {
		w.recycle(w.q.Remove().(*outbound))
	}
	w.pending = 0
	w.armed = false
}

// size returns the number of queued entries and bytes.
func (w *writeQueue) size() (entries, bytes int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.q.Length(), w.pending
}
