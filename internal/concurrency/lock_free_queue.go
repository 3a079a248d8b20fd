// File: internal/concurrency/lock_free_queue.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Single-producer/single-consumer ring buffer with minimal atomics.

package concurrency

import "sync/atomic"

// lockFreeQueue is a ring buffer for one producer and one consumer. The
// Executor serializes its producers, each worker is the only consumer of
// its own queue.
type lockFreeQueue[T any] struct {
	mask    uint64
	entries []T
	head    uint64 // next slot to read, written by the consumer
	tail    uint64 // next slot to write, written by the producer
}

// NewLockFreeQueue creates a queue with capacity rounded up to a power of two.
func NewLockFreeQueue[T any](capacity int) *lockFreeQueue[T] {
	size := 1
	for size < capacity {
		size <<= 1
	}
	return &lockFreeQueue[T]{mask: uint64(size - 1), entries: make([]T, size)}
}

// Enqueue adds val; returns false if full.
func (q *lockFreeQueue[T]) Enqueue(val T) bool {
	tail := atomic.LoadUint64(&q.tail)
	head := atomic.LoadUint64(&q.head)
	if tail-head >= uint64(len(q.entries)) {
		return false
	}
	q.entries[tail&q.mask] = val
	atomic.StoreUint64(&q.tail, tail+1)
	return true
}

// Dequeue removes and returns the oldest item; ok is false if empty. The
// slot is zeroed so the queue does not pin the item.
func (q *lockFreeQueue[T]) Dequeue() (item T, ok bool) {
	head := atomic.LoadUint64(&q.head)
	tail := atomic.LoadUint64(&q.tail)
	if head >= tail {
		return item, false
	}
	var zero T
	item = q.entries[head&q.mask]
	q.entries[head&q.mask] = zero
	atomic.StoreUint64(&q.head, head+1)
	return item, true
}

// Len returns a snapshot of the number of queued items.
func (q *lockFreeQueue[T]) Len() int {
	return int(atomic.LoadUint64(&q.tail) - atomic.LoadUint64(&q.head))
}

// Cap returns the ring capacity.
func (q *lockFreeQueue[T]) Cap() int {
	return len(q.entries)
}
