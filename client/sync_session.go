// File: client/sync_session.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Request/response correlation over one connection. Replies are matched to
// requests in send order, so the peer must answer in order.

package client

import (
	"fmt"
	"sync"
	"time"

	"github.com/eapache/queue"
	"github.com/momentics/hioload-nio/api"
)

// DefaultResponseTimeout applies to SendWithResponse.
const DefaultResponseTimeout = 3 * time.Second

type reply[T any] struct {
	msg T
	err error
}

type waiter[T any] struct {
	ch        chan reply[T] // buffered, receives exactly once
	delivered bool
	abandoned bool
}

// SyncSession implements api.MessageSession with FIFO correlation.
type SyncSession[T any] struct {
	s       api.TransportSession[T]
	timeout time.Duration

	mu      sync.Mutex // guards waiters and the write that follows an enqueue
	waiters *queue.Queue
	failed  error
}

var _ api.MessageSession[string] = (*SyncSession[string])(nil)

// NewSyncSession wraps s. timeout <= 0 means DefaultResponseTimeout.
func NewSyncSession[T any](s api.TransportSession[T], timeout time.Duration) *SyncSession[T] {
	if timeout <= 0 {
		timeout = DefaultResponseTimeout
	}
	return &SyncSession[T]{s: s, timeout: timeout, waiters: queue.New()}
}

// Transport returns the wrapped transport session.
func (ss *SyncSession[T]) Transport() api.TransportSession[T] { return ss.s }

// SendWithoutResponse implements api.MessageSession.
func (ss *SyncSession[T]) SendWithoutResponse(msg T) error {
	return ss.s.Write(msg)
}

// SendWithResponse implements api.MessageSession.
func (ss *SyncSession[T]) SendWithResponse(msg T) (T, error) {
	return ss.SendWithResponseTimeout(msg, ss.timeout)
}

// SendWithResponseTimeout writes msg and waits up to timeout for the next
// inbound message in send order. On timeout the slot is abandoned and the
// late reply is discarded rather than handed to a later caller.
func (ss *SyncSession[T]) SendWithResponseTimeout(msg T, timeout time.Duration) (T, error) {
	var zero T
	if timeout <= 0 {
		timeout = ss.timeout
	}
	w := &waiter[T]{ch: make(chan reply[T], 1)}

	// write and enqueue under one lock so queue order matches wire order
	// and no reply can be notified before its waiter exists
	ss.mu.Lock()
	if ss.failed != nil {
		err := ss.failed
		ss.mu.Unlock()
		return zero, err
	}
	if err := ss.s.Write(msg); err != nil {
		ss.mu.Unlock()
		return zero, err
	}
	ss.waiters.Add(w)
	ss.mu.Unlock()

	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case r := <-w.ch:
		return r.msg, r.err
	case <-t.C:
	}

	ss.mu.Lock()
	if !w.delivered {
		w.abandoned = true
		ss.mu.Unlock()
		return zero, fmt.Errorf("session %d response after %v: %w", ss.s.ID(), timeout, api.ErrOperationTimeout)
	}
	ss.mu.Unlock()
	r := <-w.ch
	return r.msg, r.err
}

// NotifySyncMessage hands msg to the oldest waiter. A waiter that timed
// out still owns its slot, so its late reply is consumed and dropped. It
// returns false when nobody is waiting, leaving msg to the processor.
func (ss *SyncSession[T]) NotifySyncMessage(msg T) bool {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if ss.waiters.Length() == 0 {
		return false
	}
	w := ss.waiters.Remove().(*waiter[T])
	if w.abandoned {
		return true
	}
	w.delivered = true
	w.ch <- reply[T]{msg: msg}
	return true
}

// Pending returns the number of queued waiters, abandoned ones included.
func (ss *SyncSession[T]) Pending() int {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.waiters.Length()
}

// Fail releases every waiter with err and rejects later requests.
func (ss *SyncSession[T]) Fail(err error) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if ss.failed == nil {
		ss.failed = err
	}
	for ss.waiters.Length() > 0 {
		w := ss.waiters.Remove().(*waiter[T])
		if w.abandoned {
			continue
		}
		w.delivered = true
		w.ch <- reply[T]{err: err}
	}
}
