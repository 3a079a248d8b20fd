// File: client/processor.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package client

import (
	"time"

	"github.com/momentics/hioload-nio/api"
)

// Handler receives inbound messages that no SendWithResponse call claimed.
type Handler[T any] func(ss *SyncSession[T], msg T) error

// SyncProcessor gives every session a SyncSession and routes replies to
// pending requests before falling back to the handler.
type SyncProcessor[T any] struct {
	timeout time.Duration
	handler Handler[T]
}

var (
	_ api.Processor[string]     = (*SyncProcessor[string])(nil)
	_ api.SessionCloser[string] = (*SyncProcessor[string])(nil)
)

// NewSyncProcessor builds a processor; handler may be nil, in which case
// unsolicited messages are dropped.
func NewSyncProcessor[T any](timeout time.Duration, handler Handler[T]) *SyncProcessor[T] {
	return &SyncProcessor[T]{timeout: timeout, handler: handler}
}

// InitSession implements api.Processor.
func (p *SyncProcessor[T]) InitSession(s api.TransportSession[T]) api.MessageSession[T] {
	return NewSyncSession(s, p.timeout)
}

// Process implements api.Processor.
func (p *SyncProcessor[T]) Process(ms api.MessageSession[T], msg T) error {
	if ms.NotifySyncMessage(msg) {
		return nil
	}
	ss, ok := ms.(*SyncSession[T])
	if !ok || p.handler == nil {
		return nil
	}
	return p.handler(ss, msg)
}

// Shutdown implements api.Processor.
func (p *SyncProcessor[T]) Shutdown() {}

// CloseSession implements api.SessionCloser: callers still waiting for a
// reply fail with api.ErrSessionClosed.
func (p *SyncProcessor[T]) CloseSession(ms api.MessageSession[T]) {
	if ss, ok := ms.(*SyncSession[T]); ok {
		ss.Fail(api.ErrSessionClosed)
	}
}
