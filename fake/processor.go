// Package fake
// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package fake

import (
	"sync"
	"time"

	"github.com/momentics/hioload-nio/api"
)

// Processor collects processed messages and can echo or fail on demand.
type Processor[T any] struct {
	mu       sync.Mutex
	sessions []api.TransportSession[T]
	messages []T
	notify   chan T
	inits    int
	shutdown int
	workers  int

	// OnProcess, when set, runs for every message; its error is returned
	// from Process.
	OnProcess func(s api.TransportSession[T], msg T) error
}

var (
	_ api.Processor[string] = (*Processor[string])(nil)
	_ api.PoolInitializer   = (*Processor[string])(nil)
)

// NewProcessor creates a processor whose Messages channel buffers up to
// capacity messages.
func NewProcessor[T any](capacity int) *Processor[T] {
	return &Processor[T]{notify: make(chan T, capacity)}
}

// InitSession records the session and hands back a fire-and-forget handle.
func (p *Processor[T]) InitSession(s api.TransportSession[T]) api.MessageSession[T] {
	p.mu.Lock()
	p.sessions = append(p.sessions, s)
	p.inits++
	p.mu.Unlock()
	return &messageSession[T]{s: s}
}

func (p *Processor[T]) Process(ms api.MessageSession[T], msg T) error {
	p.mu.Lock()
	p.messages = append(p.messages, msg)
	p.mu.Unlock()
	select {
	case p.notify <- msg:
	default:
	}
	if p.OnProcess != nil {
		return p.OnProcess(ms.(*messageSession[T]).s, msg)
	}
	return nil
}

func (p *Processor[T]) Shutdown() {
	p.mu.Lock()
	p.shutdown++
	p.mu.Unlock()
}

// Init implements api.PoolInitializer.
func (p *Processor[T]) Init(workers int) {
	p.mu.Lock()
	p.workers = workers
	p.mu.Unlock()
}

// Next waits up to d for the next processed message.
func (p *Processor[T]) Next(d time.Duration) (T, bool) {
	select {
	case m := <-p.notify:
		return m, true
	case <-time.After(d):
		var zero T
		return zero, false
	}
}

// Messages returns every processed message.
func (p *Processor[T]) Messages() []T {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]T(nil), p.messages...)
}

// Sessions returns every session passed to InitSession.
func (p *Processor[T]) Sessions() []api.TransportSession[T] {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]api.TransportSession[T](nil), p.sessions...)
}

// Counts returns how often InitSession and Shutdown ran and the worker
// count passed to Init.
func (p *Processor[T]) Counts() (inits, shutdowns, workers int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inits, p.shutdown, p.workers
}

type messageSession[T any] struct {
	s api.TransportSession[T]
}

func (m *messageSession[T]) SendWithoutResponse(msg T) error { return m.s.Write(msg) }

func (m *messageSession[T]) SendWithResponse(msg T) (T, error) {
	var zero T
	return zero, api.ErrNotSupported
}

func (m *messageSession[T]) SendWithResponseTimeout(msg T, _ time.Duration) (T, error) {
	var zero T
	return zero, api.ErrNotSupported
}

func (m *messageSession[T]) NotifySyncMessage(T) bool { return false }
