// Package fake
// Author: momentics <momentics@gmail.com>
//
// Fake implementations for testing and development.
// Provides predictable, controllable behavior for the engine contracts.

package fake

import (
	"sync"
	"sync/atomic"

	"github.com/momentics/hioload-nio/api"
)

// Session is a fake api.TransportSession that records everything written.
type Session[T any] struct {
	mu         sync.Mutex
	id         uint32
	remote     string
	encode     func(T) ([]byte, error)
	written    [][]byte
	messages   []T
	closed     int32
	closeCount int32
	writeError error
}

var _ api.TransportSession[string] = (*Session[string])(nil)

// NewSession creates a fake session. encode may be nil, in which case Write
// records the message without producing bytes.
func NewSession[T any](id uint32, encode func(T) ([]byte, error)) *Session[T] {
	return &Session[T]{id: id, remote: "fake:0", encode: encode}
}

func (s *Session[T]) ID() uint32 { return s.id }

func (s *Session[T]) RemoteAddr() string { return s.remote }

// WriteBytes records a copy of b.
func (s *Session[T]) WriteBytes(b []byte) error {
	if s.Closed() {
		return api.ErrSessionClosed
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeError != nil {
		return s.writeError
	}
	s.written = append(s.written, append([]byte(nil), b...))
	return nil
}

// Write records msg and, with an encoder, its bytes.
func (s *Session[T]) Write(msg T) error {
	if s.Closed() {
		return api.ErrSessionClosed
	}
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
	if s.encode == nil {
		return nil
	}
	b, err := s.encode(msg)
	if err != nil {
		return err
	}
	return s.WriteBytes(b)
}

func (s *Session[T]) Close() error {
	atomic.StoreInt32(&s.closed, 1)
	atomic.AddInt32(&s.closeCount, 1)
	return nil
}

func (s *Session[T]) Closed() bool { return atomic.LoadInt32(&s.closed) == 1 }

// Written returns the recorded byte writes.
func (s *Session[T]) Written() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.written...)
}

// Messages returns the recorded message writes.
func (s *Session[T]) Messages() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]T(nil), s.messages...)
}

// CloseCount returns how many times Close was called.
func (s *Session[T]) CloseCount() int { return int(atomic.LoadInt32(&s.closeCount)) }

// SetWriteError makes subsequent writes fail with err.
func (s *Session[T]) SetWriteError(err error) {
	s.mu.Lock()
	s.writeError = err
	s.mu.Unlock()
}
