// File: internal/session/session.go
// Package session
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Core session implementation: socket ownership, decode state, outbound
// queue and the close sequence across the two assigned workers.

package session

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"code.hybscloud.com/iox"
	"github.com/momentics/hioload-nio/api"
	"github.com/momentics/hioload-nio/internal/transport"
	"github.com/momentics/hioload-nio/pool"
	"github.com/momentics/hioload-nio/reactor"
)

// Loop is the part of a worker selector a session needs. Exec runs fn on
// the selector's owner goroutine; Modify and Unregister are only called
// from inside such a task or by the owner itself.
type Loop interface {
	Exec(fn func())
	Modify(fd int, interest reactor.Interest) error
	Unregister(fd int) error
}

// Config carries what New needs to build a session.
type Config[T any] struct {
	ID        uint32
	FD        int
	Remote    string
	Protocol  api.Protocol[T]
	Logger    *slog.Logger
	OnDestroy func(s *Session[T]) // called once after the fd is closed
	Buffers   *pool.SlabPool      // outbound copies; nil allocates per write
}

// Session is one live connection.
type Session[T any] struct {
	id     uint32
	fd     int
	remote string
	proto  api.Protocol[T]
	logger *slog.Logger

	in  bytes.Buffer // read worker only
	out *writeQueue

	mu         sync.Mutex // guards the loop bindings and msgSession
	readLoop   Loop
	writeLoop  Loop
	msgSession api.MessageSession[T]

	onDestroy func(*Session[T])
	closed    int32
	destroyed int32
}

var _ api.TransportSession[struct{}] = (*Session[struct{}])(nil)

// New builds a session for an accepted or dialed socket.
func New[T any](cfg Config[T]) *Session[T] {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Session[T]{
		id:        cfg.ID,
		fd:        cfg.FD,
		remote:    cfg.Remote,
		proto:     cfg.Protocol,
		logger:    logger.With("component", "session", "session", cfg.ID, "remote", cfg.Remote),
		out:       newWriteQueue(cfg.Buffers),
		onDestroy: cfg.OnDestroy,
	}
}

// ID returns the session serial.
func (s *Session[T]) ID() uint32 { return s.id }

// FD returns the socket descriptor.
func (s *Session[T]) FD() int { return s.fd }

// RemoteAddr returns the peer address.
func (s *Session[T]) RemoteAddr() string { return s.remote }

// Protocol returns the session's decode state holder.
func (s *Session[T]) Protocol() api.Protocol[T] { return s.proto }

// Logger returns the session-scoped logger.
func (s *Session[T]) Logger() *slog.Logger { return s.logger }

// InBuffer returns the read accumulation buffer. Read worker only.
func (s *Session[T]) InBuffer() *bytes.Buffer { return &s.in }

// Closed reports whether Close has begun.
func (s *Session[T]) Closed() bool { return atomic.LoadInt32(&s.closed) == 1 }

// Bind assigns the read and write workers. Called once during setup,
// before the session is registered with either of them.
func (s *Session[T]) Bind(read, write Loop) {
	s.mu.Lock()
	s.readLoop, s.writeLoop = read, write
	s.mu.Unlock()
}

func (s *Session[T]) loops() (Loop, Loop) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLoop, s.writeLoop
}

// SetMessageSession stores the processor's handle for this session.
func (s *Session[T]) SetMessageSession(ms api.MessageSession[T]) {
	s.mu.Lock()
	s.msgSession = ms
	s.mu.Unlock()
}

// MessageSession returns the processor's handle for this session, nil
// until setup attaches one.
func (s *Session[T]) MessageSession() api.MessageSession[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.msgSession
}

// Write encodes msg with the session's protocol and queues the bytes.
func (s *Session[T]) Write(msg T) error {
	b, err := s.proto.Encode(msg, s)
	if err != nil {
		return fmt.Errorf("session %d encode: %w", s.id, err)
	}
	return s.WriteBytes(b)
}

// WriteBytes copies b onto the outbound queue and arms the write worker.
// Safe for concurrent use.
func (s *Session[T]) WriteBytes(b []byte) error {
	if s.Closed() {
		return api.ErrSessionClosed
	}
	if len(b) == 0 {
		return nil
	}
	if !s.out.push(b) {
		return nil
	}
	_, wl := s.loops()
	if wl == nil {
		// not registered yet; registration picks up the pending bytes
		s.out.mu.Lock()
		s.out.armed = false
		s.out.mu.Unlock()
		return nil
	}
	wl.Exec(func() {
		if s.Closed() {
			return
		}
		if err := wl.Modify(s.fd, reactor.InterestWrite); err != nil {
			s.logger.Debug("arm write failed", "error", err)
		}
	})
	return nil
}

// WriteInterest returns the interest to register with the write worker:
// write when output is already pending, none otherwise. Write worker only.
func (s *Session[T]) WriteInterest() reactor.Interest {
	if s.out.claim() {
		return reactor.InterestWrite
	}
	return reactor.InterestNone
}

// Pending returns the number of queued writes and bytes.
func (s *Session[T]) Pending() (entries, bytes int) {
	return s.out.size()
}

// Fill performs one nonblocking read into the accumulation buffer. It
// returns io.EOF on end of stream. Read worker only.
func (s *Session[T]) Fill(scratch []byte) (int, error) {
	n, err := transport.Read(s.fd, scratch)
	if n > 0 {
		s.in.Write(scratch[:n])
	}
	return n, err
}

// Flush writes queued bytes until the queue drains or the socket would
// block. A drained queue drops write interest. Write worker only.
func (s *Session[T]) Flush() (int, error) {
	total := 0
	for {
		ob := s.out.front()
		if ob == nil {
			_, wl := s.loops()
			if wl != nil {
				if err := wl.Modify(s.fd, reactor.InterestNone); err != nil {
					return total, err
				}
			}
			return total, nil
		}
		n, err := transport.Write(s.fd, ob.b)
		if n > 0 {
			total += n
			s.out.consume(ob, n)
		}
		if err != nil {
			if iox.IsWouldBlock(err) {
				return total, nil
			}
			return total, err
		}
		if n == 0 {
			return total, io.ErrShortWrite
		}
	}
}

// Close tears the session down: the read worker unregisters the fd and
// releases the decode attachment, then the write worker unregisters the fd
// and closes it. Idempotent and safe from any goroutine.
func (s *Session[T]) Close() error {
	if !atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		return nil
	}
	rl, wl := s.loops()
	finish := func() {
		if wl == nil {
			s.destroy()
			return
		}
		wl.Exec(func() {
			_ = wl.Unregister(s.fd)
			s.destroy()
		})
	}
	if rl == nil {
		s.release()
		finish()
		return nil
	}
	rl.Exec(func() {
		_ = rl.Unregister(s.fd)
		s.release()
		finish()
	})
	return nil
}

func (s *Session[T]) release() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("protocol release panicked", "panic", r)
		}
	}()
	s.proto.Release()
	s.in.Reset()
}

// destroy closes the descriptor exactly once.
func (s *Session[T]) destroy() {
	if !atomic.CompareAndSwapInt32(&s.destroyed, 0, 1) {
		return
	}
	s.out.reset()
	if err := transport.Close(s.fd); err != nil {
		s.logger.Debug("close fd failed", "error", err)
	}
	s.logger.Debug("session destroyed")
	if s.onDestroy != nil {
		s.onDestroy(s)
	}
}

// Destroyed reports whether the descriptor has been closed.
func (s *Session[T]) Destroyed() bool { return atomic.LoadInt32(&s.destroyed) == 1 }
