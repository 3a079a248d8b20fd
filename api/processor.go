// File: api/processor.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Processor and client-session contracts consumed by the engine.

package api

import "time"

// MessageSession is the processor-level handle for one connection.
// Correlation and timeout mechanics belong to the implementation.
type MessageSession[T any] interface {
	// SendWithoutResponse writes msg and returns as soon as it is queued.
	SendWithoutResponse(msg T) error
	// SendWithResponse writes msg and waits for the correlated reply using
	// the implementation's default timeout.
	SendWithResponse(msg T) (T, error)
	// SendWithResponseTimeout is SendWithResponse with an explicit timeout.
	SendWithResponseTimeout(msg T, timeout time.Duration) (T, error)
	// NotifySyncMessage offers an inbound message to a pending
	// SendWithResponse call. It reports whether the message was consumed.
	NotifySyncMessage(msg T) bool
}

// Processor consumes fully decoded messages.
type Processor[T any] interface {
	// InitSession is called once per connection during setup, before read
	// interest is enabled.
	InitSession(s TransportSession[T]) MessageSession[T]
	// Process handles one message on the worker that decoded it.
	Process(ms MessageSession[T], msg T) error
	// Shutdown is called once when the engine stops.
	Shutdown()
}

// PoolInitializer is implemented by processors that size internal resources
// once the engine is running. workers is ThreadNum*2.
type PoolInitializer interface {
	Init(workers int)
}

// SessionCloser is implemented by processors that release per-session
// state once the connection is gone. CloseSession runs once per session,
// after its socket is closed, on whichever goroutine finished the teardown.
type SessionCloser[T any] interface {
	CloseSession(ms MessageSession[T])
}

// ProcessorFunc adapts a plain function into a Processor whose sessions
// are the transport sessions themselves wrapped as fire-and-forget handles.
type ProcessorFunc[T any] func(s TransportSession[T], msg T) error

// InitSession implements Processor.
func (f ProcessorFunc[T]) InitSession(s TransportSession[T]) MessageSession[T] {
	return &funcSession[T]{s: s}
}

// Process implements Processor.
func (f ProcessorFunc[T]) Process(ms MessageSession[T], msg T) error {
	fs, ok := ms.(*funcSession[T])
	if !ok {
		return ErrInvalidArgument
	}
	return f(fs.s, msg)
}

// Shutdown implements Processor.
func (f ProcessorFunc[T]) Shutdown() {}

// funcSession is the MessageSession handed out by ProcessorFunc.
type funcSession[T any] struct {
	s TransportSession[T]
}

func (fs *funcSession[T]) SendWithoutResponse(msg T) error { return fs.s.Write(msg) }

func (fs *funcSession[T]) SendWithResponse(msg T) (T, error) {
	var zero T
	return zero, ErrNotSupported
}

func (fs *funcSession[T]) SendWithResponseTimeout(msg T, _ time.Duration) (T, error) {
	var zero T
	return zero, ErrNotSupported
}

func (fs *funcSession[T]) NotifySyncMessage(T) bool { return false }
