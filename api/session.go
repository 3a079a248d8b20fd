// File: api/session.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// Session is the transport view of one live connection.
//
// Write methods are safe to call from any goroutine; the bytes are handed to
// the session's write worker through its outbound queue.
type Session interface {
	// ID returns the monotonic serial assigned at creation.
	ID() uint32
	// RemoteAddr returns the peer address in host:port form.
	RemoteAddr() string
	// WriteBytes queues raw bytes for the peer.
	WriteBytes(b []byte) error
	// Close tears the connection down. Idempotent.
	Close() error
	// Closed reports whether Close has begun.
	Closed() bool
}

// TransportSession adds message-level writes on top of Session, using the
// session's Protocol to encode.
type TransportSession[T any] interface {
	Session
	Write(msg T) error
}
