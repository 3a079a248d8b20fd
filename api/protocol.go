// File: api/protocol.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Incremental decode/encode contract implemented once per wire format.

package api

import "bytes"

// Protocol decodes a byte stream delivered in arbitrary chunks into complete
// messages of type T, and encodes messages for write-back.
//
// An instance is created by a ProtocolFactory for exactly one session and is
// only ever driven by that session's read worker, so implementations keep
// their partial decode state (the attachment) in plain fields.
type Protocol[T any] interface {
	// Decode consumes what it needs from buf. It returns ok == false when no
	// complete message is available yet; unconsumed bytes stay in buf for the
	// next call. eof reports that the peer closed its write side.
	Decode(buf *bytes.Buffer, s Session, eof bool) (msg T, ok bool, err error)

	// Encode renders msg for the wire. Receive-only protocols return
	// ErrNoEncoder.
	Encode(msg T, s Session) ([]byte, error)

	// Release drops any in-flight decode attachment. Called once when the
	// owning session closes.
	Release()
}

// ProtocolFactory builds the per-session Protocol instance.
type ProtocolFactory[T any] func() Protocol[T]
