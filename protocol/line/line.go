// Package line
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// CRLF-delimited text messages. Used by the line client and by engine
// tests that need a protocol with an encoder.

package line

import (
	"bytes"

	"github.com/momentics/hioload-nio/api"
)

// Delimiter terminates every message on the wire.
const Delimiter = "\r\n"

// DefaultMaxLine bounds a single undelimited line.
const DefaultMaxLine = 64 * 1024

// ErrLineTooLong is returned when no delimiter is found within the limit.
var ErrLineTooLong = api.NewError(api.ErrCodeMalformedRequest, "line exceeds limit")

// Protocol splits the byte stream on CRLF. Messages exclude the delimiter.
type Protocol struct {
	maxLine int
	scanned int // bytes already searched without a delimiter
}

var _ api.Protocol[string] = (*Protocol)(nil)

// New returns a Protocol with the given line limit; max <= 0 means
// DefaultMaxLine.
func New(max int) *Protocol {
	if max <= 0 {
		max = DefaultMaxLine
	}
	return &Protocol{maxLine: max}
}

// Factory returns a ProtocolFactory for per-session instances.
func Factory(max int) api.ProtocolFactory[string] {
	return func() api.Protocol[string] { return New(max) }
}

// Decode implements api.Protocol. A trailing partial line at end of stream
// is surfaced as a final message.
func (p *Protocol) Decode(buf *bytes.Buffer, _ api.Session, eof bool) (string, bool, error) {
	data := buf.Bytes()
	// back up one byte in case the previous call ended between CR and LF
	from := p.scanned - 1
	if from < 0 {
		from = 0
	}
	if i := bytes.Index(data[from:], []byte(Delimiter)); i >= 0 {
		end := from + i
		msg := string(data[:end])
		buf.Next(end + len(Delimiter))
		p.scanned = 0
		return msg, true, nil
	}
	p.scanned = len(data)
	if p.scanned > p.maxLine {
		p.scanned = 0
		return "", false, ErrLineTooLong
	}
	if eof && len(data) > 0 {
		msg := string(data)
		buf.Reset()
		p.scanned = 0
		return msg, true, nil
	}
	return "", false, nil
}

// Encode implements api.Protocol by appending the delimiter.
func (p *Protocol) Encode(msg string, _ api.Session) ([]byte, error) {
	b := make([]byte, 0, len(msg)+len(Delimiter))
	b = append(b, msg...)
	return append(b, Delimiter...), nil
}

// Release implements api.Protocol.
func (p *Protocol) Release() { p.scanned = 0 }
