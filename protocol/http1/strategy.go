// File: protocol/http1/strategy.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Body delivery strategies for POST requests.

package http1

import (
	"bytes"
	"strings"
)

// FormContentType selects the buffered strategy by prefix match.
const FormContentType = "application/x-www-form-urlencoded"

// BodyStrategy is how a POST body is delivered.
type BodyStrategy uint8

const (
	// BodyNone marks a request without a body.
	BodyNone BodyStrategy = iota
	// BodyBlock buffers the whole body; the message surfaces once it is
	// complete and carries it in Entity.Body.
	BodyBlock
	// BodyStream surfaces the message at head completion; body bytes flow
	// through Entity.Stream afterwards.
	BodyStream
)

func (b BodyStrategy) String() string {
	switch b {
	case BodyNone:
		return "none"
	case BodyBlock:
		return "block"
	case BodyStream:
		return "stream"
	default:
		return "invalid"
	}
}

// WaitForBody reports whether the message is surfaced only after the body
// completes.
func (b BodyStrategy) WaitForBody() bool {
	return b == BodyBlock
}

// SelectStrategy picks the body strategy for a POST with the given
// Content-Type and Content-Length. A content length that is not strictly
// positive (the -1 sentinel of chunked or unknown-length bodies) is a
// caller contract violation and yields an error with
// api.ErrCodeContractViolation wrapping ErrContentLength.
func SelectStrategy(contentType string, contentLength int64) (BodyStrategy, error) {
	if contentLength <= 0 {
		return BodyNone, contractViolation(ErrContentLength, "content_length", contentLength)
	}
	if strings.HasPrefix(contentType, FormContentType) {
		return BodyBlock, nil
	}
	return BodyStream, nil
}

// consume moves up to the remaining body bytes from buf into the entity and
// reports whether the body is complete.
func (b BodyStrategy) consume(e *Entity, buf *bytes.Buffer, eof bool) (bool, error) {
	if n := int64(buf.Len()); n > 0 && e.remaining > 0 {
		if n > e.remaining {
			n = e.remaining
		}
		chunk := buf.Next(int(n))
		switch b {
		case BodyBlock:
			e.body.Write(chunk)
		case BodyStream:
			e.stream.push(chunk)
		default:
			return false, contractViolation(ErrContentLength, "strategy", b.String())
		}
		e.remaining -= n
	}
	if e.remaining == 0 {
		if b == BodyStream {
			e.stream.finish()
		}
		return true, nil
	}
	if eof {
		return false, unexpectedEOF(PartBody)
	}
	return false, nil
}
