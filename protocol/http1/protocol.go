// File: protocol/http1/protocol.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Protocol drives the HEAD, BODY, END transitions for one session.

package http1

import (
	"bytes"
	"log/slog"

	"github.com/momentics/hioload-nio/api"
)

// DefaultMaxHeaderSize bounds the request line plus header fields.
const DefaultMaxHeaderSize = 64 * 1024

// DefaultMaxBlockBody bounds bodies buffered by the BodyBlock strategy.
const DefaultMaxBlockBody = 8 * 1024 * 1024

// Option customizes a Protocol.
type Option func(*Protocol)

// WithMaxHeaderSize sets the header block limit; n <= 0 removes it.
func WithMaxHeaderSize(n int) Option {
	return func(p *Protocol) { p.maxHeader = n }
}

// WithMaxBlockBody sets the buffered body limit; n <= 0 removes it.
func WithMaxBlockBody(n int64) Option {
	return func(p *Protocol) { p.maxBlockBody = n }
}

// WithLogger sets the logger used for decoder anomalies.
func WithLogger(l *slog.Logger) Option {
	return func(p *Protocol) { p.logger = l }
}

// Protocol decodes HTTP/1.x requests for exactly one session. It is driven
// only by that session's read worker.
type Protocol struct {
	entity       *Entity // in-flight request, nil between requests
	maxHeader    int
	maxBlockBody int64
	logger       *slog.Logger
}

var _ api.Protocol[*Entity] = (*Protocol)(nil)

// New returns a Protocol with the given options applied.
func New(opts ...Option) *Protocol {
	p := &Protocol{
		maxHeader:    DefaultMaxHeaderSize,
		maxBlockBody: DefaultMaxBlockBody,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "http1")
	return p
}

// Factory returns a ProtocolFactory building a fresh Protocol per session.
func Factory(opts ...Option) api.ProtocolFactory[*Entity] {
	return func() api.Protocol[*Entity] { return New(opts...) }
}

// transition is the outcome of one step.
type transition struct {
	next  Part
	emit  bool // surface the entity now
	again bool // step again without waiting for more bytes
}

// step computes the next transition for e. It consumes from buf only what
// the current part needs.
func (p *Protocol) step(e *Entity, buf *bytes.Buffer, eof bool) (transition, error) {
	switch e.part {
	case PartHead:
		return p.stepHead(e, buf, eof)
	case PartBody:
		return stepBody(e, buf, eof)
	default:
		// an entity at END should already have been dropped
		p.logger.Warn("discarding stale request state", "part", e.part.String())
		return transition{next: PartEnd, again: true}, nil
	}
}

func (p *Protocol) stepHead(e *Entity, buf *bytes.Buffer, eof bool) (transition, error) {
	if e.head.Scanned() == 0 {
		// tolerate blank lines between pipelined requests
		for buf.Len() > 0 {
			if c := buf.Bytes()[0]; c != '\r' && c != '\n' {
				break
			}
			buf.Next(1)
		}
	}
	end, found, err := e.head.Scan(buf.Bytes())
	if err != nil {
		return transition{}, err
	}
	if !found {
		if eof && buf.Len() > 0 {
			return transition{}, unexpectedEOF(PartHead)
		}
		return transition{next: PartHead}, nil
	}
	block := buf.Next(end)
	if err := e.parseHead(block[:end-len(headDelimiter)]); err != nil {
		return transition{}, err
	}

	if e.IsPost() && e.ContentLength != 0 {
		st, err := SelectStrategy(e.ContentType, e.ContentLength)
		if err != nil {
			return transition{}, err
		}
		if st == BodyBlock && p.maxBlockBody > 0 && e.ContentLength > p.maxBlockBody {
			return transition{}, bodyTooLarge(e.ContentLength, p.maxBlockBody)
		}
		e.strategy = st
		e.remaining = e.ContentLength
		if st == BodyStream {
			e.stream = newStream(e.ContentLength)
		} else {
			e.body.Grow(int(e.ContentLength))
		}
		return transition{next: PartBody, emit: !st.WaitForBody(), again: true}, nil
	}
	return transition{next: PartEnd, emit: true}, nil
}

func stepBody(e *Entity, buf *bytes.Buffer, eof bool) (transition, error) {
	done, err := e.strategy.consume(e, buf, eof)
	if err != nil {
		return transition{}, err
	}
	if done {
		return transition{next: PartEnd, emit: e.strategy.WaitForBody()}, nil
	}
	return transition{next: PartBody}, nil
}

// Decode implements api.Protocol. The in-flight entity is created on the
// first byte of a request and dropped when it reaches END or fails, so
// the next request on the connection starts from a clean state. A
// BodyStream entity is surfaced at head completion but stays in flight
// until its body has been fed to the stream.
func (p *Protocol) Decode(buf *bytes.Buffer, s api.Session, eof bool) (*Entity, bool, error) {
	for {
		if p.entity == nil {
			if buf.Len() == 0 {
				return nil, false, nil
			}
			p.entity = newEntity(s, p.maxHeader)
		}
		e := p.entity
		t, err := p.step(e, buf, eof)
		if err == nil {
			err = e.advance(t.next)
		}
		if err != nil {
			p.Release()
			return nil, false, err
		}
		if e.part == PartEnd {
			p.entity = nil
		}
		if t.emit {
			return e, true, nil
		}
		// a dropped entity leaves room for a pipelined request
		if !t.again && p.entity != nil {
			return nil, false, nil
		}
	}
}

// Encode implements api.Protocol. Response rendering is not part of this
// decoder, processors write raw bytes instead.
func (p *Protocol) Encode(*Entity, api.Session) ([]byte, error) {
	return nil, api.ErrNoEncoder
}

// Release drops the in-flight entity, aborting its body stream.
func (p *Protocol) Release() {
	if p.entity == nil {
		return
	}
	if p.entity.stream != nil {
		p.entity.stream.abort()
	}
	p.entity = nil
}

// InFlight returns the request currently being decoded, if any.
func (p *Protocol) InFlight() *Entity { return p.entity }
