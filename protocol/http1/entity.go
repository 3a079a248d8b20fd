// File: protocol/http1/entity.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The request being decoded on a session.

package http1

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/momentics/hioload-nio/api"
)

// Part is the decode position of an Entity. It only moves forward.
type Part uint8

const (
	PartHead Part = iota
	PartBody
	PartEnd
)

func (p Part) String() string {
	switch p {
	case PartHead:
		return "head"
	case PartBody:
		return "body"
	case PartEnd:
		return "end"
	default:
		return "unknown"
	}
}

// Entity is one HTTP request. Fields set from the head are valid once the
// entity has been surfaced by Decode.
type Entity struct {
	part    Part
	session api.Session
	head    DelimiterScanner

	Method        string
	URI           string
	Proto         string
	Header        map[string][]string // canonical keys
	ContentType   string
	ContentLength int64 // -1 for chunked transfer coding

	strategy  BodyStrategy
	remaining int64
	body      bytes.Buffer
	stream    *Stream
}

func newEntity(s api.Session, maxHeader int) *Entity {
	e := &Entity{session: s}
	e.head.init(headDelimiter, maxHeader)
	return e
}

// Part returns the decode position.
func (e *Entity) Part() Part { return e.part }

// Session returns the session the request arrived on.
func (e *Entity) Session() api.Session { return e.session }

// Strategy returns the body strategy, BodyNone when there is no body.
func (e *Entity) Strategy() BodyStrategy { return e.strategy }

// Body returns the buffered body of a BodyBlock request.
func (e *Entity) Body() []byte { return e.body.Bytes() }

// Stream returns the body stream of a BodyStream request, nil otherwise.
func (e *Entity) Stream() *Stream { return e.stream }

// IsPost reports whether the method is POST, ignoring case.
func (e *Entity) IsPost() bool { return strings.EqualFold(e.Method, "POST") }

// Get returns the first value of the named header.
func (e *Entity) Get(name string) string {
	if vv := e.Header[canonicalHeaderKey(name)]; len(vv) > 0 {
		return vv[0]
	}
	return ""
}

// advance moves the entity forward to next.
func (e *Entity) advance(next Part) error {
	if next < e.part {
		return contractViolation(ErrStateRegression, "from", e.part.String(), "to", next.String())
	}
	e.part = next
	return nil
}

// parseHead fills the request line and header fields from a head block
// without its terminating blank line.
func (e *Entity) parseHead(block []byte) error {
	lines := strings.Split(string(block), "\r\n")
	parts := strings.SplitN(lines[0], " ", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
		return malformed("bad request line")
	}
	if !strings.HasPrefix(parts[2], "HTTP/1.") {
		return malformed("unsupported protocol version")
	}
	e.Method, e.URI, e.Proto = parts[0], parts[1], parts[2]

	e.Header = make(map[string][]string, len(lines)-1)
	for _, line := range lines[1:] {
		if line == "" {
			continue
		}
		if line[0] == ' ' || line[0] == '\t' {
			return malformed("obsolete header folding")
		}
		i := strings.IndexByte(line, ':')
		if i <= 0 {
			return malformed("header field without name")
		}
		k := canonicalHeaderKey(strings.TrimSpace(line[:i]))
		e.Header[k] = append(e.Header[k], strings.TrimSpace(line[i+1:]))
	}

	e.ContentType = e.Get("Content-Type")
	cl, err := e.contentLength()
	if err != nil {
		return err
	}
	e.ContentLength = cl
	return nil
}

// contentLength applies the body framing rules: chunked transfer coding
// wins and maps to -1, otherwise Content-Length, otherwise 0.
func (e *Entity) contentLength() (int64, error) {
	for _, v := range e.Header["Transfer-Encoding"] {
		if strings.Contains(strings.ToLower(v), "chunked") {
			return -1, nil
		}
	}
	vv := e.Header["Content-Length"]
	if len(vv) == 0 {
		return 0, nil
	}
	var cl int64 = -1
	for _, v := range vv {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil || n < 0 {
			return 0, malformed("bad content length")
		}
		if cl >= 0 && n != cl {
			return 0, malformed("conflicting content lengths")
		}
		cl = n
	}
	return cl, nil
}

// canonicalHeaderKey upper-cases the first letter and every letter after a
// hyphen, lower-casing the rest.
func canonicalHeaderKey(s string) string {
	b := []byte(strings.ToLower(s))
	upper := true
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			if upper {
				b[i] = c - 'a' + 'A'
			}
			upper = false
			continue
		}
		upper = c == '-'
	}
	return string(b)
}
