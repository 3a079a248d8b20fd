// File: internal/engine/io.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Read, decode, dispatch and flush paths run by the workers.

package engine

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"code.hybscloud.com/iox"
	"github.com/momentics/hioload-nio/api"
	"github.com/momentics/hioload-nio/internal/session"
)

// onReadable runs on the session's read worker. One read per readiness
// event; level-triggered epoll reports the rest on the next Wait.
func (e *Engine[T]) onReadable(s *session.Session[T], scratch []byte) {
	n, err := s.Fill(scratch)
	if n > 0 {
		e.c.bytesIn.Add(int64(n))
	}
	eof := false
	switch {
	case err == nil:
	case iox.IsWouldBlock(err):
		return
	case errors.Is(err, io.EOF):
		eof = true
	default:
		s.Logger().Warn("read failed", "error", err)
		s.Close()
		return
	}

	proto := s.Protocol()
	buf := s.InBuffer()
	for !s.Closed() {
		msg, ok, derr := e.decode(proto, buf, s, eof)
		if derr != nil {
			e.c.decodeErrors.Inc()
			s.Logger().Warn("decode failed", "error", derr)
			s.Close()
			return
		}
		if !ok {
			break
		}
		e.c.messages.Inc()
		e.dispatch(s, msg)
	}
	if eof {
		s.Logger().Debug("peer closed")
		s.Close()
	}
}

// decode turns a protocol panic into a decode error so only the offending
// session is closed.
func (e *Engine[T]) decode(proto api.Protocol[T], buf *bytes.Buffer, s *session.Session[T], eof bool) (msg T, ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			msg, ok, err = zero, false, fmt.Errorf("decode panic: %v", r)
		}
	}()
	return proto.Decode(buf, s, eof)
}

// dispatch runs the filters and hands msg to the processor on the calling
// read worker. A filter or processor failure or panic is reported through
// ProcessFail and leaves the session open.
func (e *Engine[T]) dispatch(s *session.Session[T], msg T) {
	if err := e.process(s, msg); err != nil {
		e.c.processErrors.Inc()
		s.Logger().Warn("process failed", "error", err)
		e.processFail(s, msg, err)
	}
}

func (e *Engine[T]) process(s *session.Session[T], msg T) (err error) {
	stage := "filter"
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panic: %v", stage, r)
		}
	}()
	e.filters.ReadFilter(s, msg)
	e.filters.ProcessFilter(s, msg)
	stage = "processor"
	return e.cfg.Processor.Process(s.MessageSession(), msg)
}

func (e *Engine[T]) processFail(s *session.Session[T], msg T, cause error) {
	defer func() {
		if r := recover(); r != nil {
			s.Logger().Error("process fail filter panicked", "panic", r)
		}
	}()
	e.filters.ProcessFail(s, msg, cause)
}

// onWritable runs on the session's write worker.
func (e *Engine[T]) onWritable(s *session.Session[T]) {
	n, err := s.Flush()
	if n > 0 {
		e.c.bytesOut.Add(int64(n))
		e.writeFilter(s, n)
	}
	if err != nil {
		s.Logger().Warn("write failed", "error", err)
		s.Close()
	}
}

func (e *Engine[T]) writeFilter(s *session.Session[T], n int) {
	defer func() {
		if r := recover(); r != nil {
			s.Logger().Error("write filter panicked", "panic", r)
		}
	}()
	e.filters.WriteFilter(s, n)
}
