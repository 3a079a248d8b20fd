// File: protocol/http1/stream.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Streamed request body: the read worker produces chunks, one consumer
// goroutine reads them through io.Reader.

package http1

import (
	"io"
	"sync"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
	"code.hybscloud.com/lfq"
)

// streamQueueSize bounds the lock-free chunk queue.
const streamQueueSize = 64

const (
	streamOpen uint32 = iota
	streamDone
	streamAborted
)

// Stream delivers a request body that arrives after its message was
// surfaced. Read blocks with adaptive backoff until data arrives, so it must
// be called from a goroutine other than the session's read worker.
type Stream struct {
	q     lfq.SPSC[[]byte]
	state atomix.Uint32
	size  int64

	// Chunks that did not fit in q. While spill is non-empty the producer
	// appends here, so q always holds older chunks than spill.
	mu    sync.Mutex
	spill [][]byte

	// consumer only
	local [][]byte
	cur   []byte
}

func newStream(size int64) *Stream {
	s := &Stream{size: size}
	s.q.Init(streamQueueSize)
	return s
}

// Size returns the declared content length.
func (s *Stream) Size() int64 { return s.size }

// Done reports whether every body byte has been produced.
func (s *Stream) Done() bool { return s.state.Load() == streamDone }

// push hands a copy of chunk to the consumer. Producer only.
func (s *Stream) push(chunk []byte) {
	c := make([]byte, len(chunk))
	copy(c, chunk)
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.spill) == 0 {
		if err := s.q.Enqueue(&c); err == nil {
			return
		}
	}
	s.spill = append(s.spill, c)
}

func (s *Stream) finish() { s.state.Store(streamDone) }

func (s *Stream) abort() {
	if s.state.Load() == streamOpen {
		s.state.Store(streamAborted)
	}
}

// Read implements io.Reader. It returns io.EOF after the last body byte and
// ErrBodyAborted if the session closed mid-body.
func (s *Stream) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	var bo iox.Backoff
	for {
		if len(s.cur) > 0 {
			n := copy(p, s.cur)
			s.cur = s.cur[n:]
			return n, nil
		}
		if len(s.local) > 0 {
			s.cur, s.local = s.local[0], s.local[1:]
			continue
		}
		// state is sampled first so a finished producer is never
		// observed before its last chunk
		st := s.state.Load()
		if c, err := s.q.Dequeue(); err == nil {
			s.cur = c
			bo.Reset()
			continue
		}
		s.mu.Lock()
		if len(s.spill) > 0 {
			s.local, s.spill = s.spill, nil
			s.mu.Unlock()
			continue
		}
		s.mu.Unlock()
		switch st {
		case streamDone:
			return 0, io.EOF
		case streamAborted:
			return 0, ErrBodyAborted
		}
		bo.Wait()
	}
}
