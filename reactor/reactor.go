// File: reactor/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral selector types.

package reactor

import (
	"errors"

	"github.com/momentics/hioload-nio/api"
)

// Interest is the set of readiness events a descriptor is registered for.
type Interest uint8

const (
	InterestNone  Interest = 0
	InterestRead  Interest = 1
	InterestWrite Interest = 2
)

func (i Interest) String() string {
	switch i {
	case InterestNone:
		return "none"
	case InterestRead:
		return "read"
	case InterestWrite:
		return "write"
	case InterestRead | InterestWrite:
		return "read|write"
	default:
		return "invalid"
	}
}

// Ready is one readiness notification returned by Wait.
type Ready[A any] struct {
	Fd         int
	Attachment A
	Readable   bool
	Writable   bool
	Hangup     bool // peer hangup or socket error
}

// DefaultMaxEvents bounds the number of notifications returned per Wait.
const DefaultMaxEvents = 256

// Exec hands fn to the selector's owner, or runs it on the calling goroutine
// when the selector is already closed.
func (s *Selector[A]) Exec(fn func()) {
	if err := s.Submit(fn); errors.Is(err, api.ErrSelectorClosed) {
		fn()
	}
}
