//go:build !linux
// +build !linux

// File: reactor/reactor_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub implementation for unsupported platforms.

package reactor

import (
	"time"

	"github.com/momentics/hioload-nio/api"
)

// Selector is unavailable on this platform.
type Selector[A any] struct {
	OnPanic func(v any)
}

// NewSelector returns api.ErrNotSupported on platforms without epoll.
func NewSelector[A any](maxEvents int) (*Selector[A], error) {
	return nil, api.ErrNotSupported
}

func (s *Selector[A]) Register(fd int, interest Interest, att A) error { return api.ErrNotSupported }
func (s *Selector[A]) Modify(fd int, interest Interest) error          { return api.ErrNotSupported }
func (s *Selector[A]) Unregister(fd int) error                         { return api.ErrNotSupported }
func (s *Selector[A]) Interest(fd int) (Interest, bool)                { return InterestNone, false }
func (s *Selector[A]) Len() int                                        { return 0 }
func (s *Selector[A]) Range(fn func(fd int, att A))                    {}
func (s *Selector[A]) Detached() []A                                   { return nil }
func (s *Selector[A]) Submit(fn func()) error                          { return api.ErrNotSupported }
func (s *Selector[A]) Wakeup() error                                   { return api.ErrNotSupported }
func (s *Selector[A]) Close() error                                    { return nil }

func (s *Selector[A]) Wait(timeout time.Duration) ([]Ready[A], error) {
	return nil, api.ErrNotSupported
}
