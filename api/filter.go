// File: api/filter.go
// Package api defines the filter chain invoked around dispatch.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// Filter is a set of hooks run around decode and dispatch. All hooks run on
// the worker goroutine that owns the event and must not block.
type Filter[T any] interface {
	// ReadFilter runs right after a message has been decoded.
	ReadFilter(s Session, msg T)
	// ProcessFilter runs just before Processor.Process.
	ProcessFilter(s Session, msg T)
	// ProcessFail runs when Processor.Process fails or panics.
	ProcessFail(s Session, msg T, err error)
	// WriteFilter runs after n bytes were flushed to the peer.
	WriteFilter(s Session, n int)
}

// FilterFuncs adapts optional functions into a Filter. Nil fields are skipped.
type FilterFuncs[T any] struct {
	OnRead    func(s Session, msg T)
	OnProcess func(s Session, msg T)
	OnFail    func(s Session, msg T, err error)
	OnWrite   func(s Session, n int)
}

func (f FilterFuncs[T]) ReadFilter(s Session, msg T) {
	if f.OnRead != nil {
		f.OnRead(s, msg)
	}
}

func (f FilterFuncs[T]) ProcessFilter(s Session, msg T) {
	if f.OnProcess != nil {
		f.OnProcess(s, msg)
	}
}

func (f FilterFuncs[T]) ProcessFail(s Session, msg T, err error) {
	if f.OnFail != nil {
		f.OnFail(s, msg, err)
	}
}

func (f FilterFuncs[T]) WriteFilter(s Session, n int) {
	if f.OnWrite != nil {
		f.OnWrite(s, n)
	}
}

// FilterChain runs filters in slice order.
type FilterChain[T any] []Filter[T]

// NewFilterChain copies filters so later mutation of the caller's slice does
// not affect a running engine.
func NewFilterChain[T any](filters ...Filter[T]) FilterChain[T] {
	out := make(FilterChain[T], 0, len(filters))
	for _, f := range filters {
		if f != nil {
			out = append(out, f)
		}
	}
	return out
}

func (c FilterChain[T]) ReadFilter(s Session, msg T) {
	for _, f := range c {
		f.ReadFilter(s, msg)
	}
}

func (c FilterChain[T]) ProcessFilter(s Session, msg T) {
	for _, f := range c {
		f.ProcessFilter(s, msg)
	}
}

func (c FilterChain[T]) ProcessFail(s Session, msg T, err error) {
	for _, f := range c {
		f.ProcessFail(s, msg, err)
	}
}

func (c FilterChain[T]) WriteFilter(s Session, n int) {
	for _, f := range c {
		f.WriteFilter(s, n)
	}
}
