//go:build linux
// +build linux

// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor - Linux epoll implementation.

package reactor

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/momentics/hioload-nio/api"
	"golang.org/x/sys/unix"
)

// key is the per-descriptor registration record. Owner goroutine only.
type key[A any] struct {
	att      A
	interest Interest
}

// Selector multiplexes readiness for the descriptors registered with it.
type Selector[A any] struct {
	epfd   int
	wakefd int
	events []unix.EpollEvent
	ready  []Ready[A]
	keys   map[int]*key[A]

	// OnPanic, when set, receives panics raised by submitted tasks.
	OnPanic func(v any)

	mu     sync.Mutex // guards tasks, woken, closed and the wakefd lifetime
	tasks  []func()
	spare  []func()
	woken  bool
	closed bool

	// shut mirrors closed for the registration calls, which may run inline
	// on foreign goroutines once the selector is closed.
	shut     int32
	detached []A
}

// NewSelector creates an epoll instance plus its wakeup eventfd.
func NewSelector[A any](maxEvents int) (*Selector[A], error) {
	if maxEvents <= 0 {
		maxEvents = DefaultMaxEvents
	}
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll create: %w", err)
	}
	wakefd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		_ = unix.Close(epfd)
		return nil, fmt.Errorf("eventfd create: %w", err)
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakefd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakefd, &ev); err != nil {
		_ = unix.Close(wakefd)
		_ = unix.Close(epfd)
		return nil, fmt.Errorf("epoll ctl add wakeup: %w", err)
	}
	return &Selector[A]{
		epfd:   epfd,
		wakefd: wakefd,
		events: make([]unix.EpollEvent, maxEvents),
		ready:  make([]Ready[A], 0, maxEvents),
		keys:   make(map[int]*key[A]),
	}, nil
}

func epollEvents(i Interest) uint32 {
	var ev uint32
	if i&InterestRead != 0 {
		ev |= unix.EPOLLIN
	}
	if i&InterestWrite != 0 {
		ev |= unix.EPOLLOUT
	}
	return ev
}

// Register adds fd with the given interest. InterestNone keeps the
// descriptor registered without asking for events.
func (s *Selector[A]) Register(fd int, interest Interest, att A) error {
	if s.isShut() {
		return fmt.Errorf("register fd %d: %w", fd, api.ErrSelectorClosed)
	}
	if _, ok := s.keys[fd]; ok {
		return fmt.Errorf("register fd %d: %w", fd, api.ErrAlreadyExists)
	}
	ev := unix.EpollEvent{Events: epollEvents(interest), Fd: int32(fd)}
	if err := unix.EpollCtl(s.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return fmt.Errorf("epoll ctl add: %w", err)
	}
	s.keys[fd] = &key[A]{att: att, interest: interest}
	return nil
}

// Modify replaces the interest set of a registered descriptor. It is a
// no-op on a closed selector.
func (s *Selector[A]) Modify(fd int, interest Interest) error {
	if s.isShut() {
		return nil
	}
	k, ok := s.keys[fd]
	if !ok {
		return fmt.Errorf("modify fd %d: %w", fd, api.ErrNotFound)
	}
	if k.interest == interest {
		return nil
	}
	ev := unix.EpollEvent{Events: epollEvents(interest), Fd: int32(fd)}
	if err := unix.EpollCtl(s.epfd, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
		return fmt.Errorf("epoll ctl mod: %w", err)
	}
	k.interest = interest
	return nil
}

// Unregister removes fd. Unknown descriptors and closed selectors are
// ignored.
func (s *Selector[A]) Unregister(fd int) error {
	if s.isShut() {
		return nil
	}
	if _, ok := s.keys[fd]; !ok {
		return nil
	}
	delete(s.keys, fd)
	err := unix.EpollCtl(s.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	if err != nil && err != unix.ENOENT && err != unix.EBADF {
		return fmt.Errorf("epoll ctl del: %w", err)
	}
	return nil
}

// Interest returns the current interest of fd.
func (s *Selector[A]) Interest(fd int) (Interest, bool) {
	k, ok := s.keys[fd]
	if !ok {
		return InterestNone, false
	}
	return k.interest, true
}

// Len returns the number of registered descriptors.
func (s *Selector[A]) Len() int {
	return len(s.keys)
}

func (s *Selector[A]) isShut() bool { return atomic.LoadInt32(&s.shut) == 1 }

// Detached returns the attachments that were still registered when Close
// ran. Owner goroutine only, after Close.
func (s *Selector[A]) Detached() []A { return s.detached }

// Range calls fn for every registered descriptor.
func (s *Selector[A]) Range(fn func(fd int, att A)) {
	for fd, k := range s.keys {
		fn(fd, k.att)
	}
}

// Submit queues fn to run on the owner goroutine at the start of the next
// Wait and wakes the selector. Safe for concurrent use.
func (s *Selector[A]) Submit(fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return api.ErrSelectorClosed
	}
	s.tasks = append(s.tasks, fn)
	return s.signalLocked()
}

// Wakeup forces a blocked Wait to return early. Wakeups coalesce until the
// selector drains them.
func (s *Selector[A]) Wakeup() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return api.ErrSelectorClosed
	}
	return s.signalLocked()
}

func (s *Selector[A]) signalLocked() error {
	if s.woken {
		return nil
	}
	var b [8]byte
	binary.NativeEndian.PutUint64(b[:], 1)
	for {
		_, err := unix.Write(s.wakefd, b[:])
		if err == unix.EINTR {
			continue
		}
		// EAGAIN means the counter is saturated, the selector is awake anyway.
		if err != nil && err != unix.EAGAIN {
			return fmt.Errorf("eventfd write: %w", err)
		}
		s.woken = true
		return nil
	}
}

func (s *Selector[A]) drainWakeup() {
	var b [8]byte
	s.mu.Lock()
	_, _ = unix.Read(s.wakefd, b[:])
	s.woken = false
	s.mu.Unlock()
}

func (s *Selector[A]) runTasks() {
	s.mu.Lock()
	tasks := s.tasks
	s.tasks = s.spare[:0]
	s.mu.Unlock()
	for i, fn := range tasks {
		s.runTask(fn)
		tasks[i] = nil
	}
	s.mu.Lock()
	s.spare = tasks[:0]
	s.mu.Unlock()
}

func (s *Selector[A]) runTask(fn func()) {
	defer func() {
		if r := recover(); r != nil && s.OnPanic != nil {
			s.OnPanic(r)
		}
	}()
	fn()
}

// Wait runs queued tasks, then blocks for at most timeout waiting for
// readiness. A negative timeout blocks until an event or a wakeup. The
// returned slice is reused by the next call.
func (s *Selector[A]) Wait(timeout time.Duration) ([]Ready[A], error) {
	s.runTasks()

	ms := -1
	if timeout >= 0 {
		ms = int((timeout + time.Millisecond - 1) / time.Millisecond)
		if ms > math.MaxInt32 {
			ms = math.MaxInt32
		}
	}
	n, err := unix.EpollWait(s.epfd, s.events, ms)
	if err != nil {
		if err == unix.EINTR {
			return s.ready[:0], nil
		}
		return nil, fmt.Errorf("epoll wait: %w", err)
	}

	s.ready = s.ready[:0]
	for i := 0; i < n; i++ {
		ev := s.events[i]
		fd := int(ev.Fd)
		if fd == s.wakefd {
			s.drainWakeup()
			continue
		}
		k, ok := s.keys[fd]
		if !ok {
			continue
		}
		s.ready = append(s.ready, Ready[A]{
			Fd:         fd,
			Attachment: k.att,
			Readable:   ev.Events&(unix.EPOLLIN|unix.EPOLLPRI) != 0,
			Writable:   ev.Events&unix.EPOLLOUT != 0,
			Hangup:     ev.Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0,
		})
	}
	return s.ready, nil
}

// Close rejects further submissions, detaches every registration, runs the
// tasks still queued and releases the epoll and eventfd descriptors.
// Registered descriptors are left open; the owner closes them (see
// Detached). Owner goroutine only.
func (s *Selector[A]) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	atomic.StoreInt32(&s.shut, 1)
	tasks := s.tasks
	s.tasks = nil
	s.mu.Unlock()

	s.detached = make([]A, 0, len(s.keys))
	for _, k := range s.keys {
		s.detached = append(s.detached, k.att)
	}
	s.keys = make(map[int]*key[A])

	for _, fn := range tasks {
		s.runTask(fn)
	}
	err1 := unix.Close(s.wakefd)
	err2 := unix.Close(s.epfd)
	if err1 != nil {
		return fmt.Errorf("close eventfd: %w", err1)
	}
	if err2 != nil {
		return fmt.Errorf("close epoll: %w", err2)
	}
	return nil
}
