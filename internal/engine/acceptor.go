// File: internal/engine/acceptor.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Acceptor drains a listening socket in bounded batches and hands each new
// connection to a handler.

package engine

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"code.hybscloud.com/iox"
	"github.com/momentics/hioload-nio/internal/transport"
	"github.com/momentics/hioload-nio/reactor"
)

// AcceptBatch bounds the connections taken per readiness event so one
// accept storm cannot starve the rest of the loop.
const AcceptBatch = 1000

// acceptBatch calls accept until it would block, fails, or limit
// connections have been handed to handle. It returns how many were handled.
func acceptBatch(accept func() (int, string, error), limit int, handle func(fd int, remote string)) (int, error) {
	n := 0
	for n < limit {
		fd, remote, err := accept()
		if err != nil {
			if iox.IsWouldBlock(err) {
				return n, nil
			}
			return n, err
		}
		handle(fd, remote)
		n++
	}
	return n, nil
}

// Acceptor owns a listening descriptor and its selector.
type Acceptor struct {
	lfd     int
	sel     *reactor.Selector[struct{}]
	handle  func(fd int, remote string)
	timeout time.Duration
	logger  *slog.Logger

	stopping int32
	wg       sync.WaitGroup
	once     sync.Once
}

// NewAcceptor registers lfd for read readiness. handle is called on the
// acceptor goroutine for every connection, after the socket options are
// applied.
func NewAcceptor(lfd int, timeout time.Duration, logger *slog.Logger, handle func(fd int, remote string)) (*Acceptor, error) {
	sel, err := reactor.NewSelector[struct{}](16)
	if err != nil {
		return nil, err
	}
	if err := sel.Register(lfd, reactor.InterestRead, struct{}{}); err != nil {
		sel.Close()
		return nil, err
	}
	a := &Acceptor{
		lfd:     lfd,
		sel:     sel,
		handle:  handle,
		timeout: timeout,
		logger:  logger.With("component", "acceptor"),
	}
	sel.OnPanic = func(v any) { a.logger.Error("acceptor task panicked", "panic", v) }
	return a, nil
}

// Start launches the accept loop.
func (a *Acceptor) Start() {
	a.wg.Add(1)
	go a.run()
}

func (a *Acceptor) run() {
	defer a.wg.Done()
	defer a.release()
	for atomic.LoadInt32(&a.stopping) == 0 {
		ready, err := a.sel.Wait(a.timeout)
		if err != nil {
			if atomic.LoadInt32(&a.stopping) == 1 {
				return
			}
			a.logger.Warn("selector wait failed", "error", err)
			continue
		}
		for range ready {
			n, err := acceptBatch(a.accept, AcceptBatch, a.admit)
			if err != nil {
				a.logger.Warn("accept failed", "error", err, "accepted", n)
			}
		}
	}
}

func (a *Acceptor) accept() (int, string, error) {
	return transport.Accept(a.lfd)
}

func (a *Acceptor) admit(fd int, remote string) {
	if err := transport.ApplySocketOptions(fd); err != nil {
		a.logger.Warn("socket options failed", "remote", remote, "error", err)
		_ = transport.Close(fd)
		return
	}
	a.handle(fd, remote)
}

func (a *Acceptor) release() {
	a.once.Do(func() {
		_ = a.sel.Unregister(a.lfd)
		if err := a.sel.Close(); err != nil {
			a.logger.Warn("selector close failed", "error", err)
		}
		if err := transport.Close(a.lfd); err != nil {
			a.logger.Debug("close listener failed", "error", err)
		}
	})
}

// Stop ends the accept loop and closes the listener. Idempotent. Safe to
// call on an acceptor that was never started.
func (a *Acceptor) Stop() {
	if !atomic.CompareAndSwapInt32(&a.stopping, 0, 1) {
		a.wg.Wait()
		return
	}
	_ = a.sel.Wakeup()
	a.wg.Wait()
	a.release()
}
