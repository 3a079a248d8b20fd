// File: server/server.go
// Package server runs a server-role engine.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"fmt"

	"github.com/momentics/hioload-nio/api"
	"github.com/momentics/hioload-nio/control"
	"github.com/momentics/hioload-nio/internal/engine"
	"github.com/momentics/hioload-nio/internal/transport"
)

// NewServer builds a server from cfg (DefaultEngineConfig(true) when nil)
// and opts. The configuration is copied; later changes to cfg are ignored.
func NewServer[T any](cfg *api.EngineConfig[T], opts ...Option[T]) *Server[T] {
	if cfg == nil {
		cfg = api.DefaultEngineConfig[T](true)
	}
	cp := cfg.Clone()
	for _, o := range opts {
		o(cp)
	}
	s := &Server[T]{cfg: cp}
	s.lifecycle.OnChange(func(from, to control.Status) {
		cp.Logger.Debug("status changed", "component", "server", "from", from.String(), "to", to.String())
	})
	return s
}

// Start validates the configuration, binds the listener and starts the
// workers and the accept loop. A failure leaves nothing running and the
// server STOPPED.
func (s *Server[T]) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.cfg.Server {
		return fmt.Errorf("start server: %w", api.ErrInvalidRole)
	}
	if err := s.cfg.Validate(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	if err := s.lifecycle.Transition(control.StatusStarting); err != nil {
		return err
	}
	if err := s.open(); err != nil {
		s.teardown()
		return fmt.Errorf("start server: %w", err)
	}
	if err := s.lifecycle.Transition(control.StatusRunning); err != nil {
		s.teardown()
		return err
	}
	s.cfg.Logger.Info(fmt.Sprintf("Running with %d", s.port), "component", "server", "addr", s.addr)
	if pi, ok := s.cfg.Processor.(api.PoolInitializer); ok {
		pi.Init(s.cfg.ThreadNum << 1)
	}
	return nil
}

func (s *Server[T]) open() error {
	eng := engine.New(s.cfg)
	if err := eng.Open(); err != nil {
		return err
	}
	s.eng = eng

	lfd, err := transport.Listen(s.cfg.Network, s.cfg.Host, s.cfg.Port)
	if err != nil {
		return err
	}
	if s.port, err = transport.LocalPort(lfd); err != nil {
		_ = transport.Close(lfd)
		return err
	}
	if s.addr, err = transport.LocalAddr(lfd); err != nil {
		_ = transport.Close(lfd)
		return err
	}
	acc, err := engine.NewAcceptor(lfd, s.cfg.SelectTimeout, s.cfg.Logger, func(fd int, remote string) {
		eng.Admit(fd, remote, nil)
	})
	if err != nil {
		_ = transport.Close(lfd)
		return err
	}
	s.acceptor = acc
	eng.Probes().RegisterProbe("server.status", func() any { return s.lifecycle.Status().String() })
	acc.Start()
	return nil
}

// teardown stops whatever open managed to start and ends in STOPPED.
func (s *Server[T]) teardown() {
	_ = s.lifecycle.Transition(control.StatusStopping)
	if s.acceptor != nil {
		s.acceptor.Stop()
	}
	if s.eng != nil {
		if err := s.eng.Close(); err != nil {
			s.cfg.Logger.Warn("engine close failed", "component", "server", "error", err)
		}
	}
	_ = s.lifecycle.Transition(control.StatusStopped)
}

// Shutdown stops accepting, closes every session and stops the workers,
// waiting at most ShutdownTimeout. The processor's Shutdown runs first.
// Calling Shutdown on a stopped server is a no-op.
func (s *Server[T]) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.lifecycle.Status() {
	case control.StatusStopping, control.StatusStopped:
		return nil
	}
	if err := s.lifecycle.Transition(control.StatusStopping); err != nil {
		return err
	}
	s.cfg.Processor.Shutdown()
	s.acceptor.Stop()
	err := s.eng.Close()
	_ = s.lifecycle.Transition(control.StatusStopped)
	s.cfg.Logger.Info("stopped", "component", "server", "addr", s.addr)
	return err
}

// Status returns the lifecycle status.
func (s *Server[T]) Status() control.Status { return s.lifecycle.Status() }

// OnStatusChange registers fn to run after every status transition.
func (s *Server[T]) OnStatusChange(fn func(from, to control.Status)) {
	s.lifecycle.OnChange(fn)
}

// Addr returns the bound address once started.
func (s *Server[T]) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Port returns the bound port once started. Useful with port 0.
func (s *Server[T]) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

// Stats returns the current status, session count and engine metrics.
func (s *Server[T]) Stats() Stats {
	s.mu.Lock()
	eng, addr := s.eng, s.addr
	s.mu.Unlock()
	st := Stats{Status: s.lifecycle.Status(), Addr: addr}
	if eng != nil {
		st.Sessions = eng.Sessions()
		st.Metrics = eng.Metrics().GetSnapshot()
	}
	return st
}

// DumpState runs every debug probe.
func (s *Server[T]) DumpState() map[string]any {
	s.mu.Lock()
	eng := s.eng
	s.mu.Unlock()
	if eng == nil {
		return map[string]any{"server.status": s.lifecycle.Status().String()}
	}
	return eng.Probes().DumpState()
}
