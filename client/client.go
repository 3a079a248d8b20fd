// File: client/client.go
// Package client runs a client-role engine owning one outbound connection.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package client

import (
	"fmt"
	"sync"

	"github.com/momentics/hioload-nio/api"
	"github.com/momentics/hioload-nio/control"
	"github.com/momentics/hioload-nio/internal/engine"
	"github.com/momentics/hioload-nio/internal/session"
	"github.com/momentics/hioload-nio/internal/transport"
)

// Client connects to one server and serves the connection with the same
// worker pool and filters a server uses.
type Client[T any] struct {
	cfg       *api.EngineConfig[T]
	lifecycle control.Lifecycle

	mu      sync.Mutex
	eng     *engine.Engine[T]
	session *session.Session[T]
}

// NewClient builds a client from cfg (DefaultEngineConfig(false) when nil)
// and opts. The configuration is copied.
func NewClient[T any](cfg *api.EngineConfig[T], opts ...api.Option[T]) *Client[T] {
	if cfg == nil {
		cfg = api.DefaultEngineConfig[T](false)
	}
	cp := cfg.Clone()
	for _, o := range opts {
		o(cp)
	}
	return &Client[T]{cfg: cp}
}

// Start dials the server and waits until the setup dispatcher has built
// the session and queued its worker registrations.
func (c *Client[T]) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfg.Server {
		return fmt.Errorf("start client: %w", api.ErrInvalidRole)
	}
	if err := c.cfg.Validate(); err != nil {
		return fmt.Errorf("start client: %w", err)
	}
	if err := c.lifecycle.Transition(control.StatusStarting); err != nil {
		return err
	}
	if err := c.open(); err != nil {
		c.teardown()
		return fmt.Errorf("start client: %w", err)
	}
	if err := c.lifecycle.Transition(control.StatusRunning); err != nil {
		c.teardown()
		return err
	}
	c.cfg.Logger.Info(fmt.Sprintf("Running with %d", c.cfg.Port), "component", "client", "remote", c.session.RemoteAddr())
	if pi, ok := c.cfg.Processor.(api.PoolInitializer); ok {
		pi.Init(c.cfg.ThreadNum << 1)
	}
	return nil
}

type admitted[T any] struct {
	s   *session.Session[T]
	err error
}

func (c *Client[T]) open() error {
	eng := engine.New(c.cfg)
	if err := eng.Open(); err != nil {
		return err
	}
	c.eng = eng

	fd, remote, err := transport.Dial(c.cfg.Network, c.cfg.Host, c.cfg.Port, c.cfg.ConnectTimeout)
	if err != nil {
		return err
	}
	done := make(chan admitted[T], 1)
	eng.Admit(fd, remote, func(s *session.Session[T], err error) {
		done <- admitted[T]{s, err}
	})
	r := <-done
	if r.err != nil {
		return r.err
	}
	c.session = r.s
	return nil
}

func (c *Client[T]) teardown() {
	_ = c.lifecycle.Transition(control.StatusStopping)
	if c.eng != nil {
		if err := c.eng.Close(); err != nil {
			c.cfg.Logger.Warn("engine close failed", "component", "client", "error", err)
		}
	}
	_ = c.lifecycle.Transition(control.StatusStopped)
}

// Session returns the processor's handle for the connection, nil before
// Start succeeds.
func (c *Client[T]) Session() api.MessageSession[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	return c.session.MessageSession()
}

// Transport returns the transport session, nil before Start succeeds.
func (c *Client[T]) Transport() api.TransportSession[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	return c.session
}

// Status returns the lifecycle status.
func (c *Client[T]) Status() control.Status { return c.lifecycle.Status() }

// Shutdown closes the connection and stops the workers. Pending
// SendWithResponse calls fail with api.ErrSessionClosed.
func (c *Client[T]) Shutdown() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.lifecycle.Status() {
	case control.StatusStopping, control.StatusStopped:
		return nil
	}
	if err := c.lifecycle.Transition(control.StatusStopping); err != nil {
		return err
	}
	c.cfg.Processor.Shutdown()
	if ss, ok := c.session.MessageSession().(*SyncSession[T]); ok {
		ss.Fail(api.ErrSessionClosed)
	}
	err := c.eng.Close()
	_ = c.lifecycle.Transition(control.StatusStopped)
	return err
}
