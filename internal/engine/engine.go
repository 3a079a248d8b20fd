// File: internal/engine/engine.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Engine ties the worker pool, the setup dispatcher and the session store
// together. Server and client engines wrap it with their own connection
// source.

package engine

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/momentics/hioload-nio/api"
	"github.com/momentics/hioload-nio/control"
	"github.com/momentics/hioload-nio/internal/concurrency"
	"github.com/momentics/hioload-nio/internal/session"
	"github.com/momentics/hioload-nio/internal/transport"
	"github.com/momentics/hioload-nio/pool"
	"github.com/momentics/hioload-nio/reactor"
)

// Metric names published by an Engine.
const (
	MetricAccepted      = "sessions.accepted"
	MetricActive        = "sessions.active"
	MetricClosed        = "sessions.closed"
	MetricMessages      = "messages.decoded"
	MetricBytesIn       = "bytes.in"
	MetricBytesOut      = "bytes.out"
	MetricDecodeErrors  = "errors.decode"
	MetricProcessErrors = "errors.process"
	MetricSetupErrors   = "errors.setup"
)

type counters struct {
	accepted, active, closed                 *control.Counter
	messages, bytesIn, bytesOut              *control.Counter
	decodeErrors, processErrors, setupErrors *control.Counter
}

// Engine is the transport core for one configuration.
type Engine[T any] struct {
	cfg     *api.EngineConfig[T]
	logger  *slog.Logger
	filters api.FilterChain[T]

	pool    *Pool[T]
	setup   *concurrency.Executor
	store   *session.Store[T]
	serials session.SerialCounter
	buffers *pool.SlabPool

	metrics *control.MetricsRegistry
	probes  *control.DebugProbes
	c       counters

	closeOnce sync.Once
	closeErr  error
}

// New builds an engine around a validated configuration copy. Nothing is
// started until Open.
func New[T any](cfg *api.EngineConfig[T]) *Engine[T] {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	reg := control.NewMetricsRegistry()
	e := &Engine[T]{
		cfg:     cfg,
		logger:  logger,
		filters: api.NewFilterChain(cfg.Filters...),
		store:   session.NewStore[T](cfg.ThreadNum * 4),
		buffers: pool.NewSlabPool(),
		metrics: reg,
		probes:  control.NewDebugProbes(),
		c: counters{
			accepted:      reg.Counter(MetricAccepted),
			active:        reg.Counter(MetricActive),
			closed:        reg.Counter(MetricClosed),
			messages:      reg.Counter(MetricMessages),
			bytesIn:       reg.Counter(MetricBytesIn),
			bytesOut:      reg.Counter(MetricBytesOut),
			decodeErrors:  reg.Counter(MetricDecodeErrors),
			processErrors: reg.Counter(MetricProcessErrors),
			setupErrors:   reg.Counter(MetricSetupErrors),
		},
	}
	control.RegisterPlatformProbes(e.probes)
	e.probes.RegisterProbe("sessions.live", func() any { return e.store.Len() })
	e.probes.RegisterProbe("config.threads", func() any { return cfg.ThreadNum })
	e.probes.RegisterProbe("buffers", func() any { return e.buffers.Stats() })
	return e
}

// Open creates the selectors, starts every worker and the setup
// dispatcher. On failure nothing is left running.
func (e *Engine[T]) Open() error {
	workers, err := newPool(e, e.cfg.ThreadNum, e.cfg.CPUAffinity)
	if err != nil {
		return err
	}
	e.pool = workers
	e.setup = concurrency.NewExecutor(1, -1, e.logger)
	e.probes.RegisterProbe("setup.executor", func() any { return e.setup.Stats() })
	workers.Start()
	return nil
}

// Logger returns the engine logger.
func (e *Engine[T]) Logger() *slog.Logger { return e.logger }

// Metrics returns the engine's metrics registry.
func (e *Engine[T]) Metrics() *control.MetricsRegistry { return e.metrics }

// Probes returns the engine's debug probes.
func (e *Engine[T]) Probes() *control.DebugProbes { return e.probes }

// Sessions returns the number of live sessions.
func (e *Engine[T]) Sessions() int { return e.store.Len() }

// Admit hands a connected socket to the setup dispatcher. done, if not
// nil, runs on the dispatcher with the outcome. Admit never waits for the
// setup itself.
func (e *Engine[T]) Admit(fd int, remote string, done func(*session.Session[T], error)) {
	e.c.accepted.Inc()
	err := e.setup.Submit(func() {
		s, err := e.setupSession(fd, remote)
		if err != nil {
			e.c.setupErrors.Inc()
			e.logger.Warn("session setup failed", "remote", remote, "error", err)
		}
		if done != nil {
			done(s, err)
		}
	})
	if err != nil {
		e.c.setupErrors.Inc()
		e.logger.Warn("session setup rejected", "remote", remote, "error", err)
		_ = transport.Close(fd)
		if done != nil {
			done(nil, err)
		}
	}
}

// setupSession runs on the setup dispatcher. It builds the session, binds
// it to a worker pair, registers it for writes, lets the processor attach
// its handle, then enables reads. A failure or panic discards the session.
func (e *Engine[T]) setupSession(fd int, remote string) (s *session.Session[T], err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("session setup panic: %v", r)
		}
		if err == nil {
			return
		}
		if s != nil {
			s.Close()
			s = nil
		} else {
			_ = transport.Close(fd)
		}
	}()

	proto := e.cfg.ProtocolFactory()
	if proto == nil {
		return nil, fmt.Errorf("protocol factory returned nil: %w", api.ErrInvalidArgument)
	}
	s = session.New(session.Config[T]{
		ID:        e.serials.Next(),
		FD:        fd,
		Remote:    remote,
		Protocol:  proto,
		Logger:    e.logger,
		OnDestroy: e.onDestroy,
		Buffers:   e.buffers,
	})
	rw, ww := e.pool.Pick()
	s.Bind(rw.sel, ww.sel)
	e.store.Add(s)
	e.c.active.Inc()

	wsel := ww.sel
	wsel.Exec(func() {
		if s.Closed() {
			return
		}
		if err := wsel.Register(fd, s.WriteInterest(), s); err != nil {
			s.Logger().Warn("write registration failed", "error", err)
			s.Close()
		}
	})

	s.SetMessageSession(e.cfg.Processor.InitSession(s))

	rsel := rw.sel
	rsel.Exec(func() {
		if s.Closed() {
			return
		}
		if err := rsel.Register(fd, reactor.InterestRead, s); err != nil {
			s.Logger().Warn("read registration failed", "error", err)
			s.Close()
		}
	})
	s.Logger().Debug("session ready", "read_worker", rw.id, "write_worker", ww.id)
	return s, nil
}

func (e *Engine[T]) onDestroy(s *session.Session[T]) {
	e.store.Delete(s.ID())
	e.c.active.Add(-1)
	e.c.closed.Inc()
	if ms := s.MessageSession(); ms != nil {
		if sc, ok := e.cfg.Processor.(api.SessionCloser[T]); ok {
			e.closeSession(s, sc, ms)
		}
	}
}

func (e *Engine[T]) closeSession(s *session.Session[T], sc api.SessionCloser[T], ms api.MessageSession[T]) {
	defer func() {
		if r := recover(); r != nil {
			s.Logger().Error("close session hook panicked", "panic", r)
		}
	}()
	sc.CloseSession(ms)
}

// Close stops the setup dispatcher, closes every session and stops the
// workers, waiting at most ShutdownTimeout for them. Idempotent.
func (e *Engine[T]) Close() error {
	e.closeOnce.Do(func() {
		if e.setup != nil {
			e.setup.Close()
		}
		if n := e.store.CloseAll(); n > 0 {
			e.logger.Info("closing sessions", "count", n)
		}
		if e.pool != nil {
			e.closeErr = e.pool.Stop(e.cfg.ShutdownTimeout)
		}
	})
	return e.closeErr
}
