// File: api/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Engine configuration shared by the server and client engines.

package api

import (
	"fmt"
	"log/slog"
	"runtime"
	"time"
)

// Supported networks.
const (
	NetworkTCP   = "tcp"
	NetworkTCP4  = "tcp4"
	NetworkTCP6  = "tcp6"
	NetworkVsock = "vsock"
)

// EngineConfig holds every engine parameter. Engines copy it at construction
// and never read the caller's value again.
type EngineConfig[T any] struct {
	Network         string             // "tcp", "tcp4", "tcp6" or "vsock"
	Host            string             // bind (server) or dial (client) host; empty binds all
	Port            int                // bind or dial port; 0 picks an ephemeral port on bind
	ThreadNum       int                // read workers and write workers each
	ProtocolFactory ProtocolFactory[T] // builds one Protocol per session
	Filters         []Filter[T]        // run in order around dispatch
	Processor       Processor[T]       // consumes decoded messages
	Server          bool               // role flag: true for server engines
	SelectTimeout   time.Duration      // upper bound of each selector wait
	ShutdownTimeout time.Duration      // how long Shutdown waits for workers
	ConnectTimeout  time.Duration      // client dial timeout
	CPUAffinity     bool               // pin each worker thread to a CPU
	Logger          *slog.Logger       // nil means slog.Default()
}

// DefaultEngineConfig returns sensible defaults for the given role.
func DefaultEngineConfig[T any](server bool) *EngineConfig[T] {
	return &EngineConfig[T]{
		Network:         NetworkTCP,
		Port:            8888,
		ThreadNum:       runtime.NumCPU(),
		Server:          server,
		SelectTimeout:   time.Second,
		ShutdownTimeout: 5 * time.Second,
		ConnectTimeout:  5 * time.Second,
	}
}

// Validate reports the first configuration problem found.
func (c *EngineConfig[T]) Validate() error {
	switch c.Network {
	case NetworkTCP, NetworkTCP4, NetworkTCP6, NetworkVsock:
	default:
		return fmt.Errorf("network %q: %w", c.Network, ErrInvalidArgument)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d: %w", c.Port, ErrInvalidArgument)
	}
	if !c.Server && c.Port == 0 {
		return fmt.Errorf("client port must be set: %w", ErrInvalidArgument)
	}
	if c.ThreadNum <= 0 {
		return fmt.Errorf("thread num %d: %w", c.ThreadNum, ErrInvalidArgument)
	}
	if c.ProtocolFactory == nil {
		return fmt.Errorf("protocol factory is nil: %w", ErrInvalidArgument)
	}
	if c.Processor == nil {
		return fmt.Errorf("processor is nil: %w", ErrInvalidArgument)
	}
	if c.SelectTimeout <= 0 {
		return fmt.Errorf("select timeout %v: %w", c.SelectTimeout, ErrInvalidArgument)
	}
	return nil
}

// Clone returns a copy with its own filter slice.
func (c *EngineConfig[T]) Clone() *EngineConfig[T] {
	cp := *c
	cp.Filters = append([]Filter[T](nil), c.Filters...)
	if cp.Logger == nil {
		cp.Logger = slog.Default()
	}
	return &cp
}

// Option customizes an EngineConfig before the engine is built.
type Option[T any] func(*EngineConfig[T])

// WithHost sets the bind or dial host.
func WithHost[T any](host string) Option[T] {
	return func(c *EngineConfig[T]) { c.Host = host }
}

// WithPort sets the bind or dial port.
func WithPort[T any](port int) Option[T] {
	return func(c *EngineConfig[T]) { c.Port = port }
}

// WithNetwork selects the socket family.
func WithNetwork[T any](network string) Option[T] {
	return func(c *EngineConfig[T]) { c.Network = network }
}

// WithThreadNum sets the number of read workers and of write workers.
func WithThreadNum[T any](n int) Option[T] {
	return func(c *EngineConfig[T]) { c.ThreadNum = n }
}

// WithProtocolFactory sets the per-session protocol factory.
func WithProtocolFactory[T any](f ProtocolFactory[T]) Option[T] {
	return func(c *EngineConfig[T]) { c.ProtocolFactory = f }
}

// WithFilters appends filters in FIFO order.
func WithFilters[T any](filters ...Filter[T]) Option[T] {
	return func(c *EngineConfig[T]) { c.Filters = append(c.Filters, filters...) }
}

// WithProcessor sets the message processor.
func WithProcessor[T any](p Processor[T]) Option[T] {
	return func(c *EngineConfig[T]) { c.Processor = p }
}

// WithLogger sets the engine logger.
func WithLogger[T any](l *slog.Logger) Option[T] {
	return func(c *EngineConfig[T]) { c.Logger = l }
}

// WithSelectTimeout bounds each selector wait.
func WithSelectTimeout[T any](d time.Duration) Option[T] {
	return func(c *EngineConfig[T]) { c.SelectTimeout = d }
}

// WithShutdownTimeout bounds how long Shutdown waits for workers to exit.
func WithShutdownTimeout[T any](d time.Duration) Option[T] {
	return func(c *EngineConfig[T]) { c.ShutdownTimeout = d }
}

// WithCPUAffinity pins worker threads to CPUs round-robin.
func WithCPUAffinity[T any](on bool) Option[T] {
	return func(c *EngineConfig[T]) { c.CPUAffinity = on }
}

// WithConnectTimeout bounds how long a client waits for its connection.
func WithConnectTimeout[T any](d time.Duration) Option[T] {
	return func(c *EngineConfig[T]) { c.ConnectTimeout = d }
}
