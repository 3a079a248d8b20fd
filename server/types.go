// File: server/types.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"sync"

	"github.com/momentics/hioload-nio/api"
	"github.com/momentics/hioload-nio/control"
	"github.com/momentics/hioload-nio/internal/engine"
)

// Server is a server-role engine: one listener, one accept loop, the
// worker pool and the setup dispatcher.
type Server[T any] struct {
	cfg       *api.EngineConfig[T]
	lifecycle control.Lifecycle

	mu       sync.Mutex // serializes Start and Shutdown
	eng      *engine.Engine[T]
	acceptor *engine.Acceptor
	addr     string
	port     int
}

// Stats is a point-in-time view of a running server.
type Stats struct {
	Status   control.Status
	Addr     string
	Sessions int
	Metrics  map[string]any
}
