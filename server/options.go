// File: server/options.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import "github.com/momentics/hioload-nio/api"

// Option customizes the server configuration before Start.
type Option[T any] = api.Option[T]

// WithAddr sets host and port in one call.
func WithAddr[T any](host string, port int) Option[T] {
	return func(c *api.EngineConfig[T]) {
		c.Host = host
		c.Port = port
	}
}

// WithMiddleware attaches filters in FIFO order.
func WithMiddleware[T any](filters ...api.Filter[T]) Option[T] {
	return api.WithFilters(filters...)
}
