// Package transport
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package transport

// Fixed options applied to every accepted or dialed connection.
const (
	ReceiveBufferSize = 32 * 1024
	SendBufferSize    = 32 * 1024
	KeepAlive         = true
	ReuseAddr         = true
)

// ListenBacklog is the backlog passed to listen(2).
const ListenBacklog = 4096
