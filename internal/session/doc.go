// Package session
// Author: momentics <momentics@gmail.com>
//
// Per-connection state for the engine. A Session owns one socket, its
// decode state and its outbound queue, and is pinned to one read worker
// and one write worker for its whole life. Sessions are tracked in a
// sharded Store so the engine can tear all of them down at shutdown.

package session
