// File: internal/transport/doc.go
// Package transport
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Raw nonblocking socket primitives for hioload-nio: listening sockets,
// batched accept, the fixed per-connection socket options, nonblocking
// read/write that report EAGAIN as iox.ErrWouldBlock, and client connect.
// Linux implementation on golang.org/x/sys/unix; other platforms get stubs.

package transport
