// internal/transport/transport_stub.go
//go:build !linux
// +build !linux

//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Socket primitives are Linux only.

package transport

import (
	"time"

	"github.com/momentics/hioload-nio/api"
)

func Listen(network, host string, port int) (int, error) { return -1, api.ErrNotSupported }

func Accept(lfd int) (int, string, error) { return -1, "", api.ErrNotSupported }

func ApplySocketOptions(fd int) error { return api.ErrNotSupported }

func Read(fd int, p []byte) (int, error) { return 0, api.ErrNotSupported }

func Write(fd int, p []byte) (int, error) { return 0, api.ErrNotSupported }

func Close(fd int) error { return api.ErrNotSupported }

func Dial(network, host string, port int, timeout time.Duration) (int, string, error) {
	return -1, "", api.ErrNotSupported
}

func LocalAddr(fd int) (string, error) { return "", api.ErrNotSupported }

func LocalPort(fd int) (int, error) { return 0, api.ErrNotSupported }
