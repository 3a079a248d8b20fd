// internal/transport/transport_linux.go
//go:build linux
// +build linux

//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Linux sockets on golang.org/x/sys/unix.

package transport

import (
	"fmt"
	"io"
	"net"
	"strconv"
	"syscall"
	"time"

	"code.hybscloud.com/iox"
	"github.com/mdlayher/vsock"
	"github.com/momentics/hioload-nio/api"
	"golang.org/x/sys/unix"
)

// resolve maps network/host/port onto a socket domain and address.
func resolve(network, host string, port int) (int, unix.Sockaddr, error) {
	if port < 0 || port > 65535 {
		return 0, nil, fmt.Errorf("port %d: %w", port, api.ErrInvalidArgument)
	}
	switch network {
	case api.NetworkVsock:
		cid, err := vsockContextID(host)
		if err != nil {
			return 0, nil, err
		}
		return unix.AF_VSOCK, &unix.SockaddrVM{CID: cid, Port: uint32(port)}, nil
	case api.NetworkTCP, api.NetworkTCP4, api.NetworkTCP6:
	default:
		return 0, nil, fmt.Errorf("network %q: %w", network, api.ErrNotSupported)
	}

	if host == "" {
		if network == api.NetworkTCP6 {
			return unix.AF_INET6, &unix.SockaddrInet6{Port: port}, nil
		}
		return unix.AF_INET, &unix.SockaddrInet4{Port: port}, nil
	}
	addr, err := net.ResolveTCPAddr(network, net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return 0, nil, fmt.Errorf("resolve %s: %w", host, err)
	}
	if ip4 := addr.IP.To4(); ip4 != nil && network != api.NetworkTCP6 {
		sa := &unix.SockaddrInet4{Port: addr.Port}
		copy(sa.Addr[:], ip4)
		return unix.AF_INET, sa, nil
	}
	sa := &unix.SockaddrInet6{Port: addr.Port}
	copy(sa.Addr[:], addr.IP.To16())
	if addr.Zone != "" {
		if ifi, err := net.InterfaceByName(addr.Zone); err == nil {
			sa.ZoneId = uint32(ifi.Index)
		}
	}
	return unix.AF_INET6, sa, nil
}

// vsockContextID parses host as a numeric context ID; an empty host means
// the local machine's context ID.
func vsockContextID(host string) (uint32, error) {
	if host == "" {
		cid, err := vsock.ContextID()
		if err != nil {
			return 0, fmt.Errorf("vsock context id: %w", err)
		}
		return cid, nil
	}
	cid, err := strconv.ParseUint(host, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("vsock context id %q: %w", host, api.ErrInvalidArgument)
	}
	return uint32(cid), nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Listen opens a nonblocking listening socket.
func Listen(network, host string, port int) (int, error) {
	domain, sa, err := resolve(network, host, port)
	if err != nil {
		return -1, err
	}
	fd, err := unix.Socket(domain, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, fmt.Errorf("socket: %w", err)
	}
	if domain != unix.AF_VSOCK {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
			unix.Close(fd)
			return -1, fmt.Errorf("setsockopt SO_REUSEADDR: %w", err)
		}
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("bind %s: %w", SockaddrString(sa), err)
	}
	if err := unix.Listen(fd, ListenBacklog); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("listen: %w", err)
	}
	return fd, nil
}

// Accept takes one pending connection from a nonblocking listener. It
// returns iox.ErrWouldBlock when the backlog is empty.
func Accept(lfd int) (int, string, error) {
	for {
		fd, sa, err := unix.Accept4(lfd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		switch err {
		case nil:
			return fd, SockaddrString(sa), nil
		case unix.EINTR, unix.ECONNABORTED:
			continue
		case unix.EAGAIN:
			return -1, "", iox.ErrWouldBlock
		default:
			return -1, "", fmt.Errorf("accept: %w", err)
		}
	}
}

// ApplySocketOptions sets the fixed per-connection options: address reuse,
// 32 KiB receive and send buffers, keep-alive.
func ApplySocketOptions(fd int) error {
	opts := []struct {
		name  string
		opt   int
		value int
	}{
		{"SO_REUSEADDR", unix.SO_REUSEADDR, boolInt(ReuseAddr)},
		{"SO_RCVBUF", unix.SO_RCVBUF, ReceiveBufferSize},
		{"SO_SNDBUF", unix.SO_SNDBUF, SendBufferSize},
		{"SO_KEEPALIVE", unix.SO_KEEPALIVE, boolInt(KeepAlive)},
	}
	for _, o := range opts {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, o.opt, o.value); err != nil {
			return fmt.Errorf("setsockopt %s: %w", o.name, err)
		}
	}
	return nil
}

// Read performs one nonblocking read. It returns io.EOF on orderly
// shutdown by the peer and iox.ErrWouldBlock when nothing is available.
func Read(fd int, p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for {
		n, err := unix.Read(fd, p)
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN:
			return 0, iox.ErrWouldBlock
		case err != nil:
			return 0, fmt.Errorf("read: %w", err)
		case n == 0:
			return 0, io.EOF
		}
		return n, nil
	}
}

// Write performs one nonblocking write and may write fewer than len(p)
// bytes. It returns iox.ErrWouldBlock when the send buffer is full.
func Write(fd int, p []byte) (int, error) {
	for {
		n, err := unix.Write(fd, p)
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN:
			return 0, iox.ErrWouldBlock
		case err != nil:
			return 0, fmt.Errorf("write: %w", err)
		}
		return n, nil
	}
}

// Close closes a descriptor.
func Close(fd int) error {
	return unix.Close(fd)
}

// Dial connects a nonblocking socket, waiting at most timeout for the
// connection to complete. The fixed socket options are applied.
func Dial(network, host string, port int, timeout time.Duration) (int, string, error) {
	domain, sa, err := resolve(network, host, port)
	if err != nil {
		return -1, "", err
	}
	fd, err := unix.Socket(domain, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, "", fmt.Errorf("socket: %w", err)
	}
	if err := ApplySocketOptions(fd); err != nil && domain != unix.AF_VSOCK {
		unix.Close(fd)
		return -1, "", err
	}
	if err := connect(fd, sa, timeout); err != nil {
		unix.Close(fd)
		return -1, "", fmt.Errorf("connect %s: %w", SockaddrString(sa), err)
	}
	return fd, SockaddrString(sa), nil
}

func connect(fd int, sa unix.Sockaddr, timeout time.Duration) error {
	err := unix.Connect(fd, sa)
	if err == nil {
		return nil
	}
	if err != unix.EINPROGRESS && err != unix.EINTR {
		return err
	}
	ms := int(timeout / time.Millisecond)
	if ms <= 0 {
		ms = -1
	}
	deadline := time.Now().Add(timeout)
	for {
		fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLOUT}}
		n, err := unix.Poll(fds, ms)
		if err == unix.EINTR {
			if timeout > 0 {
				if ms = int(time.Until(deadline) / time.Millisecond); ms <= 0 {
					return api.ErrOperationTimeout
				}
			}
			continue
		}
		if err != nil {
			return err
		}
		if n == 0 {
			return api.ErrOperationTimeout
		}
		break
	}
	soErr, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return err
	}
	if soErr != 0 {
		return syscall.Errno(soErr)
	}
	return nil
}

// LocalAddr returns the bound address of fd.
func LocalAddr(fd int) (string, error) {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return "", fmt.Errorf("getsockname: %w", err)
	}
	return SockaddrString(sa), nil
}

// LocalPort returns the bound port of fd.
func LocalPort(fd int) (int, error) {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return 0, fmt.Errorf("getsockname: %w", err)
	}
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return a.Port, nil
	case *unix.SockaddrInet6:
		return a.Port, nil
	case *unix.SockaddrVM:
		return int(a.Port), nil
	}
	return 0, api.ErrNotSupported
}

// SockaddrString renders sa in host:port form.
func SockaddrString(sa unix.Sockaddr) string {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return net.JoinHostPort(net.IP(a.Addr[:]).String(), strconv.Itoa(a.Port))
	case *unix.SockaddrInet6:
		return net.JoinHostPort(net.IP(a.Addr[:]).String(), strconv.Itoa(a.Port))
	case *unix.SockaddrVM:
		return net.JoinHostPort(strconv.FormatUint(uint64(a.CID), 10), strconv.FormatUint(uint64(a.Port), 10))
	case *unix.SockaddrUnix:
		return a.Name
	case nil:
		return ""
	}
	return fmt.Sprintf("%v", sa)
}
