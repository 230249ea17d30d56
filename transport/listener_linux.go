//go:build linux
// +build linux

// File: transport/listener_linux.go
// Author: momentics <momentics@gmail.com>
//
// Non-blocking IPv4 listening socket.

package transport

import (
	"errors"
	"fmt"

	"github.com/momentics/hioload-httpd/api"
	"golang.org/x/sys/unix"
)

const defaultBacklog = 1024

// Listener is a bound, non-blocking listening socket.
type Listener struct {
	fd   *FD
	addr Address
}

// Listen binds addr with SO_REUSEADDR and starts listening.
func Listen(addr Address) (*Listener, error) {
	sa, err := addr.sockaddr()
	if err != nil {
		return nil, err
	}
	raw, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return nil, fmt.Errorf("socket create: %w", err)
	}
	fd := NewFD(raw)
	if err := unix.SetsockoptInt(raw, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		_ = fd.Close()
		return nil, fmt.Errorf("setsockopt SO_REUSEADDR: %w", err)
	}
	if err := unix.Bind(raw, sa); err != nil {
		_ = fd.Close()
		return nil, fmt.Errorf("bind %s: %w", addr, err)
	}
	if err := unix.Listen(raw, defaultBacklog); err != nil {
		_ = fd.Close()
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	bound := addr
	if got, err := unix.Getsockname(raw); err == nil {
		bound = addressFromSockaddr(got)
	}
	return &Listener{fd: fd, addr: bound}, nil
}

// Fd returns the listening descriptor.
func (l *Listener) Fd() int { return l.fd.Get() }

// Address returns the bound address (with the kernel-chosen port when 0
// was requested).
func (l *Listener) Address() Address { return l.addr }

// Accept accepts one pending connection without blocking.
func (l *Listener) Accept() (*Connection, error) {
	raw, sa, err := unix.Accept4(l.fd.Get(), unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err != nil {
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) || errors.Is(err, unix.ECONNABORTED) {
			return nil, api.ErrWouldBlock
		}
		return nil, api.Wrap(api.KindIOUnknown, "accept", err)
	}
	fd := NewFD(raw)
	local := l.addr
	if got, err := unix.Getsockname(raw); err == nil {
		local = addressFromSockaddr(got)
	}
	return NewConnection(fd, local, addressFromSockaddr(sa)), nil
}

// Close closes the listening socket.
func (l *Listener) Close() error {
	return l.fd.Close()
}

// SocketPair creates a connected AF_UNIX stream pair, both ends close-on-exec
// and the first end non-blocking.
func SocketPair() (parent, child *FD, err error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("socketpair: %w", err)
	}
	parent, child = NewFD(fds[0]), NewFD(fds[1])
	if err := unix.SetNonblock(fds[0], true); err != nil {
		_ = parent.Close()
		_ = child.Close()
		return nil, nil, fmt.Errorf("set nonblock: %w", err)
	}
	return parent, child, nil
}
