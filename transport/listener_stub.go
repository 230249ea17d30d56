//go:build !linux
// +build !linux

// File: transport/listener_stub.go
// Author: momentics <momentics@gmail.com>

package transport

import "github.com/momentics/hioload-httpd/api"

// Listener is unavailable outside Linux.
type Listener struct{}

// Listen returns an error for unsupported platforms.
func Listen(Address) (*Listener, error) { return nil, api.ErrNotSupported }

func (l *Listener) Fd() int                      { return -1 }
func (l *Listener) Address() Address             { return Address{} }
func (l *Listener) Accept() (*Connection, error) { return nil, api.ErrNotSupported }
func (l *Listener) Close() error                 { return nil }

// SocketPair returns an error for unsupported platforms.
func SocketPair() (*FD, *FD, error) { return nil, nil, api.ErrNotSupported }
