// File: transport/connection.go
// Author: momentics <momentics@gmail.com>
//
// Connection: exclusive owner of one client or CGI-peer socket.

package transport

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/momentics/hioload-httpd/api"
	"golang.org/x/sys/unix"
)

// Connection owns one socket descriptor together with its addresses, read
// buffer and last-activity timestamp. Close releases the descriptor.
type Connection struct {
	ID           uuid.UUID
	fd           *FD
	local        Address
	foreign      Address
	buf          *ReadBuffer
	lastActivity time.Time
}

// NewConnection takes ownership of fd.
func NewConnection(fd *FD, local, foreign Address) *Connection {
	return newConnection(fd, local, foreign, fdSource{fd: fd})
}

// NewConnectionWithSource builds a connection whose reads come from src
// instead of the descriptor. Used by tests and in-memory peers.
func NewConnectionWithSource(fd *FD, local, foreign Address, src Source) *Connection {
	return newConnection(fd, local, foreign, src)
}

func newConnection(fd *FD, local, foreign Address, src Source) *Connection {
	return &Connection{
		ID:           uuid.New(),
		fd:           fd,
		local:        local,
		foreign:      foreign,
		buf:          NewReadBuffer(src),
		lastActivity: time.Now(),
	}
}

// Fd returns the owned descriptor.
func (c *Connection) Fd() int { return c.fd.Get() }

// LocalAddress is the address the peer connected to.
func (c *Connection) LocalAddress() Address { return c.local }

// ForeignAddress is the peer's address.
func (c *Connection) ForeignAddress() Address { return c.foreign }

// ReadBuffer returns the connection's accumulated input.
func (c *Connection) ReadBuffer() *ReadBuffer { return c.buf }

// LastActivity returns the time of the last successful read or write.
func (c *Connection) LastActivity() time.Time { return c.lastActivity }

// Touch records activity at t.
func (c *Connection) Touch(t time.Time) { c.lastActivity = t }

// Write performs one non-blocking write.
func (c *Connection) Write(p []byte) (int, error) {
	n, err := unix.Write(c.fd.Get(), p)
	if err != nil {
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
			return 0, api.ErrWouldBlock
		}
		return 0, err
	}
	if n > 0 {
		c.Touch(time.Now())
	}
	return n, nil
}

// CloseWrite half-closes the sending side so the peer sees end of stream.
func (c *Connection) CloseWrite() error {
	return unix.Shutdown(c.fd.Get(), unix.SHUT_WR)
}

// Close releases the descriptor.
func (c *Connection) Close() error {
	return c.fd.Close()
}
