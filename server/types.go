// File: server/types.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"errors"

	"github.com/momentics/hioload-httpd/core"
)

var (
	// ErrAlreadyRunning is returned by Run when the loop is already active.
	ErrAlreadyRunning = errors.New("server already running")
	// ErrClosed is returned by Run after Close.
	ErrClosed = errors.New("server closed")
)

// Publisher receives a state snapshot after every sweep. It is called on
// the loop goroutine and must not block.
type Publisher interface {
	Publish(core.Snapshot)
}
