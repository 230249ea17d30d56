// File: core/cgi_process.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package core

import (
	"errors"
	"time"

	"github.com/momentics/hioload-httpd/protocol/httpmsg"
)

// Exit statuses with a meaning for the response.
const (
	ExitNotFound   = 127
	ExitExecFailed = 126
	exitUnknown    = -1
)

// CgiProcess tracks one spawned child.
type CgiProcess struct {
	Pid       int
	ClientFd  int
	PeerFd    int
	StartedAt time.Time
	// Ended is set once the child has been waited for.
	Ended    bool
	ExitCode int
	// Forwarded is set once the response has been handed to the client.
	Forwarded bool
}

// MarkExited records a reaped exit status.
func (p *CgiProcess) MarkExited(code int) {
	p.Ended = true
	p.ExitCode = code
}

// spawnFailureStatus maps a synchronous exec failure to a response.
func spawnFailureStatus(err error) httpmsg.Status {
	switch {
	case errors.Is(err, errNotFound):
		return httpmsg.StatusNotFound
	case errors.Is(err, errPermission):
		return httpmsg.StatusForbidden
	default:
		return httpmsg.StatusInternalServerError
	}
}

// emptyOutputStatus is the response status for a child that wrote nothing.
func emptyOutputStatus(p *CgiProcess) httpmsg.Status {
	if p.Ended && p.ExitCode == ExitNotFound {
		return httpmsg.StatusNotFound
	}
	return httpmsg.StatusBadGateway
}
