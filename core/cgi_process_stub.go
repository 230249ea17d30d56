//go:build !linux
// +build !linux

// File: core/cgi_process_stub.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package core

import (
	"errors"
	"time"

	"github.com/momentics/hioload-httpd/api"
	"github.com/momentics/hioload-httpd/protocol/cgi"
	"github.com/momentics/hioload-httpd/transport"
)

var (
	errNotFound   = errors.New("not found")
	errPermission = errors.New("permission denied")
)

func spawnCgi(cgi.Request, []string, time.Time) (*CgiProcess, *transport.FD, error) {
	return nil, nil, api.ErrNotSupported
}

func (p *CgiProcess) Poll() bool { return p.Ended }

func (p *CgiProcess) Kill() {}
