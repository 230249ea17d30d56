//go:build linux
// +build linux

// File: core/cgi_process_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Child spawning over a socketpair and non-blocking status polling.

package core

import (
	"errors"
	"fmt"
	"path/filepath"
	"syscall"
	"time"

	"github.com/momentics/hioload-httpd/protocol/cgi"
	"github.com/momentics/hioload-httpd/transport"
	"golang.org/x/sys/unix"
)

var (
	errNotFound   = unix.ENOENT
	errPermission = unix.EACCES
)

// spawnCgi starts the script of req with stdin and stdout connected to one
// end of a socketpair and returns the parent end.
func spawnCgi(req cgi.Request, environ []string, now time.Time) (*CgiProcess, *transport.FD, error) {
	parent, child, err := transport.SocketPair()
	if err != nil {
		return nil, nil, fmt.Errorf("socketpair: %w", err)
	}
	defer child.Close()

	script, err := filepath.Abs(req.ScriptPath())
	if err != nil {
		parent.Close()
		return nil, nil, fmt.Errorf("resolve script path: %w", err)
	}
	attr := &syscall.ProcAttr{
		Dir: filepath.Dir(script),
		Env: req.Environ(environ),
		Files: []uintptr{
			uintptr(child.Get()),
			uintptr(child.Get()),
			uintptr(unix.Stderr),
		},
	}
	pid, err := syscall.ForkExec(script, []string{script}, attr)
	if err != nil {
		parent.Close()
		return nil, nil, fmt.Errorf("exec %s: %w", script, err)
	}
	return &CgiProcess{Pid: pid, PeerFd: parent.Get(), StartedAt: now}, parent, nil
}

// Poll checks without blocking whether the child has exited.
func (p *CgiProcess) Poll() bool {
	if p.Ended {
		return true
	}
	var ws unix.WaitStatus
	pid, err := unix.Wait4(p.Pid, &ws, unix.WNOHANG, nil)
	switch {
	case err == nil && pid == p.Pid:
		p.MarkExited(exitCode(ws))
	case errors.Is(err, unix.ECHILD):
		// already collected by the reaper
		p.MarkExited(exitUnknown)
	}
	return p.Ended
}

// Kill sends SIGKILL to a child that has not been waited for yet.
func (p *CgiProcess) Kill() {
	if p.Ended {
		return
	}
	_ = unix.Kill(p.Pid, unix.SIGKILL)
}

func exitCode(ws unix.WaitStatus) int {
	switch {
	case ws.Exited():
		return ws.ExitStatus()
	case ws.Signaled():
		return 128 + int(ws.Signal())
	default:
		return exitUnknown
	}
}
