// File: core/sweep.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Loop-level bookkeeping: reaped children and periodic timeouts.

package core

import (
	"time"

	"github.com/momentics/hioload-httpd/protocol/httpmsg"
	"github.com/momentics/hioload-httpd/reactor"
	"go.uber.org/zap"
)

// HandleReaped correlates reaped children with their CGI records. A child
// whose peer is still open gets its response reader re-invoked through a
// pseudo event; one whose peer is already gone is answered with 502.
func HandleReaped(s *State, reaped []Reaped) []*Action {
	svc := s.Services
	var actions []*Action
	for _, r := range reaped {
		proc, ok := s.CgiProcesses.Get(r.Pid)
		if !ok {
			svc.Log.Debug("reaped untracked child", zap.Int("pid", r.Pid), zap.Int("exit_code", r.ExitCode))
			continue
		}
		proc.MarkExited(r.ExitCode)
		svc.Observer.CgiReaped(r.ExitCode)
		svc.Log.Debug("cgi reaped", zap.Int("pid", r.Pid), zap.Int("exit_code", r.ExitCode))

		switch {
		case proc.Forwarded:
			actions = append(actions, RemoveCgiProcess(r.Pid))
		case s.Connections.Has(proc.PeerFd):
			actions = append(actions, TriggerPseudoEvent(reactor.NewEvent(proc.PeerFd, reactor.EventRead)))
		default:
			proc.Forwarded = true
			if s.Connections.Has(proc.ClientFd) {
				actions = append(actions, WriteBack(svc, proc.ClientFd, httpmsg.ErrorResponse(httpmsg.StatusBadGateway))...)
			}
			actions = append(actions, RemoveCgiProcess(r.Pid))
		}
	}
	return actions
}

// Timeouts bounds idle clients and running children.
type Timeouts struct {
	Client time.Duration
	Cgi    time.Duration
}

// Sweep returns teardown actions for children running past the CGI
// timeout (their clients get 504) and for connections idle past the client
// timeout. Descriptors in exclude, and those of in-flight CGI exchanges,
// are left alone by the idle scan.
func Sweep(s *State, now time.Time, limits Timeouts, exclude map[int]struct{}) []*Action {
	svc := s.Services
	skip := make(map[int]struct{}, len(exclude))
	for fd := range exclude {
		skip[fd] = struct{}{}
	}

	var actions []*Action
	if limits.Cgi > 0 {
		for _, pid := range s.CgiProcesses.TimedOut(now, limits.Cgi) {
			proc, _ := s.CgiProcesses.Get(pid)
			svc.Observer.CgiTimedOut()
			svc.Log.Warn("cgi timed out", zap.Int("pid", pid), zap.Duration("elapsed", now.Sub(proc.StartedAt)))
			if !proc.Forwarded {
				proc.Forwarded = true
				if s.Connections.Has(proc.PeerFd) {
					actions = append(actions, Teardown(proc.PeerFd)...)
					skip[proc.PeerFd] = struct{}{}
				}
				if s.Connections.Has(proc.ClientFd) {
					actions = append(actions, WriteBack(svc, proc.ClientFd, httpmsg.ErrorResponse(httpmsg.StatusGatewayTimeout))...)
					skip[proc.ClientFd] = struct{}{}
				}
			}
			actions = append(actions, RemoveCgiProcess(pid))
		}
	}

	for fd := range s.CgiProcesses.InFlightFds() {
		skip[fd] = struct{}{}
	}
	if limits.Client > 0 {
		for _, fd := range s.Connections.TimedOutFds(now, limits.Client, skip) {
			svc.Observer.Timeout("client")
			svc.Log.Debug("connection timed out", zap.Int("fd", fd))
			actions = append(actions, Teardown(fd)...)
		}
	}
	return actions
}
