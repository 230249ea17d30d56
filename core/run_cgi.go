// File: core/run_cgi.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package core

import (
	"fmt"

	"github.com/momentics/hioload-httpd/protocol/cgi"
	"github.com/momentics/hioload-httpd/protocol/httpmsg"
	"github.com/momentics/hioload-httpd/reactor"
	"github.com/momentics/hioload-httpd/transport"
	"go.uber.org/zap"
)

// runCgi spawns the child for clientFd and wires its socketpair end into
// the reactor. A spawn failure is answered on the client, never fatal to
// the server.
func runCgi(s *State, clientFd int, req cgi.Request) error {
	svc := s.Services
	client, ok := s.Connections.Get(clientFd)
	if !ok {
		return fmt.Errorf("run cgi: no connection on fd %d", clientFd)
	}
	now := svc.Now()
	proc, peerFd, err := spawnCgi(req, svc.Environ, now)
	if err != nil {
		svc.Log.Warn("cgi spawn failed",
			zap.Int("fd", clientFd),
			zap.String("script", req.ScriptPath()),
			zap.Error(err))
		s.Execute(WriteBack(svc, clientFd, httpmsg.ErrorResponse(spawnFailureStatus(err))))
		return nil
	}
	proc.ClientFd = clientFd
	svc.Observer.CgiSpawned()
	svc.Log.Debug("cgi spawned",
		zap.Int("pid", proc.Pid),
		zap.Int("fd", clientFd),
		zap.Int("peer_fd", proc.PeerFd),
		zap.String("script", req.ScriptPath()))

	peer := transport.NewConnection(peerFd, transport.Address{}, client.ForeignAddress())
	peer.Touch(now)
	s.CgiProcesses.Set(proc.Pid, proc)

	actions := []*Action{
		AddConnection(peer),
		RegisterEvent(reactor.NewEvent(peer.Fd(), reactor.EventRead)),
		RegisterHandler(peer.Fd(), reactor.EventRead, NewReadCgiResponseHandler(svc, proc)),
	}
	if req.HasBody() {
		actions = append(actions,
			RegisterEvent(reactor.NewEvent(peer.Fd(), reactor.EventWrite)),
			RegisterHandler(peer.Fd(), reactor.EventWrite, NewWriteCgiBodyHandler(svc, req.Body())),
		)
	} else if err := peer.CloseWrite(); err != nil {
		svc.Log.Warn("cgi half-close failed", zap.Int("pid", proc.Pid), zap.Error(err))
	}
	s.Execute(actions)
	return nil
}
