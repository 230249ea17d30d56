// File: server/run.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"context"

	"go.uber.org/zap"
)

// Run drives Tick until ctx is done, then closes the server. Cancellation
// is noticed on the next tick; the sweep ticker bounds that delay.
func (s *Server) Run(ctx context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer s.running.Store(false)
	defer s.Close()

	s.log.Info("reactor started", zap.Int("listeners", len(s.addrs)))
	for ctx.Err() == nil {
		if err := s.Tick(); err != nil {
			s.log.Error("tick failed", zap.Error(err))
		}
	}
	s.log.Info("reactor stopped",
		zap.Int("connections", s.state.Connections.Len()),
		zap.Int("cgi_processes", s.state.CgiProcesses.Len()))
	return nil
}
