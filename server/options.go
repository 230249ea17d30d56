// File: server/options.go
// Package server defines functional options for the Server.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"github.com/momentics/hioload-httpd/core"
	"github.com/momentics/hioload-httpd/reactor"
	"go.uber.org/zap"
)

// ServerOption customizes server initialization.
type ServerOption func(*Server)

// WithLogger sets the logger shared by the loop and every handler.
func WithLogger(log *zap.Logger) ServerOption {
	return func(s *Server) {
		s.log = log
	}
}

// WithObserver attaches a telemetry sink, e.g. control.Metrics.
func WithObserver(o core.Observer) ServerOption {
	return func(s *Server) {
		s.observer = o
	}
}

// WithPublisher receives a state snapshot on every sweep.
func WithPublisher(p Publisher) ServerOption {
	return func(s *Server) {
		s.publisher = p
	}
}

// WithNotifier replaces the platform notifier. The server takes ownership.
func WithNotifier(n reactor.Notifier) ServerOption {
	return func(s *Server) {
		s.notifier = n
	}
}
