//go:build !linux
// +build !linux

// File: reactor/notifier_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub implementation for unsupported platforms.

package reactor

import (
	"time"

	"github.com/momentics/hioload-httpd/api"
	"go.uber.org/zap"
)

// NewNotifier returns an error for unsupported platforms.
func NewNotifier(*zap.Logger) (Notifier, error) {
	return nil, api.ErrNotSupported
}

// Ticker is unavailable outside Linux.
type Ticker struct{}

// NewTicker returns an error for unsupported platforms.
func NewTicker(time.Duration) (*Ticker, error) { return nil, api.ErrNotSupported }

func (t *Ticker) Fd() int                { return -1 }
func (t *Ticker) Drain() (uint64, error) { return 0, api.ErrNotSupported }
func (t *Ticker) Close() error           { return nil }
