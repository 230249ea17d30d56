//go:build !linux
// +build !linux

// File: core/reaper_stub.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package core

import (
	"github.com/momentics/hioload-httpd/api"
	"go.uber.org/zap"
)

type Reaped struct {
	Pid      int
	ExitCode int
}

type ChildReaper struct{}

func NewChildReaper(*zap.Logger) (*ChildReaper, error) { return nil, api.ErrNotSupported }

func (r *ChildReaper) Fd() int                 { return -1 }
func (r *ChildReaper) OnSignalEvent() []Reaped { return nil }
func (r *ChildReaper) Close() error            { return nil }
