//go:build linux
// +build linux

// File: core/reaper_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Self-pipe signal bridge and SIGCHLD child reaper.

package core

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"

	"github.com/momentics/hioload-httpd/transport"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// SelfPipe turns signal deliveries into readability of a pipe. Signals
// arrive on a channel; one goroutine writes a single byte per delivery and
// does nothing else.
type SelfPipe struct {
	r, w    *transport.FD
	signals chan os.Signal
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewSelfPipe starts forwarding sigs.
func NewSelfPipe(sigs ...os.Signal) (*SelfPipe, error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		return nil, fmt.Errorf("self-pipe: %w", err)
	}
	p := &SelfPipe{
		r:       transport.NewFD(fds[0]),
		w:       transport.NewFD(fds[1]),
		signals: make(chan os.Signal, 16),
		done:    make(chan struct{}),
	}
	signal.Notify(p.signals, sigs...)
	p.wg.Add(1)
	go p.forward()
	return p, nil
}

func (p *SelfPipe) forward() {
	defer p.wg.Done()
	one := []byte{1}
	for {
		select {
		case <-p.signals:
			// a full pipe already guarantees a wake-up
			_, _ = unix.Write(p.w.Get(), one)
		case <-p.done:
			return
		}
	}
}

// Fd is the read end to register for readability.
func (p *SelfPipe) Fd() int { return p.r.Get() }

// Notify writes a wake-up byte as if a signal had arrived.
func (p *SelfPipe) Notify() {
	_, _ = unix.Write(p.w.Get(), []byte{1})
}

// Drain empties the pipe and returns the number of bytes read.
func (p *SelfPipe) Drain() int {
	var buf [256]byte
	total := 0
	for {
		n, err := unix.Read(p.r.Get(), buf[:])
		if n > 0 {
			total += n
		}
		if err != nil || n <= 0 {
			return total
		}
	}
}

// Close stops forwarding and closes both ends.
func (p *SelfPipe) Close() error {
	signal.Stop(p.signals)
	close(p.done)
	p.wg.Wait()
	return errors.Join(p.w.Close(), p.r.Close())
}

// Reaped is one collected child.
type Reaped struct {
	Pid      int
	ExitCode int
}

// ChildReaper collects exited children when SIGCHLD arrives. It only
// reports what exited; correlation with CGI records is up to the caller.
type ChildReaper struct {
	pipe *SelfPipe
	log  *zap.Logger
}

// NewChildReaper installs the SIGCHLD bridge and ignores SIGPIPE.
func NewChildReaper(log *zap.Logger) (*ChildReaper, error) {
	if log == nil {
		log = zap.NewNop()
	}
	pipe, err := NewSelfPipe(unix.SIGCHLD)
	if err != nil {
		return nil, err
	}
	signal.Ignore(unix.SIGPIPE)
	return &ChildReaper{pipe: pipe, log: log}, nil
}

// Fd is the descriptor to watch for readability.
func (r *ChildReaper) Fd() int { return r.pipe.Fd() }

// OnSignalEvent drains the pipe and waits for every exited child without
// blocking.
func (r *ChildReaper) OnSignalEvent() []Reaped {
	r.pipe.Drain()
	var out []Reaped
	for {
		var ws unix.WaitStatus
		pid, err := unix.Wait4(-1, &ws, unix.WNOHANG, nil)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil || pid <= 0 {
			if err != nil && !errors.Is(err, unix.ECHILD) {
				r.log.Warn("wait4 failed", zap.Error(err))
			}
			return out
		}
		out = append(out, Reaped{Pid: pid, ExitCode: exitCode(ws)})
	}
}

// Close restores signal delivery and closes the pipe.
func (r *ChildReaper) Close() error {
	return r.pipe.Close()
}
