//go:build linux
// +build linux

// File: reactor/ticker_linux.go
// Author: momentics <momentics@gmail.com>
//
// timerfd-backed periodic ticker, registered like any other descriptor.

package reactor

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// Ticker fires a read-readiness event on its descriptor every interval.
type Ticker struct {
	fd int
}

// NewTicker creates a non-blocking periodic timerfd.
func NewTicker(interval time.Duration) (*Ticker, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("ticker: invalid interval %s", interval)
	}
	fd, err := unix.TimerfdCreate(unix.CLOCK_MONOTONIC, unix.TFD_NONBLOCK|unix.TFD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("timerfd create: %w", err)
	}
	ts := unix.NsecToTimespec(interval.Nanoseconds())
	spec := unix.ItimerSpec{Interval: ts, Value: ts}
	if err := unix.TimerfdSettime(fd, 0, &spec, nil); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("timerfd settime: %w", err)
	}
	return &Ticker{fd: fd}, nil
}

// Fd returns the descriptor to register for read readiness.
func (t *Ticker) Fd() int { return t.fd }

// Drain consumes pending expirations and returns how many elapsed.
func (t *Ticker) Drain() (uint64, error) {
	var buf [8]byte
	n, err := unix.Read(t.fd, buf[:])
	if err != nil {
		if errors.Is(err, unix.EAGAIN) {
			return 0, nil
		}
		return 0, fmt.Errorf("timerfd read: %w", err)
	}
	if n != len(buf) {
		return 0, nil
	}
	return binary.NativeEndian.Uint64(buf[:]), nil
}

// Close stops the ticker.
func (t *Ticker) Close() error {
	return unix.Close(t.fd)
}
