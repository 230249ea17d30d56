// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor provides the readiness notifier: an epoll-backed interest
// set with injectable pseudo-events, plus a timerfd ticker that bounds the
// wait so periodic sweeps can run on the reactor goroutine.
package reactor
