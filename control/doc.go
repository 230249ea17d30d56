// Package control
// Author: momentics <momentics@gmail.com>
//
// Runtime metrics, effective configuration and debug introspection for the
// reactor.
//
// Everything here is read from other goroutines while the reactor runs:
//   - Metrics implements core.Observer on top of a private Prometheus registry
//   - StatePublisher holds the latest reactor snapshot behind an atomic pointer
//   - ConfigStore keeps the effective configuration for inspection
//   - DebugProbes dumps named probes as JSON
package control
