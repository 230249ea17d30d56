// Package pool
// Author: momentics <momentics@gmail.com>
//
// Reusable scratch memory for the reactor's non-blocking reads and writes.
// A single reactor goroutine is the only user, but pools stay safe for
// concurrent use so tests and tools can share them.
package pool
