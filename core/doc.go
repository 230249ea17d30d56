// File: core/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package core holds the reactor state and everything that mutates it:
// repositories, actions, event handlers, CGI process orchestration and the
// SIGCHLD child reaper.
//
// Handlers never touch the repositories. They return actions, and the
// server loop executes them in order before dispatching the next event.
package core
