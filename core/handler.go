// File: core/handler.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package core

import (
	"time"

	"github.com/momentics/hioload-httpd/protocol/httpmsg"
	"github.com/momentics/hioload-httpd/reactor"
	"github.com/momentics/hioload-httpd/transport"
	"github.com/momentics/hioload-httpd/vserver"
)

// Context is what a handler sees for one dispatched event.
type Context struct {
	Event reactor.Event
	// Conn is the connection owning Event.Fd, nil for listeners.
	Conn      *transport.Connection
	Resolvers *vserver.ResolverFactory
	Now       time.Time
}

// Handler owns one (descriptor, direction) pair.
//
// Invoke performs at most one non-blocking I/O step and returns the actions
// to execute. An error wrapping api.ErrWouldBlock means "call me again on
// the next readiness". Any other error is passed to OnErrorEvent.
//
// OnErrorEvent is asked on invoke failures and on error or hang-up events.
// It returns whether the default teardown should run, plus extra actions.
type Handler interface {
	Name() string
	Invoke(ctx *Context) ([]*Action, error)
	OnErrorEvent(ctx *Context, ev reactor.Event) (fallback bool, actions []*Action)
	Close()
}

// baseHandler gives the default error policy: full teardown, nothing to
// release.
type baseHandler struct{}

func (baseHandler) OnErrorEvent(*Context, reactor.Event) (bool, []*Action) { return true, nil }
func (baseHandler) Close()                                                 {}

// Teardown stops watching fd, drops both of its handlers and closes the
// connection.
func Teardown(fd int) []*Action {
	return []*Action{
		UnregisterEvent(reactor.NewEvent(fd, reactor.EventRead|reactor.EventWrite)),
		UnregisterHandler(fd, reactor.EventRead),
		UnregisterHandler(fd, reactor.EventWrite),
		RemoveConnection(fd),
	}
}

// Respond swaps the read side of fd for a writer of res.
func Respond(svc *Services, fd int, res httpmsg.Response) []*Action {
	return []*Action{
		UnregisterEvent(reactor.NewEvent(fd, reactor.EventRead)),
		UnregisterHandler(fd, reactor.EventRead),
		RegisterEvent(reactor.NewEvent(fd, reactor.EventWrite)),
		RegisterHandler(fd, reactor.EventWrite, NewWriteResponseHandler(svc, res)),
	}
}

// WriteBack starts writing res to fd, which has no interest registered.
func WriteBack(svc *Services, fd int, res httpmsg.Response) []*Action {
	return []*Action{
		RegisterEvent(reactor.NewEvent(fd, reactor.EventWrite)),
		RegisterHandler(fd, reactor.EventWrite, NewWriteResponseHandler(svc, res)),
	}
}
