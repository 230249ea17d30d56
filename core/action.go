// File: core/action.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Deferred, single-shot mutations of the reactor state.

package core

import (
	"errors"
	"fmt"

	"github.com/momentics/hioload-httpd/protocol/cgi"
	"github.com/momentics/hioload-httpd/reactor"
	"github.com/momentics/hioload-httpd/transport"
	"go.uber.org/zap"
)

// ErrActionExecuted is returned when an action is executed twice.
var ErrActionExecuted = errors.New("action already executed")

// ActionKind tags the mutation an Action performs.
type ActionKind int

const (
	ActionRegisterEvent ActionKind = iota
	ActionUnregisterEvent
	ActionRegisterHandler
	ActionUnregisterHandler
	ActionAddConnection
	ActionRemoveConnection
	ActionRunCgi
	ActionTriggerPseudoEvent
	ActionRemoveCgiProcess
)

var actionNames = [...]string{
	ActionRegisterEvent:      "register_event",
	ActionUnregisterEvent:    "unregister_event",
	ActionRegisterHandler:    "register_handler",
	ActionUnregisterHandler:  "unregister_handler",
	ActionAddConnection:      "add_connection",
	ActionRemoveConnection:   "remove_connection",
	ActionRunCgi:             "run_cgi",
	ActionTriggerPseudoEvent: "trigger_pseudo_event",
	ActionRemoveCgiProcess:   "remove_cgi_process",
}

func (k ActionKind) String() string {
	if int(k) < len(actionNames) {
		return actionNames[k]
	}
	return fmt.Sprintf("action(%d)", int(k))
}

// Action is one deferred mutation. Which payload fields are set depends on
// Kind. An action executes at most once; an action that is dropped without
// executing must be Discarded so that payloads it owns are released.
type Action struct {
	Kind ActionKind

	event   reactor.Event
	key     HandlerKey
	handler Handler
	conn    *transport.Connection
	fd      int
	pid     int
	cgi     cgi.Request

	executed bool
}

// RegisterEvent adds interest in ev.
func RegisterEvent(ev reactor.Event) *Action {
	return &Action{Kind: ActionRegisterEvent, event: ev, fd: ev.Fd}
}

// UnregisterEvent drops interest in ev.
func UnregisterEvent(ev reactor.Event) *Action {
	return &Action{Kind: ActionUnregisterEvent, event: ev, fd: ev.Fd}
}

// RegisterHandler installs h for (fd, typ), replacing any previous one.
// The action owns h until executed.
func RegisterHandler(fd int, typ reactor.EventType, h Handler) *Action {
	return &Action{Kind: ActionRegisterHandler, key: HandlerKey{Fd: fd, Type: typ}, handler: h, fd: fd}
}

// UnregisterHandler removes and closes the handler for (fd, typ).
func UnregisterHandler(fd int, typ reactor.EventType) *Action {
	return &Action{Kind: ActionUnregisterHandler, key: HandlerKey{Fd: fd, Type: typ}, fd: fd}
}

// AddConnection hands conn to the connection repository. The action owns
// conn until executed.
func AddConnection(conn *transport.Connection) *Action {
	return &Action{Kind: ActionAddConnection, conn: conn, fd: conn.Fd()}
}

// RemoveConnection closes and forgets the connection on fd.
func RemoveConnection(fd int) *Action {
	return &Action{Kind: ActionRemoveConnection, fd: fd}
}

// RunCgi spawns the script described by req on behalf of the client on
// clientFd.
func RunCgi(clientFd int, req cgi.Request) *Action {
	return &Action{Kind: ActionRunCgi, fd: clientFd, cgi: req}
}

// TriggerPseudoEvent injects ev into the next wait.
func TriggerPseudoEvent(ev reactor.Event) *Action {
	return &Action{Kind: ActionTriggerPseudoEvent, event: ev, fd: ev.Fd}
}

// RemoveCgiProcess forgets the child pid, killing it if still running.
func RemoveCgiProcess(pid int) *Action {
	return &Action{Kind: ActionRemoveCgiProcess, pid: pid, fd: -1}
}

// Fd is the descriptor the action targets, or -1.
func (a *Action) Fd() int { return a.fd }

// Executed reports whether Execute already ran.
func (a *Action) Executed() bool { return a.executed }

// Execute applies the mutation to s.
func (a *Action) Execute(s *State) error {
	if a.executed {
		return ErrActionExecuted
	}
	a.executed = true
	log := s.Services.Log

	switch a.Kind {
	case ActionRegisterEvent:
		return s.Notifier.RegisterEvent(a.event)
	case ActionUnregisterEvent:
		s.Notifier.UnregisterEvent(a.event)
	case ActionRegisterHandler:
		s.Handlers.Set(a.key, a.handler)
		log.Debug("handler registered", zap.Int("fd", a.key.Fd), zap.Stringer("event", a.key.Type), zap.String("handler", a.handler.Name()))
	case ActionUnregisterHandler:
		s.Handlers.Remove(a.key)
	case ActionAddConnection:
		s.Connections.Set(a.fd, a.conn)
	case ActionRemoveConnection:
		if s.Connections.Remove(a.fd) {
			log.Debug("connection removed", zap.Int("fd", a.fd))
		}
	case ActionRunCgi:
		return runCgi(s, a.fd, a.cgi)
	case ActionTriggerPseudoEvent:
		s.Notifier.TriggerPseudoEvent(a.event)
	case ActionRemoveCgiProcess:
		s.CgiProcesses.Remove(a.pid)
	default:
		return fmt.Errorf("unknown action kind %d", int(a.Kind))
	}
	return nil
}

// Discard releases what an unexecuted action owns. It is a no-op after
// Execute.
func (a *Action) Discard() {
	if a.executed {
		return
	}
	a.executed = true
	if a.handler != nil {
		a.handler.Close()
	}
	if a.conn != nil {
		_ = a.conn.Close()
	}
}

// DiscardAll discards every action in actions.
func DiscardAll(actions []*Action) {
	for _, a := range actions {
		if a != nil {
			a.Discard()
		}
	}
}
