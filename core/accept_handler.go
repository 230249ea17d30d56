// File: core/accept_handler.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package core

import (
	"github.com/momentics/hioload-httpd/reactor"
	"github.com/momentics/hioload-httpd/transport"
	"go.uber.org/zap"
)

// AcceptHandler accepts one connection per invocation. It owns the
// listener.
type AcceptHandler struct {
	listener *transport.Listener
	svc      *Services
}

// NewAcceptHandler takes ownership of l.
func NewAcceptHandler(svc *Services, l *transport.Listener) *AcceptHandler {
	return &AcceptHandler{listener: l, svc: svc}
}

func (h *AcceptHandler) Name() string { return "accept" }

func (h *AcceptHandler) Invoke(ctx *Context) ([]*Action, error) {
	conn, err := h.listener.Accept()
	if err != nil {
		return nil, err
	}
	conn.Touch(ctx.Now)
	h.svc.Observer.ConnectionAccepted()
	h.svc.Log.Debug("connection accepted",
		zap.Int("fd", conn.Fd()),
		zap.String("conn_id", conn.ID.String()),
		zap.Stringer("local", conn.LocalAddress()),
		zap.Stringer("foreign", conn.ForeignAddress()))

	resolver := ctx.Resolvers.Create(conn.LocalAddress())
	return []*Action{
		AddConnection(conn),
		RegisterEvent(reactor.NewEvent(conn.Fd(), reactor.EventRead)),
		RegisterHandler(conn.Fd(), reactor.EventRead, NewReadRequestHandler(h.svc, resolver)),
	}, nil
}

// OnErrorEvent keeps the listener alive whatever happened.
func (h *AcceptHandler) OnErrorEvent(_ *Context, ev reactor.Event) (bool, []*Action) {
	h.svc.Log.Warn("listener error", zap.Int("fd", ev.Fd), zap.Stringer("event", ev.Types))
	return false, nil
}

func (h *AcceptHandler) Close() {
	if err := h.listener.Close(); err != nil {
		h.svc.Log.Warn("listener close failed", zap.Error(err))
	}
}
