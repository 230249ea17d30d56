// File: core/cgi_handlers.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package core

import (
	"errors"

	"github.com/momentics/hioload-httpd/api"
	"github.com/momentics/hioload-httpd/protocol/cgi"
	"github.com/momentics/hioload-httpd/protocol/httpmsg"
	"github.com/momentics/hioload-httpd/reactor"
	"github.com/momentics/hioload-httpd/transport"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// WriteCgiBodyHandler feeds the request body to the child's stdin and
// half-closes the socket once done.
type WriteCgiBodyHandler struct {
	svc     *Services
	body    []byte
	written int
}

// NewWriteCgiBodyHandler writes body.
func NewWriteCgiBodyHandler(svc *Services, body []byte) *WriteCgiBodyHandler {
	return &WriteCgiBodyHandler{svc: svc, body: body}
}

func (h *WriteCgiBodyHandler) Name() string { return "write_cgi_body" }

func (h *WriteCgiBodyHandler) Invoke(ctx *Context) ([]*Action, error) {
	conn := ctx.Conn
	if h.written < len(h.body) {
		n, err := conn.Write(h.body[h.written:])
		switch {
		case errors.Is(err, unix.EPIPE):
			// the child stopped reading stdin
			h.svc.Log.Debug("cgi closed stdin early", zap.Int("fd", conn.Fd()), zap.Int("unwritten", len(h.body)-h.written))
			return h.finish(conn), nil
		case err != nil:
			return nil, err
		}
		h.written += n
		conn.Touch(ctx.Now)
		if h.written < len(h.body) {
			return nil, nil
		}
	}
	return h.finish(conn), nil
}

func (h *WriteCgiBodyHandler) finish(conn *transport.Connection) []*Action {
	if err := conn.CloseWrite(); err != nil && !errors.Is(err, unix.ENOTCONN) {
		h.svc.Log.Debug("cgi half-close failed", zap.Int("fd", conn.Fd()), zap.Error(err))
	}
	return []*Action{
		UnregisterEvent(reactor.NewEvent(conn.Fd(), reactor.EventWrite)),
		UnregisterHandler(conn.Fd(), reactor.EventWrite),
	}
}

// OnErrorEvent stops writing on error or hang-up events and leaves the
// rest to the response reader. Failed writes tear the peer down.
func (h *WriteCgiBodyHandler) OnErrorEvent(ctx *Context, ev reactor.Event) (bool, []*Action) {
	if !ev.Types.Has(reactor.EventWrite) && ctx.Conn != nil {
		return false, h.finish(ctx.Conn)
	}
	return true, nil
}

func (h *WriteCgiBodyHandler) Close() {}

// ReadCgiResponseHandler collects the child's output and, once complete,
// replaces itself with a response writer on the client.
type ReadCgiResponseHandler struct {
	svc    *Services
	proc   *CgiProcess
	parked bool
}

// NewReadCgiResponseHandler reads the output of proc.
func NewReadCgiResponseHandler(svc *Services, proc *CgiProcess) *ReadCgiResponseHandler {
	return &ReadCgiResponseHandler{svc: svc, proc: proc}
}

func (h *ReadCgiResponseHandler) Name() string { return "read_cgi_response" }

func (h *ReadCgiResponseHandler) Invoke(ctx *Context) ([]*Action, error) {
	ended := h.poll()
	n, err := ctx.Conn.ReadBuffer().Load()
	switch {
	case api.IsWouldBlock(err):
		if !ended {
			return nil, nil
		}
	case err != nil:
		return nil, err
	case n > 0:
		ctx.Conn.Touch(ctx.Now)
		return nil, nil
	case !ended:
		return h.park(ctx.Conn), nil
	}
	return h.forward(ctx.Conn, h.buildResponse(ctx.Conn.ReadBuffer().Bytes())), nil
}

// park stops read interest after end of output until the child is reaped;
// the reaper wakes the handler with a pseudo event.
func (h *ReadCgiResponseHandler) park(peer *transport.Connection) []*Action {
	if h.parked {
		return nil
	}
	h.parked = true
	h.svc.Log.Debug("cgi output closed before exit", zap.Int("pid", h.proc.Pid), zap.Int("fd", peer.Fd()))
	return []*Action{UnregisterEvent(reactor.NewEvent(peer.Fd(), reactor.EventRead))}
}

// poll reaps the child without blocking if it has exited.
func (h *ReadCgiResponseHandler) poll() bool {
	if h.proc.Ended {
		return true
	}
	if h.proc.Poll() {
		h.svc.Observer.CgiReaped(h.proc.ExitCode)
		h.svc.Log.Debug("cgi exited", zap.Int("pid", h.proc.Pid), zap.Int("exit_code", h.proc.ExitCode))
	}
	return h.proc.Ended
}

func (h *ReadCgiResponseHandler) buildResponse(raw []byte) httpmsg.Response {
	if len(raw) == 0 {
		h.svc.Log.Warn("cgi produced no output", zap.Int("pid", h.proc.Pid), zap.Int("exit_code", h.proc.ExitCode))
		return httpmsg.ErrorResponse(emptyOutputStatus(h.proc))
	}
	doc, err := cgi.ParseResponse(raw)
	if err != nil {
		h.svc.Log.Warn("invalid cgi response", zap.Int("pid", h.proc.Pid), zap.Error(err))
		return httpmsg.ErrorResponse(httpmsg.StatusBadGateway)
	}
	return doc.HTTPResponse()
}

// forward tears the peer down and starts writing res to the client.
func (h *ReadCgiResponseHandler) forward(peer *transport.Connection, res httpmsg.Response) []*Action {
	h.proc.Forwarded = true
	actions := Teardown(peer.Fd())
	if h.proc.Ended {
		actions = append(actions, RemoveCgiProcess(h.proc.Pid))
	}
	return append(actions, WriteBack(h.svc, h.proc.ClientFd, res)...)
}

// OnErrorEvent treats a hang-up as end of output and anything else as a
// bad gateway.
func (h *ReadCgiResponseHandler) OnErrorEvent(ctx *Context, ev reactor.Event) (bool, []*Action) {
	if ctx.Conn == nil {
		return true, nil
	}
	if ev.Types.Has(reactor.EventHangUp) && !ev.Types.Has(reactor.EventError) {
		if !h.poll() {
			return false, h.park(ctx.Conn)
		}
		return false, h.forward(ctx.Conn, h.buildResponse(ctx.Conn.ReadBuffer().Bytes()))
	}
	h.svc.Log.Warn("cgi peer failed", zap.Int("pid", h.proc.Pid), zap.Stringer("event", ev.Types))
	return false, h.forward(ctx.Conn, httpmsg.ErrorResponse(httpmsg.StatusBadGateway))
}

func (h *ReadCgiResponseHandler) Close() {}
