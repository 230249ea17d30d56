// File: core/read_request_handler.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package core

import (
	"github.com/momentics/hioload-httpd/api"
	"github.com/momentics/hioload-httpd/internal/reader"
	"github.com/momentics/hioload-httpd/protocol/cgi"
	"github.com/momentics/hioload-httpd/protocol/httpmsg"
	"github.com/momentics/hioload-httpd/reactor"
	"github.com/momentics/hioload-httpd/vserver"
	"go.uber.org/zap"
)

// ReadRequestHandler drives the request reader of one client connection
// and dispatches the finished request.
type ReadRequestHandler struct {
	baseHandler
	svc      *Services
	resolver *vserver.Resolver
	reader   *reader.Reader
}

// NewReadRequestHandler reads requests resolved through resolver.
func NewReadRequestHandler(svc *Services, resolver *vserver.Resolver) *ReadRequestHandler {
	return &ReadRequestHandler{
		svc:      svc,
		resolver: resolver,
		reader:   reader.New(resolver, reader.WithLogger(svc.Log)),
	}
}

func (h *ReadRequestHandler) Name() string { return "read_request" }

func (h *ReadRequestHandler) Invoke(ctx *Context) ([]*Action, error) {
	conn := ctx.Conn
	before := conn.ReadBuffer().Size()
	req, err := h.reader.ReadRequest(conn.ReadBuffer())
	if err != nil {
		switch api.KindOf(err) {
		case api.KindPayloadTooLarge:
			h.svc.Log.Info("request rejected", zap.Int("fd", conn.Fd()), zap.Error(err))
			return Respond(h.svc, conn.Fd(), httpmsg.ErrorResponse(httpmsg.StatusPayloadTooLarge)), nil
		case api.KindParseUnknown:
			h.svc.Log.Info("request rejected", zap.Int("fd", conn.Fd()), zap.Error(err))
			return Respond(h.svc, conn.Fd(), httpmsg.ErrorResponse(httpmsg.StatusBadRequest)), nil
		}
		return nil, err
	}
	if req == nil {
		if conn.ReadBuffer().Size() != before || h.reader.Phase() != reader.ReadingRequestLine {
			conn.Touch(ctx.Now)
		}
		return nil, nil
	}
	conn.Touch(ctx.Now)

	host, _ := req.Header("Host")
	server, ok := h.resolver.Resolve(host)
	if !ok {
		return Respond(h.svc, conn.Fd(), httpmsg.ErrorResponse(httpmsg.StatusBadRequest)), nil
	}
	h.svc.Log.Debug("request read",
		zap.Int("fd", conn.Fd()),
		zap.Stringer("method", req.Method()),
		zap.String("target", req.Target()),
		zap.String("server", server.Address()))

	route := h.svc.Router.Route(server, *req)
	if route.Kind == vserver.RouteRespond {
		return Respond(h.svc, conn.Fd(), route.Response), nil
	}

	cgiReq, err := cgi.NewRequest(cgi.Params{
		Request:      *req,
		ScriptName:   route.Cgi.ScriptName,
		PathInfo:     route.Cgi.PathInfo,
		DocumentRoot: route.Cgi.DocumentRoot,
		RemoteAddr:   conn.ForeignAddress().IP,
		ServerName:   serverName(server.ServerNames, host),
		ServerPort:   conn.LocalAddress().PortString(),
	})
	if err != nil {
		h.svc.Log.Warn("cgi request rejected", zap.Int("fd", conn.Fd()), zap.Error(err))
		return Respond(h.svc, conn.Fd(), httpmsg.ErrorResponse(httpmsg.StatusInternalServerError)), nil
	}
	return []*Action{
		UnregisterEvent(reactor.NewEvent(conn.Fd(), reactor.EventRead|reactor.EventWrite)),
		UnregisterHandler(conn.Fd(), reactor.EventRead),
		UnregisterHandler(conn.Fd(), reactor.EventWrite),
		RunCgi(conn.Fd(), cgiReq),
	}, nil
}

// OnErrorEvent tears the connection down; a peer hang-up is not worth a
// warning.
func (h *ReadRequestHandler) OnErrorEvent(ctx *Context, ev reactor.Event) (bool, []*Action) {
	if ev.Types.Has(reactor.EventHangUp) {
		h.svc.Log.Debug("client hung up", zap.Int("fd", ev.Fd))
	}
	return true, nil
}

func serverName(names []string, host string) string {
	if len(names) > 0 {
		return names[0]
	}
	return httpmsg.HostWithoutPort(host)
}
