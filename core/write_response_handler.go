// File: core/write_response_handler.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package core

import (
	"github.com/momentics/hioload-httpd/protocol/httpmsg"
	"go.uber.org/zap"
)

// WriteResponseHandler writes a serialized response, one write per
// invocation, then closes the connection.
type WriteResponseHandler struct {
	baseHandler
	svc     *Services
	status  httpmsg.Status
	data    []byte
	written int
}

// NewWriteResponseHandler serializes res.
func NewWriteResponseHandler(svc *Services, res httpmsg.Response) *WriteResponseHandler {
	return &WriteResponseHandler{svc: svc, status: res.Status(), data: res.Bytes()}
}

func (h *WriteResponseHandler) Name() string { return "write_response" }

// Remaining is the number of bytes not yet written.
func (h *WriteResponseHandler) Remaining() int { return len(h.data) - h.written }

func (h *WriteResponseHandler) Invoke(ctx *Context) ([]*Action, error) {
	if h.Remaining() > 0 {
		n, err := ctx.Conn.Write(h.data[h.written:])
		if err != nil {
			return nil, err
		}
		h.written += n
		if h.Remaining() > 0 {
			return nil, nil
		}
	}
	h.svc.Observer.RequestServed(int(h.status))
	h.svc.Log.Debug("response written",
		zap.Int("fd", ctx.Conn.Fd()),
		zap.Int("status", int(h.status)),
		zap.Int("bytes", len(h.data)))
	return Teardown(ctx.Conn.Fd()), nil
}
