// Author: momentics <momentics@gmail.com>

package fake

import (
	"github.com/momentics/hioload-httpd/core"
	"github.com/momentics/hioload-httpd/reactor"
)

// Handler is a scripted core.Handler that records what the reactor asked
// of it.
type Handler struct {
	Label    string
	Actions  []*core.Action
	Err      error
	Fallback bool
	// OnError, if set, is returned from OnErrorEvent in place of nil.
	OnError []*core.Action

	Invocations int
	ErrorEvents []reactor.Event
	Closes      int
}

var _ core.Handler = (*Handler)(nil)

// NewHandler returns a handler that asks for the default teardown on error.
func NewHandler(label string) *Handler {
	return &Handler{Label: label, Fallback: true}
}

func (h *Handler) Name() string { return h.Label }

func (h *Handler) Invoke(*core.Context) ([]*core.Action, error) {
	h.Invocations++
	actions := h.Actions
	h.Actions = nil
	return actions, h.Err
}

func (h *Handler) OnErrorEvent(_ *core.Context, ev reactor.Event) (bool, []*core.Action) {
	h.ErrorEvents = append(h.ErrorEvents, ev)
	actions := h.OnError
	h.OnError = nil
	return h.Fallback, actions
}

func (h *Handler) Close() { h.Closes++ }
