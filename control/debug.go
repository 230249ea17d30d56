// control/debug.go
// Author: momentics <momentics@gmail.com>
//
// Runtime debug handler and probe reflector for internal inspection.

package control

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/momentics/hioload-httpd/core"
)

// DebugProbes holds registered probe functions.
type DebugProbes struct {
	mu     sync.RWMutex
	probes map[string]func() any
}

// NewDebugProbes creates a probe registry.
func NewDebugProbes() *DebugProbes {
	return &DebugProbes{
		probes: make(map[string]func() any),
	}
}

// RegisterProbe inserts a named debug hook, replacing one of the same name.
func (dp *DebugProbes) RegisterProbe(name string, fn func() any) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.probes[name] = fn
}

// Names lists the registered probes in sorted order.
func (dp *DebugProbes) Names() []string {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	names := make([]string, 0, len(dp.probes))
	for k := range dp.probes {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// DumpState returns output of all probes.
func (dp *DebugProbes) DumpState() map[string]any {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	out := make(map[string]any, len(dp.probes))
	for k, fn := range dp.probes {
		out[k] = fn()
	}
	return out
}

// ServeHTTP writes DumpState as JSON. A "probe" query parameter narrows
// the output to one probe.
func (dp *DebugProbes) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	state := dp.DumpState()
	var body any = state
	if name := r.URL.Query().Get("probe"); name != "" {
		v, ok := state[name]
		if !ok {
			http.Error(w, "unknown probe", http.StatusNotFound)
			return
		}
		body = v
	}
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(body)
}

// StatePublisher keeps the most recent reactor snapshot. Publish is called
// from the reactor goroutine; Latest from anywhere.
type StatePublisher struct {
	latest atomic.Pointer[core.Snapshot]
}

// NewStatePublisher creates an empty publisher.
func NewStatePublisher() *StatePublisher {
	return &StatePublisher{}
}

// Publish stores snap.
func (p *StatePublisher) Publish(snap core.Snapshot) {
	p.latest.Store(&snap)
}

// Latest returns the last published snapshot, if any.
func (p *StatePublisher) Latest() (core.Snapshot, bool) {
	snap := p.latest.Load()
	if snap == nil {
		return core.Snapshot{}, false
	}
	return *snap, true
}

// Register exposes the snapshot as the "reactor" probe.
func (p *StatePublisher) Register(dp *DebugProbes) {
	dp.RegisterProbe("reactor", func() any {
		snap, ok := p.Latest()
		if !ok {
			return nil
		}
		return snap
	})
}
