// control/http.go
// Author: momentics <momentics@gmail.com>

package control

import "net/http"

// NewMux routes /metrics to m and /debug/state to dp.
func NewMux(m *Metrics, dp *DebugProbes) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.Handle("/debug/state", dp)
	return mux
}
