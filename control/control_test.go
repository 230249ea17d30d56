package control_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/momentics/hioload-httpd/api"
	"github.com/momentics/hioload-httpd/config"
	"github.com/momentics/hioload-httpd/control"
	"github.com/momentics/hioload-httpd/core"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsObserveReactor(t *testing.T) {
	m := control.NewMetrics("test")
	m.ConnectionAccepted()
	m.ConnectionAccepted()
	m.ActiveConnections(3)
	m.RequestServed(200)
	m.RequestServed(404)
	m.RequestServed(404)
	m.CgiSpawned()
	m.CgiReaped(0)
	m.CgiTimedOut()
	m.HandlerError(api.KindParseUnknown)
	m.Timeout("client")

	expected := `
# HELP test_responses_total Responses fully written, by status.
# TYPE test_responses_total counter
test_responses_total{status="200"} 1
test_responses_total{status="404"} 2
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "test_responses_total"))

	expected = `
# HELP test_connections_active Open client and CGI peer connections.
# TYPE test_connections_active gauge
test_connections_active 3
# HELP test_handler_errors_total Failed handler invocations, by error kind.
# TYPE test_handler_errors_total counter
test_handler_errors_total{kind="parse"} 1
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "test_connections_active", "test_handler_errors_total"))
}

func TestMetricsHandlerServesExposition(t *testing.T) {
	m := control.NewMetrics("")
	m.CgiSpawned()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "hioload_httpd_cgi_spawned_total 1")
}

var _ core.Observer = control.NewMetrics("x")

func TestStatePublisherProbe(t *testing.T) {
	dp := control.NewDebugProbes()
	pub := control.NewStatePublisher()
	pub.Register(dp)

	_, ok := pub.Latest()
	assert.False(t, ok)
	assert.Nil(t, dp.DumpState()["reactor"])

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	pub.Publish(core.Snapshot{Time: now, Handlers: []core.HandlerInfo{{Fd: 3, Event: "read", Handler: "accept"}}})
	snap, ok := pub.Latest()
	require.True(t, ok)
	assert.Equal(t, now, snap.Time)
}

func TestDebugProbesServeHTTP(t *testing.T) {
	dp := control.NewDebugProbes()
	control.RegisterPlatformProbes(dp)
	control.NewConfigStore(&config.Config{Metrics: config.MetricsConfig{Addr: "127.0.0.1:9100"}}).Register(dp)
	pub := control.NewStatePublisher()
	pub.Register(dp)
	pub.Publish(core.Snapshot{Connections: []core.ConnectionInfo{{Fd: 7, ID: "abc"}}})

	assert.Contains(t, dp.Names(), "platform.cpus")
	mux := control.NewMux(control.NewMetrics("t2"), dp)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/state", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var dump map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dump))
	assert.Contains(t, dump, "config")
	assert.Contains(t, dump, "reactor")

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/state?probe=reactor", nil))
	var snap core.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.Len(t, snap.Connections, 1)
	assert.Equal(t, 7, snap.Connections[0].Fd)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/state?probe=nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConfigStoreSwap(t *testing.T) {
	first := &config.Config{}
	second := &config.Config{}
	cs := control.NewConfigStore(first)
	assert.Same(t, first, cs.Get())
	cs.Set(second)
	assert.Same(t, second, cs.Get())
}
