// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Prometheus-backed reactor telemetry.

package control

import (
	"net/http"
	"strconv"

	"github.com/momentics/hioload-httpd/api"
	"github.com/momentics/hioload-httpd/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "hioload_httpd"

// Metrics records reactor events. All methods are safe for concurrent use.
type Metrics struct {
	registry    *prometheus.Registry
	accepted    prometheus.Counter
	active      prometheus.Gauge
	requests    *prometheus.CounterVec
	cgiSpawned  prometheus.Counter
	cgiReaped   *prometheus.CounterVec
	cgiTimeouts prometheus.Counter
	errors      *prometheus.CounterVec
	timeouts    *prometheus.CounterVec
}

var _ core.Observer = (*Metrics)(nil)

// NewMetrics creates the collectors on a private registry, together with
// the standard process and Go collectors.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	r := prometheus.NewRegistry()
	r.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	r.MustRegister(collectors.NewGoCollector())

	m := &Metrics{
		registry:    r,
		accepted:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "connections_accepted_total", Help: "Accepted client connections."}),
		active:      prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "connections_active", Help: "Open client and CGI peer connections."}),
		requests:    prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "responses_total", Help: "Responses fully written, by status."}, []string{"status"}),
		cgiSpawned:  prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "cgi_spawned_total", Help: "CGI children started."}),
		cgiReaped:   prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "cgi_reaped_total", Help: "CGI children collected, by exit code."}, []string{"exit_code"}),
		cgiTimeouts: prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "cgi_timeouts_total", Help: "CGI children killed for running too long."}),
		errors:      prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "handler_errors_total", Help: "Failed handler invocations, by error kind."}, []string{"kind"}),
		timeouts:    prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "timeouts_total", Help: "Connections closed by the idle sweep."}, []string{"kind"}),
	}
	r.MustRegister(m.accepted, m.active, m.requests, m.cgiSpawned, m.cgiReaped, m.cgiTimeouts, m.errors, m.timeouts)
	return m
}

func (m *Metrics) ConnectionAccepted()     { m.accepted.Inc() }
func (m *Metrics) ActiveConnections(n int) { m.active.Set(float64(n)) }
func (m *Metrics) RequestServed(status int) {
	m.requests.WithLabelValues(strconv.Itoa(status)).Inc()
}
func (m *Metrics) CgiSpawned() { m.cgiSpawned.Inc() }
func (m *Metrics) CgiReaped(exitCode int) {
	m.cgiReaped.WithLabelValues(strconv.Itoa(exitCode)).Inc()
}
func (m *Metrics) CgiTimedOut()                    { m.cgiTimeouts.Inc() }
func (m *Metrics) HandlerError(kind api.ErrorKind) { m.errors.WithLabelValues(kind.String()).Inc() }
func (m *Metrics) Timeout(kind string)             { m.timeouts.WithLabelValues(kind).Inc() }
func (m *Metrics) Registry() *prometheus.Registry  { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
