package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StatusProvider exposes the agent's live state at scrape time.
type StatusProvider interface {
	Connected() bool
	ActiveCall() bool
}

// Metrics holds the agent counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry     *prometheus.Registry
	dialRequests *prometheus.CounterVec
	callsEnded   *prometheus.CounterVec
	reconnects   prometheus.Counter
	recordings   *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		dialRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dialagent_dial_requests_total",
			Help: "Dial requests received, by admission result",
		}, []string{"result"}),
		callsEnded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dialagent_calls_ended_total",
			Help: "Calls that reached the ended state, by final status",
		}, []string{"status"}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dialagent_reconnect_attempts_total",
			Help: "Scheduled connection reconnect attempts",
		}),
		recordings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dialagent_recordings_total",
			Help: "Recording discovery outcomes (uploaded, upload_failed, not_found, skipped)",
		}, []string{"result"}),
	}

	m.registry.MustRegister(m.dialRequests, m.callsEnded, m.reconnects, m.recordings)
	return m
}

// RegisterStatus adds scrape-time gauges backed by p.
func (m *Metrics) RegisterStatus(p StatusProvider, startTime time.Time) {
	if m == nil || p == nil {
		return
	}
	m.registry.MustRegister(newStatusCollector(p, startTime))
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) DialRequest(result string) {
	if m == nil {
		return
	}
	m.dialRequests.WithLabelValues(result).Inc()
}

func (m *Metrics) CallEnded(status string) {
	if m == nil {
		return
	}
	m.callsEnded.WithLabelValues(status).Inc()
}

func (m *Metrics) ReconnectAttempt() {
	if m == nil {
		return
	}
	m.reconnects.Inc()
}

func (m *Metrics) Recording(result string) {
	if m == nil {
		return
	}
	m.recordings.WithLabelValues(result).Inc()
}

type statusCollector struct {
	provider  StatusProvider
	startTime time.Time

	connectedDesc  *prometheus.Desc
	activeCallDesc *prometheus.Desc
	uptimeDesc     *prometheus.Desc
}

func newStatusCollector(p StatusProvider, startTime time.Time) *statusCollector {
	return &statusCollector{
		provider:  p,
		startTime: startTime,
		connectedDesc: prometheus.NewDesc(
			"dialagent_connected",
			"Whether the server connection is established (1=connected)",
			nil, nil,
		),
		activeCallDesc: prometheus.NewDesc(
			"dialagent_active_call",
			"Whether a call session is active (1=active)",
			nil, nil,
		),
		uptimeDesc: prometheus.NewDesc(
			"dialagent_uptime_seconds",
			"Seconds since the agent process started",
			nil, nil,
		),
	}
}

func (c *statusCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.connectedDesc
	ch <- c.activeCallDesc
	ch <- c.uptimeDesc
}

func (c *statusCollector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.connectedDesc, prometheus.GaugeValue, boolValue(c.provider.Connected()))
	ch <- prometheus.MustNewConstMetric(c.activeCallDesc, prometheus.GaugeValue, boolValue(c.provider.ActiveCall()))
	ch <- prometheus.MustNewConstMetric(c.uptimeDesc, prometheus.GaugeValue, time.Since(c.startTime).Seconds())
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
