package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the counters exported on /metrics. A nil *Metrics is a no-op.
type Metrics struct {
	registry  *prometheus.Registry
	requests  *prometheus.CounterVec
	mutations *prometheus.CounterVec
	records   *prometheus.CounterVec
}

// New registers the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "faqsync",
			Name:      "upstream_requests_total",
			Help:      "HTTP calls made to the source and destination APIs.",
		}, []string{"service", "method", "status"}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "faqsync",
			Name:      "theme_mutations_total",
			Help:      "Read-modify-write cycles against the theme FAQ asset.",
		}, []string{"operation", "outcome"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "faqsync",
			Name:      "records_total",
			Help:      "FAQ records handled by export, map and sync runs.",
		}, []string{"stage", "outcome"}),
	}
	m.registry.MustRegister(m.requests, m.mutations, m.records)
	return m
}

// ObserveRequest counts one upstream call. status 0 means a transport failure.
func (m *Metrics) ObserveRequest(service, method string, status int) {
	if m == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.requests.WithLabelValues(service, method, label).Inc()
}

// ObserveMutation counts one theme mutation attempt.
func (m *Metrics) ObserveMutation(operation string, err error) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(operation, outcome(err)).Inc()
}

// ObserveRecords adds n records for the stage/outcome pair.
func (m *Metrics) ObserveRecords(stage, outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.records.WithLabelValues(stage, outcome).Add(float64(n))
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
