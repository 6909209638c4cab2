// Package metrics exposes Prometheus instruments for script calls,
// generations and free-text parses.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels shared by the instruments.
const (
	OutcomeOK           = "ok"
	OutcomeValidation   = "validation"
	OutcomeConnectivity = "connectivity"
	OutcomeStatus       = "status"
	OutcomeRemote       = "remote"
	OutcomeError        = "error"
)

// Metrics holds the remittance instruments. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry      *prometheus.Registry
	remoteCalls   *prometheus.CounterVec
	remoteLatency *prometheus.HistogramVec
	generations   *prometheus.CounterVec
	parses        *prometheus.CounterVec
}

// New registers the instruments on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	remoteCalls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "remitsheet_remote_calls_total",
		Help: "Calls to the spreadsheet script by action and outcome.",
	}, []string{"action", "outcome"})
	remoteLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "remitsheet_remote_call_duration_seconds",
		Help:    "Spreadsheet script call latency by action.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"action"})
	generations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "remitsheet_generations_total",
		Help: "Remittance sheet generations by outcome.",
	}, []string{"outcome"})
	parses := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "remitsheet_vendor_parses_total",
		Help: "Free-text vendor parse attempts by outcome.",
	}, []string{"outcome"})

	reg.MustRegister(remoteCalls, remoteLatency, generations, parses)

	return &Metrics{
		registry:      reg,
		remoteCalls:   remoteCalls,
		remoteLatency: remoteLatency,
		generations:   generations,
		parses:        parses,
	}
}

// ObserveCall records one spreadsheet script call.
func (m *Metrics) ObserveCall(action, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.remoteCalls.WithLabelValues(action, outcome).Inc()
	m.remoteLatency.WithLabelValues(action).Observe(elapsed.Seconds())
}

// ObserveGeneration records the result of one generation attempt.
func (m *Metrics) ObserveGeneration(outcome string) {
	if m == nil {
		return
	}
	m.generations.WithLabelValues(outcome).Inc()
}

// ObserveParse records the result of one free-text parse.
func (m *Metrics) ObserveParse(outcome string) {
	if m == nil {
		return
	}
	m.parses.WithLabelValues(outcome).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
