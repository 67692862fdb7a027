// Package metrics exposes Prometheus collectors for claim reconciliation.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "claim_reconciler"

// Metrics records reconciliation outcomes
type Metrics struct {
	verdicts      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	attachments   *prometheus.CounterVec
	missingFields *prometheus.CounterVec
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verdicts_total",
			Help:      "Claims processed, by verdict status.",
		}, []string{"status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "claim_duration_seconds",
			Help:      "Time spent reconciling one claim.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"status"}),
		attachments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attachments_total",
			Help:      "Attachments examined, by kind.",
		}, []string{"kind"}),
		missingFields: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "missing_fields_total",
			Help:      "Document fields the extractors could not find.",
		}, []string{"field"}),
	}

	reg.MustRegister(m.verdicts, m.duration, m.attachments, m.missingFields)
	return m
}

// ObserveVerdict counts one verdict and its latency
func (m *Metrics) ObserveVerdict(status string, elapsed time.Duration) {
	m.verdicts.WithLabelValues(status).Inc()
	m.duration.WithLabelValues(status).Observe(elapsed.Seconds())
}

// ObserveAttachment counts one attachment and each field missing from it
func (m *Metrics) ObserveAttachment(kind string, missing []string) {
	m.attachments.WithLabelValues(kind).Inc()
	for _, field := range missing {
		m.missingFields.WithLabelValues(field).Inc()
	}
}
