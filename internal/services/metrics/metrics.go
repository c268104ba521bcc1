// Package metrics exposes evaluation outcomes as Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mihac/internal/models"
)

// Metrics holds all Prometheus metrics for the engine.
type Metrics struct {
	// Registry owns the metrics below. Each Metrics has its own so tests
	// can build as many as they like.
	Registry *prometheus.Registry

	evaluations      *prometheus.CounterVec
	score            prometheus.Histogram
	dti              prometheus.Histogram
	duration         prometheus.Histogram
	validationErrors *prometheus.CounterVec
	ruleActivations  *prometheus.CounterVec
	sinkErrors       *prometheus.CounterVec
}

// New creates a registry and registers every metric in it.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		evaluations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mihac_evaluations_total",
				Help: "Evaluations completed, by decision.",
			},
			[]string{"decision"},
		),
		score: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "mihac_score",
			Help:    "Final scores of scored evaluations.",
			Buckets: prometheus.LinearBuckets(10, 10, 10),
		}),
		dti: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "mihac_dti",
			Help:    "Debt-to-income ratios of scored evaluations.",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.8, 1, 2},
		}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "mihac_evaluation_duration_seconds",
			Help:    "Time spent evaluating one profile.",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
		validationErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mihac_validation_errors_total",
				Help: "Blocking validation errors, by field.",
			},
			[]string{"field"},
		),
		ruleActivations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mihac_rule_activations_total",
				Help: "Heuristic rule activations, by rule id.",
			},
			[]string{"rule"},
		),
		sinkErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mihac_sink_errors_total",
				Help: "Failures recording results to a sink.",
			},
			[]string{"sink"},
		),
	}
}

// Observe records one evaluation result.
func (m *Metrics) Observe(r *models.EvaluationResult) {
	m.evaluations.WithLabelValues(string(r.Decision)).Inc()
	m.duration.Observe(r.Duration.Seconds())

	for _, fe := range r.Validation.Errors {
		m.validationErrors.WithLabelValues(fe.Field).Inc()
	}

	if b := r.Breakdown; b != nil {
		m.score.Observe(float64(b.FinalScore))
		m.dti.Observe(b.DTI)
		for _, rule := range b.Rules {
			m.ruleActivations.WithLabelValues(rule.ID).Inc()
		}
	}
}

// IncSinkError counts a failed write to the named sink.
func (m *Metrics) IncSinkError(sink string) {
	m.sinkErrors.WithLabelValues(sink).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
