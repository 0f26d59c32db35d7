// Package metrics exposes Prometheus counters for fill runs.
package metrics

import (
	"github.com/ppiankov/surveyfill/internal/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace prefixes every surveyfill metric
	Namespace = "surveyfill"
)

// Metrics holds the run counters
type Metrics struct {
	RunsTotal      *prometheus.CounterVec
	QuestionsTotal *prometheus.CounterVec
	LastRunTotal   prometheus.Gauge
	LastRunChanged prometheus.Gauge
}

// New creates and registers the metrics. A nil registerer uses the default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "runs_total",
				Help:      "Fill runs by trigger",
			},
			[]string{"trigger"},
		),
		QuestionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "questions_total",
				Help:      "Questions processed by outcome",
			},
			[]string{"outcome"},
		),
		LastRunTotal: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "last_run_questions",
			Help:      "Questions with options in the most recent run",
		}),
		LastRunChanged: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "last_run_changed",
			Help:      "Questions changed by the most recent run",
		}),
	}
}

// Observe records one run
func (m *Metrics) Observe(trigger string, s model.Summary) {
	m.RunsTotal.WithLabelValues(trigger).Inc()

	m.QuestionsTotal.WithLabelValues("changed").Add(float64(s.Changed))
	m.QuestionsTotal.WithLabelValues("unchanged").Add(float64(s.Total - s.Changed))
	m.QuestionsTotal.WithLabelValues("fallback").Add(float64(s.Fallbacks))
	m.QuestionsTotal.WithLabelValues("skipped").Add(float64(s.Skipped))

	m.LastRunTotal.Set(float64(s.Total))
	m.LastRunChanged.Set(float64(s.Changed))
}
