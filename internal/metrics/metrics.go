// Package metrics exposes the service's Prometheus instrumentation.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles every collector the service records. A nil *Metrics is
// valid and records nothing, so wiring stays optional in tests.
type Metrics struct {
	evaluatorDuration *prometheus.HistogramVec
	evaluatorFailures *prometheus.CounterVec
	analysesTotal     *prometheus.CounterVec
	persistErrors     prometheus.Counter
	publishErrors     prometheus.Counter
}

func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		evaluatorDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "call_analysis",
			Name:      "evaluator_duration_seconds",
			Help:      "Wall time of one evaluator run.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"evaluator"}),
		evaluatorFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "call_analysis",
			Name:      "evaluator_failures_total",
			Help:      "Evaluator runs that ended in an error or panic.",
		}, []string{"evaluator"}),
		analysesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "call_analysis",
			Name:      "analyses_total",
			Help:      "Completed call analyses by final status.",
		}, []string{"status"}),
		persistErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "call_analysis",
			Name:      "persist_errors_total",
			Help:      "Failed attempts to persist an analysis result.",
		}),
		publishErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "call_analysis",
			Name:      "publish_errors_total",
			Help:      "Failed attempts to publish an analysis event.",
		}),
	}
}

func (m *Metrics) ObserveEvaluator(name string, d time.Duration) {
	if m == nil {
		return
	}
	m.evaluatorDuration.WithLabelValues(name).Observe(d.Seconds())
}

func (m *Metrics) EvaluatorFailed(name string) {
	if m == nil {
		return
	}
	m.evaluatorFailures.WithLabelValues(name).Inc()
}

func (m *Metrics) AnalysisFinished(status string) {
	if m == nil {
		return
	}
	m.analysesTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) PersistError() {
	if m == nil {
		return
	}
	m.persistErrors.Inc()
}

func (m *Metrics) PublishError() {
	if m == nil {
		return
	}
	m.publishErrors.Inc()
}
