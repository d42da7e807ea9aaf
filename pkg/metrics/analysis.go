package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type AnalysisMetrics struct {
	requests *prometheus.CounterVec
	latency  prometheus.Histogram
}

func NewAnalysisMetrics(reg prometheus.Registerer) *AnalysisMetrics {
	if reg == nil {
		return &AnalysisMetrics{}
	}
	m := &AnalysisMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_requests_total",
			Help:      "Project analyses requested, by outcome.",
		}, []string{"outcome"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_provider_duration_seconds",
			Help:      "Latency of LLM provider calls.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		}),
	}
	reg.MustRegister(m.requests, m.latency)
	return m
}

func (m *AnalysisMetrics) IncOutcome(outcome string) {
	if m == nil || m.requests == nil {
		return
	}
	m.requests.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *AnalysisMetrics) ObserveProvider(duration time.Duration) {
	if m == nil || m.latency == nil {
		return
	}
	m.latency.Observe(duration.Seconds())
}
