package telemetry

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsSink exports request traces as Prometheus metrics.
type MetricsSink struct {
	requests     *prometheus.CounterVec
	decisions    *prometheus.CounterVec
	stageResults *prometheus.CounterVec
	stageLatency *prometheus.HistogramVec
	totalLatency prometheus.Histogram
	riskScore    prometheus.Histogram
}

// NewMetricsSink registers the guardian metrics on the given registerer.
func NewMetricsSink(reg prometheus.Registerer) *MetricsSink {
	factory := promauto.With(reg)
	return &MetricsSink{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "guardian_requests_total",
			Help: "Detection requests processed, by cache outcome.",
		}, []string{"cache"}),
		decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "guardian_decisions_total",
			Help: "Final decisions emitted.",
		}, []string{"decision"}),
		stageResults: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "guardian_stage_results_total",
			Help: "Per-stage execution results.",
		}, []string{"stage", "result"}),
		stageLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "guardian_stage_latency_seconds",
			Help:    "Per-stage scoring latency.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		}, []string{"stage"}),
		totalLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "guardian_request_latency_seconds",
			Help:    "End-to-end detection latency.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
		riskScore: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "guardian_hallucination_score",
			Help:    "Distribution of final hallucination scores.",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
	}
}

func (m *MetricsSink) Emit(_ context.Context, trace Trace) {
	cacheLabel := "miss"
	if trace.CacheHit {
		cacheLabel = "hit"
	}
	m.requests.WithLabelValues(cacheLabel).Inc()
	m.decisions.WithLabelValues(string(trace.Decision)).Inc()
	m.totalLatency.Observe(float64(trace.TotalLatencyMs) / 1000)
	m.riskScore.Observe(trace.HallucinationScore)

	for _, ev := range trace.Stages {
		result := "succeeded"
		switch {
		case ev.Skipped:
			result = "skipped"
		case !ev.Succeeded:
			result = "failed"
		}
		m.stageResults.WithLabelValues(string(ev.Stage), result).Inc()
		if !ev.Skipped {
			m.stageLatency.WithLabelValues(string(ev.Stage)).Observe(float64(ev.LatencyMs) / 1000)
		}
	}
}

var _ Sink = (*MetricsSink)(nil)
