package telemetry

import (
	"context"
	"log/slog"

	"quality-guardian/internal/domain"
)

// StageEvent is one stage's contribution to a request trace.
type StageEvent struct {
	Stage     domain.Stage
	Score     float64
	LatencyMs int64
	Succeeded bool
	Skipped   bool
}

// Trace is the full per-request record the pipeline emits unconditionally
// so external monitoring can derive latency percentiles, hallucination
// rate, per-stage fallthrough rate, and cache hit rate.
type Trace struct {
	RequestID          string
	Stages             []StageEvent
	Decision           domain.Decision
	HallucinationScore float64
	CacheHit           bool
	TotalLatencyMs     int64
}

// Sink receives request traces. Implementations must not block the
// pipeline; emission errors are the sink's problem.
type Sink interface {
	Emit(ctx context.Context, trace Trace)
}

// SlogSink writes traces as structured log events.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink creates a log-based sink.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	return &SlogSink{logger: logger}
}

func (s *SlogSink) Emit(ctx context.Context, trace Trace) {
	attrs := []any{
		slog.String("request_id", trace.RequestID),
		slog.String("decision", string(trace.Decision)),
		slog.Float64("hallucination_score", trace.HallucinationScore),
		slog.Bool("cache_hit", trace.CacheHit),
		slog.Int64("total_latency_ms", trace.TotalLatencyMs),
	}
	for _, ev := range trace.Stages {
		attrs = append(attrs, slog.Group("stage_"+string(ev.Stage),
			slog.Float64("score", ev.Score),
			slog.Int64("latency_ms", ev.LatencyMs),
			slog.Bool("succeeded", ev.Succeeded),
			slog.Bool("skipped", ev.Skipped),
		))
	}
	s.logger.InfoContext(ctx, "detection_trace", attrs...)
}

// MultiSink fans a trace out to several sinks.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink combines sinks; nil entries are skipped.
func NewMultiSink(sinks ...Sink) *MultiSink {
	var filtered []Sink
	for _, s := range sinks {
		if s != nil {
			filtered = append(filtered, s)
		}
	}
	return &MultiSink{sinks: filtered}
}

func (m *MultiSink) Emit(ctx context.Context, trace Trace) {
	for _, s := range m.sinks {
		s.Emit(ctx, trace)
	}
}

var (
	_ Sink = (*SlogSink)(nil)
	_ Sink = (*MultiSink)(nil)
)
