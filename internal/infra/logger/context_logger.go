package logger

import (
	"context"
	"log/slog"
)

type ContextKey string

const (
	// Business context keys for detection observability.
	// These follow OpenTelemetry semantic conventions with 'guardian.' prefix.
	RequestIDKey ContextKey = "guardian.request.id"
	StageKey     ContextKey = "guardian.detection.stage"
	ModelNameKey ContextKey = "guardian.model.name"
)

// ContextLogger provides context-aware logging for the detection pipeline.
type ContextLogger struct {
	logger      *slog.Logger
	serviceName string
}

// NewContextLogger wraps an already configured base logger, so context
// fields flow through the same handlers (stdout JSON, OTel bridge).
func NewContextLogger(base *slog.Logger, serviceName string) *ContextLogger {
	return &ContextLogger{
		logger:      base,
		serviceName: serviceName,
	}
}

// WithContext returns a logger with context values extracted and added as fields
func (cl *ContextLogger) WithContext(ctx context.Context) *slog.Logger {
	logger := cl.logger.With("service", cl.serviceName)

	var fields []any

	if requestID := ctx.Value(RequestIDKey); requestID != nil {
		fields = append(fields, string(RequestIDKey), requestID)
	}
	if stage := ctx.Value(StageKey); stage != nil {
		fields = append(fields, string(StageKey), stage)
	}
	if model := ctx.Value(ModelNameKey); model != nil {
		fields = append(fields, string(ModelNameKey), model)
	}

	if len(fields) > 0 {
		logger = logger.With(fields...)
	}

	return logger
}

// WithRequestID adds the detection request ID to context for observability
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithStage adds the cascade stage to context for observability
func WithStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, StageKey, stage)
}

// WithModelName adds the generating model name to context for observability
func WithModelName(ctx context.Context, model string) context.Context {
	return context.WithValue(ctx, ModelNameKey, model)
}
