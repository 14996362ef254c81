package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"quality-guardian/internal/infra/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextLogger_WithContext(t *testing.T) {
	t.Run("Context fields appear on the log record", func(t *testing.T) {
		var buf bytes.Buffer
		base := slog.New(slog.NewJSONHandler(&buf, nil))
		cl := logger.NewContextLogger(base, "quality-guardian")

		ctx := logger.WithRequestID(context.Background(), "req-42")
		ctx = logger.WithStage(ctx, "B")
		ctx = logger.WithModelName(ctx, "gpt-oss20b-cpu")

		cl.WithContext(ctx).Info("stage_failed")

		var record map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
		assert.Equal(t, "quality-guardian", record["service"])
		assert.Equal(t, "req-42", record[string(logger.RequestIDKey)])
		assert.Equal(t, "B", record[string(logger.StageKey)])
		assert.Equal(t, "gpt-oss20b-cpu", record[string(logger.ModelNameKey)])
	})

	t.Run("Empty context adds only the service field", func(t *testing.T) {
		var buf bytes.Buffer
		base := slog.New(slog.NewJSONHandler(&buf, nil))
		cl := logger.NewContextLogger(base, "quality-guardian")

		cl.WithContext(context.Background()).Info("detection_started")

		var record map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
		assert.Equal(t, "quality-guardian", record["service"])
		assert.NotContains(t, record, string(logger.RequestIDKey))
		assert.NotContains(t, record, string(logger.StageKey))
	})
}
