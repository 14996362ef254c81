package scorer_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"quality-guardian/internal/domain"
	"quality-guardian/internal/scorer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubJudge struct {
	correctness float64
	err         error
}

func (s stubJudge) Judge(context.Context, string, string, string) (float64, error) {
	return s.correctness, s.err
}

func (s stubJudge) ModelName() string { return "stub-judge" }

type stubRecordCache struct {
	record *domain.DetectionRecord
}

func (s stubRecordCache) Lookup(context.Context, domain.DetectionRequest) (*domain.DetectionRecord, bool) {
	if s.record == nil {
		return nil, false
	}
	return s.record, true
}

func TestJudgeScorer_Score(t *testing.T) {
	log := slog.Default()
	req := domain.DetectionRequest{
		RequestID:       "req-1",
		Question:        "q?",
		CandidateAnswer: "a.",
	}

	t.Run("Judge correctness becomes the stage score", func(t *testing.T) {
		s := scorer.NewJudgeScorer(stubJudge{correctness: 0.85}, nil, time.Second, 2.0, log)
		outcome, err := s.Score(context.Background(), req)
		require.NoError(t, err)
		assert.True(t, outcome.Succeeded)
		assert.InDelta(t, 0.85, outcome.Score, 1e-9)
		assert.Equal(t, "model", outcome.Metadata["judge_source"])
		assert.Equal(t, "stub-judge", outcome.Metadata["judge_model"])
	})

	t.Run("Cached verdict avoids the judge call", func(t *testing.T) {
		cached := &domain.DetectionRecord{HallucinationScore: 0.2}
		s := scorer.NewJudgeScorer(stubJudge{err: errors.New("must not be called")}, stubRecordCache{record: cached}, time.Second, 2.0, log)

		outcome, err := s.Score(context.Background(), req)
		require.NoError(t, err)
		assert.True(t, outcome.Succeeded)
		assert.InDelta(t, 0.8, outcome.Score, 1e-9)
		assert.Equal(t, "cache", outcome.Metadata["judge_source"])
	})

	t.Run("Judge failure abstains", func(t *testing.T) {
		s := scorer.NewJudgeScorer(stubJudge{err: errors.New("model offline")}, nil, time.Second, 2.0, log)
		outcome, err := s.Score(context.Background(), req)
		require.NoError(t, err)
		assert.False(t, outcome.Succeeded)
		assert.Contains(t, outcome.FailureReason, "judge call failed")
	})

	t.Run("Out of range correctness is clamped", func(t *testing.T) {
		s := scorer.NewJudgeScorer(stubJudge{correctness: 1.4}, nil, time.Second, 2.0, log)
		outcome, err := s.Score(context.Background(), req)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, outcome.Score, 1e-9)
	})
}
