package ensemble_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"quality-guardian/internal/domain"
	"quality-guardian/internal/ensemble"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProbe struct {
	name        string
	weight      float64
	probability float64
	err         error
	delay       time.Duration
}

func (f fakeProbe) Name() string    { return f.name }
func (f fakeProbe) Weight() float64 { return f.weight }

func (f fakeProbe) Predict(ctx context.Context, _ domain.DetectionRequest, _ domain.TextFeatures) (float64, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	return f.probability, f.err
}

func newTestScorer(models ...domain.ProbeModel) *ensemble.Scorer {
	return ensemble.NewScorer(models, 100*time.Millisecond, 200*time.Millisecond, 1.0, slog.Default())
}

var testRequest = domain.DetectionRequest{
	Question:        "What is the capital of France?",
	CandidateAnswer: "Paris is the capital of France.",
}

func TestEnsembleScorer_Score(t *testing.T) {
	t.Run("Weighted average over all members", func(t *testing.T) {
		s := newTestScorer(
			fakeProbe{name: "a", weight: 1.0, probability: 0.2},
			fakeProbe{name: "b", weight: 1.0, probability: 0.4},
			fakeProbe{name: "c", weight: 2.0, probability: 0.1},
		)
		outcome, err := s.Score(context.Background(), testRequest)
		require.NoError(t, err)
		assert.True(t, outcome.Succeeded)
		// (0.2 + 0.4 + 2*0.1) / 4 = 0.2 hallucination probability
		assert.InDelta(t, 0.8, outcome.Score, 1e-9)
		assert.Equal(t, "3/3", outcome.Metadata["members_succeeded"])
		assert.Len(t, outcome.PerModelScores, 3)
	})

	t.Run("Failed members renormalize over survivors", func(t *testing.T) {
		s := newTestScorer(
			fakeProbe{name: "a", weight: 1.0, err: errors.New("model unavailable")},
			fakeProbe{name: "b", weight: 1.0, probability: 0.3},
			fakeProbe{name: "c", weight: 1.0, err: errors.New("model unavailable")},
		)
		outcome, err := s.Score(context.Background(), testRequest)
		require.NoError(t, err)
		assert.True(t, outcome.Succeeded)
		// Sole survivor's probability carries the whole stage.
		assert.InDelta(t, 0.7, outcome.Score, 1e-9)
		assert.Equal(t, "1/3", outcome.Metadata["members_succeeded"])
	})

	t.Run("Slow member times out without sinking the stage", func(t *testing.T) {
		s := newTestScorer(
			fakeProbe{name: "slow", weight: 1.0, probability: 0.9, delay: 5 * time.Second},
			fakeProbe{name: "fast", weight: 1.0, probability: 0.1},
		)
		start := time.Now()
		outcome, err := s.Score(context.Background(), testRequest)
		require.NoError(t, err)
		assert.True(t, outcome.Succeeded)
		assert.InDelta(t, 0.9, outcome.Score, 1e-9)
		assert.Less(t, time.Since(start), time.Second)
	})

	t.Run("All members failed abstains", func(t *testing.T) {
		s := newTestScorer(
			fakeProbe{name: "a", weight: 1.0, err: errors.New("down")},
			fakeProbe{name: "b", weight: 1.0, err: errors.New("down")},
		)
		outcome, err := s.Score(context.Background(), testRequest)
		require.NoError(t, err)
		assert.False(t, outcome.Succeeded)
		assert.Contains(t, outcome.FailureReason, "all 2 ensemble members failed")
	})

	t.Run("No models configured abstains", func(t *testing.T) {
		s := newTestScorer()
		outcome, err := s.Score(context.Background(), testRequest)
		require.NoError(t, err)
		assert.False(t, outcome.Succeeded)
	})

	t.Run("Out of range predictions are clamped", func(t *testing.T) {
		s := newTestScorer(fakeProbe{name: "wild", weight: 1.0, probability: 1.7})
		outcome, err := s.Score(context.Background(), testRequest)
		require.NoError(t, err)
		assert.InDelta(t, 0.0, outcome.Score, 1e-9)
	})
}
