package ensemble_test

import (
	"testing"

	"quality-guardian/internal/domain"
	"quality-guardian/internal/ensemble"

	"github.com/stretchr/testify/assert"
)

func succeeded(stage domain.Stage, score, weight float64) domain.StageOutcome {
	return domain.StageOutcome{Stage: stage, Score: score, Weight: weight, Succeeded: true}
}

func TestCombine(t *testing.T) {
	t.Run("Weighted average over successful stages", func(t *testing.T) {
		score, ok := ensemble.Combine([]domain.StageOutcome{
			succeeded(domain.StageA, 0.9, 0.5),
			succeeded(domain.StageB, 0.6, 1.0),
		})
		assert.True(t, ok)
		assert.InDelta(t, 0.7, score, 1e-9)
	})

	t.Run("Failed stages are excluded entirely", func(t *testing.T) {
		score, ok := ensemble.Combine([]domain.StageOutcome{
			succeeded(domain.StageA, 0.9, 0.5),
			{Stage: domain.StageB, Score: 0.1, Weight: 1.0, Succeeded: false},
		})
		assert.True(t, ok)
		assert.InDelta(t, 0.9, score, 1e-9)
	})

	t.Run("Skipped stages carry no weight", func(t *testing.T) {
		score, ok := ensemble.Combine([]domain.StageOutcome{
			succeeded(domain.StageA, 0.8, 0.5),
			{Stage: domain.StageC, Weight: 1.5, Skipped: true},
		})
		assert.True(t, ok)
		assert.InDelta(t, 0.8, score, 1e-9)
	})

	t.Run("No successful stage", func(t *testing.T) {
		_, ok := ensemble.Combine([]domain.StageOutcome{
			{Stage: domain.StageA, Succeeded: false},
		})
		assert.False(t, ok)
	})
}

func TestInterval(t *testing.T) {
	cfg := ensemble.DefaultIntervalConfig()

	t.Run("More agreeing stages narrow the interval", func(t *testing.T) {
		one := ensemble.Interval(0.5, []domain.StageOutcome{
			succeeded(domain.StageA, 0.5, 1),
		}, cfg)
		three := ensemble.Interval(0.5, []domain.StageOutcome{
			succeeded(domain.StageA, 0.5, 1),
			succeeded(domain.StageB, 0.5, 1),
			succeeded(domain.StageC, 0.5, 1),
		}, cfg)
		assert.Less(t, three.Width(), one.Width())
	})

	t.Run("Disagreement widens the interval", func(t *testing.T) {
		agree := ensemble.Interval(0.5, []domain.StageOutcome{
			succeeded(domain.StageA, 0.5, 1),
			succeeded(domain.StageB, 0.5, 1),
		}, cfg)
		disagree := ensemble.Interval(0.5, []domain.StageOutcome{
			succeeded(domain.StageA, 0.1, 1),
			succeeded(domain.StageB, 0.9, 1),
		}, cfg)
		assert.Greater(t, disagree.Width(), agree.Width())
	})

	t.Run("No successful stage yields the maximum width", func(t *testing.T) {
		ci := ensemble.Interval(0.5, nil, cfg)
		assert.InDelta(t, cfg.MaxWidth, ci.Width(), 1e-9)
	})

	t.Run("Interval is shifted inside bounds without shrinking", func(t *testing.T) {
		ci := ensemble.Interval(0.02, []domain.StageOutcome{
			succeeded(domain.StageA, 0.02, 1),
		}, cfg)
		assert.GreaterOrEqual(t, ci.Lower, 0.0)
		assert.LessOrEqual(t, ci.Upper, 1.0)
		assert.InDelta(t, cfg.BaseWidth, ci.Width(), 1e-9)
	})

	t.Run("Width respects the floor", func(t *testing.T) {
		stages := make([]domain.StageOutcome, 10)
		for i := range stages {
			stages[i] = succeeded(domain.StageA, 0.4, 1)
		}
		ci := ensemble.Interval(0.4, stages, cfg)
		assert.GreaterOrEqual(t, ci.Width(), cfg.MinWidth-1e-9)
	})
}
