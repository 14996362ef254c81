package ensemble

import (
	"math"

	"quality-guardian/internal/domain"
)

// IntervalConfig bounds the confidence interval width so it is never
// degenerate, even with a single executed stage.
type IntervalConfig struct {
	BaseWidth float64
	MinWidth  float64
	MaxWidth  float64
}

// DefaultIntervalConfig matches the calibrated production bounds.
func DefaultIntervalConfig() IntervalConfig {
	return IntervalConfig{BaseWidth: 0.3, MinWidth: 0.05, MaxWidth: 0.9}
}

// Combine merges executed stage outcomes into one internal-polarity score:
// the weighted average over successful stages only. Failed and skipped
// stages contribute nothing to the numerator or the denominator.
// ok is false when no stage succeeded.
func Combine(outcomes []domain.StageOutcome) (score float64, ok bool) {
	weightedSum := 0.0
	weightTotal := 0.0
	for _, o := range outcomes {
		if !o.Succeeded {
			continue
		}
		weightedSum += o.Score * o.Weight
		weightTotal += o.Weight
	}
	if weightTotal == 0 {
		return 0, false
	}
	return weightedSum / weightTotal, true
}

// Interval computes the confidence interval around center (external
// polarity). Width shrinks with the number of successful stages and their
// pairwise agreement, and widens on disagreement or sparse signal.
func Interval(center float64, outcomes []domain.StageOutcome, cfg IntervalConfig) domain.ConfidenceInterval {
	var scores []float64
	for _, o := range outcomes {
		if o.Succeeded {
			scores = append(scores, o.Score)
		}
	}

	width := cfg.MaxWidth
	if n := len(scores); n > 0 {
		width = cfg.BaseWidth / (float64(n) * agreement(scores))
	}
	width = math.Min(math.Max(width, cfg.MinWidth), cfg.MaxWidth)

	half := width / 2
	lower := center - half
	upper := center + half
	// Shift back inside [0,1] without shrinking the width.
	if lower < 0 {
		upper = math.Min(upper-lower, 1)
		lower = 0
	}
	if upper > 1 {
		lower = math.Max(lower-(upper-1), 0)
		upper = 1
	}
	return domain.ConfidenceInterval{Lower: lower, Upper: upper}
}

// agreement maps the mean pairwise score distance to (0,1]: identical
// scores give 1, maximally spread scores approach the floor.
func agreement(scores []float64) float64 {
	if len(scores) < 2 {
		return 1
	}
	sum := 0.0
	pairs := 0
	for i := 0; i < len(scores); i++ {
		for j := i + 1; j < len(scores); j++ {
			sum += math.Abs(scores[i] - scores[j])
			pairs++
		}
	}
	a := 1 - sum/float64(pairs)
	if a < 0.1 {
		return 0.1
	}
	return a
}
