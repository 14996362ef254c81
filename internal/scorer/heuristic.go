package scorer

import (
	"context"
	"fmt"
	"time"

	"quality-guardian/internal/domain"
)

// HeuristicWeights controls how the three Stage A metrics combine.
type HeuristicWeights struct {
	LengthRatio float64
	Novelty     float64
	Consistency float64
}

// DefaultHeuristicWeights mirror the tuned production values.
func DefaultHeuristicWeights() HeuristicWeights {
	return HeuristicWeights{LengthRatio: 0.3, Novelty: 0.4, Consistency: 0.3}
}

// HeuristicScorer is the Stage A adapter: pure computation over the
// request text, no external calls. It never fails; undefined metrics fall
// back to a neutral midpoint recorded in metadata.
type HeuristicScorer struct {
	extractor domain.FeatureExtractor
	weights   HeuristicWeights
	weight    float64
}

// NewHeuristicScorer builds the Stage A scorer with the given stage
// weight for cross-stage aggregation.
func NewHeuristicScorer(weights HeuristicWeights, stageWeight float64) *HeuristicScorer {
	return &HeuristicScorer{
		extractor: domain.NewFeatureExtractor(),
		weights:   weights,
		weight:    stageWeight,
	}
}

func (s *HeuristicScorer) Stage() domain.Stage { return domain.StageA }

// ExpectedLatency is a fixed small budget; the computation is in-memory.
func (s *HeuristicScorer) ExpectedLatency() time.Duration { return 10 * time.Millisecond }

func (s *HeuristicScorer) Weight() float64 { return s.weight }

// Score computes confidence_a, the confidence that the answer is not
// hallucinated, from token-length ratio, vocabulary novelty, and a
// repetition/self-consistency estimate.
func (s *HeuristicScorer) Score(_ context.Context, req domain.DetectionRequest) (domain.StageOutcome, error) {
	start := time.Now()
	metadata := make(map[string]string)

	features := s.extractor.Extract(req.CandidateAnswer)

	lengthScore := s.lengthRatioScore(req, metadata)
	noveltyScore := s.noveltyScore(req, metadata)
	consistencyScore := s.consistencyScore(features, metadata)

	total := s.weights.LengthRatio + s.weights.Novelty + s.weights.Consistency
	confidence := (s.weights.LengthRatio*lengthScore +
		s.weights.Novelty*noveltyScore +
		s.weights.Consistency*consistencyScore) / total

	// Hedged phrasing lowers confidence directly.
	if n := len(features.LinguisticPatterns); n > 0 {
		penalty := 0.05 * float64(min(n, 3))
		confidence -= penalty
		metadata["uncertainty_patterns"] = fmt.Sprintf("%d", n)
	}
	confidence = clamp01(confidence)

	return domain.StageOutcome{
		Stage:     domain.StageA,
		Score:     confidence,
		Weight:    s.weight,
		LatencyMs: time.Since(start).Milliseconds(),
		Succeeded: true,
		Metadata:  metadata,
	}, nil
}

// lengthRatioScore compares answer length against question length.
// Ratios inside [0.3, 3] look normal; extremes degrade linearly.
func (s *HeuristicScorer) lengthRatioScore(req domain.DetectionRequest, metadata map[string]string) float64 {
	answerTokens := domain.Tokens(req.CandidateAnswer)
	questionTokens := domain.Tokens(req.Question)
	if len(answerTokens) == 0 || len(questionTokens) == 0 {
		metadata["length_ratio"] = "undefined"
		return 0.5
	}

	ratio := float64(len(answerTokens)) / float64(len(questionTokens))
	metadata["length_ratio"] = fmt.Sprintf("%.2f", ratio)

	switch {
	case ratio >= 0.3 && ratio <= 3:
		return 1.0
	case ratio > 3:
		return maxFloat(0.25, 1-(ratio-3)*0.15)
	default:
		return maxFloat(0.25, ratio/0.3)
	}
}

// noveltyScore measures the fraction of answer tokens absent from the
// question and reference context. A squared penalty keeps mild novelty
// (the answer has to add something) from dominating.
func (s *HeuristicScorer) noveltyScore(req domain.DetectionRequest, metadata map[string]string) float64 {
	answerTokens := domain.Tokens(req.CandidateAnswer)
	if len(answerTokens) == 0 {
		metadata["vocabulary_novelty"] = "undefined"
		return 0.5
	}

	known := make(map[string]struct{})
	for _, t := range domain.Tokens(req.Question) {
		known[t] = struct{}{}
	}
	for _, t := range domain.Tokens(req.ReferenceContext) {
		known[t] = struct{}{}
	}

	novel := 0
	for _, t := range answerTokens {
		if _, ok := known[t]; !ok {
			novel++
		}
	}
	novelty := float64(novel) / float64(len(answerTokens))
	metadata["vocabulary_novelty"] = fmt.Sprintf("%.0f%%", novelty*100)

	return 1 - novelty*novelty
}

// consistencyScore approximates self-consistency from token repetition:
// heavily repeated vocabulary is a degeneration signal.
func (s *HeuristicScorer) consistencyScore(features domain.TextFeatures, metadata map[string]string) float64 {
	if features.WordCount == 0 {
		metadata["distinct_ratio"] = "undefined"
		return 0.5
	}
	metadata["distinct_ratio"] = fmt.Sprintf("%.2f", features.DistinctRatio)
	if features.DistinctRatio >= 0.5 {
		return 1.0
	}
	return features.DistinctRatio / 0.5
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

var _ domain.StageScorer = (*HeuristicScorer)(nil)
