package scorer

import (
	"context"
	"strings"

	"quality-guardian/internal/domain"
)

// The built-in probe models are lightweight feature-based predictors used
// as the default Stage B ensemble. Each returns P(hallucinated) in [0,1];
// the ensemble scorer handles polarity inversion and timeouts.

// FactualConsistencyModel flags citation-free appeals to authority and
// hedged first-person claims.
type FactualConsistencyModel struct {
	ModelWeight float64
}

func (m FactualConsistencyModel) Name() string    { return "factual_consistency" }
func (m FactualConsistencyModel) Weight() float64 { return m.ModelWeight }

func (m FactualConsistencyModel) Predict(_ context.Context, req domain.DetectionRequest, features domain.TextFeatures) (float64, error) {
	lower := strings.ToLower(req.CandidateAnswer)
	score := 0.0
	if strings.Contains(lower, "wikipedia") || strings.Contains(lower, "according to") {
		score += 0.1
	}
	if strings.Contains(lower, "i believe") || strings.Contains(lower, "i think") {
		score += 0.15
	}
	if strings.Contains(lower, "however") || strings.Contains(lower, "but") {
		score -= 0.1
	}
	if len(features.UniqueEntities) > 15 {
		score += 0.2
	}
	return clamp01(score), nil
}

// LogicalCoherenceModel looks for run-on structure and stacked
// contradiction markers.
type LogicalCoherenceModel struct {
	ModelWeight float64
}

func (m LogicalCoherenceModel) Name() string    { return "logical_coherence" }
func (m LogicalCoherenceModel) Weight() float64 { return m.ModelWeight }

func (m LogicalCoherenceModel) Predict(_ context.Context, req domain.DetectionRequest, features domain.TextFeatures) (float64, error) {
	score := 0.0
	if features.AvgSentenceLength > 30 {
		score += 0.1
	}
	lower := strings.ToLower(req.CandidateAnswer)
	contradictions := 0
	for _, w := range []string{"but", "however", "although", "yet"} {
		if strings.Contains(lower, w) {
			contradictions++
		}
	}
	if contradictions > 2 {
		score += 0.15
	}
	if n := len(features.LinguisticPatterns); n > 0 {
		score += 0.1 * float64(min(n, 3)) / 3
	}
	return clamp01(score), nil
}

// SemanticDivergenceModel scores how far the answer's vocabulary strays
// from the question and reference context. High novelty combined with a
// dense entity ratio is the classic fabrication signature.
type SemanticDivergenceModel struct {
	ModelWeight float64
}

func (m SemanticDivergenceModel) Name() string    { return "semantic_divergence" }
func (m SemanticDivergenceModel) Weight() float64 { return m.ModelWeight }

func (m SemanticDivergenceModel) Predict(_ context.Context, req domain.DetectionRequest, features domain.TextFeatures) (float64, error) {
	score := 0.0
	if features.WordCount > 0 {
		entityRatio := float64(len(features.UniqueEntities)) / float64(features.WordCount)
		if entityRatio > 0.3 {
			score += 0.2
		}
	}

	answer := domain.ContentTokens(req.CandidateAnswer)
	if len(answer) > 0 {
		known := make(map[string]struct{})
		for _, t := range domain.ContentTokens(req.Question) {
			known[t] = struct{}{}
		}
		for _, t := range domain.ContentTokens(req.ReferenceContext) {
			known[t] = struct{}{}
		}
		novel := 0
		for _, t := range answer {
			if _, ok := known[t]; !ok {
				novel++
			}
		}
		score += 0.6 * float64(novel) / float64(len(answer))
	}
	return clamp01(score), nil
}

// SyntacticAnomalyModel flags fragmented or degenerate sentence shape.
type SyntacticAnomalyModel struct {
	ModelWeight float64
}

func (m SyntacticAnomalyModel) Name() string    { return "syntactic_anomaly" }
func (m SyntacticAnomalyModel) Weight() float64 { return m.ModelWeight }

func (m SyntacticAnomalyModel) Predict(_ context.Context, _ domain.DetectionRequest, features domain.TextFeatures) (float64, error) {
	score := 0.0
	if features.AvgSentenceLength < 5 {
		score += 0.1
	} else if features.AvgSentenceLength > 40 {
		score += 0.15
	}
	if features.SentenceCount == 1 && features.WordCount > 100 {
		score += 0.2
	}
	if features.DistinctRatio > 0 && features.DistinctRatio < 0.3 {
		score += 0.25
	}
	return clamp01(score), nil
}

// DefaultProbeModels returns the built-in ensemble with equal weights.
func DefaultProbeModels() []domain.ProbeModel {
	return []domain.ProbeModel{
		FactualConsistencyModel{ModelWeight: 1.0},
		LogicalCoherenceModel{ModelWeight: 1.0},
		SemanticDivergenceModel{ModelWeight: 1.0},
		SyntacticAnomalyModel{ModelWeight: 1.0},
	}
}

var (
	_ domain.ProbeModel = FactualConsistencyModel{}
	_ domain.ProbeModel = LogicalCoherenceModel{}
	_ domain.ProbeModel = SemanticDivergenceModel{}
	_ domain.ProbeModel = SyntacticAnomalyModel{}
)
