package decision

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"quality-guardian/internal/domain"
	"quality-guardian/internal/ensemble"
)

// Thresholds map the external hallucination risk to an action.
type Thresholds struct {
	// Accept: risk below this is ACCEPT.
	Accept float64
	// Regenerate: risk at or above this is REGENERATE. FLAG in between.
	Regenerate float64
}

// DefaultThresholds returns the production action thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{Accept: 0.3, Regenerate: 0.7}
}

// Engine maps aggregated stage outcomes to a final DetectionRecord.
//
// This is the single polarity boundary of the system: stage outcomes
// arrive in the internal convention (1 = confidently non-hallucinated)
// and are translated per stage to external hallucination risk BEFORE
// aggregation. Nothing downstream of this package sees internal scores.
type Engine struct {
	thresholds Thresholds
	interval   ensemble.IntervalConfig
	extractor  domain.FeatureExtractor
	logger     *slog.Logger
}

// NewEngine creates a decision engine.
func NewEngine(thresholds Thresholds, interval ensemble.IntervalConfig, logger *slog.Logger) *Engine {
	return &Engine{
		thresholds: thresholds,
		interval:   interval,
		extractor:  domain.NewFeatureExtractor(),
		logger:     logger,
	}
}

// Assemble produces the final, immutable record for the request.
func (e *Engine) Assemble(req domain.DetectionRequest, outcomes []domain.StageOutcome, totalLatency time.Duration) domain.DetectionRecord {
	// Per-stage polarity translation, before aggregation.
	risks := make([]domain.StageOutcome, len(outcomes))
	for i, o := range outcomes {
		risks[i] = o
		risks[i].Score = 1 - o.Score
	}

	score, ok := ensemble.Combine(risks)
	explanations := e.explain(outcomes)

	if !ok {
		// Fully degraded: every stage failed or was skipped. Never
		// default to ACCEPT; flag with a maximal-width interval.
		score = 0.5
		explanations = append(explanations,
			"no reliable signal was obtained from any stage; answer flagged for review")
	}

	dec := e.decide(score)
	record := domain.DetectionRecord{
		RequestID:          req.RequestID,
		HallucinationScore: score,
		Confidence:         ensemble.Interval(score, risks, e.interval),
		StagesExecuted:     executedStages(outcomes),
		StageOutcomes:      outcomes,
		Decision:           dec,
		Explanations:       explanations,
		TotalLatencyMs:     totalLatency.Milliseconds(),
		CreatedAt:          time.Now().UTC(),
	}
	if dec != domain.DecisionAccept {
		record.HallucinationType = e.classifyType(req)
	}

	e.logger.Info("decision_assembled",
		slog.String("request_id", req.RequestID),
		slog.Float64("hallucination_score", score),
		slog.String("decision", string(dec)),
		slog.Int("stages_executed", len(record.StagesExecuted)))
	return record
}

// decide is a pure threshold lookup; the decision is a deterministic
// function of the score.
func (e *Engine) decide(risk float64) domain.Decision {
	switch {
	case risk < e.thresholds.Accept:
		return domain.DecisionAccept
	case risk < e.thresholds.Regenerate:
		return domain.DecisionFlag
	default:
		return domain.DecisionRegenerate
	}
}

func executedStages(outcomes []domain.StageOutcome) []domain.Stage {
	var stages []domain.Stage
	for _, o := range outcomes {
		if !o.Skipped {
			stages = append(stages, o.Stage)
		}
	}
	return stages
}

// explain builds human-readable reasons from stage metadata, in stage
// order, including failure and skip notices for diagnostics.
func (e *Engine) explain(outcomes []domain.StageOutcome) []string {
	var explanations []string
	for _, o := range outcomes {
		switch {
		case o.Skipped:
			explanations = append(explanations,
				fmt.Sprintf("stage %s %s", o.Stage, o.FailureReason))
		case !o.Succeeded:
			explanations = append(explanations,
				fmt.Sprintf("stage %s failed: %s", o.Stage, o.FailureReason))
		default:
			explanations = append(explanations, e.explainStage(o)...)
		}
	}
	return explanations
}

func (e *Engine) explainStage(o domain.StageOutcome) []string {
	var out []string
	switch o.Stage {
	case domain.StageA:
		if v, ok := o.Metadata["vocabulary_novelty"]; ok {
			out = append(out, fmt.Sprintf("vocabulary novelty %s", v))
		}
		if v, ok := o.Metadata["length_ratio"]; ok {
			out = append(out, fmt.Sprintf("answer/question length ratio %s", v))
		}
		if v, ok := o.Metadata["uncertainty_patterns"]; ok {
			out = append(out, fmt.Sprintf("%s hedged claim(s) detected", v))
		}
	case domain.StageB:
		if v, ok := o.Metadata["hallucination_probability"]; ok {
			out = append(out, fmt.Sprintf("probe ensemble hallucination probability %s", v))
		}
		names := make([]string, 0, len(o.PerModelScores))
		for name := range o.PerModelScores {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			out = append(out, fmt.Sprintf("probe %s: %.2f", name, o.PerModelScores[name]))
		}
	case domain.StageC:
		if v, ok := o.Metadata["context_agreement"]; ok {
			out = append(out, fmt.Sprintf("context agreement %s", v))
		}
	case domain.StageD:
		if v, ok := o.Metadata["correctness"]; ok {
			out = append(out, fmt.Sprintf("judge correctness %s", v))
		}
		if o.Metadata["judge_source"] == "cache" {
			out = append(out, "judge verdict served from cache")
		}
	}
	return out
}

// classifyType maps linguistic evidence to a hallucination category,
// mirroring the quality-analyzer taxonomy.
func (e *Engine) classifyType(req domain.DetectionRequest) string {
	features := e.extractor.Extract(req.CandidateAnswer)
	hasUncertain := false
	for _, p := range features.LinguisticPatterns {
		if strings.HasPrefix(p, "uncertain_claim") {
			hasUncertain = true
			break
		}
	}
	switch {
	case hasUncertain:
		return "factual_error"
	case len(features.LinguisticPatterns) > 0:
		return "logical_contradiction"
	default:
		return "out_of_context"
	}
}
