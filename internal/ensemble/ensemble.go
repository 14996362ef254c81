package ensemble

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"quality-guardian/internal/domain"
)

// Scorer runs the Stage B probe ensemble: every member model is queried
// concurrently under its own bounded timeout, each writing into a private
// result slot. Aggregation is a weighted average renormalized over the
// members that succeeded; if every member fails the stage abstains.
type Scorer struct {
	models        []domain.ProbeModel
	extractor     domain.FeatureExtractor
	memberTimeout time.Duration
	expected      time.Duration
	weight        float64
	logger        *slog.Logger
}

// NewScorer builds the Stage B scorer.
func NewScorer(models []domain.ProbeModel, memberTimeout, expected time.Duration, stageWeight float64, logger *slog.Logger) *Scorer {
	return &Scorer{
		models:        models,
		extractor:     domain.NewFeatureExtractor(),
		memberTimeout: memberTimeout,
		expected:      expected,
		weight:        stageWeight,
		logger:        logger,
	}
}

func (s *Scorer) Stage() domain.Stage            { return domain.StageB }
func (s *Scorer) ExpectedLatency() time.Duration { return s.expected }
func (s *Scorer) Weight() float64                { return s.weight }

type memberResult struct {
	name        string
	probability float64
	weight      float64
	err         error
}

// Score fans out to all ensemble members and combines the survivors.
// Member probabilities are P(hallucinated); the returned outcome is in
// the internal polarity (confidence non-hallucinated).
func (s *Scorer) Score(ctx context.Context, req domain.DetectionRequest) (domain.StageOutcome, error) {
	start := time.Now()

	if len(s.models) == 0 {
		return domain.StageOutcome{
			Stage:         domain.StageB,
			Weight:        s.weight,
			Succeeded:     false,
			FailureReason: "no ensemble models configured",
			LatencyMs:     time.Since(start).Milliseconds(),
		}, nil
	}

	features := s.extractor.Extract(req.CandidateAnswer)

	results := make([]memberResult, len(s.models))
	var wg sync.WaitGroup
	for i, model := range s.models {
		wg.Add(1)
		go func(slot int, m domain.ProbeModel) {
			defer wg.Done()
			results[slot] = s.queryModel(ctx, m, req, features)
		}(i, model)
	}
	wg.Wait()

	perModel := make(map[string]float64)
	weightedSum := 0.0
	weightTotal := 0.0
	failed := 0
	for _, r := range results {
		if r.err != nil {
			failed++
			s.logger.Warn("ensemble_member_failed",
				slog.String("model", r.name),
				slog.String("error", r.err.Error()))
			continue
		}
		perModel[r.name] = r.probability
		weightedSum += r.probability * r.weight
		weightTotal += r.weight
	}

	outcome := domain.StageOutcome{
		Stage:          domain.StageB,
		Weight:         s.weight,
		LatencyMs:      time.Since(start).Milliseconds(),
		PerModelScores: perModel,
		Metadata:       map[string]string{},
	}

	if weightTotal == 0 {
		// Full abstention: no signal in either direction.
		outcome.Succeeded = false
		outcome.FailureReason = fmt.Sprintf("all %d ensemble members failed", failed)
		return outcome, nil
	}

	probability := weightedSum / weightTotal
	outcome.Succeeded = true
	outcome.Score = 1 - probability
	outcome.Metadata["hallucination_probability"] = fmt.Sprintf("%.2f", probability)
	outcome.Metadata["members_succeeded"] = fmt.Sprintf("%d/%d", len(perModel), len(s.models))
	return outcome, nil
}

// queryModel calls one member under its own timeout. A timed-out member is
// abandoned, not awaited: the goroutine delivering into ch is left to
// finish on its own.
func (s *Scorer) queryModel(ctx context.Context, m domain.ProbeModel, req domain.DetectionRequest, features domain.TextFeatures) memberResult {
	memberCtx, cancel := context.WithTimeout(ctx, s.memberTimeout)
	defer cancel()

	type prediction struct {
		p   float64
		err error
	}
	ch := make(chan prediction, 1)
	go func() {
		p, err := m.Predict(memberCtx, req, features)
		ch <- prediction{p: p, err: err}
	}()

	select {
	case <-memberCtx.Done():
		return memberResult{name: m.Name(), weight: m.Weight(), err: memberCtx.Err()}
	case pred := <-ch:
		if pred.err != nil {
			return memberResult{name: m.Name(), weight: m.Weight(), err: pred.err}
		}
		return memberResult{name: m.Name(), probability: clamp01(pred.p), weight: m.Weight()}
	}
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

var _ domain.StageScorer = (*Scorer)(nil)
