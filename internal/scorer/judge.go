package scorer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"quality-guardian/internal/domain"
)

// RecordCache is the slice of the similarity cache the judge needs: a
// threshold-checked nearest lookup. The judge consults it before issuing
// a new expensive call.
type RecordCache interface {
	Lookup(ctx context.Context, req domain.DetectionRequest) (*domain.DetectionRecord, bool)
}

// JudgeScorer is the Stage D adapter around the LLM-as-judge call. It is
// the most expensive stage and is invoked least often. Timeouts degrade
// to abstention, never to an error that aborts the request.
type JudgeScorer struct {
	client   domain.JudgeClient
	cache    RecordCache
	expected time.Duration
	weight   float64
	logger   *slog.Logger
}

// NewJudgeScorer builds the Stage D scorer. cache may be nil when caching
// is disabled.
func NewJudgeScorer(client domain.JudgeClient, cache RecordCache, expected time.Duration, stageWeight float64, logger *slog.Logger) *JudgeScorer {
	return &JudgeScorer{
		client:   client,
		cache:    cache,
		expected: expected,
		weight:   stageWeight,
		logger:   logger,
	}
}

func (s *JudgeScorer) Stage() domain.Stage            { return domain.StageD }
func (s *JudgeScorer) ExpectedLatency() time.Duration { return s.expected }
func (s *JudgeScorer) Weight() float64                { return s.weight }

func (s *JudgeScorer) Score(ctx context.Context, req domain.DetectionRequest) (domain.StageOutcome, error) {
	start := time.Now()

	if s.cache != nil {
		if record, ok := s.cache.Lookup(ctx, req); ok {
			s.logger.Info("judge_cache_hit", slog.String("request_id", req.RequestID))
			return domain.StageOutcome{
				Stage:     domain.StageD,
				Score:     1 - record.HallucinationScore,
				Weight:    s.weight,
				LatencyMs: time.Since(start).Milliseconds(),
				Succeeded: true,
				Metadata: map[string]string{
					"judge_source": "cache",
				},
			}, nil
		}
	}

	correctness, err := s.client.Judge(ctx, req.Question, req.CandidateAnswer, req.ReferenceContext)
	if err != nil {
		s.logger.Warn("judge_call_failed",
			slog.String("request_id", req.RequestID),
			slog.String("model", s.client.ModelName()),
			slog.String("error", err.Error()))
		return domain.StageOutcome{
			Stage:         domain.StageD,
			Weight:        s.weight,
			LatencyMs:     time.Since(start).Milliseconds(),
			Succeeded:     false,
			FailureReason: fmt.Sprintf("judge call failed: %v", err),
		}, nil
	}

	return domain.StageOutcome{
		Stage:     domain.StageD,
		Score:     clamp01(correctness),
		Weight:    s.weight,
		LatencyMs: time.Since(start).Milliseconds(),
		Succeeded: true,
		Metadata: map[string]string{
			"judge_source": "model",
			"judge_model":  s.client.ModelName(),
			"correctness":  fmt.Sprintf("%.2f", correctness),
		},
	}, nil
}

var _ domain.StageScorer = (*JudgeScorer)(nil)
