package scorer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"quality-guardian/internal/domain"
)

// ContextVerifyScorer is the Stage C adapter: it measures agreement
// between the candidate answer and reference facts via embedding
// similarity. When the request carries no reference context, facts are
// fetched from the knowledge base. All I/O respects ctx; on timeout or
// dependency failure the stage fails closed (abstains) rather than
// reporting safe or hallucinated.
type ContextVerifyScorer struct {
	encoder   domain.VectorEncoder
	retriever domain.DocumentRetriever
	limit     int
	expected  time.Duration
	weight    float64
	logger    *slog.Logger
}

// NewContextVerifyScorer builds the Stage C scorer. retriever may be nil
// when only caller-supplied context should be verified.
func NewContextVerifyScorer(encoder domain.VectorEncoder, retriever domain.DocumentRetriever, retrieveLimit int, expected time.Duration, stageWeight float64, logger *slog.Logger) *ContextVerifyScorer {
	return &ContextVerifyScorer{
		encoder:   encoder,
		retriever: retriever,
		limit:     retrieveLimit,
		expected:  expected,
		weight:    stageWeight,
		logger:    logger,
	}
}

func (s *ContextVerifyScorer) Stage() domain.Stage            { return domain.StageC }
func (s *ContextVerifyScorer) ExpectedLatency() time.Duration { return s.expected }
func (s *ContextVerifyScorer) Weight() float64                { return s.weight }

func (s *ContextVerifyScorer) Score(ctx context.Context, req domain.DetectionRequest) (domain.StageOutcome, error) {
	start := time.Now()
	fail := func(reason string) (domain.StageOutcome, error) {
		return domain.StageOutcome{
			Stage:         domain.StageC,
			Weight:        s.weight,
			LatencyMs:     time.Since(start).Milliseconds(),
			Succeeded:     false,
			FailureReason: reason,
		}, nil
	}

	reference, source, err := s.referenceText(ctx, req)
	if err != nil {
		return fail(fmt.Sprintf("reference lookup failed: %v", err))
	}
	if reference == "" {
		return fail("no reference facts available")
	}

	vectors, err := s.encoder.Encode(ctx, []string{req.CandidateAnswer, reference})
	if err != nil {
		return fail(fmt.Sprintf("embedding failed: %v", err))
	}
	if len(vectors) != 2 {
		return fail(fmt.Sprintf("embedder returned %d vectors, want 2", len(vectors)))
	}

	agreement := clamp01(float64(domain.CosineSimilarity(vectors[0], vectors[1])))
	s.logger.Debug("context_verification_scored",
		slog.String("request_id", req.RequestID),
		slog.String("reference_source", source),
		slog.Float64("agreement", agreement))

	return domain.StageOutcome{
		Stage:     domain.StageC,
		Score:     agreement,
		Weight:    s.weight,
		LatencyMs: time.Since(start).Milliseconds(),
		Succeeded: true,
		Metadata: map[string]string{
			"context_agreement": fmt.Sprintf("%.2f", agreement),
			"reference_source":  source,
		},
	}, nil
}

func (s *ContextVerifyScorer) referenceText(ctx context.Context, req domain.DetectionRequest) (string, string, error) {
	if req.ReferenceContext != "" {
		return req.ReferenceContext, "request", nil
	}
	if s.retriever == nil {
		return "", "none", nil
	}
	docs, err := s.retriever.Retrieve(ctx, req.Question, s.limit)
	if err != nil {
		return "", "retrieval", err
	}
	var parts []string
	for _, d := range docs {
		if d.Content != "" {
			parts = append(parts, d.Content)
		}
	}
	return strings.Join(parts, "\n"), "retrieval", nil
}

var _ domain.StageScorer = (*ContextVerifyScorer)(nil)
