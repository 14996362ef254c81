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

type stubEncoder struct {
	vectors map[string][]float32
	err     error
}

func (s stubEncoder) Encode(_ context.Context, texts []string) ([][]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, ok := s.vectors[text]
		if !ok {
			return nil, errors.New("unknown text")
		}
		out[i] = v
	}
	return out, nil
}

func (s stubEncoder) Version() string { return "stub" }

type stubRetriever struct {
	docs []domain.Document
	err  error
}

func (s stubRetriever) Retrieve(context.Context, string, int) ([]domain.Document, error) {
	return s.docs, s.err
}

func TestContextVerifyScorer_Score(t *testing.T) {
	log := slog.Default()
	answer := "Paris is the capital of France."
	reference := "France's capital city is Paris."

	t.Run("Agreement with request context", func(t *testing.T) {
		encoder := stubEncoder{vectors: map[string][]float32{
			answer:    {1, 0},
			reference: {0.9, 0.1},
		}}
		s := scorer.NewContextVerifyScorer(encoder, nil, 3, time.Second, 1.5, log)

		outcome, err := s.Score(context.Background(), domain.DetectionRequest{
			Question:         "What is the capital of France?",
			CandidateAnswer:  answer,
			ReferenceContext: reference,
		})
		require.NoError(t, err)
		assert.True(t, outcome.Succeeded)
		assert.Greater(t, outcome.Score, 0.9)
		assert.Equal(t, "request", outcome.Metadata["reference_source"])
	})

	t.Run("Disagreement yields a low score", func(t *testing.T) {
		encoder := stubEncoder{vectors: map[string][]float32{
			answer:    {1, 0},
			reference: {0, 1},
		}}
		s := scorer.NewContextVerifyScorer(encoder, nil, 3, time.Second, 1.5, log)

		outcome, err := s.Score(context.Background(), domain.DetectionRequest{
			Question:         "What is the capital of France?",
			CandidateAnswer:  answer,
			ReferenceContext: reference,
		})
		require.NoError(t, err)
		assert.True(t, outcome.Succeeded)
		assert.Less(t, outcome.Score, 0.1)
	})

	t.Run("Falls back to retrieval without request context", func(t *testing.T) {
		encoder := stubEncoder{vectors: map[string][]float32{
			answer:    {1, 0},
			reference: {0.9, 0.1},
		}}
		retriever := stubRetriever{docs: []domain.Document{{ID: "d1", Content: reference}}}
		s := scorer.NewContextVerifyScorer(encoder, retriever, 3, time.Second, 1.5, log)

		outcome, err := s.Score(context.Background(), domain.DetectionRequest{
			Question:        "What is the capital of France?",
			CandidateAnswer: answer,
		})
		require.NoError(t, err)
		assert.True(t, outcome.Succeeded)
		assert.Equal(t, "retrieval", outcome.Metadata["reference_source"])
	})

	t.Run("Retrieval failure abstains", func(t *testing.T) {
		encoder := stubEncoder{vectors: map[string][]float32{}}
		retriever := stubRetriever{err: errors.New("indexer down")}
		s := scorer.NewContextVerifyScorer(encoder, retriever, 3, time.Second, 1.5, log)

		outcome, err := s.Score(context.Background(), domain.DetectionRequest{
			Question:        "q?",
			CandidateAnswer: answer,
		})
		require.NoError(t, err)
		assert.False(t, outcome.Succeeded)
		assert.Contains(t, outcome.FailureReason, "reference lookup failed")
	})

	t.Run("No reference facts abstains", func(t *testing.T) {
		s := scorer.NewContextVerifyScorer(stubEncoder{}, nil, 3, time.Second, 1.5, log)
		outcome, err := s.Score(context.Background(), domain.DetectionRequest{
			Question:        "q?",
			CandidateAnswer: answer,
		})
		require.NoError(t, err)
		assert.False(t, outcome.Succeeded)
		assert.Equal(t, "no reference facts available", outcome.FailureReason)
	})

	t.Run("Embedding failure abstains", func(t *testing.T) {
		encoder := stubEncoder{err: errors.New("augur down")}
		s := scorer.NewContextVerifyScorer(encoder, nil, 3, time.Second, 1.5, log)

		outcome, err := s.Score(context.Background(), domain.DetectionRequest{
			Question:         "q?",
			CandidateAnswer:  answer,
			ReferenceContext: reference,
		})
		require.NoError(t, err)
		assert.False(t, outcome.Succeeded)
		assert.Contains(t, outcome.FailureReason, "embedding failed")
	})
}
