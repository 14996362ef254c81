package domain_test

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"quality-guardian/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestDetectionRequest_Normalize(t *testing.T) {
	t.Run("Whitespace is collapsed", func(t *testing.T) {
		req := domain.DetectionRequest{
			Question:        "  What   is\n\tthe capital? ",
			CandidateAnswer: "Paris  is the\ncapital.",
		}
		got, err := req.Normalize()
		assert.NoError(t, err)
		assert.Equal(t, "What is the capital?", got.Question)
		assert.Equal(t, "Paris is the capital.", got.CandidateAnswer)
	})

	t.Run("Missing question is rejected", func(t *testing.T) {
		req := domain.DetectionRequest{CandidateAnswer: "Paris."}
		_, err := req.Normalize()
		assert.ErrorIs(t, err, domain.ErrMalformedRequest)
	})

	t.Run("Missing answer is rejected", func(t *testing.T) {
		req := domain.DetectionRequest{Question: "What is the capital?"}
		_, err := req.Normalize()
		assert.ErrorIs(t, err, domain.ErrMalformedRequest)
	})

	t.Run("Whitespace-only answer is rejected", func(t *testing.T) {
		req := domain.DetectionRequest{
			Question:        "What is the capital?",
			CandidateAnswer: "   \n\t ",
		}
		_, err := req.Normalize()
		assert.ErrorIs(t, err, domain.ErrMalformedRequest)
	})

	t.Run("Default timeout applied", func(t *testing.T) {
		req := domain.DetectionRequest{Question: "q", CandidateAnswer: "a"}
		got, err := req.Normalize()
		assert.NoError(t, err)
		assert.Equal(t, domain.DefaultTimeout, got.Timeout)
	})

	t.Run("Explicit timeout preserved", func(t *testing.T) {
		req := domain.DetectionRequest{
			Question:        "q",
			CandidateAnswer: "a",
			Timeout:         50 * time.Millisecond,
		}
		got, err := req.Normalize()
		assert.NoError(t, err)
		assert.Equal(t, 50*time.Millisecond, got.Timeout)
	})

	t.Run("Over-long text is truncated", func(t *testing.T) {
		req := domain.DetectionRequest{
			Question:        "q",
			CandidateAnswer: strings.Repeat("a", 20000),
		}
		got, err := req.Normalize()
		assert.NoError(t, err)
		assert.Len(t, got.CandidateAnswer, 10000)
	})

	t.Run("Truncation never splits a rune", func(t *testing.T) {
		// 3-byte runes leave the cap mid-rune; the cut must back up.
		req := domain.DetectionRequest{
			Question:        "q",
			CandidateAnswer: strings.Repeat("日", 5000),
		}
		got, err := req.Normalize()
		assert.NoError(t, err)
		assert.True(t, utf8.ValidString(got.CandidateAnswer))
		assert.Len(t, got.CandidateAnswer, 9999)
	})

	t.Run("Original request is not modified", func(t *testing.T) {
		req := domain.DetectionRequest{
			Question:        "  spaced  out  ",
			CandidateAnswer: "a",
		}
		_, err := req.Normalize()
		assert.NoError(t, err)
		assert.Equal(t, "  spaced  out  ", req.Question)
	})
}

func TestConfidenceInterval_Width(t *testing.T) {
	ci := domain.ConfidenceInterval{Lower: 0.2, Upper: 0.7}
	assert.InDelta(t, 0.5, ci.Width(), 1e-9)
}
