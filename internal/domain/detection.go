package domain

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

// maxTextLength caps question/answer/context text before the pipeline sees it.
const maxTextLength = 10000

// DefaultTimeout bounds a detection request when the caller does not set one.
const DefaultTimeout = 5 * time.Second

// ErrMalformedRequest is returned when a request is rejected before pipeline entry.
var ErrMalformedRequest = errors.New("malformed detection request")

// DetectionRequest carries one (question, answer) pair to classify.
// It is immutable once accepted by Normalize.
type DetectionRequest struct {
	RequestID              string        `json:"request_id"`
	Question               string        `json:"question"`
	CandidateAnswer        string        `json:"candidate_answer"`
	ReferenceContext       string        `json:"reference_context,omitempty"`
	UseContextVerification bool          `json:"use_context_verification"`
	MaxVerification        bool          `json:"max_verification"`
	ModelName              string        `json:"model_name,omitempty"`
	Timeout                time.Duration `json:"-"`
}

// Normalize validates required fields and applies the input preprocessing
// rules (trim, whitespace collapse, length cap, default timeout).
// It returns a cleaned copy; the original request is not modified.
func (r DetectionRequest) Normalize() (DetectionRequest, error) {
	r.Question = normalizeText(r.Question)
	r.CandidateAnswer = normalizeText(r.CandidateAnswer)
	r.ReferenceContext = normalizeText(r.ReferenceContext)

	if r.Question == "" {
		return r, errors.Join(ErrMalformedRequest, errors.New("question is required"))
	}
	if r.CandidateAnswer == "" {
		return r, errors.Join(ErrMalformedRequest, errors.New("candidate answer is required"))
	}
	if r.Timeout <= 0 {
		r.Timeout = DefaultTimeout
	}
	return r, nil
}

func normalizeText(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > maxTextLength {
		// Back the cut up to a rune boundary so the cap never leaves
		// invalid UTF-8 behind.
		cut := maxTextLength
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut]
	}
	return s
}

// Stage identifies one scoring strategy in the cascade.
type Stage string

const (
	StageA Stage = "A" // fast heuristics, always runs
	StageB Stage = "B" // probe model ensemble
	StageC Stage = "C" // context verification
	StageD Stage = "D" // LLM-as-judge fallback
)

// StageOutcome is the result of one invoked stage.
//
// Score polarity is the pipeline-internal convention: 1 means confidently
// NOT hallucinated, 0 means confidently hallucinated. Adapters whose
// underlying signal is P(hallucinated) invert before reporting, so every
// outcome the scheduler and aggregator see uses this single convention.
// The decision engine performs the one translation to external
// hallucination risk.
type StageOutcome struct {
	Stage          Stage              `json:"stage"`
	Score          float64            `json:"score"`
	Weight         float64            `json:"weight"`
	LatencyMs      int64              `json:"latency_ms"`
	Succeeded      bool               `json:"succeeded"`
	Skipped        bool               `json:"skipped"`
	FailureReason  string             `json:"failure_reason,omitempty"`
	PerModelScores map[string]float64 `json:"per_model_scores,omitempty"`
	Metadata       map[string]string  `json:"metadata,omitempty"`
}

// Decision is the externally visible recommended action.
type Decision string

const (
	DecisionAccept     Decision = "ACCEPT"
	DecisionFlag       Decision = "FLAG"
	DecisionRegenerate Decision = "REGENERATE"
)

// ConfidenceInterval bounds the final score. Width reflects how many
// stages executed and how well they agreed.
type ConfidenceInterval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Width returns upper minus lower.
func (ci ConfidenceInterval) Width() float64 {
	return ci.Upper - ci.Lower
}

// DetectionRecord is the final, immutable result handed to the caller and
// to the similarity cache. HallucinationScore uses the external polarity:
// 0 = safe, 1 = hallucinated.
type DetectionRecord struct {
	RequestID          string             `json:"request_id"`
	HallucinationScore float64            `json:"hallucination_score"`
	Confidence         ConfidenceInterval `json:"confidence_interval"`
	StagesExecuted     []Stage            `json:"stages_executed"`
	StageOutcomes      []StageOutcome     `json:"stage_outcomes"`
	Decision           Decision           `json:"decision"`
	HallucinationType  string             `json:"hallucination_type,omitempty"`
	Explanations       []string           `json:"explanations"`
	CacheHit           bool               `json:"cache_hit"`
	TotalLatencyMs     int64              `json:"total_latency_ms"`
	CreatedAt          time.Time          `json:"created_at"`
}
