package domain

import (
	"context"
	"time"
)

// StageScorer is the uniform contract every detection strategy implements.
// Score must honor ctx cancellation and never block past its declared
// budget; failures are reported through the outcome, not panics.
type StageScorer interface {
	// Stage identifies which cascade slot this scorer fills.
	Stage() Stage

	// Score evaluates the request and returns an outcome in the internal
	// polarity (1 = confidently non-hallucinated). The error return is
	// reserved for programming errors; expected faults (timeouts,
	// dependency failures) are absorbed into Outcome.Succeeded=false.
	Score(ctx context.Context, req DetectionRequest) (StageOutcome, error)

	// ExpectedLatency is the declared worst-case budget for one call.
	// The scheduler skips the stage when the remaining request budget
	// cannot cover it.
	ExpectedLatency() time.Duration

	// Weight is this stage's contribution to cross-stage aggregation.
	Weight() float64
}
