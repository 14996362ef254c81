package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"quality-guardian/internal/cache"
	"quality-guardian/internal/decision"
	"quality-guardian/internal/domain"
	"quality-guardian/internal/infra/logger"
	"quality-guardian/internal/telemetry"
)

// Scheduler drives a detection request through the cascade. It owns the
// execution loop only; gating lives in Policy and the final verdict in
// the decision engine.
type Scheduler struct {
	scorers map[domain.Stage]domain.StageScorer
	policy  *Policy
	engine  *decision.Engine
	cache   *cache.SimilarityCache
	sink    telemetry.Sink
	clog    *logger.ContextLogger
}

// NewScheduler wires the cascade. cache may be nil to disable caching.
func NewScheduler(
	scorers []domain.StageScorer,
	policy *Policy,
	engine *decision.Engine,
	simCache *cache.SimilarityCache,
	sink telemetry.Sink,
	log *slog.Logger,
) *Scheduler {
	byStage := make(map[domain.Stage]domain.StageScorer, len(scorers))
	for _, s := range scorers {
		byStage[s.Stage()] = s
	}
	return &Scheduler{
		scorers: byStage,
		policy:  policy,
		engine:  engine,
		cache:   simCache,
		sink:    sink,
		clog:    logger.NewContextLogger(log, "quality-guardian"),
	}
}

// Detect classifies one (question, answer) pair. It always returns a
// record for well-formed input; stage failures degrade the verdict
// instead of erroring.
func (s *Scheduler) Detect(ctx context.Context, req domain.DetectionRequest) (domain.DetectionRecord, error) {
	req, err := req.Normalize()
	if err != nil {
		return domain.DetectionRecord{}, err
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	ctx = logger.WithRequestID(ctx, req.RequestID)
	if req.ModelName != "" {
		ctx = logger.WithModelName(ctx, req.ModelName)
	}

	start := time.Now()
	deadline := start.Add(req.Timeout)
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	if s.cache != nil {
		if cached, ok := s.cache.Lookup(ctx, req); ok {
			record := *cached
			record.RequestID = req.RequestID
			record.CacheHit = true
			record.TotalLatencyMs = time.Since(start).Milliseconds()
			s.emit(ctx, record)
			return record, nil
		}
	}

	outcomes := s.runCascade(ctx, req, deadline)
	record := s.engine.Assemble(req, outcomes, time.Since(start))

	if s.cache != nil && anySucceeded(outcomes) {
		s.cache.Store(ctx, req, record)
	}
	s.emit(ctx, record)
	return record, nil
}

// runCascade executes the policy loop: invoke the current stage, feed
// its score back into the transition table, repeat until DONE. The
// UseContextVerification and MaxVerification flags extend the cascade
// after the policy would stop; they never shorten it.
func (s *Scheduler) runCascade(ctx context.Context, req domain.DetectionRequest, deadline time.Time) []domain.StageOutcome {
	var outcomes []domain.StageOutcome
	visited := make(map[domain.Stage]bool, 4)

	state := StateInit
	// Neutral seed; StateInit transitions unconditionally to Stage A.
	lastScore := 0.5

	for {
		state = s.policy.Next(state, lastScore, time.Until(deadline))
		// Each stage runs at most once per request; a transition back
		// into a visited stage (possible after a forced stage) ends
		// the cascade instead.
		if st, ok := state.StageFor(); ok && visited[st] {
			state = StateDone
		}
		if state == StateDone {
			forced, ok := s.nextForced(req, visited)
			if !ok {
				return outcomes
			}
			state = forced
		}

		stage, ok := state.StageFor()
		if !ok {
			return outcomes
		}
		scorer := s.scorers[stage]
		visited[stage] = true
		sctx := logger.WithStage(ctx, string(stage))

		// Stage A has no external dependency and is exempt from the
		// budget check.
		if stage != domain.StageA && time.Until(deadline) < scorer.ExpectedLatency() {
			outcomes = append(outcomes, domain.StageOutcome{
				Stage:         stage,
				Weight:        scorer.Weight(),
				Skipped:       true,
				FailureReason: "skipped: timeout",
			})
			s.clog.WithContext(sctx).Warn("stage_skipped",
				slog.Duration("remaining", time.Until(deadline)))
			continue
		}

		outcome := s.invoke(sctx, scorer, req)
		outcomes = append(outcomes, outcome)
		if outcome.Succeeded {
			lastScore = outcome.Score
		} else {
			// A failed stage is treated as maximal uncertainty so the
			// cascade escalates rather than terminating on stale data.
			lastScore = 0.5
		}
	}
}

// invoke runs one scorer, abandoning (not awaiting) the call once the
// request deadline passes. The scorer keeps running in its goroutine
// until its own context check fires; its result is discarded.
func (s *Scheduler) invoke(ctx context.Context, scorer domain.StageScorer, req domain.DetectionRequest) domain.StageOutcome {
	type result struct {
		outcome domain.StageOutcome
		err     error
	}
	ch := make(chan result, 1)
	started := time.Now()

	go func() {
		outcome, err := scorer.Score(ctx, req)
		ch <- result{outcome: outcome, err: err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			s.clog.WithContext(ctx).Warn("stage_failed",
				slog.String("error", r.err.Error()))
			return domain.StageOutcome{
				Stage:         scorer.Stage(),
				Weight:        scorer.Weight(),
				LatencyMs:     time.Since(started).Milliseconds(),
				FailureReason: r.err.Error(),
			}
		}
		return r.outcome
	case <-ctx.Done():
		s.clog.WithContext(ctx).Warn("stage_abandoned")
		return domain.StageOutcome{
			Stage:         scorer.Stage(),
			Weight:        scorer.Weight(),
			LatencyMs:     time.Since(started).Milliseconds(),
			FailureReason: "abandoned: deadline exceeded",
		}
	}
}

// nextForced returns the next stage the request flags require beyond
// what the policy selected. MaxVerification implies the full cascade.
func (s *Scheduler) nextForced(req domain.DetectionRequest, visited map[domain.Stage]bool) (State, bool) {
	if req.MaxVerification && !visited[domain.StageB] {
		return StateStageB, true
	}
	if (req.UseContextVerification || req.MaxVerification) && !visited[domain.StageC] {
		return StateStageC, true
	}
	if req.MaxVerification && !visited[domain.StageD] {
		return StateStageD, true
	}
	return StateDone, false
}

func (s *Scheduler) emit(ctx context.Context, record domain.DetectionRecord) {
	if s.sink == nil {
		return
	}
	events := make([]telemetry.StageEvent, 0, len(record.StageOutcomes))
	for _, o := range record.StageOutcomes {
		events = append(events, telemetry.StageEvent{
			Stage:     o.Stage,
			Score:     o.Score,
			LatencyMs: o.LatencyMs,
			Succeeded: o.Succeeded,
			Skipped:   o.Skipped,
		})
	}
	s.sink.Emit(ctx, telemetry.Trace{
		RequestID:          record.RequestID,
		Stages:             events,
		Decision:           record.Decision,
		HallucinationScore: record.HallucinationScore,
		CacheHit:           record.CacheHit,
		TotalLatencyMs:     record.TotalLatencyMs,
	})
}

func anySucceeded(outcomes []domain.StageOutcome) bool {
	for _, o := range outcomes {
		if o.Succeeded {
			return true
		}
	}
	return false
}
