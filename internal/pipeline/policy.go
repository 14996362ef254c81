package pipeline

import (
	"time"

	"quality-guardian/internal/domain"
)

// State is the scheduler's position in the cascade.
type State int

const (
	StateInit State = iota
	StateStageA
	StateStageB
	StateStageC
	StateStageD
	StateDone
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateStageA:
		return "STAGE_A"
	case StateStageB:
		return "STAGE_B"
	case StateStageC:
		return "STAGE_C"
	case StateStageD:
		return "STAGE_D"
	default:
		return "DONE"
	}
}

// StageFor maps an execution state to its cascade stage.
func (s State) StageFor() (domain.Stage, bool) {
	switch s {
	case StateStageA:
		return domain.StageA, true
	case StateStageB:
		return domain.StageB, true
	case StateStageC:
		return domain.StageC, true
	case StateStageD:
		return domain.StageD, true
	default:
		return "", false
	}
}

// Thresholds hold the cascade gating constants. All scores are the
// internal confidence convention (1 = confidently non-hallucinated).
type Thresholds struct {
	// TerminateAfterA ends the cascade when Stage A confidence exceeds it.
	TerminateAfterA float64
	// StageBLow is the bottom of the Stage B band; below it Stage A
	// already signals high doubt and the cascade jumps to Stage C.
	StageBLow float64
	// FlagProbability short-circuits after Stage B when its aggregated
	// hallucination probability exceeds it.
	FlagProbability float64
	// UncertainLow/UncertainHigh bound the uncertainty band that causes
	// escalation to the next stage.
	UncertainLow  float64
	UncertainHigh float64
}

// DefaultThresholds returns the production cascade constants.
func DefaultThresholds() Thresholds {
	return Thresholds{
		TerminateAfterA: 0.95,
		StageBLow:       0.70,
		FlagProbability: 0.80,
		UncertainLow:    0.35,
		UncertainHigh:   0.65,
	}
}

// rule is one row of the transition table: from a state, a last-score
// band selects the next state. Rows are evaluated in order; the first
// match wins. Bands are inclusive on both ends.
type rule struct {
	from State
	min  float64
	max  float64
	to   State
}

// Policy is the cascade's finite-state transition table, keyed by
// (current state, last internal score, time remaining). It holds no
// execution state and is testable without running any scorer.
type Policy struct {
	rules []rule
}

// NewPolicy builds the transition table from the thresholds.
func NewPolicy(t Thresholds) *Policy {
	return &Policy{rules: []rule{
		// Stage A always executes.
		{from: StateInit, min: 0, max: 1, to: StateStageA},

		// Band edges: exactly TerminateAfterA still runs Stage B, and
		// exactly StageBLow still counts as the Stage B band.
		{from: StateStageA, min: t.StageBLow, max: t.TerminateAfterA, to: StateStageB},
		{from: StateStageA, min: t.TerminateAfterA, max: 1, to: StateDone},
		{from: StateStageA, min: 0, max: t.StageBLow, to: StateStageC},

		// Confidence below 1-FlagProbability means the ensemble's
		// hallucination probability crossed the flag line: stop here.
		{from: StateStageB, min: 0, max: 1 - t.FlagProbability, to: StateDone},
		{from: StateStageB, min: t.UncertainLow, max: t.UncertainHigh, to: StateStageC},
		{from: StateStageB, min: 0, max: 1, to: StateDone},

		{from: StateStageC, min: t.UncertainLow, max: t.UncertainHigh, to: StateStageD},
		{from: StateStageC, min: 0, max: 1, to: StateDone},

		{from: StateStageD, min: 0, max: 1, to: StateDone},
	}}
}

// Next returns the state following state given the last internal score
// and the remaining request budget. An exhausted budget always resolves
// to DONE; Stage A is exempt because it has no external dependency.
func (p *Policy) Next(state State, lastScore float64, remaining time.Duration) State {
	if remaining <= 0 && state != StateInit {
		return StateDone
	}
	for _, r := range p.rules {
		if r.from != state {
			continue
		}
		if lastScore >= r.min && lastScore <= r.max {
			return r.to
		}
	}
	return StateDone
}
