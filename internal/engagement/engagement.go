// Package engagement holds the turn-phase strategy table and the
// termination rule. Both are pure functions: the orchestrator feeds them
// the turn count and accumulated confidence, and hands the resulting phase
// tag to the external persona generator. No natural-language text is
// produced here.
package engagement

// Phase is the engagement-strategy tag for a turn.
type Phase string

const (
	PhaseShowInterest    Phase = "showInterest"
	PhaseProbeDetails    Phase = "probeDetails"
	PhaseExtractUrgently Phase = "extractUrgently"
	PhaseTerminated      Phase = "terminated"
)

// Phase boundaries of the strategy table.
const (
	showInterestMaxTurn    = 5
	probeDetailsMaxTurn    = 12
	extractUrgentlyMaxTurn = 20
)

// SelectPhase maps a turn count to its engagement phase. Total and
// deterministic: turn counts below 1 are treated as turn 1.
func SelectPhase(turnCount int) Phase {
	switch {
	case turnCount <= showInterestMaxTurn:
		return PhaseShowInterest
	case turnCount <= probeDetailsMaxTurn:
		return PhaseProbeDetails
	case turnCount <= extractUrgentlyMaxTurn:
		return PhaseExtractUrgently
	default:
		return PhaseTerminated
	}
}

// Thresholds are the operator-tunable termination parameters.
type Thresholds struct {
	MaxTurns            int
	ConfidenceThreshold float64
}

// DefaultThresholds returns the standard engagement limits.
func DefaultThresholds() Thresholds {
	return Thresholds{MaxTurns: 20, ConfidenceThreshold: 0.85}
}

// Decision is the outcome of the termination rule for one turn.
type Decision struct {
	Terminated  bool
	CallbackDue bool
}

// Evaluate applies the termination rule: a session ends when confidence
// reaches the threshold, the turn budget is exhausted, or the strategy
// table has already moved past its last phase. The callback is due only on
// the first terminating turn; once alreadyFired is set it can never be due
// again.
func Evaluate(phase Phase, confidence float64, turnCount int, th Thresholds, alreadyFired bool) Decision {
	terminated := confidence >= th.ConfidenceThreshold ||
		turnCount >= th.MaxTurns ||
		phase == PhaseTerminated
	return Decision{
		Terminated:  terminated,
		CallbackDue: terminated && !alreadyFired,
	}
}
