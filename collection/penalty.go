package collection

import "time"

// =============================================================================
// CANCELLATION PENALTY EVALUATOR
// =============================================================================

// PenaltyDecision is the outcome of evaluating a cancellation.
type PenaltyDecision struct {
	Period  DayPeriod
	Penalty bool
}

// EvaluateCancellation decides whether cancelling occ at now is "too late":
// the occurrence's period (derived from its time of day) has already
// arrived on its own date. Both single-occurrence and whole-agreement
// cancellation go through here.
func EvaluateCancellation(occ Occurrence, now time.Time) PenaltyDecision {
	period := PeriodOf(occ.Time)
	return PenaltyDecision{
		Period:  period,
		Penalty: IsNowWithinPeriod(period, occ.Date, now),
	}
}
