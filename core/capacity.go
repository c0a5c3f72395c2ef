package core

import (
	"fmt"
	"math"
)

// CapacityMultiplier is the share of desired inflow a level can admit under
// the given congestion. It is 1 at zero congestion and strictly decreasing in
// congestion for sensitivity > 0.
func CapacityMultiplier(congestion, competitionSensitivity float64) float64 {
	return math.Exp(-2 * clamp01(congestion) * competitionSensitivity)
}

// QueueEntryRate is the share of the capacity shortfall that joins a queue
// rather than leaving the pipeline.
func QueueEntryRate(congestion, competitionSensitivity float64) float64 {
	effective := clamp01(congestion) * competitionSensitivity
	return 1 / (1 + math.Exp(-2*(effective-0.5)))
}

// ValidateCongestion rejects congestion levels outside [0,1].
func ValidateCongestion(congestion float64) error {
	if math.IsNaN(congestion) || congestion < 0 || congestion > 1 {
		return fmt.Errorf("%w: got %v", ErrInvalidCongestion, congestion)
	}
	return nil
}

// AnnualRisk converts a weekly probability into the equivalent annual risk.
func AnnualRisk(weekly float64) float64 {
	return 1 - math.Pow(1-clamp01(weekly), 52)
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
