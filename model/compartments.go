package model

// Level identifies one tier of formal care.
type Level int

const (
	LevelCHW      Level = iota // L0: community health worker
	LevelPrimary               // L1: primary care
	LevelDistrict              // L2: district hospital
	LevelTertiary              // L3: tertiary hospital
)

// NumLevels is the number of formal care tiers (L0..L3).
const NumLevels = 4

// WeeksPerYear converts weekly rates to annual ones and back.
const WeeksPerYear = 52

// DefaultHorizonWeeks is the standard simulation horizon.
const DefaultHorizonWeeks = 52

func (l Level) String() string {
	switch l {
	case LevelCHW:
		return "chw"
	case LevelPrimary:
		return "primary"
	case LevelDistrict:
		return "district"
	case LevelTertiary:
		return "tertiary"
	default:
		return "unknown"
	}
}

// CompartmentState is the population snapshot at the end of a simulated week.
// All counts are expected-value populations, not individuals.
type CompartmentState struct {
	Week int `json:"week"`

	U float64            `json:"U"` // untreated
	I float64            `json:"I"` // informal care
	L [NumLevels]float64 `json:"L"` // formal care occupancy, L0..L3
	Q [NumLevels]float64 `json:"Q"` // queues waiting for L0..L3

	// R and D are cumulative since week 0.
	R float64 `json:"R"`
	D float64 `json:"D"`

	// NewCases is the incidence that entered during this week.
	NewCases float64 `json:"newCases"`
	// Unserved is the cumulative capacity shortfall that was neither
	// admitted nor queued.
	Unserved float64 `json:"unserved"`
}

// Total sums every tracked compartment, including cumulative R and D.
// Unserved is excluded.
func (s CompartmentState) Total() float64 {
	total := s.U + s.I + s.R + s.D
	for k := 0; k < NumLevels; k++ {
		total += s.L[k] + s.Q[k]
	}
	return total
}

// Active is the number of people still ill: untreated, in informal care,
// in a formal level or waiting in a queue.
func (s CompartmentState) Active() float64 {
	active := s.U + s.I
	for k := 0; k < NumLevels; k++ {
		active += s.L[k] + s.Q[k]
	}
	return active
}

// QueueTotal sums all four queues.
func (s CompartmentState) QueueTotal() float64 {
	var total float64
	for k := 0; k < NumLevels; k++ {
		total += s.Q[k]
	}
	return total
}
