package model

// ICERStatus classifies an incremental cost-effectiveness result.
type ICERStatus string

const (
	// ICERRatio means Value holds a finite ratio.
	ICERRatio ICERStatus = "ratio"
	// ICERDominant means the intervention costs no more and averts DALYs.
	ICERDominant ICERStatus = "dominant"
	// ICERUndefined means there is no health difference to divide by.
	ICERUndefined ICERStatus = "undefined"
)

// Quadrant places an intervention on the cost-effectiveness plane.
type Quadrant string

const (
	// QuadrantDominant: cheaper (or equal) and healthier.
	QuadrantDominant Quadrant = "dominant"
	// QuadrantTradeoff: more expensive and healthier. Positive ICER.
	QuadrantTradeoff Quadrant = "tradeoff"
	// QuadrantDominated: more expensive and less healthy. Negative ICER,
	// never cost-effective.
	QuadrantDominated Quadrant = "dominated"
	// QuadrantCostSavingWorse: cheaper but less healthy.
	QuadrantCostSavingWorse Quadrant = "cost_saving_worse"
	// QuadrantNone: no health difference.
	QuadrantNone Quadrant = "none"
)

// ICER is the incremental cost per DALY averted against a baseline.
type ICER struct {
	Status   ICERStatus `json:"status"`
	Quadrant Quadrant   `json:"quadrant"`
	// Value is only meaningful when Status is ICERRatio.
	Value float64 `json:"value"`
}

// CostEffective reports whether the ICER is a dominant result or a positive
// ratio at or below the willingness-to-pay threshold.
func (i *ICER) CostEffective(threshold float64) bool {
	if i == nil {
		return false
	}
	switch i.Status {
	case ICERDominant:
		return true
	case ICERRatio:
		return i.Quadrant == QuadrantTradeoff && i.Value <= threshold
	default:
		return false
	}
}

// SimulationResults is the immutable output of one run.
type SimulationResults struct {
	RunID   string `json:"runId,omitempty"`
	Disease string `json:"disease,omitempty"`

	// Weekly holds week 0 through the final week.
	Weekly []CompartmentState `json:"weekly"`

	CumulativeDeaths        float64 `json:"cumulativeDeaths"`
	CumulativeResolved      float64 `json:"cumulativeResolved"`
	TotalCost               float64 `json:"totalCost"`
	DALYs                   float64 `json:"dalys"`
	AverageTimeToResolution float64 `json:"averageTimeToResolution"`
	PatientDays             float64 `json:"patientDays"`
	Unserved                float64 `json:"unserved"`

	// ICER and RawICER are set only when a baseline was supplied.
	ICER    *ICER    `json:"icer,omitempty"`
	RawICER *float64 `json:"rawIcerValue,omitempty"`

	Warnings []string `json:"warnings,omitempty"`
}

// Final returns the last weekly state, or a zero state when empty.
func (r *SimulationResults) Final() CompartmentState {
	if r == nil || len(r.Weekly) == 0 {
		return CompartmentState{}
	}
	return r.Weekly[len(r.Weekly)-1]
}

// Summary strips the weekly trajectory.
func (r *SimulationResults) Summary() ResultSummary {
	if r == nil {
		return ResultSummary{}
	}
	return ResultSummary{
		CumulativeDeaths:        r.CumulativeDeaths,
		CumulativeResolved:      r.CumulativeResolved,
		TotalCost:               r.TotalCost,
		DALYs:                   r.DALYs,
		AverageTimeToResolution: r.AverageTimeToResolution,
		ICER:                    r.ICER,
		RawICER:                 r.RawICER,
	}
}

// ResultSummary is the subset of SimulationResults stored with a scenario.
type ResultSummary struct {
	CumulativeDeaths        float64  `json:"cumulativeDeaths" yaml:"cumulativeDeaths"`
	CumulativeResolved      float64  `json:"cumulativeResolved" yaml:"cumulativeResolved"`
	TotalCost               float64  `json:"totalCost" yaml:"totalCost"`
	DALYs                   float64  `json:"dalys" yaml:"dalys"`
	AverageTimeToResolution float64  `json:"averageTimeToResolution" yaml:"averageTimeToResolution"`
	ICER                    *ICER    `json:"icer,omitempty" yaml:"icer,omitempty"`
	RawICER                 *float64 `json:"rawIcerValue,omitempty" yaml:"rawIcerValue,omitempty"`
}

// Comparison holds incremental metrics of an intervention run against its
// baseline.
type Comparison struct {
	DeathsAverted  float64  `json:"deathsAverted"`
	DALYsAverted   float64  `json:"dalysAverted"`
	CostDifference float64  `json:"costDifference"`
	ICER           ICER     `json:"icer"`
	RawICER        *float64 `json:"rawIcerValue,omitempty"`
}
