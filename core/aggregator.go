package core

import (
	"math"

	"github.com/signalsfoundry/carecascade-simulator/model"
)

const (
	// DefaultDiscountRate is the annual rate applied to DALYs.
	DefaultDiscountRate = 0.03

	daysPerWeek = 7.0
	daysPerYear = 365.25

	// icerEpsilon is the smallest DALY difference treated as a real effect.
	icerEpsilon = 1e-9
)

// Aggregate folds a weekly trajectory into summary outcomes. weekly[0] is the
// initial state; costs and DALYs accrue from week 1 onward.
func Aggregate(weekly []model.CompartmentState, p *model.ResolvedParameters, discountRate float64) *model.SimulationResults {
	res := &model.SimulationResults{
		Weekly:  weekly,
		Disease: p.Disease,
	}
	if len(weekly) == 0 {
		return res
	}

	yearsLost := math.Max(0, p.RegionalLifeExpectancy-p.MeanAgeOfInfection)

	var occupancyCost, episodes, weightedWeeks, resolvedTotal float64
	for w := 1; w < len(weekly); w++ {
		prev, cur := weekly[w-1], weekly[w]
		df := math.Pow(1+discountRate, -float64(w)/model.WeeksPerYear)

		weekCost := cur.I * p.Costs.Informal
		for k := range model.NumLevels {
			weekCost += cur.L[k] * p.Costs.PerDiem[k]
		}
		occupancyCost += weekCost * daysPerWeek

		patientDays := cur.Active() * daysPerWeek
		res.PatientDays += patientDays

		deaths := cur.D - prev.D
		res.DALYs += deaths*yearsLost*df + patientDays/daysPerYear*p.DisabilityWeight*df

		resolved := cur.R - prev.R
		weightedWeeks += float64(w) * resolved
		resolvedTotal += resolved

		episodes += cur.NewCases
	}

	res.TotalCost = occupancyCost
	if p.ActiveAI.Any() {
		res.TotalCost += p.Costs.AIFixedCost + p.Costs.AIVariableCost*episodes
	}
	if resolvedTotal > 0 {
		res.AverageTimeToResolution = weightedWeeks / resolvedTotal
	}

	final := weekly[len(weekly)-1]
	res.CumulativeDeaths = final.D
	res.CumulativeResolved = final.R
	res.Unserved = final.Unserved
	if len(p.Warnings) > 0 {
		res.Warnings = append([]string(nil), p.Warnings...)
	}
	return res
}

// CompareICER computes the incremental cost per DALY averted of result
// against baseline. The raw ratio is returned whenever it is finite.
func CompareICER(result, baseline *model.SimulationResults) (model.ICER, *float64) {
	dCost := result.TotalCost - baseline.TotalCost
	averted := baseline.DALYs - result.DALYs

	if math.Abs(averted) < icerEpsilon {
		return model.ICER{Status: model.ICERUndefined, Quadrant: model.QuadrantNone}, nil
	}

	raw := dCost / averted
	if dCost <= 0 && averted > 0 {
		return model.ICER{Status: model.ICERDominant, Quadrant: model.QuadrantDominant}, &raw
	}

	icer := model.ICER{Status: model.ICERRatio, Value: raw}
	switch {
	case averted > 0:
		icer.Quadrant = model.QuadrantTradeoff
	case dCost > 0:
		icer.Quadrant = model.QuadrantDominated
	default:
		icer.Quadrant = model.QuadrantCostSavingWorse
	}
	return icer, &raw
}

// Compare returns the incremental metrics of result against baseline.
func Compare(result, baseline *model.SimulationResults) model.Comparison {
	icer, raw := CompareICER(result, baseline)
	return model.Comparison{
		DeathsAverted:  baseline.CumulativeDeaths - result.CumulativeDeaths,
		DALYsAverted:   baseline.DALYs - result.DALYs,
		CostDifference: result.TotalCost - baseline.TotalCost,
		ICER:           icer,
		RawICER:        raw,
	}
}

// attachBaseline fills the ICER fields of result from baseline.
func attachBaseline(result, baseline *model.SimulationResults) {
	if result == nil || baseline == nil {
		return
	}
	icer, raw := CompareICER(result, baseline)
	result.ICER = &icer
	result.RawICER = raw
}
