package core

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/signalsfoundry/carecascade-simulator/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompareICERDominant(t *testing.T) {
	baseline := &model.SimulationResults{TotalCost: 100, DALYs: 10}
	result := &model.SimulationResults{TotalCost: 80, DALYs: 8}

	icer, raw := CompareICER(result, baseline)
	assert.Equal(t, model.ICERDominant, icer.Status)
	assert.Equal(t, model.QuadrantDominant, icer.Quadrant)
	require.NotNil(t, raw)
	assert.Equal(t, -10.0, *raw)
	assert.True(t, icer.CostEffective(0))
}

func TestCompareICERSignConvention(t *testing.T) {
	baseline := &model.SimulationResults{TotalCost: 100, DALYs: 10}

	better := &model.SimulationResults{TotalCost: 200, DALYs: 8}
	icer, _ := CompareICER(better, baseline)
	assert.Equal(t, model.ICERRatio, icer.Status)
	assert.Equal(t, model.QuadrantTradeoff, icer.Quadrant)
	assert.Equal(t, 50.0, icer.Value)
	assert.False(t, math.IsInf(icer.Value, 0))
	assert.True(t, icer.CostEffective(50))
	assert.False(t, icer.CostEffective(49))

	worse := &model.SimulationResults{TotalCost: 200, DALYs: 12}
	icer, _ = CompareICER(worse, baseline)
	assert.Equal(t, model.QuadrantDominated, icer.Quadrant)
	assert.Negative(t, icer.Value)
	assert.False(t, icer.CostEffective(1e9))

	cheaperWorse := &model.SimulationResults{TotalCost: 50, DALYs: 12}
	icer, _ = CompareICER(cheaperWorse, baseline)
	assert.Equal(t, model.QuadrantCostSavingWorse, icer.Quadrant)
	assert.False(t, icer.CostEffective(1e9))
}

func TestCompareICERUndefinedWithoutHealthDifference(t *testing.T) {
	baseline := &model.SimulationResults{TotalCost: 100, DALYs: 10}
	result := &model.SimulationResults{TotalCost: 50, DALYs: 10}

	icer, raw := CompareICER(result, baseline)
	assert.Equal(t, model.ICERUndefined, icer.Status)
	assert.Nil(t, raw)
}

func TestCompare(t *testing.T) {
	baseline := &model.SimulationResults{TotalCost: 100, DALYs: 10, CumulativeDeaths: 5}
	result := &model.SimulationResults{TotalCost: 130, DALYs: 7, CumulativeDeaths: 3}

	c := Compare(result, baseline)
	assert.Equal(t, 2.0, c.DeathsAverted)
	assert.Equal(t, 3.0, c.DALYsAverted)
	assert.Equal(t, 30.0, c.CostDifference)
	assert.Equal(t, 10.0, c.ICER.Value)
}

func aggregateFixture() ([]model.CompartmentState, *model.ResolvedParameters) {
	weekly := []model.CompartmentState{
		{Week: 0},
		{Week: 1, I: 10, L: [model.NumLevels]float64{20, 0, 0, 0}, R: 4, D: 1, NewCases: 35},
		{Week: 2, I: 10, L: [model.NumLevels]float64{0, 10, 0, 0}, R: 10, D: 2, NewCases: 0},
	}
	p := testParams(0)
	p.Costs = model.Costs{Informal: 1, PerDiem: [model.NumLevels]float64{2, 3, 0, 0}}
	p.RegionalLifeExpectancy = 60
	p.MeanAgeOfInfection = 20
	p.DisabilityWeight = 0.5
	return weekly, p
}

func TestAggregateCostAndDALYs(t *testing.T) {
	weekly, p := aggregateFixture()
	res := Aggregate(weekly, p, 0)

	// Week 1: (10*1 + 20*2)*7 = 350; week 2: (10*1 + 10*3)*7 = 280.
	assert.InDelta(t, 630, res.TotalCost, 1e-9)

	// One death per week at 40 years lost, plus YLD over active patient days.
	yld := (30*7 + 20*7) / 365.25 * 0.5
	assert.InDelta(t, 80+yld, res.DALYs, 1e-9)
	assert.InDelta(t, 350, res.PatientDays, 1e-9)

	assert.Equal(t, 2.0, res.CumulativeDeaths)
	assert.Equal(t, 10.0, res.CumulativeResolved)
	// 4 resolved in week 1 and 6 in week 2.
	assert.InDelta(t, (4*1+6*2)/10.0, res.AverageTimeToResolution, 1e-12)
}

func TestAggregateDiscountsDALYs(t *testing.T) {
	weekly, p := aggregateFixture()
	undiscounted := Aggregate(weekly, p, 0)
	discounted := Aggregate(weekly, p, DefaultDiscountRate)
	assert.Less(t, discounted.DALYs, undiscounted.DALYs)
	assert.Equal(t, undiscounted.TotalCost, discounted.TotalCost)
}

func TestAggregateClampsYearsLost(t *testing.T) {
	weekly, p := aggregateFixture()
	p.MeanAgeOfInfection = 80

	res := Aggregate(weekly, p, 0)
	yld := (30*7 + 20*7) / 365.25 * 0.5
	assert.InDelta(t, yld, res.DALYs, 1e-9)
}

func TestAggregateAICosts(t *testing.T) {
	weekly, p := aggregateFixture()
	p.Costs.AIFixedCost = 1000
	p.Costs.AIVariableCost = 2

	res := Aggregate(weekly, p, 0)
	assert.InDelta(t, 630, res.TotalCost, 1e-9, "AI costs only apply when an intervention is active")

	p.ActiveAI = p.ActiveAI.With(model.TriageAI, true)
	res = Aggregate(weekly, p, 0)
	assert.InDelta(t, 630+1000+2*35, res.TotalCost, 1e-9)
}

func TestCompareICERZeroRatioIsEncoded(t *testing.T) {
	baseline := &model.SimulationResults{TotalCost: 100, DALYs: 10}
	result := &model.SimulationResults{TotalCost: 100, DALYs: 12}

	icer, raw := CompareICER(result, baseline)
	require.NotNil(t, raw)
	assert.Equal(t, model.ICERRatio, icer.Status)
	assert.Equal(t, model.QuadrantCostSavingWorse, icer.Quadrant)
	assert.Zero(t, icer.Value)

	out, err := json.Marshal(icer)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Contains(t, decoded, "value")
}
