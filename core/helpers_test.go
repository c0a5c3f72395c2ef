package core

import (
	"testing"

	"github.com/signalsfoundry/carecascade-simulator/kb"
	"github.com/signalsfoundry/carecascade-simulator/model"
	"github.com/stretchr/testify/require"
)

// testParams mirrors the generic disease on the generic health system.
func testParams(congestion float64) *model.ResolvedParameters {
	return &model.ResolvedParameters{
		Disease:                "test",
		HealthSystem:           "test",
		Population:             100000,
		DisabilityWeight:       0.1,
		MeanAgeOfInfection:     25,
		RegionalLifeExpectancy: 66,
		Rates: model.Rates{
			MuU:               0.05,
			MuI:               0.08,
			Mu:                [model.NumLevels]float64{0.2, 0.3, 0.4, 0.45},
			DeltaU:            0.004,
			DeltaI:            0.003,
			Delta:             [model.NumLevels]float64{0.002, 0.002, 0.005, 0.01},
			Rho:               [model.NumLevels - 1]float64{0.2, 0.15, 0.1},
			Phi0:              0.6,
			InformalCareRatio: 0.4,
			SigmaI:            0.15,
			Lambda:            0.05,
		},
		Costs: model.Costs{
			Informal: 2,
			PerDiem:  [model.NumLevels]float64{5, 20, 60, 150},
		},
		Congestion: model.CongestionParams{
			Congestion:                    congestion,
			CompetitionSensitivity:        1,
			QueueAbandonmentRate:          0.05,
			QueueBypassRate:               0.03,
			QueueClearanceRate:            0.4,
			CongestionMortalityMultiplier: 1.5,
		},
	}
}

func defaultStore(t *testing.T) *kb.KnowledgeBase {
	t.Helper()
	store, err := kb.Default()
	require.NoError(t, err)
	return store
}

func congestion(v float64) *float64 { return &v }

func runWeeks(state model.CompartmentState, p *model.ResolvedParameters, weeks int) []model.CompartmentState {
	out := []model.CompartmentState{state}
	for range weeks {
		state = Step(state, p)
		out = append(out, state)
	}
	return out
}
