package core

import (
	"context"
	"strings"
	"testing"

	"github.com/signalsfoundry/carecascade-simulator/kb"
	"github.com/signalsfoundry/carecascade-simulator/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resolve(t *testing.T, cfg ScenarioConfig) *model.ResolvedParameters {
	t.Helper()
	rp, err := NewParameterResolver(defaultStore(t), nil).Resolve(context.Background(), cfg)
	require.NoError(t, err)
	return rp
}

func TestResolveIsIdempotent(t *testing.T) {
	cfg := ScenarioConfig{
		Disease:      "pneumonia",
		HealthSystem: "weak-rural",
		Country:      "kenya",
		Setting:      kb.SettingRural,
		AI:           model.AIInterventionSet{TriageAI: true, DiagnosticAI: true},
	}
	a := resolve(t, cfg)
	b := resolve(t, cfg)
	assert.Equal(t, a, b)
}

func TestResolveMagnitudeZeroMatchesNoAI(t *testing.T) {
	base := resolve(t, ScenarioConfig{})

	mags := model.Magnitudes{}
	store := defaultStore(t)
	def, err := store.GetIntervention(model.CHWAI)
	require.NoError(t, err)
	for _, e := range def.Effects {
		mags[model.EffectKey{Intervention: model.CHWAI, Param: e.Param}] = 0
	}
	zero := resolve(t, ScenarioConfig{AI: model.AIInterventionSet{CHWAI: true}, Magnitudes: mags})

	assert.Equal(t, base.Rates, zero.Rates)
	assert.Equal(t, base.Congestion, zero.Congestion)
}

func TestResolveMagnitudeOneIsBaseEffect(t *testing.T) {
	base := resolve(t, ScenarioConfig{})
	chw := resolve(t, ScenarioConfig{AI: model.AIInterventionSet{CHWAI: true}})

	assert.Equal(t, base.Rates.Mu[0]+0.10, chw.Rates.Mu[0])
	assert.InDelta(t, base.Rates.Delta[0]*0.85, chw.Rates.Delta[0], 1e-15)
	assert.InDelta(t, base.Rates.Rho[0]*0.9, chw.Rates.Rho[0], 1e-15)
	assert.Equal(t, 60000.0, chw.Costs.AIFixedCost)
	assert.Equal(t, 1.2, chw.Costs.AIVariableCost)
}

func TestResolveMagnitudeTwoDoublesEffect(t *testing.T) {
	base := resolve(t, ScenarioConfig{})
	key := model.EffectKey{Intervention: model.CHWAI, Param: model.ParamDelta0}
	doubled := resolve(t, ScenarioConfig{
		AI:         model.AIInterventionSet{CHWAI: true},
		Magnitudes: model.Magnitudes{key: 2},
	})
	assert.InDelta(t, base.Rates.Delta[0]*0.7, doubled.Rates.Delta[0], 1e-15)
}

func TestResolveRejectsMagnitudeOutOfRange(t *testing.T) {
	key := model.EffectKey{Intervention: model.CHWAI, Param: model.ParamMu0}
	_, err := NewParameterResolver(defaultStore(t), nil).Resolve(context.Background(), ScenarioConfig{
		AI:         model.AIInterventionSet{CHWAI: true},
		Magnitudes: model.Magnitudes{key: 2.5},
	})
	assert.ErrorIs(t, err, ErrInvalidMagnitude)
}

func TestResolveUnknownEntries(t *testing.T) {
	r := NewParameterResolver(defaultStore(t), nil)
	_, err := r.Resolve(context.Background(), ScenarioConfig{Disease: "cholera"})
	assert.ErrorIs(t, err, kb.ErrDiseaseNotFound)

	_, err = r.Resolve(context.Background(), ScenarioConfig{HealthSystem: "utopia"})
	assert.ErrorIs(t, err, kb.ErrHealthSystemNotFound)

	rp, err := r.Resolve(context.Background(), ScenarioConfig{Country: "atlantis"})
	require.NoError(t, err)
	require.NotEmpty(t, rp.Warnings)
	assert.Contains(t, rp.Warnings[0], "atlantis")
}

func TestResolveCongestionOverride(t *testing.T) {
	rp := resolve(t, ScenarioConfig{Congestion: congestion(0.9)})
	assert.Equal(t, 0.9, rp.Congestion.Congestion)

	_, err := NewParameterResolver(defaultStore(t), nil).Resolve(context.Background(),
		ScenarioConfig{Congestion: congestion(1.5)})
	assert.ErrorIs(t, err, ErrInvalidCongestion)
}

func TestResolveCountryRuralAdjustments(t *testing.T) {
	base := resolve(t, ScenarioConfig{})
	rural := resolve(t, ScenarioConfig{Country: "rwanda", Setting: kb.SettingRural})

	assert.InDelta(t, base.Rates.Lambda*1.1, rural.Rates.Lambda, 1e-15)
	assert.InDelta(t, base.Rates.Phi0*0.9, rural.Rates.Phi0, 1e-15)
	assert.InDelta(t, base.Rates.Delta[2]*1.1, rural.Rates.Delta[2], 1e-15)
	assert.InDelta(t, base.Costs.PerDiem[3]*0.8, rural.Costs.PerDiem[3], 1e-12)
	assert.Equal(t, 69.0, rural.RegionalLifeExpectancy)
}

func TestResolveComorbidity(t *testing.T) {
	base := resolve(t, ScenarioConfig{})
	multi := resolve(t, ScenarioConfig{MultiCondition: true})
	def := DefaultComorbidity()

	assert.InDelta(t, base.Rates.Delta[1]*def.MortalityMultiplier, multi.Rates.Delta[1], 1e-15)
	assert.InDelta(t, base.Rates.Mu[1]*def.ResolutionFactor, multi.Rates.Mu[1], 1e-15)
	assert.InDelta(t, base.Rates.SigmaI*def.CareSeekingBoost, multi.Rates.SigmaI, 1e-15)

	_, err := NewParameterResolver(defaultStore(t), nil).Resolve(context.Background(), ScenarioConfig{
		MultiCondition: true,
		Comorbidity:    &Comorbidity{MortalityMultiplier: 0.9, ResolutionFactor: 1, CareSeekingBoost: 1},
	})
	assert.ErrorIs(t, err, ErrInvalidComorbidity)
}

func testInput(t *testing.T) ResolveInput {
	t.Helper()
	store := defaultStore(t)
	d, err := store.GetDisease(kb.GenericID)
	require.NoError(t, err)
	hs, err := store.GetHealthSystem(kb.GenericID)
	require.NoError(t, err)
	return ResolveInput{Disease: d, HealthSystem: hs, Population: 1000}
}

func TestResolveParametersClampsProbabilities(t *testing.T) {
	in := testInput(t)
	in.Disease.Phi0 = 0.95
	in.Comorbidity = &Comorbidity{MortalityMultiplier: 1, ResolutionFactor: 1, CareSeekingBoost: 1.2}

	rp, err := ResolveParameters(in)
	require.NoError(t, err)
	assert.Equal(t, 1.0, rp.Rates.Phi0)
	require.NotEmpty(t, rp.Warnings)
	assert.True(t, strings.HasPrefix(rp.Warnings[0], "phi0"), rp.Warnings[0])
}

func TestResolveParametersRejectsNegative(t *testing.T) {
	in := testInput(t)
	in.Disease.Mu[0] = -0.1
	_, err := ResolveParameters(in)
	assert.ErrorIs(t, err, ErrNegativeParameter)
}

func TestResolveParametersScalesOutflows(t *testing.T) {
	in := testInput(t)
	in.Disease.Mu[0], in.Disease.Delta[0], in.Disease.Rho[0] = 0.6, 0.2, 0.4

	rp, err := ResolveParameters(in)
	require.NoError(t, err)
	sum := rp.Rates.Mu[0] + rp.Rates.Delta[0] + rp.Rates.Rho[0]
	assert.InDelta(t, 1.0, sum, 1e-12)
	assert.InDelta(t, 0.5, rp.Rates.Mu[0], 1e-12)
	assert.NotEmpty(t, rp.Warnings)
}

func TestResolveParametersRequiresPopulation(t *testing.T) {
	in := testInput(t)
	in.Population = 0
	_, err := ResolveParameters(in)
	assert.ErrorIs(t, err, ErrInvalidPopulation)
}

func TestResolveParametersReportsFirstInvalidScalar(t *testing.T) {
	for i := 0; i < 20; i++ {
		in := testInput(t)
		in.Disease.DisabilityWeight = -0.2
		in.Disease.MeanAgeOfInfection = -5
		_, err := ResolveParameters(in)
		require.ErrorIs(t, err, ErrNegativeParameter)
		assert.Contains(t, err.Error(), "disabilityWeight")
	}
}

func TestResolveRejectsUnknownSetting(t *testing.T) {
	r := NewParameterResolver(defaultStore(t), nil)
	_, err := r.Resolve(context.Background(), ScenarioConfig{Country: "rwanda", Setting: "rurall"})
	assert.ErrorIs(t, err, ErrInvalidSetting)
}

func TestResolveNormalizesSetting(t *testing.T) {
	rural := resolve(t, ScenarioConfig{Country: "rwanda", Setting: kb.SettingRural})
	padded := resolve(t, ScenarioConfig{Country: "rwanda", Setting: " Rural "})
	assert.Equal(t, rural.Rates.Lambda, padded.Rates.Lambda)
	assert.Equal(t, rural.Costs, padded.Costs)
}
