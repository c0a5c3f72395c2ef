package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/signalsfoundry/carecascade-simulator/kb"
	"github.com/signalsfoundry/carecascade-simulator/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRunMetrics struct {
	mu       sync.Mutex
	kinds    []string
	errs     int
	outcomes map[string]int
	warnings int
}

func (s *stubRunMetrics) ObserveRun(kind string, _ time.Duration, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kinds = append(s.kinds, kind)
	if err != nil {
		s.errs++
	}
}

func (s *stubRunMetrics) RecordOutcome(disease string, _ *model.SimulationResults) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outcomes == nil {
		s.outcomes = make(map[string]int)
	}
	s.outcomes[disease]++
}

func (s *stubRunMetrics) AddParameterWarnings(_ string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.warnings += n
}

func TestRunEndToEndConservesIncidence(t *testing.T) {
	runner := NewRunner(defaultStore(t))
	res, err := runner.RunScenario(context.Background(), ScenarioConfig{
		Population: 100000,
		Congestion: congestion(0),
	})
	require.NoError(t, err)
	require.Len(t, res.Weekly, model.DefaultHorizonWeeks+1)

	final := res.Final()
	want := 100000 * 0.05
	assert.InEpsilon(t, want, final.Total(), 1e-6)
	assert.Zero(t, final.Unserved)
	assert.Equal(t, final.D, res.CumulativeDeaths)
	assert.Equal(t, final.R, res.CumulativeResolved)
	assert.NotEmpty(t, res.RunID)
	assert.Nil(t, res.ICER)
}

func TestRunRejectsBadInput(t *testing.T) {
	runner := NewRunner(defaultStore(t))
	ctx := context.Background()

	_, err := runner.Run(ctx, model.CompartmentState{}, testParams(0), 0)
	assert.ErrorIs(t, err, ErrInvalidHorizon)

	_, err = runner.Run(ctx, model.CompartmentState{U: -1}, testParams(0), 4)
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = runner.RunScenario(ctx, ScenarioConfig{Weeks: -2})
	assert.ErrorIs(t, err, ErrInvalidHorizon)
}

func TestRunRecoversPanics(t *testing.T) {
	runner := NewRunner(defaultStore(t))
	runner.RegisterWeekListener(func(string, model.CompartmentState, Flows) {
		panic("listener exploded")
	})

	res, err := runner.Run(context.Background(), model.CompartmentState{}, testParams(0), 3)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrRunPanicked)
}

func TestRunHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewRunner(defaultStore(t)).Run(ctx, model.CompartmentState{}, testParams(0), 10)
	assert.True(t, errors.Is(err, context.Canceled), "err = %v", err)
}

func TestRunNotifiesWeekListeners(t *testing.T) {
	runner := NewRunner(defaultStore(t))
	var weeks []int
	runner.RegisterWeekListener(func(disease string, s model.CompartmentState, f Flows) {
		assert.Equal(t, "test", disease)
		assert.Equal(t, s.Week, f.Week)
		weeks = append(weeks, s.Week)
	})

	_, err := runner.Run(context.Background(), model.CompartmentState{}, testParams(0.4), 5)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, weeks)
}

func TestRunWithBaselineFillsICER(t *testing.T) {
	metrics := &stubRunMetrics{}
	runner := NewRunner(defaultStore(t), WithMetricsRecorder(metrics))

	out, err := runner.RunWithBaseline(context.Background(), ScenarioConfig{
		Disease:      "pneumonia",
		HealthSystem: "moderate",
		AI:           model.AIInterventionSet{CHWAI: true, HospitalDecisionAI: true},
	})
	require.NoError(t, err)
	require.NotNil(t, out.Intervention.ICER)
	assert.Nil(t, out.Baseline.ICER)

	assert.Less(t, out.Intervention.CumulativeDeaths, out.Baseline.CumulativeDeaths)
	assert.InDelta(t, out.Baseline.CumulativeDeaths-out.Intervention.CumulativeDeaths,
		out.Comparison.DeathsAverted, 1e-9)
	assert.Equal(t, *out.Intervention.ICER, out.Comparison.ICER)
	assert.NotEqual(t, out.Intervention.RunID, out.Baseline.RunID)

	assert.Equal(t, []string{RunKindCompare}, metrics.kinds)
	assert.Equal(t, 2, metrics.outcomes["pneumonia"])
}

func TestRunBaselineClearsAI(t *testing.T) {
	runner := NewRunner(defaultStore(t))
	cfg := ScenarioConfig{AI: model.AIInterventionSet{TriageAI: true}}

	baseline, err := runner.RunBaseline(context.Background(), cfg)
	require.NoError(t, err)
	plain, err := runner.RunScenario(context.Background(), cfg.WithoutAI())
	require.NoError(t, err)

	assert.Equal(t, plain.Weekly, baseline.Weekly)
	assert.Equal(t, plain.TotalCost, baseline.TotalCost)
}

func TestRunIsDeterministic(t *testing.T) {
	runner := NewRunner(defaultStore(t))
	cfg := ScenarioConfig{Disease: "malaria", HealthSystem: "weak-rural", AI: model.AIInterventionSet{SelfCareAI: true}}

	a, err := runner.RunScenario(context.Background(), cfg)
	require.NoError(t, err)
	b, err := runner.RunScenario(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, a.Weekly, b.Weekly)
	assert.Equal(t, a.DALYs, b.DALYs)
}

func TestRunMultiAggregates(t *testing.T) {
	runner := NewRunner(defaultStore(t), WithMaxParallel(2))
	cfg := ScenarioConfig{AI: model.AIInterventionSet{CHWAI: true}}
	diseases := []string{"malaria", "pneumonia", "malaria", "tuberculosis"}

	out, err := runner.RunMulti(context.Background(), cfg, diseases, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"malaria", "pneumonia", "tuberculosis"}, out.Diseases())

	var deaths, dalys, cost float64
	for _, res := range out.PerDisease {
		deaths += res.CumulativeDeaths
		dalys += res.DALYs
		cost += res.TotalCost
		assert.Nil(t, res.ICER)
	}
	assert.InDelta(t, deaths, out.Aggregate.CumulativeDeaths, 1e-9)
	assert.InDelta(t, dalys, out.Aggregate.DALYs, 1e-9)
	// The programme fixed cost is counted once, not per disease.
	assert.InDelta(t, cost-2*60000, out.Aggregate.TotalCost, 1e-6)
	assert.Len(t, out.Aggregate.Weekly, model.DefaultHorizonWeeks+1)
	assert.Empty(t, out.Substitutions)
}

func TestRunMultiSubstitutesMissingBaseline(t *testing.T) {
	runner := NewRunner(defaultStore(t))
	ctx := context.Background()

	generic, err := runner.RunBaseline(ctx, ScenarioConfig{Disease: kb.GenericID})
	require.NoError(t, err)
	malaria, err := runner.RunBaseline(ctx, ScenarioConfig{Disease: "malaria"})
	require.NoError(t, err)
	baselines := map[string]*model.SimulationResults{
		kb.GenericID: generic,
		"malaria":    malaria,
	}

	cfg := ScenarioConfig{AI: model.AIInterventionSet{DiagnosticAI: true}}
	out, err := runner.RunMulti(ctx, cfg, []string{"malaria", "pneumonia"}, baselines)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"pneumonia": kb.GenericID}, out.Substitutions)
	require.Len(t, out.Warnings, 1)
	assert.Contains(t, out.Warnings[0], "pneumonia")
	assert.Contains(t, out.PerDisease["pneumonia"].Warnings, out.Warnings[0])
	assert.NotNil(t, out.PerDisease["malaria"].ICER)
	assert.NotNil(t, out.PerDisease["pneumonia"].ICER)
	assert.NotNil(t, out.Aggregate.ICER)
}

func TestRunMultiFallsBackToFirstBaseline(t *testing.T) {
	runner := NewRunner(defaultStore(t))
	ctx := context.Background()
	diarrhoea, err := runner.RunBaseline(ctx, ScenarioConfig{Disease: "diarrhoea"})
	require.NoError(t, err)

	out, err := runner.RunMulti(ctx, ScenarioConfig{}, []string{"malaria"},
		map[string]*model.SimulationResults{"diarrhoea": diarrhoea})
	require.NoError(t, err)
	assert.Equal(t, "diarrhoea", out.Substitutions["malaria"])
}

func TestRunMultiCompared(t *testing.T) {
	runner := NewRunner(defaultStore(t))
	cfg := ScenarioConfig{AI: model.AIInterventionSet{BedManagementAI: true}, Congestion: congestion(0.8)}

	intervention, baseline, err := runner.RunMultiCompared(context.Background(), cfg, []string{"malaria", "pneumonia"})
	require.NoError(t, err)
	assert.Empty(t, intervention.Substitutions)
	for _, id := range baseline.Diseases() {
		require.NotNil(t, intervention.PerDisease[id].ICER, id)
	}
}

func TestRunMultiErrors(t *testing.T) {
	runner := NewRunner(defaultStore(t))
	_, err := runner.RunMulti(context.Background(), ScenarioConfig{}, nil, nil)
	assert.ErrorIs(t, err, ErrNoDiseases)

	_, err = runner.RunMulti(context.Background(), ScenarioConfig{}, []string{"malaria", "cholera"}, nil)
	assert.ErrorIs(t, err, kb.ErrDiseaseNotFound)
}
