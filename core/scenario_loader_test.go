package core

import (
	"bytes"
	"strings"
	"testing"

	"github.com/signalsfoundry/carecascade-simulator/kb"
	"github.com/signalsfoundry/carecascade-simulator/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenarioLegacyMagnitudeMap(t *testing.T) {
	doc := `{
  "name": "chw pilot",
  "disease": "malaria",
  "healthSystem": "weak-rural",
  "country": "rwanda",
  "setting": "Rural",
  "congestion": 0.6,
  "aiInterventions": {"chwAI": true, "triageAI": false},
  "effectMagnitudes": {"chwAI_mu0": 1.5, "chwAI_delta0": 0.5}
}`
	f, err := LoadScenario(strings.NewReader(doc), "json")
	require.NoError(t, err)

	cfg, err := f.Config()
	require.NoError(t, err)
	assert.Equal(t, "malaria", cfg.Disease)
	assert.Equal(t, kb.SettingRural, cfg.Setting)
	require.NotNil(t, cfg.Congestion)
	assert.Equal(t, 0.6, *cfg.Congestion)
	assert.True(t, cfg.AI.CHWAI)
	assert.Equal(t, 1.5, cfg.Magnitudes.Get(model.EffectKey{Intervention: model.CHWAI, Param: model.ParamMu0}))
	assert.Equal(t, 0.5, cfg.Magnitudes.Get(model.EffectKey{Intervention: model.CHWAI, Param: model.ParamDelta0}))
	assert.Equal(t, 1.0, cfg.Magnitudes.Get(model.EffectKey{Intervention: model.CHWAI, Param: model.ParamRho0}))
}

func TestLoadScenarioTypedMagnitudeListYAML(t *testing.T) {
	doc := `
name: multi
diseases: [malaria, pneumonia, malaria]
multiCondition: true
aiInterventions:
  selfCareAI: true
effectMagnitudes:
  - {intervention: selfCareAI, parameter: sigmaI, magnitude: 2}
`
	f, err := LoadScenario(strings.NewReader(doc), "yaml")
	require.NoError(t, err)
	assert.Equal(t, []string{"malaria", "pneumonia"}, f.DiseaseList())

	cfg, err := f.Config()
	require.NoError(t, err)
	assert.Equal(t, "malaria", cfg.Disease)
	assert.True(t, cfg.MultiCondition)
	assert.Equal(t, 2.0, cfg.Magnitudes.Get(model.EffectKey{Intervention: model.SelfCareAI, Param: model.ParamSigmaI}))
}

func TestLoadScenarioRejectsBadInput(t *testing.T) {
	_, err := LoadScenario(strings.NewReader(`{"effectMagnitudes": {"bogus": 1}}`), "json")
	assert.ErrorIs(t, err, ErrInvalidScenario)

	_, err = LoadScenario(strings.NewReader(`{"unknownField": 1}`), "json")
	assert.ErrorIs(t, err, ErrInvalidScenario)

	_, err = LoadScenario(strings.NewReader(`{}`), "toml")
	assert.ErrorIs(t, err, ErrInvalidScenario)

	f, err := LoadScenario(strings.NewReader(`{"effectMagnitudes": {"chwAI_mu0": 3}}`), "json")
	require.NoError(t, err)
	_, err = f.Config()
	assert.ErrorIs(t, err, ErrInvalidMagnitude)

	f, err = LoadScenario(strings.NewReader(`{"country": "rwanda", "setting": "rurall"}`), "json")
	require.NoError(t, err)
	_, err = f.Config()
	assert.ErrorIs(t, err, ErrInvalidSetting)
}

func TestSaveScenarioReproducesRun(t *testing.T) {
	runner := NewRunner(defaultStore(t))
	cfg := ScenarioConfig{
		Name:       "round trip",
		Disease:    "pneumonia",
		Congestion: congestion(0.5),
		AI:         model.AIInterventionSet{CHWAI: true},
		Magnitudes: model.Magnitudes{{Intervention: model.CHWAI, Param: model.ParamMu0}: 0.75},
	}
	res, err := runner.RunScenario(t.Context(), cfg)
	require.NoError(t, err)
	summary := res.Summary()

	for _, format := range []string{"json", "yaml"} {
		var buf bytes.Buffer
		require.NoError(t, SaveScenario(&buf, ScenarioFileFrom(cfg, nil, &summary), format))

		loaded, err := LoadScenario(&buf, format)
		require.NoError(t, err, format)
		require.NotNil(t, loaded.Results, format)
		assert.Equal(t, summary.DALYs, loaded.Results.DALYs, format)

		again, err := loaded.Config()
		require.NoError(t, err, format)
		rerun, err := runner.RunScenario(t.Context(), again)
		require.NoError(t, err, format)
		assert.Equal(t, res.TotalCost, rerun.TotalCost, format)
		assert.Equal(t, res.DALYs, rerun.DALYs, format)
	}
}

func TestFormatFromPath(t *testing.T) {
	assert.Equal(t, "json", FormatFromPath("a/b/scenario.JSON"))
	assert.Equal(t, "yaml", FormatFromPath("scenario.yml"))
	assert.Equal(t, "yaml", FormatFromPath("scenario"))
}
