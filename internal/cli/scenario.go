package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/signalsfoundry/carecascade-simulator/core"
	"github.com/signalsfoundry/carecascade-simulator/internal/logging"
	"github.com/signalsfoundry/carecascade-simulator/kb"
	"github.com/signalsfoundry/carecascade-simulator/model"
	"github.com/spf13/cobra"
)

// scenarioFlags are the flags shared by run, compare and multi. Flags that
// were set on the command line override the scenario file.
type scenarioFlags struct {
	file string

	disease        string
	diseases       []string
	healthSystem   string
	country        string
	setting        string
	population     float64
	weeks          int
	congestion     float64
	multiCondition bool
	ai             []string
	magnitudes     []string

	weekly    bool
	jsonOut   bool
	save      string
	threshold float64
}

func (f *scenarioFlags) register(cmd *cobra.Command, multi bool) {
	fl := cmd.Flags()
	fl.StringVarP(&f.file, "scenario", "f", "", "scenario file (.json, .yaml)")
	if multi {
		fl.StringSliceVarP(&f.diseases, "diseases", "d", nil, "diseases to run (comma separated)")
	} else {
		fl.StringVarP(&f.disease, "disease", "d", "", "disease profile (default generic)")
	}
	fl.StringVar(&f.healthSystem, "health-system", "", "health system preset (env SIM_HEALTH_SYSTEM)")
	fl.StringVar(&f.country, "country", "", "country profile (env SIM_COUNTRY)")
	fl.StringVar(&f.setting, "setting", "", "country setting: urban or rural")
	fl.Float64Var(&f.population, "population", 0, "catchment population (default 100000)")
	fl.IntVarP(&f.weeks, "weeks", "w", 0, "weeks to simulate (env SIM_WEEKS)")
	fl.Float64Var(&f.congestion, "congestion", 0, "system congestion in [0,1], overrides the preset")
	fl.BoolVar(&f.multiCondition, "multi-condition", false, "apply the default comorbidity adjustment")
	fl.StringSliceVar(&f.ai, "ai", nil, "AI interventions to enable, e.g. chwAI,triageAI")
	fl.StringArrayVarP(&f.magnitudes, "magnitude", "m", nil, "effect magnitude override <intervention>_<param>=<0..2>, repeatable")
	fl.BoolVar(&f.jsonOut, "json", false, "print results as JSON")
	fl.StringVar(&f.save, "save", "", "save the scenario and its result summary to this file")
	fl.Float64Var(&f.threshold, "threshold", 0, "willingness-to-pay per DALY for the cost-effectiveness verdict")
	if !multi {
		fl.BoolVar(&f.weekly, "weekly", false, "include the weekly trajectory table")
	}
}

// scenario loads the scenario file, if any, and applies explicit flags and
// configuration defaults on top.
func (f *scenarioFlags) scenario(cmd *cobra.Command, a *app) (*core.ScenarioFile, error) {
	file := &core.ScenarioFile{}
	if f.file != "" {
		loaded, err := core.LoadScenarioFile(f.file)
		if err != nil {
			return nil, err
		}
		file = loaded
	}

	fl := cmd.Flags()
	if fl.Changed("disease") {
		file.Disease = f.disease
	}
	if fl.Changed("diseases") {
		file.Diseases = f.diseases
	}
	if fl.Changed("health-system") {
		file.HealthSystem = f.healthSystem
	}
	if fl.Changed("country") {
		file.Country = f.country
	}
	if fl.Changed("setting") {
		file.Setting = kb.Setting(f.setting)
	}
	if fl.Changed("population") {
		file.Population = f.population
	}
	if fl.Changed("weeks") {
		file.Weeks = f.weeks
	}
	if fl.Changed("congestion") {
		c := f.congestion
		file.Congestion = &c
	}
	if fl.Changed("multi-condition") {
		file.MultiCondition = f.multiCondition
	}
	for _, name := range f.ai {
		iv, err := model.ParseIntervention(name)
		if err != nil {
			return nil, err
		}
		file.AIInterventions = file.AIInterventions.With(iv, true)
	}
	for _, raw := range f.magnitudes {
		entry, err := parseMagnitude(raw)
		if err != nil {
			return nil, err
		}
		file.EffectMagnitudes = append(file.EffectMagnitudes, entry)
	}

	if file.HealthSystem == "" {
		file.HealthSystem = a.cfg.HealthSystem
	}
	if file.Country == "" {
		file.Country = a.cfg.Country
	}
	if file.Weeks == 0 {
		file.Weeks = a.cfg.Weeks
	}
	return file, nil
}

func parseMagnitude(raw string) (core.MagnitudeEntry, error) {
	key, value, ok := strings.Cut(raw, "=")
	if !ok {
		return core.MagnitudeEntry{}, fmt.Errorf("%w: magnitude %q must look like <intervention>_<param>=<value>", core.ErrInvalidScenario, raw)
	}
	ek, err := model.ParseEffectKey(strings.TrimSpace(key))
	if err != nil {
		return core.MagnitudeEntry{}, err
	}
	m, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return core.MagnitudeEntry{}, fmt.Errorf("%w: magnitude %q: %v", core.ErrInvalidScenario, raw, err)
	}
	return core.MagnitudeEntry{Intervention: ek.Intervention, Parameter: ek.Param, Magnitude: m}, nil
}

// saveScenario writes the scenario with its result summary.
func (f *scenarioFlags) saveScenario(ctx context.Context, a *app, file *core.ScenarioFile, cfg core.ScenarioConfig, res *model.SimulationResults) error {
	if f.save == "" {
		return nil
	}
	var summary *model.ResultSummary
	if res != nil {
		s := res.Summary()
		summary = &s
	}
	out := core.ScenarioFileFrom(cfg, file.Diseases, summary)

	fh, err := os.Create(f.save)
	if err != nil {
		return fmt.Errorf("save scenario: %w", err)
	}
	if err := core.SaveScenario(fh, out, core.FormatFromPath(f.save)); err != nil {
		fh.Close()
		return fmt.Errorf("save scenario: %w", err)
	}
	if err := fh.Close(); err != nil {
		return fmt.Errorf("save scenario: %w", err)
	}
	a.log.Info(ctx, "scenario saved", logging.String("path", f.save))
	return nil
}
