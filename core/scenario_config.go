package core

import (
	"fmt"

	"github.com/signalsfoundry/carecascade-simulator/kb"
	"github.com/signalsfoundry/carecascade-simulator/model"
)

// DefaultPopulation is the catchment size used when a scenario leaves it unset.
const DefaultPopulation = 100000

// Comorbidity adjusts rates when patients carry more than one condition.
type Comorbidity struct {
	// MortalityMultiplier scales every death probability; must be >= 1.
	MortalityMultiplier float64 `json:"mortalityMultiplier" yaml:"mortalityMultiplier"`
	// ResolutionFactor scales every resolution probability; must be in (0,1].
	ResolutionFactor float64 `json:"resolutionFactor" yaml:"resolutionFactor"`
	// CareSeekingBoost scales phi0 and sigmaI; must be >= 1.
	CareSeekingBoost float64 `json:"careSeekingBoost" yaml:"careSeekingBoost"`
}

// DefaultComorbidity applies when multi-condition mode is on without explicit
// adjustments.
func DefaultComorbidity() Comorbidity {
	return Comorbidity{
		MortalityMultiplier: 1.3,
		ResolutionFactor:    0.85,
		CareSeekingBoost:    1.1,
	}
}

func (c Comorbidity) validate() error {
	if c.MortalityMultiplier < 1 {
		return fmt.Errorf("%w: mortality multiplier %v < 1", ErrInvalidComorbidity, c.MortalityMultiplier)
	}
	if c.ResolutionFactor <= 0 || c.ResolutionFactor > 1 {
		return fmt.Errorf("%w: resolution factor %v outside (0,1]", ErrInvalidComorbidity, c.ResolutionFactor)
	}
	if c.CareSeekingBoost < 1 {
		return fmt.Errorf("%w: care-seeking boost %v < 1", ErrInvalidComorbidity, c.CareSeekingBoost)
	}
	return nil
}

// ScenarioConfig is everything needed to resolve and run one scenario.
type ScenarioConfig struct {
	Name         string
	Disease      string
	HealthSystem string
	Country      string
	Setting      kb.Setting
	Population   float64
	Weeks        int
	// Congestion overrides the health system preset when set.
	Congestion     *float64
	MultiCondition bool
	// Comorbidity defaults to DefaultComorbidity when MultiCondition is set.
	Comorbidity *Comorbidity
	AI          model.AIInterventionSet
	Magnitudes  model.Magnitudes
	// Initial overrides the empty week-0 state.
	Initial *model.CompartmentState
}

// WithDefaults fills unset fields.
func (c ScenarioConfig) WithDefaults() ScenarioConfig {
	if c.Disease == "" {
		c.Disease = kb.GenericID
	}
	c.Setting = kb.NormalizeSetting(c.Setting)
	if c.HealthSystem == "" {
		c.HealthSystem = kb.GenericID
	}
	if c.Population == 0 {
		c.Population = DefaultPopulation
	}
	if c.Weeks == 0 {
		c.Weeks = model.DefaultHorizonWeeks
	}
	return c
}

// WithoutAI returns a copy with every intervention switched off.
func (c ScenarioConfig) WithoutAI() ScenarioConfig {
	c.AI = model.AIInterventionSet{}
	return c
}

// ForDisease returns a copy targeting another disease.
func (c ScenarioConfig) ForDisease(id string) ScenarioConfig {
	c.Disease = id
	return c
}

// Validate checks the fields that do not need the knowledge base.
func (c ScenarioConfig) Validate() error {
	if c.Weeks < 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidHorizon, c.Weeks)
	}
	if c.Population < 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidPopulation, c.Population)
	}
	if !kb.NormalizeSetting(c.Setting).Known() {
		return fmt.Errorf("%w: got %q", ErrInvalidSetting, c.Setting)
	}
	if c.Congestion != nil {
		if err := ValidateCongestion(*c.Congestion); err != nil {
			return err
		}
	}
	if err := validateMagnitudes(c.Magnitudes); err != nil {
		return err
	}
	if c.Initial != nil {
		if err := validateState(*c.Initial); err != nil {
			return err
		}
	}
	return nil
}

func validateMagnitudes(m model.Magnitudes) error {
	for _, k := range m.Keys() {
		v := m[k]
		if v != v || v < model.MinMagnitude || v > model.MaxMagnitude {
			return fmt.Errorf("%w: %s = %v", ErrInvalidMagnitude, k, v)
		}
	}
	return nil
}

func validateState(s model.CompartmentState) error {
	values := []float64{s.U, s.I, s.R, s.D, s.Unserved}
	values = append(values, s.L[:]...)
	values = append(values, s.Q[:]...)
	for _, v := range values {
		if v != v || v < 0 {
			return fmt.Errorf("%w: week %d", ErrInvalidState, s.Week)
		}
	}
	return nil
}
