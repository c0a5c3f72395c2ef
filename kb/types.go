package kb

import (
	"fmt"
	"strings"

	"github.com/signalsfoundry/carecascade-simulator/model"
)

// DiseaseProfile holds the disease-specific base rates. All rates are weekly
// probabilities except Lambda, which is annual incidence per head.
type DiseaseProfile struct {
	ID                 string  `json:"id" yaml:"id"`
	Name               string  `json:"name" yaml:"name"`
	Lambda             float64 `json:"lambda" yaml:"lambda"`
	DisabilityWeight   float64 `json:"disabilityWeight" yaml:"disabilityWeight"`
	MeanAgeOfInfection float64 `json:"meanAgeOfInfection" yaml:"meanAgeOfInfection"`

	MuU    float64   `json:"muU" yaml:"muU"`
	MuI    float64   `json:"muI" yaml:"muI"`
	Mu     []float64 `json:"mu" yaml:"mu"`
	DeltaU float64   `json:"deltaU" yaml:"deltaU"`
	DeltaI float64   `json:"deltaI" yaml:"deltaI"`
	Delta  []float64 `json:"delta" yaml:"delta"`
	Rho    []float64 `json:"rho" yaml:"rho"`

	Phi0              float64 `json:"phi0" yaml:"phi0"`
	InformalCareRatio float64 `json:"informalCareRatio" yaml:"informalCareRatio"`
	SigmaI            float64 `json:"sigmaI" yaml:"sigmaI"`
}

// Validate checks structural completeness; numeric ranges are enforced by
// the parameter resolver.
func (d *DiseaseProfile) Validate() error {
	if d == nil || d.ID == "" {
		return fmt.Errorf("%w: disease id is required", ErrInvalidEntry)
	}
	if len(d.Mu) != model.NumLevels || len(d.Delta) != model.NumLevels {
		return fmt.Errorf("%w: disease %q needs %d mu and delta values", ErrInvalidEntry, d.ID, model.NumLevels)
	}
	if len(d.Rho) != model.NumLevels-1 {
		return fmt.Errorf("%w: disease %q needs %d rho values", ErrInvalidEntry, d.ID, model.NumLevels-1)
	}
	return nil
}

// HealthSystem is a named preset of per-compartment multipliers, costs and
// congestion behaviour.
type HealthSystem struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`

	MuMultiplier    []float64 `json:"muMultiplier" yaml:"muMultiplier"`
	DeltaMultiplier []float64 `json:"deltaMultiplier" yaml:"deltaMultiplier"`
	RhoMultiplier   []float64 `json:"rhoMultiplier" yaml:"rhoMultiplier"`
	// Informal* multipliers apply to the informal care compartment; zero
	// means unset.
	InformalMuMultiplier    float64 `json:"informalMuMultiplier" yaml:"informalMuMultiplier"`
	InformalDeltaMultiplier float64 `json:"informalDeltaMultiplier" yaml:"informalDeltaMultiplier"`

	InformalPerDiem float64   `json:"informalPerDiem" yaml:"informalPerDiem"`
	PerDiem         []float64 `json:"perDiem" yaml:"perDiem"`
	LifeExpectancy  float64   `json:"lifeExpectancy" yaml:"lifeExpectancy"`

	Congestion                    float64 `json:"congestion" yaml:"congestion"`
	CompetitionSensitivity        float64 `json:"competitionSensitivity" yaml:"competitionSensitivity"`
	QueueAbandonmentRate          float64 `json:"queueAbandonmentRate" yaml:"queueAbandonmentRate"`
	QueueBypassRate               float64 `json:"queueBypassRate" yaml:"queueBypassRate"`
	QueueClearanceRate            float64 `json:"queueClearanceRate" yaml:"queueClearanceRate"`
	CongestionMortalityMultiplier float64 `json:"congestionMortalityMultiplier" yaml:"congestionMortalityMultiplier"`
}

// Normalize fills unset multipliers with 1.
func (h *HealthSystem) Normalize() {
	h.MuMultiplier = fillOnes(h.MuMultiplier, model.NumLevels)
	h.DeltaMultiplier = fillOnes(h.DeltaMultiplier, model.NumLevels)
	h.RhoMultiplier = fillOnes(h.RhoMultiplier, model.NumLevels-1)
	if h.InformalMuMultiplier == 0 {
		h.InformalMuMultiplier = 1
	}
	if h.InformalDeltaMultiplier == 0 {
		h.InformalDeltaMultiplier = 1
	}
	if h.PerDiem == nil {
		h.PerDiem = make([]float64, model.NumLevels)
	}
}

// Validate checks structural completeness.
func (h *HealthSystem) Validate() error {
	if h == nil || h.ID == "" {
		return fmt.Errorf("%w: health system id is required", ErrInvalidEntry)
	}
	if len(h.MuMultiplier) != model.NumLevels || len(h.DeltaMultiplier) != model.NumLevels ||
		len(h.RhoMultiplier) != model.NumLevels-1 || len(h.PerDiem) != model.NumLevels {
		return fmt.Errorf("%w: health system %q has mis-sized multiplier or cost lists", ErrInvalidEntry, h.ID)
	}
	return nil
}

// Setting distinguishes urban and rural catchments within a country.
type Setting string

const (
	SettingUrban Setting = "urban"
	SettingRural Setting = "rural"
)

// NormalizeSetting trims and lower-cases s.
func NormalizeSetting(s Setting) Setting {
	return Setting(strings.ToLower(strings.TrimSpace(string(s))))
}

// Known reports whether s is empty, urban or rural.
func (s Setting) Known() bool {
	switch s {
	case "", SettingUrban, SettingRural:
		return true
	}
	return false
}

// SettingAdjustment scales baseline parameters for one setting. Zero fields
// are treated as 1.
type SettingAdjustment struct {
	IncidenceMultiplier   float64 `json:"incidenceMultiplier" yaml:"incidenceMultiplier"`
	CareSeekingMultiplier float64 `json:"careSeekingMultiplier" yaml:"careSeekingMultiplier"`
	MortalityMultiplier   float64 `json:"mortalityMultiplier" yaml:"mortalityMultiplier"`
	CostMultiplier        float64 `json:"costMultiplier" yaml:"costMultiplier"`
}

// Normalized returns a copy with zero fields replaced by 1.
func (a SettingAdjustment) Normalized() SettingAdjustment {
	one := func(v float64) float64 {
		if v == 0 {
			return 1
		}
		return v
	}
	return SettingAdjustment{
		IncidenceMultiplier:   one(a.IncidenceMultiplier),
		CareSeekingMultiplier: one(a.CareSeekingMultiplier),
		MortalityMultiplier:   one(a.MortalityMultiplier),
		CostMultiplier:        one(a.CostMultiplier),
	}
}

// CountryProfile adjusts baseline parameters for a country and setting.
type CountryProfile struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
	// LifeExpectancy overrides the health system value when positive.
	LifeExpectancy float64           `json:"lifeExpectancy" yaml:"lifeExpectancy"`
	Urban          SettingAdjustment `json:"urban" yaml:"urban"`
	Rural          SettingAdjustment `json:"rural" yaml:"rural"`
}

// Adjustment returns the normalized adjustment for a setting. An empty
// setting gets the identity adjustment.
func (c *CountryProfile) Adjustment(s Setting) SettingAdjustment {
	if c == nil {
		return SettingAdjustment{}.Normalized()
	}
	switch s {
	case SettingUrban:
		return c.Urban.Normalized()
	case SettingRural:
		return c.Rural.Normalized()
	default:
		return SettingAdjustment{}.Normalized()
	}
}

// GenericCountry is used when no country profile is selected or found.
func GenericCountry() *CountryProfile {
	return &CountryProfile{ID: GenericID, Name: "Generic"}
}

// InterventionDefinition is the catalog entry of one AI tool.
type InterventionDefinition struct {
	ID          model.AIIntervention `json:"id" yaml:"id"`
	Name        string               `json:"name" yaml:"name"`
	Description string               `json:"description" yaml:"description"`
	Effects     []model.Effect       `json:"effects" yaml:"effects"`
	// FixedCost is charged once per run; VariableCost per episode.
	FixedCost    float64 `json:"fixedCost" yaml:"fixedCost"`
	VariableCost float64 `json:"variableCost" yaml:"variableCost"`
}

// Validate checks the intervention and each of its effects.
func (d *InterventionDefinition) Validate() error {
	if d == nil {
		return fmt.Errorf("%w: intervention is required", ErrInvalidEntry)
	}
	if _, err := model.ParseIntervention(string(d.ID)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	for _, e := range d.Effects {
		if _, err := model.ParseParam(string(e.Param)); err != nil {
			return fmt.Errorf("%w: intervention %q: %v", ErrInvalidEntry, d.ID, err)
		}
		if e.Operation != model.OpAdditive && e.Operation != model.OpMultiplicative {
			return fmt.Errorf("%w: intervention %q: unsupported operation %q", ErrInvalidEntry, d.ID, e.Operation)
		}
	}
	return nil
}

// Catalog is the on-disk document shape.
type Catalog struct {
	Diseases      []DiseaseProfile         `json:"diseases" yaml:"diseases"`
	HealthSystems []HealthSystem           `json:"healthSystems" yaml:"healthSystems"`
	Countries     []CountryProfile         `json:"countries" yaml:"countries"`
	Interventions []InterventionDefinition `json:"interventions" yaml:"interventions"`
}

func fillOnes(v []float64, n int) []float64 {
	if len(v) != 0 {
		return v
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = 1
	}
	return out
}
