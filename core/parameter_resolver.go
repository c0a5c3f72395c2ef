package core

import (
	"context"
	"fmt"
	"math"

	"github.com/signalsfoundry/carecascade-simulator/internal/logging"
	"github.com/signalsfoundry/carecascade-simulator/kb"
	"github.com/signalsfoundry/carecascade-simulator/model"
)

// ResolveInput carries every source merged into ResolvedParameters.
type ResolveInput struct {
	Disease      *kb.DiseaseProfile
	HealthSystem *kb.HealthSystem
	// Country may be nil, meaning no country adjustment.
	Country    *kb.CountryProfile
	Setting    kb.Setting
	Population float64

	Congestion  *float64
	Comorbidity *Comorbidity

	AI model.AIInterventionSet
	// Interventions are the catalog definitions of the enabled interventions,
	// applied in slice order.
	Interventions []kb.InterventionDefinition
	Magnitudes    model.Magnitudes
}

// ResolveParameters merges disease base rates, country and setting
// adjustments, health-system multipliers, comorbidity and AI effects, then
// validates the result. It is pure: the same input always yields the same
// parameters and warnings.
func ResolveParameters(in ResolveInput) (*model.ResolvedParameters, error) {
	if in.Disease == nil {
		return nil, fmt.Errorf("%w: no disease profile", kb.ErrDiseaseNotFound)
	}
	if in.HealthSystem == nil {
		return nil, fmt.Errorf("%w: no health system preset", kb.ErrHealthSystemNotFound)
	}
	if err := in.Disease.Validate(); err != nil {
		return nil, err
	}
	hs := *in.HealthSystem
	hs.Normalize()
	if err := hs.Validate(); err != nil {
		return nil, err
	}
	if err := validateMagnitudes(in.Magnitudes); err != nil {
		return nil, err
	}

	rp := baseParameters(in.Disease, in.Population)
	applyCountry(rp, in.Country, in.Setting)
	applyHealthSystem(rp, &hs, in.Country, in.Setting)

	if in.Congestion != nil {
		rp.Congestion.Congestion = *in.Congestion
	}

	if in.Comorbidity != nil {
		if err := in.Comorbidity.validate(); err != nil {
			return nil, err
		}
		applyComorbidity(rp, *in.Comorbidity)
	}

	rp.ActiveAI = in.AI
	if err := applyInterventions(rp, in.Interventions, in.Magnitudes); err != nil {
		return nil, err
	}

	if err := validateParameters(rp); err != nil {
		return nil, err
	}
	return rp, nil
}

func baseParameters(d *kb.DiseaseProfile, population float64) *model.ResolvedParameters {
	rp := &model.ResolvedParameters{
		Disease:            d.ID,
		Population:         population,
		DisabilityWeight:   d.DisabilityWeight,
		MeanAgeOfInfection: d.MeanAgeOfInfection,
	}
	r := &rp.Rates
	r.MuU, r.MuI = d.MuU, d.MuI
	r.DeltaU, r.DeltaI = d.DeltaU, d.DeltaI
	copy(r.Mu[:], d.Mu)
	copy(r.Delta[:], d.Delta)
	copy(r.Rho[:], d.Rho)
	r.Phi0 = d.Phi0
	r.InformalCareRatio = d.InformalCareRatio
	r.SigmaI = d.SigmaI
	r.Lambda = d.Lambda
	return rp
}

func applyCountry(rp *model.ResolvedParameters, c *kb.CountryProfile, s kb.Setting) {
	adj := c.Adjustment(s)
	r := &rp.Rates
	r.Lambda *= adj.IncidenceMultiplier
	r.Phi0 *= adj.CareSeekingMultiplier
	r.DeltaU *= adj.MortalityMultiplier
	r.DeltaI *= adj.MortalityMultiplier
	for k := range r.Delta {
		r.Delta[k] *= adj.MortalityMultiplier
	}
}

func applyHealthSystem(rp *model.ResolvedParameters, hs *kb.HealthSystem, c *kb.CountryProfile, s kb.Setting) {
	rp.HealthSystem = hs.ID
	r := &rp.Rates
	for k := range r.Mu {
		r.Mu[k] *= hs.MuMultiplier[k]
		r.Delta[k] *= hs.DeltaMultiplier[k]
	}
	for k := range r.Rho {
		r.Rho[k] *= hs.RhoMultiplier[k]
	}
	r.MuI *= hs.InformalMuMultiplier
	r.DeltaI *= hs.InformalDeltaMultiplier

	costMultiplier := c.Adjustment(s).CostMultiplier
	rp.Costs.Informal = hs.InformalPerDiem * costMultiplier
	for k := range rp.Costs.PerDiem {
		rp.Costs.PerDiem[k] = hs.PerDiem[k] * costMultiplier
	}

	rp.RegionalLifeExpectancy = hs.LifeExpectancy
	if c != nil && c.LifeExpectancy > 0 {
		rp.RegionalLifeExpectancy = c.LifeExpectancy
	}

	rp.Congestion = model.CongestionParams{
		Congestion:                    hs.Congestion,
		CompetitionSensitivity:        hs.CompetitionSensitivity,
		QueueAbandonmentRate:          hs.QueueAbandonmentRate,
		QueueBypassRate:               hs.QueueBypassRate,
		QueueClearanceRate:            hs.QueueClearanceRate,
		CongestionMortalityMultiplier: hs.CongestionMortalityMultiplier,
	}
}

func applyComorbidity(rp *model.ResolvedParameters, c Comorbidity) {
	r := &rp.Rates
	r.DeltaU *= c.MortalityMultiplier
	r.DeltaI *= c.MortalityMultiplier
	r.MuU *= c.ResolutionFactor
	r.MuI *= c.ResolutionFactor
	for k := range r.Mu {
		r.Delta[k] *= c.MortalityMultiplier
		r.Mu[k] *= c.ResolutionFactor
	}
	r.Phi0 *= c.CareSeekingBoost
	r.SigmaI *= c.CareSeekingBoost
}

func applyInterventions(rp *model.ResolvedParameters, defs []kb.InterventionDefinition, mags model.Magnitudes) error {
	used := make(map[model.EffectKey]bool, len(mags))
	for _, def := range defs {
		if !rp.ActiveAI.Enabled(def.ID) {
			continue
		}
		for _, e := range def.Effects {
			key := model.EffectKey{Intervention: def.ID, Param: e.Param}
			used[key] = true
			field, err := rp.Field(e.Param)
			if err != nil {
				return fmt.Errorf("intervention %s: %w", def.ID, err)
			}
			switch e.Operation {
			case model.OpAdditive:
				*field += e.Scaled(mags.Get(key))
			case model.OpMultiplicative:
				*field *= e.Scaled(mags.Get(key))
			default:
				return fmt.Errorf("%w: intervention %s has operation %q", kb.ErrInvalidEntry, def.ID, e.Operation)
			}
		}
		rp.Costs.AIFixedCost += def.FixedCost
		rp.Costs.AIVariableCost += def.VariableCost
	}

	for _, key := range mags.Keys() {
		if !used[key] && rp.ActiveAI.Enabled(key.Intervention) {
			rp.Warnings = append(rp.Warnings,
				fmt.Sprintf("magnitude %s does not match any effect of %s and was ignored", key, key.Intervention))
		}
	}
	return nil
}

type outflowGroup struct {
	name   string
	params []model.Param
}

var outflowGroups = []outflowGroup{
	{"untreated", []model.Param{model.ParamMuU, model.ParamDeltaU}},
	{"informal", []model.Param{model.ParamMuI, model.ParamDeltaI, model.ParamSigmaI}},
	{"L0", []model.Param{model.ParamMu0, model.ParamDelta0, model.ParamRho0}},
	{"L1", []model.Param{model.ParamMu1, model.ParamDelta1, model.ParamRho1}},
	{"L2", []model.Param{model.ParamMu2, model.ParamDelta2, model.ParamRho2}},
	{"L3", []model.Param{model.ParamMu3, model.ParamDelta3}},
	{"queue", []model.Param{model.ParamQueueAbandonmentRate, model.ParamQueueBypassRate, model.ParamQueueClearanceRate}},
}

// namedValue is a scalar checked in a fixed order so errors are stable.
type namedValue struct {
	name  string
	value float64
}

func validateParameters(rp *model.ResolvedParameters) error {
	for _, p := range model.AllParams {
		field, _ := rp.Field(p)
		v := *field
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s = %v", ErrInvalidParameter, p, v)
		}
		if v < 0 {
			return fmt.Errorf("%w: %s = %v", ErrNegativeParameter, p, v)
		}
		if p.IsProbability() && v > 1 {
			rp.Warnings = append(rp.Warnings, fmt.Sprintf("%s = %.4g exceeds 1, clamped", p, v))
			*field = 1
		}
	}

	for _, g := range outflowGroups {
		sum := 0.0
		for _, p := range g.params {
			sum += rp.Value(p)
		}
		if sum <= 1 {
			continue
		}
		rp.Warnings = append(rp.Warnings, fmt.Sprintf("%s outflows sum to %.4g, scaled to 1", g.name, sum))
		for _, p := range g.params {
			field, _ := rp.Field(p)
			*field /= sum
		}
	}

	others := []namedValue{
		{"population", rp.Population},
		{"disabilityWeight", rp.DisabilityWeight},
		{"meanAgeOfInfection", rp.MeanAgeOfInfection},
		{"regionalLifeExpectancy", rp.RegionalLifeExpectancy},
		{"informalPerDiem", rp.Costs.Informal},
		{"aiFixedCost", rp.Costs.AIFixedCost},
		{"aiVariableCost", rp.Costs.AIVariableCost},
	}
	for k, c := range rp.Costs.PerDiem {
		others = append(others, namedValue{fmt.Sprintf("perDiem%d", k), c})
	}
	for _, o := range others {
		if math.IsNaN(o.value) || math.IsInf(o.value, 0) {
			return fmt.Errorf("%w: %s = %v", ErrInvalidParameter, o.name, o.value)
		}
		if o.value < 0 {
			return fmt.Errorf("%w: %s = %v", ErrNegativeParameter, o.name, o.value)
		}
	}

	if err := ValidateCongestion(rp.Congestion.Congestion); err != nil {
		return err
	}
	if rp.Population <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidPopulation, rp.Population)
	}
	return nil
}

// ParameterResolver resolves scenario configs against a knowledge base.
type ParameterResolver struct {
	store *kb.KnowledgeBase
	log   logging.Logger
}

// NewParameterResolver builds a resolver; a nil logger discards warnings.
func NewParameterResolver(store *kb.KnowledgeBase, log logging.Logger) *ParameterResolver {
	if log == nil {
		log = logging.Noop()
	}
	return &ParameterResolver{store: store, log: log}
}

// Resolve looks up every catalog entry the config names and merges them.
// Unknown countries fall back to the generic profile with a warning.
func (r *ParameterResolver) Resolve(ctx context.Context, cfg ScenarioConfig) (*model.ResolvedParameters, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	disease, err := r.store.GetDisease(cfg.Disease)
	if err != nil {
		return nil, err
	}
	hs, err := r.store.GetHealthSystem(cfg.HealthSystem)
	if err != nil {
		return nil, err
	}

	var notes []string
	country, fellBack := r.store.CountryOrGeneric(cfg.Country)
	if fellBack {
		notes = append(notes, fmt.Sprintf("country %q not in catalog, using generic profile", cfg.Country))
	}

	var defs []kb.InterventionDefinition
	for _, iv := range cfg.AI.Active() {
		def, err := r.store.GetIntervention(iv)
		if err != nil {
			return nil, err
		}
		defs = append(defs, *def)
	}

	in := ResolveInput{
		Disease:       disease,
		HealthSystem:  hs,
		Country:       country,
		Setting:       cfg.Setting,
		Population:    cfg.Population,
		Congestion:    cfg.Congestion,
		AI:            cfg.AI,
		Interventions: defs,
		Magnitudes:    cfg.Magnitudes,
	}
	if cfg.MultiCondition {
		c := DefaultComorbidity()
		if cfg.Comorbidity != nil {
			c = *cfg.Comorbidity
		}
		in.Comorbidity = &c
	}

	rp, err := ResolveParameters(in)
	if err != nil {
		return nil, err
	}
	rp.Warnings = append(notes, rp.Warnings...)

	log := logging.FromContextOr(ctx, r.log)
	for _, w := range rp.Warnings {
		log.Warn(ctx, "parameter resolution warning",
			logging.String("disease", rp.Disease),
			logging.String("warning", w),
		)
	}
	return rp, nil
}
