package model

import (
	"fmt"
	"sort"
	"strings"
)

// AIIntervention names one of the six AI tools that can be switched on.
type AIIntervention string

const (
	TriageAI           AIIntervention = "triageAI"
	CHWAI              AIIntervention = "chwAI"
	DiagnosticAI       AIIntervention = "diagnosticAI"
	BedManagementAI    AIIntervention = "bedManagementAI"
	HospitalDecisionAI AIIntervention = "hospitalDecisionAI"
	SelfCareAI         AIIntervention = "selfCareAI"
)

// AllInterventions lists the interventions in catalog order.
var AllInterventions = []AIIntervention{
	TriageAI,
	CHWAI,
	DiagnosticAI,
	BedManagementAI,
	HospitalDecisionAI,
	SelfCareAI,
}

// ParseIntervention maps a name onto a known intervention, case-insensitively.
func ParseIntervention(s string) (AIIntervention, error) {
	v := strings.TrimSpace(s)
	for _, iv := range AllInterventions {
		if strings.EqualFold(string(iv), v) {
			return iv, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownIntervention, s)
}

// AIInterventionSet holds the six independent toggles.
type AIInterventionSet struct {
	TriageAI           bool `json:"triageAI" yaml:"triageAI"`
	CHWAI              bool `json:"chwAI" yaml:"chwAI"`
	DiagnosticAI       bool `json:"diagnosticAI" yaml:"diagnosticAI"`
	BedManagementAI    bool `json:"bedManagementAI" yaml:"bedManagementAI"`
	HospitalDecisionAI bool `json:"hospitalDecisionAI" yaml:"hospitalDecisionAI"`
	SelfCareAI         bool `json:"selfCareAI" yaml:"selfCareAI"`
}

// Enabled reports whether a given intervention is switched on.
func (s AIInterventionSet) Enabled(iv AIIntervention) bool {
	switch iv {
	case TriageAI:
		return s.TriageAI
	case CHWAI:
		return s.CHWAI
	case DiagnosticAI:
		return s.DiagnosticAI
	case BedManagementAI:
		return s.BedManagementAI
	case HospitalDecisionAI:
		return s.HospitalDecisionAI
	case SelfCareAI:
		return s.SelfCareAI
	default:
		return false
	}
}

// With returns a copy of the set with iv toggled to on.
func (s AIInterventionSet) With(iv AIIntervention, on bool) AIInterventionSet {
	switch iv {
	case TriageAI:
		s.TriageAI = on
	case CHWAI:
		s.CHWAI = on
	case DiagnosticAI:
		s.DiagnosticAI = on
	case BedManagementAI:
		s.BedManagementAI = on
	case HospitalDecisionAI:
		s.HospitalDecisionAI = on
	case SelfCareAI:
		s.SelfCareAI = on
	}
	return s
}

// Active returns the enabled interventions in catalog order.
func (s AIInterventionSet) Active() []AIIntervention {
	var out []AIIntervention
	for _, iv := range AllInterventions {
		if s.Enabled(iv) {
			out = append(out, iv)
		}
	}
	return out
}

// Any reports whether at least one intervention is on.
func (s AIInterventionSet) Any() bool {
	return len(s.Active()) > 0
}

// Operation says how an effect is applied to its parameter.
type Operation string

const (
	OpAdditive       Operation = "additive"
	OpMultiplicative Operation = "multiplicative"
)

// Effect is one (parameter, operation, base magnitude) entry of an
// intervention's effect list.
type Effect struct {
	Param     Param     `json:"param" yaml:"param"`
	Operation Operation `json:"operation" yaml:"operation"`
	Base      float64   `json:"base" yaml:"base"`
}

// Scaled returns the effective value of the effect for a user magnitude m.
// Additive effects scale linearly. Multiplicative effects interpolate
// between the identity (m=0) and the base (m=1).
func (e Effect) Scaled(m float64) float64 {
	switch e.Operation {
	case OpAdditive:
		return e.Base * m
	default:
		switch {
		case e.Base < 1:
			return 1 - (1-e.Base)*m
		case e.Base > 1:
			return 1 + (e.Base-1)*m
		default:
			return 1
		}
	}
}

// EffectKey addresses the magnitude of one effect of one intervention.
type EffectKey struct {
	Intervention AIIntervention
	Param        Param
}

func (k EffectKey) String() string {
	return string(k.Intervention) + "_" + string(k.Param)
}

// ParseEffectKey accepts the legacy "<intervention>_<param>" form.
func ParseEffectKey(s string) (EffectKey, error) {
	idx := strings.Index(s, "_")
	if idx <= 0 || idx == len(s)-1 {
		return EffectKey{}, fmt.Errorf("%w: malformed effect key %q", ErrUnknownParameter, s)
	}
	iv, err := ParseIntervention(s[:idx])
	if err != nil {
		return EffectKey{}, err
	}
	p, err := ParseParam(s[idx+1:])
	if err != nil {
		return EffectKey{}, err
	}
	return EffectKey{Intervention: iv, Param: p}, nil
}

// MinMagnitude and MaxMagnitude bound the user-adjustable effect scale.
const (
	MinMagnitude = 0.0
	MaxMagnitude = 2.0
)

// Magnitudes holds user overrides of effect magnitudes. Missing keys mean 1.
type Magnitudes map[EffectKey]float64

// Get returns the magnitude for k, defaulting to 1.
func (m Magnitudes) Get(k EffectKey) float64 {
	if v, ok := m[k]; ok {
		return v
	}
	return 1
}

// Clone returns an independent copy.
func (m Magnitudes) Clone() Magnitudes {
	out := make(Magnitudes, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Keys returns the keys sorted by their string form.
func (m Magnitudes) Keys() []EffectKey {
	keys := make([]EffectKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}
