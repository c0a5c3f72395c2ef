package model

import (
	"fmt"
	"strings"
)

// Param names a single field of ResolvedParameters that AI effects and
// magnitude overrides can address.
type Param string

const (
	ParamMuU    Param = "muU"
	ParamMuI    Param = "muI"
	ParamMu0    Param = "mu0"
	ParamMu1    Param = "mu1"
	ParamMu2    Param = "mu2"
	ParamMu3    Param = "mu3"
	ParamDeltaU Param = "deltaU"
	ParamDeltaI Param = "deltaI"
	ParamDelta0 Param = "delta0"
	ParamDelta1 Param = "delta1"
	ParamDelta2 Param = "delta2"
	ParamDelta3 Param = "delta3"
	ParamRho0   Param = "rho0"
	ParamRho1   Param = "rho1"
	ParamRho2   Param = "rho2"

	ParamPhi0                  Param = "phi0"
	ParamSigmaI                Param = "sigmaI"
	ParamInformalCareRatio     Param = "informalCareRatio"
	ParamLambda                Param = "lambda"
	ParamDirectRoutingFraction Param = "directRoutingFraction"

	ParamCompetitionSensitivity        Param = "competitionSensitivity"
	ParamQueueAbandonmentRate          Param = "queueAbandonmentRate"
	ParamQueueBypassRate               Param = "queueBypassRate"
	ParamQueueClearanceRate            Param = "queueClearanceRate"
	ParamCongestionMortalityMultiplier Param = "congestionMortalityMultiplier"
	ParamQueuePreventionRate           Param = "queuePreventionRate"
	ParamThroughputBoost0              Param = "aiThroughputBoost0"
	ParamThroughputBoost1              Param = "aiThroughputBoost1"
	ParamThroughputBoost2              Param = "aiThroughputBoost2"
	ParamThroughputBoost3              Param = "aiThroughputBoost3"
)

// AllParams lists every addressable parameter.
var AllParams = []Param{
	ParamMuU, ParamMuI, ParamMu0, ParamMu1, ParamMu2, ParamMu3,
	ParamDeltaU, ParamDeltaI, ParamDelta0, ParamDelta1, ParamDelta2, ParamDelta3,
	ParamRho0, ParamRho1, ParamRho2,
	ParamPhi0, ParamSigmaI, ParamInformalCareRatio, ParamLambda, ParamDirectRoutingFraction,
	ParamCompetitionSensitivity, ParamQueueAbandonmentRate, ParamQueueBypassRate,
	ParamQueueClearanceRate, ParamCongestionMortalityMultiplier, ParamQueuePreventionRate,
	ParamThroughputBoost0, ParamThroughputBoost1, ParamThroughputBoost2, ParamThroughputBoost3,
}

// ParseParam maps a name onto a known parameter, case-insensitively.
func ParseParam(s string) (Param, error) {
	v := strings.TrimSpace(s)
	for _, p := range AllParams {
		if strings.EqualFold(string(p), v) {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownParameter, s)
}

// IsProbability reports whether the parameter must lie in [0,1].
// Rates like lambda, multipliers and throughput boosts only need to be
// non-negative.
func (p Param) IsProbability() bool {
	switch p {
	case ParamLambda, ParamCompetitionSensitivity, ParamCongestionMortalityMultiplier,
		ParamThroughputBoost0, ParamThroughputBoost1, ParamThroughputBoost2, ParamThroughputBoost3:
		return false
	default:
		return true
	}
}

// MuParam returns the resolution parameter of level k.
func MuParam(k Level) Param { return []Param{ParamMu0, ParamMu1, ParamMu2, ParamMu3}[k] }

// DeltaParam returns the death parameter of level k.
func DeltaParam(k Level) Param { return []Param{ParamDelta0, ParamDelta1, ParamDelta2, ParamDelta3}[k] }

// Rates are the weekly transition probabilities of the care cascade.
type Rates struct {
	MuU    float64            `json:"muU"`
	MuI    float64            `json:"muI"`
	Mu     [NumLevels]float64 `json:"mu"`
	DeltaU float64            `json:"deltaU"`
	DeltaI float64            `json:"deltaI"`
	Delta  [NumLevels]float64 `json:"delta"`
	// Rho[k] is the referral probability from level k to k+1.
	Rho [NumLevels - 1]float64 `json:"rho"`

	// Phi0 is the share of new cases that go straight to formal care.
	Phi0 float64 `json:"phi0"`
	// InformalCareRatio is the share of the remainder that stays untreated.
	InformalCareRatio float64 `json:"informalCareRatio"`
	SigmaI            float64 `json:"sigmaI"`
	// Lambda is the annual incidence per head of population.
	Lambda float64 `json:"lambda"`
	// DirectRoutingFraction of formal entrants skip L0 under congestion.
	DirectRoutingFraction float64 `json:"directRoutingFraction"`
}

// Costs are per-patient-day costs per setting plus AI programme costs.
type Costs struct {
	Informal float64            `json:"informal"`
	PerDiem  [NumLevels]float64 `json:"perDiem"`

	AIFixedCost    float64 `json:"aiFixedCost"`
	AIVariableCost float64 `json:"aiVariableCost"`
}

// CongestionParams drive the capacity model and queue dynamics.
type CongestionParams struct {
	Congestion                    float64            `json:"congestion"`
	CompetitionSensitivity        float64            `json:"competitionSensitivity"`
	QueueAbandonmentRate          float64            `json:"queueAbandonmentRate"`
	QueueBypassRate               float64            `json:"queueBypassRate"`
	QueueClearanceRate            float64            `json:"queueClearanceRate"`
	CongestionMortalityMultiplier float64            `json:"congestionMortalityMultiplier"`
	QueuePreventionRate           float64            `json:"queuePreventionRate"`
	ThroughputBoost               [NumLevels]float64 `json:"aiThroughputBoost"`
}

// ResolvedParameters is the fully merged parameter set consumed by the
// weekly stepper. It is immutable once returned by the resolver.
type ResolvedParameters struct {
	Disease      string `json:"disease"`
	HealthSystem string `json:"healthSystem"`

	Rates      Rates            `json:"rates"`
	Costs      Costs            `json:"costs"`
	Congestion CongestionParams `json:"congestion"`

	Population             float64 `json:"population"`
	DisabilityWeight       float64 `json:"disabilityWeight"`
	MeanAgeOfInfection     float64 `json:"meanAgeOfInfection"`
	RegionalLifeExpectancy float64 `json:"regionalLifeExpectancy"`

	ActiveAI AIInterventionSet `json:"activeAI"`
	Warnings []string          `json:"warnings,omitempty"`
}

// Field returns a pointer to the float addressed by p.
func (rp *ResolvedParameters) Field(p Param) (*float64, error) {
	r := &rp.Rates
	c := &rp.Congestion
	switch p {
	case ParamMuU:
		return &r.MuU, nil
	case ParamMuI:
		return &r.MuI, nil
	case ParamMu0:
		return &r.Mu[0], nil
	case ParamMu1:
		return &r.Mu[1], nil
	case ParamMu2:
		return &r.Mu[2], nil
	case ParamMu3:
		return &r.Mu[3], nil
	case ParamDeltaU:
		return &r.DeltaU, nil
	case ParamDeltaI:
		return &r.DeltaI, nil
	case ParamDelta0:
		return &r.Delta[0], nil
	case ParamDelta1:
		return &r.Delta[1], nil
	case ParamDelta2:
		return &r.Delta[2], nil
	case ParamDelta3:
		return &r.Delta[3], nil
	case ParamRho0:
		return &r.Rho[0], nil
	case ParamRho1:
		return &r.Rho[1], nil
	case ParamRho2:
		return &r.Rho[2], nil
	case ParamPhi0:
		return &r.Phi0, nil
	case ParamSigmaI:
		return &r.SigmaI, nil
	case ParamInformalCareRatio:
		return &r.InformalCareRatio, nil
	case ParamLambda:
		return &r.Lambda, nil
	case ParamDirectRoutingFraction:
		return &r.DirectRoutingFraction, nil
	case ParamCompetitionSensitivity:
		return &c.CompetitionSensitivity, nil
	case ParamQueueAbandonmentRate:
		return &c.QueueAbandonmentRate, nil
	case ParamQueueBypassRate:
		return &c.QueueBypassRate, nil
	case ParamQueueClearanceRate:
		return &c.QueueClearanceRate, nil
	case ParamCongestionMortalityMultiplier:
		return &c.CongestionMortalityMultiplier, nil
	case ParamQueuePreventionRate:
		return &c.QueuePreventionRate, nil
	case ParamThroughputBoost0:
		return &c.ThroughputBoost[0], nil
	case ParamThroughputBoost1:
		return &c.ThroughputBoost[1], nil
	case ParamThroughputBoost2:
		return &c.ThroughputBoost[2], nil
	case ParamThroughputBoost3:
		return &c.ThroughputBoost[3], nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownParameter, p)
	}
}

// Value returns the value addressed by p, or 0 for unknown parameters.
func (rp *ResolvedParameters) Value(p Param) float64 {
	f, err := rp.Field(p)
	if err != nil {
		return 0
	}
	return *f
}

// Clone returns a deep copy.
func (rp *ResolvedParameters) Clone() *ResolvedParameters {
	if rp == nil {
		return nil
	}
	out := *rp
	if rp.Warnings != nil {
		out.Warnings = append([]string(nil), rp.Warnings...)
	}
	return &out
}
