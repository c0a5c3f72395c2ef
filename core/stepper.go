package core

import (
	"github.com/signalsfoundry/carecascade-simulator/model"
)

const (
	// directRoutingThreshold is the congestion above which self-care AI sends
	// part of formal demand past L0.
	directRoutingThreshold = 0.5
	// directRoutingPrimaryShare of directly routed patients go to L1, the rest to L2.
	directRoutingPrimaryShare = 0.6
)

// Flows breaks down what moved during one week.
type Flows struct {
	Week     int     `json:"week"`
	NewCases float64 `json:"newCases"`

	ToUntreated  float64 `json:"toUntreated"`
	ToInformal   float64 `json:"toInformal"`
	FormalEntry  float64 `json:"formalEntry"`
	DirectRouted float64 `json:"directRouted"`

	Desired     [model.NumLevels]float64 `json:"desired"`
	Admitted    [model.NumLevels]float64 `json:"admitted"`
	Queued      [model.NumLevels]float64 `json:"queued"`
	Cleared     [model.NumLevels]float64 `json:"cleared"`
	QueueDeaths [model.NumLevels]float64 `json:"queueDeaths"`
	Abandoned   [model.NumLevels]float64 `json:"abandoned"`
	Bypassed    [model.NumLevels]float64 `json:"bypassed"`
	Referred    [model.NumLevels - 1]float64 `json:"referred"`

	// Prevented shortfall was kept out of the queue by AI triage and resolved.
	Prevented float64 `json:"prevented"`
	// Dropped shortfall neither entered care nor queued.
	Dropped float64 `json:"dropped"`

	Resolved float64 `json:"resolved"`
	Deaths   float64 `json:"deaths"`

	CapacityMultiplier float64 `json:"capacityMultiplier"`
	QueueEntryRate     float64 `json:"queueEntryRate"`
}

// Step advances state by one week.
func Step(state model.CompartmentState, p *model.ResolvedParameters) model.CompartmentState {
	next, _ := StepWithFlows(state, p)
	return next
}

// StepWithFlows advances state by one week and reports the flows. Every
// outflow is computed from the start-of-week state, so queue clearance feeds
// the same week's level admissions in a single pass.
func StepWithFlows(state model.CompartmentState, p *model.ResolvedParameters) (model.CompartmentState, Flows) {
	r := &p.Rates
	cg := &p.Congestion
	f := Flows{Week: state.Week + 1}

	capacity := CapacityMultiplier(cg.Congestion, cg.CompetitionSensitivity)
	entryRate := QueueEntryRate(cg.Congestion, cg.CompetitionSensitivity)
	f.CapacityMultiplier, f.QueueEntryRate = capacity, entryRate

	// Incidence and initial split.
	f.NewCases = r.Lambda * p.Population / model.WeeksPerYear
	formal := r.Phi0 * f.NewCases
	rest := f.NewCases - formal
	f.ToUntreated = rest * r.InformalCareRatio
	f.ToInformal = rest - f.ToUntreated

	// Untreated and informal care.
	uResolved := state.U * r.MuU
	uDeaths := state.U * r.DeltaU
	iResolved := state.I * r.MuI
	iDeaths := state.I * r.DeltaI
	iToFormal := state.I * r.SigmaI

	// Formal entry routing.
	entrants := formal + iToFormal
	var toPrimary, toDistrict float64
	if p.ActiveAI.SelfCareAI && r.DirectRoutingFraction > 0 && cg.Congestion > directRoutingThreshold {
		f.DirectRouted = entrants * r.DirectRoutingFraction
		toPrimary = f.DirectRouted * directRoutingPrimaryShare
		toDistrict = f.DirectRouted - toPrimary
		entrants -= f.DirectRouted
	}
	f.FormalEntry = entrants

	// Per-level outflows.
	var resolved, deaths [model.NumLevels]float64
	for k := range model.NumLevels {
		resolved[k] = state.L[k] * r.Mu[k]
		deaths[k] = state.L[k] * r.Delta[k]
		if k < model.NumLevels-1 {
			f.Referred[k] = state.L[k] * r.Rho[k]
		}
	}

	f.Desired[0] = entrants
	f.Desired[1] = f.Referred[0] + toPrimary
	f.Desired[2] = f.Referred[1] + toDistrict
	f.Desired[3] = f.Referred[2]

	next := state
	next.Week = state.Week + 1
	next.NewCases = f.NewCases

	var abandoned, bypassed float64
	for k := range model.NumLevels {
		q := state.Q[k]
		qDeaths := q * r.Delta[k] * cg.CongestionMortalityMultiplier * cg.CompetitionSensitivity
		qAbandon := q * cg.QueueAbandonmentRate
		qBypass := q * cg.QueueBypassRate
		qClear := q * cg.QueueClearanceRate * capacity * (1 + cg.ThroughputBoost[k])
		if out := qDeaths + qAbandon + qBypass + qClear; out > q && out > 0 {
			scale := q / out
			qDeaths *= scale
			qAbandon *= scale
			qBypass *= scale
			qClear *= scale
		}
		f.QueueDeaths[k], f.Abandoned[k], f.Bypassed[k], f.Cleared[k] = qDeaths, qAbandon, qBypass, qClear

		admitted := f.Desired[k] * capacity
		if shortfall := f.Desired[k] - admitted; shortfall > 0 {
			entering := shortfall * entryRate
			prevented := entering * cg.QueuePreventionRate
			f.Queued[k] = entering - prevented
			f.Prevented += prevented
			f.Dropped += shortfall - entering
		}
		f.Admitted[k] = admitted

		outflow := resolved[k] + deaths[k]
		if k < model.NumLevels-1 {
			outflow += f.Referred[k]
		}
		next.L[k] = nonNegative(state.L[k] - outflow + admitted + qClear)
		next.Q[k] = nonNegative(q + f.Queued[k] - qDeaths - qAbandon - qBypass - qClear)

		abandoned += qAbandon
		bypassed += qBypass
		f.Resolved += resolved[k]
		f.Deaths += deaths[k] + qDeaths
	}

	next.U = nonNegative(state.U - uResolved - uDeaths + f.ToUntreated + abandoned)
	next.I = nonNegative(state.I - iResolved - iDeaths - iToFormal + f.ToInformal + bypassed)

	f.Resolved += uResolved + iResolved + f.Prevented
	f.Deaths += uDeaths + iDeaths
	next.R = state.R + f.Resolved
	next.D = state.D + f.Deaths
	next.Unserved = state.Unserved + f.Dropped

	return next, f
}

// nonNegative absorbs floating-point residue below zero.
func nonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
