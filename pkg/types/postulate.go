// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "math"

// DefaultCyclesPerMonth converts cycle distance into months for decay.
const DefaultCyclesPerMonth = 2.0

// Action buckets a postulate's confidence into a handling label.
type Action string

const (
	ActionVerify       Action = "VERIFY"
	ActionStandard     Action = "STANDARD"
	ActionReliable     Action = "RELIABLE"
	ActionConsolidated Action = "CONSOLIDATED"
)

// ActionFor returns the action label for a confidence value.
func ActionFor(confidence float64) Action {
	switch {
	case confidence < 0.2:
		return ActionVerify
	case confidence < 0.6:
		return ActionStandard
	case confidence < 0.9:
		return ActionReliable
	default:
		return ActionConsolidated
	}
}

// WeightedPostulate is a belief backed by a number of independent sources.
type WeightedPostulate struct {
	Key                string     `json:"key" yaml:"key"`
	Name               string     `json:"name" yaml:"name"`
	Kind               EntityKind `json:"kind" yaml:"kind"`
	SourceCount        int        `json:"source_count" yaml:"source_count"`
	LanguageSpread     []string   `json:"language_spread" yaml:"language_spread"`
	Confidence         float64    `json:"confidence" yaml:"confidence"`
	LastConfirmedCycle int        `json:"last_confirmed_cycle" yaml:"last_confirmed_cycle"`
	DecayRate          float64    `json:"decay_rate" yaml:"decay_rate"`
}

// EffectiveConfidence applies monthly decay for the cycles elapsed since the
// postulate was last confirmed. cyclesPerMonth <= 0 uses DefaultCyclesPerMonth.
func (p WeightedPostulate) EffectiveConfidence(cycle int, cyclesPerMonth float64) float64 {
	if cycle <= p.LastConfirmedCycle || p.DecayRate <= 0 {
		return p.Confidence
	}
	if cyclesPerMonth <= 0 {
		cyclesPerMonth = DefaultCyclesPerMonth
	}
	months := float64(cycle-p.LastConfirmedCycle) / cyclesPerMonth
	return p.Confidence * math.Pow(1-p.DecayRate, months)
}

// Action returns the label for the effective confidence at cycle.
func (p WeightedPostulate) Action(cycle int, cyclesPerMonth float64) Action {
	return ActionFor(p.EffectiveConfidence(cycle, cyclesPerMonth))
}

// AbsenceReason explains why a query may have come back empty.
type AbsenceReason string

const (
	ReasonAccessBarrier    AbsenceReason = "access_barrier"
	ReasonWrongTerminology AbsenceReason = "wrong_terminology"
	ReasonGenuinelyAbsent  AbsenceReason = "genuinely_absent"
	ReasonWrongLanguage    AbsenceReason = "wrong_language"
)

// NegativePostulate records evidence of absence: a query that returned nothing.
// Reformulation is a suggested replacement query to run in
// ReformulationLanguage.
type NegativePostulate struct {
	Key                   string        `json:"key" yaml:"key"`
	Query                 string        `json:"query" yaml:"query"`
	Language              string        `json:"language" yaml:"language"`
	PossibleReason        AbsenceReason `json:"possible_reason" yaml:"possible_reason"`
	Reformulation         string        `json:"reformulation" yaml:"reformulation"`
	ReformulationLanguage string        `json:"reformulation_language" yaml:"reformulation_language"`
	Attempts              int           `json:"attempts" yaml:"attempts"`
	FirstCycle            int           `json:"first_cycle" yaml:"first_cycle"`
	LastCycle             int           `json:"last_cycle" yaml:"last_cycle"`
}
