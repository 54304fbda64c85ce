// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"strings"
)

// Severity ranks how serious an unmet expectation or anomaly is.
type Severity int

const (
	SeverityLow Severity = iota + 1
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

// Weight is the numeric weight used by coverage scoring.
func (s Severity) Weight() float64 {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 5
	}
	return 0
}

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	}
	return fmt.Sprintf("Severity(%d)", int(s))
}

// MarshalText encodes the severity by name so JSON and YAML output stay readable.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a severity name.
func (s *Severity) UnmarshalText(b []byte) error {
	switch strings.ToUpper(string(b)) {
	case "LOW":
		*s = SeverityLow
	case "MEDIUM":
		*s = SeverityMedium
	case "HIGH":
		*s = SeverityHigh
	case "CRITICAL":
		*s = SeverityCritical
	default:
		return fmt.Errorf("unknown severity %q", string(b))
	}
	return nil
}

// Axiom is the meta-axiom category an expectation or anomaly belongs to.
// Perspective profiles weight these categories.
type Axiom string

const (
	AxiomLanguage    Axiom = "language"
	AxiomInstitution Axiom = "institution"
	AxiomTheory      Axiom = "theory"
	AxiomSchool      Axiom = "school"
	AxiomDiscipline  Axiom = "discipline"
	AxiomPublication Axiom = "publication"
	AxiomTemporal    Axiom = "temporal"
)

// Axioms lists every category in a stable order.
var Axioms = []Axiom{
	AxiomLanguage, AxiomInstitution, AxiomTheory, AxiomSchool,
	AxiomDiscipline, AxiomPublication, AxiomTemporal,
}

// GapType names the kind of knowledge gap.
type GapType string

const (
	GapLinguistic         GapType = "LINGUISTIC"
	GapInstitutional      GapType = "INSTITUTIONAL"
	GapVoice              GapType = "VOICE"
	GapSourceType         GapType = "SOURCE_TYPE"
	GapEntityUnresearched GapType = "ENTITY_UNRESEARCHED"
	GapTheoryUnsourced    GapType = "THEORY_UNSOURCED"
	GapTemporal           GapType = "TEMPORAL"
	GapDiscipline         GapType = "DISCIPLINE"
	GapSchool             GapType = "SCHOOL_GAP"
	GapCitationIsland     GapType = "CITATION_ISLAND"
	GapFracture           GapType = "FRACTURE_LINE"
	GapNoFindings         GapType = "NO_FINDINGS"
)

// Axiom returns the meta-axiom category a gap type belongs to.
func (g GapType) Axiom() Axiom {
	switch g {
	case GapLinguistic, GapNoFindings:
		return AxiomLanguage
	case GapInstitutional:
		return AxiomInstitution
	case GapVoice, GapTheoryUnsourced, GapFracture:
		return AxiomTheory
	case GapSchool, GapCitationIsland, GapEntityUnresearched:
		return AxiomSchool
	case GapDiscipline:
		return AxiomDiscipline
	case GapSourceType:
		return AxiomPublication
	case GapTemporal:
		return AxiomTemporal
	}
	return ""
}

// Expectation is a claim that some kind of knowledge should exist.
// Expectations are rebuilt every cycle.
type Expectation struct {
	Description string   `json:"description" yaml:"description"`
	Gap         GapType  `json:"gap_type" yaml:"gap_type"`
	Axiom       Axiom    `json:"axiom" yaml:"axiom"`
	Severity    Severity `json:"severity_if_unmet" yaml:"severity_if_unmet"`
	// Subject is the language code, theory, entity or institution the
	// expectation is about; satisfiers match on it.
	Subject string `json:"subject,omitempty" yaml:"subject,omitempty"`
	Met      bool   `json:"met" yaml:"met"`
	Evidence string `json:"evidence,omitempty" yaml:"evidence,omitempty"`
	Cycle    int    `json:"derived_in_cycle" yaml:"derived_in_cycle"`
}

// Satisfy marks the expectation met. Only the first call records evidence.
func (e *Expectation) Satisfy(evidence string) {
	if e.Met {
		return
	}
	e.Met = true
	e.Evidence = evidence
}

// Anomaly is a detected gap.
type Anomaly struct {
	Description      string   `json:"description" yaml:"description"`
	Gap              GapType  `json:"gap_type" yaml:"gap_type"`
	Severity         Severity `json:"severity" yaml:"severity"`
	Recommendation   string   `json:"recommendation,omitempty" yaml:"recommendation,omitempty"`
	SuggestedQueries []string `json:"suggested_queries,omitempty" yaml:"suggested_queries,omitempty"`
	// Subject is the entity, language or theory the anomaly is about.
	Subject string `json:"subject,omitempty" yaml:"subject,omitempty"`
	Cycle   int    `json:"cycle" yaml:"cycle"`
}

// AnomalyKey is the identity of an anomaly: gap type plus normalized description.
type AnomalyKey struct {
	Gap         GapType
	Description string
}

// Key returns the identity of the anomaly.
func (a Anomaly) Key() AnomalyKey {
	return AnomalyKey{Gap: a.Gap, Description: normalizeText(a.Description)}
}

// DedupAnomalies drops anomalies whose identity already appeared, keeping the
// first occurrence and the highest severity seen for it.
func DedupAnomalies(in []Anomaly) []Anomaly {
	idx := make(map[AnomalyKey]int, len(in))
	out := make([]Anomaly, 0, len(in))
	for _, a := range in {
		k := a.Key()
		if i, ok := idx[k]; ok {
			if a.Severity > out[i].Severity {
				out[i].Severity = a.Severity
			}
			continue
		}
		idx[k] = len(out)
		out = append(out, a)
	}
	return out
}

// SearchQuery is a query the engine wants executed.
type SearchQuery struct {
	Text      string   `json:"query" yaml:"query"`
	Language  string   `json:"language" yaml:"language"`
	Rationale string   `json:"rationale" yaml:"rationale"`
	Priority  Severity `json:"priority" yaml:"priority"`
	Gap       GapType  `json:"target_gap" yaml:"target_gap"`
	// Target names the entity the query searches for directly, if any.
	Target string `json:"target,omitempty" yaml:"target,omitempty"`
	// Localized is set when the text came from a query localizer.
	Localized bool `json:"localized,omitempty" yaml:"localized,omitempty"`
}

// DedupKey is the text identity used to drop duplicate queries in a batch.
func (q SearchQuery) DedupKey() string {
	return normalizeText(q.Text)
}
