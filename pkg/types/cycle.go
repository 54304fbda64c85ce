// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// EngineState is the orchestrator's lifecycle state.
type EngineState string

const (
	StateSeeded          EngineState = "SEEDED"
	StateCycling         EngineState = "CYCLING"
	StateConverged       EngineState = "CONVERGED"
	StateBudgetExhausted EngineState = "BUDGET_EXHAUSTED"
	StateMaxCycles       EngineState = "MAX_CYCLES_REACHED"
)

// Terminal reports whether no further cycles may run from this state.
func (s EngineState) Terminal() bool {
	switch s {
	case StateConverged, StateBudgetExhausted, StateMaxCycles:
		return true
	}
	return false
}

// CycleSnapshot is the immutable record of all counters at the end of a cycle.
type CycleSnapshot struct {
	Cycle              int         `json:"cycle" yaml:"cycle"`
	State              EngineState `json:"state" yaml:"state"`
	Scholars           int         `json:"scholars" yaml:"scholars"`
	Theories           int         `json:"theories" yaml:"theories"`
	Institutions       int         `json:"institutions" yaml:"institutions"`
	Entities           int         `json:"entities" yaml:"entities"`
	WeightedPostulates int         `json:"weighted_postulates" yaml:"weighted_postulates"`
	NegativePostulates int         `json:"negative_postulates" yaml:"negative_postulates"`
	Expectations       int         `json:"expectations" yaml:"expectations"`
	ExpectationsMet    int         `json:"expectations_met" yaml:"expectations_met"`
	Findings           int         `json:"findings" yaml:"findings"`
	NewFindings        int         `json:"new_findings" yaml:"new_findings"`
	Anomalies          int         `json:"anomalies" yaml:"anomalies"`
	Coverage           float64     `json:"coverage_score" yaml:"coverage_score"`
	Relations          int         `json:"relations" yaml:"relations"`
	Schools            int         `json:"schools" yaml:"schools"`
	Fractures          int         `json:"fractures" yaml:"fractures"`
	KnownUnknowns      int         `json:"known_unknowns" yaml:"known_unknowns"`
	CombinedCoverage   float64     `json:"combined_coverage" yaml:"combined_coverage"`
	BlindnessGap       float64     `json:"blindness_gap" yaml:"blindness_gap"`
	QueriesIssued      int         `json:"queries_issued" yaml:"queries_issued"`
	QueriesGenerated   int         `json:"queries_generated" yaml:"queries_generated"`
	NewEntities        []string    `json:"new_entities,omitempty" yaml:"new_entities,omitempty"`
	Cost               float64     `json:"cost" yaml:"cost"`
}

// AgentReport is one perspective's view over a shared, frozen state.
type AgentReport struct {
	Agent        string        `json:"agent" yaml:"agent"`
	Focus        string        `json:"focus" yaml:"focus"`
	Expectations []Expectation `json:"expectations" yaml:"expectations"`
	Anomalies    []Anomaly     `json:"anomalies" yaml:"anomalies"`
	Coverage     float64       `json:"coverage_score" yaml:"coverage_score"`
}

// MetCount returns the number of satisfied expectations.
func (r AgentReport) MetCount() int {
	n := 0
	for _, e := range r.Expectations {
		if e.Met {
			n++
		}
	}
	return n
}

// KnownUnknown is an anomaly found by one perspective and missed by the other.
type KnownUnknown struct {
	Anomaly  Anomaly `json:"anomaly" yaml:"anomaly"`
	FoundBy  string  `json:"found_by" yaml:"found_by"`
	MissedBy string  `json:"missed_by" yaml:"missed_by"`
}

// ArbiterResult is the comparison of two agent reports.
type ArbiterResult struct {
	Alpha             AgentReport    `json:"alpha" yaml:"alpha"`
	Beta              AgentReport    `json:"beta" yaml:"beta"`
	Agreements        []GapType      `json:"agreements" yaml:"agreements"`
	KnownUnknowns     []KnownUnknown `json:"known_unknowns" yaml:"known_unknowns"`
	CombinedAnomalies []Anomaly      `json:"combined_anomalies" yaml:"combined_anomalies"`
	CombinedCoverage  float64        `json:"combined_coverage" yaml:"combined_coverage"`
	ExpectationTotal  int            `json:"expectation_total" yaml:"expectation_total"`
	BlindnessGap      float64        `json:"blindness_gap" yaml:"blindness_gap"`
}
