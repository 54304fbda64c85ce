// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package sink receives the per-cycle progress of an audit session. The
// engine hands every sink the same Progress value and never depends on
// whether or how it is stored.
package sink

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/pdiddy/epistemic-audit/pkg/types"
)

// Progress is everything a sink receives at the end of a cycle.
type Progress struct {
	SessionID  string
	Config     types.AuditConfig
	Snapshot   types.CycleSnapshot
	Findings   []types.Finding
	Anomalies  []types.Anomaly
	Postulates []types.WeightedPostulate
	Negatives  []types.NegativePostulate
	Arbiter    *types.ArbiterResult
}

// ProgressSink records cycle progress.
type ProgressSink interface {
	Record(ctx context.Context, p Progress) error
}

// Record kinds returned by Progress.Records.
const (
	KindSnapshot  = "snapshot"
	KindFinding   = "finding"
	KindAnomaly   = "anomaly"
	KindPostulate = "postulate"
	KindArbiter   = "arbiter"
)

// Records flattens the progress into key/value records grouped by kind.
// Values are strings, ints, floats or bools; lists are comma-joined.
func (p Progress) Records() map[string][]map[string]any {
	s := p.Snapshot
	out := map[string][]map[string]any{
		KindSnapshot: {{
			"session_id":          p.SessionID,
			"cycle":               s.Cycle,
			"state":               string(s.State),
			"scholars":            s.Scholars,
			"theories":            s.Theories,
			"institutions":        s.Institutions,
			"entities":            s.Entities,
			"weighted_postulates": s.WeightedPostulates,
			"negative_postulates": s.NegativePostulates,
			"expectations":        s.Expectations,
			"expectations_met":    s.ExpectationsMet,
			"findings":            s.Findings,
			"new_findings":        s.NewFindings,
			"anomalies":           s.Anomalies,
			"coverage_score":      s.Coverage,
			"relations":           s.Relations,
			"schools":             s.Schools,
			"fractures":           s.Fractures,
			"known_unknowns":      s.KnownUnknowns,
			"combined_coverage":   s.CombinedCoverage,
			"blindness_gap":       s.BlindnessGap,
			"queries_issued":      s.QueriesIssued,
			"cost":                s.Cost,
		}},
	}
	for _, f := range p.Findings {
		out[KindFinding] = append(out[KindFinding], map[string]any{
			"session_id":         p.SessionID,
			"source":             f.Source,
			"language":           f.Language,
			"author":             f.Author,
			"institution":        f.Institution,
			"theory_supported":   f.TheorySupported,
			"source_type":        string(f.SourceType),
			"year":               f.Year,
			"entities_mentioned": strings.Join(f.Entities, ","),
			"query":              f.Query,
			"cycle":              f.Cycle,
		})
	}
	for _, a := range p.Anomalies {
		out[KindAnomaly] = append(out[KindAnomaly], map[string]any{
			"session_id":        p.SessionID,
			"cycle":             a.Cycle,
			"gap_type":          string(a.Gap),
			"severity":          a.Severity.String(),
			"description":       a.Description,
			"recommendation":    a.Recommendation,
			"subject":           a.Subject,
			"suggested_queries": strings.Join(a.SuggestedQueries, ","),
		})
	}
	for _, w := range p.Postulates {
		out[KindPostulate] = append(out[KindPostulate], map[string]any{
			"session_id":           p.SessionID,
			"key":                  w.Key,
			"name":                 w.Name,
			"kind":                 string(w.Kind),
			"source_count":         w.SourceCount,
			"language_spread":      strings.Join(w.LanguageSpread, ","),
			"confidence":           w.Confidence,
			"last_confirmed_cycle": w.LastConfirmedCycle,
			"decay_rate":           w.DecayRate,
			"action":               string(w.Action(s.Cycle, p.Config.CyclesPerMonth)),
		})
	}
	if p.Arbiter != nil {
		out[KindArbiter] = []map[string]any{{
			"session_id":         p.SessionID,
			"cycle":              s.Cycle,
			"alpha_coverage":     p.Arbiter.Alpha.Coverage,
			"beta_coverage":      p.Arbiter.Beta.Coverage,
			"combined_coverage":  p.Arbiter.CombinedCoverage,
			"blindness_gap":      p.Arbiter.BlindnessGap,
			"known_unknowns":     len(p.Arbiter.KnownUnknowns),
			"combined_anomalies": len(p.Arbiter.CombinedAnomalies),
		}}
	}
	return out
}

// Multi fans progress out to several sinks. Every sink is called; errors
// are joined.
type Multi []ProgressSink

// Record calls every sink in order.
func (m Multi) Record(ctx context.Context, p Progress) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Record(ctx, p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Memory keeps every recorded Progress in memory.
type Memory struct {
	mu       sync.Mutex
	progress []Progress
}

// Record appends p.
func (m *Memory) Record(_ context.Context, p Progress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.progress = append(m.progress, p)
	return nil
}

// Progress returns the recorded progress in order.
func (m *Memory) Progress() []Progress {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Progress(nil), m.progress...)
}
