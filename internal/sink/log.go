// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sink

import (
	"context"

	"go.uber.org/zap"

	"github.com/pdiddy/epistemic-audit/internal/observability"
	"github.com/pdiddy/epistemic-audit/pkg/types"
)

// Log writes one structured log line per cycle.
type Log struct {
	Logger *zap.Logger
}

// Record logs the snapshot counters.
func (l Log) Record(_ context.Context, p Progress) error {
	s := p.Snapshot
	fields := []zap.Field{
		zap.String("session", p.SessionID),
		zap.Int("cycle", s.Cycle),
		zap.String("state", string(s.State)),
		zap.Int("findings", s.Findings),
		zap.Int("new_findings", s.NewFindings),
		zap.Int("expectations", s.Expectations),
		zap.Int("met", s.ExpectationsMet),
		zap.Int("anomalies", s.Anomalies),
		zap.Float64("coverage", s.Coverage),
		zap.Int("schools", s.Schools),
		zap.Int("queries_issued", s.QueriesIssued),
	}
	if p.Arbiter != nil {
		fields = append(fields,
			zap.Float64("combined_coverage", p.Arbiter.CombinedCoverage),
			zap.Float64("blindness_gap", p.Arbiter.BlindnessGap),
			zap.Int("known_unknowns", len(p.Arbiter.KnownUnknowns)),
		)
	}
	l.Logger.Info("cycle complete", fields...)
	return nil
}

// Metrics mirrors the latest cycle into Prometheus collectors.
type Metrics struct {
	M *observability.Metrics
}

// Record updates the gauges and counters.
func (m Metrics) Record(_ context.Context, p Progress) error {
	s := p.Snapshot
	m.M.Cycles.Inc()
	m.M.Coverage.Set(s.Coverage)
	m.M.Findings.Set(float64(s.Findings))
	m.M.Postulates.Set(float64(s.WeightedPostulates))
	m.M.QueriesIssued.Add(float64(s.QueriesIssued))

	bySeverity := make(map[types.Severity]int)
	for _, a := range p.Anomalies {
		bySeverity[a.Severity]++
	}
	for _, sev := range []types.Severity{types.SeverityLow, types.SeverityMedium, types.SeverityHigh, types.SeverityCritical} {
		m.M.Anomalies.WithLabelValues(sev.String()).Set(float64(bySeverity[sev]))
	}

	if p.Arbiter != nil {
		m.M.CombinedCoverage.Set(p.Arbiter.CombinedCoverage)
		m.M.BlindnessGap.Set(p.Arbiter.BlindnessGap)
		m.M.KnownUnknowns.Set(float64(len(p.Arbiter.KnownUnknowns)))
	}
	return nil
}
