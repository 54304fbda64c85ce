// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package perspective

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/pdiddy/epistemic-audit/internal/audit"
	"github.com/pdiddy/epistemic-audit/internal/graph"
	"github.com/pdiddy/epistemic-audit/internal/inference"
	"github.com/pdiddy/epistemic-audit/internal/postulate"
	"github.com/pdiddy/epistemic-audit/pkg/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func engine() *inference.Engine {
	return inference.New(inference.WithClock(func() time.Time {
		return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	}))
}

func sharedState(t *testing.T) Shared {
	t.Helper()
	s := postulate.NewStore(nil, "Amphipolis tomb", "Greece", "archaeology")
	findings := []types.Finding{
		{
			Source:          "Peristeri 2015 excavation report",
			Language:        "el",
			Author:          "Katerina Peristeri",
			Institution:     "Ministry of Culture",
			TheorySupported: "Hephaestion memorial",
			SourceType:      types.SourceInstitutional,
			Year:            2015,
			Cycle:           1,
		},
	}
	for _, f := range findings {
		s.Ingest(f)
	}
	g := graph.New(nil)
	g.AddRelation(types.SemanticRelation{Source: "Katerina Peristeri", Target: "Michalis Lefantzis", Relation: types.RelCoauthors})
	return Shared{
		View:     s.Freeze(),
		Graph:    g,
		Findings: findings,
		Stats:    audit.Stats{Findings: len(findings), QueriesIssued: 1},
		Cycle:    1,
	}
}

func findAnomaly(as []types.Anomaly, prefix string) *types.Anomaly {
	for i := range as {
		if strings.HasPrefix(as[i].Description, prefix) {
			return &as[i]
		}
	}
	return nil
}

func TestProfileWeight(t *testing.T) {
	assert.Zero(t, Alpha.Weight(types.AxiomTheory))
	assert.Zero(t, Beta.Weight(types.AxiomInstitution))
	assert.Equal(t, 1.0, Profile{}.Weight(types.AxiomLanguage))
}

func TestAgentBlindSpots(t *testing.T) {
	s := sharedState(t)

	ra, err := NewAgent(Alpha, engine(), nil).Run(context.Background(), s)
	require.NoError(t, err)
	rb, err := NewAgent(Beta, engine(), nil).Run(context.Background(), s)
	require.NoError(t, err)

	for _, x := range ra.Expectations {
		assert.NotEqual(t, types.AxiomTheory, x.Axiom, x.Description)
	}
	for _, an := range ra.Anomalies {
		assert.NotEqual(t, types.AxiomTheory, an.Gap.Axiom(), an.Description)
	}
	for _, x := range rb.Expectations {
		assert.NotEqual(t, types.AxiomInstitution, x.Axiom, x.Description)
	}
	assert.Equal(t, "alpha", ra.Agent)
	assert.Equal(t, "beta", rb.Agent)
	assert.GreaterOrEqual(t, ra.Coverage, 0.0)
	assert.LessOrEqual(t, rb.Coverage, 100.0)
}

func TestAgentPromotesWeightedMedium(t *testing.T) {
	s := sharedState(t)
	const peer = "UNMET: At least one peer-reviewed source found"

	ra, err := NewAgent(Alpha, engine(), nil).Run(context.Background(), s)
	require.NoError(t, err)
	a := findAnomaly(ra.Anomalies, peer)
	require.NotNil(t, a)
	assert.Equal(t, types.SeverityHigh, a.Severity, "publication weighs 1.5 for alpha")

	rb, err := NewAgent(Beta, engine(), nil).Run(context.Background(), s)
	require.NoError(t, err)
	b := findAnomaly(rb.Anomalies, peer)
	require.NotNil(t, b)
	assert.Equal(t, types.SeverityMedium, b.Severity)
}

func TestAgentSeesGraphSignals(t *testing.T) {
	s := sharedState(t)
	ra, err := NewAgent(Alpha, engine(), nil).Run(context.Background(), s)
	require.NoError(t, err)
	school := findAnomaly(ra.Anomalies, "Only one school")
	require.NotNil(t, school)
	assert.Equal(t, types.SeverityCritical, school.Severity)
}

func TestCompare(t *testing.T) {
	a := types.AgentReport{
		Agent:        "alpha",
		Coverage:     60,
		Expectations: make([]types.Expectation, 3),
		Anomalies: []types.Anomaly{
			{Description: "x", Gap: types.GapLinguistic, Severity: types.SeverityMedium},
			{Description: "inst1", Gap: types.GapInstitutional, Severity: types.SeverityLow},
			{Description: "inst2", Gap: types.GapInstitutional, Severity: types.SeverityMedium},
		},
	}
	b := types.AgentReport{
		Agent:        "beta",
		Coverage:     40,
		Expectations: make([]types.Expectation, 5),
		Anomalies: []types.Anomaly{
			{Description: "x", Gap: types.GapLinguistic, Severity: types.SeverityHigh},
			{Description: "t", Gap: types.GapTheoryUnsourced, Severity: types.SeverityLow},
		},
	}

	r := Compare(a, b)

	assert.Equal(t, []types.GapType{types.GapLinguistic}, r.Agreements)
	want := []types.KnownUnknown{
		{
			Anomaly:  types.Anomaly{Description: "inst2 (found by alpha, missed by beta)", Gap: types.GapInstitutional, Severity: types.SeverityHigh},
			FoundBy:  "alpha",
			MissedBy: "beta",
		},
		{
			Anomaly:  types.Anomaly{Description: "t (found by beta, missed by alpha)", Gap: types.GapTheoryUnsourced, Severity: types.SeverityHigh},
			FoundBy:  "beta",
			MissedBy: "alpha",
		},
	}
	if diff := cmp.Diff(want, r.KnownUnknowns); diff != "" {
		t.Errorf("known unknowns mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 40.0, r.CombinedCoverage)
	assert.Equal(t, 20.0, r.BlindnessGap)
	assert.Equal(t, 5, r.ExpectationTotal)
	assert.Len(t, r.CombinedAnomalies, 6)
	assert.Equal(t, types.SeverityHigh, r.CombinedAnomalies[0].Severity)
}

func TestCompareCoverageBounds(t *testing.T) {
	tests := []struct {
		name string
		a, b float64
	}{
		{"alpha lower", 10, 90},
		{"beta lower", 75.5, 12.25},
		{"equal", 50, 50},
		{"both zero", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Compare(types.AgentReport{Coverage: tt.a}, types.AgentReport{Coverage: tt.b})
			assert.Equal(t, min(tt.a, tt.b), r.CombinedCoverage)
			assert.GreaterOrEqual(t, r.BlindnessGap, 0.0)
			assert.Equal(t, max(tt.a, tt.b)-min(tt.a, tt.b), r.BlindnessGap)
			assert.Empty(t, r.KnownUnknowns)
		})
	}
}

func TestRunPair(t *testing.T) {
	s := sharedState(t)
	r, err := RunPair(context.Background(), NewAgent(Alpha, engine(), nil), NewAgent(Beta, engine(), nil), s)
	require.NoError(t, err)

	assert.Equal(t, "alpha", r.Alpha.Agent)
	assert.Equal(t, "beta", r.Beta.Agent)
	assert.Equal(t, min(r.Alpha.Coverage, r.Beta.Coverage), r.CombinedCoverage)
	for _, ku := range r.KnownUnknowns {
		assert.Equal(t, types.SeverityHigh, ku.Anomaly.Severity)
	}
}

func TestRunPairCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := RunPair(ctx, NewAgent(Alpha, engine(), nil), NewAgent(Beta, engine(), nil), sharedState(t))
	require.ErrorIs(t, err, context.Canceled)
}
