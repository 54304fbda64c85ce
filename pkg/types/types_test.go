// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.yaml.in/yaml/v3"
)

func TestEffectiveConfidence(t *testing.T) {
	p := WeightedPostulate{Confidence: 0.8, LastConfirmedCycle: 2, DecayRate: 0.1}

	assert.Equal(t, 0.8, p.EffectiveConfidence(2, 2), "no decay at the confirming cycle")
	assert.Equal(t, 0.8, p.EffectiveConfidence(1, 2), "no decay before the confirming cycle")

	// Two cycles at two cycles per month is one month of decay.
	assert.InDelta(t, 0.72, p.EffectiveConfidence(4, 2), 1e-9)

	prev := p.Confidence
	for c := 3; c < 20; c++ {
		got := p.EffectiveConfidence(c, 0)
		if got >= prev {
			t.Fatalf("cycle %d: effective confidence %v did not decrease from %v", c, got, prev)
		}
		prev = got
	}

	p.DecayRate = 0
	assert.Equal(t, 0.8, p.EffectiveConfidence(100, 2))
}

func TestActionFor(t *testing.T) {
	tests := []struct {
		conf float64
		want Action
	}{
		{0, ActionVerify},
		{0.19, ActionVerify},
		{0.2, ActionStandard},
		{0.59, ActionStandard},
		{0.6, ActionReliable},
		{0.89, ActionReliable},
		{0.9, ActionConsolidated},
		{1, ActionConsolidated},
	}
	for _, tt := range tests {
		if got := ActionFor(tt.conf); got != tt.want {
			t.Errorf("ActionFor(%v) = %s, want %s", tt.conf, got, tt.want)
		}
	}
}

func TestFindingKey(t *testing.T) {
	a := Finding{Source: "The Kasta Tumulus: Report!", Language: "EN "}
	b := Finding{Source: "the kasta  tumulus report", Language: "en"}
	assert.Equal(t, a.Key(), b.Key())
	assert.True(t, a.Valid())

	assert.False(t, Finding{Source: "  ", Language: "en"}.Valid())
	assert.False(t, Finding{Source: "x"}.Valid())

	c := Finding{Source: "the kasta tumulus report", Language: "el"}
	assert.NotEqual(t, a.Key(), c.Key())
}

func TestSeverityWeights(t *testing.T) {
	assert.Equal(t, 1.0, SeverityLow.Weight())
	assert.Equal(t, 2.0, SeverityMedium.Weight())
	assert.Equal(t, 3.0, SeverityHigh.Weight())
	assert.Equal(t, 5.0, SeverityCritical.Weight())
	assert.Equal(t, 0.0, Severity(0).Weight())
}

func TestSeverityYAML(t *testing.T) {
	data, err := yaml.Marshal(Anomaly{Description: "x", Gap: GapTemporal, Severity: SeverityHigh})
	assert.NoError(t, err)
	assert.Contains(t, string(data), "severity: HIGH")

	var a Anomaly
	assert.NoError(t, yaml.Unmarshal([]byte("severity: critical\ngap_type: TEMPORAL\n"), &a))
	assert.Equal(t, SeverityCritical, a.Severity)
}

func TestDedupAnomalies(t *testing.T) {
	in := []Anomaly{
		{Description: "Scholar 'X' never investigated", Gap: GapCitationIsland, Severity: SeverityMedium},
		{Description: "scholar x never investigated", Gap: GapCitationIsland, Severity: SeverityHigh},
		{Description: "scholar x never investigated", Gap: GapEntityUnresearched, Severity: SeverityLow},
	}
	out := DedupAnomalies(in)
	if assert.Len(t, out, 2) {
		assert.Equal(t, SeverityHigh, out[0].Severity)
		assert.Equal(t, "Scholar 'X' never investigated", out[0].Description)
	}
}

func TestNormalizeSourceType(t *testing.T) {
	assert.Equal(t, SourcePeerReviewed, NormalizeSourceType("peer-reviewed"))
	assert.Equal(t, SourceGreyLiterature, NormalizeSourceType("Thesis"))
	assert.Equal(t, SourceConference, NormalizeSourceType("proceedings"))
	assert.Equal(t, SourceType("blog"), NormalizeSourceType(" Blog "))
}

func TestAuditConfigDefaults(t *testing.T) {
	c := AuditConfig{}.WithDefaults()
	assert.Equal(t, 4, c.MaxCycles)
	assert.Equal(t, 2.0, c.ConvergenceThreshold)
	assert.Equal(t, 2, c.MentionThreshold)
	assert.Equal(t, 2, c.MinIslandCitations)
	assert.False(t, math.IsNaN(c.DecayRate))
	assert.Equal(t, 10, c.Budget.QueriesPerCycle)
}
