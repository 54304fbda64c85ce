// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package audit

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/epistemic-audit/internal/postulate"
	"github.com/pdiddy/epistemic-audit/pkg/types"
)

func exp(sev types.Severity, met bool) types.Expectation {
	return types.Expectation{Description: fmt.Sprintf("%s %v", sev, met), Gap: types.GapSourceType, Severity: sev, Met: met}
}

func TestScore(t *testing.T) {
	tests := []struct {
		name      string
		exps      []types.Expectation
		anomalies []types.Anomaly
		want      float64
	}{
		{"no expectations", nil, nil, 0},
		{"all met", []types.Expectation{exp(types.SeverityHigh, true), exp(types.SeverityLow, true)}, nil, 100},
		{"weighted", []types.Expectation{exp(types.SeverityCritical, true), exp(types.SeverityHigh, false)}, nil, 62.5},
		{
			"penalized",
			[]types.Expectation{exp(types.SeverityCritical, true), exp(types.SeverityHigh, false)},
			[]types.Anomaly{{Severity: types.SeverityHigh}},
			62.5 - 1.5/8*100,
		},
		{
			"penalty capped",
			[]types.Expectation{exp(types.SeverityLow, true), exp(types.SeverityLow, true)},
			[]types.Anomaly{{Severity: types.SeverityCritical}, {Severity: types.SeverityCritical}},
			70,
		},
		{
			"floored at zero",
			[]types.Expectation{exp(types.SeverityLow, false)},
			[]types.Anomaly{{Severity: types.SeverityCritical}},
			0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(tt.exps, tt.anomalies)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.GreaterOrEqual(t, got, 0.0)
			assert.LessOrEqual(t, got, 100.0)
		})
	}
}

func TestRunNoFindings(t *testing.T) {
	s := postulate.NewStore(nil, "Amphipolis tomb", "Greece", "archaeology")
	exps := []types.Expectation{exp(types.SeverityHigh, false)}
	got := New(nil).Run(exps, []types.Anomaly{{Description: "graph", Gap: types.GapSchool}}, s, Stats{}, 0)
	require.Len(t, got, 1, "prior graph anomalies are dropped")
	assert.Equal(t, types.GapNoFindings, got[0].Gap)
	assert.Equal(t, 0.0, Score(exps, got))
}

func TestRunUnmetAndDetectors(t *testing.T) {
	s := postulate.NewStore(nil, "Amphipolis tomb", "Greece", "archaeology")
	s.Ingest(types.Finding{Source: "a", Language: "en", Author: "Andrew Chugg",
		Entities: []string{"Dorothy King", "Michalis Lefantzis", "Katerina Peristeri"}})
	for i := 0; i < 4; i++ {
		s.RecordEmptyQuery(types.SearchQuery{Text: fmt.Sprintf("query %d terms", i), Language: "zh"}, 1)
	}

	exps := []types.Expectation{
		{Description: "Sources in 'el'", Gap: types.GapLinguistic, Severity: types.SeverityHigh, Subject: "el"},
		{Description: "Met one", Gap: types.GapSourceType, Severity: types.SeverityLow, Met: true},
	}
	prior := []types.Anomaly{{Description: "Only one school", Gap: types.GapSchool, Severity: types.SeverityCritical}}

	got := New(nil).Run(exps, prior, s, Stats{Findings: 1, QueriesIssued: 6}, 2)

	byGap := make(map[types.GapType][]types.Anomaly)
	for _, a := range got {
		byGap[a.Gap] = append(byGap[a.Gap], a)
		assert.Equal(t, 2, a.Cycle)
	}
	assert.Equal(t, types.GapSchool, got[0].Gap)
	require.Len(t, byGap[types.GapLinguistic], 3)
	assert.Equal(t, "UNMET: Sources in 'el'", byGap[types.GapLinguistic][0].Description)
	assert.Equal(t, "el", byGap[types.GapLinguistic][0].Subject)

	require.Len(t, byGap[types.GapEntityUnresearched], 1)
	assert.Contains(t, byGap[types.GapEntityUnresearched][0].Description, "25% (1/4)")

	require.Len(t, byGap[types.GapSourceType], 1)
	assert.Contains(t, byGap[types.GapSourceType][0].Description, "67% of 6 queries")

	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].Severity, got[i].Severity)
	}
}

func TestRunDeduplicates(t *testing.T) {
	s := postulate.NewStore(nil, "Amphipolis tomb", "Greece", "archaeology")
	s.Ingest(types.Finding{Source: "a", Language: "en", Author: "Andrew Chugg"})
	s.Ingest(types.Finding{Source: "b", Language: "el", Author: "Katerina Peristeri"})
	prior := []types.Anomaly{
		{Description: "Island: X", Gap: types.GapCitationIsland, Severity: types.SeverityHigh},
		{Description: "island:  x", Gap: types.GapCitationIsland, Severity: types.SeverityHigh},
	}
	got := New(nil).Run(nil, prior, s, Stats{Findings: 2}, 1)
	assert.Len(t, got, 1)
}

func TestRunSpecialistRecommendation(t *testing.T) {
	s := postulate.NewStore(nil, "Amphipolis tomb", "Greece", "archaeology")
	s.Ingest(types.Finding{Source: "a", Language: "el", Author: "Katerina Peristeri"})
	exps := []types.Expectation{
		{Description: "Specialist in 'Osteology' identified", Gap: types.GapDiscipline, Severity: types.SeverityHigh, Subject: "Osteology"},
		{Description: "At least 2 methods", Gap: types.GapDiscipline, Severity: types.SeverityMedium, Subject: "archaeology"},
	}
	got := New(nil).Run(exps, nil, s, Stats{Findings: 1}, 1)

	recs := make(map[string]string)
	for _, a := range got {
		if a.Gap == types.GapDiscipline {
			recs[a.Subject] = a.Recommendation
		}
	}
	assert.Equal(t, "Search for a specialist in Osteology who has worked on this topic", recs["Osteology"])
	assert.Equal(t, "Look for methodological and material evidence", recs["archaeology"])
}

func claims(theories ...string) []Claim {
	out := make([]Claim, len(theories))
	for i, th := range theories {
		out[i] = Claim{Theory: th, Author: fmt.Sprintf("Author %d", i), Source: fmt.Sprintf("src %d", i)}
	}
	return out
}

func TestClaimsOf(t *testing.T) {
	got := ClaimsOf([]types.Finding{
		{Source: "a", Author: "Katerina Peristeri", TheorySupported: "Hephaestion memorial"},
		{Source: "b", Author: "Andrew Chugg"},
		{Source: "c", TheorySupported: "  "},
	})
	assert.Equal(t, []Claim{{Theory: "Hephaestion memorial", Author: "Katerina Peristeri", Source: "a"}}, got)
}

func TestConverge(t *testing.T) {
	const (
		heph = "Hephaestion memorial"
		oly  = "Olympias burial"
		amph = "Amphipolitan hero"
	)
	tests := []struct {
		name   string
		claims []Claim
		want   Convergence
	}{
		{"no claims", nil, Convergence{}},
		{"single claim", claims(heph), Convergence{Claims: 1, Theories: 1, Dominant: heph, Uniformity: 1, Isolated: true}},
		{
			"agreement across spellings",
			claims(heph, heph, "HEPHAESTION  Memorial"),
			Convergence{Claims: 3, Theories: 1, Dominant: heph, Uniformity: 1},
		},
		{"debate", claims(oly, heph, heph, amph), Convergence{Claims: 4, Theories: 3, Dominant: heph, Uniformity: 0.5}},
		{
			"lone advocates, first seen wins ties",
			claims(oly, heph, amph),
			Convergence{Claims: 3, Theories: 3, Dominant: oly, Uniformity: 1.0 / 3, Isolated: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Converge(tt.claims)
			assert.InDelta(t, tt.want.Uniformity, got.Uniformity, 1e-9)
			got.Uniformity = tt.want.Uniformity
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConvergenceDetectors(t *testing.T) {
	s := postulate.NewStore(nil, "Amphipolis tomb", "Greece", "archaeology")
	const (
		heph = "Hephaestion memorial"
		oly  = "Olympias burial"
	)
	tests := []struct {
		name      string
		claims    []Claim
		consensus bool
		isolated  bool
	}{
		{name: "two agreeing claims", claims: claims(heph, heph)},
		{name: "three agreeing claims", claims: claims(heph, heph, heph), consensus: true},
		{name: "live debate", claims: claims(heph, heph, oly)},
		{name: "three lone theories", claims: claims(heph, oly, "Amphipolitan hero"), isolated: true},
		{name: "two lone theories", claims: claims(heph, oly)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := Stats{Findings: len(tt.claims), Claims: tt.claims}
			c := consensus(s, st)
			i := isolatedTheories(s, st)
			assert.Equal(t, tt.consensus, c != nil)
			assert.Equal(t, tt.isolated, i != nil)
			if c != nil {
				assert.Equal(t, "All 3 theory claims support 'Hephaestion memorial' (uniformity 100%): possible missing dissent", c.Description)
				assert.Equal(t, types.GapVoice, c.Gap)
				assert.Equal(t, types.SeverityMedium, c.Severity)
				assert.Equal(t, heph, c.Subject)
				assert.Equal(t, []string{"Amphipolis tomb Hephaestion memorial criticism"}, c.SuggestedQueries)
			}
			if i != nil {
				assert.Equal(t, "3 theories each with a single advocate (uniformity 33%): no synthesis or comparative study", i.Description)
				assert.Equal(t, types.SeverityMedium, i.Severity)
				assert.Len(t, i.SuggestedQueries, 2)
			}
		})
	}
}

func TestStructuralAbsence(t *testing.T) {
	tests := []struct {
		name     string
		findings []types.Finding
		want     string
		severity types.Severity
		subject  string
		queries  int
	}{
		{
			name:     "no theories to address anything",
			findings: []types.Finding{{Source: "a", Language: "el", Entities: []string{"skeletal remains", "mosaic of Persephone"}}},
		},
		{
			name: "single evidence item",
			findings: []types.Finding{
				{Source: "a", Language: "el", TheorySupported: "Hephaestion memorial", Entities: []string{"skeletal remains"}},
			},
		},
		{
			name: "every item addressed",
			findings: []types.Finding{
				{Source: "a", Language: "el", TheorySupported: "Olympias burial", Entities: []string{"skeletal remains of Olympias"}},
				{Source: "b", Language: "el", TheorySupported: "Persephone cult", Entities: []string{"mosaic of Persephone"}},
			},
		},
		{
			name: "half addressed",
			findings: []types.Finding{
				{Source: "a", Language: "el", TheorySupported: "Olympias burial", Entities: []string{"skeletal remains of Olympias"}},
				{Source: "b", Language: "el", TheorySupported: "Hephaestion memorial", Entities: []string{"mosaic of Persephone"}},
			},
			want:     "Evidence: 2 items found but only 1 addressed by theories. Unexamined: mosaic of Persephone",
			severity: types.SeverityMedium,
			subject:  "mosaic of Persephone",
			queries:  1,
		},
		{
			name: "nothing addressed",
			findings: []types.Finding{
				{Source: "a", Language: "el", TheorySupported: "Hephaestion memorial",
					Entities: []string{"skeletal remains", "mosaic of Persephone", "coins of Cassander"}},
			},
			want:     "Evidence: 3 items found but only 0 addressed by theories. Unexamined: coins of Cassander, mosaic of Persephone, skeletal remains",
			severity: types.SeverityHigh,
			subject:  "coins of Cassander",
			queries:  2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := postulate.NewStore(nil, "Amphipolis tomb", "Greece", "archaeology")
			for _, f := range tt.findings {
				s.Ingest(f)
			}
			got := structuralAbsence(s, Stats{Findings: len(tt.findings)})
			if tt.want == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Description)
			assert.Equal(t, types.GapVoice, got.Gap)
			assert.Equal(t, tt.severity, got.Severity)
			assert.Equal(t, tt.subject, got.Subject)
			assert.Len(t, got.SuggestedQueries, tt.queries)
		})
	}
}

func TestRunIncludesContentDetectors(t *testing.T) {
	s := postulate.NewStore(nil, "Amphipolis tomb", "Greece", "archaeology")
	findings := []types.Finding{
		{Source: "a", Language: "el", Author: "Katerina Peristeri", TheorySupported: "Hephaestion memorial",
			Entities: []string{"skeletal remains", "mosaic of Persephone"}},
		{Source: "b", Language: "el", Author: "Michalis Lefantzis", TheorySupported: "Hephaestion memorial"},
		{Source: "c", Language: "en", Author: "Andrew Chugg", TheorySupported: "Hephaestion memorial"},
	}
	for _, f := range findings {
		s.Ingest(f)
	}
	got := New(nil).Run(nil, nil, s, Stats{Findings: len(findings), Claims: ClaimsOf(findings)}, 3)

	var voice []string
	for _, a := range got {
		if a.Gap == types.GapVoice {
			voice = append(voice, a.Description)
			assert.Equal(t, 3, a.Cycle)
		}
	}
	require.Len(t, voice, 2)
	assert.Contains(t, voice[0], "Evidence: 2 items found", "HIGH sorts before MEDIUM")
	assert.Contains(t, voice[1], "possible missing dissent")
}
