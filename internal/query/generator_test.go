// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package query

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/epistemic-audit/internal/postulate"
	"github.com/pdiddy/epistemic-audit/pkg/types"
)

func newStore() *postulate.Store {
	return postulate.NewStore(nil, "Amphipolis tomb", "Greece", "archaeology")
}

type stubLocalizer map[string][]string

func (s stubLocalizer) Localize(_ context.Context, _, lang, _ string) ([]string, error) {
	return s[lang], nil
}

func assertUniqueText(t *testing.T, qs []types.SearchQuery) {
	t.Helper()
	seen := make(map[string]bool)
	for _, q := range qs {
		k := q.DedupKey()
		assert.False(t, seen[k], "duplicate query %q", q.Text)
		seen[k] = true
	}
}

func TestInitialCoversEveryRelevantLanguage(t *testing.T) {
	g := New(newStore())
	qs := g.Initial(context.Background(), "Amphipolis tomb", "Greece", "archaeology")

	byLang := make(map[string][]types.SearchQuery)
	for _, q := range qs {
		byLang[q.Language] = append(byLang[q.Language], q)
	}
	for _, lang := range []string{"de", "el", "en", "fr", "it"} {
		assert.NotEmpty(t, byLang[lang], "no seed query for %s", lang)
	}
	assertUniqueText(t, qs)

	el := byLang["el"][0]
	assert.Equal(t, "Αμφίπολη", el.Text)
	assert.True(t, el.Localized)
	assert.Equal(t, types.SeverityHigh, el.Priority)

	de := byLang["de"][0]
	assert.Equal(t, types.SeverityMedium, de.Priority)
	assert.Contains(t, de.Text, "German Archaeological Institute")

	require.Len(t, byLang["en"], 2)
	assert.Equal(t, types.GapSourceType, byLang["en"][1].Gap)
}

func TestInitialUsesLocalizer(t *testing.T) {
	g := New(newStore(), WithLocalizer(stubLocalizer{
		"it": {"Anfipoli tomba ricerca", "Anfipoli scavo", "Anfipoli tumulo"},
	}))
	qs := g.Initial(context.Background(), "Amphipolis tomb", "Greece", "archaeology")

	var it []types.SearchQuery
	for _, q := range qs {
		if q.Language == "it" {
			it = append(it, q)
		}
	}
	require.Len(t, it, 2)
	assert.Equal(t, "Anfipoli tomba ricerca", it[0].Text)
	assert.True(t, it[1].Localized)
}

func TestGapFilling(t *testing.T) {
	s := newStore()
	s.Ingest(types.Finding{Source: "a", Language: "en", Entities: []string{"Michalis Lefantzis", "Michalis Lefantzis Jr"}})
	g := New(s)

	anomalies := []types.Anomaly{
		{Description: "No el sources", Gap: types.GapLinguistic, Severity: types.SeverityHigh, Subject: "el"},
		{Description: "Lefantzis unresearched", Gap: types.GapEntityUnresearched, Severity: types.SeverityCritical, Subject: "Michalis Lefantzis"},
		{Description: "Theory unsourced", Gap: types.GapTheoryUnsourced, Severity: types.SeverityHigh, Subject: "Olympias burial (Peristeri)"},
		{Description: "Only one school", Gap: types.GapSchool, Severity: types.SeverityCritical, SuggestedQueries: []string{"a", "b", "c"}},
		{Description: "Empty", Gap: types.GapVoice, Severity: types.SeverityMedium},
	}
	qs := g.GapFilling(context.Background(), anomalies)
	assertUniqueText(t, qs)

	counts := make(map[types.GapType]int)
	for _, q := range qs {
		counts[q.Gap]++
		for _, a := range anomalies {
			if a.Gap == q.Gap {
				assert.Equal(t, a.Severity, q.Priority)
			}
		}
	}
	for _, a := range anomalies {
		assert.GreaterOrEqual(t, counts[a.Gap], 1, a.Gap)
		assert.LessOrEqual(t, counts[a.Gap], 2, a.Gap)
	}

	var entity []types.SearchQuery
	for _, q := range qs {
		if q.Gap == types.GapEntityUnresearched {
			entity = append(entity, q)
		}
	}
	require.Len(t, entity, 2)
	assert.Equal(t, "Michalis Lefantzis Amphipolis", entity[0].Text)
	assert.Equal(t, "Michalis Lefantzis", entity[0].Target)
	assert.Equal(t, "el", entity[1].Language)

	for _, q := range qs {
		if q.Gap == types.GapTheoryUnsourced {
			assert.True(t, strings.HasPrefix(q.Text, `"Olympias burial"`), q.Text)
		}
	}
}

func TestGapFillingDiscipline(t *testing.T) {
	g := New(newStore())
	tests := []struct {
		name    string
		subject string
		want    []string
	}{
		{"specialist field", "Osteology", []string{"Amphipolis tomb osteology specialist", "Amphipolis tomb osteology analysis"}},
		{"discipline methods", "archaeology", []string{"Amphipolis tomb archaeology methods analysis", "Amphipolis tomb scientific dating analysis"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qs := g.GapFilling(context.Background(), []types.Anomaly{
				{Description: "UNMET: " + tt.subject, Gap: types.GapDiscipline, Severity: types.SeverityHigh, Subject: tt.subject},
			})
			var got []string
			for _, q := range qs {
				got = append(got, q.Text)
				assert.Equal(t, "en", q.Language)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVerification(t *testing.T) {
	s := newStore()
	s.Ingest(types.Finding{Source: "weak", Language: "en", Author: "Andrew Chugg", TheorySupported: "Olympias burial", Cycle: 1})
	for _, src := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		s.Ingest(types.Finding{Source: src, Language: "en", TheorySupported: "Hephaestion memorial", Cycle: 1})
	}
	g := New(s)

	now := g.Verification(1, 2)
	require.Len(t, now, 2)
	for _, q := range now {
		assert.Equal(t, types.SeverityMedium, q.Priority)
		assert.NotContains(t, q.Text, "Hephaestion memorial")
	}

	// Ten months of decay pushes the single-source postulates under VERIFY
	// and the consolidated theory back to STANDARD.
	later := g.Verification(21, 2)
	require.Len(t, later, 3)
	assert.Equal(t, types.SeverityHigh, later[0].Priority)
	assert.Equal(t, types.SeverityHigh, later[1].Priority)
	assert.Equal(t, types.SeverityMedium, later[2].Priority)
	assert.Contains(t, later[2].Text, "Hephaestion memorial")
}

func TestReformulations(t *testing.T) {
	s := newStore()
	s.RecordEmptyQuery(types.SearchQuery{Text: "安菲波利斯", Language: "zh"}, 1)
	for i := 1; i <= 3; i++ {
		s.RecordEmptyQuery(types.SearchQuery{Text: "Amphipolis pigments", Language: "en"}, i)
	}
	g := New(s)

	qs := g.Reformulations(1)
	require.Len(t, qs, 1)
	assert.Equal(t, "Chinese research on Amphipolis tomb", qs[0].Text)
	assert.Equal(t, "en", qs[0].Language)

	assert.Empty(t, g.Reformulations(2))
}

func TestTriage(t *testing.T) {
	qs := []types.SearchQuery{
		{Text: "low", Priority: types.SeverityLow},
		{Text: "high one", Priority: types.SeverityHigh},
		{Text: "critical", Priority: types.SeverityCritical},
		{Text: "High  One", Priority: types.SeverityHigh},
		{Text: "high two", Priority: types.SeverityHigh},
	}
	tests := []struct {
		name   string
		budget int
		want   []string
	}{
		{"unlimited", -1, []string{"critical", "high one", "high two", "low"}},
		{"trimmed", 2, []string{"critical", "high one"}},
		{"zero", 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, q := range Triage(qs, tt.budget) {
				got = append(got, q.Text)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
