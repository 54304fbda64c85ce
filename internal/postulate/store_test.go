// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package postulate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/epistemic-audit/pkg/types"
)

func newTestStore(country string) *Store {
	return NewStore(nil, "Amphipolis tomb", country, "archaeology")
}

func TestIngestCreatesEntities(t *testing.T) {
	s := newTestStore("Greece")
	created := s.Ingest(types.Finding{
		Source:          "Peristeri 2015 excavation report",
		Language:        "el",
		Author:          "Katerina Peristeri",
		Institution:     "Ministry of Culture",
		TheorySupported: "Hephaestion burial",
		Entities:        []string{"Michalis Lefantzis", "Ηφαιστίων"},
		Cycle:           1,
	})

	assert.ElementsMatch(t, []string{
		"Katerina Peristeri", "Ministry of Culture", "Hephaestion burial",
		"Michalis Lefantzis", "Hephaestion",
	}, created)

	author, ok := s.Entity("Katerina Peristeri")
	require.True(t, ok)
	assert.True(t, author.Investigated)
	assert.Equal(t, types.KindScholar, author.Kind)
	assert.Equal(t, "Ministry of Culture", author.Institution)

	mentioned, ok := s.Entity("Michalis Lefantzis")
	require.True(t, ok)
	assert.False(t, mentioned.Investigated)
	assert.Equal(t, 1, mentioned.Mentions)

	fig, ok := s.Entity("Hephaestion")
	require.True(t, ok)
	assert.Equal(t, types.KindHistoricalFigure, fig.Kind)

	assert.Equal(t, []string{"Hephaestion burial"}, s.Theories())
	assert.Equal(t, []string{"el"}, s.LanguagesCovered())
	assert.Contains(t, s.Institutions(), "Ministry of Culture")
}

func TestIngestIsIdempotent(t *testing.T) {
	s := newTestStore("Greece")
	f := types.Finding{
		Source:   "Lefantzis on the lion",
		Language: "en",
		Author:   "Michalis Lefantzis",
		Entities: []string{"Dorothy King"},
	}
	require.NotEmpty(t, s.Ingest(f))
	before := s.WeightedPostulates()

	f.Source = "  LEFANTZIS on the Lion! "
	assert.Nil(t, s.Ingest(f))

	e, _ := s.Entity("Dorothy King")
	assert.Equal(t, 1, e.Mentions)
	assert.Equal(t, before, s.WeightedPostulates())
}

func TestTransliteratedMentionsCollapse(t *testing.T) {
	s := newTestStore("Greece")
	s.Ingest(types.Finding{Source: "a", Language: "it", Entities: []string{"Efestione"}})
	s.Ingest(types.Finding{Source: "b", Language: "el", Entities: []string{"Ηφαιστίων"}})
	s.Ingest(types.Finding{Source: "c", Language: "en", Entities: []string{"Hephaestion"}})

	e, ok := s.Entity("hephaistion")
	require.True(t, ok)
	assert.Equal(t, "Hephaestion", e.Name)
	assert.Equal(t, 3, e.Mentions)
	assert.Equal(t, []string{"el", "en", "it"}, e.LanguageList())
	assert.Equal(t, 1, s.Snapshot().Entities)
}

func TestCountersAreMonotonic(t *testing.T) {
	s := newTestStore("Greece")
	s.Ingest(types.Finding{Source: "a", Language: "en", Author: "Dorothy King", Entities: []string{"Andrew Chugg"}})
	s.Ingest(types.Finding{Source: "b", Language: "en", Entities: []string{"Dorothy King", "Andrew Chugg"}})

	king, _ := s.Entity("Dorothy King")
	assert.True(t, king.Investigated)
	assert.Equal(t, 1, king.Mentions)

	chugg, _ := s.Entity("Andrew Chugg")
	assert.False(t, chugg.Investigated)
	assert.Equal(t, 2, chugg.Mentions)

	s.Ingest(types.Finding{Source: "c", Language: "en", Author: "Andrew Chugg"})
	chugg, _ = s.Entity("Andrew Chugg")
	assert.True(t, chugg.Investigated)
	assert.Equal(t, 2, chugg.Mentions)
}

func TestConfidenceGrowsWithSources(t *testing.T) {
	s := newTestStore("Greece")
	var last float64
	for i, src := range []string{"one", "two", "three", "four"} {
		s.Ingest(types.Finding{Source: src, Language: "en", TheorySupported: "Olympias burial", Cycle: i + 1})
		p := s.WeightedPostulates()["theory:olympias burial"]
		assert.Equal(t, i+1, p.SourceCount)
		assert.Greater(t, p.Confidence, last)
		assert.Less(t, p.Confidence, 1.0)
		assert.Equal(t, i+1, p.LastConfirmedCycle)
		last = p.Confidence
	}
	assert.InDelta(t, 1-0.7*0.7*0.7*0.7, last, 1e-9)
}

func TestUninvestigatedScholarsOrdering(t *testing.T) {
	s := newTestStore("Greece")
	s.Ingest(types.Finding{Source: "a", Language: "en", Entities: []string{"Bob Smith", "Alice Jones"}})
	s.Ingest(types.Finding{Source: "b", Language: "en", Entities: []string{"Alice Jones", "Aristotle University"}})

	got := s.UninvestigatedScholars()
	require.Len(t, got, 2)
	assert.Equal(t, "Alice Jones", got[0].Name)
	assert.Equal(t, "Bob Smith", got[1].Name)

	inst := s.UninvestigatedInstitutions()
	require.Len(t, inst, 1)
	assert.Equal(t, "Aristotle University", inst[0].Name)
}

func TestFreezeIsIsolated(t *testing.T) {
	s := newTestStore("Greece")
	s.Ingest(types.Finding{Source: "a", Language: "en", Entities: []string{"Andrew Chugg"}})
	frozen := s.Freeze()

	s.Ingest(types.Finding{Source: "b", Language: "fr", Entities: []string{"Andrew Chugg"}})

	e, _ := frozen.Entity("Andrew Chugg")
	assert.Equal(t, 1, e.Mentions)
	assert.Equal(t, []string{"en"}, frozen.LanguagesCovered())

	live, _ := s.Entity("Andrew Chugg")
	assert.Equal(t, 2, live.Mentions)
}

func TestRecordEmptyQuery(t *testing.T) {
	tests := []struct {
		name     string
		country  string
		query    types.SearchQuery
		repeat   int
		reason   types.AbsenceReason
		wantLang string
	}{
		{
			name:     "walled garden",
			country:  "Greece",
			query:    types.SearchQuery{Text: "安菲波利斯 墓", Language: "zh"},
			repeat:   1,
			reason:   types.ReasonAccessBarrier,
			wantLang: "en",
		},
		{
			name:     "english in non-english country",
			country:  "Italy",
			query:    types.SearchQuery{Text: "Amphipolis excavation", Language: "en"},
			repeat:   1,
			reason:   types.ReasonWrongLanguage,
			wantLang: "it",
		},
		{
			name:     "untranslated foreign query",
			country:  "Greece",
			query:    types.SearchQuery{Text: "Amphipolis Grab", Language: "de"},
			repeat:   1,
			reason:   types.ReasonWrongTerminology,
			wantLang: "de",
		},
		{
			name:     "repeated failures",
			country:  "Greece",
			query:    types.SearchQuery{Text: "Amphipolis mosaic pigments", Language: "en"},
			repeat:   3,
			reason:   types.ReasonGenuinelyAbsent,
			wantLang: "en",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(tt.country)
			var n types.NegativePostulate
			for i := 0; i < tt.repeat; i++ {
				n = s.RecordEmptyQuery(tt.query, i+1)
			}
			assert.Equal(t, tt.reason, n.PossibleReason)
			assert.Equal(t, tt.wantLang, n.ReformulationLanguage)
			assert.Equal(t, tt.repeat, n.Attempts)
			assert.NotEmpty(t, n.Reformulation)
			assert.Len(t, s.NegativePostulates(), 1)
		})
	}
}

func TestNegativeKeyIgnoresWordOrder(t *testing.T) {
	s := newTestStore("Greece")
	s.RecordEmptyQuery(types.SearchQuery{Text: "Kasta hill mosaic", Language: "en"}, 1)
	n := s.RecordEmptyQuery(types.SearchQuery{Text: "mosaic of the Kasta Hill", Language: "en"}, 2)
	assert.Equal(t, 2, n.Attempts)
	assert.Equal(t, 1, n.FirstCycle)
	assert.Equal(t, 2, n.LastCycle)

	other := s.RecordEmptyQuery(types.SearchQuery{Text: "Kasta hill mosaic", Language: "el"}, 2)
	assert.Equal(t, 1, other.Attempts)
}
