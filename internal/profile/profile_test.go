// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package profile

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/epistemic-audit/pkg/types"
)

func TestDefaultLoads(t *testing.T) {
	p := Default()
	assert.Equal(t, "en", p.LinguaFranca())
	assert.Contains(t, p.Countries(), "Greece")
	assert.Contains(t, p.Countries(), "South Korea")
}

func TestCanonical(t *testing.T) {
	p := Default()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"italian spelling", "Efestione", "Hephaestion"},
		{"german spelling", "hephaistion", "Hephaestion"},
		{"greek with accents", "Ηφαιστίων", "Hephaestion"},
		{"greek upper case without accents", "ΗΦΑΙΣΤΙΩΝ", "Hephaestion"},
		{"italian multiword", "Alessandro  Magno", "Alexander the Great"},
		{"explicit variant", "Deinokratis", "Dinocrates"},
		{"unknown name passes through", "Katerina Peristeri", "Katerina Peristeri"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Canonical(tt.in))
		})
	}
}

func TestKey(t *testing.T) {
	assert.Equal(t, "hephestion", Key("  Héphestion "))
	assert.Equal(t, Key("ΠΑΡΕΛΑΒΟΝ"), Key("παρελαβον"))
	assert.Equal(t, "a b", Key("A \t B"))
}

func TestClassify(t *testing.T) {
	p := Default()
	tests := []struct {
		in   string
		want types.EntityKind
	}{
		{"Olympias", types.KindHistoricalFigure},
		{"Olimpiade", types.KindHistoricalFigure},
		{"Diodorus Siculus", types.KindEvidence},
		{"Cybele", types.KindUnknown},
		{"Vergina", types.KindSite},
		{"Aristotle University of Thessaloniki", types.KindInstitution},
		{"Ephorate of Antiquities of Serres", types.KindInstitution},
		{"Radiocarbon dating", types.KindMethod},
		{"Lion of Amphipolis inscription", types.KindEvidence},
		{"Katerina Peristeri", types.KindScholar},
	}
	for _, tt := range tests {
		if got := p.Classify(tt.in); got != tt.want {
			t.Errorf("Classify(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestRelevantLanguages(t *testing.T) {
	p := Default()
	assert.Equal(t, []string{"de", "el", "en", "fr", "it"}, p.RelevantLanguages("greece"))
	assert.Equal(t, []string{"en"}, p.RelevantLanguages("Atlantis"))
	assert.Equal(t, []string{"el", "en"}, p.PrimaryLanguages("Greece"))
	assert.Nil(t, p.PrimaryLanguages("Atlantis"))
}

func TestTransliterate(t *testing.T) {
	p := Default()
	assert.Equal(t, "Αμφίπολη τάφος", p.Transliterate("Amphipolis tomb", "el", "Greece"))
	assert.Equal(t, "Anfipoli", p.Transliterate("amphipolis", "it", "Greece"))
	assert.Equal(t, "Amphipolis tomb", p.Transliterate("Amphipolis tomb", "en", "Greece"))
	assert.Equal(t, "unrelated words", p.Transliterate("unrelated words", "el", "Greece"))
}

func TestKeyTerms(t *testing.T) {
	p := Default()
	assert.Equal(t, []string{"Amphipolis", "excavation", "Kasta"},
		p.KeyTerms("Amphipolis tomb excavation, near Kasta"))
}

func TestEcosystems(t *testing.T) {
	p := Default()
	assert.True(t, p.Gated("ZH"))
	assert.False(t, p.Gated("ja"))
	e, ok := p.Ecosystem("ar")
	require.True(t, ok)
	assert.Contains(t, e.GatedDatabases, "E-Marefa")
}

func TestSubDisciplines(t *testing.T) {
	p := Default()
	subs := p.SubDisciplines("Archaeology")
	require.NotEmpty(t, subs)
	assert.Equal(t, "Field archaeology", subs[0].Name)
	assert.Empty(t, p.SubDisciplines("astrophysics"))

	osteo, ok := p.SubDiscipline("archaeology", "osteology")
	require.True(t, ok)
	assert.False(t, osteo.Optional)
	coins, ok := p.SubDiscipline("archaeology", "Numismatics")
	require.True(t, ok)
	assert.True(t, coins.Optional)

	tests := []struct {
		name       string
		text       string
		relevant   string
		specialist string
	}{
		{"keyword in entity", "Skeletal remains of a woman", "skeletal", ""},
		{"stem matches specialist", "Osteological analysis of the Kasta remains", "osteolog", "osteolog"},
		{"folded case and accents", "FORENSIC Anthropology report", "", "anthropolog"},
		{"unrelated text", "Hephaestion memorial", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kw, ok := osteo.Relevance(tt.text)
			assert.Equal(t, tt.relevant != "", ok)
			assert.Equal(t, tt.relevant, kw)
			kw, ok = osteo.SpecialistIn(tt.text)
			assert.Equal(t, tt.specialist != "", ok)
			assert.Equal(t, tt.specialist, kw)
		})
	}
}

func TestLoadRejectsNamelessSubDiscipline(t *testing.T) {
	_, err := Load(strings.NewReader("disciplines:\n  geology:\n    - keywords: [rock]\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "without a name")
}

func TestLoadRejectsNamelessCountry(t *testing.T) {
	_, err := Load(strings.NewReader("countries:\n  - primary_languages: [xx]\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "without a name")
}

func TestLoadCustomProfile(t *testing.T) {
	doc := `
countries:
  - name: Atlantis
    primary_languages: [AT]
    foreign_traditions: {en: Poseidon Institute}
variants:
  kritias: Critias
`
	p, err := Load(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, "en", p.LinguaFranca())
	assert.Equal(t, []string{"at", "en"}, p.RelevantLanguages("atlantis"))
	assert.Equal(t, "Critias", p.Canonical("KRITIAS"))
	assert.Equal(t, types.KindScholar, p.Classify("Critias"))
}
