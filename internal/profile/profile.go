// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package profile holds the immutable domain knowledge the audit engine is
// configured with: which languages and foreign research traditions matter
// for a country, how proper names are spelled across languages, and the
// hints used to classify discovered names.
//
// A Profile is built once (from the embedded default or a YAML file) and
// shared read-only by every component of a session.
package profile

import (
	_ "embed"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"go.yaml.in/yaml/v3"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/pdiddy/epistemic-audit/pkg/types"
)

//go:embed default.yaml
var defaultYAML []byte

// Access tiers of a language's research ecosystem.
const (
	TierOpen         = "open"
	TierPartial      = "partial_access"
	TierWalledGarden = "walled_garden"
)

// Country is the geographic-linguistic profile of one country.
type Country struct {
	Name       string
	Primary    []string
	Traditions map[string]string
	// Terms maps language → English term → translated term.
	Terms map[string]map[string]string
}

// CrossQuery is a template for reaching a gated ecosystem through another language.
type CrossQuery struct {
	Language string `yaml:"language"`
	Template string `yaml:"template"`
}

// Ecosystem describes how accessible a language's literature is.
type Ecosystem struct {
	Language       string       `yaml:"language"`
	Tier           string       `yaml:"tier"`
	GatedDatabases []string     `yaml:"gated_databases"`
	GatedShare     float64      `yaml:"gated_share"`
	CrossLanguage  []CrossQuery `yaml:"cross_language"`
}

// SubDiscipline is a specialist field a discipline may call for. It is
// relevant once one of its keywords turns up in the findings, and covered
// once an attributed finding carries one of its specialist keywords.
// Keywords match as substrings of the folded text, so stems such as
// "osteolog" are allowed.
type SubDiscipline struct {
	Name       string   `yaml:"name"`
	Reason     string   `yaml:"reason"`
	Optional   bool     `yaml:"optional"`
	Keywords   []string `yaml:"keywords"`
	Specialist []string `yaml:"specialist"`
}

// Relevance returns the first keyword of d found in text.
func (d SubDiscipline) Relevance(text string) (string, bool) {
	return firstIn(Key(text), d.Keywords)
}

// SpecialistIn returns the first specialist keyword of d found in text.
func (d SubDiscipline) SpecialistIn(text string) (string, bool) {
	return firstIn(Key(text), d.Specialist)
}

// Profile is the immutable knowledge configuration of a session.
type Profile struct {
	linguaFranca string
	countries    map[string]Country
	names        map[string]map[string]string
	variants     map[string]string
	figures      map[string]bool
	sources      map[string]bool
	deities      map[string]bool
	places       map[string]bool

	institutionKeywords []string
	evidenceKeywords    []string
	methodKeywords      []string
	eventKeywords       []string

	ecosystems  map[string]Ecosystem
	disciplines map[string][]SubDiscipline
	stopwords   map[string]bool
}

type fileCountry struct {
	Name       string                       `yaml:"name"`
	Primary    []string                     `yaml:"primary_languages"`
	Traditions map[string]string            `yaml:"foreign_traditions"`
	Terms      map[string]map[string]string `yaml:"terms"`
}

type fileProfile struct {
	LinguaFranca string                       `yaml:"lingua_franca"`
	Countries    []fileCountry                `yaml:"countries"`
	Names        map[string]map[string]string `yaml:"names"`
	Variants     map[string]string            `yaml:"variants"`
	Known        struct {
		HistoricalFigures []string `yaml:"historical_figures"`
		AncientSources    []string `yaml:"ancient_sources"`
		Deities           []string `yaml:"deities"`
		Places            []string `yaml:"places"`
	} `yaml:"known"`
	Keywords struct {
		Institution []string `yaml:"institution"`
		Evidence    []string `yaml:"evidence"`
		Method      []string `yaml:"method"`
		Event       []string `yaml:"event"`
	} `yaml:"keywords"`
	Ecosystems  []Ecosystem                `yaml:"ecosystems"`
	Disciplines map[string][]SubDiscipline `yaml:"disciplines"`
	Stopwords   []string                   `yaml:"stopwords"`
}

var loadDefault = sync.OnceValues(func() (*Profile, error) {
	return Load(strings.NewReader(string(defaultYAML)))
})

// Default returns the built-in profile. It panics if the embedded document
// is invalid, which only a broken build can cause.
func Default() *Profile {
	p, err := loadDefault()
	if err != nil {
		panic(fmt.Sprintf("profile: embedded default is invalid: %v", err))
	}
	return p
}

// LoadFile reads a profile from a YAML file.
func LoadFile(path string) (*Profile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening profile: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load parses a YAML profile document.
func Load(r io.Reader) (*Profile, error) {
	var fp fileProfile
	if err := yaml.NewDecoder(r).Decode(&fp); err != nil {
		return nil, fmt.Errorf("parsing profile: %w", err)
	}

	p := &Profile{
		linguaFranca: strings.ToLower(strings.TrimSpace(fp.LinguaFranca)),
		countries:    make(map[string]Country, len(fp.Countries)),
		names:        make(map[string]map[string]string, len(fp.Names)),
		variants:     make(map[string]string),
		figures:      keySet(fp.Known.HistoricalFigures),
		sources:      keySet(fp.Known.AncientSources),
		deities:      keySet(fp.Known.Deities),
		places:       keySet(fp.Known.Places),
		ecosystems:   make(map[string]Ecosystem, len(fp.Ecosystems)),
		disciplines:  make(map[string][]SubDiscipline, len(fp.Disciplines)),
		stopwords:    keySet(fp.Stopwords),

		institutionKeywords: lowerAll(fp.Keywords.Institution),
		evidenceKeywords:    lowerAll(fp.Keywords.Evidence),
		methodKeywords:      lowerAll(fp.Keywords.Method),
		eventKeywords:       lowerAll(fp.Keywords.Event),
	}
	if p.linguaFranca == "" {
		p.linguaFranca = "en"
	}

	for _, c := range fp.Countries {
		if strings.TrimSpace(c.Name) == "" {
			return nil, fmt.Errorf("parsing profile: country without a name")
		}
		p.countries[Key(c.Name)] = Country{
			Name:       c.Name,
			Primary:    lowerAll(c.Primary),
			Traditions: c.Traditions,
			Terms:      c.Terms,
		}
	}

	for canonical, spellings := range fp.Names {
		p.names[canonical] = spellings
		for _, v := range spellings {
			if Key(v) != Key(canonical) {
				p.variants[Key(v)] = canonical
			}
		}
	}
	for v, canonical := range fp.Variants {
		p.variants[Key(v)] = canonical
	}

	for _, e := range fp.Ecosystems {
		e.Language = strings.ToLower(e.Language)
		p.ecosystems[e.Language] = e
	}

	for discipline, subs := range fp.Disciplines {
		for _, d := range subs {
			if strings.TrimSpace(d.Name) == "" {
				return nil, fmt.Errorf("parsing profile: sub-discipline of %q without a name", discipline)
			}
			d.Keywords = lowerAll(d.Keywords)
			d.Specialist = lowerAll(d.Specialist)
			p.disciplines[Key(discipline)] = append(p.disciplines[Key(discipline)], d)
		}
	}
	return p, nil
}

// Key folds a name into its lookup key: Unicode-normalized, case-folded,
// stripped of diacritics, with whitespace collapsed.
func Key(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), cases.Fold(), norm.NFC)
	s, _, err := transform.String(t, strings.TrimSpace(name))
	if err != nil {
		s = strings.ToLower(strings.TrimSpace(name))
	}
	return strings.Join(strings.Fields(s), " ")
}

// LinguaFranca returns the language every audit also searches in.
func (p *Profile) LinguaFranca() string { return p.linguaFranca }

// Country looks up a country profile by name, case-insensitively.
func (p *Profile) Country(name string) (Country, bool) {
	c, ok := p.countries[Key(name)]
	return c, ok
}

// Countries returns the names of all profiled countries, sorted.
func (p *Profile) Countries() []string {
	out := make([]string, 0, len(p.countries))
	for _, c := range p.countries {
		out = append(out, c.Name)
	}
	sort.Strings(out)
	return out
}

// PrimaryLanguages returns the country's primary research languages.
func (p *Profile) PrimaryLanguages(country string) []string {
	c, ok := p.Country(country)
	if !ok {
		return nil
	}
	return append([]string(nil), c.Primary...)
}

// RelevantLanguages returns primary languages, foreign-tradition languages
// and the lingua franca for country, sorted and unique.
func (p *Profile) RelevantLanguages(country string) []string {
	set := map[string]bool{p.linguaFranca: true}
	if c, ok := p.Country(country); ok {
		for _, l := range c.Primary {
			set[l] = true
		}
		for l := range c.Traditions {
			set[strings.ToLower(l)] = true
		}
	}
	out := make([]string, 0, len(set))
	for l := range set {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// Canonical resolves a name through the transliteration tables so spelling
// variants across languages collapse to one display name.
func (p *Profile) Canonical(name string) string {
	name = strings.Join(strings.Fields(name), " ")
	if c, ok := p.variants[Key(name)]; ok {
		return c
	}
	return name
}

// CanonicalKey is Key(Canonical(name)).
func (p *Profile) CanonicalKey(name string) string {
	return Key(p.Canonical(name))
}

// Classify assigns an entity kind to a name using the known-entity sets and
// keyword hints. Unrecognized names default to scholar.
func (p *Profile) Classify(name string) types.EntityKind {
	k := Key(name)
	canon := p.CanonicalKey(name)
	switch {
	case p.figures[k] || p.figures[canon]:
		return types.KindHistoricalFigure
	case p.sources[k]:
		return types.KindEvidence
	case p.deities[k]:
		return types.KindUnknown
	case p.places[k] || p.places[canon]:
		return types.KindSite
	case containsAny(k, p.institutionKeywords):
		return types.KindInstitution
	case containsAny(k, p.evidenceKeywords):
		return types.KindEvidence
	case containsAny(k, p.methodKeywords):
		return types.KindMethod
	case containsAny(k, p.eventKeywords):
		return types.KindEvent
	}
	return types.KindScholar
}

// IsInstitution reports whether name carries an institution keyword.
func (p *Profile) IsInstitution(name string) bool {
	return containsAny(Key(name), p.institutionKeywords)
}

// Transliterate rewrites the known proper names and country terms in term
// into language lang. Terms with no translation are returned unchanged.
func (p *Profile) Transliterate(term, lang, country string) string {
	lang = strings.ToLower(lang)
	out := term
	changed := false
	for canonical, spellings := range p.names {
		v, ok := spellings[lang]
		if !ok {
			continue
		}
		if r, ok := replaceFold(out, canonical, v); ok {
			out, changed = r, true
		}
	}
	if c, ok := p.Country(country); ok {
		for en, tr := range c.Terms[lang] {
			if r, ok := replaceFold(out, en, tr); ok {
				out, changed = r, true
			}
		}
	}
	if !changed {
		return term
	}
	return out
}

var termSplit = regexp.MustCompile(`[\s,;:]+`)

// KeyTerms splits a topic into searchable terms longer than three
// characters, dropping stopwords.
func (p *Profile) KeyTerms(topic string) []string {
	var out []string
	for _, w := range termSplit.Split(topic, -1) {
		if utf8.RuneCountInString(w) <= 3 || p.stopwords[Key(w)] {
			continue
		}
		out = append(out, w)
	}
	return out
}

// IsStopword reports whether w is a stopword.
func (p *Profile) IsStopword(w string) bool {
	return p.stopwords[Key(w)]
}

// Ecosystem returns the access profile of a language, if one is known.
func (p *Profile) Ecosystem(lang string) (Ecosystem, bool) {
	e, ok := p.ecosystems[strings.ToLower(lang)]
	return e, ok
}

// Gated reports whether most of a language's literature sits behind
// databases the provider cannot reach.
func (p *Profile) Gated(lang string) bool {
	e, ok := p.Ecosystem(lang)
	return ok && e.Tier == TierWalledGarden
}

// SubDisciplines returns the specialist fields of a discipline in profile
// order.
func (p *Profile) SubDisciplines(discipline string) []SubDiscipline {
	return append([]SubDiscipline(nil), p.disciplines[Key(discipline)]...)
}

// SubDiscipline looks up one specialist field of a discipline by name.
func (p *Profile) SubDiscipline(discipline, name string) (SubDiscipline, bool) {
	k := Key(name)
	for _, d := range p.disciplines[Key(discipline)] {
		if Key(d.Name) == k {
			return d, true
		}
	}
	return SubDiscipline{}, false
}

// replaceFold replaces every case-insensitive occurrence of old in s.
func replaceFold(s, old, repl string) (string, bool) {
	if old == "" {
		return s, false
	}
	re, err := regexp.Compile(`(?i)` + regexp.QuoteMeta(old))
	if err != nil || !re.MatchString(s) {
		return s, false
	}
	return re.ReplaceAllLiteralString(s, repl), true
}

// containsAny reports whether any keyword appears in s as a whole word or
// word sequence.
func containsAny(s string, keywords []string) bool {
	words := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	padded := " " + strings.Join(words, " ") + " "
	for _, kw := range keywords {
		if kw != "" && strings.Contains(padded, " "+kw+" ") {
			return true
		}
	}
	return false
}

func firstIn(text string, keywords []string) (string, bool) {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(text, kw) {
			return kw, true
		}
	}
	return "", false
}

func keySet(in []string) map[string]bool {
	out := make(map[string]bool, len(in))
	for _, s := range in {
		out[Key(s)] = true
	}
	return out
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = Key(s)
	}
	return out
}
