// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package postulate accumulates what a session believes it knows: entities,
// theories, institutions and languages seen in findings, the weighted
// postulates built from them, and negative postulates recording queries
// that came back empty.
//
// A Store is owned by a single orchestrator goroutine. Freeze produces an
// immutable copy that any number of readers may share.
package postulate

import (
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/epistemic-audit/internal/profile"
	"github.com/pdiddy/epistemic-audit/pkg/types"
)

const (
	defaultBaseConfidence = 0.3
	defaultDecayRate      = 0.05

	// absentAfter is the number of empty attempts after which a query's
	// subject is presumed not to exist.
	absentAfter = 3
)

// Store is the mutable postulate state of a session.
type Store struct {
	state
	base     float64
	decay    float64
	logger   *zap.Logger
	ingested map[types.FindingKey]bool
}

// Option configures a Store.
type Option func(*Store)

// WithBaseConfidence sets the confidence a single source contributes.
func WithBaseConfidence(b float64) Option {
	return func(s *Store) {
		if b > 0 && b < 1 {
			s.base = b
		}
	}
}

// WithDecayRate sets the monthly decay rate stamped on new postulates.
func WithDecayRate(r float64) Option {
	return func(s *Store) {
		if r >= 0 && r < 1 {
			s.decay = r
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewStore returns an empty store for an audit of topic in country.
func NewStore(p *profile.Profile, topic, country, discipline string, opts ...Option) *Store {
	if p == nil {
		p = profile.Default()
	}
	s := &Store{
		state:    newState(p, topic, country, discipline),
		base:     defaultBaseConfidence,
		decay:    defaultDecayRate,
		logger:   zap.NewNop(),
		ingested: make(map[types.FindingKey]bool),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Ingest folds one finding into the store and returns the names of the
// entities, theories and institutions it created. A finding whose identity
// was already ingested changes nothing and returns nil.
func (s *Store) Ingest(f types.Finding) []string {
	k := f.Key()
	if s.ingested[k] {
		return nil
	}
	s.ingested[k] = true

	lang := strings.ToLower(strings.TrimSpace(f.Language))
	var created []string

	if lang != "" {
		s.languages[lang] = true
		s.confirm(types.KindLanguage, string(types.KindLanguage), lang, lang, k, f.Cycle)
	}

	if name := strings.TrimSpace(f.Author); name != "" {
		kind := s.prof.Classify(name)
		if kind != types.KindInstitution {
			kind = types.KindScholar
		}
		e, isNew := s.upsert(name, kind, f.Source, lang, false)
		e.Investigated = true
		if f.Institution != "" && e.Institution == "" {
			e.Institution = s.prof.Canonical(f.Institution)
		}
		if isNew {
			created = append(created, e.Name)
		}
		if kind == types.KindScholar {
			s.scholars[s.prof.CanonicalKey(name)] = e.Name
		} else {
			s.institutions[s.prof.CanonicalKey(name)] = e.Name
		}
		s.confirm(e.Kind, string(e.Kind), e.Name, s.prof.CanonicalKey(name), k, f.Cycle)
	}

	if name := strings.TrimSpace(f.Institution); name != "" {
		e, isNew := s.upsert(name, types.KindInstitution, f.Source, lang, false)
		e.Investigated = true
		if isNew {
			created = append(created, e.Name)
		}
		s.institutions[s.prof.CanonicalKey(name)] = e.Name
		s.confirm(types.KindInstitution, string(types.KindInstitution), e.Name, s.prof.CanonicalKey(name), k, f.Cycle)
	}

	if t := strings.TrimSpace(f.TheorySupported); t != "" {
		tk := profile.Key(t)
		if !s.theoryKeys[tk] {
			s.theoryKeys[tk] = true
			s.theories = append(s.theories, t)
			created = append(created, t)
		}
		s.confirm(types.KindTheory, string(types.KindTheory), s.theoryName(tk), tk, k, f.Cycle)
	}

	for _, m := range f.Entities {
		m = strings.TrimSpace(m)
		if m == "" {
			continue
		}
		kind := s.prof.Classify(m)
		e, isNew := s.upsert(m, kind, f.Source, lang, true)
		if isNew {
			created = append(created, e.Name)
		}
		switch e.Kind {
		case types.KindScholar:
			s.scholars[s.prof.CanonicalKey(m)] = e.Name
		case types.KindInstitution:
			s.institutions[s.prof.CanonicalKey(m)] = e.Name
		}
		s.confirm(e.Kind, string(e.Kind), e.Name, s.prof.CanonicalKey(m), k, f.Cycle)
	}

	if len(created) > 0 {
		s.logger.Debug("new postulates",
			zap.String("source", f.Source),
			zap.Strings("names", created),
		)
	}
	return created
}

// upsert creates or updates the entity for name. Mentions are counted only
// for names reported as mentioned, not for authors and affiliations.
func (s *Store) upsert(name string, kind types.EntityKind, source, lang string, mentioned bool) (*types.Entity, bool) {
	key := s.prof.CanonicalKey(name)
	e, ok := s.entities[key]
	if !ok {
		e = &types.Entity{
			Name:        s.prof.Canonical(name),
			Kind:        kind,
			FirstSeenIn: source,
			Languages:   make(map[string]bool),
		}
		s.entities[key] = e
	}
	if mentioned {
		e.Mentions++
	}
	if lang != "" {
		e.Languages[lang] = true
	}
	return e, !ok
}

func (s *Store) theoryName(key string) string {
	for _, t := range s.theories {
		if profile.Key(t) == key {
			return t
		}
	}
	return key
}

// confirm records that source k supports the postulate kind:key.
func (s *Store) confirm(kind types.EntityKind, prefix, name, key string, k types.FindingKey, cycle int) {
	id := prefix + ":" + key
	src, ok := s.sources[id]
	if !ok {
		src = make(map[types.FindingKey]bool)
		s.sources[id] = src
	}
	src[k] = true

	p, ok := s.postulates[id]
	if !ok {
		p = &types.WeightedPostulate{
			Key:       id,
			Name:      name,
			Kind:      kind,
			DecayRate: s.decay,
		}
		s.postulates[id] = p
	}
	p.SourceCount = len(src)
	p.Confidence = 1 - math.Pow(1-s.base, float64(p.SourceCount))
	if cycle > p.LastConfirmedCycle {
		p.LastConfirmedCycle = cycle
	}
	if k.Language != "" && !contains(p.LanguageSpread, k.Language) {
		p.LanguageSpread = append(p.LanguageSpread, k.Language)
		sort.Strings(p.LanguageSpread)
	}
}

// RecordEmptyQuery records that q returned nothing in cycle and returns
// the resulting negative postulate. Repeated empty results for the same
// query key bump its attempt count.
func (s *Store) RecordEmptyQuery(q types.SearchQuery, cycle int) types.NegativePostulate {
	lang := strings.ToLower(q.Language)
	key := s.negativeKey(q.Text, lang)
	n, ok := s.negatives[key]
	if !ok {
		n = &types.NegativePostulate{
			Key:        key,
			Query:      q.Text,
			Language:   lang,
			FirstCycle: cycle,
		}
		s.negatives[key] = n
		s.negOrder = append(s.negOrder, key)
	}
	n.Attempts++
	n.LastCycle = cycle
	n.PossibleReason, n.Reformulation, n.ReformulationLanguage = s.diagnose(q, lang, n.Attempts)

	s.logger.Debug("empty query",
		zap.String("query", q.Text),
		zap.String("language", lang),
		zap.String("reason", string(n.PossibleReason)),
		zap.Int("attempts", n.Attempts),
	)
	return *n
}

// negativeKey identifies a query by language and its sorted key terms so
// that trivially reworded queries share one record.
func (s *Store) negativeKey(text, lang string) string {
	seen := make(map[string]bool)
	var terms []string
	for _, w := range strings.Fields(profile.Key(text)) {
		if s.prof.IsStopword(w) || seen[w] {
			continue
		}
		seen[w] = true
		terms = append(terms, w)
	}
	sort.Strings(terms)
	return lang + "|" + strings.Join(terms, " ")
}

func (s *Store) diagnose(q types.SearchQuery, lang string, attempts int) (types.AbsenceReason, string, string) {
	lf := s.prof.LinguaFranca()
	primary := s.prof.PrimaryLanguages(s.country)

	switch {
	case attempts >= absentAfter:
		return types.ReasonGenuinelyAbsent, s.broaden(q.Text), lf
	case s.prof.Gated(lang):
		eco, _ := s.prof.Ecosystem(lang)
		if len(eco.CrossLanguage) > 0 {
			cq := eco.CrossLanguage[0]
			return types.ReasonAccessBarrier, strings.ReplaceAll(cq.Template, "{topic}", s.topic), cq.Language
		}
		return types.ReasonAccessBarrier, s.topic, lf
	case lang == lf && len(primary) > 0 && !contains(primary, lf):
		return types.ReasonWrongLanguage, s.prof.Transliterate(q.Text, primary[0], s.country), primary[0]
	case lang != lf && !q.Localized:
		return types.ReasonWrongTerminology, s.prof.Transliterate(s.topic, lang, s.country), lang
	}
	return types.ReasonGenuinelyAbsent, s.broaden(q.Text), lang
}

// broaden keeps the first two key terms of text, falling back to the topic.
func (s *Store) broaden(text string) string {
	terms := s.prof.KeyTerms(text)
	if len(terms) == 0 {
		return s.topic
	}
	if len(terms) > 2 {
		terms = terms[:2]
	}
	return strings.Join(terms, " ")
}

// Freeze returns an immutable copy of the current state.
func (s *Store) Freeze() *Frozen {
	return &Frozen{state: s.clone()}
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
