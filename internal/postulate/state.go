// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package postulate

import (
	"sort"

	"github.com/pdiddy/epistemic-audit/internal/profile"
	"github.com/pdiddy/epistemic-audit/pkg/types"
)

// View is the read-only surface of the postulate state. Both the live Store
// and a Frozen copy implement it.
type View interface {
	Profile() *profile.Profile
	Topic() string
	Country() string
	Discipline() string
	Entity(name string) (types.Entity, bool)
	Entities() []types.Entity
	Theories() []string
	Institutions() []string
	Scholars() []string
	LanguagesCovered() []string
	WeightedPostulates() map[string]types.WeightedPostulate
	NegativePostulates() []types.NegativePostulate
	UninvestigatedScholars() []types.Entity
	UninvestigatedInstitutions() []types.Entity
	Snapshot() Summary
}

// Summary holds the postulate counts reported each cycle.
type Summary struct {
	Scholars           int      `json:"scholars" yaml:"scholars"`
	Theories           int      `json:"theories" yaml:"theories"`
	Institutions       int      `json:"institutions" yaml:"institutions"`
	Entities           int      `json:"entities" yaml:"entities"`
	Languages          []string `json:"languages" yaml:"languages"`
	WeightedPostulates int      `json:"weighted_postulates" yaml:"weighted_postulates"`
	NegativePostulates int      `json:"negative_postulates" yaml:"negative_postulates"`
}

// state is the belief data shared by Store and Frozen.
type state struct {
	prof       *profile.Profile
	topic      string
	country    string
	discipline string

	entities     map[string]*types.Entity
	theories     []string
	theoryKeys   map[string]bool
	institutions map[string]string
	scholars     map[string]string
	languages    map[string]bool
	postulates   map[string]*types.WeightedPostulate
	sources      map[string]map[types.FindingKey]bool
	negatives    map[string]*types.NegativePostulate
	negOrder     []string
}

func newState(p *profile.Profile, topic, country, discipline string) state {
	return state{
		prof:         p,
		topic:        topic,
		country:      country,
		discipline:   discipline,
		entities:     make(map[string]*types.Entity),
		theoryKeys:   make(map[string]bool),
		institutions: make(map[string]string),
		scholars:     make(map[string]string),
		languages:    make(map[string]bool),
		postulates:   make(map[string]*types.WeightedPostulate),
		sources:      make(map[string]map[types.FindingKey]bool),
		negatives:    make(map[string]*types.NegativePostulate),
	}
}

func (s *state) clone() state {
	c := newState(s.prof, s.topic, s.country, s.discipline)
	for k, e := range s.entities {
		cp := e.Clone()
		c.entities[k] = &cp
	}
	c.theories = append([]string(nil), s.theories...)
	for k := range s.theoryKeys {
		c.theoryKeys[k] = true
	}
	for k, v := range s.institutions {
		c.institutions[k] = v
	}
	for k, v := range s.scholars {
		c.scholars[k] = v
	}
	for k := range s.languages {
		c.languages[k] = true
	}
	for k, p := range s.postulates {
		cp := *p
		cp.LanguageSpread = append([]string(nil), p.LanguageSpread...)
		c.postulates[k] = &cp
	}
	for k, src := range s.sources {
		m := make(map[types.FindingKey]bool, len(src))
		for fk := range src {
			m[fk] = true
		}
		c.sources[k] = m
	}
	for k, n := range s.negatives {
		cp := *n
		c.negatives[k] = &cp
	}
	c.negOrder = append([]string(nil), s.negOrder...)
	return c
}

func (s *state) Profile() *profile.Profile { return s.prof }
func (s *state) Topic() string             { return s.topic }
func (s *state) Country() string           { return s.country }
func (s *state) Discipline() string        { return s.discipline }

// Entity looks an entity up by any of its spellings.
func (s *state) Entity(name string) (types.Entity, bool) {
	e, ok := s.entities[s.prof.CanonicalKey(name)]
	if !ok {
		return types.Entity{}, false
	}
	return e.Clone(), true
}

// Entities returns every entity sorted by name.
func (s *state) Entities() []types.Entity {
	out := make([]types.Entity, 0, len(s.entities))
	for _, e := range s.entities {
		out = append(out, e.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Theories returns theories in discovery order.
func (s *state) Theories() []string {
	return append([]string(nil), s.theories...)
}

func (s *state) Institutions() []string { return sortedValues(s.institutions) }
func (s *state) Scholars() []string     { return sortedValues(s.scholars) }

func (s *state) LanguagesCovered() []string {
	out := make([]string, 0, len(s.languages))
	for l := range s.languages {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// WeightedPostulates returns a copy of every weighted postulate keyed by
// "<kind>:<name key>".
func (s *state) WeightedPostulates() map[string]types.WeightedPostulate {
	out := make(map[string]types.WeightedPostulate, len(s.postulates))
	for k, p := range s.postulates {
		cp := *p
		cp.LanguageSpread = append([]string(nil), p.LanguageSpread...)
		out[k] = cp
	}
	return out
}

// NegativePostulates returns evidence of absence in first-recorded order.
func (s *state) NegativePostulates() []types.NegativePostulate {
	out := make([]types.NegativePostulate, 0, len(s.negOrder))
	for _, k := range s.negOrder {
		out = append(out, *s.negatives[k])
	}
	return out
}

// UninvestigatedScholars lists scholars mentioned but never seen as authors,
// most mentioned first.
func (s *state) UninvestigatedScholars() []types.Entity {
	return s.uninvestigated(types.KindScholar)
}

// UninvestigatedInstitutions lists institutions mentioned but never seen
// as a finding's affiliation, most mentioned first.
func (s *state) UninvestigatedInstitutions() []types.Entity {
	return s.uninvestigated(types.KindInstitution)
}

func (s *state) uninvestigated(kind types.EntityKind) []types.Entity {
	var out []types.Entity
	for _, e := range s.entities {
		if e.Kind == kind && !e.Investigated {
			out = append(out, e.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Mentions != out[j].Mentions {
			return out[i].Mentions > out[j].Mentions
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Snapshot returns the current counts.
func (s *state) Snapshot() Summary {
	return Summary{
		Scholars:           len(s.scholars),
		Theories:           len(s.theories),
		Institutions:       len(s.institutions),
		Entities:           len(s.entities),
		Languages:          s.LanguagesCovered(),
		WeightedPostulates: len(s.postulates),
		NegativePostulates: len(s.negatives),
	}
}

func sortedValues(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Frozen is an immutable copy of the postulate state, safe for concurrent
// readers.
type Frozen struct {
	state
}

var (
	_ View = (*Store)(nil)
	_ View = (*Frozen)(nil)
)
