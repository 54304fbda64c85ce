// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "sort"

// EntityKind classifies a discovered name.
type EntityKind string

const (
	KindScholar          EntityKind = "scholar"
	KindInstitution      EntityKind = "institution"
	KindTheory           EntityKind = "theory"
	KindHistoricalFigure EntityKind = "historical_figure"
	KindSite             EntityKind = "site"
	KindEvidence         EntityKind = "evidence"
	KindMethod           EntityKind = "method"
	KindEvent            EntityKind = "event"
	KindUnknown          EntityKind = "unknown"

	// KindLanguage tags the per-language postulates; entities never carry it.
	KindLanguage EntityKind = "language"
)

// Entity is a discovered name. Counters and flags only ever grow: mention
// counts increase, Investigated goes false→true, Languages only gains members.
type Entity struct {
	Name         string          `json:"name" yaml:"name"`
	Kind         EntityKind      `json:"kind" yaml:"kind"`
	FirstSeenIn  string          `json:"first_seen_in,omitempty" yaml:"first_seen_in,omitempty"`
	Mentions     int             `json:"times_mentioned" yaml:"times_mentioned"`
	Investigated bool            `json:"investigated" yaml:"investigated"`
	Languages    map[string]bool `json:"-" yaml:"-"`
	Institution  string          `json:"affiliated_institution,omitempty" yaml:"affiliated_institution,omitempty"`
}

// LanguageList returns the languages the entity was seen in, sorted.
func (e Entity) LanguageList() []string {
	out := make([]string, 0, len(e.Languages))
	for l := range e.Languages {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// Clone returns a deep copy of e.
func (e Entity) Clone() Entity {
	c := e
	c.Languages = make(map[string]bool, len(e.Languages))
	for l := range e.Languages {
		c.Languages[l] = true
	}
	return c
}
