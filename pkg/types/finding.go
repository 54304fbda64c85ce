// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines the shared data structures of the epistemic audit
// engine: findings, entities, postulates, expectations, anomalies, typed
// relations and the per-cycle records handed to progress sinks.
package types

import (
	"strings"
	"unicode"
)

// SourceType classifies the publication channel of a finding.
type SourceType string

const (
	SourcePeerReviewed   SourceType = "peer_reviewed"
	SourceInstitutional  SourceType = "institutional"
	SourceConference     SourceType = "conference"
	SourceGreyLiterature SourceType = "grey_literature"
	SourceJournalistic   SourceType = "journalistic"
	SourceNews           SourceType = "news"
	SourceBook           SourceType = "book"
)

// NormalizeSourceType maps loose spellings ("peer-reviewed", "Thesis")
// onto the canonical SourceType values. Unknown values pass through lowercased.
func NormalizeSourceType(s string) SourceType {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.ReplaceAll(v, "-", "_")
	v = strings.ReplaceAll(v, " ", "_")
	switch v {
	case "peer_reviewed", "journal", "journal_article", "article":
		return SourcePeerReviewed
	case "conference", "proceedings", "conference_paper":
		return SourceConference
	case "thesis", "dissertation", "report", "technical_report", "grey", "grey_literature", "gray_literature", "preprint":
		return SourceGreyLiterature
	case "journalistic", "journalism":
		return SourceJournalistic
	}
	return SourceType(v)
}

// Finding is one reported fact produced by a search query. Findings are
// immutable once created; the orchestrator stamps Query and Cycle on arrival.
type Finding struct {
	Source          string     `json:"source" yaml:"source"`
	Language        string     `json:"language" yaml:"language"`
	Author          string     `json:"author,omitempty" yaml:"author,omitempty"`
	Institution     string     `json:"institution,omitempty" yaml:"institution,omitempty"`
	TheorySupported string     `json:"theory_supported,omitempty" yaml:"theory_supported,omitempty"`
	SourceType      SourceType `json:"source_type,omitempty" yaml:"source_type,omitempty"`
	Year            int        `json:"year,omitempty" yaml:"year,omitempty"`
	Entities        []string   `json:"entities_mentioned,omitempty" yaml:"entities_mentioned,omitempty"`
	Query           string     `json:"query,omitempty" yaml:"query,omitempty"`
	Cycle           int        `json:"cycle" yaml:"cycle"`
}

// FindingKey is the identity of a finding: its normalized source and language.
type FindingKey struct {
	Source   string
	Language string
}

// Key returns the deduplication identity of the finding.
func (f Finding) Key() FindingKey {
	return FindingKey{
		Source:   normalizeText(f.Source),
		Language: strings.ToLower(strings.TrimSpace(f.Language)),
	}
}

// Valid reports whether the finding carries the required fields.
func (f Finding) Valid() bool {
	k := f.Key()
	return k.Source != "" && k.Language != ""
}

// normalizeText lowercases s, drops punctuation and collapses whitespace.
func normalizeText(s string) string {
	var b strings.Builder
	space := false
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		default:
			space = true
		}
	}
	return b.String()
}
