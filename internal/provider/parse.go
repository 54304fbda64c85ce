// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/pdiddy/epistemic-audit/pkg/types"
)

var (
	fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*\\n(.*?)\\n\\s*```")
	jsonFence  = regexp.MustCompile("(?i)```json")
)

// ErrMalformedReply is returned by Parse when a reply announces JSON that
// does not decode, such as a truncated fenced block.
var ErrMalformedReply = errors.New("reply carries malformed JSON")

// rawFinding accepts the loose shapes language models produce: years as
// strings, source types in any spelling.
type rawFinding struct {
	Source          string          `json:"source"`
	Language        string          `json:"language"`
	Author          string          `json:"author"`
	Institution     string          `json:"institution"`
	TheorySupported string          `json:"theory_supported"`
	SourceType      string          `json:"source_type"`
	Year            json.RawMessage `json:"year"`
	Entities        []string        `json:"entities_mentioned"`
}

type rawRelation struct {
	Source     string   `json:"source"`
	Target     string   `json:"target"`
	Relation   string   `json:"relation"`
	Confidence *float64 `json:"confidence"`
	Evidence   string   `json:"evidence"`
	Language   string   `json:"language"`
}

type rawDocument struct {
	Findings  []rawFinding  `json:"findings"`
	Relations []rawRelation `json:"relations"`
}

// Parse extracts findings and relations from connector text. It accepts a
// fenced ```json block, a {"findings": [], "relations": []} object or a
// bare array of findings, optionally surrounded by prose. Findings default
// to the query's language and are stamped with the query text. Relations
// with an unknown type are dropped. Text with no JSON yields nothing; text
// that opens a JSON fence, object or array that does not decode yields
// ErrMalformedReply.
func Parse(text string, q types.SearchQuery) ([]types.Finding, []types.SemanticRelation, error) {
	raw := extractJSON(text)
	if raw == nil {
		if looksLikeJSON(text) {
			return nil, nil, ErrMalformedReply
		}
		return nil, nil, nil
	}

	var doc rawDocument
	switch raw[0] {
	case '[':
		if err := json.Unmarshal(raw, &doc.Findings); err != nil {
			return nil, nil, fmt.Errorf("parsing findings array: %w", err)
		}
	default:
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, nil, fmt.Errorf("parsing findings object: %w", err)
		}
	}

	findings := make([]types.Finding, 0, len(doc.Findings))
	for _, rf := range doc.Findings {
		f := types.Finding{
			Source:          strings.TrimSpace(rf.Source),
			Language:        strings.ToLower(strings.TrimSpace(rf.Language)),
			Author:          strings.TrimSpace(rf.Author),
			Institution:     strings.TrimSpace(rf.Institution),
			TheorySupported: strings.TrimSpace(rf.TheorySupported),
			Year:            parseYear(rf.Year),
			Entities:        rf.Entities,
			Query:           q.Text,
		}
		if rf.SourceType != "" {
			f.SourceType = types.NormalizeSourceType(rf.SourceType)
		}
		if f.Language == "" {
			f.Language = q.Language
		}
		findings = append(findings, f)
	}

	var relations []types.SemanticRelation
	for _, rr := range doc.Relations {
		rel, err := types.ParseRelationType(rr.Relation)
		if err != nil || strings.TrimSpace(rr.Source) == "" || strings.TrimSpace(rr.Target) == "" {
			continue
		}
		r := types.SemanticRelation{
			Source:     strings.TrimSpace(rr.Source),
			Target:     strings.TrimSpace(rr.Target),
			Relation:   rel,
			Confidence: 0.5,
			Evidence:   rr.Evidence,
			Language:   rr.Language,
		}
		if rr.Confidence != nil {
			r.Confidence = min(max(*rr.Confidence, 0), 1)
		}
		if r.Language == "" {
			r.Language = q.Language
		}
		relations = append(relations, r)
	}
	return findings, relations, nil
}

// extractJSON returns the JSON payload of text, or nil when there is none.
func extractJSON(text string) []byte {
	if m := fencedJSON.FindStringSubmatch(text); m != nil && json.Valid([]byte(m[1])) {
		return bytes.TrimSpace([]byte(m[1]))
	}
	t := strings.TrimSpace(text)
	if t == "" {
		return nil
	}
	if json.Valid([]byte(t)) && (t[0] == '{' || t[0] == '[') {
		return []byte(t)
	}

	obj := strings.IndexByte(t, '{')
	arr := strings.IndexByte(t, '[')
	candidates := [][2]byte{{'{', '}'}, {'[', ']'}}
	if arr >= 0 && (obj < 0 || arr < obj) {
		candidates[0], candidates[1] = candidates[1], candidates[0]
	}
	for _, c := range candidates {
		i := strings.IndexByte(t, c[0])
		j := strings.LastIndexByte(t, c[1])
		if i >= 0 && j > i && json.Valid([]byte(t[i:j+1])) {
			return []byte(t[i : j+1])
		}
	}
	return nil
}

func looksLikeJSON(text string) bool {
	t := strings.TrimSpace(text)
	return jsonFence.MatchString(t) || strings.HasPrefix(t, "{") || strings.HasPrefix(t, "[")
}

func parseYear(raw json.RawMessage) int {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" || s == "null" {
		return 0
	}
	if y, err := strconv.Atoi(s); err == nil {
		return y
	}
	if y, err := strconv.ParseFloat(s, 64); err == nil {
		return int(y)
	}
	return 0
}
