// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package localize turns an English topic into search strings written in
// another language's script and academic register. An empty result means
// no localization is available and callers fall back to their own
// templates.
package localize

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"text/template"

	"go.uber.org/zap"
	"go.yaml.in/yaml/v3"
)

// Localizer produces localized query strings for (topic, language, discipline).
type Localizer interface {
	Localize(ctx context.Context, topic, lang, discipline string) ([]string, error)
}

//go:embed terms.yaml
var termsYAML []byte

// Combination styles for academic and discipline terms.
const (
	StylePrefix   = "prefix"
	StyleCompound = "compound"
	StyleSuffix   = "suffix"
)

const (
	fallbackDiscipline = "science"
	academicCombos     = 3
	termCombos         = 2
)

type languageTerms struct {
	Style       string              `yaml:"style"`
	Academic    []string            `yaml:"academic"`
	Disciplines map[string][]string `yaml:"disciplines"`
}

// Static localizes from embedded term tables.
type Static struct {
	langs map[string]languageTerms
}

// NewStatic returns a Static localizer built from the embedded tables.
func NewStatic() (*Static, error) {
	var doc struct {
		Languages map[string]languageTerms `yaml:"languages"`
	}
	if err := yaml.Unmarshal(termsYAML, &doc); err != nil {
		return nil, fmt.Errorf("parsing localization tables: %w", err)
	}
	return &Static{langs: doc.Languages}, nil
}

// Languages lists the language codes with static tables.
func (s *Static) Languages() []string {
	out := make([]string, 0, len(s.langs))
	for l := range s.langs {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// Localize combines the language's academic vocabulary with its terms for
// the discipline. Unsupported languages yield nil.
func (s *Static) Localize(_ context.Context, topic, lang, discipline string) ([]string, error) {
	lt, ok := s.langs[strings.ToLower(lang)]
	if !ok {
		return nil, nil
	}
	terms := lt.Disciplines[disciplineKey(discipline, lt.Disciplines)]
	academic := head(lt.Academic, academicCombos)

	var out []string
	for _, a := range academic {
		for _, t := range head(terms, termCombos) {
			switch lt.Style {
			case StylePrefix:
				out = append(out, a+" "+t+" "+topic)
			case StyleCompound:
				out = append(out, t+a)
			default:
				out = append(out, t+" "+a)
			}
		}
	}
	for _, t := range terms {
		out = append(out, t+" "+topic)
	}
	return out, nil
}

// disciplineKey picks the table entry whose name appears in discipline.
func disciplineKey(discipline string, tables map[string][]string) string {
	d := strings.ToLower(strings.TrimSpace(discipline))
	keys := make([]string, 0, len(tables))
	for k := range tables {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if strings.Contains(d, k) {
			return k
		}
	}
	return fallbackDiscipline
}

func head(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// Querier sends a prompt to a language model and returns its text reply.
type Querier interface {
	Query(ctx context.Context, prompt string) (string, error)
}

const maxModelQueries = 8

var promptTemplate = template.Must(template.New("localize").Parse(
	`Write up to {{.Max}} search queries a researcher would type into a scholarly
database to find {{.Discipline}} literature about "{{.Topic}}", written in the
language with ISO 639-1 code "{{.Language}}". Use that language's native script
and academic vocabulary. Respond with a JSON array of strings only.`))

// Model localizes by asking a language model.
type Model struct {
	q      Querier
	logger *zap.Logger
}

// NewModel returns a Model localizer backed by q.
func NewModel(q Querier, logger *zap.Logger) *Model {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Model{q: q, logger: logger}
}

// Localize asks the model for queries and parses its reply.
func (m *Model) Localize(ctx context.Context, topic, lang, discipline string) ([]string, error) {
	var buf bytes.Buffer
	err := promptTemplate.Execute(&buf, struct {
		Max                         int
		Topic, Language, Discipline string
	}{maxModelQueries, topic, lang, discipline})
	if err != nil {
		return nil, fmt.Errorf("rendering localization prompt: %w", err)
	}
	text, err := m.q.Query(ctx, buf.String())
	if err != nil {
		return nil, fmt.Errorf("localizing %q into %s: %w", topic, lang, err)
	}
	out := parseQueries(text)
	m.logger.Debug("model localization",
		zap.String("language", lang),
		zap.Int("queries", len(out)),
	)
	return out, nil
}

var (
	jsonArray  = regexp.MustCompile(`(?s)\[.*\]`)
	listMarker = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s*`)
)

// parseQueries reads a JSON array of strings, falling back to one query
// per non-empty line.
func parseQueries(text string) []string {
	var list []string
	if m := jsonArray.FindString(text); m != "" {
		if err := json.Unmarshal([]byte(m), &list); err == nil {
			return clean(list)
		}
	}
	for _, line := range strings.Split(text, "\n") {
		list = append(list, listMarker.ReplaceAllString(line, ""))
	}
	return clean(list)
}

func clean(in []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range in {
		s = strings.Trim(strings.TrimSpace(s), `"`)
		if s == "" || strings.HasPrefix(s, "```") || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
		if len(out) == maxModelQueries {
			break
		}
	}
	return out
}

// Chain tries each localizer in order and returns the first non-empty
// result. Errors are logged and the next localizer is tried.
type Chain struct {
	localizers []Localizer
	logger     *zap.Logger
}

// NewChain returns a Chain over ls.
func NewChain(logger *zap.Logger, ls ...Localizer) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chain{localizers: ls, logger: logger}
}

// Localize implements Localizer.
func (c *Chain) Localize(ctx context.Context, topic, lang, discipline string) ([]string, error) {
	for _, l := range c.localizers {
		out, err := l.Localize(ctx, topic, lang, discipline)
		if err != nil {
			c.logger.Warn("localizer failed", zap.String("language", lang), zap.Error(err))
			continue
		}
		if len(out) > 0 {
			return out, nil
		}
	}
	return nil, nil
}
