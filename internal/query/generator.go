// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package query produces the search queries an audit session issues: the
// multilingual seed batch, targeted queries for detected gaps,
// re-confirmation queries for weak postulates, and reformulations of
// queries that came back empty. Triage orders a batch by priority and
// trims it to a budget.
package query

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/epistemic-audit/internal/localize"
	"github.com/pdiddy/epistemic-audit/internal/postulate"
	"github.com/pdiddy/epistemic-audit/internal/profile"
	"github.com/pdiddy/epistemic-audit/pkg/types"
)

const (
	perAnomaly      = 2
	perLocalization = 2
	maxEntities     = 5
	maxVerification = 5
)

// Generator builds queries from the current postulate state.
type Generator struct {
	view      postulate.View
	prof      *profile.Profile
	localizer localize.Localizer
	logger    *zap.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithLocalizer sets the localizer consulted for non-lingua-franca queries.
func WithLocalizer(l localize.Localizer) Option {
	return func(g *Generator) { g.localizer = l }
}

// WithLogger attaches a logger.
func WithLogger(l *zap.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.logger = l
		}
	}
}

// New returns a Generator reading from v.
func New(v postulate.View, opts ...Option) *Generator {
	g := &Generator{view: v, prof: v.Profile(), logger: zap.NewNop()}
	for _, o := range opts {
		o(g)
	}
	return g
}

// batch accumulates queries and drops repeated text.
type batch struct {
	seen map[string]bool
	out  []types.SearchQuery
}

func newBatch() *batch { return &batch{seen: make(map[string]bool)} }

func (b *batch) add(q types.SearchQuery) bool {
	q.Text = strings.Join(strings.Fields(q.Text), " ")
	k := q.DedupKey()
	if k == "" || b.seen[k] {
		return false
	}
	b.seen[k] = true
	b.out = append(b.out, q)
	return true
}

// Initial returns the seed batch: at least one query per language the
// country's profile marks relevant, plus lingua-franca queries aimed at
// academic sources and foreign research traditions.
func (g *Generator) Initial(ctx context.Context, topic, country, discipline string) []types.SearchQuery {
	lf := g.prof.LinguaFranca()
	primary := g.prof.PrimaryLanguages(country)
	c, _ := g.prof.Country(country)
	base := strings.Join(g.prof.KeyTerms(topic), " ")
	if base == "" {
		base = topic
	}

	b := newBatch()
	for _, lang := range g.prof.RelevantLanguages(country) {
		prio := types.SeverityMedium
		if contains(primary, lang) || lang == lf {
			prio = types.SeverityHigh
		}
		seed := types.SearchQuery{
			Language:  lang,
			Rationale: fmt.Sprintf("Initial seed query in %s", lang),
			Priority:  prio,
			Gap:       types.GapLinguistic,
		}

		if lang == lf {
			seed.Text = strings.TrimSpace(base + " " + country)
			b.add(seed)
			b.add(types.SearchQuery{
				Text:      topic + " academic publication research",
				Language:  lf,
				Rationale: "Target academic sources in " + lf,
				Priority:  types.SeverityHigh,
				Gap:       types.GapSourceType,
			})
			continue
		}

		added := false
		for _, text := range g.localized(ctx, topic, lang, discipline, perLocalization) {
			seed.Text, seed.Localized = text, true
			added = b.add(seed) || added
		}
		if added {
			continue
		}

		text := g.prof.Transliterate(base, lang, country)
		seed.Localized = text != base
		if tradition, ok := c.Traditions[lang]; ok && !contains(primary, lang) {
			seed.Rationale = fmt.Sprintf("Foreign research tradition in %s: %s", lang, tradition)
			text = tradition + " " + text
		}
		seed.Text = text
		if !b.add(seed) {
			seed.Text = text + " " + g.prof.Transliterate(discipline, lang, country)
			b.add(seed)
		}
	}

	g.logger.Debug("initial queries", zap.Int("count", len(b.out)), zap.String("country", country))
	return b.out
}

// GapFilling derives up to two queries per anomaly, each carrying the
// anomaly's severity as priority.
func (g *Generator) GapFilling(ctx context.Context, anomalies []types.Anomaly) []types.SearchQuery {
	b := newBatch()
	for _, a := range anomalies {
		n := 0
		for _, q := range g.forAnomaly(ctx, a) {
			if n == perAnomaly {
				break
			}
			q.Priority = a.Severity
			q.Gap = a.Gap
			if q.Rationale == "" {
				q.Rationale = a.Description
			}
			if b.add(q) {
				n++
			}
		}
	}
	return b.out
}

func (g *Generator) forAnomaly(ctx context.Context, a types.Anomaly) []types.SearchQuery {
	lf := g.prof.LinguaFranca()
	topic, country, discipline := g.view.Topic(), g.view.Country(), g.view.Discipline()

	if len(a.SuggestedQueries) > 0 {
		lang := lf
		if a.Gap == types.GapLinguistic && a.Subject != "" {
			lang = a.Subject
		}
		var out []types.SearchQuery
		for _, s := range a.SuggestedQueries {
			out = append(out, types.SearchQuery{Text: s, Language: lang, Target: targetOf(a)})
		}
		return out
	}

	switch a.Gap {
	case types.GapLinguistic:
		lang := a.Subject
		if lang == "" {
			return nil
		}
		var out []types.SearchQuery
		for _, text := range g.localized(ctx, topic, lang, discipline, perAnomaly) {
			out = append(out, types.SearchQuery{Text: text, Language: lang, Localized: true})
		}
		text := g.prof.Transliterate(topic, lang, country)
		out = append(out, types.SearchQuery{Text: text, Language: lang, Localized: text != topic})
		return out

	case types.GapEntityUnresearched, types.GapCitationIsland:
		if a.Subject == "" {
			return g.scholarQueries()
		}
		return g.entityQueries(a.Subject)

	case types.GapInstitutional:
		if a.Subject != "" {
			return []types.SearchQuery{{Text: a.Subject + " " + topic, Language: lf, Target: a.Subject}}
		}
		var out []types.SearchQuery
		for _, e := range head(g.view.UninvestigatedInstitutions(), perAnomaly) {
			out = append(out, types.SearchQuery{Text: e.Name + " " + topic, Language: lf, Target: e.Name})
		}
		c, _ := g.prof.Country(country)
		for _, lang := range g.prof.RelevantLanguages(country) {
			if t, ok := c.Traditions[lang]; ok {
				out = append(out, types.SearchQuery{Text: t + " " + topic, Language: lf, Target: t})
			}
		}
		return out

	case types.GapTheoryUnsourced:
		name := strings.TrimSpace(strings.Split(a.Subject, "(")[0])
		if name == "" {
			return nil
		}
		return []types.SearchQuery{
			{Text: fmt.Sprintf("%q academic paper", name), Language: lf},
			{Text: fmt.Sprintf("%q %s evidence", name, discipline), Language: lf},
		}

	case types.GapVoice:
		return []types.SearchQuery{
			{Text: topic + " alternative interpretations", Language: lf},
			{Text: topic + " criticism debate", Language: lf},
		}

	case types.GapSourceType:
		kind := strings.ReplaceAll(a.Subject, "_", " ")
		if kind == "" {
			kind = "peer reviewed"
		}
		return []types.SearchQuery{
			{Text: fmt.Sprintf("%s %s %s", topic, discipline, kind), Language: lf},
			{Text: fmt.Sprintf("%s %s journal", topic, kind), Language: lf},
		}

	case types.GapTemporal:
		return []types.SearchQuery{
			{Text: topic + " recent discoveries", Language: lf},
			{Text: topic + " history of research", Language: lf},
		}

	case types.GapDiscipline:
		if d, ok := g.prof.SubDiscipline(discipline, a.Subject); ok {
			field := strings.ToLower(d.Name)
			return []types.SearchQuery{
				{Text: fmt.Sprintf("%s %s specialist", topic, field), Language: lf},
				{Text: fmt.Sprintf("%s %s analysis", topic, field), Language: lf},
			}
		}
		return []types.SearchQuery{
			{Text: fmt.Sprintf("%s %s methods analysis", topic, discipline), Language: lf},
			{Text: topic + " scientific dating analysis", Language: lf},
		}

	case types.GapSchool:
		return []types.SearchQuery{
			{Text: topic + " rival interpretation", Language: lf},
			{Text: topic + " dissenting scholars", Language: lf},
		}

	case types.GapFracture:
		return []types.SearchQuery{{Text: a.Subject + " " + topic + " synthesis", Language: lf}}

	case types.GapNoFindings:
		return []types.SearchQuery{
			{Text: topic, Language: lf},
			{Text: topic + " " + discipline, Language: lf},
		}
	}
	return nil
}

// entityQueries searches for name in the lingua franca and in the
// country's first other primary language.
func (g *Generator) entityQueries(name string) []types.SearchQuery {
	lf := g.prof.LinguaFranca()
	term := firstTerm(g.prof, g.view.Topic())
	out := []types.SearchQuery{{Text: name + " " + term, Language: lf, Target: name}}
	for _, lang := range g.prof.PrimaryLanguages(g.view.Country()) {
		if lang == lf {
			continue
		}
		t := g.prof.Transliterate(term, lang, g.view.Country())
		out = append(out, types.SearchQuery{Text: name + " " + t, Language: lang, Target: name, Localized: t != term})
		break
	}
	return out
}

func (g *Generator) scholarQueries() []types.SearchQuery {
	var out []types.SearchQuery
	for _, e := range head(g.view.UninvestigatedScholars(), maxEntities) {
		out = append(out, g.entityQueries(e.Name)[0])
	}
	return out
}

// Verification returns re-confirmation queries for theory and scholar
// postulates whose effective confidence is still low: VERIFY postulates
// at HIGH priority, STANDARD ones at MEDIUM.
func (g *Generator) Verification(cycle int, cyclesPerMonth float64) []types.SearchQuery {
	type cand struct {
		p    types.WeightedPostulate
		conf float64
	}
	var cands []cand
	for _, p := range g.view.WeightedPostulates() {
		if p.Kind != types.KindTheory && p.Kind != types.KindScholar {
			continue
		}
		switch p.Action(cycle, cyclesPerMonth) {
		case types.ActionVerify, types.ActionStandard:
			cands = append(cands, cand{p, p.EffectiveConfidence(cycle, cyclesPerMonth)})
		}
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].conf != cands[j].conf {
			return cands[i].conf < cands[j].conf
		}
		return cands[i].p.Key < cands[j].p.Key
	})

	lf := g.prof.LinguaFranca()
	b := newBatch()
	for _, c := range cands {
		if len(b.out) == maxVerification {
			break
		}
		prio := types.SeverityMedium
		if c.p.Action(cycle, cyclesPerMonth) == types.ActionVerify {
			prio = types.SeverityHigh
		}
		q := types.SearchQuery{
			Language:  lf,
			Rationale: fmt.Sprintf("Re-confirm %s %q (confidence %.2f)", c.p.Kind, c.p.Name, c.conf),
			Priority:  prio,
		}
		if c.p.Kind == types.KindTheory {
			q.Text = fmt.Sprintf("%q %s evidence", c.p.Name, g.view.Discipline())
			q.Gap = types.GapTheoryUnsourced
		} else {
			q.Text = c.p.Name + " " + g.view.Topic()
			q.Gap = types.GapEntityUnresearched
			q.Target = c.p.Name
		}
		b.add(q)
	}
	return b.out
}

// Reformulations turns negative postulates last seen at or after cycle
// since into retry queries. Queries presumed genuinely absent are skipped.
func (g *Generator) Reformulations(since int) []types.SearchQuery {
	b := newBatch()
	for _, n := range g.view.NegativePostulates() {
		if n.LastCycle < since || n.PossibleReason == types.ReasonGenuinelyAbsent || n.Reformulation == "" {
			continue
		}
		b.add(types.SearchQuery{
			Text:      n.Reformulation,
			Language:  n.ReformulationLanguage,
			Rationale: fmt.Sprintf("Reformulate empty query %q (%s)", n.Query, n.PossibleReason),
			Priority:  types.SeverityMedium,
			Gap:       types.GapLinguistic,
			Localized: n.ReformulationLanguage != g.prof.LinguaFranca(),
		})
	}
	return b.out
}

// Triage orders queries by priority, keeping the original order among
// equals, drops repeated text and trims the batch to budget. A negative
// budget means unlimited.
func Triage(queries []types.SearchQuery, budget int) []types.SearchQuery {
	if budget == 0 {
		return nil
	}
	sorted := make([]types.SearchQuery, len(queries))
	copy(sorted, queries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority > sorted[j].Priority
	})
	b := newBatch()
	for _, q := range sorted {
		if budget > 0 && len(b.out) == budget {
			break
		}
		b.add(q)
	}
	return b.out
}

func (g *Generator) localized(ctx context.Context, topic, lang, discipline string, n int) []string {
	if g.localizer == nil {
		return nil
	}
	out, err := g.localizer.Localize(ctx, topic, lang, discipline)
	if err != nil {
		g.logger.Warn("localization failed", zap.String("language", lang), zap.Error(err))
		return nil
	}
	return head(out, n)
}

func targetOf(a types.Anomaly) string {
	switch a.Gap {
	case types.GapEntityUnresearched, types.GapCitationIsland, types.GapInstitutional:
		return a.Subject
	}
	return ""
}

func firstTerm(p *profile.Profile, topic string) string {
	if t := p.KeyTerms(topic); len(t) > 0 {
		return t[0]
	}
	return topic
}

func head[T any](s []T, n int) []T {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
