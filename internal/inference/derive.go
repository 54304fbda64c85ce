// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package inference derives the expectations an audit checks each cycle and
// marks the ones the collected findings satisfy.
//
// Expectations are rebuilt in full every cycle from the current postulate
// view. Most rules emit an expectation for every candidate they cover,
// including ones the findings already satisfy, and Satisfy then marks those
// met so the coverage score credits them. Scholar research is the exception:
// it only covers scholars not yet investigated.
package inference

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/epistemic-audit/internal/postulate"
	"github.com/pdiddy/epistemic-audit/pkg/types"
)

const (
	defaultMentionThreshold = 2
	voicesPerTheory         = 2
	recentYears             = 3
	minSpanYears            = 10
	minMethods              = 2
)

// Engine derives and satisfies expectations.
type Engine struct {
	mentionThreshold int
	now              func() time.Time
	logger           *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithMentionThreshold sets how often a scholar must be mentioned before
// the audit expects them to be researched.
func WithMentionThreshold(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.mentionThreshold = n
		}
	}
}

// WithClock sets the clock used for temporal expectations.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger attaches a logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New returns an inference Engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		mentionThreshold: defaultMentionThreshold,
		now:              time.Now,
		logger:           zap.NewNop(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// MentionThreshold returns the configured mention threshold.
func (e *Engine) MentionThreshold() int { return e.mentionThreshold }

// Derive returns the expectations for cycle. Rules are applied
// independently and their results concatenated.
func (e *Engine) Derive(v postulate.View, cycle int) []types.Expectation {
	var out []types.Expectation
	out = append(out, e.linguistic(v)...)
	out = append(out, e.theories(v)...)
	out = append(out, e.entities(v)...)
	out = append(out, e.institutions(v)...)
	out = append(out, e.publications()...)
	out = append(out, e.temporal()...)
	out = append(out, e.discipline(v)...)
	out = append(out, e.specialists(v)...)
	for i := range out {
		out[i].Cycle = cycle
		if out[i].Axiom == "" {
			out[i].Axiom = out[i].Gap.Axiom()
		}
	}
	e.logger.Debug("derived expectations", zap.Int("cycle", cycle), zap.Int("count", len(out)))
	return out
}

func (e *Engine) linguistic(v postulate.View) []types.Expectation {
	p := v.Profile()
	country := v.Country()
	c, _ := p.Country(country)
	primary := p.PrimaryLanguages(country)

	var out []types.Expectation
	for _, lang := range p.RelevantLanguages(country) {
		x := types.Expectation{
			Gap:      types.GapLinguistic,
			Axiom:    types.AxiomLanguage,
			Severity: types.SeverityMedium,
			Subject:  lang,
		}
		switch tradition, ok := c.Traditions[lang]; {
		case contains(primary, lang):
			x.Description = fmt.Sprintf("Research includes sources in primary language '%s' of %s", lang, country)
			x.Severity = types.SeverityHigh
		case ok:
			x.Description = fmt.Sprintf("Sources checked in '%s' (%s)", lang, tradition)
		default:
			x.Description = fmt.Sprintf("Sources in lingua franca '%s'", lang)
		}
		out = append(out, x)
	}
	return out
}

func (e *Engine) theories(v postulate.View) []types.Expectation {
	theories := v.Theories()
	if len(theories) == 0 {
		return nil
	}
	n := len(theories)
	out := []types.Expectation{{
		Description: fmt.Sprintf("At least %d independent scholarly voices for %d theories", n*voicesPerTheory, n),
		Gap:         types.GapVoice,
		Axiom:       types.AxiomTheory,
		Severity:    types.SeverityHigh,
	}}
	for _, t := range theories {
		out = append(out, types.Expectation{
			Description: fmt.Sprintf("Theory '%s' supported by at least two independent sources", t),
			Gap:         types.GapTheoryUnsourced,
			Axiom:       types.AxiomTheory,
			Severity:    types.SeverityHigh,
			Subject:     t,
		})
	}
	return out
}

// entities expects every frequently mentioned scholar who is not yet
// investigated to be researched. Severity rises to CRITICAL at three times
// the threshold.
func (e *Engine) entities(v postulate.View) []types.Expectation {
	var out []types.Expectation
	for _, ent := range v.Entities() {
		if ent.Kind != types.KindScholar || ent.Investigated || ent.Mentions < e.mentionThreshold {
			continue
		}
		sev := types.SeverityHigh
		if ent.Mentions >= 3*e.mentionThreshold {
			sev = types.SeverityCritical
		}
		out = append(out, types.Expectation{
			Description: fmt.Sprintf("Scholar '%s' mentioned %dx: investigate their publications", ent.Name, ent.Mentions),
			Gap:         types.GapEntityUnresearched,
			Axiom:       types.AxiomSchool,
			Severity:    sev,
			Subject:     ent.Name,
		})
	}
	return out
}

func (e *Engine) institutions(v postulate.View) []types.Expectation {
	out := []types.Expectation{{
		Description: "At least one research institution identified",
		Gap:         types.GapInstitutional,
		Axiom:       types.AxiomInstitution,
		Severity:    types.SeverityMedium,
	}}
	for _, inst := range v.Institutions() {
		out = append(out, types.Expectation{
			Description: fmt.Sprintf("Publications from '%s' reviewed", inst),
			Gap:         types.GapInstitutional,
			Axiom:       types.AxiomInstitution,
			Severity:    types.SeverityMedium,
			Subject:     inst,
		})
	}
	return out
}

var publicationChannels = []struct {
	source   types.SourceType
	label    string
	severity types.Severity
}{
	{types.SourcePeerReviewed, "peer-reviewed", types.SeverityMedium},
	{types.SourceInstitutional, "institutional", types.SeverityLow},
	{types.SourceGreyLiterature, "grey literature", types.SeverityLow},
	{types.SourceConference, "conference", types.SeverityLow},
}

func (e *Engine) publications() []types.Expectation {
	out := make([]types.Expectation, 0, len(publicationChannels))
	for _, ch := range publicationChannels {
		out = append(out, types.Expectation{
			Description: fmt.Sprintf("At least one %s source found", ch.label),
			Gap:         types.GapSourceType,
			Axiom:       types.AxiomPublication,
			Severity:    ch.severity,
			Subject:     string(ch.source),
		})
	}
	return out
}

// Subjects of the temporal expectations.
const (
	subjectRecent = "recent"
	subjectSpan   = "span"
)

func (e *Engine) temporal() []types.Expectation {
	year := e.now().Year()
	return []types.Expectation{
		{
			Description: fmt.Sprintf("Sources from within the last %d years (since %d)", recentYears, year-recentYears),
			Gap:         types.GapTemporal,
			Axiom:       types.AxiomTemporal,
			Severity:    types.SeverityMedium,
			Subject:     subjectRecent,
		},
		{
			Description: fmt.Sprintf("Sources span at least %d years of research", minSpanYears),
			Gap:         types.GapTemporal,
			Axiom:       types.AxiomTemporal,
			Severity:    types.SeverityLow,
			Subject:     subjectSpan,
		},
	}
}

func (e *Engine) discipline(v postulate.View) []types.Expectation {
	d := v.Discipline()
	if d == "" {
		d = "the discipline"
	}
	return []types.Expectation{{
		Description: fmt.Sprintf("At least %d methods or evidence types documented for %s", minMethods, d),
		Gap:         types.GapDiscipline,
		Axiom:       types.AxiomDiscipline,
		Severity:    types.SeverityMedium,
		Subject:     v.Discipline(),
	}}
}

// specialists expects a specialist voice for every sub-discipline whose
// keywords turn up among the mentioned entities and theories. Optional
// sub-disciplines only weigh MEDIUM.
func (e *Engine) specialists(v postulate.View) []types.Expectation {
	subs := v.Profile().SubDisciplines(v.Discipline())
	if len(subs) == 0 {
		return nil
	}
	var parts []string
	for _, ent := range v.Entities() {
		parts = append(parts, ent.Name)
	}
	parts = append(parts, v.Theories()...)
	corpus := strings.Join(parts, " | ")

	var out []types.Expectation
	for _, d := range subs {
		kw, ok := d.Relevance(corpus)
		if !ok {
			continue
		}
		sev := types.SeverityHigh
		if d.Optional {
			sev = types.SeverityMedium
		}
		out = append(out, types.Expectation{
			Description: fmt.Sprintf("Specialist in '%s' identified (relevance: '%s' found in findings)", d.Name, kw),
			Gap:         types.GapDiscipline,
			Axiom:       types.AxiomDiscipline,
			Severity:    sev,
			Subject:     d.Name,
		})
	}
	return out
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
