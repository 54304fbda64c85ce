// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package inference

import (
	"fmt"
	"strings"

	"github.com/pdiddy/epistemic-audit/internal/postulate"
	"github.com/pdiddy/epistemic-audit/internal/profile"
	"github.com/pdiddy/epistemic-audit/pkg/types"
)

// evidence indexes the findings once per Satisfy call.
type evidence struct {
	byLanguage      map[string]string
	bySourceType    map[types.SourceType]string
	theoryAuthors   map[string]map[string]bool
	theorySources   map[string]string
	authors         map[string]bool
	authorSource    map[string]string
	firstInstSource string
	minYear         int
	maxYear         int
	maxYearSource   string
}

func index(findings []types.Finding, p *profile.Profile) evidence {
	ev := evidence{
		byLanguage:    make(map[string]string),
		bySourceType:  make(map[types.SourceType]string),
		theoryAuthors: make(map[string]map[string]bool),
		theorySources: make(map[string]string),
		authors:       make(map[string]bool),
		authorSource:  make(map[string]string),
	}
	for _, f := range findings {
		lang := strings.ToLower(f.Language)
		if _, ok := ev.byLanguage[lang]; !ok {
			ev.byLanguage[lang] = f.Source
		}
		if st := types.NormalizeSourceType(string(f.SourceType)); st != "" {
			if _, ok := ev.bySourceType[st]; !ok {
				ev.bySourceType[st] = f.Source
			}
		}
		author := ""
		if f.Author != "" {
			author = p.CanonicalKey(f.Author)
			ev.authors[author] = true
			if _, ok := ev.authorSource[author]; !ok {
				ev.authorSource[author] = f.Source
			}
		}
		if f.Institution != "" && ev.firstInstSource == "" {
			ev.firstInstSource = f.Source
		}
		// Only attributed findings count as voices for a theory.
		if f.TheorySupported != "" && author != "" {
			tk := profile.Key(f.TheorySupported)
			if ev.theoryAuthors[tk] == nil {
				ev.theoryAuthors[tk] = make(map[string]bool)
			}
			ev.theoryAuthors[tk][author] = true
			ev.theorySources[tk] = f.Source
		}
		if f.Year > 0 {
			if ev.minYear == 0 || f.Year < ev.minYear {
				ev.minYear = f.Year
			}
			if f.Year > ev.maxYear {
				ev.maxYear = f.Year
				ev.maxYearSource = f.Source
			}
		}
	}
	return ev
}

// Satisfy marks the expectations the findings meet, recording the first
// matching source as evidence. Already met expectations are left alone.
func (e *Engine) Satisfy(exps []types.Expectation, findings []types.Finding, v postulate.View) {
	p := v.Profile()
	ev := index(findings, p)
	year := e.now().Year()

	for i := range exps {
		x := &exps[i]
		if x.Met {
			continue
		}
		switch x.Gap {
		case types.GapLinguistic:
			if src, ok := ev.byLanguage[strings.ToLower(x.Subject)]; ok {
				x.Satisfy(fmt.Sprintf("Sources found in %s: %s", x.Subject, src))
			}

		case types.GapVoice:
			need := voicesPerTheory * len(v.Theories())
			if len(ev.authors) >= need {
				x.Satisfy(fmt.Sprintf("%d independent authors found", len(ev.authors)))
			}

		case types.GapTheoryUnsourced:
			tk := profile.Key(x.Subject)
			if len(ev.theoryAuthors[tk]) >= 2 {
				x.Satisfy("Sourced: " + ev.theorySources[tk])
			}

		case types.GapEntityUnresearched:
			ent, ok := v.Entity(x.Subject)
			if ok && ent.Investigated {
				src := ev.authorSource[p.CanonicalKey(x.Subject)]
				if src == "" {
					src = ent.Name + " now investigated"
				}
				x.Satisfy(src)
			}

		case types.GapInstitutional:
			if x.Subject == "" {
				if ev.firstInstSource != "" {
					x.Satisfy(ev.firstInstSource)
				}
				continue
			}
			if ent, ok := v.Entity(x.Subject); ok && ent.Investigated {
				x.Satisfy("Found: " + ent.Name)
			}

		case types.GapSourceType:
			if src, ok := ev.bySourceType[types.SourceType(x.Subject)]; ok {
				x.Satisfy(src)
			}

		case types.GapTemporal:
			switch x.Subject {
			case subjectRecent:
				if ev.maxYear >= year-recentYears {
					x.Satisfy(fmt.Sprintf("Recent: %d (%s)", ev.maxYear, ev.maxYearSource))
				}
			case subjectSpan:
				if ev.maxYear > 0 && ev.maxYear-ev.minYear >= minSpanYears {
					x.Satisfy(fmt.Sprintf("%d-%d", ev.minYear, ev.maxYear))
				}
			}

		case types.GapDiscipline:
			if d, ok := p.SubDiscipline(v.Discipline(), x.Subject); ok {
				if src := specialist(findings, d); src != "" {
					x.Satisfy(src)
				}
				continue
			}
			n := 0
			for _, ent := range v.Entities() {
				if ent.Kind == types.KindMethod || ent.Kind == types.KindEvidence {
					n++
				}
			}
			if n >= minMethods {
				x.Satisfy(fmt.Sprintf("%d methods or evidence types", n))
			}
		}
	}
}

// specialist returns evidence of the first attributed finding whose text
// carries one of d's specialist keywords, or "" when there is none.
func specialist(findings []types.Finding, d profile.SubDiscipline) string {
	for _, f := range findings {
		if f.Author == "" {
			continue
		}
		text := strings.Join(append([]string{f.Source, f.TheorySupported, f.Institution}, f.Entities...), " | ")
		if kw, ok := d.SpecialistIn(text); ok {
			return fmt.Sprintf("%s: '%s' in %s", f.Author, kw, f.Source)
		}
	}
	return ""
}
