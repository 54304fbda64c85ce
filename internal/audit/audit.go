// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package audit turns unmet expectations and structural signals into
// anomalies and scores how much of the expected knowledge has been covered.
package audit

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/pdiddy/epistemic-audit/internal/postulate"
	"github.com/pdiddy/epistemic-audit/internal/profile"
	"github.com/pdiddy/epistemic-audit/pkg/types"
)

const (
	investigationRatio = 0.5
	topUninvestigated  = 7

	minEmptyForPattern = 2
	languageDominance  = 0.6
	minQueriesForRatio = 5
	maxEmptyRatio      = 0.5

	penaltyFactor = 0.5
	maxPenalty    = 30.0

	minClaimsForConsensus  = 3
	minTheoriesForIsolated = 3
	minStructuralItems     = 2
	minAddressedWord       = 4
)

// Stats carries the session counters the detectors read.
type Stats struct {
	Findings      int
	QueriesIssued int
	// Claims are the theory positions taken by the findings so far.
	Claims []Claim
}

// Claim is one finding's position on what explains the topic.
type Claim struct {
	Theory string
	Author string
	Source string
}

// ClaimsOf returns the claims of the findings that support a theory.
func ClaimsOf(findings []types.Finding) []Claim {
	var out []Claim
	for _, f := range findings {
		if t := strings.TrimSpace(f.TheorySupported); t != "" {
			out = append(out, Claim{Theory: t, Author: f.Author, Source: f.Source})
		}
	}
	return out
}

// Auditor converts expectations and session state into anomalies.
type Auditor struct {
	logger *zap.Logger
}

// New returns an Auditor. A nil logger discards output.
func New(logger *zap.Logger) *Auditor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Auditor{logger: logger}
}

// Run returns the cycle's anomalies: prior anomalies (graph signals and
// the like), one per unmet expectation, and the session-level detectors.
// The result is deduplicated and ordered by severity, most severe first.
// With no findings at all the only anomaly is NO_FINDINGS: prior anomalies
// are dropped too, including graph signals from relations added without
// any finding.
func (a *Auditor) Run(exps []types.Expectation, prior []types.Anomaly, v postulate.View, st Stats, cycle int) []types.Anomaly {
	if st.Findings == 0 {
		return []types.Anomaly{{
			Description:    fmt.Sprintf("No findings collected for %q", v.Topic()),
			Gap:            types.GapNoFindings,
			Severity:       types.SeverityHigh,
			Recommendation: "Broaden the search or check the finding provider",
			Cycle:          cycle,
		}}
	}

	out := append([]types.Anomaly(nil), prior...)
	for _, x := range exps {
		if x.Met {
			continue
		}
		rec := recommendation(x.Gap)
		if d, ok := v.Profile().SubDiscipline(v.Discipline(), x.Subject); ok && x.Gap == types.GapDiscipline {
			rec = fmt.Sprintf("Search for a specialist in %s who has worked on this topic", d.Name)
		}
		out = append(out, types.Anomaly{
			Description:    "UNMET: " + x.Description,
			Gap:            x.Gap,
			Severity:       x.Severity,
			Recommendation: rec,
			Subject:        x.Subject,
			Cycle:          cycle,
		})
	}
	for _, detect := range []func(postulate.View, Stats) *types.Anomaly{
		monolingual,
		uninvestigated,
		emptyLanguagePattern,
		emptyRatio,
		consensus,
		isolatedTheories,
		structuralAbsence,
	} {
		if an := detect(v, st); an != nil {
			an.Cycle = cycle
			out = append(out, *an)
		}
	}

	out = types.DedupAnomalies(out)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Severity > out[j].Severity })
	a.logger.Debug("audit complete", zap.Int("cycle", cycle), zap.Int("anomalies", len(out)))
	return out
}

// Score is the severity-weighted share of met expectations, in percent,
// minus a penalty for open anomalies capped at 30 points. Zero
// expectations score 0.
func Score(exps []types.Expectation, anomalies []types.Anomaly) float64 {
	var total, met float64
	for _, x := range exps {
		w := x.Severity.Weight()
		total += w
		if x.Met {
			met += w
		}
	}
	if total == 0 {
		return 0
	}
	var penalty float64
	for _, an := range anomalies {
		penalty += an.Severity.Weight() * penaltyFactor
	}
	penalty = math.Min(penalty/total*100, maxPenalty)
	return math.Max(met/total*100-penalty, 0)
}

// monolingual flags primary languages (and the lingua franca) with no
// findings at all.
func monolingual(v postulate.View, _ Stats) *types.Anomaly {
	p := v.Profile()
	covered := make(map[string]bool)
	for _, l := range v.LanguagesCovered() {
		covered[l] = true
	}
	needed := append([]string{p.LinguaFranca()}, p.PrimaryLanguages(v.Country())...)
	var missing []string
	seen := make(map[string]bool)
	for _, l := range needed {
		if !covered[l] && !seen[l] {
			seen[l] = true
			missing = append(missing, l)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return &types.Anomaly{
		Description:    "Primary language(s) not covered: " + strings.Join(missing, ", "),
		Gap:            types.GapLinguistic,
		Severity:       types.SeverityHigh,
		Recommendation: "Search in: " + strings.Join(missing, ", "),
		Subject:        missing[0],
	}
}

// uninvestigated flags sessions where fewer than half the known scholars
// have been read directly.
func uninvestigated(v postulate.View, _ Stats) *types.Anomaly {
	var scholars, done int
	for _, e := range v.Entities() {
		if e.Kind != types.KindScholar {
			continue
		}
		scholars++
		if e.Investigated {
			done++
		}
	}
	if scholars == 0 {
		return nil
	}
	ratio := float64(done) / float64(scholars)
	if ratio >= investigationRatio {
		return nil
	}
	var names []string
	for _, e := range v.UninvestigatedScholars() {
		if len(names) == topUninvestigated {
			break
		}
		names = append(names, e.Name)
	}
	return &types.Anomaly{
		Description: fmt.Sprintf("Scholar investigation ratio: %.0f%% (%d/%d). Top uninvestigated: %s",
			ratio*100, done, scholars, strings.Join(names, ", ")),
		Gap:            types.GapEntityUnresearched,
		Severity:       types.SeverityHigh,
		Recommendation: "Search for publications by: " + strings.Join(names, ", "),
	}
}

func emptyCounts(v postulate.View) (map[string]int, int) {
	byLang := make(map[string]int)
	total := 0
	for _, n := range v.NegativePostulates() {
		byLang[n.Language] += n.Attempts
		total += n.Attempts
	}
	return byLang, total
}

// emptyLanguagePattern flags a language that accounts for most empty queries.
func emptyLanguagePattern(v postulate.View, _ Stats) *types.Anomaly {
	byLang, total := emptyCounts(v)
	if total < minEmptyForPattern {
		return nil
	}
	langs := make([]string, 0, len(byLang))
	for l := range byLang {
		langs = append(langs, l)
	}
	sort.Strings(langs)
	for _, l := range langs {
		share := float64(byLang[l]) / float64(total)
		if share > languageDominance {
			return &types.Anomaly{
				Description: fmt.Sprintf("Language '%s': %d of %d empty queries, search terms may need better translation",
					l, byLang[l], total),
				Gap:            types.GapLinguistic,
				Severity:       types.SeverityMedium,
				Recommendation: fmt.Sprintf("Review and improve search terms for language '%s'", l),
				Subject:        l,
			}
		}
	}
	return nil
}

// emptyRatio flags sessions where most issued queries return nothing.
func emptyRatio(v postulate.View, st Stats) *types.Anomaly {
	if st.QueriesIssued < minQueriesForRatio {
		return nil
	}
	_, empty := emptyCounts(v)
	ratio := float64(empty) / float64(st.QueriesIssued)
	if ratio <= maxEmptyRatio {
		return nil
	}
	return &types.Anomaly{
		Description: fmt.Sprintf("%.0f%% of %d queries returned nothing: sources may sit outside the reachable channels",
			ratio*100, st.QueriesIssued),
		Gap:            types.GapSourceType,
		Severity:       types.SeverityMedium,
		Recommendation: "Try other source channels such as institutional repositories or grey literature",
	}
}

// Convergence summarizes how the claims spread over theories.
type Convergence struct {
	Claims   int
	Theories int
	// Dominant is the theory with the most claims, first seen on ties.
	Dominant string
	// Uniformity is the dominant theory's share of the claims: 1 when
	// every claim agrees, 1/n when n theories split them evenly.
	Uniformity float64
	// Isolated reports that every theory has exactly one claim.
	Isolated bool
}

// Converge measures agreement among claims. Theories are compared by their
// folded names.
func Converge(claims []Claim) Convergence {
	counts := make(map[string]int)
	var order []string
	names := make(map[string]string)
	for _, c := range claims {
		k := profile.Key(c.Theory)
		if k == "" {
			continue
		}
		if _, ok := counts[k]; !ok {
			order = append(order, k)
			names[k] = c.Theory
		}
		counts[k]++
	}
	var cv Convergence
	if len(order) == 0 {
		return cv
	}
	best := order[0]
	cv.Isolated = true
	for _, k := range order {
		cv.Claims += counts[k]
		if counts[k] > counts[best] {
			best = k
		}
		if counts[k] != 1 {
			cv.Isolated = false
		}
	}
	cv.Theories = len(order)
	cv.Dominant = names[best]
	cv.Uniformity = float64(counts[best]) / float64(cv.Claims)
	return cv
}

// consensus flags sessions where every claim backs the same theory, which
// suggests dissenting voices have not been found.
func consensus(v postulate.View, st Stats) *types.Anomaly {
	cv := Converge(st.Claims)
	if cv.Claims < minClaimsForConsensus || cv.Theories != 1 {
		return nil
	}
	return &types.Anomaly{
		Description: fmt.Sprintf("All %d theory claims support '%s' (uniformity %.0f%%): possible missing dissent",
			cv.Claims, cv.Dominant, cv.Uniformity*100),
		Gap:              types.GapVoice,
		Severity:         types.SeverityMedium,
		Recommendation:   fmt.Sprintf("Search for scholars who disagree with '%s'", cv.Dominant),
		SuggestedQueries: []string{fmt.Sprintf("%s %s criticism", v.Topic(), cv.Dominant)},
		Subject:          cv.Dominant,
	}
}

// isolatedTheories flags debates where every theory has a single advocate,
// which suggests no synthesis or comparative study has been found.
func isolatedTheories(v postulate.View, st Stats) *types.Anomaly {
	cv := Converge(st.Claims)
	if cv.Theories < minTheoriesForIsolated || !cv.Isolated {
		return nil
	}
	return &types.Anomaly{
		Description: fmt.Sprintf("%d theories each with a single advocate (uniformity %.0f%%): no synthesis or comparative study",
			cv.Theories, cv.Uniformity*100),
		Gap:              types.GapVoice,
		Severity:         types.SeverityMedium,
		Recommendation:   "Search for comparative or review articles on " + v.Topic(),
		SuggestedQueries: []string{v.Topic() + " comparative study", v.Topic() + " review of theories"},
	}
}

// structuralAbsence flags material evidence the findings mention that no
// theory addresses. An item counts as addressed when one of its words of
// four or more letters appears in a theory name.
func structuralAbsence(v postulate.View, _ Stats) *types.Anomaly {
	theories := v.Theories()
	if len(theories) == 0 {
		return nil
	}
	p := v.Profile()
	folded := make([]string, len(theories))
	for i, t := range theories {
		folded[i] = profile.Key(t)
	}

	var items, missing []string
	for _, e := range v.Entities() {
		if e.Kind != types.KindEvidence {
			continue
		}
		items = append(items, e.Name)
		if !addressed(p, e.Name, folded) {
			missing = append(missing, e.Name)
		}
	}
	if len(items) < minStructuralItems || len(missing) == 0 {
		return nil
	}
	sev := types.SeverityMedium
	if 2*len(missing) > len(items) {
		sev = types.SeverityHigh
	}
	var queries []string
	for _, m := range missing {
		if len(queries) == 2 {
			break
		}
		queries = append(queries, v.Topic()+" "+m)
	}
	return &types.Anomaly{
		Description: fmt.Sprintf("Evidence: %d items found but only %d addressed by theories. Unexamined: %s",
			len(items), len(items)-len(missing), strings.Join(missing, ", ")),
		Gap:              types.GapVoice,
		Severity:         sev,
		Recommendation:   "Search for research on: " + strings.Join(missing, ", "),
		SuggestedQueries: queries,
		Subject:          missing[0],
	}
}

func addressed(p *profile.Profile, item string, theories []string) bool {
	for _, w := range strings.Fields(profile.Key(item)) {
		if utf8.RuneCountInString(w) < minAddressedWord || p.IsStopword(w) {
			continue
		}
		for _, t := range theories {
			if strings.Contains(t, w) {
				return true
			}
		}
	}
	return false
}

func recommendation(g types.GapType) string {
	switch g {
	case types.GapLinguistic:
		return "Search in missing languages"
	case types.GapInstitutional:
		return "Check this institution"
	case types.GapVoice:
		return "Find more independent scholars"
	case types.GapTheoryUnsourced:
		return "Find primary source"
	case types.GapSourceType:
		return "Look for this source type"
	case types.GapTemporal:
		return "Find sources across the full time span"
	case types.GapEntityUnresearched:
		return "Investigate this entity"
	case types.GapDiscipline:
		return "Look for methodological and material evidence"
	}
	return "Investigate further"
}
