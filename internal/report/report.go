// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package report renders the state of an audit session for people (text)
// and for tools (JSON).
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/pdiddy/epistemic-audit/internal/graph"
	"github.com/pdiddy/epistemic-audit/pkg/types"
)

// MaxSuggestedQueries bounds the suggested-query section of the text report.
const MaxSuggestedQueries = 15

const ruleWidth = 64

// Report is everything a rendered report may show. Zero-valued sections are
// omitted from the text output.
type Report struct {
	SessionID    string                    `json:"session_id" yaml:"session_id"`
	Config       types.AuditConfig         `json:"config" yaml:"config"`
	State        types.EngineState         `json:"state" yaml:"state"`
	Cycle        int                       `json:"cycle" yaml:"cycle"`
	Coverage     float64                   `json:"coverage_score" yaml:"coverage_score"`
	Postulates   []types.WeightedPostulate `json:"postulates" yaml:"postulates"`
	Negatives    []types.NegativePostulate `json:"negative_postulates,omitempty" yaml:"negative_postulates,omitempty"`
	Expectations []types.Expectation       `json:"expectations,omitempty" yaml:"expectations,omitempty"`
	Findings     []types.Finding           `json:"findings" yaml:"findings"`
	Anomalies    []types.Anomaly           `json:"anomalies" yaml:"anomalies"`
	Queries      []types.SearchQuery       `json:"suggested_queries,omitempty" yaml:"suggested_queries,omitempty"`
	History      []types.CycleSnapshot     `json:"history" yaml:"history"`
	Arbiter      *types.ArbiterResult      `json:"arbiter,omitempty" yaml:"arbiter,omitempty"`
	Graph        *graph.Summary            `json:"graph,omitempty" yaml:"graph,omitempty"`
}

// Verdict maps a coverage score onto its reading guidance.
func Verdict(coverage float64) string {
	switch {
	case coverage >= 80:
		return "Good. Check remaining gaps before concluding."
	case coverage >= 60:
		return "Moderate. Gaps may affect conclusions."
	case coverage >= 40:
		return "Insufficient. Conclusions unreliable."
	default:
		return "Poor. Do not draw conclusions yet."
	}
}

// SortAnomalies returns a copy of in ordered by descending severity,
// keeping the input order within a severity.
func SortAnomalies(in []types.Anomaly) []types.Anomaly {
	out := append([]types.Anomaly(nil), in...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Severity > out[j].Severity })
	return out
}

// SuggestedQueries returns the queries to show next. Pending queries are
// used when present; otherwise the anomalies' suggested queries are
// collected, most severe first and without duplicates.
func (r Report) SuggestedQueries() []types.SearchQuery {
	if len(r.Queries) > 0 {
		return r.Queries
	}
	seen := map[string]bool{}
	var out []types.SearchQuery
	for _, a := range SortAnomalies(r.Anomalies) {
		for _, text := range a.SuggestedQueries {
			q := types.SearchQuery{Text: text, Rationale: a.Description, Priority: a.Severity, Gap: a.Gap}
			if seen[q.DedupKey()] {
				continue
			}
			seen[q.DedupKey()] = true
			out = append(out, q)
		}
	}
	return out
}

// FormatText writes the human-readable report to w.
func FormatText(r Report, w io.Writer) {
	rule := strings.Repeat("=", ruleWidth)
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "  Epistemic audit: %s\n", r.Config.Topic)
	if r.Config.Country != "" || r.Config.Discipline != "" {
		fmt.Fprintf(w, "  Country: %s  Discipline: %s\n", orDash(r.Config.Country), orDash(r.Config.Discipline))
	}
	fmt.Fprintf(w, "  Cycle %d  State %s", r.Cycle, r.State)
	if r.SessionID != "" {
		fmt.Fprintf(w, "  Session %s", r.SessionID)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, rule)

	writePostulates(w, r)
	writeExpectations(w, r.Expectations)
	writeFindings(w, r.Findings)
	writeAnomalies(w, r.Anomalies)
	writeQueries(w, r.SuggestedQueries())

	section(w, fmt.Sprintf("COVERAGE: %.0f%%", r.Coverage))
	fmt.Fprintf(w, "  %s\n", Verdict(r.Coverage))

	writeHistory(w, r.History)
	if r.Arbiter != nil {
		writeArbiter(w, *r.Arbiter)
	}
	if r.Graph != nil {
		writeGraph(w, *r.Graph)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, rule)
}

// FormatJSON writes the report as indented JSON to w.
func FormatJSON(r Report, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

func section(w io.Writer, title string) {
	fmt.Fprintf(w, "\n%s\n", title)
	fmt.Fprintln(w, strings.Repeat("-", 50))
}

func writePostulates(w io.Writer, r Report) {
	section(w, fmt.Sprintf("POSTULATES: %d weighted, %d negative", len(r.Postulates), len(r.Negatives)))
	if len(r.Postulates) == 0 {
		fmt.Fprintln(w, "  None yet.")
	}
	for _, p := range r.Postulates {
		eff := p.EffectiveConfidence(r.Cycle, r.Config.CyclesPerMonth)
		fmt.Fprintf(w, "  %-13s %-30s %-10s sources=%d conf=%.2f [%s]\n",
			p.Action(r.Cycle, r.Config.CyclesPerMonth), truncate(p.Name, 30), p.Kind,
			p.SourceCount, eff, strings.Join(p.LanguageSpread, ","))
	}
	for _, n := range r.Negatives {
		fmt.Fprintf(w, "  EMPTY  %q (%s) x%d: %s", n.Query, n.Language, n.Attempts, n.PossibleReason)
		if n.Reformulation != "" {
			fmt.Fprintf(w, " -> try %q (%s)", n.Reformulation, n.ReformulationLanguage)
		}
		fmt.Fprintln(w)
	}
}

func writeExpectations(w io.Writer, exps []types.Expectation) {
	if len(exps) == 0 {
		return
	}
	met := 0
	for _, e := range exps {
		if e.Met {
			met++
		}
	}
	section(w, fmt.Sprintf("EXPECTATIONS: %d/%d met (%.0f%%)", met, len(exps), float64(met)/float64(len(exps))*100))
	for _, e := range exps {
		mark := "[ ]"
		if e.Met {
			mark = "[x]"
		}
		fmt.Fprintf(w, "  %s %-8s %s", mark, e.Severity, e.Description)
		if e.Met && e.Evidence != "" {
			fmt.Fprintf(w, " (%s)", e.Evidence)
		}
		fmt.Fprintln(w)
	}
}

func writeFindings(w io.Writer, findings []types.Finding) {
	section(w, fmt.Sprintf("FINDINGS: %d sources", len(findings)))
	langs := map[string]bool{}
	authors := map[string]bool{}
	for _, f := range findings {
		langs[f.Language] = true
		if f.Author != "" {
			authors[f.Author] = true
		}
	}
	fmt.Fprintf(w, "  Languages: %s\n", strings.Join(sortedKeys(langs), ", "))
	fmt.Fprintf(w, "  Authors: %s\n", strings.Join(sortedKeys(authors), ", "))
}

func writeAnomalies(w io.Writer, anomalies []types.Anomaly) {
	section(w, fmt.Sprintf("ANOMALIES: %d", len(anomalies)))
	for _, a := range SortAnomalies(anomalies) {
		fmt.Fprintf(w, "  [%s] %s: %s\n", a.Severity, a.Gap, a.Description)
		if a.Recommendation != "" {
			fmt.Fprintf(w, "    -> %s\n", a.Recommendation)
		}
	}
}

func writeQueries(w io.Writer, queries []types.SearchQuery) {
	section(w, fmt.Sprintf("SUGGESTED QUERIES: %d", len(queries)))
	for i, q := range queries {
		if i == MaxSuggestedQueries {
			fmt.Fprintf(w, "  ... and %d more\n", len(queries)-MaxSuggestedQueries)
			break
		}
		lang := q.Language
		if lang == "" {
			lang = "--"
		}
		fmt.Fprintf(w, "  [%s] (%s) %s\n", q.Priority, lang, q.Text)
		if q.Rationale != "" {
			fmt.Fprintf(w, "    Rationale: %s\n", q.Rationale)
		}
	}
}

func writeHistory(w io.Writer, history []types.CycleSnapshot) {
	if len(history) < 2 {
		return
	}
	section(w, "EVOLUTION")
	fmt.Fprintf(w, "  %5s %8s %8s %6s %4s %4s %6s\n", "Cycle", "Scholars", "Theories", "Expect", "Met", "Anom", "Cover")
	for _, s := range history {
		fmt.Fprintf(w, "  %5d %8d %8d %6d %4d %4d %5.0f%%\n",
			s.Cycle, s.Scholars, s.Theories, s.Expectations, s.ExpectationsMet, s.Anomalies, s.Coverage)
	}
}

func writeArbiter(w io.Writer, a types.ArbiterResult) {
	section(w, "PERSPECTIVES")
	for _, r := range []types.AgentReport{a.Alpha, a.Beta} {
		fmt.Fprintf(w, "  %s (%s)\n", r.Agent, r.Focus)
		fmt.Fprintf(w, "    Expectations: %d/%d  Anomalies: %d  Coverage: %.0f%%\n",
			r.MetCount(), len(r.Expectations), len(r.Anomalies), r.Coverage)
	}

	section(w, fmt.Sprintf("KNOWN UNKNOWNS: %d", len(a.KnownUnknowns)))
	if len(a.KnownUnknowns) == 0 {
		fmt.Fprintln(w, "  Both perspectives agree. This may mean good coverage or a shared blind spot.")
	}
	for _, k := range a.KnownUnknowns {
		fmt.Fprintf(w, "  [%s] %s\n", k.Anomaly.Gap, k.Anomaly.Description)
		if k.Anomaly.Recommendation != "" {
			fmt.Fprintf(w, "    -> %s\n", k.Anomaly.Recommendation)
		}
	}
	fmt.Fprintf(w, "  Combined coverage: %.0f%%  Blindness gap: %.0f  Unique anomalies: %d\n",
		a.CombinedCoverage, a.BlindnessGap, len(a.CombinedAnomalies))
}

func writeGraph(w io.Writer, g graph.Summary) {
	section(w, fmt.Sprintf("RELATION GRAPH: %d nodes, %d edges", g.Nodes, g.Edges))
	fmt.Fprintf(w, "  Schools: %d\n", len(g.Schools))
	for i, s := range g.Schools {
		fmt.Fprintf(w, "    %d. %s\n", i+1, strings.Join(s, ", "))
	}
	for _, f := range g.Fractures {
		fmt.Fprintf(w, "  Fracture: %s %s %s\n", f.A, f.Relation, f.B)
	}
	for _, is := range g.Islands {
		fmt.Fprintf(w, "  Island: %s (cited %d times, never searched)\n", is.Name, is.InDegree)
	}
	for _, a := range g.Authorities {
		state := "uninvestigated"
		if a.Investigated {
			state = "investigated"
		}
		fmt.Fprintf(w, "  Authority: %s (%d citations, %s)\n", a.Name, a.Citations, state)
	}
	if len(g.Chains) > 0 {
		fmt.Fprintln(w, "  Influence chains:")
		for _, c := range g.Chains {
			fmt.Fprintf(w, "    %s\n", strings.Join(c, " -> "))
		}
	}
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
