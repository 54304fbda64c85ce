// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package perspective

import (
	"context"
	"fmt"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/epistemic-audit/pkg/types"
)

// Compare arbitrates two agent reports. Every gap type reported by exactly
// one side becomes a known unknown, forced to HIGH. Combined coverage is
// the lower of the two scores and the blindness gap is their difference.
func Compare(a, b types.AgentReport) types.ArbiterResult {
	typesA, typesB := gapTypes(a.Anomalies), gapTypes(b.Anomalies)

	var agreements []types.GapType
	for g := range typesA {
		if typesB[g] {
			agreements = append(agreements, g)
		}
	}
	sort.Slice(agreements, func(i, j int) bool { return agreements[i] < agreements[j] })

	var unknowns []types.KnownUnknown
	unknowns = append(unknowns, oneSided(a, b, typesB)...)
	unknowns = append(unknowns, oneSided(b, a, typesA)...)

	combined := make([]types.Anomaly, 0, len(a.Anomalies)+len(b.Anomalies)+len(unknowns))
	for _, ku := range unknowns {
		combined = append(combined, ku.Anomaly)
	}
	combined = append(combined, a.Anomalies...)
	combined = append(combined, b.Anomalies...)
	combined = types.DedupAnomalies(combined)
	sort.SliceStable(combined, func(i, j int) bool { return combined[i].Severity > combined[j].Severity })

	lo := math.Min(a.Coverage, b.Coverage)
	hi := math.Max(a.Coverage, b.Coverage)
	return types.ArbiterResult{
		Alpha:             a,
		Beta:              b,
		Agreements:        agreements,
		KnownUnknowns:     unknowns,
		CombinedAnomalies: combined,
		CombinedCoverage:  lo,
		ExpectationTotal:  max(len(a.Expectations), len(b.Expectations)),
		BlindnessGap:      hi - lo,
	}
}

// oneSided returns a known unknown for each gap type in from that other
// never reported. The most severe anomaly of the type stands for it.
func oneSided(from, other types.AgentReport, otherTypes map[types.GapType]bool) []types.KnownUnknown {
	best := make(map[types.GapType]types.Anomaly)
	var order []types.GapType
	for _, an := range from.Anomalies {
		if otherTypes[an.Gap] {
			continue
		}
		cur, ok := best[an.Gap]
		if !ok {
			order = append(order, an.Gap)
		}
		if !ok || an.Severity > cur.Severity {
			best[an.Gap] = an
		}
	}

	out := make([]types.KnownUnknown, 0, len(order))
	for _, g := range order {
		an := best[g]
		an.Severity = types.SeverityHigh
		an.Description = fmt.Sprintf("%s (found by %s, missed by %s)", an.Description, from.Agent, other.Agent)
		out = append(out, types.KnownUnknown{Anomaly: an, FoundBy: from.Agent, MissedBy: other.Agent})
	}
	return out
}

func gapTypes(as []types.Anomaly) map[types.GapType]bool {
	m := make(map[types.GapType]bool, len(as))
	for _, a := range as {
		m[a.Gap] = true
	}
	return m
}

// RunPair runs both agents over the same shared state concurrently and
// compares their reports.
func RunPair(ctx context.Context, alpha, beta *Agent, s Shared) (types.ArbiterResult, error) {
	var ra, rb types.AgentReport
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := alpha.Run(gctx, s)
		ra = r
		return err
	})
	g.Go(func() error {
		r, err := beta.Run(gctx, s)
		rb = r
		return err
	})
	if err := g.Wait(); err != nil {
		return types.ArbiterResult{}, fmt.Errorf("running perspectives: %w", err)
	}
	return Compare(ra, rb), nil
}
