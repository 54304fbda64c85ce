// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package perspective runs the audit under two axiom weightings and
// arbitrates their disagreements into known unknowns.
//
// A perspective is a weighting over the meta-axiom categories. Categories
// weighted zero are blind spots: the agent neither derives expectations for
// them nor reports their anomalies. Both agents read the same frozen
// postulate view and relation graph, so they may run concurrently.
package perspective

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/pdiddy/epistemic-audit/internal/audit"
	"github.com/pdiddy/epistemic-audit/internal/graph"
	"github.com/pdiddy/epistemic-audit/internal/inference"
	"github.com/pdiddy/epistemic-audit/internal/postulate"
	"github.com/pdiddy/epistemic-audit/pkg/types"
)

// PromoteWeight is the axiom weight at which MEDIUM anomalies are
// reported as HIGH.
const PromoteWeight = 1.5

// Profile is a named axiom weighting. Missing axioms weigh 1.
type Profile struct {
	Name    string
	Focus   string
	Weights map[types.Axiom]float64
}

// Weight returns the weight of axiom a.
func (p Profile) Weight(a types.Axiom) float64 {
	if w, ok := p.Weights[a]; ok {
		return w
	}
	return 1
}

// Alpha emphasizes languages, institutions, schools and publication
// channels. It is blind to theory support.
var Alpha = Profile{
	Name:  "alpha",
	Focus: "institutions, traditions, geographic coverage",
	Weights: map[types.Axiom]float64{
		types.AxiomLanguage:    2.0,
		types.AxiomInstitution: 2.0,
		types.AxiomSchool:      1.5,
		types.AxiomPublication: 1.5,
		types.AxiomDiscipline:  1.0,
		types.AxiomTemporal:    1.0,
		types.AxiomTheory:      0,
	},
}

// Beta emphasizes theories, disciplines and time. It is blind to
// institutional coverage.
var Beta = Profile{
	Name:  "beta",
	Focus: "theories, evidence, argumentation",
	Weights: map[types.Axiom]float64{
		types.AxiomTheory:      2.0,
		types.AxiomDiscipline:  1.5,
		types.AxiomTemporal:    1.5,
		types.AxiomLanguage:    1.0,
		types.AxiomSchool:      1.0,
		types.AxiomPublication: 1.0,
		types.AxiomInstitution: 0,
	},
}

// Shared is the read-only state both agents audit in one round.
type Shared struct {
	View     postulate.View
	Graph    *graph.Graph
	Findings []types.Finding
	Stats    audit.Stats
	Cycle    int
}

// Agent runs inference, satisfaction and audit under one profile.
type Agent struct {
	profile Profile
	engine  *inference.Engine
	auditor *audit.Auditor
	logger  *zap.Logger
}

// NewAgent returns an agent for profile p. A nil engine uses the inference
// defaults; a nil logger discards output.
func NewAgent(p Profile, engine *inference.Engine, logger *zap.Logger) *Agent {
	if engine == nil {
		engine = inference.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Agent{
		profile: p,
		engine:  engine,
		auditor: audit.New(logger),
		logger:  logger.With(zap.String("agent", p.Name)),
	}
}

// Profile returns the agent's weighting.
func (a *Agent) Profile() Profile { return a.profile }

// Run audits the shared state and returns the agent's report. It only
// fails when ctx is done.
func (a *Agent) Run(ctx context.Context, s Shared) (types.AgentReport, error) {
	if err := ctx.Err(); err != nil {
		return types.AgentReport{}, err
	}

	var exps []types.Expectation
	for _, x := range a.engine.Derive(s.View, s.Cycle) {
		if a.profile.Weight(x.Axiom) > 0 {
			exps = append(exps, x)
		}
	}
	a.engine.Satisfy(exps, s.Findings, s.View)

	var prior []types.Anomaly
	if s.Graph != nil {
		prior = s.Graph.Anomalies(s.Cycle)
	}
	var anomalies []types.Anomaly
	for _, an := range a.auditor.Run(exps, prior, s.View, s.Stats, s.Cycle) {
		w := a.profile.Weight(an.Gap.Axiom())
		if w == 0 {
			continue
		}
		if an.Severity == types.SeverityMedium && w >= PromoteWeight {
			an.Severity = types.SeverityHigh
		}
		anomalies = append(anomalies, an)
	}
	sort.SliceStable(anomalies, func(i, j int) bool { return anomalies[i].Severity > anomalies[j].Severity })

	if err := ctx.Err(); err != nil {
		return types.AgentReport{}, err
	}
	r := types.AgentReport{
		Agent:        a.profile.Name,
		Focus:        a.profile.Focus,
		Expectations: exps,
		Anomalies:    anomalies,
		Coverage:     audit.Score(exps, anomalies),
	}
	a.logger.Debug("perspective audit",
		zap.Int("cycle", s.Cycle),
		zap.Int("expectations", len(exps)),
		zap.Int("met", r.MetCount()),
		zap.Int("anomalies", len(anomalies)),
		zap.Float64("coverage", r.Coverage),
	)
	return r, nil
}
