// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package engine drives an audit session: it owns the postulate store and
// the relation graph, runs the cycle loop (ingest, infer, satisfy, audit,
// generate queries) and keeps the cross-cycle history.
//
// An Engine is driven by one goroutine. When a provider is attached,
// RunCycle issues the pending queries itself; otherwise the caller runs
// them and hands the results back through Absorb or Ingest.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pdiddy/epistemic-audit/internal/audit"
	"github.com/pdiddy/epistemic-audit/internal/graph"
	"github.com/pdiddy/epistemic-audit/internal/inference"
	"github.com/pdiddy/epistemic-audit/internal/localize"
	"github.com/pdiddy/epistemic-audit/internal/perspective"
	"github.com/pdiddy/epistemic-audit/internal/postulate"
	"github.com/pdiddy/epistemic-audit/internal/profile"
	"github.com/pdiddy/epistemic-audit/internal/provider"
	"github.com/pdiddy/epistemic-audit/internal/query"
	"github.com/pdiddy/epistemic-audit/internal/report"
	"github.com/pdiddy/epistemic-audit/internal/sink"
	"github.com/pdiddy/epistemic-audit/pkg/types"
)

// ErrTerminated is returned when a session in a terminal state is asked to
// do more work.
var ErrTerminated = errors.New("audit session has terminated")

// Engine is one audit session.
type Engine struct {
	id     string
	cfg    types.AuditConfig
	prof   *profile.Profile
	logger *zap.Logger

	store     *postulate.Store
	graph     *graph.Graph
	gen       *query.Generator
	infer     *inference.Engine
	auditor   *audit.Auditor
	provider  *provider.Provider
	sink      sink.ProgressSink
	localizer localize.Localizer
	seed      []types.SearchQuery
	alpha     *perspective.Agent
	beta      *perspective.Agent

	state     types.EngineState
	cycle     int
	findings  []types.Finding
	seen      map[types.FindingKey]bool
	relations []types.SemanticRelation

	expectations []types.Expectation
	anomalies    []types.Anomaly
	arbiter      *types.ArbiterResult
	pending      []types.SearchQuery
	history      []types.CycleSnapshot

	issuedTotal     int
	issuedCycle     int
	newFindings     int
	newEntities     []string
	budgetExhausted bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithProfile sets the knowledge profile. The default is profile.Default().
func WithProfile(p *profile.Profile) Option {
	return func(e *Engine) {
		if p != nil {
			e.prof = p
		}
	}
}

// WithProvider attaches a finding provider so RunCycle issues the pending
// queries itself.
func WithProvider(p *provider.Provider) Option {
	return func(e *Engine) { e.provider = p }
}

// WithSink sets where per-cycle progress is recorded.
func WithSink(s sink.ProgressSink) Option {
	return func(e *Engine) { e.sink = s }
}

// WithLocalizer sets the localizer used by the query generator.
func WithLocalizer(l localize.Localizer) Option {
	return func(e *Engine) { e.localizer = l }
}

// WithSeedQueries replaces the generated initial batch, for example with
// one a researcher reviewed after the seed command wrote it.
func WithSeedQueries(qs []types.SearchQuery) Option {
	return func(e *Engine) { e.seed = qs }
}

// WithSessionID overrides the generated session ID.
func WithSessionID(id string) Option {
	return func(e *Engine) {
		if id != "" {
			e.id = id
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New returns an engine for cfg. Zero config fields take their defaults.
func New(cfg types.AuditConfig, opts ...Option) *Engine {
	e := &Engine{
		id:     uuid.NewString(),
		cfg:    cfg.WithDefaults(),
		logger: zap.NewNop(),
		seen:   make(map[types.FindingKey]bool),
	}
	for _, o := range opts {
		o(e)
	}
	if e.prof == nil {
		e.prof = profile.Default()
	}
	e.logger = e.logger.With(zap.String("session", e.id))

	e.store = postulate.NewStore(e.prof, e.cfg.Topic, e.cfg.Country, e.cfg.Discipline,
		postulate.WithBaseConfidence(e.cfg.BaseConfidence),
		postulate.WithDecayRate(e.cfg.DecayRate),
		postulate.WithLogger(e.logger),
	)
	e.graph = graph.New(e.prof,
		graph.WithMinCitations(e.cfg.MinIslandCitations),
		graph.WithLogger(e.logger),
	)
	e.gen = query.New(e.store, query.WithLocalizer(e.localizer), query.WithLogger(e.logger))
	e.infer = inference.New(
		inference.WithMentionThreshold(e.cfg.MentionThreshold),
		inference.WithLogger(e.logger),
	)
	e.auditor = audit.New(e.logger)
	if e.cfg.DualPerspective {
		e.alpha = perspective.NewAgent(perspective.Alpha, e.infer, e.logger)
		e.beta = perspective.NewAgent(perspective.Beta, e.infer, e.logger)
	}
	return e
}

// ID returns the session ID.
func (e *Engine) ID() string { return e.id }

// Config returns the effective configuration.
func (e *Engine) Config() types.AuditConfig { return e.cfg }

// State returns the lifecycle state; empty before Initialize.
func (e *Engine) State() types.EngineState { return e.state }

// Cycle returns the number of completed cycles.
func (e *Engine) Cycle() int { return e.cycle }

// Store returns the session's postulate store.
func (e *Engine) Store() *postulate.Store { return e.store }

// Graph returns the session's relation graph.
func (e *Engine) Graph() *graph.Graph { return e.graph }

// Findings returns the deduplicated findings in arrival order.
func (e *Engine) Findings() []types.Finding {
	return append([]types.Finding(nil), e.findings...)
}

// Expectations returns the expectations of the latest cycle.
func (e *Engine) Expectations() []types.Expectation {
	return append([]types.Expectation(nil), e.expectations...)
}

// Anomalies returns the anomalies of the latest cycle, most severe first.
func (e *Engine) Anomalies() []types.Anomaly {
	return append([]types.Anomaly(nil), e.anomalies...)
}

// Arbiter returns the latest arbiter result, or nil when the session runs a
// single perspective.
func (e *Engine) Arbiter() *types.ArbiterResult { return e.arbiter }

// PendingQueries returns the queries the next cycle will issue, highest
// priority first.
func (e *Engine) PendingQueries() []types.SearchQuery {
	return append([]types.SearchQuery(nil), e.pending...)
}

// History returns every cycle snapshot so far.
func (e *Engine) History() []types.CycleSnapshot {
	return append([]types.CycleSnapshot(nil), e.history...)
}

// Postulates returns the weighted postulates ordered by key.
func (e *Engine) Postulates() []types.WeightedPostulate {
	m := e.store.WeightedPostulates()
	out := make([]types.WeightedPostulate, 0, len(m))
	for _, p := range m {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Initialize seeds the session and returns the initial query batch. Calling
// it again returns the current pending batch.
func (e *Engine) Initialize(ctx context.Context) []types.SearchQuery {
	if e.state == "" {
		seed := e.seed
		if len(seed) == 0 {
			seed = e.gen.Initial(ctx, e.cfg.Topic, e.cfg.Country, e.cfg.Discipline)
		}
		e.pending = query.Triage(seed, -1)
		e.state = types.StateSeeded
		e.logger.Info("session seeded",
			zap.String("topic", e.cfg.Topic),
			zap.String("country", e.cfg.Country),
			zap.Int("queries", len(e.pending)),
		)
	}
	return e.PendingQueries()
}

// Ingest adds findings that arrived since the last cycle and returns the
// names of newly created entities. Findings missing a source or language,
// or whose identity was already ingested, are dropped silently.
func (e *Engine) Ingest(findings []types.Finding) ([]string, error) {
	if e.state.Terminal() {
		return nil, ErrTerminated
	}
	var created []string
	for _, f := range findings {
		if !f.Valid() {
			e.logger.Debug("dropping malformed finding", zap.String("source", f.Source))
			continue
		}
		k := f.Key()
		if e.seen[k] {
			continue
		}
		e.seen[k] = true
		f.Cycle = e.cycle + 1
		e.findings = append(e.findings, f)
		e.newFindings++
		created = append(created, e.store.Ingest(f)...)
		e.graph.AddFinding(f)
	}
	e.newEntities = append(e.newEntities, created...)
	return created, nil
}

// AddRelations queues typed edges for the relation graph. They are folded
// in at the start of the next cycle.
func (e *Engine) AddRelations(rels []types.SemanticRelation) error {
	if e.state.Terminal() {
		return ErrTerminated
	}
	for _, r := range rels {
		if r.Cycle == 0 {
			r.Cycle = e.cycle + 1
		}
		e.relations = append(e.relations, r)
	}
	return nil
}

// Absorb records the outcome of one issued query: its target counts as
// directly searched, an empty result becomes a negative postulate, and
// findings and relations are queued for the next cycle.
func (e *Engine) Absorb(q types.SearchQuery, findings []types.Finding, rels []types.SemanticRelation) ([]string, error) {
	if e.state.Terminal() {
		return nil, ErrTerminated
	}
	e.issuedTotal++
	e.issuedCycle++
	e.graph.MarkSearched(q.Target)

	before := len(e.findings)
	created, err := e.Ingest(findings)
	if err != nil {
		return nil, err
	}
	if len(findings) == 0 {
		e.store.RecordEmptyQuery(q, e.cycle+1)
	} else if len(e.findings) == before {
		e.logger.Debug("query returned only known findings", zap.String("query", q.Text))
	}
	return created, e.AddRelations(rels)
}

// ExhaustBudget marks the session budget as spent. The session ends with
// BUDGET_EXHAUSTED after the next cycle, or immediately if one has already
// completed.
func (e *Engine) ExhaustBudget() {
	e.budgetExhausted = true
	if len(e.history) > 0 && !e.state.Terminal() {
		e.state = types.StateBudgetExhausted
	}
}

// RunCycle runs one audit cycle and returns its snapshot. With a provider
// attached it first issues the pending queries within the per-cycle and
// session budgets. Provider failures only make the cycle quieter; the
// returned error is ErrTerminated or the context's error. A cycle that
// fails leaves the cycle counter, results and queued relations as they were.
func (e *Engine) RunCycle(ctx context.Context) (types.CycleSnapshot, error) {
	if e.state.Terminal() {
		return types.CycleSnapshot{}, ErrTerminated
	}
	if e.state == "" {
		e.Initialize(ctx)
	}
	if err := ctx.Err(); err != nil {
		return types.CycleSnapshot{}, err
	}

	if e.provider != nil {
		e.issue(ctx)
		if err := ctx.Err(); err != nil {
			return types.CycleSnapshot{}, err
		}
	}

	// Session state is committed only once the cycle can no longer fail.
	// Relations stay queued until then; folding them again is a no-op.
	cycle := e.cycle + 1
	for _, r := range e.relations {
		e.graph.AddRelation(r)
	}

	stats := audit.Stats{Findings: len(e.findings), QueriesIssued: e.issuedTotal, Claims: audit.ClaimsOf(e.findings)}
	exps := e.infer.Derive(e.store, cycle)
	e.infer.Satisfy(exps, e.findings, e.store)
	anomalies := e.auditor.Run(exps, e.graph.Anomalies(cycle), e.store, stats, cycle)
	coverage := audit.Score(exps, anomalies)

	var arbiter *types.ArbiterResult
	if e.alpha != nil && e.beta != nil {
		res, err := perspective.RunPair(ctx, e.alpha, e.beta, perspective.Shared{
			View:     e.store.Freeze(),
			Graph:    e.graph,
			Findings: e.findings,
			Stats:    stats,
			Cycle:    cycle,
		})
		if err != nil {
			return types.CycleSnapshot{}, err
		}
		arbiter = &res
		merged := append([]types.Anomaly(nil), anomalies...)
		for _, k := range res.KnownUnknowns {
			merged = append(merged, k.Anomaly)
		}
		anomalies = report.SortAnomalies(types.DedupAnomalies(merged))
	}

	e.cycle = cycle
	e.state = types.StateCycling
	e.relations = nil
	e.expectations, e.anomalies, e.arbiter = exps, anomalies, arbiter

	e.pending = e.nextQueries(ctx)
	snap := e.snapshot(coverage)
	e.state = e.nextState(snap)
	snap.State = e.state
	e.history = append(e.history, snap)

	e.record(ctx, snap)
	e.issuedCycle, e.newFindings, e.newEntities = 0, 0, nil
	return snap, nil
}

// Run initializes the session if needed and runs cycles until a terminal
// state. It returns the full history.
func (e *Engine) Run(ctx context.Context) ([]types.CycleSnapshot, error) {
	e.Initialize(ctx)
	for !e.state.Terminal() {
		if _, err := e.RunCycle(ctx); err != nil {
			return e.History(), fmt.Errorf("running cycle %d: %w", e.cycle+1, err)
		}
	}
	return e.History(), nil
}

// issue sends the pending queries to the provider, bounded by the per-cycle
// query budget, the remaining session query budget and the cost cap.
func (e *Engine) issue(ctx context.Context) {
	budget := e.cfg.Budget.QueriesPerCycle
	if total := e.cfg.Budget.TotalQueries; total > 0 {
		remaining := total - e.issuedTotal
		if remaining <= 0 {
			e.budgetExhausted = true
			return
		}
		if budget <= 0 || remaining < budget {
			budget = remaining
		}
	}
	if budget <= 0 {
		budget = -1
	}

	batch := e.provider.Batch(ctx, query.Triage(e.pending, budget), e.cfg.Budget.MaxCost)
	for _, r := range batch.Responses {
		if r.Failed {
			e.issuedTotal++
			e.issuedCycle++
			continue
		}
		if _, err := e.Absorb(r.Query, r.Findings, r.Relations); err != nil {
			return
		}
	}
	if batch.BudgetExhausted {
		e.budgetExhausted = true
	}
	e.logger.Info("queries issued",
		zap.Int("cycle", e.cycle+1),
		zap.Int("issued", batch.Issued()),
		zap.Int("new_findings", e.newFindings),
		zap.Float64("cost", e.provider.Cost()),
	)
}

func (e *Engine) nextQueries(ctx context.Context) []types.SearchQuery {
	var qs []types.SearchQuery
	qs = append(qs, e.gen.GapFilling(ctx, e.anomalies)...)
	qs = append(qs, e.gen.Verification(e.cycle, e.cfg.CyclesPerMonth)...)
	qs = append(qs, e.gen.Reformulations(e.cycle)...)
	return query.Triage(qs, -1)
}

func (e *Engine) snapshot(coverage float64) types.CycleSnapshot {
	sum := e.store.Snapshot()
	snap := types.CycleSnapshot{
		Cycle:              e.cycle,
		Scholars:           sum.Scholars,
		Theories:           sum.Theories,
		Institutions:       sum.Institutions,
		Entities:           sum.Entities,
		WeightedPostulates: sum.WeightedPostulates,
		NegativePostulates: sum.NegativePostulates,
		Expectations:       len(e.expectations),
		Findings:           len(e.findings),
		NewFindings:        e.newFindings,
		Anomalies:          len(e.anomalies),
		Coverage:           coverage,
		Relations:          e.graph.EdgeCount(),
		Schools:            len(e.graph.Schools()),
		Fractures:          len(e.graph.Fractures()),
		QueriesIssued:      e.issuedCycle,
		QueriesGenerated:   len(e.pending),
		NewEntities:        append([]string(nil), e.newEntities...),
	}
	for _, x := range e.expectations {
		if x.Met {
			snap.ExpectationsMet++
		}
	}
	if e.arbiter != nil {
		snap.KnownUnknowns = len(e.arbiter.KnownUnknowns)
		snap.CombinedCoverage = e.arbiter.CombinedCoverage
		snap.BlindnessGap = e.arbiter.BlindnessGap
	}
	if e.provider != nil {
		snap.Cost = e.provider.Cost()
	}
	return snap
}

// nextState applies the termination rules in order: convergence, budget,
// cycle cap.
func (e *Engine) nextState(snap types.CycleSnapshot) types.EngineState {
	if n := len(e.history); n > 0 {
		prev := e.history[n-1].Coverage
		if math.Abs(snap.Coverage-prev) < e.cfg.ConvergenceThreshold {
			return types.StateConverged
		}
	}
	if e.budgetExhausted || e.costSpent() {
		return types.StateBudgetExhausted
	}
	if e.cycle >= e.cfg.MaxCycles {
		return types.StateMaxCycles
	}
	return types.StateCycling
}

func (e *Engine) costSpent() bool {
	if total := e.cfg.Budget.TotalQueries; total > 0 && e.issuedTotal >= total {
		return true
	}
	return e.provider != nil && e.cfg.Budget.MaxCost > 0 && e.provider.Cost() >= e.cfg.Budget.MaxCost
}

func (e *Engine) record(ctx context.Context, snap types.CycleSnapshot) {
	if e.sink == nil {
		return
	}
	p := sink.Progress{
		SessionID:  e.id,
		Config:     e.cfg,
		Snapshot:   snap,
		Findings:   e.Findings(),
		Anomalies:  e.Anomalies(),
		Postulates: e.Postulates(),
		Negatives:  e.store.NegativePostulates(),
		Arbiter:    e.arbiter,
	}
	if err := e.sink.Record(ctx, p); err != nil {
		e.logger.Warn("recording progress", zap.Int("cycle", snap.Cycle), zap.Error(err))
	}
}

// Report assembles the current state for rendering.
func (e *Engine) Report() report.Report {
	sum := e.graph.Summarize()
	r := report.Report{
		SessionID:    e.id,
		Config:       e.cfg,
		State:        e.state,
		Cycle:        e.cycle,
		Postulates:   e.Postulates(),
		Negatives:    e.store.NegativePostulates(),
		Expectations: e.Expectations(),
		Findings:     e.Findings(),
		Anomalies:    e.Anomalies(),
		Queries:      e.PendingQueries(),
		History:      e.History(),
		Arbiter:      e.arbiter,
		Graph:        &sum,
	}
	if n := len(e.history); n > 0 {
		r.Coverage = e.history[n-1].Coverage
	}
	return r
}
