// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package provider runs search queries against a connector and turns the
// replies into findings and relations.
//
// The provider is where failures stop. Connector errors are logged and
// reported as a failed response; the engine treats a failed response the
// same as a quiet one.
package provider

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pdiddy/epistemic-audit/internal/connector"
	"github.com/pdiddy/epistemic-audit/internal/observability"
	"github.com/pdiddy/epistemic-audit/pkg/types"
)

// Response is the outcome of one query.
type Response struct {
	Query     types.SearchQuery
	Findings  []types.Finding
	Relations []types.SemanticRelation
	// Empty is set when the search completed and found nothing.
	Empty bool
	// Failed is set when the connector errored or its reply could not be
	// parsed. Failed responses carry no findings and are not evidence of
	// absence.
	Failed bool

	err error
}

// Batch is the outcome of a batch of queries.
type Batch struct {
	Responses []Response
	// BudgetExhausted is set when the batch stopped early because the
	// connector's cost reached the budget.
	BudgetExhausted bool
}

// Issued returns the number of queries that reached the connector.
func (b Batch) Issued() int { return len(b.Responses) }

// Provider executes queries through a connector.
type Provider struct {
	conn    connector.Connector
	limiter *rate.Limiter
	metrics *observability.Metrics
	logger  *zap.Logger
}

// Option configures a Provider.
type Option func(*Provider)

// WithRate paces connector calls to rps per second. Zero disables pacing.
func WithRate(rps float64) Option {
	return func(p *Provider) {
		if rps > 0 {
			p.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithMetrics records call outcomes and latency.
func WithMetrics(m *observability.Metrics) Option {
	return func(p *Provider) { p.metrics = m }
}

// WithLogger attaches a logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Provider) {
		if l != nil {
			p.logger = l
		}
	}
}

// New returns a Provider over conn.
func New(conn connector.Connector, opts ...Option) *Provider {
	p := &Provider{conn: conn, logger: zap.NewNop()}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Connector returns the underlying connector.
func (p *Provider) Connector() connector.Connector { return p.conn }

// Cost returns the connector's spend so far.
func (p *Provider) Cost() float64 { return p.conn.Cost() }

// Execute runs one query. It never returns an error: failures are logged
// and reported through Response.Failed.
func (p *Provider) Execute(ctx context.Context, q types.SearchQuery) Response {
	resp := Response{Query: q}
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			resp.Failed = true
			return resp
		}
	}

	start := time.Now()
	text, err := p.conn.Search(ctx, q)
	outcome := "ok"
	defer func() {
		if p.metrics != nil {
			p.metrics.ProviderCalls.WithLabelValues(outcome).Inc()
			p.metrics.ProviderLatency.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
			p.metrics.ProviderCost.Set(p.conn.Cost())
		}
	}()

	if err != nil {
		outcome = "failed"
		resp.Failed = true
		resp.err = err
		p.logger.Warn("search failed",
			zap.String("connector", p.conn.Name()),
			zap.String("query", q.Text),
			zap.Error(err),
		)
		return resp
	}

	findings, relations, err := Parse(text, q)
	if err != nil {
		outcome = "failed"
		resp.Failed = true
		resp.err = err
		p.logger.Warn("unparseable search reply",
			zap.String("query", q.Text),
			zap.Int("bytes", len(text)),
			zap.Error(err),
		)
		return resp
	}
	resp.Findings = findings
	resp.Relations = relations
	resp.Empty = len(findings) == 0
	if resp.Empty {
		outcome = "empty"
	}
	p.logger.Debug("search complete",
		zap.String("query", q.Text),
		zap.String("language", q.Language),
		zap.Int("findings", len(findings)),
		zap.Int("relations", len(relations)),
	)
	return resp
}

// Batch runs queries in order, stopping before a call once the
// connector's cost has reached maxCost (zero means unlimited), when the
// connector reports its own budget exceeded, or when ctx is done.
func (p *Provider) Batch(ctx context.Context, queries []types.SearchQuery, maxCost float64) Batch {
	var b Batch
	for _, q := range queries {
		if ctx.Err() != nil {
			break
		}
		if maxCost > 0 && p.conn.Cost() >= maxCost {
			b.BudgetExhausted = true
			break
		}
		r := p.Execute(ctx, q)
		if errors.Is(r.err, connector.ErrBudgetExceeded) {
			b.BudgetExhausted = true
			break
		}
		b.Responses = append(b.Responses, r)
	}
	return b
}
