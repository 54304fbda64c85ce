// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "epistemic_audit"

// Metrics holds the collectors updated by the progress sink and the
// finding provider.
type Metrics struct {
	Cycles           prometheus.Counter
	Coverage         prometheus.Gauge
	CombinedCoverage prometheus.Gauge
	BlindnessGap     prometheus.Gauge
	Findings         prometheus.Gauge
	Anomalies        *prometheus.GaugeVec
	KnownUnknowns    prometheus.Gauge
	Postulates       prometheus.Gauge
	QueriesIssued    prometheus.Counter
	ProviderCalls    *prometheus.CounterVec
	ProviderLatency  *prometheus.HistogramVec
	ProviderCost     prometheus.Gauge
}

// NewMetrics registers the audit collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Cycles: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Total number of completed audit cycles",
		}),
		Coverage: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "coverage_score",
			Help:      "Coverage score of the latest cycle",
		}),
		CombinedCoverage: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "combined_coverage_score",
			Help:      "Arbiter combined coverage of the latest cycle",
		}),
		BlindnessGap: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "blindness_gap",
			Help:      "Coverage difference between the two perspectives",
		}),
		Findings: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "findings",
			Help:      "Number of deduplicated findings",
		}),
		Anomalies: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "anomalies",
			Help:      "Open anomalies by severity",
		}, []string{"severity"}),
		KnownUnknowns: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "known_unknowns",
			Help:      "Anomaly types found by only one perspective",
		}),
		Postulates: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "weighted_postulates",
			Help:      "Number of weighted postulates",
		}),
		QueriesIssued: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_issued_total",
			Help:      "Total number of queries sent to the finding provider",
		}),
		ProviderCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_calls_total",
			Help:      "Finding provider calls by outcome",
		}, []string{"outcome"}),
		ProviderLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_latency_seconds",
			Help:      "Latency of finding provider calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		ProviderCost: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "provider_cost",
			Help:      "Accumulated provider cost",
		}),
	}
}

// Serve exposes reg on addr at /metrics until ctx is done.
func Serve(ctx context.Context, addr string, reg *prometheus.Registry, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	logger.Info("serving metrics", zap.String("addr", addr))

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving metrics: %w", err)
	case <-ctx.Done():
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdown)
	}
}
