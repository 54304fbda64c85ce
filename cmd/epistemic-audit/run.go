// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/epistemic-audit/internal/engine"
	"github.com/pdiddy/epistemic-audit/internal/observability"
	"github.com/pdiddy/epistemic-audit/internal/provider"
	"github.com/pdiddy/epistemic-audit/internal/query"
	"github.com/pdiddy/epistemic-audit/internal/report"
	"github.com/pdiddy/epistemic-audit/internal/sink"
	"github.com/pdiddy/epistemic-audit/pkg/types"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run an audit session until it converges or runs out of budget",
	Long: `Run seeds a query batch for the topic, issues it through the selected
provider, and cycles: ingest findings, derive expectations, detect anomalies,
generate gap-filling queries. The session stops when coverage converges,
the query or cost budget is exhausted, or --max-cycles is reached.

Every cycle is recorded in the session database under --data-dir. The final
report is printed to stdout.`,
	RunE: runAudit,
}

func init() {
	addAuditFlags(runCmd)
	addRunFlags(runCmd)
	runCmd.Flags().String("queries", "", "query file (from seed) to use as the first batch")
	runCmd.Flags().String("session", "", "session ID (default: generated)")
	runCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")
	runCmd.Flags().Bool("no-store", false, "do not record the session in the database")
	runCmd.Flags().Bool("json", false, "print the final report as JSON")
	runCmd.Flags().Bool("quiet", false, "suppress per-cycle progress lines")

	rootCmd.AddCommand(runCmd)
}

func runAudit(cmd *cobra.Command, args []string) error {
	cfg, err := auditConfig()
	if err != nil {
		return err
	}
	prof, err := loadProfile()
	if err != nil {
		return err
	}
	if _, ok := prof.Country(cfg.Country); cfg.Country != "" && !ok {
		logger.Warn("country not in profile: only the lingua franca will be searched", zap.String("country", cfg.Country))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pcfg := providerConfig()
	conn, err := newConnector(pcfg, cfg.Budget.MaxCost, logger)
	if err != nil {
		return err
	}
	loc, err := newLocalizer(conn, logger)
	if err != nil {
		return err
	}

	sinks := sink.Multi{sink.Log{Logger: logger}}
	if !viper.GetBool("quiet") {
		sinks = append(sinks, progressPrinter{w: os.Stderr})
	}

	popts := []provider.Option{provider.WithRate(pcfg.RequestsPerSecond), provider.WithLogger(logger)}
	if addr := viper.GetString("metrics-addr"); addr != "" {
		reg := prometheus.NewRegistry()
		m := observability.NewMetrics(reg)
		sinks = append(sinks, sink.Metrics{M: m})
		popts = append(popts, provider.WithMetrics(m))
		go func() {
			if err := observability.Serve(ctx, addr, reg, logger); err != nil {
				logger.Error("metrics server", zap.Error(err))
			}
		}()
	}

	if !viper.GetBool("no-store") {
		store, err := sink.NewSQLite(viper.GetString("data-dir"), logger)
		if err != nil {
			return err
		}
		defer store.Close()
		sinks = append(sinks, store)
	}

	opts := []engine.Option{
		engine.WithProfile(prof),
		engine.WithProvider(provider.New(conn, popts...)),
		engine.WithLocalizer(loc),
		engine.WithSink(sinks),
		engine.WithLogger(logger),
	}
	if id := viper.GetString("session"); id != "" {
		opts = append(opts, engine.WithSessionID(id))
	}
	if path := viper.GetString("queries"); path != "" {
		qf, err := query.ReadFile(path)
		if err != nil {
			return err
		}
		opts = append(opts, engine.WithSeedQueries(qf.Queries))
	}

	eng := engine.New(cfg, opts...)
	logger.Info("starting audit",
		zap.String("session", eng.ID()),
		zap.String("topic", cfg.Topic),
		zap.String("country", cfg.Country),
		zap.String("provider", conn.Name()),
	)

	_, runErr := eng.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	if runErr != nil {
		logger.Warn("audit interrupted", zap.Int("cycle", eng.Cycle()))
	}

	r := eng.Report()
	if viper.GetBool("json") {
		return report.FormatJSON(r, os.Stdout)
	}
	report.FormatText(r, os.Stdout)
	fmt.Fprintf(os.Stdout, "\nSession %s\n", eng.ID())
	return nil
}

// progressPrinter writes one line per completed cycle.
type progressPrinter struct {
	w io.Writer
}

func (p progressPrinter) Record(_ context.Context, pr sink.Progress) error {
	s := pr.Snapshot
	fmt.Fprintf(p.w, "cycle %d: %d findings (+%d), %d anomalies, coverage %.1f [%s]\n",
		s.Cycle, s.Findings, s.NewFindings, s.Anomalies, s.Coverage, s.State)
	if s.State.Terminal() {
		fmt.Fprintf(p.w, "stopped: %s\n", stopReason(s.State))
	}
	return nil
}

func stopReason(s types.EngineState) string {
	switch s {
	case types.StateConverged:
		return "coverage converged"
	case types.StateBudgetExhausted:
		return "budget exhausted"
	case types.StateMaxCycles:
		return "maximum cycles reached"
	}
	return string(s)
}
