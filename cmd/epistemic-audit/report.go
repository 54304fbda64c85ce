// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/epistemic-audit/internal/report"
	"github.com/pdiddy/epistemic-audit/internal/sink"
)

var reportCmd = &cobra.Command{
	Use:   "report [session]",
	Short: "Print the report of a stored audit session",
	Long: `Report reads a session from the database under --data-dir and prints its
postulates, findings, latest anomalies, suggested queries, coverage verdict
and evolution. Without a session ID the most recently updated session is
used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReport,
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List stored audit sessions",
	RunE:  runSessions,
}

func init() {
	reportCmd.Flags().Bool("json", false, "output the report as JSON")

	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(sessionsCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	store, err := sink.NewSQLite(viper.GetString("data-dir"), logger)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	id, err := sessionArg(ctx, store, args)
	if err != nil {
		return err
	}
	e, err := store.Load(ctx, id)
	if err != nil {
		return err
	}

	r := storedReport(e)
	if viper.GetBool("json") {
		return report.FormatJSON(r, os.Stdout)
	}
	report.FormatText(r, os.Stdout)
	return nil
}

func runSessions(cmd *cobra.Command, args []string) error {
	store, err := sink.NewSQLite(viper.GetString("data-dir"), logger)
	if err != nil {
		return err
	}
	defer store.Close()

	sessions, err := store.Sessions(context.Background())
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println("No sessions found.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-36s  %-30s  %-18s  %-5s  %s\n", "Session", "Topic", "State", "Cycle", "Updated")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 110))
	for _, s := range sessions {
		topic := s.Config.Topic
		if len(topic) > 30 {
			topic = topic[:27] + "..."
		}
		fmt.Fprintf(os.Stdout, "%-36s  %-30s  %-18s  %-5d  %s\n",
			s.ID, topic, s.State, s.LastCycle, s.UpdatedAt.Format("2006-01-02 15:04"))
	}
	fmt.Fprintf(os.Stdout, "\n%d sessions\n", len(sessions))
	return nil
}

// sessionArg returns the session named in args, or the most recently
// updated one.
func sessionArg(ctx context.Context, store *sink.SQLite, args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	sessions, err := store.Sessions(ctx)
	if err != nil {
		return "", err
	}
	if len(sessions) == 0 {
		return "", fmt.Errorf("no sessions in %s: run an audit first", store.Path())
	}
	return sessions[0].ID, nil
}

// storedReport rebuilds a report from a stored session. Expectations and
// the relation graph are not persisted, so those sections are omitted.
func storedReport(e sink.Export) report.Report {
	r := report.Report{
		SessionID:  e.Session.ID,
		Config:     e.Session.Config,
		State:      e.Session.State,
		Cycle:      e.Session.LastCycle,
		Postulates: e.Postulates,
		Findings:   e.Findings,
		Anomalies:  report.SortAnomalies(e.Anomalies),
		History:    e.Snapshots,
		Arbiter:    e.Arbiter,
	}
	if n := len(e.Snapshots); n > 0 {
		r.Coverage = e.Snapshots[n-1].Coverage
	}
	return r
}
