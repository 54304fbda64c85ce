// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/epistemic-audit/internal/sink"
)

var exportCmd = &cobra.Command{
	Use:   "export [session]",
	Short: "Export a stored audit session to YAML or JSON",
	Long: `Export writes everything stored for a session (configuration, cycle
snapshots, findings, latest anomalies, postulates and the arbiter result)
to a single file. Without a session ID the most recently updated session is
exported. The default output is <data-dir>/<session>.<format>.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().String("format", "yaml", "export format: yaml or json")
	exportCmd.Flags().String("output", "", "output file path")

	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	format := viper.GetString("format")
	dataDir := viper.GetString("data-dir")

	store, err := sink.NewSQLite(dataDir, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	id, err := sessionArg(ctx, store, args)
	if err != nil {
		return err
	}

	out := viper.GetString("output")
	switch format {
	case "yaml", "":
		if out == "" {
			out = filepath.Join(dataDir, id+".yaml")
		}
		if err := store.ExportYAML(ctx, id, out); err != nil {
			return err
		}
	case "json":
		if out == "" {
			out = filepath.Join(dataDir, id+".json")
		}
		if err := store.ExportJSON(ctx, id, out); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported format %q: use yaml or json", format)
	}

	fmt.Println("Exported to", out)
	return nil
}
