// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/epistemic-audit/internal/engine"
	"github.com/pdiddy/epistemic-audit/internal/localize"
	"github.com/pdiddy/epistemic-audit/internal/query"
	"github.com/pdiddy/epistemic-audit/pkg/types"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Generate the initial multilingual query batch for a topic",
	Long: `Seed builds the first query batch an audit would issue: the topic in the
lingua franca, transliterated into every relevant language of the country,
localized terminology for gated ecosystems, and cross-language routes into
walled gardens. Nothing is searched.

Use --output to save the batch for editing and pass it back with
run --queries.`,
	RunE: runSeed,
}

func init() {
	addAuditFlags(seedCmd)
	seedCmd.Flags().String("localizer", "static", "query localizer: static or claude")
	seedCmd.Flags().String("output", "", "write the batch to this YAML query file")
	seedCmd.Flags().Bool("json", false, "output the batch as JSON")

	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := auditConfig()
	if err != nil {
		return err
	}
	prof, err := loadProfile()
	if err != nil {
		return err
	}

	var loc localize.Localizer
	switch viper.GetString("localizer") {
	case "static", "":
		if loc, err = localize.NewStatic(); err != nil {
			return err
		}
	case "claude":
		pcfg := providerConfig()
		pcfg.Kind = types.ProviderClaude
		conn, err := newConnector(pcfg, 0, logger)
		if err != nil {
			return err
		}
		if loc, err = newLocalizer(conn, logger); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported localizer %q: use static or claude", viper.GetString("localizer"))
	}

	eng := engine.New(cfg,
		engine.WithProfile(prof),
		engine.WithLocalizer(loc),
		engine.WithLogger(logger),
	)
	queries := eng.Initialize(context.Background())

	if path := viper.GetString("output"); path != "" {
		if err := query.WriteFile(path, cfg, 0, queries); err != nil {
			return err
		}
		fmt.Printf("Wrote %d queries to %s\n", len(queries), path)
		return nil
	}
	if viper.GetBool("json") {
		return query.FormatJSON(queries, os.Stdout)
	}
	query.FormatTable(queries, os.Stdout)
	return nil
}
