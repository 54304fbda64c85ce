// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the epistemic-audit CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/epistemic-audit/internal/observability"
	"github.com/pdiddy/epistemic-audit/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	// loadedSecrets holds API keys loaded from .secrets/ and .env at startup.
	loadedSecrets secrets.Secrets

	// logger is configured from --log-level and --log-json before any
	// subcommand runs.
	logger = zap.NewNop()
)

// secretDefault returns fallback if set, or the secret value for key.
func secretDefault(key, fallback string) string {
	if fallback != "" {
		return fallback
	}
	return loadedSecrets.Get(key)
}

// rootCmd is the base command for the epistemic-audit CLI.
var rootCmd = &cobra.Command{
	Use:   "epistemic-audit",
	Short: "Audit a body of research for the gaps nobody noticed",
	Long: `epistemic-audit runs cycles of multilingual searches over a research topic,
accumulates what the findings reveal (scholars, theories, institutions,
languages, citations), derives what else should exist, and reports the
anomalies where it does not: missing languages, unsourced theories,
uninvestigated authorities, echo-chamber schools of thought.

Use seed to preview the initial query batch, run to execute an audit, and
report or export to inspect a stored session.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := viper.BindPFlags(cmd.Flags()); err != nil {
			return fmt.Errorf("binding flags: %w", err)
		}

		l, err := observability.NewLogger(viper.GetString("log-level"), viper.GetBool("log-json"))
		if err != nil {
			return err
		}
		logger = l

		s, err := secrets.Load(".secrets/", ".env")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			logger.Debug("loaded secrets", zap.Strings("keys", keys))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./epistemic-audit.yaml or ~/.config/epistemic-audit/epistemic-audit.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().Bool("log-json", false, "write logs as JSON")
	rootCmd.PersistentFlags().String("data-dir", "audit-data", "directory holding the session database and exports")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("epistemic-audit")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "epistemic-audit"))
		}
	}

	viper.SetEnvPrefix("EPISTEMIC_AUDIT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
