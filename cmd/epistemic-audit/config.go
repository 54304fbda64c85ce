// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/epistemic-audit/internal/connector"
	"github.com/pdiddy/epistemic-audit/internal/localize"
	"github.com/pdiddy/epistemic-audit/internal/profile"
	"github.com/pdiddy/epistemic-audit/internal/provider"
	"github.com/pdiddy/epistemic-audit/internal/secrets"
	"github.com/pdiddy/epistemic-audit/pkg/types"
)

// addAuditFlags registers the pass-through audit parameters on cmd.
func addAuditFlags(cmd *cobra.Command) {
	cmd.Flags().String("topic", "", "research topic to audit (required)")
	cmd.Flags().String("country", "", "country the topic belongs to")
	cmd.Flags().String("discipline", "", "academic discipline of the topic")
	cmd.Flags().String("profile", "", "knowledge profile YAML (default: built-in)")
}

// addRunFlags registers the cycle, budget and provider flags of run.
func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().Int("max-cycles", 4, "maximum number of audit cycles")
	cmd.Flags().Float64("convergence-threshold", 2.0, "stop when coverage moves by less than this many points")
	cmd.Flags().Int("mention-threshold", 2, "mentions after which an uninvestigated entity must be researched")
	cmd.Flags().Int("min-island-citations", 2, "citations after which an unsearched entity is a citation island")
	cmd.Flags().Bool("dual", false, "run the two-perspective audit and arbiter every cycle")
	cmd.Flags().Int("queries-per-cycle", 10, "maximum queries issued per cycle")
	cmd.Flags().Int("total-queries", 0, "maximum queries issued per session (0 = unlimited)")
	cmd.Flags().Float64("max-cost", 0, "maximum provider spend in dollars (0 = unlimited)")

	cmd.Flags().String("provider", string(types.ProviderMock), "finding provider: mock, claude or openalex")
	cmd.Flags().String("fixture", "", "YAML fixture of canned responses for the mock provider")
	cmd.Flags().String("model", "", "AI model identifier for the claude provider")
	cmd.Flags().String("api-key", "", "API key for the claude provider (default: .secrets/anthropic-api-key)")
	cmd.Flags().String("email", "", "contact email for the OpenAlex polite pool")
	cmd.Flags().Float64("rate", 0, "provider requests per second (0 = unpaced)")
	cmd.Flags().Duration("timeout", 60*time.Second, "HTTP request timeout")
	cmd.Flags().Int("max-retries", 5, "retries on rate-limit and overload responses")
}

// auditConfig reads the audit parameters from flags, config file and
// environment.
func auditConfig() (types.AuditConfig, error) {
	cfg := types.AuditConfig{
		Topic:                viper.GetString("topic"),
		Country:              viper.GetString("country"),
		Discipline:           viper.GetString("discipline"),
		MaxCycles:            viper.GetInt("max-cycles"),
		ConvergenceThreshold: viper.GetFloat64("convergence-threshold"),
		MentionThreshold:     viper.GetInt("mention-threshold"),
		MinIslandCitations:   viper.GetInt("min-island-citations"),
		DualPerspective:      viper.GetBool("dual"),
		Budget: types.BudgetConfig{
			QueriesPerCycle: viper.GetInt("queries-per-cycle"),
			TotalQueries:    viper.GetInt("total-queries"),
			MaxCost:         viper.GetFloat64("max-cost"),
		},
	}
	if cfg.Topic == "" {
		return cfg, fmt.Errorf("--topic is required")
	}
	return cfg.WithDefaults(), nil
}

// providerConfig reads the provider settings.
func providerConfig() types.ProviderConfig {
	return types.ProviderConfig{
		HTTPConfig: types.HTTPConfig{
			Timeout:    viper.GetDuration("timeout"),
			UserAgent:  "epistemic-audit/" + version,
			MaxRetries: viper.GetInt("max-retries"),
		},
		AI: types.AIConfig{
			Model:  viper.GetString("model"),
			APIKey: secretDefault(secrets.AnthropicAPIKey, viper.GetString("api-key")),
		},
		Kind:              types.ProviderKind(viper.GetString("provider")),
		FixturePath:       viper.GetString("fixture"),
		Email:             secretDefault(secrets.OpenAlexEmail, viper.GetString("email")),
		RequestsPerSecond: viper.GetFloat64("rate"),
	}
}

// loadProfile returns the profile named by --profile, or the built-in one.
func loadProfile() (*profile.Profile, error) {
	if path := viper.GetString("profile"); path != "" {
		return profile.LoadFile(path)
	}
	return profile.Default(), nil
}

// newConnector builds the connector selected by cfg.Kind.
func newConnector(cfg types.ProviderConfig, maxCost float64, log *zap.Logger) (connector.Connector, error) {
	switch cfg.Kind {
	case types.ProviderMock, "":
		if cfg.FixturePath == "" {
			log.Warn("mock provider without a fixture: every query returns nothing")
			return connector.NewMock(), nil
		}
		fx, err := provider.LoadFixture(cfg.FixturePath)
		if err != nil {
			return nil, err
		}
		return fx.Mock()
	case types.ProviderClaude:
		if cfg.AI.APIKey == "" {
			return nil, fmt.Errorf("claude provider needs an API key: set --api-key, .secrets/%s or ANTHROPIC_API_KEY", secrets.AnthropicAPIKey)
		}
		return connector.NewClaude(cfg, maxCost, log), nil
	case types.ProviderOpenAlex:
		return connector.NewOpenAlex(cfg, log), nil
	}
	return nil, fmt.Errorf("unknown provider %q: use mock, claude or openalex", cfg.Kind)
}

// newLocalizer returns the static term tables, backed by the connector's
// language model when it has one.
func newLocalizer(conn connector.Connector, log *zap.Logger) (localize.Localizer, error) {
	static, err := localize.NewStatic()
	if err != nil {
		return nil, err
	}
	if _, ok := conn.(*connector.Claude); ok {
		return localize.NewChain(log, static, localize.NewModel(conn, log)), nil
	}
	return static, nil
}
