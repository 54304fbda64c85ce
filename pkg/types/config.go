package types

import "time"

// HTTPConfig holds shared HTTP settings used by connectors that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "epistemic-audit/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`

	// MaxRetries bounds retries on rate-limit and overload responses (default 5).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// AIConfig holds settings for connectors that call a Generative AI API.
type AIConfig struct {
	// Model is the AI model identifier.
	Model string `json:"model" yaml:"model"`

	// APIKey is the authentication key for the AI API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// MaxTokens caps the response length per call (default 4096).
	MaxTokens int `json:"max_tokens" yaml:"max_tokens"`
}

// ProviderKind selects the finding provider backend.
type ProviderKind string

const (
	ProviderMock     ProviderKind = "mock"
	ProviderClaude   ProviderKind = "claude"
	ProviderOpenAlex ProviderKind = "openalex"
)

// ProviderConfig selects and tunes the finding provider.
type ProviderConfig struct {
	HTTPConfig `yaml:",inline"`
	AI         AIConfig `json:"ai" yaml:"ai"`

	// Kind is mock, claude or openalex.
	Kind ProviderKind `json:"kind" yaml:"kind"`

	// FixturePath is a YAML fixture of canned responses for the mock provider.
	FixturePath string `json:"fixture_path,omitempty" yaml:"fixture_path,omitempty"`

	// Email is sent to OpenAlex to join its polite pool.
	Email string `json:"email,omitempty" yaml:"email,omitempty"`

	// RequestsPerSecond paces provider calls (0 disables pacing).
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`

	// ResultsPerQuery bounds the number of works requested per search (default 10).
	ResultsPerQuery int `json:"results_per_query" yaml:"results_per_query"`
}

// BudgetConfig bounds how much work a session may do.
type BudgetConfig struct {
	// QueriesPerCycle is the maximum number of queries issued per cycle (default 10).
	QueriesPerCycle int `json:"queries_per_cycle" yaml:"queries_per_cycle"`

	// TotalQueries is the session-wide query cap (0 means unlimited).
	TotalQueries int `json:"total_queries" yaml:"total_queries"`

	// MaxCost is the session-wide spend cap in provider cost units (0 means unlimited).
	MaxCost float64 `json:"max_cost" yaml:"max_cost"`
}

// AuditConfig is the pass-through configuration of one audit session.
type AuditConfig struct {
	Topic      string `json:"topic" yaml:"topic"`
	Country    string `json:"country" yaml:"country"`
	Discipline string `json:"discipline" yaml:"discipline"`

	// MaxCycles stops the session after this many cycles (default 4).
	MaxCycles int `json:"max_cycles" yaml:"max_cycles"`

	// ConvergenceThreshold is the coverage delta, in points, below which
	// the session converges (default 2.0).
	ConvergenceThreshold float64 `json:"convergence_threshold" yaml:"convergence_threshold"`

	// MentionThreshold is the mention count at which an uninvestigated
	// entity must be researched (default 2).
	MentionThreshold int `json:"mention_threshold" yaml:"mention_threshold"`

	// MinIslandCitations is the in-degree at which an unsearched entity is a
	// citation island (default 2).
	MinIslandCitations int `json:"min_island_citations" yaml:"min_island_citations"`

	// CyclesPerMonth converts cycles into months for confidence decay (default 2).
	CyclesPerMonth float64 `json:"cycles_per_month" yaml:"cycles_per_month"`

	// DecayRate is the monthly confidence decay of new postulates (default 0.05).
	DecayRate float64 `json:"decay_rate" yaml:"decay_rate"`

	// BaseConfidence is the confidence contributed by a single source (default 0.3).
	BaseConfidence float64 `json:"base_confidence" yaml:"base_confidence"`

	// DualPerspective enables the two-agent audit and arbiter each cycle.
	DualPerspective bool `json:"dual_perspective" yaml:"dual_perspective"`

	Budget BudgetConfig `json:"budget" yaml:"budget"`
}

// WithDefaults fills zero fields with their defaults.
func (c AuditConfig) WithDefaults() AuditConfig {
	if c.MaxCycles <= 0 {
		c.MaxCycles = 4
	}
	if c.ConvergenceThreshold <= 0 {
		c.ConvergenceThreshold = 2.0
	}
	if c.MentionThreshold <= 0 {
		c.MentionThreshold = 2
	}
	if c.MinIslandCitations <= 0 {
		c.MinIslandCitations = 2
	}
	if c.CyclesPerMonth <= 0 {
		c.CyclesPerMonth = DefaultCyclesPerMonth
	}
	if c.DecayRate <= 0 {
		c.DecayRate = 0.05
	}
	if c.BaseConfidence <= 0 || c.BaseConfidence >= 1 {
		c.BaseConfidence = 0.3
	}
	if c.Budget.QueriesPerCycle <= 0 {
		c.Budget.QueriesPerCycle = 10
	}
	return c
}

// SinkConfig selects where per-cycle progress is written.
type SinkConfig struct {
	// DataDir holds the SQLite database and exports.
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// Disabled turns off the SQLite sink.
	Disabled bool `json:"disabled" yaml:"disabled"`
}
