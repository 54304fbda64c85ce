// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"text/template"

	"go.uber.org/zap"

	"github.com/pdiddy/epistemic-audit/internal/httputil"
	"github.com/pdiddy/epistemic-audit/pkg/types"
)

// Token prices in dollars per thousand tokens.
const (
	inputPricePer1K  = 0.003
	outputPricePer1K = 0.015
)

const (
	defaultClaudeModel = "claude-sonnet-4-20250514"
	defaultMaxTokens   = 4096
	webSearchMaxUses   = 3
)

// claudeAPIURL is the Claude API endpoint. Package-level var for test substitution.
var claudeAPIURL = "https://api.anthropic.com/v1/messages"

// searchSystemPrompt describes the finding format the provider parses.
const searchSystemPrompt = `You are a research assistant helping with an epistemic audit.
For each search query, return structured findings and the relations between the people and ideas they mention.

Respond with a JSON object {"findings": [...], "relations": [...]}.

Each finding has these fields:
- "source": title or name of the source (string, required)
- "language": ISO 639-1 code of the source's language (string, required)
- "author": author name if known
- "institution": affiliated institution if known
- "theory_supported": the theory or interpretation this source supports, if any
- "source_type": one of "peer_reviewed", "institutional", "conference", "grey_literature", "news", "journalistic", "book"
- "year": publication year if known (integer)
- "entities_mentioned": scholars, institutions, sites and evidence named in the source (array of strings)

Each relation has "source", "target", "relation" (one of SUPPORTS, CONTESTS, CONTRADICTS, CITES, EXTENDS, SUPERVISES, COAUTHORS, TRANSLATES), "confidence" (0.0 to 1.0) and "evidence" (a short quote).

Do not include any text outside the JSON object.`

var searchPromptTmpl = template.Must(template.New("search").Parse(`Search for: {{.Text}}
Language: {{.Language}}
{{- if .Rationale}}
Rationale: {{.Rationale}}
{{- end}}

Return findings as a JSON object.
`))

// Claude calls the Anthropic Messages API. Search requests enable the
// server-side web search tool. Spend is tracked from the usage block of
// every response and checked against MaxBudget before each call.
type Claude struct {
	APIKey     string
	Model      string
	MaxTokens  int
	MaxBudget  float64
	MaxRetries int
	Client     *http.Client
	Logger     *zap.Logger

	mu           sync.Mutex
	inputTokens  int
	outputTokens int
	calls        int
}

// NewClaude returns a Claude connector from provider configuration. A
// budget of zero means unlimited.
func NewClaude(cfg types.ProviderConfig, budget float64, logger *zap.Logger) *Claude {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Claude{
		APIKey:     cfg.AI.APIKey,
		Model:      cfg.AI.Model,
		MaxTokens:  cfg.AI.MaxTokens,
		MaxBudget:  budget,
		MaxRetries: cfg.MaxRetries,
		Client:     &http.Client{Timeout: cfg.Timeout},
		Logger:     logger,
	}
}

// Name returns "claude".
func (c *Claude) Name() string { return "claude" }

type claudeRequest struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens"`
	System    string          `json:"system,omitempty"`
	Messages  []claudeMessage `json:"messages"`
	Tools     []claudeTool    `json:"tools,omitempty"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeTool struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	MaxUses int    `json:"max_uses,omitempty"`
}

type claudeResponse struct {
	Content []claudeContent `json:"content"`
	Usage   claudeUsage     `json:"usage"`
}

type claudeContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type claudeUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Query sends prompt as a single user message.
func (c *Claude) Query(ctx context.Context, prompt string) (string, error) {
	return c.call(ctx, claudeRequest{
		Messages: []claudeMessage{{Role: "user", Content: prompt}},
	})
}

// Search asks the model to search the web for q and report findings.
func (c *Claude) Search(ctx context.Context, q types.SearchQuery) (string, error) {
	var buf bytes.Buffer
	if err := searchPromptTmpl.Execute(&buf, q); err != nil {
		return "", fmt.Errorf("rendering prompt: %w", err)
	}
	return c.call(ctx, claudeRequest{
		System:   searchSystemPrompt,
		Messages: []claudeMessage{{Role: "user", Content: buf.String()}},
		Tools:    []claudeTool{{Type: "web_search_20250305", Name: "web_search", MaxUses: webSearchMaxUses}},
	})
}

func (c *Claude) call(ctx context.Context, body claudeRequest) (string, error) {
	if c.MaxBudget > 0 && c.Cost() >= c.MaxBudget {
		return "", ErrBudgetExceeded
	}

	body.Model = c.Model
	if body.Model == "" {
		body.Model = defaultClaudeModel
	}
	body.MaxTokens = c.MaxTokens
	if body.MaxTokens <= 0 {
		body.MaxTokens = defaultMaxTokens
	}
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, claudeAPIURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.APIKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := httputil.DoWithRetry(ctx, client, req, c.MaxRetries, c.Logger)
	if err != nil {
		return "", fmt.Errorf("calling Claude API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("Claude API returned %d: %s", resp.StatusCode, string(b))
	}

	var cResp claudeResponse
	if err := json.NewDecoder(resp.Body).Decode(&cResp); err != nil {
		return "", fmt.Errorf("decoding Claude response: %w", err)
	}

	c.mu.Lock()
	c.inputTokens += cResp.Usage.InputTokens
	c.outputTokens += cResp.Usage.OutputTokens
	c.calls++
	c.mu.Unlock()

	var parts []string
	for _, block := range cResp.Content {
		if block.Type == "text" && block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	c.Logger.Debug("claude call",
		zap.Int("input_tokens", cResp.Usage.InputTokens),
		zap.Int("output_tokens", cResp.Usage.OutputTokens),
		zap.Float64("cost", c.Cost()),
	)
	return strings.Join(parts, "\n"), nil
}

// Cost returns the dollars spent so far at the per-token list price.
func (c *Claude) Cost() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return float64(c.inputTokens)/1000*inputPricePer1K + float64(c.outputTokens)/1000*outputPricePer1K
}

// Calls returns the number of successful API calls.
func (c *Claude) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}
