// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/epistemic-audit/internal/connector"
	"github.com/pdiddy/epistemic-audit/internal/observability"
	"github.com/pdiddy/epistemic-audit/pkg/types"
)

var elQuery = types.SearchQuery{Text: "Αμφίπολη τάφος", Language: "el"}

func TestParse(t *testing.T) {
	tests := []struct {
		name          string
		text          string
		wantFindings  int
		wantRelations int
		wantErr       bool
	}{
		{"empty", "", 0, 0, false},
		{"prose only", "I could not find anything relevant.", 0, 0, false},
		{"bare array", `[{"source": "A"}, {"source": "B"}]`, 2, 0, false},
		{
			"object with relations",
			`{"findings": [{"source": "A"}], "relations": [{"source": "X", "target": "Y", "relation": "supports"}, {"source": "X", "target": "Y", "relation": "LIKES"}]}`,
			1, 1, false,
		},
		{
			"fenced block",
			"Here you go:\n```json\n[{\"source\": \"A\"}]\n```\nHope it helps.",
			1, 0, false,
		},
		{"array inside prose", `Results: [{"source": "A"}] end`, 1, 0, false},
		{"object inside prose", `Results: {"findings": [{"source": "A"}]} end`, 1, 0, false},
		{"wrong shape", `{"findings": "none"}`, 0, 0, true},
		{"truncated fenced block", "```json\n[{\"source\": \"A\"\n```", 0, 0, true},
		{"unterminated fence", "Here are the results:\n```json\n[{\"source\": \"A\"", 0, 0, true},
		{"truncated bare object", `{"findings": [{"source": "A"}`, 0, 0, true},
		{"brackets in prose", "Nothing found [see notes].", 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs, rs, err := Parse(tt.text, elQuery)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, fs, tt.wantFindings)
			assert.Len(t, rs, tt.wantRelations)
		})
	}
}

func TestParseDefaults(t *testing.T) {
	text := `{"findings": [
		{"source": " Peristeri 2015 ", "year": "2015", "source_type": "Peer-Reviewed", "entities_mentioned": ["Lefantzis"]},
		{"source": "Chugg", "language": "EN", "year": 2016.0}
	], "relations": [{"source": "Chugg", "target": "Peristeri", "relation": "contests", "confidence": 3}]}`

	fs, rs, err := Parse(text, elQuery)
	require.NoError(t, err)
	require.Len(t, fs, 2)

	assert.Equal(t, "Peristeri 2015", fs[0].Source)
	assert.Equal(t, "el", fs[0].Language, "defaults to the query language")
	assert.Equal(t, 2015, fs[0].Year)
	assert.Equal(t, types.SourcePeerReviewed, fs[0].SourceType)
	assert.Equal(t, elQuery.Text, fs[0].Query)
	assert.Equal(t, "en", fs[1].Language)
	assert.Equal(t, 2016, fs[1].Year)

	require.Len(t, rs, 1)
	assert.Equal(t, types.RelContests, rs[0].Relation)
	assert.Equal(t, 1.0, rs[0].Confidence, "confidence is clamped")
	assert.Equal(t, "el", rs[0].Language)
}

func TestExecute(t *testing.T) {
	m := connector.NewMock()
	require.NoError(t, m.RegisterFindings("αμφίπολη", []types.Finding{{Source: "Peristeri 2015"}}, nil))
	m.FailOn("broken", errors.New("network down"))
	m.Register("garbled", "```json\n[{\"source\": \"A\"\n```")

	reg := prometheus.NewRegistry()
	p := New(m, WithMetrics(observability.NewMetrics(reg)))

	r := p.Execute(context.Background(), elQuery)
	assert.False(t, r.Failed)
	assert.False(t, r.Empty)
	require.Len(t, r.Findings, 1)
	assert.Equal(t, "el", r.Findings[0].Language)

	r = p.Execute(context.Background(), types.SearchQuery{Text: "nothing here", Language: "en"})
	assert.True(t, r.Empty)
	assert.False(t, r.Failed)

	r = p.Execute(context.Background(), types.SearchQuery{Text: "broken query", Language: "en"})
	assert.True(t, r.Failed)
	assert.False(t, r.Empty, "a failure is not evidence of absence")
	assert.Empty(t, r.Findings)

	r = p.Execute(context.Background(), types.SearchQuery{Text: "garbled reply", Language: "en"})
	assert.True(t, r.Failed)
	assert.False(t, r.Empty, "an unparseable reply is not evidence of absence")
	assert.Empty(t, r.Findings)
	assert.ErrorIs(t, r.err, ErrMalformedReply)

	families, err := reg.Gather()
	require.NoError(t, err)
	var calls float64
	for _, mf := range families {
		if mf.GetName() == "epistemic_audit_provider_calls_total" {
			for _, metric := range mf.GetMetric() {
				calls += metric.GetCounter().GetValue()
			}
		}
	}
	assert.Equal(t, 4.0, calls)
}

type costly struct {
	*connector.Mock
	spent  float64
	perRun float64
	limit  float64
}

func (c *costly) Search(ctx context.Context, q types.SearchQuery) (string, error) {
	if c.limit > 0 && c.spent >= c.limit {
		return "", connector.ErrBudgetExceeded
	}
	c.spent += c.perRun
	return c.Mock.Search(ctx, q)
}

func (c *costly) Cost() float64 { return c.spent }

func TestBatchStopsAtBudget(t *testing.T) {
	queries := []types.SearchQuery{{Text: "a"}, {Text: "b"}, {Text: "c"}, {Text: "d"}}

	c := &costly{Mock: connector.NewMock(), perRun: 1}
	b := New(c).Batch(context.Background(), queries, 2)
	assert.True(t, b.BudgetExhausted)
	assert.Equal(t, 2, b.Issued())

	c = &costly{Mock: connector.NewMock(), perRun: 1, limit: 3}
	b = New(c).Batch(context.Background(), queries, 0)
	assert.True(t, b.BudgetExhausted, "connector budget errors stop the batch")
	assert.Equal(t, 3, b.Issued())

	c = &costly{Mock: connector.NewMock(), perRun: 1}
	b = New(c).Batch(context.Background(), queries, 0)
	assert.False(t, b.BudgetExhausted)
	assert.Equal(t, 4, b.Issued())
}

func TestBatchCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b := New(connector.NewMock(), WithRate(1)).Batch(ctx, []types.SearchQuery{{Text: "a"}}, 0)
	assert.Zero(t, b.Issued())
}

const fixtureYAML = `
responses:
  - pattern: amphipolis
    findings:
      - source: Peristeri 2015 excavation report
        language: el
        author: Katerina Peristeri
        theory_supported: Hephaestion memorial
        source_type: institutional
        year: 2015
        entities_mentioned: [Michalis Lefantzis]
    relations:
      - source: Katerina Peristeri
        target: Michalis Lefantzis
        relation: COAUTHORS
        confidence: 0.9
prompts:
  - pattern: translate
    reply: '["Αμφίπολη"]'
`

func TestFixture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixture.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fixtureYAML), 0o644))

	fx, err := LoadFixture(path)
	require.NoError(t, err)
	require.Len(t, fx.Responses, 1)
	assert.Equal(t, types.SourceInstitutional, fx.Responses[0].Findings[0].SourceType)

	m, err := fx.Mock()
	require.NoError(t, err)
	r := New(m).Execute(context.Background(), types.SearchQuery{Text: "Amphipolis tomb", Language: "en"})
	require.Len(t, r.Findings, 1)
	assert.Equal(t, "Katerina Peristeri", r.Findings[0].Author)
	assert.Equal(t, "el", r.Findings[0].Language)
	require.Len(t, r.Relations, 1)
	assert.Equal(t, types.RelCoauthors, r.Relations[0].Relation)

	reply, err := m.Query(context.Background(), "please translate")
	require.NoError(t, err)
	assert.Equal(t, `["Αμφίπολη"]`, reply)
}

func TestReadFixtureRejectsMissingPattern(t *testing.T) {
	_, err := ReadFixture(strings.NewReader("responses:\n  - findings: []\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no pattern")
}
