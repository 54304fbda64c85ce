// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/pdiddy/epistemic-audit/pkg/types"
)

type mockEntry struct {
	pattern string
	text    string
}

// Mock answers searches from registered patterns. The first registered
// pattern contained in the lowercased query text wins; unmatched queries
// return an empty reply. Mock never costs anything.
type Mock struct {
	mu      sync.Mutex
	entries []mockEntry
	prompts []mockEntry
	calls   []types.SearchQuery
	fail    map[string]error
}

// NewMock returns an empty Mock.
func NewMock() *Mock {
	return &Mock{fail: make(map[string]error)}
}

// Name returns "mock".
func (m *Mock) Name() string { return "mock" }

// Register answers searches containing pattern with text.
func (m *Mock) Register(pattern, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, mockEntry{pattern: strings.ToLower(pattern), text: text})
}

// RegisterFindings answers searches containing pattern with a JSON
// document holding findings and relations.
func (m *Mock) RegisterFindings(pattern string, findings []types.Finding, relations []types.SemanticRelation) error {
	doc := struct {
		Findings  []types.Finding          `json:"findings"`
		Relations []types.SemanticRelation `json:"relations,omitempty"`
	}{Findings: findings, Relations: relations}
	if doc.Findings == nil {
		doc.Findings = []types.Finding{}
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding mock findings: %w", err)
	}
	m.Register(pattern, string(b))
	return nil
}

// RegisterPrompt answers prompts containing pattern with text.
func (m *Mock) RegisterPrompt(pattern, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, mockEntry{pattern: strings.ToLower(pattern), text: text})
}

// FailOn makes searches containing pattern return err.
func (m *Mock) FailOn(pattern string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail[strings.ToLower(pattern)] = err
}

// Query answers from the registered prompts.
func (m *Mock) Query(_ context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return match(m.prompts, prompt), nil
}

// Search logs q and answers from the registered patterns.
func (m *Mock) Search(ctx context.Context, q types.SearchQuery) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, q)
	lower := strings.ToLower(q.Text)
	for pattern, err := range m.fail {
		if strings.Contains(lower, pattern) {
			return "", err
		}
	}
	return match(m.entries, q.Text), nil
}

// Cost is always zero.
func (m *Mock) Cost() float64 { return 0 }

// Calls returns the searches received so far, in order.
func (m *Mock) Calls() []types.SearchQuery {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.SearchQuery(nil), m.calls...)
}

func match(entries []mockEntry, text string) string {
	lower := strings.ToLower(text)
	for _, e := range entries {
		if strings.Contains(lower, e.pattern) {
			return e.text
		}
	}
	return ""
}
