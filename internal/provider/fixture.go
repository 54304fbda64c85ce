// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/epistemic-audit/internal/connector"
	"github.com/pdiddy/epistemic-audit/pkg/types"
)

// Fixture is a set of canned connector replies for offline runs.
type Fixture struct {
	Responses []FixtureResponse `yaml:"responses"`
	Prompts   []FixturePrompt   `yaml:"prompts,omitempty"`
}

// FixtureResponse answers searches whose text contains Pattern.
type FixtureResponse struct {
	Pattern   string                   `yaml:"pattern"`
	Findings  []types.Finding          `yaml:"findings"`
	Relations []types.SemanticRelation `yaml:"relations,omitempty"`
}

// FixturePrompt answers prompts containing Pattern with Reply.
type FixturePrompt struct {
	Pattern string `yaml:"pattern"`
	Reply   string `yaml:"reply"`
}

// LoadFixture reads a YAML fixture file.
func LoadFixture(path string) (*Fixture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening fixture: %w", err)
	}
	defer f.Close()
	return ReadFixture(f)
}

// ReadFixture parses a YAML fixture. Every response needs a pattern.
func ReadFixture(r io.Reader) (*Fixture, error) {
	var fx Fixture
	if err := yaml.NewDecoder(r).Decode(&fx); err != nil {
		return nil, fmt.Errorf("parsing fixture: %w", err)
	}
	for i, resp := range fx.Responses {
		if strings.TrimSpace(resp.Pattern) == "" {
			return nil, fmt.Errorf("parsing fixture: response %d has no pattern", i)
		}
	}
	return &fx, nil
}

// Mock returns a mock connector answering from the fixture.
func (fx *Fixture) Mock() (*connector.Mock, error) {
	m := connector.NewMock()
	for _, r := range fx.Responses {
		if err := m.RegisterFindings(r.Pattern, r.Findings, r.Relations); err != nil {
			return nil, err
		}
	}
	for _, p := range fx.Prompts {
		m.RegisterPrompt(p.Pattern, p.Reply)
	}
	return m, nil
}
