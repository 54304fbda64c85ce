// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/epistemic-audit/pkg/types"
)

// Export is the full stored record of one session.
type Export struct {
	Session    Session                   `json:"session" yaml:"session"`
	Snapshots  []types.CycleSnapshot     `json:"snapshots" yaml:"snapshots"`
	Findings   []types.Finding           `json:"findings" yaml:"findings"`
	Anomalies  []types.Anomaly           `json:"anomalies" yaml:"anomalies"`
	Postulates []types.WeightedPostulate `json:"postulates" yaml:"postulates"`
	Arbiter    *types.ArbiterResult      `json:"arbiter,omitempty" yaml:"arbiter,omitempty"`
}

// Load reads everything stored for a session. Anomalies are those of the
// latest cycle.
func (s *SQLite) Load(ctx context.Context, session string) (Export, error) {
	var (
		e   Export
		err error
	)
	if e.Session, err = s.Session(ctx, session); err != nil {
		return Export{}, err
	}
	if e.Snapshots, err = s.Snapshots(ctx, session); err != nil {
		return Export{}, fmt.Errorf("loading snapshots: %w", err)
	}
	if e.Findings, err = s.Findings(ctx, session); err != nil {
		return Export{}, fmt.Errorf("loading findings: %w", err)
	}
	if e.Anomalies, err = s.Anomalies(ctx, session, -1); err != nil {
		return Export{}, fmt.Errorf("loading anomalies: %w", err)
	}
	if e.Postulates, err = s.Postulates(ctx, session); err != nil {
		return Export{}, fmt.Errorf("loading postulates: %w", err)
	}
	if e.Arbiter, err = s.Arbiter(ctx, session); err != nil {
		return Export{}, fmt.Errorf("loading arbiter result: %w", err)
	}
	return e, nil
}

// ExportYAML writes the session record to path as YAML.
func (s *SQLite) ExportYAML(ctx context.Context, session, path string) error {
	e, err := s.Load(ctx, session)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ExportJSON writes the session record to path as indented JSON.
func (s *SQLite) ExportJSON(ctx context.Context, session, path string) error {
	e, err := s.Load(ctx, session)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
