// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package query

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/epistemic-audit/pkg/types"
)

// File is the on-disk representation of a query batch. The seed command
// writes one so a researcher can review or edit the batch before a run
// consumes it.
type File struct {
	Audit   FileAudit           `yaml:"audit"`
	Queries []types.SearchQuery `yaml:"queries"`
	Summary FileSummary         `yaml:"summary"`
}

// FileAudit stores the audit parameters that produced the batch.
type FileAudit struct {
	Topic      string `yaml:"topic"`
	Country    string `yaml:"country"`
	Discipline string `yaml:"discipline,omitempty"`
	Cycle      int    `yaml:"cycle"`
}

// FileSummary stores batch statistics and a timestamp.
type FileSummary struct {
	Total      int            `yaml:"total"`
	ByLanguage map[string]int `yaml:"by_language"`
	Timestamp  time.Time      `yaml:"timestamp"`
}

// WriteFile saves a query batch to a YAML file.
func WriteFile(path string, cfg types.AuditConfig, cycle int, queries []types.SearchQuery) error {
	f := File{
		Audit: FileAudit{
			Topic:      cfg.Topic,
			Country:    cfg.Country,
			Discipline: cfg.Discipline,
			Cycle:      cycle,
		},
		Queries: queries,
		Summary: FileSummary{
			Total:      len(queries),
			ByLanguage: byLanguage(queries),
			Timestamp:  time.Now().UTC(),
		},
	}
	data, err := yaml.Marshal(&f)
	if err != nil {
		return fmt.Errorf("marshaling query file: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadFile loads a previously saved query batch.
func ReadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading query file: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing query file: %w", err)
	}
	for i, q := range f.Queries {
		if strings.TrimSpace(q.Text) == "" {
			return nil, fmt.Errorf("query file %s: entry %d has no query text", path, i+1)
		}
	}
	return &f, nil
}

func byLanguage(queries []types.SearchQuery) map[string]int {
	out := make(map[string]int)
	for _, q := range queries {
		out[q.Language]++
	}
	return out
}

// FormatTable writes queries as a human-readable table to w.
func FormatTable(queries []types.SearchQuery, w io.Writer) {
	if len(queries) == 0 {
		fmt.Fprintln(w, "No queries.")
		return
	}

	fmt.Fprintf(w, "%-4s  %-8s  %-4s  %-20s  %s\n", "#", "Priority", "Lang", "Gap", "Query")
	fmt.Fprintln(w, strings.Repeat("-", 90))
	for i, q := range queries {
		fmt.Fprintf(w, "%-4d  %-8s  %-4s  %-20s  %s\n",
			i+1, q.Priority, q.Language, q.Gap, truncate(q.Text, 60))
	}

	langs := byLanguage(queries)
	keys := make([]string, 0, len(langs))
	for l := range langs {
		keys = append(keys, l)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, l := range keys {
		parts[i] = fmt.Sprintf("%s=%d", l, langs[l])
	}
	fmt.Fprintf(w, "\n%d queries (%s)\n", len(queries), strings.Join(parts, ", "))
}

// FormatJSON writes queries as indented JSON to w.
func FormatJSON(queries []types.SearchQuery, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(queries)
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
