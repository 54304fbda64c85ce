// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"strings"
)

// RelationType is the kind of a directed edge between two entities.
type RelationType string

const (
	RelSupports    RelationType = "SUPPORTS"
	RelContests    RelationType = "CONTESTS"
	RelContradicts RelationType = "CONTRADICTS"
	RelCites       RelationType = "CITES"
	RelExtends     RelationType = "EXTENDS"
	RelSupervises  RelationType = "SUPERVISES"
	RelCoauthors   RelationType = "COAUTHORS"
	RelTranslates  RelationType = "TRANSLATES"
)

// ParseRelationType accepts relation names in any case.
func ParseRelationType(s string) (RelationType, error) {
	r := RelationType(strings.ToUpper(strings.TrimSpace(s)))
	switch r {
	case RelSupports, RelContests, RelContradicts, RelCites,
		RelExtends, RelSupervises, RelCoauthors, RelTranslates:
		return r, nil
	}
	return "", fmt.Errorf("unknown relation type %q", s)
}

// SemanticRelation is a typed directed edge between two entity names.
type SemanticRelation struct {
	Source     string       `json:"source" yaml:"source"`
	Target     string       `json:"target" yaml:"target"`
	Relation   RelationType `json:"relation" yaml:"relation"`
	Confidence float64      `json:"confidence" yaml:"confidence"`
	Evidence   string       `json:"evidence,omitempty" yaml:"evidence,omitempty"`
	Language   string       `json:"language,omitempty" yaml:"language,omitempty"`
	Cycle      int          `json:"cycle" yaml:"cycle"`
}
