// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package connector defines the capability interface the finding provider
// talks to and its implementations: a pattern-matched mock for tests and
// offline runs, the Claude Messages API, and the OpenAlex works search.
//
// Connectors return raw text. Turning that text into findings and
// relations is the provider's job, so the engine never branches on which
// connector is in use.
package connector

import (
	"context"
	"errors"

	"github.com/pdiddy/epistemic-audit/pkg/types"
)

var (
	// ErrBudgetExceeded is returned once a connector has spent its cost budget.
	ErrBudgetExceeded = errors.New("connector budget exceeded")

	// ErrUnsupported is returned by connectors that cannot serve a capability.
	ErrUnsupported = errors.New("operation not supported by connector")
)

// Connector is a source of research text.
type Connector interface {
	// Name identifies the connector in logs and reports.
	Name() string

	// Query sends a free-form prompt and returns the reply text.
	Query(ctx context.Context, prompt string) (string, error)

	// Search runs a search query and returns text describing findings,
	// ideally a JSON document. An empty string means nothing was found.
	Search(ctx context.Context, q types.SearchQuery) (string, error)

	// Cost is the total spend so far, in dollars.
	Cost() float64
}
