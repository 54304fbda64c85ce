// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/epistemic-audit/internal/httputil"
	"github.com/pdiddy/epistemic-audit/pkg/types"
)

// openAlexWorksURL is the OpenAlex Works search endpoint. Declared as a
// var so tests can substitute an httptest server.
var openAlexWorksURL = "https://api.openalex.org/works"

const (
	defaultPerPage = 10
	maxPerPage     = 200
)

// OpenAlex searches scholarly works. Each work becomes one finding: the
// first author and their first institution are the author and institution,
// and the remaining authors are mentioned entities linked to the first by
// COAUTHORS relations. OpenAlex cannot answer free-form prompts.
type OpenAlex struct {
	Client     *http.Client
	Email      string
	UserAgent  string
	PerPage    int
	MaxRetries int
	Logger     *zap.Logger
}

// NewOpenAlex returns an OpenAlex connector from provider configuration.
func NewOpenAlex(cfg types.ProviderConfig, logger *zap.Logger) *OpenAlex {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenAlex{
		Client:     &http.Client{Timeout: cfg.Timeout},
		Email:      cfg.Email,
		UserAgent:  cfg.UserAgent,
		PerPage:    cfg.ResultsPerQuery,
		MaxRetries: cfg.MaxRetries,
		Logger:     logger,
	}
}

// Name returns "openalex".
func (o *OpenAlex) Name() string { return "openalex" }

// Query is not supported.
func (o *OpenAlex) Query(context.Context, string) (string, error) {
	return "", ErrUnsupported
}

// Cost is zero; OpenAlex is free.
func (o *OpenAlex) Cost() float64 { return 0 }

// Search queries the works endpoint, restricted to the query's language,
// and returns a findings document. No results yields an empty string.
func (o *OpenAlex) Search(ctx context.Context, q types.SearchQuery) (string, error) {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return "", fmt.Errorf("empty OpenAlex query")
	}

	perPage := o.PerPage
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	perPage = min(perPage, maxPerPage)

	params := url.Values{
		"search":   {text},
		"per_page": {strconv.Itoa(perPage)},
		"page":     {"1"},
	}
	if q.Language != "" {
		params.Set("filter", "language:"+strings.ToLower(q.Language))
	}
	if o.Email != "" {
		params.Set("mailto", o.Email)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, openAlexWorksURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	if o.UserAgent != "" {
		req.Header.Set("User-Agent", o.UserAgent)
	}

	client := o.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := httputil.DoWithRetry(ctx, client, req, o.MaxRetries, o.Logger)
	if err != nil {
		return "", fmt.Errorf("OpenAlex API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("OpenAlex API returned HTTP %d", resp.StatusCode)
	}

	var oar openAlexResponse
	if err := json.NewDecoder(resp.Body).Decode(&oar); err != nil {
		return "", fmt.Errorf("parsing OpenAlex response: %w", err)
	}
	if len(oar.Results) == 0 {
		return "", nil
	}

	findings, relations := worksToFindings(oar.Results, q.Language)
	b, err := json.Marshal(struct {
		Findings  []types.Finding          `json:"findings"`
		Relations []types.SemanticRelation `json:"relations"`
	}{findings, relations})
	if err != nil {
		return "", fmt.Errorf("encoding findings: %w", err)
	}
	return string(b), nil
}

// worksToFindings converts OpenAlex works into findings and co-authorship
// relations. Works without a title are skipped.
func worksToFindings(works []openAlexWork, lang string) ([]types.Finding, []types.SemanticRelation) {
	var findings []types.Finding
	var relations []types.SemanticRelation
	for _, w := range works {
		if strings.TrimSpace(w.Title) == "" {
			continue
		}
		f := types.Finding{
			Source:     w.Title,
			Language:   w.Language,
			SourceType: workSourceType(w.Type),
			Year:       w.PublicationYear,
		}
		if f.Language == "" {
			f.Language = lang
		}
		if w.DOI != "" {
			f.Source = fmt.Sprintf("%s (doi:%s)", w.Title, strings.TrimPrefix(w.DOI, "https://doi.org/"))
		}

		for i, a := range w.Authorships {
			name := strings.TrimSpace(a.Author.DisplayName)
			if name == "" {
				continue
			}
			if f.Author == "" {
				f.Author = name
				if len(a.Institutions) > 0 {
					f.Institution = a.Institutions[0].DisplayName
				}
				continue
			}
			f.Entities = append(f.Entities, name)
			relations = append(relations, types.SemanticRelation{
				Source:     f.Author,
				Target:     name,
				Relation:   types.RelCoauthors,
				Confidence: 1,
				Evidence:   fmt.Sprintf("co-authors of %q (position %d)", w.Title, i+1),
				Language:   f.Language,
			})
		}
		findings = append(findings, f)
	}
	return findings, relations
}

// workSourceType maps OpenAlex work types onto source types.
func workSourceType(t string) types.SourceType {
	switch t {
	case "article", "review", "letter":
		return types.SourcePeerReviewed
	case "book", "book-chapter", "monograph":
		return types.SourceBook
	case "proceedings-article", "proceedings":
		return types.SourceConference
	case "dissertation", "report", "preprint", "standard":
		return types.SourceGreyLiterature
	}
	return types.NormalizeSourceType(t)
}

// OpenAlex API JSON structures.
type openAlexResponse struct {
	Meta    openAlexMeta   `json:"meta"`
	Results []openAlexWork `json:"results"`
}

type openAlexMeta struct {
	Count   int `json:"count"`
	PerPage int `json:"per_page"`
	Page    int `json:"page"`
}

type openAlexWork struct {
	ID              string               `json:"id"`
	Title           string               `json:"title"`
	DOI             string               `json:"doi"`
	Type            string               `json:"type"`
	Language        string               `json:"language"`
	PublicationYear int                  `json:"publication_year"`
	Authorships     []openAlexAuthorship `json:"authorships"`
}

type openAlexAuthorship struct {
	Author       openAlexAuthor        `json:"author"`
	Institutions []openAlexInstitution `json:"institutions"`
}

type openAlexAuthor struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type openAlexInstitution struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	CountryCode string `json:"country_code"`
}
