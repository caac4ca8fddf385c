package drivers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/chopralab/sciborg/pkg/httpclient"
)

const grantsGovBaseURL = "https://api.grants.gov/v1/api"

// GrantsGovError is an error returned by the Grants.gov API.
type GrantsGovError struct {
	StatusCode int
	Message    string
}

func (e *GrantsGovError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("grants.gov API error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("grants.gov API error: %s", e.Message)
}

// GrantsGovSearch is the filter set for the search2 endpoint. Zero
// values fall back to the endpoint defaults.
type GrantsGovSearch struct {
	// Rows is the number of results to return, between 1 and 1000.
	Rows int `json:"rows"`
	// Keyword to search for.
	Keyword string `json:"keyword"`
	// OppNum filters by opportunity number.
	OppNum string `json:"oppNum"`
	// Eligibilities is a comma-separated list of eligibility codes.
	Eligibilities string `json:"eligibilities"`
	// Agencies is a comma-separated list of agency codes.
	Agencies string `json:"agencies"`
	// OppStatuses is a pipe-separated list of opportunity statuses.
	OppStatuses string `json:"oppStatuses"`
	// ALN filters by Assistance Listing Number.
	ALN string `json:"aln"`
	// FundingCategories is a comma-separated list of category codes.
	FundingCategories string `json:"fundingCategories"`
}

// GrantsGov is a REST client for the Grants.gov opportunity API.
type GrantsGov struct {
	baseURL string
	client  *httpclient.Client
}

// GrantsGovOption customizes the client.
type GrantsGovOption func(*GrantsGov)

// WithGrantsGovBaseURL overrides the API base URL, for tests.
func WithGrantsGovBaseURL(baseURL string) GrantsGovOption {
	return func(g *GrantsGov) { g.baseURL = strings.TrimRight(baseURL, "/") }
}

// WithGrantsGovHTTPClient overrides the underlying retrying client.
func WithGrantsGovHTTPClient(client *httpclient.Client) GrantsGovOption {
	return func(g *GrantsGov) { g.client = client }
}

func NewGrantsGov(opts ...GrantsGovOption) *GrantsGov {
	g := &GrantsGov{
		baseURL: grantsGovBaseURL,
		client: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: 30 * time.Second}),
			httpclient.WithMaxRetries(3),
		),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// SearchOpportunities queries the search2 endpoint.
func (g *GrantsGov) SearchOpportunities(ctx context.Context, search GrantsGovSearch) (map[string]any, error) {
	if search.Rows == 0 {
		search.Rows = 10
	}
	if search.Rows < 1 || search.Rows > 1000 {
		return nil, fmt.Errorf("number of rows must be between 1 and 1000")
	}
	if search.OppStatuses == "" {
		search.OppStatuses = "forecasted|posted"
	}
	return g.post(ctx, "/search2", search)
}

// FetchOpportunity returns the details of a single opportunity.
func (g *GrantsGov) FetchOpportunity(ctx context.Context, opportunityID int) (map[string]any, error) {
	if opportunityID == 0 {
		return nil, fmt.Errorf("opportunity ID cannot be empty")
	}
	return g.post(ctx, "/fetchOpportunity", map[string]any{"opportunityId": opportunityID})
}

func (g *GrantsGov) post(ctx context.Context, path string, payload any) (map[string]any, error) {
	requestBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", g.baseURL+path, bytes.NewReader(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(requestBody)), nil
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, &GrantsGovError{Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &GrantsGovError{Message: fmt.Sprintf("failed to read response: %v", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &GrantsGovError{StatusCode: resp.StatusCode, Message: string(body)}
	}

	var result map[string]any
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, &GrantsGovError{Message: fmt.Sprintf("failed to parse response: %v", err)}
	}
	return result, nil
}
