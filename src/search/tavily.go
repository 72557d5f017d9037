package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/stake-plus/deepresearch/src/webclient"
)

const tavilyEndpoint = "https://api.tavily.com/search"

// TavilyClient queries the Tavily search API.
type TavilyClient struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

// NewTavilyClient builds an adapter with the shared default HTTP client.
func NewTavilyClient(apiKey string) *TavilyClient {
	return &TavilyClient{
		apiKey:   apiKey,
		endpoint: tavilyEndpoint,
		client:   webclient.NewDefault(30 * time.Second),
	}
}

type tavilyRequest struct {
	APIKey     string `json:"api_key"`
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

type tavilyResponse struct {
	Results []struct {
		URL     string `json:"url"`
		Title   string `json:"title"`
		Content string `json:"content"`
	} `json:"results"`
}

// Search runs one query and maps the hits to Candidates.
func (c *TavilyClient) Search(ctx context.Context, query string, maxResults int) ([]Candidate, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("search: tavily api key not configured")
	}
	if maxResults <= 0 {
		maxResults = 5
	}
	payload := tavilyRequest{APIKey: c.apiKey, Query: query, MaxResults: maxResults}

	status, body, err := webclient.DoWithRetry(ctx, 3, 2*time.Second, func() (int, []byte, error) {
		return webclient.PostJSON(ctx, c.client, c.endpoint, nil, payload)
	})
	if err != nil {
		return nil, fmt.Errorf("search: tavily request: %w", err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("search: tavily status %d", status)
	}

	var parsed tavilyResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("search: parse tavily response: %w", err)
	}
	out := make([]Candidate, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		if r.URL == "" {
			continue
		}
		out = append(out, Candidate{URL: r.URL, Title: r.Title, Snippet: r.Content})
	}
	return out, nil
}
