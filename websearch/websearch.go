// Package websearch provides the live web fallback used when the disease
// corpus cannot answer a question. It talks to the Tavily search API.
package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	errs "github.com/neuroleaf/neuroleaf/errors"
	"github.com/neuroleaf/neuroleaf/pkg/logging"
)

const (
	defaultBaseURL    = "https://api.tavily.com"
	defaultMaxResults = 3
	defaultTimeout    = 20 * time.Second
)

// Result is a single web search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// Searcher is the interface the orchestrator depends on. Errors from the
// underlying provider are the caller's concern; a nil-error empty slice
// means the search ran but found nothing.
type Searcher interface {
	Search(ctx context.Context, query string) ([]Result, error)
}

// TavilyClient implements Searcher against the Tavily search API.
type TavilyClient struct {
	apiKey     string
	baseURL    string
	maxResults int
	httpClient *http.Client
	logger     *slog.Logger
}

// Option customizes the Tavily client.
type Option func(*TavilyClient)

// WithBaseURL overrides the API endpoint, mainly for tests.
func WithBaseURL(url string) Option {
	return func(c *TavilyClient) {
		if url != "" {
			c.baseURL = strings.TrimRight(url, "/")
		}
	}
}

// WithMaxResults bounds how many hits a search returns.
func WithMaxResults(n int) Option {
	return func(c *TavilyClient) {
		if n > 0 {
			c.maxResults = n
		}
	}
}

// WithTimeout bounds each search request.
func WithTimeout(d time.Duration) Option {
	return func(c *TavilyClient) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *TavilyClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewTavilyClient creates a Tavily-backed searcher.
func NewTavilyClient(apiKey string, opts ...Option) *TavilyClient {
	c := &TavilyClient{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		maxResults: defaultMaxResults,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     logging.WithComponent("websearch"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type searchRequest struct {
	APIKey     string `json:"api_key"`
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

type searchResponse struct {
	Results []Result `json:"results"`
}

// Search runs a web search for query and returns up to maxResults hits.
func (c *TavilyClient) Search(ctx context.Context, query string) ([]Result, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("tavily: %w", errs.ErrMissingAPIKey)
	}
	body, err := json.Marshal(searchRequest{
		APIKey:     c.apiKey,
		Query:      query,
		MaxResults: c.maxResults,
	})
	if err != nil {
		return nil, fmt.Errorf("encode search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tavily request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read tavily response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tavily returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var decoded searchResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, fmt.Errorf("decode tavily response: %w", err)
	}

	results := decoded.Results
	if len(results) > c.maxResults {
		results = results[:c.maxResults]
	}
	for i := range results {
		results[i].Content = CleanSnippet(results[i].Content)
	}

	c.logger.Debug("web search done", "query", query, "results", len(results))
	return results, nil
}

// CleanSnippet strips HTML markup that some providers leave in result
// snippets and collapses the remaining whitespace.
func CleanSnippet(snippet string) string {
	if !strings.ContainsAny(snippet, "<>") {
		return normalizeSpace(snippet)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(snippet))
	if err != nil {
		return normalizeSpace(snippet)
	}
	return normalizeSpace(doc.Text())
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
