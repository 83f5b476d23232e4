// Package search provides the web-search collaborator used to pick a
// session's entry URL.
package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Citation is one ranked search result.
type Citation struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Client finds candidate entry pages for a browsing goal.
type Client interface {
	// FindEntryCandidates returns ranked citations for the query. An empty
	// slice with a nil error means the search ran but found nothing.
	FindEntryCandidates(ctx context.Context, query string) ([]Citation, error)
}

const (
	defaultEndpoint   = "https://html.duckduckgo.com/html/"
	defaultUserAgent  = "wander/1.0 (+https://github.com/entrhq/wander)"
	defaultMaxResults = 8
)

// DuckDuckGoClient implements Client against the DuckDuckGo HTML endpoint,
// which serves plain markup without requiring an API key.
type DuckDuckGoClient struct {
	httpClient *http.Client
	endpoint   string
	userAgent  string
	maxResults int
}

// DuckDuckGoOption configures a DuckDuckGoClient.
type DuckDuckGoOption func(*DuckDuckGoClient)

// WithHTTPClient sets a custom HTTP client (mainly for tests).
func WithHTTPClient(client *http.Client) DuckDuckGoOption {
	return func(c *DuckDuckGoClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithEndpoint overrides the search endpoint URL.
func WithEndpoint(endpoint string) DuckDuckGoOption {
	return func(c *DuckDuckGoClient) {
		if endpoint != "" {
			c.endpoint = endpoint
		}
	}
}

// WithMaxResults caps the number of citations returned.
func WithMaxResults(max int) DuckDuckGoOption {
	return func(c *DuckDuckGoClient) {
		if max > 0 {
			c.maxResults = max
		}
	}
}

// NewDuckDuckGoClient creates a search client with sane defaults.
func NewDuckDuckGoClient(opts ...DuckDuckGoOption) *DuckDuckGoClient {
	c := &DuckDuckGoClient{
		httpClient: &http.Client{Timeout: 20 * time.Second},
		endpoint:   defaultEndpoint,
		userAgent:  defaultUserAgent,
		maxResults: defaultMaxResults,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FindEntryCandidates runs the query and extracts result links in rank order.
func (c *DuckDuckGoClient) FindEntryCandidates(ctx context.Context, query string) ([]Citation, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("search query is empty")
	}

	reqURL := c.endpoint + "?q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build search request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse search results: %w", err)
	}

	var citations []Citation
	doc.Find("a.result__a").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if len(citations) >= c.maxResults {
			return false
		}
		href, exists := s.Attr("href")
		if !exists {
			return true
		}
		target := unwrapRedirect(href)
		if target == "" {
			return true
		}
		citations = append(citations, Citation{
			Title: strings.TrimSpace(s.Text()),
			URL:   target,
		})
		return true
	})

	return citations, nil
}

// unwrapRedirect extracts the destination from DuckDuckGo's redirect
// wrapper (//duckduckgo.com/l/?uddg=<escaped-url>). Plain links pass
// through unchanged.
func unwrapRedirect(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if uddg := u.Query().Get("uddg"); uddg != "" {
		return uddg
	}
	return href
}
