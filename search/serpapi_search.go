package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultSerpAPIBaseURL = "https://serpapi.com/search.json"
	defaultResultsPerPage = 5
)

type SerpApiSearchEngine struct {
	client  *http.Client
	apiKey  string
	baseURL string
	limiter *rate.Limiter
	logger  *zap.Logger
}

type SerpApiOption func(*SerpApiSearchEngine)

func WithBaseURL(baseURL string) SerpApiOption {
	return func(s *SerpApiSearchEngine) {
		s.baseURL = baseURL
	}
}

func WithHTTPClient(client *http.Client) SerpApiOption {
	return func(s *SerpApiSearchEngine) {
		s.client = client
	}
}

// WithRateLimit caps outgoing requests per second.
func WithRateLimit(rps float64) SerpApiOption {
	return func(s *SerpApiSearchEngine) {
		if rps > 0 {
			s.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

type serpApiResponse struct {
	OrganicResults []struct {
		Position int    `json:"position"`
		Title    string `json:"title"`
		Link     string `json:"link"`
		Snippet  string `json:"snippet"`
	} `json:"organic_results"`
	SearchMetadata struct {
		Status string `json:"status"`
	} `json:"search_metadata"`
	Error string `json:"error"`
}

// NewSerpApiSearchEngine builds a SerpAPI Google search client. An empty apiKey
// yields an engine that always returns no results.
func NewSerpApiSearchEngine(apiKey string, timeout time.Duration, logger *zap.Logger, opts ...SerpApiOption) *SerpApiSearchEngine {
	s := &SerpApiSearchEngine{
		client:  &http.Client{Timeout: timeout},
		apiKey:  apiKey,
		baseURL: DefaultSerpAPIBaseURL,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	if apiKey == "" {
		logger.Warn("SERPAPI key is not configured, web search will return no results")
	}
	return s
}

func (s *SerpApiSearchEngine) Search(ctx context.Context, req *SearchRequest) ([]SearchResult, error) {
	if s.apiKey == "" {
		return []SearchResult{}, nil
	}

	maxPages := req.MaxPages
	if maxPages == 0 {
		maxPages = 1
	}
	num := req.MaxResults
	if num == 0 {
		num = defaultResultsPerPage
	}

	var allResults []SearchResult
	for i := range maxPages {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return allResults, err
			}
		}

		page, err := s.fetchPage(ctx, req.Query, i*num, num, req.Options)
		if err != nil {
			return allResults, err
		}

		for _, item := range page.OrganicResults {
			if item.Link == "" {
				continue
			}
			allResults = append(allResults, SearchResult{
				URL:         item.Link,
				Title:       item.Title,
				Description: item.Snippet,
				Metadata: map[string]string{
					"page":     strconv.Itoa(i + 1),
					"position": strconv.Itoa(item.Position),
					"query":    req.Query,
				},
			})
		}

		if len(page.OrganicResults) < num {
			break
		}
	}

	return allResults, nil
}

// fetchPage requests one result page. Options become extra query parameters
// (gl, hl, location, ...) but cannot replace the ones set here.
func (s *SerpApiSearchEngine) fetchPage(ctx context.Context, query string, start, num int, options map[string]string) (*serpApiResponse, error) {
	params := url.Values{}
	for k, v := range options {
		if v != "" {
			params.Set(k, v)
		}
	}
	params.Set("engine", "google")
	params.Set("q", query)
	params.Set("api_key", s.apiKey)
	params.Set("num", strconv.Itoa(num))
	if start > 0 {
		params.Set("start", strconv.Itoa(start))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	var searchResp serpApiResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if searchResp.Error != "" {
		return nil, fmt.Errorf("serpapi error: %s", searchResp.Error)
	}
	return &searchResp, nil
}
