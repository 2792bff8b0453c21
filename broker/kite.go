// Package broker reads portfolio data from the Kite Connect API.
package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL   = "https://api.kite.trade"
	DefaultTimeout   = 15 * time.Second
	DefaultRateLimit = 3
	kiteVersion      = "3"
)

var (
	ErrMissingToken  = errors.New("broker access token is missing")
	ErrNotConfigured = errors.New("broker api key is not configured")
)

type Holding struct {
	TradingSymbol string  `json:"tradingsymbol"`
	Exchange      string  `json:"exchange"`
	ISIN          string  `json:"isin"`
	Quantity      float64 `json:"quantity"`
	AveragePrice  float64 `json:"average_price"`
	LastPrice     float64 `json:"last_price"`
	PnL           float64 `json:"pnl"`
	Product       string  `json:"product"`
}

type Position struct {
	TradingSymbol string  `json:"tradingsymbol"`
	Exchange      string  `json:"exchange"`
	Product       string  `json:"product"`
	Quantity      float64 `json:"quantity"`
	AveragePrice  float64 `json:"average_price"`
	LastPrice     float64 `json:"last_price"`
	PnL           float64 `json:"pnl"`
	M2M           float64 `json:"m2m"`
}

type Positions struct {
	Net []Position `json:"net"`
	Day []Position `json:"day"`
}

type APIError struct {
	StatusCode int
	ErrorType  string
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("kite API error: %s (%s, status %d, endpoint: %s)", e.Message, e.ErrorType, e.StatusCode, e.Endpoint)
}

type envelope struct {
	Status    string          `json:"status"`
	Data      json.RawMessage `json:"data"`
	Message   string          `json:"message"`
	ErrorType string          `json:"error_type"`
}

type KiteClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

type ClientOption func(*KiteClient)

func WithBaseURL(baseURL string) ClientOption {
	return func(c *KiteClient) {
		c.baseURL = baseURL
	}
}

func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *KiteClient) {
		c.httpClient = httpClient
	}
}

func WithRateLimit(requestsPerSecond float64) ClientOption {
	return func(c *KiteClient) {
		if requestsPerSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), max(1, int(requestsPerSecond)))
		}
	}
}

func NewKiteClient(apiKey string, logger *zap.Logger, opts ...ClientOption) *KiteClient {
	c := &KiteClient{
		baseURL:    DefaultBaseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *KiteClient) Holdings(ctx context.Context, accessToken string) ([]Holding, error) {
	var out []Holding
	if err := c.get(ctx, "/portfolio/holdings", accessToken, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *KiteClient) Positions(ctx context.Context, accessToken string) (*Positions, error) {
	var out Positions
	if err := c.get(ctx, "/portfolio/positions", accessToken, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Portfolio fetches holdings and positions concurrently and summarises them.
func (c *KiteClient) Portfolio(ctx context.Context, accessToken string) (*PortfolioSummary, error) {
	if c.apiKey == "" {
		return nil, ErrNotConfigured
	}
	if accessToken == "" {
		return nil, ErrMissingToken
	}

	var (
		wg         sync.WaitGroup
		holdings   []Holding
		positions  *Positions
		hErr, pErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		holdings, hErr = c.Holdings(ctx, accessToken)
	}()
	go func() {
		defer wg.Done()
		positions, pErr = c.Positions(ctx, accessToken)
	}()
	wg.Wait()

	if err := errors.Join(hErr, pErr); err != nil {
		return nil, fmt.Errorf("failed to fetch portfolio: %w", err)
	}
	return Summarize(holdings, positions), nil
}

func (c *KiteClient) get(ctx context.Context, path, accessToken string, result any) error {
	if c.apiKey == "" {
		return ErrNotConfigured
	}
	if accessToken == "" {
		return ErrMissingToken
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Kite-Version", kiteVersion)
	req.Header.Set("Authorization", fmt.Sprintf("token %s:%s", c.apiKey, accessToken))
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("kite API request", zap.String("path", path))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		if resp.StatusCode != http.StatusOK {
			return &APIError{StatusCode: resp.StatusCode, Message: string(body), Endpoint: path}
		}
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || env.Status != "success" {
		return &APIError{StatusCode: resp.StatusCode, ErrorType: env.ErrorType, Message: env.Message, Endpoint: path}
	}

	if err := json.Unmarshal(env.Data, result); err != nil {
		return fmt.Errorf("failed to decode %s data: %w", path, err)
	}
	return nil
}
