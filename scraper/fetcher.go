package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/proxy"
)

var ErrBodyTooLarge = errors.New("response body exceeds limit")

type FetcherConfig struct {
	Timeout      time.Duration
	UserAgent    string
	ProxyURL     string
	MaxBodyBytes int64
}

type Page struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
}

type Fetcher struct {
	client    *http.Client
	userAgent string
	maxBody   int64
	logger    *zap.Logger
}

// NewFetcher builds an HTTP fetcher. ProxyURL may be socks5://host:port or an
// http(s) proxy URL.
func NewFetcher(cfg FetcherConfig, logger *zap.Logger) (*Fetcher, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	if cfg.ProxyURL != "" {
		pu, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy url: %w", err)
		}
		switch pu.Scheme {
		case "socks5", "socks5h":
			dialer, err := proxy.SOCKS5("tcp", pu.Host, nil, proxy.Direct)
			if err != nil {
				return nil, err
			}
			cd, ok := dialer.(proxy.ContextDialer)
			if !ok {
				return nil, errors.New("socks5 dialer does not support contexts")
			}
			transport.Proxy = nil
			transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
				return cd.DialContext(ctx, network, addr)
			}
		case "http", "https":
			transport.Proxy = http.ProxyURL(pu)
		default:
			return nil, fmt.Errorf("unsupported proxy scheme %q", pu.Scheme)
		}
		logger.Info("fetcher using proxy", zap.String("scheme", pu.Scheme), zap.String("host", pu.Host))
	}

	return &Fetcher{
		client:    &http.Client{Transport: transport, Timeout: cfg.Timeout},
		userAgent: cfg.UserAgent,
		maxBody:   cfg.MaxBodyBytes,
		logger:    logger,
	}, nil
}

func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/pdf;q=0.9,*/*;q=0.8")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	var body io.Reader = resp.Body
	if f.maxBody > 0 {
		body = io.LimitReader(resp.Body, f.maxBody+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if f.maxBody > 0 && int64(len(data)) > f.maxBody {
		return nil, fmt.Errorf("%w (%d bytes)", ErrBodyTooLarge, f.maxBody)
	}

	f.logger.Debug("page fetched",
		zap.String("url", rawURL),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(data)),
		zap.Duration("elapsed", time.Since(start)))

	return &Page{
		URL:         rawURL,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        data,
	}, nil
}
