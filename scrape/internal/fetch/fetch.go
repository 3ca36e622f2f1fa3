// Package fetch performs bounded HTTP GETs against the official site.
//
// Every URL passes the allow-list gate before the request goes out, and
// again on each redirect hop, so the scraper can never be bounced onto
// an unlisted host.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Result is the outcome of a successful fetch.
type Result struct {
	Body       []byte
	StatusCode int
}

// Config configures the fetcher.
type Config struct {
	Timeout   time.Duration // HTTP timeout. Default: 30s.
	MaxBytes  int64         // Max response body size. Default: 10MB.
	UserAgent string

	// URLCheck validates URLs before fetch and on redirects.
	// Required: fetching without an allow-list gate is a defect.
	URLCheck func(string) bool
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 10 * 1024 * 1024
	}
	if c.UserAgent == "" {
		c.UserAgent = "fundveille/1.0"
	}
	if c.URLCheck == nil {
		c.URLCheck = func(string) bool { return false }
	}
}

// Fetcher performs HTTP GETs with the allow-list enforced on redirects.
type Fetcher struct {
	client *http.Client
	config Config
}

// New creates a Fetcher.
func New(cfg Config) *Fetcher {
	cfg.defaults()
	check := cfg.URLCheck
	return &Fetcher{
		client: &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects (%d)", len(via))
				}
				if !check(req.URL.String()) {
					return fmt.Errorf("redirect to unlisted host: %s", req.URL.Host)
				}
				return nil
			},
		},
		config: cfg,
	}
}

// Get retrieves a URL. Non-2xx statuses are errors; the body is capped
// at MaxBytes.
func (f *Fetcher) Get(ctx context.Context, url string) (*Result, error) {
	if !f.config.URLCheck(url) {
		return nil, fmt.Errorf("URL not on official domain allow-list: %s", url)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", f.config.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Result{StatusCode: resp.StatusCode}, fmt.Errorf("http %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return &Result{Body: body, StatusCode: resp.StatusCode}, nil
}
