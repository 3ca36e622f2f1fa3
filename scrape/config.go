package scrape

import (
	"time"

	"github.com/fundveille/fundveille/retry"
	"github.com/fundveille/fundveille/scrape/internal/chunk"
	fetchpkg "github.com/fundveille/fundveille/scrape/internal/fetch"
)

// Config configures the scrape service.
type Config struct {
	// BaseURL is the fund house site root all relative links resolve against.
	BaseURL string

	// SchemesListURL is the listing page scheme discovery starts from.
	SchemesListURL string

	// Domains is the allow-list of hosts trusted as source citations.
	// Subdomains of a listed domain are accepted.
	Domains []string

	// Fetch settings
	Fetch fetchpkg.Config

	// Retry policy for page fetches
	Retry retry.Policy

	// Chunk splitting parameters
	Chunk chunk.Options

	// DataDir is the root directory for the JSON document store.
	DataDir string

	// ValidationEnabled toggles post-scrape cross-validation against the
	// live page. When off, records keep validation_status "skipped".
	ValidationEnabled bool

	// ValidationTimeout bounds each validation re-fetch.
	ValidationTimeout time.Duration

	// PolitenessDelay is the pause between consecutive page fetches.
	PolitenessDelay time.Duration
}

func (c *Config) defaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://mf.nipponindiaim.com"
	}
	if c.SchemesListURL == "" {
		c.SchemesListURL = c.BaseURL + "/FundsAndPerformance/Pages/Fund-Listing.aspx"
	}
	if len(c.Domains) == 0 {
		c.Domains = []string{
			"mf.nipponindiaim.com",
			"nipponindiaim.com",
			"amfiindia.com",
			"sebi.gov.in",
		}
	}
	if c.Fetch.Timeout <= 0 {
		c.Fetch.Timeout = 30 * time.Second
	}
	if c.Fetch.MaxBytes <= 0 {
		c.Fetch.MaxBytes = 10 * 1024 * 1024
	}
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = "fundveille/1.0"
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = 3
	}
	if c.Retry.BaseDelay <= 0 {
		c.Retry.BaseDelay = 2 * time.Second
	}
	if c.Chunk.Size <= 0 {
		c.Chunk.Size = 1000
	}
	if c.Chunk.Overlap <= 0 {
		c.Chunk.Overlap = 200
	}
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.ValidationTimeout <= 0 {
		c.ValidationTimeout = 10 * time.Second
	}
	if c.PolitenessDelay < 0 {
		c.PolitenessDelay = 0
	}
}

func defaultConfig() *Config {
	c := &Config{
		ValidationEnabled: true,
		PolitenessDelay:   time.Second,
	}
	c.defaults()
	return c
}
