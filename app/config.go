// Package app holds the assembled configuration for the fundveille
// binaries: one YAML file covering every component, with environment
// overrides for credentials and deploy-specific paths.
package app

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/fundveille/fundveille/index"
	"github.com/fundveille/fundveille/oracle"
	"github.com/fundveille/fundveille/query"
	"github.com/fundveille/fundveille/scrape"
)

// Config is the whole-service configuration. Zero values are usable:
// every component applies its own defaults on construction.
type Config struct {
	// Addr is the HTTP listen address. Default: ":8080".
	Addr string `yaml:"addr"`

	Scrape   scrape.Config         `yaml:"scrape"`
	Schedule scrape.ScheduleConfig `yaml:"schedule"`
	Index    index.Config          `yaml:"index"`
	Oracle   oracle.Config         `yaml:"oracle"`
	Query    query.Config          `yaml:"query"`
}

// LoadConfigFile reads a YAML config file and applies environment
// overrides. An empty path yields the defaults (env still applies).
func LoadConfigFile(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("app: read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("app: parse config: %w", err)
		}
	}
	cfg.applyEnv()
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if len(cfg.Query.Domains) == 0 {
		cfg.Query.Domains = cfg.Scrape.Domains
	}
	return cfg, nil
}

// applyEnv maps deploy-time environment variables onto the config.
// Credentials only come from the environment in practice; the YAML
// fields exist for development setups.
func (c *Config) applyEnv() {
	set := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	set(&c.Addr, "FUNDVEILLE_ADDR")
	set(&c.Scrape.DataDir, "FUNDVEILLE_DATA_DIR")
	set(&c.Scrape.BaseURL, "FUNDVEILLE_BASE_URL")
	set(&c.Index.DBPath, "FUNDVEILLE_INDEX_DB")
	set(&c.Index.Embedding.Endpoint, "EMBEDDING_ENDPOINT")
	set(&c.Index.Embedding.Model, "EMBEDDING_MODEL")
	set(&c.Oracle.Endpoint, "OPENROUTER_ENDPOINT")
	set(&c.Oracle.APIKey, "OPENROUTER_API_KEY")
	set(&c.Oracle.Model, "OPENROUTER_MODEL")
}
