package app

import (
	"log/slog"

	"github.com/fundveille/fundveille/index"
	"github.com/fundveille/fundveille/oracle"
	"github.com/fundveille/fundveille/query"
	"github.com/fundveille/fundveille/scrape"
)

// System bundles the constructed services. Both binaries assemble the
// same graph: index feeds on scrape refreshes, query reads from both.
type System struct {
	Scrape *scrape.Service
	Index  *index.Service
	Oracle *oracle.Client
	Query  *query.Service
}

// Build constructs every component from cfg and wires them together.
func Build(cfg *Config, logger *slog.Logger) (*System, error) {
	idxCfg := cfg.Index
	idxCfg.Logger = logger.With("component", "index")
	idxCfg.Embedding.Logger = logger.With("component", "embedding")
	idx, err := index.New(idxCfg)
	if err != nil {
		return nil, err
	}

	scrapeCfg := cfg.Scrape
	scraper, err := scrape.New(&scrapeCfg, logger.With("component", "scrape"), scrape.WithIndexer(idx))
	if err != nil {
		idx.Close()
		return nil, err
	}

	oracleCfg := cfg.Oracle
	oracleCfg.Logger = logger.With("component", "oracle")
	orc := oracle.New(oracleCfg)

	queryCfg := cfg.Query
	queryCfg.Logger = logger.With("component", "query")
	q := query.New(queryCfg, idx, orc,
		query.WithSchemeResolver(scraper),
		query.WithQueryLog(idx),
	)

	return &System{Scrape: scraper, Index: idx, Oracle: orc, Query: q}, nil
}

// Close releases held resources.
func (s *System) Close() error {
	return s.Index.Close()
}
