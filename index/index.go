// Package index stores text chunks with their embedding vectors in
// SQLite and answers nearest-neighbour queries by brute-force cosine
// similarity. At the scale of one fund house (a few hundred schemes,
// a few thousand chunks) an exact scan is faster than maintaining an
// approximate index.
//
// The same database also holds the question/answer audit log.
package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	_ "modernc.org/sqlite"

	"github.com/fundveille/fundveille/dbopen"
	"github.com/fundveille/fundveille/embedding"
	"github.com/fundveille/fundveille/scrape"
)

const schema = `
CREATE TABLE IF NOT EXISTS chunks (
	chunk_id    TEXT PRIMARY KEY,
	scheme_code TEXT NOT NULL,
	chunk_type  TEXT NOT NULL,
	content     TEXT NOT NULL,
	source_url  TEXT NOT NULL DEFAULT '',
	metadata    TEXT NOT NULL DEFAULT '{}',
	vector      BLOB NOT NULL,
	norm        REAL NOT NULL,
	created_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS chunks_scheme ON chunks(scheme_code, chunk_type);

CREATE TABLE IF NOT EXISTS query_log (
	id         TEXT PRIMARY KEY,
	question   TEXT NOT NULL,
	answer     TEXT NOT NULL,
	confidence TEXT NOT NULL,
	sources    TEXT NOT NULL DEFAULT '[]',
	asked_at   TEXT NOT NULL
);
`

// Config configures the index.
type Config struct {
	// DBPath is the SQLite database file. ":memory:" works for tests.
	DBPath string `json:"db_path" yaml:"db_path"`

	// Embedding configures the vector backend.
	Embedding embedding.Config `json:"embedding" yaml:"embedding"`

	// Logger for debug/error messages. Defaults to slog.Default().
	Logger *slog.Logger `json:"-" yaml:"-"`
}

func (c *Config) defaults() {
	if c.DBPath == "" {
		c.DBPath = "data/index.db"
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Result is one retrieved chunk, closest first.
type Result struct {
	ChunkID    string            `json:"chunk_id"`
	SchemeCode string            `json:"scheme_code"`
	ChunkType  string            `json:"chunk_type"`
	Content    string            `json:"content"`
	SourceURL  string            `json:"source_url"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Distance   float64           `json:"distance"`
}

// Service is the vector index over scraped chunks.
type Service struct {
	db       *sql.DB
	embedder embedding.Embedder
	logger   *slog.Logger
}

// New opens (or creates) the index database and its embedding client.
func New(cfg Config) (*Service, error) {
	cfg.defaults()

	db, err := dbopen.Open(cfg.DBPath,
		dbopen.WithMkdirAll(),
		dbopen.WithSchema(schema),
	)
	if err != nil {
		return nil, fmt.Errorf("index: %w", err)
	}

	return &Service{
		db:       db,
		embedder: embedding.New(cfg.Embedding),
		logger:   cfg.Logger,
	}, nil
}

// NewFromDB builds a Service over an existing database (e.g. shared with
// another component). The schema is created if missing.
func NewFromDB(db *sql.DB, emb embedding.Embedder, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("index: schema: %w", err)
	}
	return &Service{db: db, embedder: emb, logger: logger}, nil
}

// Close closes the underlying database.
func (s *Service) Close() error { return s.db.Close() }

// Index embeds the chunks and replaces the stored generation for every
// (scheme_code, chunk_type) pair present in the batch. Replacing the whole
// generation keeps the index free of stale rows when a record shrinks.
func (s *Service) Index(ctx context.Context, chunks []scrape.TextChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vecs, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("index: embed %d chunks: %w", len(chunks), err)
	}

	generations := map[[2]string]bool{}
	for _, c := range chunks {
		generations[[2]string{c.SchemeCode, c.ChunkType}] = true
	}

	err = dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		for gen := range generations {
			if _, err := tx.Exec(
				`DELETE FROM chunks WHERE scheme_code = ? AND chunk_type = ?`,
				gen[0], gen[1]); err != nil {
				return err
			}
		}
		for i, c := range chunks {
			meta, err := json.Marshal(c.Metadata)
			if err != nil {
				return fmt.Errorf("marshal metadata for %s: %w", c.ChunkID, err)
			}
			if _, err := tx.Exec(
				`INSERT INTO chunks (chunk_id, scheme_code, chunk_type, content, source_url, metadata, vector, norm, created_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				c.ChunkID, c.SchemeCode, c.ChunkType, c.Content, c.SourceURL,
				string(meta),
				embedding.SerializeVector(vecs[i]),
				embedding.Norm(vecs[i]),
				c.CreatedAt.UTC().Format(time.RFC3339),
			); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("index: store %d chunks: %w", len(chunks), err)
	}

	s.logger.Debug("indexed chunks", "count", len(chunks))
	return nil
}

// Query embeds the question and returns the k closest chunks by cosine
// distance (1 - similarity), closest first. k <= 0 defaults to 5.
func (s *Service) Query(ctx context.Context, text string, k int) ([]Result, error) {
	if k <= 0 {
		k = 5
	}

	qvec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("index: embed query: %w", err)
	}
	qnorm := embedding.Norm(qvec)

	rows, err := s.db.QueryContext(ctx,
		`SELECT chunk_id, scheme_code, chunk_type, content, source_url, metadata, vector, norm FROM chunks`)
	if err != nil {
		return nil, fmt.Errorf("index: scan chunks: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var metaJSON string
		var blob []byte
		var norm float64
		if err := rows.Scan(&r.ChunkID, &r.SchemeCode, &r.ChunkType, &r.Content,
			&r.SourceURL, &metaJSON, &blob, &norm); err != nil {
			return nil, fmt.Errorf("index: scan row: %w", err)
		}
		if metaJSON != "" && metaJSON != "null" {
			json.Unmarshal([]byte(metaJSON), &r.Metadata)
		}
		sim := embedding.CosineSimilarity(qvec, embedding.DeserializeVector(blob), qnorm, norm)
		r.Distance = 1 - sim
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("index: iterate: %w", err)
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Distance < results[j].Distance })
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Count returns the number of indexed chunks.
func (s *Service) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n)
	return n, err
}

// Reset deletes every indexed chunk. The query log is kept.
func (s *Service) Reset(ctx context.Context) error {
	if _, err := dbopen.Exec(ctx, s.db, `DELETE FROM chunks`); err != nil {
		return fmt.Errorf("index: reset: %w", err)
	}
	return nil
}
