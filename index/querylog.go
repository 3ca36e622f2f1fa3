package index

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fundveille/fundveille/dbopen"
	"github.com/fundveille/fundveille/idgen"
)

// QueryRecord is one logged question/answer exchange.
type QueryRecord struct {
	ID         string    `json:"id"`
	Question   string    `json:"question"`
	Answer     string    `json:"answer"`
	Confidence string    `json:"confidence"`
	Sources    []string  `json:"sources,omitempty"`
	AskedAt    time.Time `json:"asked_at"`
}

// LogQuery appends a question/answer exchange to the audit log and
// returns the generated record ID.
func (s *Service) LogQuery(ctx context.Context, rec QueryRecord) (string, error) {
	if rec.ID == "" {
		rec.ID = idgen.New()
	}
	if rec.AskedAt.IsZero() {
		rec.AskedAt = time.Now().UTC()
	}
	sources, err := json.Marshal(rec.Sources)
	if err != nil {
		return "", fmt.Errorf("index: marshal sources: %w", err)
	}

	_, err = dbopen.Exec(ctx, s.db,
		`INSERT INTO query_log (id, question, answer, confidence, sources, asked_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Question, rec.Answer, rec.Confidence, string(sources),
		rec.AskedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return "", fmt.Errorf("index: log query: %w", err)
	}
	return rec.ID, nil
}

// RecentQueries returns the latest limit log entries, newest first.
func (s *Service) RecentQueries(ctx context.Context, limit int) ([]QueryRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, question, answer, confidence, sources, asked_at
		 FROM query_log ORDER BY asked_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("index: recent queries: %w", err)
	}
	defer rows.Close()

	var out []QueryRecord
	for rows.Next() {
		var rec QueryRecord
		var sources, askedAt string
		if err := rows.Scan(&rec.ID, &rec.Question, &rec.Answer, &rec.Confidence, &sources, &askedAt); err != nil {
			return nil, fmt.Errorf("index: scan query log: %w", err)
		}
		json.Unmarshal([]byte(sources), &rec.Sources)
		rec.AskedAt, _ = time.Parse(time.RFC3339, askedAt)
		out = append(out, rec)
	}
	return out, rows.Err()
}
