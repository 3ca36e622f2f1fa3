// Package query answers natural-language questions about scraped fund
// data. It retrieves the closest chunks from the index, asks the oracle
// to phrase a grounded answer, screens the result for placeholder
// content, and attaches a verified source URL and a confidence grade.
//
// The query path never returns an error to the caller: every failure
// mode resolves into a well-formed low-confidence Answer.
package query

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/fundveille/fundveille/index"
	"github.com/fundveille/fundveille/oracle"
	"github.com/fundveille/fundveille/scrape"
	"github.com/fundveille/fundveille/urlguard"
)

// Confidence grades.
const (
	ConfidenceLow    = "low"
	ConfidenceMedium = "medium"
	ConfidenceHigh   = "high"
)

// Distance thresholds for confidence grading.
const (
	closeDistance = 0.3
	farDistance   = 0.7
)

// Canned low-confidence answers.
const (
	msgTooShort = "Please ask a longer question, for example: what is the current NAV of Nippon India Growth Fund?"
	msgNoInfo   = "I don't have any information about that in the fund data I have collected."
	msgNoSource = "I found related content but cannot trace it to an official source, so I won't answer from it."
	msgSuspect  = "The relevant data looks like placeholder content rather than real fund data, so I won't answer from it."
)

// Answer is the result of one question. It is always produced; failures
// surface as low confidence, never as an error.
type Answer struct {
	Answer     string `json:"answer"`
	SourceURL  string `json:"source_url,omitempty"`
	SchemeCode string `json:"scheme_code,omitempty"`
	Confidence string `json:"confidence"`
}

// Retriever is the retrieval seam, satisfied by *index.Service.
type Retriever interface {
	Query(ctx context.Context, text string, k int) ([]index.Result, error)
}

// Completer is the language-model seam, satisfied by *oracle.Client.
type Completer interface {
	Complete(ctx context.Context, messages []oracle.Message) (string, error)
}

// SchemeResolver looks up stored scheme records by name, satisfied by
// *scrape.Service.
type SchemeResolver interface {
	SchemeByName(name string) (*scrape.SchemeRecord, error)
}

// Logger records question/answer exchanges, satisfied by *index.Service.
type Logger interface {
	LogQuery(ctx context.Context, rec index.QueryRecord) (string, error)
}

// Config configures the query service.
type Config struct {
	// Domains is the source allow-list. Answers only cite URLs on these
	// domains.
	Domains []string `json:"domains" yaml:"domains"`

	// TopK is how many chunks to retrieve. Default: 5.
	TopK int `json:"top_k" yaml:"top_k"`

	// ContextDocs is how many retrieved chunks go into the prompt.
	// Default: 3.
	ContextDocs int `json:"context_docs" yaml:"context_docs"`

	// Logger for debug/error messages. Defaults to slog.Default().
	Logger *slog.Logger `json:"-" yaml:"-"`
}

func (c *Config) defaults() {
	if len(c.Domains) == 0 {
		c.Domains = []string{"mf.nipponindiaim.com", "nipponindiaim.com"}
	}
	if c.TopK <= 0 {
		c.TopK = 5
	}
	if c.ContextDocs <= 0 {
		c.ContextDocs = 3
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Service is the question-answering orchestrator.
type Service struct {
	cfg       Config
	guard     *urlguard.Validator
	retriever Retriever
	completer Completer
	schemes   SchemeResolver
	qlog      Logger
	logger    *slog.Logger
}

// Option customises a Service.
type Option func(*Service)

// WithSchemeResolver enables scheme-name resolution against the store.
func WithSchemeResolver(r SchemeResolver) Option {
	return func(s *Service) { s.schemes = r }
}

// WithQueryLog enables question/answer audit logging.
func WithQueryLog(l Logger) Option {
	return func(s *Service) { s.qlog = l }
}

// New builds a query Service over a retriever and a completer.
func New(cfg Config, retriever Retriever, completer Completer, opts ...Option) *Service {
	cfg.defaults()
	s := &Service{
		cfg:       cfg,
		guard:     urlguard.New(cfg.Domains),
		retriever: retriever,
		completer: completer,
		logger:    cfg.Logger,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// TooShort reports whether q has fewer than 3 non-whitespace characters.
// The HTTP layer uses it to reject before reaching the pipeline.
func TooShort(q string) bool {
	n := 0
	for _, r := range q {
		if !strings.ContainsRune(" \t\r\n", r) {
			n++
		}
	}
	return n < 3
}

// Answer runs the full pipeline: retrieve, resolve, generate, screen,
// grade. It never returns nil.
func (s *Service) Answer(ctx context.Context, q string) *Answer {
	q = strings.TrimSpace(q)

	ans := s.answer(ctx, q)

	if s.qlog != nil {
		if _, err := s.qlog.LogQuery(ctx, index.QueryRecord{
			Question:   q,
			Answer:     ans.Answer,
			Confidence: ans.Confidence,
			Sources:    sourcesOf(ans),
		}); err != nil {
			s.logger.Warn("query log write failed", "error", err)
		}
	}
	return ans
}

func (s *Service) answer(ctx context.Context, q string) *Answer {
	if TooShort(q) {
		return &Answer{Answer: msgTooShort, Confidence: ConfidenceLow}
	}

	results, err := s.retriever.Query(ctx, q, s.cfg.TopK)
	if err != nil {
		s.logger.Error("retrieval failed", "error", err)
		return &Answer{Answer: msgNoInfo, Confidence: ConfidenceLow}
	}
	if len(results) == 0 {
		return &Answer{Answer: msgNoInfo, Confidence: ConfidenceLow}
	}

	schemeCode := results[0].SchemeCode

	// First retrieval hit with a source on an allowed domain wins.
	sourceURL := ""
	for _, r := range results {
		if s.guard.Allowed(r.SourceURL) {
			sourceURL = r.SourceURL
			break
		}
	}
	if sourceURL == "" {
		return &Answer{Answer: msgNoSource, SchemeCode: schemeCode, Confidence: ConfidenceLow}
	}

	// Advisory: a scheme name in the question refines code and source,
	// but a miss changes nothing.
	if s.schemes != nil {
		if name := schemeNameIn(q); name != "" {
			if rec, err := s.schemes.SchemeByName(name); err == nil && rec != nil {
				schemeCode = rec.Metadata.SchemeCode
				if u := preferredSource(rec); u != "" && s.guard.Allowed(u) {
					sourceURL = u
				}
			}
		}
	}

	text := s.generate(ctx, q, results)

	if guardTriggered(text) {
		s.logger.Warn("hallucination guard triggered", "question", q)
		return &Answer{Answer: msgSuspect, SourceURL: sourceURL, SchemeCode: schemeCode, Confidence: ConfidenceLow}
	}

	if !containsURL(text) {
		text = text + "\n\nSource: " + sourceURL
	}

	// Confidence grades the answer as delivered, after the source line
	// is ensured, so extractive and non-citing answers are not penalized
	// for a citation the pipeline supplies anyway.
	return &Answer{
		Answer:     text,
		SourceURL:  sourceURL,
		SchemeCode: schemeCode,
		Confidence: grade(results[0].Distance, containsURL(text)),
	}
}

// grade maps the top-result distance and citation presence to a
// confidence level. Far matches are low regardless of anything else.
func grade(topDistance float64, cited bool) string {
	switch {
	case topDistance > farDistance:
		return ConfidenceLow
	case topDistance < closeDistance && cited:
		return ConfidenceHigh
	default:
		return ConfidenceMedium
	}
}

// preferredSource picks the most specific provenance URL from a record.
func preferredSource(rec *scrape.SchemeRecord) string {
	for _, field := range []string{"nav", "scheme_page", "category"} {
		if u := rec.FieldSources[field]; u != "" {
			return u
		}
	}
	return rec.Metadata.SourceURL
}

var (
	brandFullRe  = regexp.MustCompile(`(?i)nippon\s+india(?:\s+[a-z&-]+){0,5}\s+(?:fund|scheme|plan)\b`)
	brandShortRe = regexp.MustCompile(`(?i)nippon\s+india(?:\s+[a-z&-]+){1,3}`)
	windowNameRe = regexp.MustCompile(`(?i)(?:[a-z&-]+\s+){1,3}(?:fund|scheme|plan)\b`)
)

// schemeNameIn pulls a likely scheme name out of the question: a
// "Nippon India ..." phrase, else a short word window ending in
// fund/scheme/plan that still carries the brand keyword. A generic
// "the growth fund" is not a scheme name and must not trigger
// resolution against the store.
func schemeNameIn(q string) string {
	if m := brandFullRe.FindString(q); m != "" {
		return strings.TrimSpace(m)
	}
	if m := brandShortRe.FindString(q); m != "" {
		return strings.TrimSpace(m)
	}
	for _, m := range windowNameRe.FindAllString(q, -1) {
		if strings.Contains(strings.ToLower(m), "nippon") {
			return strings.TrimSpace(m)
		}
	}
	return ""
}

func containsURL(text string) bool {
	return strings.Contains(text, "http://") || strings.Contains(text, "https://")
}

func sourcesOf(ans *Answer) []string {
	if ans.SourceURL == "" {
		return nil
	}
	return []string{ans.SourceURL}
}
