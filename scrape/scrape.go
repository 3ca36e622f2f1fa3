package scrape

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/fundveille/fundveille/retry"
	"github.com/fundveille/fundveille/scrape/internal/chunk"
	"github.com/fundveille/fundveille/scrape/internal/extract"
	"github.com/fundveille/fundveille/scrape/internal/fetch"
	"github.com/fundveille/fundveille/scrape/internal/store"
	"github.com/fundveille/fundveille/urlguard"
)

// Indexer receives regenerated chunks after each refresh. Chunk IDs are
// deterministic, so re-adding the same content is an upsert.
type Indexer interface {
	Index(ctx context.Context, chunks []chunk.TextChunk) error
}

// SchemeRef identifies one scheme discovered on the listing page.
type SchemeRef struct {
	SchemeCode string
	SchemeName string
	URL        string
}

// RefreshResult summarises one refresh pass.
type RefreshResult struct {
	Schemes    int
	Factsheets int
	Chunks     int
	Failed     int
}

// Service is the scraping orchestrator: discovery, extraction,
// validation, storage, and chunking.
type Service struct {
	config    *Config
	guard     *urlguard.Validator
	fetcher   *fetch.Fetcher
	extractor *extract.Extractor
	store     *store.Store
	indexer   Indexer
	logger    *slog.Logger
	retry     retry.Policy
	now       func() time.Time
}

// New creates a scrape Service.
func New(cfg *Config, logger *slog.Logger, opts ...ServiceOption) (*Service, error) {
	if cfg == nil {
		cfg = defaultConfig()
	}
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}

	guard := urlguard.New(cfg.Domains)
	fetchCfg := cfg.Fetch
	fetchCfg.URLCheck = guard.Allowed
	f := fetch.New(fetchCfg)

	st, err := store.Open(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	svc := &Service{
		config:    cfg,
		guard:     guard,
		fetcher:   f,
		extractor: extract.New(guard),
		store:     st,
		logger:    logger,
		retry:     cfg.Retry,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// ServiceOption configures a Service during creation.
type ServiceOption func(*Service)

// WithIndexer wires a retrieval index that receives chunks after refreshes.
func WithIndexer(idx Indexer) ServiceOption {
	return func(svc *Service) { svc.indexer = idx }
}

// --- Fetching ---

// fetchDoc fetches a URL with the configured retry policy and parses it.
func (s *Service) fetchDoc(ctx context.Context, url string) (*html.Node, error) {
	if !s.guard.Allowed(url) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidURL, url)
	}
	var body []byte
	err := s.retry.Do(ctx, func() error {
		res, err := s.fetcher.Get(ctx, url)
		if err != nil {
			return err
		}
		body = res.Body
		return nil
	})
	if err != nil {
		return nil, err
	}
	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}
	return doc, nil
}

// --- Discovery ---

// DiscoverSchemes scans the listing page for scheme links, resolves and
// validates each, and dedups by URL.
func (s *Service) DiscoverSchemes(ctx context.Context) ([]SchemeRef, error) {
	doc, err := s.fetchDoc(ctx, s.config.SchemesListURL)
	if err != nil {
		return nil, fmt.Errorf("scrape: listing page: %w", err)
	}

	var refs []SchemeRef
	seen := make(map[string]bool)
	for _, a := range extract.Links(doc) {
		if !strings.Contains(strings.ToLower(a.Href), "fundsandperformance/pages") {
			continue
		}
		full, ok := s.guard.Normalize(a.Href, s.config.SchemesListURL)
		if !ok || seen[full] {
			continue
		}
		name := strings.TrimSpace(a.Text)
		if len(name) < 3 {
			name = a.Title
		}
		if name == "" {
			continue
		}
		seen[full] = true
		code := s.extractor.SchemeCode(full, nil)
		if code == "" {
			code = fmt.Sprintf("SCHEME_%d", len(refs))
		}
		refs = append(refs, SchemeRef{SchemeCode: code, SchemeName: name, URL: full})
	}
	if len(refs) == 0 {
		return nil, ErrNoSchemes
	}
	return refs, nil
}

// --- Scheme scraping ---

// ScrapeScheme fetches one scheme page and extracts its record. The
// record is not persisted; callers decide.
func (s *Service) ScrapeScheme(ctx context.Context, schemeURL, schemeCode string) (*SchemeRecord, error) {
	normalized, ok := s.guard.Normalize(schemeURL, s.config.BaseURL)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidURL, schemeURL)
	}
	doc, err := s.fetchDoc(ctx, normalized)
	if err != nil {
		return nil, err
	}
	return s.extractor.Scheme(doc, normalized, schemeCode), nil
}

// processScheme validates, stores, chunks, and indexes one record.
func (s *Service) processScheme(ctx context.Context, rec *SchemeRecord) (int, error) {
	if s.config.ValidationEnabled {
		result := s.Validate(ctx, rec)
		result.Apply(rec)
	} else {
		rec.Metadata.ValidationStatus = StatusSkipped
	}

	if err := s.store.PutScheme(rec); err != nil {
		return 0, err
	}

	chunks := chunk.Split(rec.Metadata.SchemeCode, chunk.TypeScheme, SchemeText(rec),
		rec.Metadata.SourceURL, map[string]string{
			"scheme_name": rec.Metadata.SchemeName,
			"scheme_type": rec.Metadata.SchemeType,
		}, s.config.Chunk)
	if err := s.store.ReplaceChunks(rec.Metadata.SchemeCode, chunk.TypeScheme, chunks); err != nil {
		return 0, err
	}
	if s.indexer != nil {
		if err := s.indexer.Index(ctx, chunks); err != nil {
			s.logger.Warn("scrape: index chunks", "scheme", rec.Metadata.SchemeCode, "error", err)
		}
	}
	return len(chunks), nil
}

// --- Refresh jobs ---

// FullRefresh re-scrapes every discovered scheme and its factsheet.
// Individual scheme failures are logged and counted, not fatal.
func (s *Service) FullRefresh(ctx context.Context) (*RefreshResult, error) {
	started := s.now()
	refs, err := s.DiscoverSchemes(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.Info("scrape: full refresh started", "schemes", len(refs))

	result := &RefreshResult{}
	var records []*SchemeRecord
	for i, ref := range refs {
		if i > 0 {
			if err := sleepCtx(ctx, s.config.PolitenessDelay); err != nil {
				return result, err
			}
		}
		rec, err := s.ScrapeScheme(ctx, ref.URL, ref.SchemeCode)
		if err != nil {
			s.logger.Warn("scrape: scheme failed", "url", ref.URL, "error", err)
			result.Failed++
			continue
		}
		n, err := s.processScheme(ctx, rec)
		if err != nil {
			s.logger.Warn("scrape: store scheme failed", "scheme", rec.Metadata.SchemeCode, "error", err)
			result.Failed++
			continue
		}
		result.Schemes++
		result.Chunks += n
		records = append(records, rec)
	}

	for _, rec := range records {
		if rec.Metadata.FactsheetURL == "" {
			continue
		}
		if err := sleepCtx(ctx, s.config.PolitenessDelay); err != nil {
			return result, err
		}
		fact, err := s.ScrapeFactsheet(ctx, rec.Metadata.FactsheetURL,
			rec.Metadata.SchemeCode, rec.Metadata.SchemeName)
		if err != nil {
			s.logger.Warn("scrape: factsheet failed", "scheme", rec.Metadata.SchemeCode, "error", err)
			result.Failed++
			continue
		}
		n, err := s.storeFactsheet(ctx, fact)
		if err != nil {
			result.Failed++
			continue
		}
		result.Factsheets++
		result.Chunks += n
	}

	if err := s.store.TouchRefresh(false); err != nil {
		return result, err
	}
	s.logger.Info("scrape: full refresh done",
		"schemes", result.Schemes, "factsheets", result.Factsheets,
		"chunks", result.Chunks, "failed", result.Failed,
		"elapsed", s.now().Sub(started))
	return result, nil
}

// NAVRefresh re-scrapes only NAV data for already-stored schemes. Other
// fields keep their previous values; chunks are not regenerated.
func (s *Service) NAVRefresh(ctx context.Context) (*RefreshResult, error) {
	schemes, err := s.store.AllSchemes()
	if err != nil {
		return nil, err
	}
	s.logger.Info("scrape: nav refresh started", "schemes", len(schemes))

	result := &RefreshResult{}
	for i, rec := range schemes {
		if i > 0 {
			if err := sleepCtx(ctx, s.config.PolitenessDelay); err != nil {
				return result, err
			}
		}
		fresh, err := s.ScrapeScheme(ctx, rec.Metadata.SourceURL, rec.Metadata.SchemeCode)
		if err != nil || fresh.CurrentNAV == nil {
			result.Failed++
			continue
		}
		rec.CurrentNAV = fresh.CurrentNAV
		rec.NAVDate = fresh.NAVDate
		rec.NAVHistory = fresh.NAVHistory
		rec.Metadata.LastUpdated = s.now().UTC()
		if err := s.store.PutScheme(rec); err != nil {
			result.Failed++
			continue
		}
		result.Schemes++
	}

	if err := s.store.TouchRefresh(true); err != nil {
		return result, err
	}
	s.logger.Info("scrape: nav refresh done", "updated", result.Schemes, "failed", result.Failed)
	return result, nil
}

// --- Store access for the query layer ---

// Scheme returns one stored record; (nil, nil) when absent.
func (s *Service) Scheme(code string) (*SchemeRecord, error) {
	return s.store.GetScheme(code)
}

// SchemeByName resolves a free-text scheme name to a stored record.
// Resolution is advisory: (nil, nil) when nothing matches.
func (s *Service) SchemeByName(name string) (*SchemeRecord, error) {
	return s.store.SchemeByName(name)
}

// AllSchemes returns every stored record.
func (s *Service) AllSchemes() ([]*SchemeRecord, error) {
	return s.store.AllSchemes()
}

// Factsheet returns one stored factsheet; (nil, nil) when absent.
func (s *Service) Factsheet(code string) (*FactsheetRecord, error) {
	return s.store.GetFactsheet(code)
}

// Chunks returns stored chunks, optionally filtered by scheme code.
func (s *Service) Chunks(schemeCode string) ([]TextChunk, error) {
	return s.store.AllChunks(schemeCode)
}

// Stats returns the global store metadata.
func (s *Service) Stats() (Metadata, error) {
	return s.store.GetMetadata()
}

// SearchSchemes filters stored records by a keyword against name,
// category, and type, sorted by scheme name.
func (s *Service) SearchSchemes(keyword string) ([]*SchemeRecord, error) {
	all, err := s.store.AllSchemes()
	if err != nil {
		return nil, err
	}
	kw := strings.ToLower(strings.TrimSpace(keyword))
	var out []*SchemeRecord
	for _, rec := range all {
		if kw == "" ||
			strings.Contains(strings.ToLower(rec.Metadata.SchemeName), kw) ||
			strings.Contains(strings.ToLower(rec.Metadata.Category), kw) ||
			strings.Contains(strings.ToLower(rec.Metadata.SchemeType), kw) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Metadata.SchemeName < out[j].Metadata.SchemeName
	})
	return out, nil
}

// --- Scheme text ---

// SchemeText renders a record as the line-per-fact text that gets
// chunked and indexed.
func SchemeText(rec *SchemeRecord) string {
	parts := []string{
		"Scheme Name: " + rec.Metadata.SchemeName,
		"Scheme Code: " + rec.Metadata.SchemeCode,
		"Scheme Type: " + rec.Metadata.SchemeType,
	}
	add := func(format string, args ...any) {
		parts = append(parts, fmt.Sprintf(format, args...))
	}
	if rec.Metadata.Category != "" {
		add("Category: %s", rec.Metadata.Category)
	}
	if rec.CurrentNAV != nil {
		add("Current NAV: ₹%g", *rec.CurrentNAV)
		if rec.NAVDate != "" {
			add("NAV Date: %s", rec.NAVDate)
		}
	}
	if rec.AUM != nil {
		add("AUM: ₹%g Cr", *rec.AUM)
	}
	if rec.ExpenseRatio != nil {
		add("Expense Ratio: %g%%", *rec.ExpenseRatio)
	}
	if rec.FundManager != "" {
		add("Fund Manager: %s", rec.FundManager)
	}
	if rec.LaunchDate != "" {
		add("Inception Date: %s", rec.LaunchDate)
	}
	if rec.Benchmark != "" {
		add("Benchmark: %s", rec.Benchmark)
	}
	if rec.RiskLevel != "" {
		add("Risk Level: %s", rec.RiskLevel)
	}
	if rec.MinInvestment != nil {
		add("Minimum Investment: ₹%g", *rec.MinInvestment)
	}
	if rec.SIPMinInvestment != nil {
		add("SIP Minimum: ₹%g", *rec.SIPMinInvestment)
	}
	if len(rec.Performance) > 0 {
		periods := make([]string, 0, len(rec.Performance))
		for p := range rec.Performance {
			periods = append(periods, p)
		}
		sort.Strings(periods)
		for _, p := range periods {
			add("%s Return: %g%%", p, rec.Performance[p])
		}
	}
	return strings.Join(parts, "\n")
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
