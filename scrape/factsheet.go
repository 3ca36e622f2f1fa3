package scrape

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"

	"github.com/fundveille/fundveille/scrape/internal/chunk"
	"github.com/fundveille/fundveille/scrape/internal/extract"
	"github.com/fundveille/fundveille/scrape/internal/pdftext"
)

var mdConverter = converter.NewConverter(
	converter.WithPlugins(
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(),
		table.NewTablePlugin(),
	),
)

var textPolicy = bluemonday.StrictPolicy()

// ScrapeFactsheet fetches a factsheet (PDF or HTML) and builds its
// record: structured label/value content plus the full raw text used
// for chunking.
func (s *Service) ScrapeFactsheet(ctx context.Context, factsheetURL, schemeCode, schemeName string) (*FactsheetRecord, error) {
	normalized, ok := s.guard.Normalize(factsheetURL, s.config.BaseURL)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidURL, factsheetURL)
	}

	var body []byte
	err := s.retry.Do(ctx, func() error {
		res, err := s.fetcher.Get(ctx, normalized)
		if err != nil {
			return err
		}
		body = res.Body
		return nil
	})
	if err != nil {
		return nil, err
	}

	fact := &FactsheetRecord{
		SchemeCode:  schemeCode,
		SchemeName:  schemeName,
		SourceURL:   normalized,
		LastUpdated: s.now().UTC(),
	}

	if isPDF(normalized, body) {
		text, err := pdftext.Extract(bytes.NewReader(body))
		if err != nil {
			// Unextractable PDFs still get a stub record so the link
			// itself stays queryable.
			fact.Content = map[string]string{"type": "pdf", "url": normalized}
			fact.RawText = "PDF Factsheet: " + normalized
			return fact, nil
		}
		fact.Content = map[string]string{"type": "pdf", "url": normalized}
		fact.RawText = text
		return fact, nil
	}

	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}
	fact.Content = extract.FactsheetContent(doc)
	fact.RawText = htmlToText(string(body), doc, normalized)
	return fact, nil
}

// storeFactsheet persists a factsheet and regenerates its chunks.
func (s *Service) storeFactsheet(ctx context.Context, fact *FactsheetRecord) (int, error) {
	if err := s.store.PutFactsheet(fact); err != nil {
		return 0, err
	}
	chunks := chunk.Split(fact.SchemeCode, chunk.TypeFactsheet, fact.RawText,
		fact.SourceURL, map[string]string{"scheme_name": fact.SchemeName}, s.config.Chunk)
	if err := s.store.ReplaceChunks(fact.SchemeCode, chunk.TypeFactsheet, chunks); err != nil {
		return 0, err
	}
	if s.indexer != nil {
		if err := s.indexer.Index(ctx, chunks); err != nil {
			s.logger.Warn("scrape: index factsheet chunks", "scheme", fact.SchemeCode, "error", err)
		}
	}
	return len(chunks), nil
}

func isPDF(url string, body []byte) bool {
	return strings.HasSuffix(strings.ToLower(url), ".pdf") || bytes.HasPrefix(body, []byte("%PDF"))
}

// htmlToText converts factsheet HTML to markdown so tables keep their
// structure in the chunked text. Falls back to tag-stripped plain text.
func htmlToText(rawHTML string, doc *html.Node, sourceURL string) string {
	result, err := mdConverter.ConvertString(rawHTML, converter.WithDomain(sourceURL))
	if err == nil && strings.TrimSpace(result) != "" {
		return strings.TrimSpace(result)
	}
	if text := strings.TrimSpace(textPolicy.Sanitize(rawHTML)); text != "" {
		return text
	}
	return extract.PageText(doc)
}
