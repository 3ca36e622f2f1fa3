package scrape

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/fundveille/fundveille/scrape/internal/chunk"
)

// fakeIndexer records every chunk handed to it.
type fakeIndexer struct {
	mu     sync.Mutex
	chunks []chunk.TextChunk
}

func (f *fakeIndexer) Index(_ context.Context, chunks []chunk.TextChunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chunks = append(f.chunks, chunks...)
	return nil
}

func (f *fakeIndexer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.chunks)
}

// fundSite is a fake fund house website with one scheme.
type fundSite struct {
	mu  sync.Mutex
	nav string
}

func (fs *fundSite) setNAV(nav string) {
	fs.mu.Lock()
	fs.nav = nav
	fs.mu.Unlock()
}

func (fs *fundSite) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/FundsAndPerformance/Pages/Fund-Listing.aspx", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
<a href="/FundsAndPerformance/Pages/118550/growth.aspx">Nippon India Growth Fund</a>
<a href="/FundsAndPerformance/Pages/118550/growth.aspx">Nippon India Growth Fund</a>
<a href="/somewhere/else">Careers</a>
</body></html>`)
	})
	mux.HandleFunc("/FundsAndPerformance/Pages/118550/growth.aspx", func(w http.ResponseWriter, r *http.Request) {
		fs.mu.Lock()
		nav := fs.nav
		fs.mu.Unlock()
		fmt.Fprintf(w, `<html><head><title>Nippon India Growth Fund</title></head><body>
<h1>Nippon India Growth Fund</h1>
<p>Category: Equity</p>
<p>NAV: %s as of 28-08-2026</p>
<p>AUM: 25000 Crore</p>
<p>Expense Ratio: 1.85</p>
<a href="/factsheets/118550-factsheet.aspx">Download Factsheet</a>
</body></html>`, nav)
	})
	mux.HandleFunc("/factsheets/118550-factsheet.aspx", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><table>
<tr><td>Top Holdings</td><td>HDFC Bank 8.2%</td></tr>
<tr><td>Portfolio Turnover</td><td>0.35</td></tr>
</table></body></html>`)
	})
	return mux
}

func newTestService(t *testing.T, srvURL string, opts ...ServiceOption) *Service {
	t.Helper()
	cfg := &Config{
		BaseURL:           srvURL,
		SchemesListURL:    srvURL + "/FundsAndPerformance/Pages/Fund-Listing.aspx",
		Domains:           []string{"127.0.0.1"},
		DataDir:           t.TempDir(),
		ValidationEnabled: true,
	}
	svc, err := New(cfg, slog.Default(), opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return svc
}

func TestDiscoverSchemes(t *testing.T) {
	site := &fundSite{nav: "45.67"}
	srv := httptest.NewServer(site.handler())
	defer srv.Close()

	svc := newTestService(t, srv.URL)
	refs, err := svc.DiscoverSchemes(context.Background())
	if err != nil {
		t.Fatalf("DiscoverSchemes: %v", err)
	}
	// Duplicate link collapses; the careers link is not a scheme page.
	if len(refs) != 1 {
		t.Fatalf("refs = %+v, want exactly one", refs)
	}
	if refs[0].SchemeCode != "118550" || refs[0].SchemeName != "Nippon India Growth Fund" {
		t.Errorf("ref = %+v", refs[0])
	}
}

// WHAT: a full refresh discovers, scrapes, validates, stores, chunks,
// and indexes both the scheme page and its factsheet.
func TestFullRefresh(t *testing.T) {
	site := &fundSite{nav: "45.67"}
	srv := httptest.NewServer(site.handler())
	defer srv.Close()

	idx := &fakeIndexer{}
	svc := newTestService(t, srv.URL, WithIndexer(idx))

	result, err := svc.FullRefresh(context.Background())
	if err != nil {
		t.Fatalf("FullRefresh: %v", err)
	}
	if result.Schemes != 1 || result.Factsheets != 1 || result.Failed != 0 {
		t.Fatalf("result = %+v", result)
	}

	rec, err := svc.Scheme("118550")
	if err != nil || rec == nil {
		t.Fatalf("stored scheme: rec=%v err=%v", rec, err)
	}
	if rec.CurrentNAV == nil || *rec.CurrentNAV != 45.67 {
		t.Errorf("NAV = %v", rec.CurrentNAV)
	}
	// Validation re-fetched the same live page, so everything matches.
	if rec.Metadata.ValidationStatus != StatusValid {
		t.Errorf("validation status = %q, want valid", rec.Metadata.ValidationStatus)
	}
	if rec.Metadata.LastValidated == nil {
		t.Error("last_validated not written back")
	}

	fact, err := svc.Factsheet("118550")
	if err != nil || fact == nil {
		t.Fatalf("stored factsheet: %v / %v", fact, err)
	}
	if fact.Content["Top Holdings"] != "HDFC Bank 8.2%" {
		t.Errorf("factsheet content = %+v", fact.Content)
	}

	chunks, err := svc.Chunks("118550")
	if err != nil || len(chunks) == 0 {
		t.Fatalf("chunks: %d / %v", len(chunks), err)
	}
	if idx.count() != len(chunks) {
		t.Errorf("indexer got %d chunks, store has %d", idx.count(), len(chunks))
	}

	meta, _ := svc.Stats()
	if meta.TotalSchemes != 1 || meta.LastFullRefresh == nil {
		t.Errorf("metadata = %+v", meta)
	}
}

// WHAT: NAV refresh updates NAV fields in place and leaves the rest of
// the record and its chunks alone.
func TestNAVRefresh(t *testing.T) {
	site := &fundSite{nav: "45.67"}
	srv := httptest.NewServer(site.handler())
	defer srv.Close()

	svc := newTestService(t, srv.URL)
	if _, err := svc.FullRefresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	before, _ := svc.Chunks("118550")

	site.setNAV("46.10")
	result, err := svc.NAVRefresh(context.Background())
	if err != nil {
		t.Fatalf("NAVRefresh: %v", err)
	}
	if result.Schemes != 1 {
		t.Fatalf("result = %+v", result)
	}

	rec, _ := svc.Scheme("118550")
	if rec.CurrentNAV == nil || *rec.CurrentNAV != 46.10 {
		t.Errorf("NAV = %v, want refreshed 46.10", rec.CurrentNAV)
	}
	if rec.ExpenseRatio == nil || *rec.ExpenseRatio != 1.85 {
		t.Errorf("expense ratio lost on NAV refresh: %v", rec.ExpenseRatio)
	}

	after, _ := svc.Chunks("118550")
	if len(after) != len(before) {
		t.Errorf("chunks regenerated on NAV refresh: %d -> %d", len(before), len(after))
	}

	meta, _ := svc.Stats()
	if meta.LastNAVUpdate == nil {
		t.Error("last_nav_update not set")
	}
}

// WHAT: one broken scheme page does not abort the refresh.
func TestFullRefreshPartialFailure(t *testing.T) {
	site := &fundSite{nav: "45.67"}
	mux := http.NewServeMux()
	mux.Handle("/", site.handler())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/FundsAndPerformance/Pages/Fund-Listing.aspx" {
			fmt.Fprint(w, `<html><body>
<a href="/FundsAndPerformance/Pages/118550/growth.aspx">Nippon India Growth Fund</a>
<a href="/FundsAndPerformance/Pages/999999/broken.aspx">Nippon India Broken Fund</a>
</body></html>`)
			return
		}
		if r.URL.Path == "/FundsAndPerformance/Pages/999999/broken.aspx" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		mux.ServeHTTP(w, r)
	}))
	defer srv.Close()

	svc := newTestService(t, srv.URL)
	// A failing page is retried, so shrink the budget to keep this fast.
	svc.retry.MaxAttempts = 1

	result, err := svc.FullRefresh(context.Background())
	if err != nil {
		t.Fatalf("FullRefresh: %v", err)
	}
	if result.Schemes != 1 || result.Failed != 1 {
		t.Errorf("result = %+v, want 1 scheme stored and 1 failure", result)
	}
}

func TestScrapeSchemeOffDomain(t *testing.T) {
	site := &fundSite{nav: "45.67"}
	srv := httptest.NewServer(site.handler())
	defer srv.Close()

	svc := newTestService(t, srv.URL)
	if _, err := svc.ScrapeScheme(context.Background(), "https://attacker.example.com/fund", ""); err == nil {
		t.Fatal("off-domain scheme URL accepted")
	}
}

func TestSchemeText(t *testing.T) {
	nav, aum := 45.67, 25000.0
	rec := &SchemeRecord{
		Metadata: SchemeMetadata{
			SchemeCode: "118550",
			SchemeName: "Nippon India Growth Fund",
			SchemeType: TypeEquity,
			Category:   "Equity - Mid Cap",
		},
		CurrentNAV:  &nav,
		NAVDate:     "28-08-2026",
		AUM:         &aum,
		Performance: map[string]float64{"1Y": 24.5, "3Y": 21.2},
	}
	text := SchemeText(rec)
	for _, want := range []string{
		"Scheme Name: Nippon India Growth Fund",
		"Scheme Code: 118550",
		"Current NAV: ₹45.67",
		"NAV Date: 28-08-2026",
		"AUM: ₹25000 Cr",
		"1Y Return: 24.5%",
		"3Y Return: 21.2%",
	} {
		if !containsLine(text, want) {
			t.Errorf("scheme text missing %q\n%s", want, text)
		}
	}
}

func containsLine(text, line string) bool {
	for _, l := range splitLines(text) {
		if l == line {
			return true
		}
	}
	return false
}

func splitLines(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	return append(out, s[start:])
}
