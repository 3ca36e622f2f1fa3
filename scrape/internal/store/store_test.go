package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fundveille/fundveille/scrape/internal/chunk"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

func testScheme(code, name string) *SchemeRecord {
	nav := 45.67
	return &SchemeRecord{
		Metadata: SchemeMetadata{
			SchemeCode:       code,
			SchemeName:       name,
			SchemeType:       TypeEquity,
			SourceURL:        "https://mf.nipponindiaim.com/funds/" + code,
			LastUpdated:      time.Now().UTC(),
			ValidationStatus: StatusPending,
		},
		CurrentNAV: &nav,
		NAVDate:    "28-Aug-2026",
	}
}

// WHAT: a stored scheme round-trips and shows up in the metadata summary.
func TestPutGetScheme(t *testing.T) {
	s := newTestStore(t)
	rec := testScheme("118550", "Nippon India Growth Fund")
	if err := s.PutScheme(rec); err != nil {
		t.Fatalf("PutScheme: %v", err)
	}

	got, err := s.GetScheme("118550")
	if err != nil {
		t.Fatalf("GetScheme: %v", err)
	}
	if got == nil || got.Metadata.SchemeName != "Nippon India Growth Fund" {
		t.Fatalf("got %+v", got)
	}
	if got.CurrentNAV == nil || *got.CurrentNAV != 45.67 {
		t.Errorf("CurrentNAV = %v, want 45.67", got.CurrentNAV)
	}

	meta, err := s.GetMetadata()
	if err != nil {
		t.Fatalf("GetMetadata: %v", err)
	}
	if meta.TotalSchemes != 1 || len(meta.Schemes) != 1 {
		t.Errorf("metadata schemes = %d/%d, want 1/1", meta.TotalSchemes, len(meta.Schemes))
	}
}

// WHAT: re-putting the same scheme updates in place rather than duplicating
// the summary line.
func TestPutSchemeIdempotentSummary(t *testing.T) {
	s := newTestStore(t)
	if err := s.PutScheme(testScheme("118550", "Nippon India Growth Fund")); err != nil {
		t.Fatal(err)
	}
	if err := s.PutScheme(testScheme("118550", "Nippon India Growth Fund - Direct")); err != nil {
		t.Fatal(err)
	}
	meta, _ := s.GetMetadata()
	if meta.TotalSchemes != 1 {
		t.Errorf("TotalSchemes = %d, want 1", meta.TotalSchemes)
	}
	if meta.Schemes[0].SchemeName != "Nippon India Growth Fund - Direct" {
		t.Errorf("summary name not refreshed: %q", meta.Schemes[0].SchemeName)
	}
}

func TestGetSchemeAbsent(t *testing.T) {
	s := newTestStore(t)
	rec, err := s.GetScheme("999999")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec != nil {
		t.Fatalf("want nil for absent scheme, got %+v", rec)
	}
}

// WHAT: name resolution falls through exact → substring → word overlap.
func TestSchemeByName(t *testing.T) {
	s := newTestStore(t)
	for code, name := range map[string]string{
		"118550": "Nippon India Growth Fund",
		"120503": "Nippon India Liquid Fund",
	} {
		if err := s.PutScheme(testScheme(code, name)); err != nil {
			t.Fatal(err)
		}
	}

	rec, err := s.SchemeByName("nippon india growth fund")
	if err != nil || rec == nil {
		t.Fatalf("exact match: rec=%v err=%v", rec, err)
	}
	if rec.Metadata.SchemeCode != "118550" {
		t.Errorf("exact match resolved %s", rec.Metadata.SchemeCode)
	}

	rec, _ = s.SchemeByName("Liquid Fund")
	if rec == nil || rec.Metadata.SchemeCode != "120503" {
		t.Errorf("substring match failed: %+v", rec)
	}

	rec, _ = s.SchemeByName("growth nippon")
	if rec == nil || rec.Metadata.SchemeCode != "118550" {
		t.Errorf("word-overlap match failed: %+v", rec)
	}

	rec, _ = s.SchemeByName("Axis Bluechip")
	if rec != nil {
		t.Errorf("unrelated name matched: %+v", rec)
	}

	// Filler words never count toward overlap: a phrase made of short
	// words must not resolve to an arbitrary record.
	rec, _ = s.SchemeByName("of the")
	if rec != nil {
		t.Errorf("filler-only name matched: %+v", rec)
	}
}

func TestPutGetFactsheet(t *testing.T) {
	s := newTestStore(t)
	f := &FactsheetRecord{
		SchemeCode:  "118550",
		SchemeName:  "Nippon India Growth Fund",
		SourceURL:   "https://mf.nipponindiaim.com/factsheets/118550.pdf",
		LastUpdated: time.Now().UTC(),
		Content:     map[string]string{"Top Holdings": "HDFC Bank 8.2%"},
		RawText:     "Top Holdings\nHDFC Bank 8.2%",
	}
	if err := s.PutFactsheet(f); err != nil {
		t.Fatalf("PutFactsheet: %v", err)
	}
	if err := s.PutFactsheet(f); err != nil {
		t.Fatalf("PutFactsheet again: %v", err)
	}

	got, err := s.GetFactsheet("118550")
	if err != nil || got == nil {
		t.Fatalf("GetFactsheet: got=%v err=%v", got, err)
	}
	if got.Content["Top Holdings"] != "HDFC Bank 8.2%" {
		t.Errorf("content lost: %+v", got.Content)
	}

	// Counter reflects distinct factsheets, not writes.
	meta, _ := s.GetMetadata()
	if meta.TotalFactsheets != 1 {
		t.Errorf("TotalFactsheets = %d, want 1", meta.TotalFactsheets)
	}
}

// WHAT: ReplaceChunks removes the previous generation for the same
// scheme+type and leaves other types alone.
func TestReplaceChunks(t *testing.T) {
	s := newTestStore(t)

	first := chunk.Split("118550", chunk.TypeScheme, "first generation content", "https://mf.nipponindiaim.com/funds/118550", nil, chunk.Options{})
	if err := s.ReplaceChunks("118550", chunk.TypeScheme, first); err != nil {
		t.Fatal(err)
	}
	facts := chunk.Split("118550", chunk.TypeFactsheet, "factsheet content", "https://mf.nipponindiaim.com/factsheets/118550.pdf", nil, chunk.Options{})
	if err := s.ReplaceChunks("118550", chunk.TypeFactsheet, facts); err != nil {
		t.Fatal(err)
	}

	second := chunk.Split("118550", chunk.TypeScheme, "second generation, different content entirely", "https://mf.nipponindiaim.com/funds/118550", nil, chunk.Options{})
	if err := s.ReplaceChunks("118550", chunk.TypeScheme, second); err != nil {
		t.Fatal(err)
	}

	got, err := s.AllChunks("118550")
	if err != nil {
		t.Fatal(err)
	}
	var schemeCount, factCount int
	for _, c := range got {
		switch c.ChunkType {
		case chunk.TypeScheme:
			schemeCount++
			if c.Content != "second generation, different content entirely" {
				t.Errorf("stale scheme chunk survived: %q", c.Content)
			}
		case chunk.TypeFactsheet:
			factCount++
		}
	}
	if schemeCount != 1 || factCount != 1 {
		t.Errorf("chunks = %d scheme / %d factsheet, want 1/1", schemeCount, factCount)
	}

	meta, _ := s.GetMetadata()
	if meta.TotalChunks != 2 {
		t.Errorf("TotalChunks = %d, want 2", meta.TotalChunks)
	}
}

// WHAT: metadata cache invalidation picks up an external write.
func TestInvalidateMetadata(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.PutScheme(testScheme("118550", "Nippon India Growth Fund")); err != nil {
		t.Fatal(err)
	}

	// Simulate another process rewriting metadata.json.
	if err := os.WriteFile(filepath.Join(dir, "metadata.json"), []byte(`{"total_schemes": 42}`), 0o644); err != nil {
		t.Fatal(err)
	}

	meta, _ := s.GetMetadata()
	if meta.TotalSchemes != 1 {
		t.Fatalf("cache should still serve old value, got %d", meta.TotalSchemes)
	}
	s.InvalidateMetadata()
	meta, _ = s.GetMetadata()
	if meta.TotalSchemes != 42 {
		t.Errorf("after invalidate TotalSchemes = %d, want 42", meta.TotalSchemes)
	}
}

func TestTouchRefresh(t *testing.T) {
	s := newTestStore(t)
	if err := s.TouchRefresh(true); err != nil {
		t.Fatal(err)
	}
	meta, _ := s.GetMetadata()
	if meta.LastNAVUpdate == nil {
		t.Error("LastNAVUpdate not set by NAV-only refresh")
	}
	if meta.LastFullRefresh != nil {
		t.Error("NAV-only refresh must not set LastFullRefresh")
	}

	if err := s.TouchRefresh(false); err != nil {
		t.Fatal(err)
	}
	meta, _ = s.GetMetadata()
	if meta.LastFullRefresh == nil {
		t.Error("LastFullRefresh not set by full refresh")
	}
}
