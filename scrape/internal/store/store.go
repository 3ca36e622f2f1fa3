// Package store persists scheme records, factsheets, and text chunks as
// one JSON document per entity, plus a global metadata document.
//
// All writes go through tmp+rename so a concurrent reader (the query
// path during a refresh) never observes a half-written document.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fundveille/fundveille/scrape/internal/chunk"
)

// Store manages the on-disk JSON layout under a data directory:
//
//	data/schemes/<code>.json
//	data/factsheets/<code>_factsheet.json
//	data/chunks/<chunk_id>.json
//	data/metadata.json
type Store struct {
	schemesDir    string
	factsheetsDir string
	chunksDir     string
	metadataPath  string

	mu       sync.Mutex
	metadata *Metadata // cached; nil until first load
}

// Open creates a Store rooted at dataDir, creating subdirectories as needed.
func Open(dataDir string) (*Store, error) {
	s := &Store{
		schemesDir:    filepath.Join(dataDir, "schemes"),
		factsheetsDir: filepath.Join(dataDir, "factsheets"),
		chunksDir:     filepath.Join(dataDir, "chunks"),
		metadataPath:  filepath.Join(dataDir, "metadata.json"),
	}
	for _, dir := range []string{s.schemesDir, s.factsheetsDir, s.chunksDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: mkdir %s: %w", dir, err)
		}
	}
	return s, nil
}

// writeJSON marshals v and atomically replaces path.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("store: marshal %s: %w", path, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("store: write tmp: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("store: rename: %w", err)
	}
	return nil
}

func readJSON(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("store: decode %s: %w", path, err)
	}
	return true, nil
}

// --- Schemes ---

func (s *Store) schemePath(code string) string {
	return filepath.Join(s.schemesDir, code+".json")
}

// PutScheme overwrites the record for its scheme code and updates the
// global metadata summary (insert or refresh the per-scheme line).
func (s *Store) PutScheme(rec *SchemeRecord) error {
	code := rec.Metadata.SchemeCode
	if code == "" {
		return fmt.Errorf("store: scheme record missing scheme_code")
	}
	if err := writeJSON(s.schemePath(code), rec); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	meta, err := s.loadMetadataLocked()
	if err != nil {
		return err
	}
	found := false
	for i := range meta.Schemes {
		if meta.Schemes[i].SchemeCode == code {
			meta.Schemes[i].SchemeName = rec.Metadata.SchemeName
			meta.Schemes[i].SourceURL = rec.Metadata.SourceURL
			found = true
			break
		}
	}
	if !found {
		meta.Schemes = append(meta.Schemes, SchemeSummary{
			SchemeCode: code,
			SchemeName: rec.Metadata.SchemeName,
			SourceURL:  rec.Metadata.SourceURL,
		})
		meta.TotalSchemes++
	}
	return s.saveMetadataLocked()
}

// GetScheme loads one record; (nil, nil) when absent.
func (s *Store) GetScheme(code string) (*SchemeRecord, error) {
	var rec SchemeRecord
	ok, err := readJSON(s.schemePath(code), &rec)
	if err != nil || !ok {
		return nil, err
	}
	return &rec, nil
}

// AllSchemes loads every stored record. Individual decode failures are
// skipped so one corrupted document cannot take down a bulk pass.
func (s *Store) AllSchemes() ([]*SchemeRecord, error) {
	entries, err := os.ReadDir(s.schemesDir)
	if err != nil {
		return nil, err
	}
	var out []*SchemeRecord
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		code := strings.TrimSuffix(e.Name(), ".json")
		rec, err := s.GetScheme(code)
		if err != nil || rec == nil {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// SchemeByName finds a record by name: exact match first, then substring,
// then word overlap (all substantive query words present, or at least two
// in common). Words of three characters or fewer never count toward
// overlap, so filler like "of the" cannot resolve to a record.
func (s *Store) SchemeByName(name string) (*SchemeRecord, error) {
	all, err := s.AllSchemes()
	if err != nil {
		return nil, err
	}
	lower := strings.ToLower(name)

	for _, rec := range all {
		if strings.ToLower(rec.Metadata.SchemeName) == lower {
			return rec, nil
		}
	}
	for _, rec := range all {
		if strings.Contains(strings.ToLower(rec.Metadata.SchemeName), lower) {
			return rec, nil
		}
	}

	queryWords := wordSet(lower)
	if len(queryWords) == 0 {
		return nil, nil
	}
	for _, rec := range all {
		schemeWords := wordSet(strings.ToLower(rec.Metadata.SchemeName))
		common := 0
		missing := false
		for w := range queryWords {
			if schemeWords[w] {
				common++
			} else {
				missing = true
			}
		}
		if !missing || common >= 2 {
			return rec, nil
		}
	}
	return nil, nil
}

func wordSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(s) {
		if len(w) > 3 {
			set[w] = true
		}
	}
	return set
}

// --- Factsheets ---

func (s *Store) factsheetPath(code string) string {
	return filepath.Join(s.factsheetsDir, code+"_factsheet.json")
}

// PutFactsheet overwrites a factsheet document.
func (s *Store) PutFactsheet(f *FactsheetRecord) error {
	if f.SchemeCode == "" {
		return fmt.Errorf("store: factsheet missing scheme_code")
	}
	existing, err := s.GetFactsheet(f.SchemeCode)
	if err != nil {
		return err
	}
	if err := writeJSON(s.factsheetPath(f.SchemeCode), f); err != nil {
		return err
	}
	if existing == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		meta, err := s.loadMetadataLocked()
		if err != nil {
			return err
		}
		meta.TotalFactsheets++
		return s.saveMetadataLocked()
	}
	return nil
}

// GetFactsheet loads one factsheet; (nil, nil) when absent.
func (s *Store) GetFactsheet(code string) (*FactsheetRecord, error) {
	var f FactsheetRecord
	ok, err := readJSON(s.factsheetPath(code), &f)
	if err != nil || !ok {
		return nil, err
	}
	return &f, nil
}

// AllFactsheets loads every stored factsheet.
func (s *Store) AllFactsheets() ([]*FactsheetRecord, error) {
	entries, err := os.ReadDir(s.factsheetsDir)
	if err != nil {
		return nil, err
	}
	var out []*FactsheetRecord
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), "_factsheet.json") {
			continue
		}
		code := strings.TrimSuffix(e.Name(), "_factsheet.json")
		f, err := s.GetFactsheet(code)
		if err != nil || f == nil {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}

// --- Chunks ---

func (s *Store) chunkPath(id string) string {
	return filepath.Join(s.chunksDir, id+".json")
}

// ReplaceChunks deletes all stored chunks for (schemeCode, chunkType) and
// writes the new set. Chunks are derived data: regenerated wholesale, never
// patched.
func (s *Store) ReplaceChunks(schemeCode, chunkType string, chunks []chunk.TextChunk) error {
	removed, err := s.deleteChunks(schemeCode, chunkType)
	if err != nil {
		return err
	}
	for i := range chunks {
		if err := writeJSON(s.chunkPath(chunks[i].ChunkID), &chunks[i]); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	meta, err := s.loadMetadataLocked()
	if err != nil {
		return err
	}
	meta.TotalChunks += len(chunks) - removed
	if meta.TotalChunks < 0 {
		meta.TotalChunks = 0
	}
	return s.saveMetadataLocked()
}

func (s *Store) deleteChunks(schemeCode, chunkType string) (int, error) {
	chunks, err := s.AllChunks(schemeCode)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, c := range chunks {
		if c.ChunkType != chunkType {
			continue
		}
		if err := os.Remove(s.chunkPath(c.ChunkID)); err == nil {
			removed++
		}
	}
	return removed, nil
}

// AllChunks loads stored chunks, optionally filtered by scheme code
// (empty string = all).
func (s *Store) AllChunks(schemeCode string) ([]chunk.TextChunk, error) {
	entries, err := os.ReadDir(s.chunksDir)
	if err != nil {
		return nil, err
	}
	var out []chunk.TextChunk
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		var c chunk.TextChunk
		ok, err := readJSON(filepath.Join(s.chunksDir, e.Name()), &c)
		if err != nil || !ok {
			continue
		}
		if schemeCode != "" && c.SchemeCode != schemeCode {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// --- Metadata ---

// loadMetadataLocked returns the cached metadata, reading from disk on
// first use. Callers hold s.mu.
func (s *Store) loadMetadataLocked() (*Metadata, error) {
	if s.metadata != nil {
		return s.metadata, nil
	}
	var meta Metadata
	if _, err := readJSON(s.metadataPath, &meta); err != nil {
		return nil, err
	}
	s.metadata = &meta
	return s.metadata, nil
}

func (s *Store) saveMetadataLocked() error {
	if s.metadata == nil {
		return nil
	}
	return writeJSON(s.metadataPath, s.metadata)
}

// GetMetadata returns a copy of the global metadata document.
func (s *Store) GetMetadata() (Metadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	meta, err := s.loadMetadataLocked()
	if err != nil {
		return Metadata{}, err
	}
	return *meta, nil
}

// InvalidateMetadata drops the cached metadata so the next read hits disk.
func (s *Store) InvalidateMetadata() {
	s.mu.Lock()
	s.metadata = nil
	s.mu.Unlock()
}

// TouchRefresh records refresh completion timestamps. A NAV-only refresh
// updates only the NAV timestamp; a full refresh updates both.
func (s *Store) TouchRefresh(navOnly bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	meta, err := s.loadMetadataLocked()
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	meta.LastNAVUpdate = &now
	if !navOnly {
		meta.LastFullRefresh = &now
	}
	return s.saveMetadataLocked()
}
