// Package scrape collects mutual fund scheme data from the fund house
// website: scheme pages, factsheets, NAV values, and official notices.
//
// Records are persisted as JSON documents and sliced into deterministic
// text chunks for downstream retrieval.
package scrape

import (
	"github.com/fundveille/fundveille/scrape/internal/chunk"
	"github.com/fundveille/fundveille/scrape/internal/store"
)

// Re-export store types for public API.
type (
	SchemeRecord    = store.SchemeRecord
	SchemeMetadata  = store.SchemeMetadata
	FactsheetRecord = store.FactsheetRecord
	NAVPoint        = store.NAVPoint
	Notice          = store.Notice
	SchemeSummary   = store.SchemeSummary
	Metadata        = store.Metadata
	TextChunk       = chunk.TextChunk
)

// Validation statuses.
const (
	StatusPending = store.StatusPending
	StatusValid   = store.StatusValid
	StatusPartial = store.StatusPartial
	StatusInvalid = store.StatusInvalid
	StatusError   = store.StatusError
	StatusSkipped = store.StatusSkipped
)

// Scheme types.
const (
	TypeEquity  = store.TypeEquity
	TypeDebt    = store.TypeDebt
	TypeHybrid  = store.TypeHybrid
	TypeLiquid  = store.TypeLiquid
	TypeOther   = store.TypeOther
	TypeUnknown = store.TypeUnknown
)

// Chunk types.
const (
	ChunkScheme    = chunk.TypeScheme
	ChunkFactsheet = chunk.TypeFactsheet
)
