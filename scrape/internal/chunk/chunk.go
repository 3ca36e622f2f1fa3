// Package chunk splits record text into fixed-size overlapping windows
// for retrieval indexing.
//
// Chunk IDs are derived from (scheme_code, chunk_type, index) so that
// re-chunking identical input always produces identical IDs — the store
// and the index both rely on this for delete-and-recreate refresh cycles.
package chunk

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Chunk types.
const (
	TypeScheme    = "scheme"
	TypeFactsheet = "factsheet"
)

// TextChunk is one retrieval unit derived from a record.
type TextChunk struct {
	ChunkID    string            `json:"chunk_id"`
	SchemeCode string            `json:"scheme_code"`
	ChunkType  string            `json:"chunk_type"`
	Content    string            `json:"content"`
	Metadata   map[string]string `json:"metadata"`
	SourceURL  string            `json:"source_url"`
	CreatedAt  time.Time         `json:"created_at"`
}

// Options controls window geometry.
type Options struct {
	Size    int // characters per chunk. Default: 1000.
	Overlap int // characters shared between consecutive chunks. Default: 200.
}

func (o *Options) defaults() {
	if o.Size <= 0 {
		o.Size = 1000
	}
	if o.Overlap < 0 || o.Overlap >= o.Size {
		o.Overlap = 200
		if o.Overlap >= o.Size {
			o.Overlap = o.Size / 5
		}
	}
}

// Split cuts content into overlapping windows. Metadata and sourceURL are
// copied onto every chunk. Empty content yields no chunks.
func Split(schemeCode, chunkType, content, sourceURL string, metadata map[string]string, opts Options) []TextChunk {
	opts.defaults()

	runes := []rune(content)
	if len(runes) == 0 {
		return nil
	}

	now := time.Now().UTC()
	var chunks []TextChunk

	start := 0
	for index := 0; start < len(runes); index++ {
		end := start + opts.Size
		clipped := end
		if clipped > len(runes) {
			clipped = len(runes)
		}

		chunks = append(chunks, TextChunk{
			ChunkID:    ID(schemeCode, chunkType, index),
			SchemeCode: schemeCode,
			ChunkType:  chunkType,
			Content:    string(runes[start:clipped]),
			Metadata:   metadata,
			SourceURL:  sourceURL,
			CreatedAt:  now,
		})

		start = end - opts.Overlap
	}
	return chunks
}

// ID returns the deterministic chunk identifier for a window position.
func ID(schemeCode, chunkType string, index int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s_%s_%d", schemeCode, chunkType, index)))
	return hex.EncodeToString(sum[:])
}
