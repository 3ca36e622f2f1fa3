package embedding

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"
)

// hashEmbedder produces deterministic bag-of-words vectors by hashing
// tokens into a fixed number of buckets. Two texts that share words get
// a higher cosine similarity, which is enough for lexical retrieval in
// development and tests without an embedding server.
type hashEmbedder struct {
	dim   int
	model string
}

func (h *hashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	return h.vector(text), nil
}

func (h *hashEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = h.vector(t)
	}
	return out, nil
}

func (h *hashEmbedder) Dimension() int { return h.dim }
func (h *hashEmbedder) Model() string  { return h.model }

func (h *hashEmbedder) vector(text string) []float32 {
	vec := make([]float32, h.dim)
	for _, tok := range tokenize(text) {
		f := fnv.New32a()
		f.Write([]byte(tok))
		vec[int(f.Sum32())%h.dim]++
	}
	return vec
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
