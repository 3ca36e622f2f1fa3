package embedding_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fundveille/fundveille/embedding"
)

// WHAT: the OpenAI-format client posts /v1/embeddings and reassembles
// vectors in input order.
func TestOpenAIClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			t.Errorf("path = %q, want /v1/embeddings", r.URL.Path)
		}
		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req.Model != "test-model" {
			t.Errorf("model = %q", req.Model)
		}
		// Return entries in reverse order to exercise index reassembly.
		type entry struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		var data []entry
		for i := len(req.Input) - 1; i >= 0; i-- {
			data = append(data, entry{Embedding: []float32{float32(i), 1}, Index: i})
		}
		json.NewEncoder(w).Encode(map[string]any{"data": data, "model": req.Model})
	}))
	defer srv.Close()

	emb := embedding.New(embedding.Config{Endpoint: srv.URL, Model: "test-model"})

	vecs, err := emb.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	for i, v := range vecs {
		if v[0] != float32(i) {
			t.Errorf("vec[%d][0] = %v, want %d (order not preserved)", i, v[0], i)
		}
	}
	if emb.Dimension() != 2 {
		t.Errorf("Dimension = %d, want 2 (auto-detected)", emb.Dimension())
	}
}

func TestOpenAIClientServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	emb := embedding.New(embedding.Config{Endpoint: srv.URL})
	if _, err := emb.Embed(context.Background(), "hello"); err == nil {
		t.Fatal("expected error on HTTP 503")
	}
}

// WHAT: without an endpoint, the hashing embedder gives deterministic
// vectors where shared vocabulary means higher similarity.
func TestHashEmbedder(t *testing.T) {
	emb := embedding.New(embedding.Config{Dimension: 64})
	ctx := context.Background()

	a, _ := emb.Embed(ctx, "current NAV of the growth fund")
	a2, _ := emb.Embed(ctx, "current NAV of the growth fund")
	b, _ := emb.Embed(ctx, "NAV of the growth fund today")
	c, _ := emb.Embed(ctx, "quarterly portfolio turnover ratio")

	for i := range a {
		if a[i] != a2[i] {
			t.Fatal("hash embedder is not deterministic")
		}
	}

	simAB := embedding.CosineSimilarity(a, b, embedding.Norm(a), embedding.Norm(b))
	simAC := embedding.CosineSimilarity(a, c, embedding.Norm(a), embedding.Norm(c))
	if simAB <= simAC {
		t.Errorf("similarity(a,b)=%v should exceed similarity(a,c)=%v", simAB, simAC)
	}
}

func TestVectorRoundTrip(t *testing.T) {
	vec := []float32{1.5, -2.25, 0, 3.125}
	got := embedding.DeserializeVector(embedding.SerializeVector(vec))
	if len(got) != len(vec) {
		t.Fatalf("len = %d, want %d", len(got), len(vec))
	}
	for i := range vec {
		if got[i] != vec[i] {
			t.Errorf("got[%d] = %v, want %v", i, got[i], vec[i])
		}
	}
}
