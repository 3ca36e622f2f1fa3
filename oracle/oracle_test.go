package oracle_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fundveille/fundveille/oracle"
	"github.com/fundveille/fundveille/retry"
)

func fastRetry() retry.Policy {
	return retry.Policy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
}

// WHAT: Complete posts the chat request with bearer auth and returns the
// first choice's trimmed content.
func TestComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		var req struct {
			Model       string           `json:"model"`
			Messages    []oracle.Message `json:"messages"`
			MaxTokens   int              `json:"max_tokens"`
			Temperature float32          `json:"temperature"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req.MaxTokens != 200 || req.Temperature != 0.1 {
			t.Errorf("max_tokens = %d, temperature = %v", req.MaxTokens, req.Temperature)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("messages = %+v", req.Messages)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "  The NAV is 45.67.  "}},
			},
		})
	}))
	defer srv.Close()

	c := oracle.New(oracle.Config{Endpoint: srv.URL, APIKey: "test-key", Retry: fastRetry()})

	got, err := c.Complete(context.Background(), []oracle.Message{
		{Role: "system", Content: "Answer only from the context."},
		{Role: "user", Content: "What is the NAV?"},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "The NAV is 45.67." {
		t.Errorf("answer = %q", got)
	}
}

func TestCompleteUnconfigured(t *testing.T) {
	c := oracle.New(oracle.Config{})
	if c.Configured() {
		t.Error("Configured() = true without key")
	}
	_, err := c.Complete(context.Background(), []oracle.Message{{Role: "user", Content: "hi"}})
	if !errors.Is(err, oracle.ErrConfiguration) {
		t.Fatalf("err = %v, want ErrConfiguration", err)
	}
}

// WHAT: transient server errors are retried.
func TestCompleteRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "ok"}},
			},
		})
	}))
	defer srv.Close()

	c := oracle.New(oracle.Config{Endpoint: srv.URL, APIKey: "k", Retry: fastRetry()})
	got, err := c.Complete(context.Background(), []oracle.Message{{Role: "user", Content: "hi"}})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "ok" || calls.Load() != 2 {
		t.Errorf("answer = %q, calls = %d", got, calls.Load())
	}
}

func TestCompleteExhaustsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := oracle.New(oracle.Config{Endpoint: srv.URL, APIKey: "k", Retry: fastRetry()})
	if _, err := c.Complete(context.Background(), []oracle.Message{{Role: "user", Content: "hi"}}); err == nil {
		t.Fatal("expected error after exhausted retries")
	}
}
