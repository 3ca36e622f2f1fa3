// Package oracle is a thin client for OpenAI-compatible chat-completion
// APIs (OpenRouter, vLLM, OpenAI). The question-answering layer uses it
// to phrase grounded answers from retrieved context; it never decides
// facts on its own.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/fundveille/fundveille/retry"
)

// ErrConfiguration indicates the client has no API key and cannot make
// calls. Callers are expected to fall back to extractive answers.
var ErrConfiguration = errors.New("oracle: api key not configured")

// Config configures the chat client.
type Config struct {
	// Endpoint is the API base URL. Default: "https://openrouter.ai/api".
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// APIKey is sent as a bearer token. Empty means the client is
	// unconfigured and every Complete call returns ErrConfiguration.
	APIKey string `json:"api_key" yaml:"api_key"`

	// Model is the model identifier. Default: "openai/gpt-3.5-turbo".
	Model string `json:"model" yaml:"model"`

	// Temperature for sampling. Low values keep answers close to the
	// provided context. Default: 0.1.
	Temperature float32 `json:"temperature" yaml:"temperature"`

	// MaxTokens caps the completion length. Default: 200.
	MaxTokens int `json:"max_tokens" yaml:"max_tokens"`

	// Timeout per HTTP request. Default: 30s.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// Retry bounds transient-failure retries.
	Retry retry.Policy `json:"retry" yaml:"retry"`

	// Logger for debug/error messages. Defaults to slog.Default().
	Logger *slog.Logger `json:"-" yaml:"-"`
}

func (c *Config) defaults() {
	if c.Endpoint == "" {
		c.Endpoint = "https://openrouter.ai/api"
	}
	if c.Model == "" {
		c.Model = "openai/gpt-3.5-turbo"
	}
	if c.Temperature == 0 {
		c.Temperature = 0.1
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 200
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client talks to a chat-completions endpoint.
type Client struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
}

// New builds a Client. A client without an API key is still returned so
// callers can probe Configured() and degrade gracefully.
func New(cfg Config) *Client {
	cfg.defaults()
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: cfg.Logger,
	}
}

// Configured reports whether the client has an API key.
func (c *Client) Configured() bool { return c.cfg.APIKey != "" }

// Model returns the configured model identifier.
func (c *Client) Model() string { return c.cfg.Model }

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float32   `json:"temperature"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int     `json:"index"`
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Complete sends the messages and returns the first choice's content,
// trimmed. Transient failures are retried per the configured policy.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	if !c.Configured() {
		return "", ErrConfiguration
	}

	body, err := json.Marshal(chatRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("oracle: marshal request: %w", err)
	}

	url := strings.TrimRight(c.cfg.Endpoint, "/") + "/v1/chat/completions"

	var answer string
	err = c.cfg.Retry.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

		start := time.Now()
		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("POST %s: %w", url, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return fmt.Errorf("HTTP %d from %s: %s", resp.StatusCode, url, string(respBody))
		}

		var parsed chatResponse
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		if len(parsed.Choices) == 0 {
			return fmt.Errorf("no choices in response from %s", url)
		}

		answer = strings.TrimSpace(parsed.Choices[0].Message.Content)
		c.logger.Debug("completion received",
			"model", parsed.Model,
			"tokens", parsed.Usage.TotalTokens,
			"duration", time.Since(start))
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("oracle: %w", err)
	}
	return answer, nil
}
