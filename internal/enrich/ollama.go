// Package enrich turns a raw announcement into bilingual social media copy
// with a local Ollama model, falling back to deterministic templates when
// the model is unavailable.
package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"awardbot/internal/config"
)

// Chatter is one round-trip to a chat model.
type Chatter interface {
	Chat(ctx context.Context, system, user string) (string, error)
}

// Client talks to an Ollama server's /api/chat endpoint.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

var _ Chatter = (*Client)(nil)

func NewClient(cfg config.OllamaConfig) *Client {
	return &Client{
		baseURL:    cfg.BaseURL(),
		model:      cfg.ModelName(),
		httpClient: &http.Client{Timeout: cfg.CallTimeout()},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
	Error   string      `json:"error,omitempty"`
}

// Chat sends one system+user exchange and returns the assistant reply.
func (c *Client) Chat(ctx context.Context, system, user string) (string, error) {
	if c == nil {
		return "", fmt.Errorf("ollama client is nil")
	}

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Stream: false,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("ollama error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("ollama: %s", out.Error)
	}
	return out.Message.Content, nil
}
