// Package openai implements assistant.Generator against any OpenAI-compatible
// chat completions endpoint. The default endpoint is Groq.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/matheus3301/wppbot/internal/assistant"
)

const (
	DefaultURL = "https://api.groq.com/openai/v1/chat/completions"
	provider   = "openai"
)

// Client is a minimal chat completions client.
type Client struct {
	apiKey     string
	url        string
	httpClient *http.Client
}

// NewClient creates a client. timeout caps the whole HTTP exchange on top of
// the per-call context deadline.
func NewClient(apiKey, url string, timeout time.Duration) *Client {
	if url == "" {
		url = DefaultURL
	}
	return &Client{
		apiKey: apiKey,
		url:    url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Generate sends the prompt turns as chat messages and returns the first choice.
func (c *Client) Generate(ctx context.Context, req assistant.Request) (assistant.Response, error) {
	msgs := make([]message, 0, len(req.Turns))
	for _, t := range req.Turns {
		msgs = append(msgs, message{Role: string(t.Role), Content: t.Text})
	}
	payload, err := json.Marshal(chatRequest{
		Model:       req.Model,
		Messages:    msgs,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return assistant.Response{}, fmt.Errorf("marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return assistant.Response{}, fmt.Errorf("create chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return assistant.Response{}, assistant.Classify(provider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return assistant.Response{}, assistant.Classify(provider, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return assistant.Response{}, &assistant.UpstreamError{
			Provider:   provider,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("body=%s", truncate(string(body), 400)),
		}
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return assistant.Response{}, &assistant.UpstreamError{
			Provider: provider,
			Err:      fmt.Errorf("parse response: %s", truncate(string(body), 400)),
		}
	}
	if len(parsed.Choices) == 0 {
		return assistant.Response{}, &assistant.EmptyResponseError{Provider: provider}
	}
	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if content == "" {
		return assistant.Response{}, &assistant.EmptyResponseError{Provider: provider}
	}
	return assistant.Response{Text: content}, nil
}

func truncate(s string, maxChars int) string {
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars])
}
