package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/matheus3301/wppbot/internal/assistant"
	"github.com/matheus3301/wppbot/internal/conversation"
)

func TestBuildMessages(t *testing.T) {
	system, msgs := buildMessages([]conversation.Turn{
		{Role: conversation.RoleSystem, Text: "sys"},
		{Role: conversation.RoleAssistant, Text: "orphaned"},
		{Role: conversation.RoleUser, Text: "q"},
		{Role: conversation.RoleAssistant, Text: "a"},
		{Role: conversation.RoleUser, Text: "q2"},
	})
	if system != "sys" {
		t.Errorf("system = %q", system)
	}
	if len(msgs) != 3 {
		t.Fatalf("messages = %d, want 3", len(msgs))
	}
	if msgs[0].Role != "user" || msgs[1].Role != "assistant" || msgs[2].Role != "user" {
		t.Errorf("roles = %s %s %s", msgs[0].Role, msgs[1].Role, msgs[2].Role)
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient("test-key", server.URL, option.WithMaxRetries(0))
}

func TestGenerate(t *testing.T) {
	var body map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Api-Key") != "test-key" {
			t.Errorf("api key header = %q", r.Header.Get("X-Api-Key"))
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Error(err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":            "msg_1",
			"type":          "message",
			"role":          "assistant",
			"model":         "claude-test",
			"stop_reason":   "end_turn",
			"stop_sequence": nil,
			"content":       []map[string]any{{"type": "text", "text": "Oi!"}},
			"usage":         map[string]any{"input_tokens": 3, "output_tokens": 2},
		})
	})

	resp, err := c.Generate(context.Background(), assistant.Request{
		Model: "claude-test",
		Turns: []conversation.Turn{
			{Role: conversation.RoleSystem, Text: "sys"},
			{Role: conversation.RoleUser, Text: "Olá"},
		},
		MaxTokens:   150,
		Temperature: 0.5,
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Text != "Oi!" {
		t.Errorf("text = %q", resp.Text)
	}
	if body["model"] != "claude-test" || body["max_tokens"] != float64(150) || body["temperature"] != 0.5 {
		t.Errorf("request body = %v", body)
	}
}

func TestGenerateStatusError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`))
	})

	_, err := c.Generate(context.Background(), assistant.Request{
		Model:     "claude-test",
		Turns:     []conversation.Turn{{Role: conversation.RoleUser, Text: "hi"}},
		MaxTokens: 100,
	})
	var upErr *assistant.UpstreamError
	if !errors.As(err, &upErr) {
		t.Fatalf("error = %v, want UpstreamError", err)
	}
	if !upErr.RateLimited() {
		t.Errorf("status = %d, want 429", upErr.StatusCode)
	}
}

func TestGenerateRequiresUserTurn(t *testing.T) {
	c := NewClient("k", "http://127.0.0.1:0")
	_, err := c.Generate(context.Background(), assistant.Request{
		Turns: []conversation.Turn{{Role: conversation.RoleSystem, Text: "sys"}},
	})
	var upErr *assistant.UpstreamError
	if !errors.As(err, &upErr) {
		t.Fatalf("error = %v, want UpstreamError", err)
	}
}
