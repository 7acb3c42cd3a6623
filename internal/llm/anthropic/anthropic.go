// Package anthropic implements assistant.Generator with the Anthropic Messages API.
package anthropic

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/matheus3301/wppbot/internal/assistant"
	"github.com/matheus3301/wppbot/internal/conversation"
)

const provider = "anthropic"

// Client wraps the Anthropic SDK client.
type Client struct {
	client anthropic.Client
}

// NewClient creates a client. baseURL may be empty to use the public API.
func NewClient(apiKey, baseURL string, opts ...option.RequestOption) *Client {
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}
	reqOpts = append(reqOpts, opts...)
	return &Client{client: anthropic.NewClient(reqOpts...)}
}

// Generate sends the prompt and returns the concatenated text blocks of the reply.
func (c *Client) Generate(ctx context.Context, req assistant.Request) (assistant.Response, error) {
	system, messages := buildMessages(req.Turns)
	if len(messages) == 0 {
		return assistant.Response{}, &assistant.UpstreamError{
			Provider: provider,
			Err:      errors.New("prompt has no user turn"),
		}
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(req.Model),
		MaxTokens:   int64(req.MaxTokens),
		Messages:    messages,
		Temperature: anthropic.Float(req.Temperature),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return assistant.Response{}, &assistant.UpstreamError{
				Provider:   provider,
				StatusCode: apiErr.StatusCode,
				Err:        err,
			}
		}
		return assistant.Response{}, assistant.Classify(provider, err)
	}

	text := strings.TrimSpace(extractText(msg))
	if text == "" {
		return assistant.Response{}, &assistant.EmptyResponseError{Provider: provider}
	}
	return assistant.Response{Text: text}, nil
}

// buildMessages splits off the system turn and drops assistant turns that
// precede the first user turn, which the API rejects.
func buildMessages(turns []conversation.Turn) (string, []anthropic.MessageParam) {
	var system []string
	var messages []anthropic.MessageParam
	for _, t := range turns {
		switch t.Role {
		case conversation.RoleSystem:
			system = append(system, t.Text)
		case conversation.RoleUser:
			messages = append(messages, textMessage(anthropic.MessageParamRoleUser, t.Text))
		case conversation.RoleAssistant:
			if len(messages) == 0 {
				continue
			}
			messages = append(messages, textMessage(anthropic.MessageParamRoleAssistant, t.Text))
		}
	}
	return strings.Join(system, "\n\n"), messages
}

func textMessage(role anthropic.MessageParamRole, text string) anthropic.MessageParam {
	return anthropic.MessageParam{
		Role: role,
		Content: []anthropic.ContentBlockParamUnion{
			anthropic.NewTextBlock(text),
		},
	}
}

func extractText(msg *anthropic.Message) string {
	var sb strings.Builder
	for _, block := range msg.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			sb.WriteString(b.Text)
		}
	}
	return sb.String()
}
