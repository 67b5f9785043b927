// Package claude adapts the Anthropic Messages API to the disposition
// classifier's Provider interface.
package claude

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// DefaultMaxTokens bounds a classification reply.
const DefaultMaxTokens = 512

// ErrNoText is returned when the API replies without any text block.
var ErrNoText = errors.New("no text content in response")

// Client implements disposition.Provider for the Claude API.
type Client struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// New creates a Claude client for model. Each Complete is a single upstream
// request: SDK retries are off, since the classifier falls back to rules on
// any failure. Extra request options (base URL) are passed to the SDK after
// the defaults.
func New(apiKey, model string, opts ...option.RequestOption) *Client {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}, opts...)
	return &Client{
		client:    anthropic.NewClient(opts...),
		model:     model,
		maxTokens: DefaultMaxTokens,
	}
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// Complete sends one user turn with the given system prompt and returns the
// concatenated text of the reply.
func (c *Client) Complete(ctx context.Context, system, prompt string) (string, error) {
	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("claude messages: %w", err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return "", ErrNoText
	}
	return b.String(), nil
}
