package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicConfig configures AnthropicClient.
type AnthropicConfig struct {
	APIKey    string
	Model     string // defaults to "claude-sonnet-4-20250514"
	MaxTokens int    // defaults to 4096
	Timeout   time.Duration
}

// AnthropicClient implements Interviewer directly against the Anthropic
// Messages API, for deployments without a claude CLI available.
type AnthropicClient struct {
	client    *anthropic.Client
	model     string
	maxTokens int
	timeout   time.Duration
}

// NewAnthropicClient returns a client, or an error if cfg.APIKey is empty.
func NewAnthropicClient(cfg AnthropicConfig) (*AnthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("agent: anthropic API key is required")
	}
	model := cfg.Model
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &AnthropicClient{
		client:    anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:     model,
		maxTokens: maxTokens,
		timeout:   timeout,
	}, nil
}

// IsAvailable always reports true: the client was only constructed with a
// non-empty API key, and a real connectivity probe would cost a request on
// every survey invocation.
func (c *AnthropicClient) IsAvailable(_ context.Context) bool {
	return true
}

// Prompt sends a single system/user exchange.
func (c *AnthropicClient) Prompt(ctx context.Context, system, user string) (string, error) {
	return c.PromptWithHistory(ctx, system, nil, user)
}

// PromptWithHistory continues a conversation via the Messages API.
func (c *AnthropicClient) PromptWithHistory(ctx context.Context, system string, history []Turn, user string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	messages := make([]anthropic.MessageParam, 0, len(history)+1)
	for _, t := range history {
		switch t.Role {
		case "assistant":
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(t.Content)))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(t.Content)))
		}
	}
	messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(user)))

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(c.maxTokens),
		Messages:  messages,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("agent: anthropic API call failed: %w", err)
	}

	var out strings.Builder
	for _, block := range resp.Content {
		if block.Type == anthropic.ContentBlockTypeText {
			out.WriteString(block.Text)
		}
	}
	if out.Len() == 0 {
		return "", fmt.Errorf("agent: anthropic API returned no text content")
	}
	return out.String(), nil
}
