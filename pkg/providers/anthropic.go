package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	defaultAnthropicModel = "claude-sonnet-4-5"
	defaultAnthropicBase  = "https://api.anthropic.com"
)

// AnthropicProvider talks to the Anthropic Messages API.
type AnthropicProvider struct {
	client *anthropic.Client
}

func NewAnthropicProvider(apiKey, apiBase string) *AnthropicProvider {
	if strings.TrimSpace(apiBase) == "" {
		apiBase = defaultAnthropicBase
	}
	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(strings.TrimRight(apiBase, "/")),
	)
	return &AnthropicProvider{client: &client}
}

func (p *AnthropicProvider) GetDefaultModel() string {
	return defaultAnthropicModel
}

func (p *AnthropicProvider) Chat(
	ctx context.Context,
	messages []Message,
	model string,
	options map[string]any,
) (*LLMResponse, error) {
	var system []anthropic.TextBlockParam
	var turns []anthropic.MessageParam

	for _, msg := range messages {
		switch msg.Role {
		case "system":
			system = append(system, anthropic.TextBlockParam{Text: msg.Content})
		case "assistant":
			turns = append(turns, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			turns = append(turns, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}

	maxTokens := int64(4096)
	if mt, ok := options["max_tokens"].(int); ok {
		maxTokens = int64(mt)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  turns,
		MaxTokens: maxTokens,
	}
	if len(system) > 0 {
		params.System = system
	}
	if temp, ok := options["temperature"].(float64); ok {
		params.Temperature = anthropic.Float(temp)
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, Classify(fmt.Errorf("anthropic request failed: %w", err))
	}

	var content strings.Builder
	for _, block := range resp.Content {
		if tb := block.AsText(); tb.Text != "" {
			content.WriteString(tb.Text)
		}
	}

	return &LLMResponse{
		Content:      content.String(),
		FinishReason: string(resp.StopReason),
		Usage: &UsageInfo{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		},
	}, nil
}
