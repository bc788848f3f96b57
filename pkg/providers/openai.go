package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	defaultOpenAIModel   = "gpt-4o"
	defaultOpenAIBase    = "https://api.openai.com/v1"
	defaultOpenAITimeout = 120 * time.Second
)

// OpenAIProvider talks to any OpenAI-compatible chat completion endpoint.
type OpenAIProvider struct {
	client *openai.Client
}

func NewOpenAIProvider(apiKey, apiBase, proxy string) *OpenAIProvider {
	if strings.TrimSpace(apiBase) == "" {
		apiBase = defaultOpenAIBase
	}

	httpClient := &http.Client{Timeout: defaultOpenAITimeout}
	if proxy != "" {
		if parsed, err := url.Parse(proxy); err == nil {
			httpClient.Transport = &http.Transport{Proxy: http.ProxyURL(parsed)}
		}
	}

	reqOpts := []option.RequestOption{
		option.WithBaseURL(strings.TrimRight(apiBase, "/")),
		option.WithHTTPClient(httpClient),
	}
	if apiKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(apiKey))
	}

	client := openai.NewClient(reqOpts...)
	return &OpenAIProvider{client: &client}
}

func (p *OpenAIProvider) GetDefaultModel() string {
	return defaultOpenAIModel
}

func (p *OpenAIProvider) Chat(
	ctx context.Context,
	messages []Message,
	model string,
	options map[string]any,
) (*LLMResponse, error) {
	params := openai.ChatCompletionNewParams{
		Model:    model,
		Messages: buildOpenAIMessages(messages),
	}
	if temp, ok := options["temperature"].(float64); ok {
		params.Temperature = openai.Float(temp)
	}
	if mt, ok := options["max_tokens"].(int); ok {
		params.MaxCompletionTokens = openai.Int(int64(mt))
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return nil, Classify(fmt.Errorf(
				"openai request failed (status=%d): %s",
				apiErr.StatusCode, strings.TrimSpace(apiErr.Message)))
		}
		return nil, Classify(fmt.Errorf("openai request failed: %w", err))
	}
	if resp == nil || len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai returned no choices")
	}

	choice := resp.Choices[0]
	out := &LLMResponse{
		Content:      choice.Message.Content,
		FinishReason: choice.FinishReason,
	}
	out.Usage = &UsageInfo{
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
	}
	return out, nil
}

func buildOpenAIMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case "system":
			out = append(out, openai.SystemMessage(msg.Content))
		case "assistant":
			out = append(out, openai.AssistantMessage(msg.Content))
		default:
			out = append(out, openai.UserMessage(msg.Content))
		}
	}
	return out
}
