// Package providers wraps the external text-generation services behind a
// single LLMProvider interface. The progression engine only ever sees
// this contract; swapping vendors means touching the factory and nothing
// else.
package providers

import "context"

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type UsageInfo struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type LLMResponse struct {
	Content      string     `json:"content"`
	FinishReason string     `json:"finish_reason"`
	Usage        *UsageInfo `json:"usage,omitempty"`
}

type LLMProvider interface {
	Chat(ctx context.Context, messages []Message, model string, options map[string]any) (*LLMResponse, error)
	GetDefaultModel() string
}
