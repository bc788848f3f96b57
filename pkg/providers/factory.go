package providers

import (
	"fmt"

	"github.com/soulmint/soulmint/pkg/config"
)

// CreateProvider is the single entry point for constructing an
// LLMProvider from configuration. Adding a vendor means adding a case
// here and nothing else.
func CreateProvider(cfg *config.Config) (LLMProvider, error) {
	switch cfg.LLM.Provider {
	case "", "openai":
		return NewOpenAIProvider(cfg.LLM.APIKey, cfg.LLM.APIBase, cfg.LLM.Proxy), nil
	case "anthropic":
		return NewAnthropicProvider(cfg.LLM.APIKey, cfg.LLM.APIBase), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
}
