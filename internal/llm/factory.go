package llm

import (
	"context"
	"fmt"

	"plgn/internal/config"
)

// NewClient builds a completion client from configuration.
func NewClient(ctx context.Context, cfg config.LLMConfig) (Client, error) {
	switch cfg.Provider {
	case "openai", "":
		return NewOpenAIClient(cfg.APIKey, WithBaseURL(cfg.BaseURL)), nil
	case "anthropic":
		return NewAnthropicClient(cfg.APIKey, WithAnthropicBaseURL(cfg.BaseURL)), nil
	case "gemini":
		return NewGeminiClient(ctx, cfg.APIKey)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, cfg.Provider)
	}
}
