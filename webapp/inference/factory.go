package inference

import (
	"context"
	"fmt"

	"github.com/guardian/enginimate/common/helpers"
	"github.com/phuslu/log"
)

/**
builds the configured provider, wrapped in the shared rate limiter
*/
func NewClientFromConfig(ctx context.Context, config helpers.InferenceConfig) (Client, error) {
	var client Client

	switch config.Provider {
	case "anthropic", "claude":
		client = NewAnthropicClient(config.APIKey, config.Model, config.BaseURL, config.MaxTokens)
	case "gemini":
		gemini, err := NewGeminiClient(ctx, config.APIKey, config.Model)
		if err != nil {
			return nil, err
		}
		client = gemini
	case "groq", "openai", "openrouter":
		baseURL := config.BaseURL
		if baseURL == "" && config.Provider == "groq" {
			baseURL = GroqBaseURL
		}
		compat, err := NewOpenAICompatibleClient(config.APIKey, config.Model, baseURL)
		if err != nil {
			return nil, err
		}
		client = compat
	default:
		return nil, fmt.Errorf("unknown inference provider '%s'", config.Provider)
	}

	log.Info().Str("provider", config.Provider).Str("model", config.Model).Msgf("Inference client ready, limited to %d calls/min", config.RatePerMin)
	return NewRateLimitedClient(client, config.RatePerMin, config.RateBurst), nil
}
