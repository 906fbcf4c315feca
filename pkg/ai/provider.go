package ai

import (
	"fmt"
	"strings"
)

// ProviderConfig selects and configures a chat provider.
type ProviderConfig struct {
	Provider  string
	BaseURL   string
	APIKey    string
	Model     string
	MaxTokens int
}

// NewGenerator returns the ChatGenerator named by cfg.Provider.
func NewGenerator(cfg ProviderConfig) (ChatGenerator, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "anthropic":
		return NewAnthropicGenerator(cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.MaxTokens)
	case "openai", "openai-compat":
		if strings.TrimSpace(cfg.BaseURL) == "" {
			return nil, fmt.Errorf("openai-compat base url required")
		}
		return NewOpenAICompatGenerator(cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.MaxTokens), nil
	case "ollama":
		return NewOllamaGenerator(cfg.BaseURL, cfg.Model), nil
	case "gemini":
		return NewGeminiGenerator(cfg.BaseURL, cfg.APIKey, cfg.Model)
	default:
		return nil, fmt.Errorf("unknown ai provider %q", cfg.Provider)
	}
}
