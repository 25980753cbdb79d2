package llm

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ppiankov/contractrag/internal/model"
)

// NewProvider creates a completion provider based on configuration
func NewProvider(ctx context.Context, config Config) (Provider, error) {
	if config.APIKey == "" {
		config.APIKey = APIKeyFromEnv(config.Provider)
	}

	switch strings.ToLower(config.Provider) {
	case "openai":
		return NewOpenAIProvider(config)

	case "anthropic", "claude":
		return NewAnthropicProvider(config)

	case "ollama":
		if config.BaseURL == "" {
			config.BaseURL = os.Getenv("OLLAMA_BASE_URL")
		}
		return NewOllamaProvider(config)

	case "gemini", "google":
		return NewGeminiProvider(ctx, config)

	case "":
		return nil, fmt.Errorf("no LLM provider configured")

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: openai, anthropic, ollama, gemini)", config.Provider)
	}
}

// APIKeyFromEnv returns the conventional API key variable for a provider
func APIKeyFromEnv(provider string) string {
	switch strings.ToLower(provider) {
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	case "anthropic", "claude":
		return os.Getenv("ANTHROPIC_API_KEY")
	case "gemini", "google":
		if key := os.Getenv("GEMINI_API_KEY"); key != "" {
			return key
		}
		return os.Getenv("GOOGLE_API_KEY")
	}
	return ""
}

// ConfigFromModel converts model.LLMConfig to llm.Config
func ConfigFromModel(m model.LLMConfig) Config {
	return Config{
		Provider:    m.Provider,
		Model:       m.Model,
		APIKey:      m.APIKey,
		BaseURL:     m.BaseURL,
		Timeout:     m.Timeout,
		MaxTokens:   m.MaxTokens,
		Temperature: m.Temperature,
		HTTPProxy:   m.HTTPProxy,
		HTTPSProxy:  m.HTTPSProxy,
		NoProxy:     m.NoProxy,
	}
}

// GuardConfigFromModel extracts rate limit and breaker settings
func GuardConfigFromModel(m model.LLMConfig) GuardConfig {
	return GuardConfig{
		RequestsPerSecond: m.RequestsPerSecond,
		Burst:             m.Burst,
		MaxFailures:       m.BreakerFailures,
		Cooldown:          time.Duration(m.BreakerCooldown) * time.Second,
	}
}
