package llm

import (
	"fmt"
	"strings"

	"github.com/ppiankov/civicner/internal/model"
)

// DefaultOllamaURL is Ollama's OpenAI-compatible endpoint
const DefaultOllamaURL = "http://localhost:11434/v1"

// NewProvider creates a provider from configuration. An empty provider
// name disables the digest and returns (nil, nil).
func NewProvider(config Config) (Provider, error) {
	switch strings.ToLower(config.Provider) {
	case "openai":
		return NewOpenAIProvider(config)

	case "ollama":
		if config.BaseURL == "" {
			config.BaseURL = DefaultOllamaURL
		}
		if config.APIKey == "" {
			config.APIKey = "ollama"
		}
		if config.Model == "" {
			return nil, fmt.Errorf("ollama requires a model name")
		}
		p, err := NewOpenAIProvider(config)
		if err != nil {
			return nil, err
		}
		p.name = "ollama"
		return p, nil

	case "":
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: openai, ollama)", config.Provider)
	}
}

// ConfigFromModel converts the file/env configuration, taking proxy
// settings from the shared HTTP config
func ConfigFromModel(c model.LLMConfig, h model.HTTPConfig) Config {
	return Config{
		Provider:       c.Provider,
		Model:          c.Model,
		APIKey:         c.APIKey,
		BaseURL:        c.BaseURL,
		Timeout:        c.Timeout,
		StrictEvidence: c.StrictEvidence,
		MaxTokens:      c.MaxTokens,
		HTTPProxy:      h.HTTPProxy,
		HTTPSProxy:     h.HTTPSProxy,
		NoProxy:        h.NoProxy,
	}
}
