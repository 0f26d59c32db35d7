package llm

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

const defaultTimeout = 30 * time.Second

// NewProvider creates a new LLM provider based on configuration.
// An empty provider name disables suggestions and returns nil, nil.
func NewProvider(config Config, logger *zap.Logger) (Provider, error) {
	var (
		provider Provider
		err      error
	)

	// Never wrap a nil pointer in the interface
	switch strings.ToLower(config.Provider) {
	case "openai":
		var p *OpenAIProvider
		if p, err = NewOpenAIProvider(config, logger); err == nil {
			provider = p
		}

	case "anthropic", "claude":
		var p *AnthropicProvider
		if p, err = NewAnthropicProvider(config, logger); err == nil {
			provider = p
		}

	case "ollama":
		var p *OllamaProvider
		if p, err = NewOllamaProvider(config, logger); err == nil {
			provider = p
		}

	case "":
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: openai, anthropic, ollama)", config.Provider)
	}

	if err != nil {
		return nil, err
	}
	return provider, nil
}

func timeoutOrDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
