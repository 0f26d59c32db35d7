// Package llm proposes keyword rules for option texts the built-in tables
// do not recognize. Suggestions are advisory: the selector never calls a model.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/surveyfill/internal/model"
)

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Complete sends one system+user exchange and returns the raw reply
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// CompletionRequest is a single prompt exchange
type CompletionRequest struct {
	System    string
	Prompt    string
	Model     string
	MaxTokens int
}

// CompletionResponse is the provider's reply
type CompletionResponse struct {
	Text       string
	Model      string
	TokensUsed int
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama", ""
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI/Anthropic
	APIKey string

	// BaseURL for custom endpoints
	BaseURL string

	Timeout   time.Duration
	MaxTokens int

	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:  "", // Disabled by default
		Timeout:   30 * time.Second,
		MaxTokens: 800,
	}
}

// ConfigFromModel converts the llm and http config sections
func ConfigFromModel(llmCfg model.LLMConfig, httpCfg model.HTTPConfig) Config {
	return Config{
		Provider:   llmCfg.Provider,
		Model:      llmCfg.Model,
		APIKey:     llmCfg.APIKey,
		BaseURL:    llmCfg.BaseURL,
		Timeout:    llmCfg.Timeout,
		MaxTokens:  llmCfg.MaxTokens,
		HTTPProxy:  httpCfg.HTTPProxy,
		HTTPSProxy: httpCfg.HTTPSProxy,
		NoProxy:    httpCfg.NoProxy,
	}
}

const systemPrompt = "You classify survey answer options by sentiment and reply with JSON only."

// maxPromptTexts bounds the prompt size
const maxPromptTexts = 50

// BuildPrompt asks for weighted positive patterns and negative vetoes
func BuildPrompt(texts []string) string {
	var b strings.Builder
	b.WriteString(`The following survey answer options matched no keyword rule.

RULES:
1. Every pattern MUST be a substring of one of the options below (case-insensitive).
2. "positive" patterns mark approving answers. Give each a weight from 1 to 100,
   higher for stronger approval.
3. "negative" patterns mark disapproving answers. Any option containing one is never chosen.
4. Leave neutral options out.

Reply with exactly this JSON shape:
{"positive":[{"pattern":"...","weight":90}],"negative":["..."]}

Options:
`)
	for i, text := range texts {
		if i >= maxPromptTexts {
			fmt.Fprintf(&b, "... and %d more\n", len(texts)-maxPromptTexts)
			break
		}
		fmt.Fprintf(&b, "- %s\n", text)
	}
	return b.String()
}

// rawSuggestion is the JSON shape requested from the model
type rawSuggestion struct {
	Positive []model.KeywordRule `json:"positive"`
	Negative []string            `json:"negative"`
}

// parseSuggestion decodes the first JSON object in a reply.
// Models often wrap JSON in prose or code fences.
func parseSuggestion(reply string) (*rawSuggestion, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("no JSON object in reply")
	}

	var raw rawSuggestion
	if err := json.Unmarshal([]byte(reply[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("decode suggestion: %w", err)
	}
	return &raw, nil
}
