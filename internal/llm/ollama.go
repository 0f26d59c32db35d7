package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

const ollamaDefaultURL = "http://localhost:11434"

// OllamaProvider asks a local Ollama daemon
type OllamaProvider struct {
	api    *jsonAPI
	config Config
	logger *zap.Logger
}

type ollamaGenerate struct {
	Model   string `json:"model"`
	Prompt  string `json:"prompt"`
	System  string `json:"system,omitempty"`
	Format  string `json:"format,omitempty"`
	Stream  bool   `json:"stream"`
	Options struct {
		Temperature float64 `json:"temperature,omitempty"`
		NumPredict  int     `json:"num_predict,omitempty"`
	} `json:"options"`
}

type ollamaReply struct {
	Model           string `json:"model"`
	Response        string `json:"response"`
	PromptEvalCount int    `json:"prompt_eval_count,omitempty"`
	EvalCount       int    `json:"eval_count,omitempty"`
}

func decodeOllamaError(body []byte) (string, string, bool) {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) != nil || e.Error == "" {
		return "", "", false
	}
	return "", e.Error, true
}

// NewOllamaProvider creates an Ollama provider for config.BaseURL or localhost
func NewOllamaProvider(config Config, logger *zap.Logger) (*OllamaProvider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = ollamaDefaultURL
	}

	// Local models answer slower than hosted APIs
	timeout := timeoutOrDefault(config.Timeout, 2*defaultTimeout)

	return &OllamaProvider{
		api:    newJSONAPI(baseURL, timeout, config, nil, decodeOllamaError),
		config: config,
		logger: logger,
	}, nil
}

// Name returns the provider name
func (p *OllamaProvider) Name() string {
	return "ollama"
}

// IsAvailable reports whether the daemon lists its models
func (p *OllamaProvider) IsAvailable(ctx context.Context) bool {
	if err := p.api.call(ctx, http.MethodGet, "/api/tags", nil, nil); err != nil {
		p.logger.Warn("ollama unavailable", zap.String("base_url", p.api.baseURL), zap.Error(err))
		return false
	}
	return true
}

// Complete runs one non-streaming generation in JSON mode
func (p *OllamaProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = p.config.Model
	}
	if model == "" {
		return nil, fmt.Errorf("ollama: a model is required (e.g. llama3.1:8b)")
	}

	gen := ollamaGenerate{
		Model:  model,
		Prompt: req.Prompt,
		System: req.System,
		Format: "json",
	}
	gen.Options.Temperature = 0.2
	gen.Options.NumPredict = tokenBudget(req.MaxTokens, p.config.MaxTokens)

	var reply ollamaReply
	if err := p.api.call(ctx, http.MethodPost, "/api/generate", gen, &reply); err != nil {
		return nil, fmt.Errorf("ollama: %w", err)
	}

	text := strings.TrimSpace(reply.Response)
	tokens := reply.PromptEvalCount + reply.EvalCount
	if tokens == 0 {
		// Roughly four characters per token
		tokens = (len(req.Prompt) + len(text)) / 4
	}

	return &CompletionResponse{Text: text, Model: reply.Model, TokensUsed: tokens}, nil
}
