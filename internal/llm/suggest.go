package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ppiankov/surveyfill/internal/model"
	"github.com/ppiankov/surveyfill/internal/selector"
	"go.uber.org/zap"
)

// Weight bounds for suggested positive rules
const (
	MinSuggestedWeight = 1
	MaxSuggestedWeight = 100
)

// ErrDisabled is returned when no provider is configured
var ErrDisabled = errors.New("llm provider not configured")

// Suggestion is a validated set of proposed rules
type Suggestion struct {
	Positive []model.KeywordRule `json:"positive" yaml:"positive"`
	Negative []string            `json:"negative" yaml:"negative"`

	// Rejected holds patterns that did not occur in any input text
	Rejected []string `json:"rejected,omitempty" yaml:"-"`

	Model      string `json:"model,omitempty" yaml:"-"`
	TokensUsed int    `json:"tokens_used,omitempty" yaml:"-"`
}

// Empty reports whether nothing usable was proposed
func (s *Suggestion) Empty() bool {
	return len(s.Positive) == 0 && len(s.Negative) == 0
}

// Suggester turns unmatched option texts into candidate rules
type Suggester struct {
	provider  Provider
	model     string
	maxTokens int
	logger    *zap.Logger
}

// NewSuggester wraps a provider. A nil provider yields a disabled suggester.
func NewSuggester(provider Provider, config Config, logger *zap.Logger) *Suggester {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Suggester{
		provider:  provider,
		model:     config.Model,
		maxTokens: config.MaxTokens,
		logger:    logger,
	}
}

// IsEnabled reports whether a provider is configured
func (s *Suggester) IsEnabled() bool {
	return s.provider != nil
}

// ProviderName returns the configured provider, or "none"
func (s *Suggester) ProviderName() string {
	if s.provider == nil {
		return "none"
	}
	return s.provider.Name()
}

// Suggest asks the provider for rules covering texts and keeps only patterns
// that occur in at least one of them
func (s *Suggester) Suggest(ctx context.Context, texts []string) (*Suggestion, error) {
	if s.provider == nil {
		return nil, ErrDisabled
	}
	if len(texts) == 0 {
		return &Suggestion{}, nil
	}

	resp, err := s.provider.Complete(ctx, CompletionRequest{
		System:    systemPrompt,
		Prompt:    BuildPrompt(texts),
		Model:     s.model,
		MaxTokens: s.maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.provider.Name(), err)
	}

	raw, err := parseSuggestion(resp.Text)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.provider.Name(), err)
	}

	suggestion := validate(raw, texts)
	suggestion.Model = resp.Model
	suggestion.TokensUsed = resp.TokensUsed

	s.logger.Debug("keyword suggestions",
		zap.String("provider", s.provider.Name()),
		zap.Int("texts", len(texts)),
		zap.Int("positive", len(suggestion.Positive)),
		zap.Int("negative", len(suggestion.Negative)),
		zap.Strings("rejected", suggestion.Rejected))

	return suggestion, nil
}

// validate normalizes, dedupes and grounds patterns in the input texts.
// A pattern proposed as both positive and negative is kept as negative only.
func validate(raw *rawSuggestion, texts []string) *Suggestion {
	normTexts := make([]string, len(texts))
	for i, t := range texts {
		normTexts[i] = selector.Normalize(t)
	}

	out := &Suggestion{}
	rejected := make(map[string]bool)
	reject := func(p string) {
		if !rejected[p] {
			rejected[p] = true
			out.Rejected = append(out.Rejected, p)
		}
	}

	negative := make(map[string]bool)
	for _, p := range raw.Negative {
		norm := selector.Normalize(p)
		if norm == "" || negative[norm] {
			continue
		}
		if !occursIn(norm, normTexts) {
			reject(norm)
			continue
		}
		negative[norm] = true
		out.Negative = append(out.Negative, norm)
	}

	positive := make(map[string]bool)
	for _, rule := range raw.Positive {
		norm := selector.Normalize(rule.Pattern)
		if norm == "" || positive[norm] || negative[norm] {
			continue
		}
		if !occursIn(norm, normTexts) {
			reject(norm)
			continue
		}
		positive[norm] = true
		out.Positive = append(out.Positive, model.KeywordRule{
			Pattern: norm,
			Weight:  clampWeight(rule.Weight),
		})
	}

	return out
}

func occursIn(pattern string, texts []string) bool {
	for _, t := range texts {
		if strings.Contains(t, pattern) {
			return true
		}
	}
	return false
}

func clampWeight(w int) int {
	if w < MinSuggestedWeight {
		return MinSuggestedWeight
	}
	if w > MaxSuggestedWeight {
		return MaxSuggestedWeight
	}
	return w
}
