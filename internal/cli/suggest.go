package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ppiankov/surveyfill/internal/llm"
	"github.com/ppiankov/surveyfill/internal/model"
	"github.com/ppiankov/surveyfill/internal/pipeline"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	llmProvider string
	llmModel    string
	llmCheck    bool
)

// suggestCmd represents the suggest command
var suggestCmd = &cobra.Command{
	Use:   "suggest <url|file>",
	Short: "Ask an LLM for keyword rules covering unrecognized options",
	Long: `Suggest fills a page without writing anything, collects option texts that no
keyword rule matched, and asks an LLM to classify them.

Suggested patterns are checked against the collected texts; anything the model
invented is dropped. The result is printed as a YAML keywords block to paste
into the config file. The selector itself never calls an LLM.

Example:
  export OPENAI_API_KEY=sk-...
  surveyfill suggest survey.html --llm-provider openai
  surveyfill suggest https://example.com/survey --llm-provider ollama --llm-model llama3.1:8b`,
	Args: cobra.ExactArgs(1),
	RunE: runSuggest,
}

func init() {
	rootCmd.AddCommand(suggestCmd)

	suggestCmd.Flags().StringVar(&llmProvider, "llm-provider", "", "LLM provider (openai, anthropic, ollama; default from llm.provider)")
	suggestCmd.Flags().StringVar(&llmModel, "llm-model", "", "LLM model name (default from llm.model)")
	suggestCmd.Flags().BoolVar(&llmCheck, "check", false, "verify the provider is reachable before asking")
	addFetchFlags(suggestCmd)
}

func runSuggest(cmd *cobra.Command, args []string) error {
	target := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyFetchFlags(cmd, cfg)
	if err := applyLLMFlags(cfg); err != nil {
		return err
	}

	provider, err := llm.NewProvider(llm.ConfigFromModel(cfg.LLM, cfg.HTTP), logger.Named("llm"))
	if err != nil {
		return err
	}
	suggester := llm.NewSuggester(provider, llm.ConfigFromModel(cfg.LLM, cfg.HTTP), logger.Named("llm"))
	if !suggester.IsEnabled() {
		return fmt.Errorf("no LLM provider configured (use --llm-provider or llm.provider)")
	}

	p, err := pipeline.NewPipeline(cfg, logger)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	result, err := p.Fill(ctx, target)
	if err != nil {
		return fmt.Errorf("fill failed: %w", err)
	}

	texts := pipeline.UnmatchedTexts(result.Report)
	if len(texts) == 0 {
		fmt.Fprintf(os.Stderr, "✓ Every option on %s matched a keyword rule\n", result.Report.Subject)
		return nil
	}
	fmt.Fprintf(os.Stderr, "⚙️  %d unmatched option text(s), asking %s...\n", len(texts), suggester.ProviderName())

	if llmCheck && !provider.IsAvailable(ctx) {
		return fmt.Errorf("%s is not available", provider.Name())
	}

	suggestion, err := suggester.Suggest(ctx, texts)
	if err != nil {
		if errors.Is(err, ctx.Err()) {
			return fmt.Errorf("suggest canceled: %w", err)
		}
		return fmt.Errorf("suggest failed: %w", err)
	}

	for _, rejected := range suggestion.Rejected {
		fmt.Fprintf(os.Stderr, "✗ dropped %q: not found in any option\n", rejected)
	}
	if suggestion.Empty() {
		fmt.Fprintf(os.Stderr, "✓ No rules suggested\n")
		return nil
	}

	out, err := yaml.Marshal(map[string]interface{}{
		"keywords": map[string]interface{}{
			"positive": suggestion.Positive,
			"negative": suggestion.Negative,
		},
	})
	if err != nil {
		return fmt.Errorf("encode suggestion: %w", err)
	}
	fmt.Print(string(out))

	fmt.Fprintf(os.Stderr, "✓ %d positive, %d negative rule(s) from %s (%d tokens)\n",
		len(suggestion.Positive), len(suggestion.Negative), suggestion.Model, suggestion.TokensUsed)
	return nil
}

// applyLLMFlags overrides the llm section and falls back to provider key variables
func applyLLMFlags(cfg *model.Config) error {
	if llmProvider != "" {
		cfg.LLM.Provider = llmProvider
	}
	if llmModel != "" {
		cfg.LLM.Model = llmModel
	}
	if cfg.LLM.Timeout <= 0 {
		cfg.LLM.Timeout = 30 * time.Second
	}

	switch cfg.LLM.Provider {
	case "openai":
		if cfg.LLM.APIKey == "" {
			cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		}
		if cfg.LLM.APIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY environment variable not set")
		}
	case "anthropic", "claude":
		if cfg.LLM.APIKey == "" {
			cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if cfg.LLM.APIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY environment variable not set")
		}
		// The built-in default model is an OpenAI name
		if cfg.LLM.Model == model.DefaultConfig().LLM.Model {
			cfg.LLM.Model = ""
		}
	case "ollama":
		if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" && cfg.LLM.BaseURL == "" {
			cfg.LLM.BaseURL = baseURL
		}
		if cfg.LLM.Model == model.DefaultConfig().LLM.Model {
			return fmt.Errorf("ollama needs a local model, e.g. --llm-model llama3.1:8b")
		}
	}
	return nil
}
