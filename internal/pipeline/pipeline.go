package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ppiankov/surveyfill/internal/cache"
	"github.com/ppiankov/surveyfill/internal/form"
	"github.com/ppiankov/surveyfill/internal/model"
	"github.com/ppiankov/surveyfill/internal/resolve"
	"github.com/ppiankov/surveyfill/internal/selector"
	"go.uber.org/zap"
)

// Trigger names recorded on reports and metrics
const (
	TriggerManual   = "manual"
	TriggerReady    = "ready"
	TriggerMutation = "mutation"
	TriggerFile     = "file"
	TriggerAPI      = "api"
)

// Observer receives the summary of every run
type Observer interface {
	Observe(trigger string, summary model.Summary)
}

// Pipeline orchestrates a fill run: load, resolve, decide, apply, report
type Pipeline struct {
	fetcher  *Fetcher
	selector *selector.Selector
	resolver resolve.Resolver
	renderer *Renderer
	observer Observer
	config   *model.Config
	logger   *zap.Logger
}

// NewPipeline builds a pipeline from configuration. A nil logger disables logging.
func NewPipeline(cfg *model.Config, logger *zap.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	rules, err := selector.FromConfig(cfg.Keywords)
	if err != nil {
		return nil, fmt.Errorf("keywords: %w", err)
	}

	resolver, err := resolve.NewRegistry(cfg.Resolve.AnswerClass).Chain(cfg.Resolve.Strategies)
	if err != nil {
		return nil, fmt.Errorf("resolve: %w", err)
	}

	fetcher := NewFetcher(
		cfg.HTTP.Timeout, cfg.HTTP.UserAgent, cfg.HTTP.MaxBodyBytes,
		cfg.HTTP.InsecureTLS, cfg.HTTP.HTTPProxy, cfg.HTTP.HTTPSProxy, cfg.HTTP.NoProxy,
	)
	if cfg.HTTP.RespectRobots {
		fetcher.WithRobots()
	}
	if pages := cache.New(cfg.Cache); pages != nil {
		fetcher.WithCache(pages)
	}

	return &Pipeline{
		fetcher:  fetcher,
		selector: selector.New(rules, logger.Named("selector")),
		resolver: resolver,
		renderer: NewRenderer(cfg.Output.IncludeFooter),
		config:   cfg,
		logger:   logger,
	}, nil
}

// SetObserver registers a run observer such as the metrics collector
func (p *Pipeline) SetObserver(o Observer) {
	p.observer = o
}

// Selector returns the configured option selector
func (p *Pipeline) Selector() *selector.Selector {
	return p.selector
}

// Renderer returns the report renderer
func (p *Pipeline) Renderer() *Renderer {
	return p.renderer
}

// FillResult is the outcome of one run
type FillResult struct {
	Report    *model.Report
	HTML      string // Page with decisions applied
	Decisions []selector.Decision
}

type triggerKey struct{}

// WithTrigger records what started the run on ctx
func WithTrigger(ctx context.Context, trigger string) context.Context {
	return context.WithValue(ctx, triggerKey{}, trigger)
}

func triggerFrom(ctx context.Context) string {
	if t, ok := ctx.Value(triggerKey{}).(string); ok && t != "" {
		return t
	}
	return TriggerManual
}

// Fill dispatches on the target: http(s) URLs are fetched, anything else is read as a file
func (p *Pipeline) Fill(ctx context.Context, target string) (*FillResult, error) {
	if IsURL(target) {
		return p.FillURL(ctx, target)
	}
	return p.FillFile(ctx, target)
}

// IsURL reports whether target names an http(s) page
func IsURL(target string) bool {
	lower := strings.ToLower(target)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// FillURL fetches a page and fills it
func (p *Pipeline) FillURL(ctx context.Context, rawURL string) (*FillResult, error) {
	fetched, err := p.fetcher.FetchWithRetry(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}

	result, err := p.FillHTML(ctx, fetched.FinalURL, fetched.HTML)
	if err != nil {
		return nil, err
	}

	meta := fetched.Meta
	result.Report.FetchMeta = &meta
	if result.Report.Subject == "" {
		result.Report.Subject = fetched.Subject
	}
	return result, nil
}

// FillFile reads an HTML file and fills it; the file is not modified
func (p *Pipeline) FillFile(ctx context.Context, path string) (*FillResult, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	result, err := p.FillHTML(ctx, path, string(content))
	if err != nil {
		return nil, err
	}
	if result.Report.Subject == "" {
		base := filepath.Base(path)
		result.Report.Subject = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return result, nil
}

// FillHTML runs the selector over an HTML document and applies the winners
func (p *Pipeline) FillHTML(ctx context.Context, source string, content string) (*FillResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc, err := form.ParseString(content)
	if err != nil {
		return nil, err
	}

	questions := doc.Questions(p.resolver)
	decisions, summary := p.selector.DecideAll(questions)

	// Built before Apply so options report their pre-run selection
	report := BuildReport(questions, decisions, summary)
	applied := doc.Apply(decisions)

	filled, err := doc.HTML()
	if err != nil {
		return nil, err
	}

	trigger := triggerFrom(ctx)
	report.Subject = doc.Title()
	report.Source = source
	report.Trigger = trigger

	p.logger.Info("page filled",
		zap.String("run_id", report.RunID),
		zap.String("source", source),
		zap.String("trigger", trigger),
		zap.Int("total", summary.Total),
		zap.Int("changed", summary.Changed),
		zap.Int("applied", applied),
		zap.Int("fallbacks", summary.Fallbacks))

	if p.observer != nil {
		p.observer.Observe(trigger, summary)
	}

	return &FillResult{
		Report:    report,
		HTML:      filled,
		Decisions: decisions,
	}, nil
}

// BuildReport converts decisions into a report with a fresh run ID.
// Option selection flags are read as they are at call time.
func BuildReport(questions []selector.Question, decisions []selector.Decision, summary model.Summary) *model.Report {
	report := &model.Report{
		RunID:     uuid.NewString(),
		FilledAt:  time.Now().UTC(),
		Questions: make([]model.QuestionReport, 0, len(decisions)),
		Summary:   summary,
	}

	for i, d := range decisions {
		qr := model.QuestionReport{
			ID:       d.QuestionID,
			Winner:   d.Winner,
			Score:    d.Score.Value,
			Fallback: d.Fallback,
			Changed:  d.Changed,
			Skipped:  d.Skipped,
		}
		if d.Option != nil {
			qr.WinnerText = d.Option.Text()
		}
		if i < len(questions) {
			for j, opt := range questions[i].Options {
				optReport := model.OptionReport{
					Text:     opt.Text(),
					Selected: opt.Selected(),
				}
				if j < len(d.Scores) {
					optReport.Score = d.Scores[j].Value
					optReport.Matched = d.Scores[j].Matched
					optReport.Vetoed = d.Scores[j].Vetoed
					optReport.Bonus = d.Scores[j].Bonus
				}
				qr.Options = append(qr.Options, optReport)
			}
		}
		report.Questions = append(report.Questions, qr)
	}

	return report
}

// UnmatchedTexts lists distinct non-empty option texts no rule recognized
func UnmatchedTexts(report *model.Report) []string {
	seen := make(map[string]bool)
	var out []string
	for _, q := range report.Questions {
		for _, o := range q.Options {
			text := strings.TrimSpace(o.Text)
			if text == "" || len(o.Matched) > 0 || len(o.Vetoed) > 0 || seen[text] {
				continue
			}
			seen[text] = true
			out = append(out, text)
		}
	}
	return out
}

// RenderReport writes the JSON and Markdown reports when paths are set
func (p *Pipeline) RenderReport(report *model.Report, jsonPath string, mdPath string) error {
	if jsonPath != "" {
		if err := p.renderer.RenderJSON(report, jsonPath); err != nil {
			return fmt.Errorf("render JSON: %w", err)
		}
		p.logger.Debug("wrote JSON report", zap.String("path", jsonPath))
	}

	if mdPath != "" {
		if err := p.renderer.RenderMarkdown(report, mdPath); err != nil {
			return fmt.Errorf("render markdown: %w", err)
		}
		p.logger.Debug("wrote Markdown report", zap.String("path", mdPath))
	}

	return nil
}
