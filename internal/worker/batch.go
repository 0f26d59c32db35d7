package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ppiankov/surveyfill/internal/model"
	"github.com/ppiankov/surveyfill/internal/pipeline"
)

// Filler fills one target (URL or file path)
type Filler interface {
	Fill(ctx context.Context, target string) (*pipeline.FillResult, error)
}

// fillTarget fills one target, waiting on the per-host limiter for URL targets
func (b *BatchProcessor) fillTarget(ctx context.Context, index int, target string) *TargetResult {
	res := &TargetResult{Index: index, Target: target}
	if err := ctx.Err(); err != nil {
		res.Error = err
		return res
	}

	if b.limiter != nil && pipeline.IsURL(target) {
		if err := b.limiter.Wait(ctx, target); err != nil {
			res.Error = fmt.Errorf("rate limit: %w", err)
			return res
		}
	}

	result, err := b.filler.Fill(ctx, target)
	if err != nil {
		res.Error = err
		return res
	}
	res.Report = result.Report
	res.HTML = result.HTML
	return res
}

// TargetResult is the outcome of filling one target
type TargetResult struct {
	Index  int
	Target string
	Report *model.Report
	HTML   string
	Error  error
}

// BatchProcessor fills many targets concurrently
type BatchProcessor struct {
	filler      Filler
	concurrency int
	limiter     *Limiter
}

// NewBatchProcessor creates a batch processor. A non-positive rate disables rate limiting.
func NewBatchProcessor(filler Filler, concurrency int, requestsPerSecond float64, burst int) *BatchProcessor {
	var limiter *Limiter
	if requestsPerSecond > 0 {
		limiter = NewLimiter(requestsPerSecond, burst)
	}
	return &BatchProcessor{
		filler:      filler,
		concurrency: concurrency,
		limiter:     limiter,
	}
}

// ProcessTargets fills every target and returns results in input order
func (b *BatchProcessor) ProcessTargets(ctx context.Context, targets []string) []*TargetResult {
	if len(targets) == 0 {
		return []*TargetResult{}
	}

	pool := NewPool[*TargetResult](ctx, b.concurrency)
	pool.Start()

	for i, target := range targets {
		i, target := i, target
		pool.Submit(func(ctx context.Context) *TargetResult {
			return b.fillTarget(ctx, i, target)
		})
	}

	return pool.Wait()
}

// ProcessFile reads targets from a file and fills them
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*TargetResult, error) {
	targets, err := ReadTargetsFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read targets: %w", err)
	}

	return b.ProcessTargets(ctx, targets), nil
}

// Summarize totals the summaries of successful results and counts failures
func Summarize(results []*TargetResult) (model.Summary, int) {
	var total model.Summary
	failed := 0
	for _, r := range results {
		if r.Error != nil || r.Report == nil {
			failed++
			continue
		}
		total.Add(r.Report.Summary)
	}
	return total, failed
}

// ReadTargetsFromFile reads one target per line, skipping blanks, # comments and duplicates
func ReadTargetsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var targets []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !seen[line] {
			seen[line] = true
			targets = append(targets, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return targets, nil
}
