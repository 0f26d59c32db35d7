package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ppiankov/surveyfill/internal/model"
	"github.com/ppiankov/surveyfill/internal/pipeline"
	"github.com/spf13/cobra"
)

var (
	outJSON     string
	outMD       string
	outHTML     string
	inPlace     bool
	timeout     time.Duration
	userAgent   string
	maxBytes    int64
	noCache     bool
	noFooter    bool
	noRobots    bool
	insecureTLS bool
	httpProxy   string
	httpsProxy  string
)

// fillCmd represents the fill command
var fillCmd = &cobra.Command{
	Use:   "fill <url|file>",
	Short: "Select the most positive answer for every question on one page",
	Long: `Fill loads a survey page, scores every radio option by keyword, and checks
the winning option of each question.

The target is a URL (fetched with robots.txt respected and cached) or a saved
HTML file. A summary table goes to stdout; the filled HTML is written only when
--out or --in-place is given.

Example:
  surveyfill fill survey.html --in-place
  surveyfill fill https://example.com/survey --out filled.html --json report.json
  surveyfill fill survey.html --md report.md -v`,
	Args: cobra.ExactArgs(1),
	RunE: runFill,
}

func init() {
	rootCmd.AddCommand(fillCmd)

	fillCmd.Flags().StringVar(&outJSON, "json", "", "output JSON report path")
	fillCmd.Flags().StringVar(&outMD, "md", "", "output Markdown report path")
	fillCmd.Flags().StringVarP(&outHTML, "out", "o", "", "write the filled HTML to this path")
	fillCmd.Flags().BoolVar(&inPlace, "in-place", false, "rewrite the input file when something changed")
	addFetchFlags(fillCmd)
}

// addFetchFlags registers the flags shared by commands that load pages
func addFetchFlags(cmd *cobra.Command) {
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "HTTP timeout per request")
	cmd.Flags().StringVar(&userAgent, "ua", "", "HTTP User-Agent (default from config)")
	cmd.Flags().Int64Var(&maxBytes, "max-bytes", 2_000_000, "max response bytes to read")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable cache (force fresh fetch)")
	cmd.Flags().BoolVar(&noFooter, "no-footer", false, "disable footer in Markdown reports")
	cmd.Flags().BoolVar(&noRobots, "ignore-robots", false, "do not consult robots.txt")
	cmd.Flags().BoolVar(&insecureTLS, "insecure", false, "skip TLS certificate verification (use for self-signed certs)")
	cmd.Flags().StringVar(&httpProxy, "http-proxy", "", "HTTP proxy URL (overrides HTTP_PROXY env var)")
	cmd.Flags().StringVar(&httpsProxy, "https-proxy", "", "HTTPS proxy URL (overrides HTTPS_PROXY env var)")
}

// applyFetchFlags copies explicitly set flags over the loaded config
func applyFetchFlags(cmd *cobra.Command, cfg *model.Config) {
	flags := cmd.Flags()
	if flags.Changed("timeout") {
		cfg.HTTP.Timeout = timeout
	}
	if flags.Changed("ua") {
		cfg.HTTP.UserAgent = userAgent
	}
	if flags.Changed("max-bytes") {
		cfg.HTTP.MaxBodyBytes = maxBytes
	}
	if flags.Changed("insecure") {
		cfg.HTTP.InsecureTLS = insecureTLS
	}
	if flags.Changed("http-proxy") {
		cfg.HTTP.HTTPProxy = httpProxy
	}
	if flags.Changed("https-proxy") {
		cfg.HTTP.HTTPSProxy = httpsProxy
	}
	if noCache {
		cfg.Cache.Enabled = false
	}
	if noFooter {
		cfg.Output.IncludeFooter = false
	}
	if noRobots {
		cfg.HTTP.RespectRobots = false
	}
}

// signalContext is canceled on Ctrl-C or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runFill(cmd *cobra.Command, args []string) error {
	target := args[0]
	if inPlace && pipeline.IsURL(target) {
		return fmt.Errorf("--in-place needs a file target, got URL %s", target)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyFetchFlags(cmd, cfg)

	p, err := pipeline.NewPipeline(cfg, logger)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	result, err := p.Fill(pipeline.WithTrigger(ctx, pipeline.TriggerManual), target)
	if err != nil {
		return fmt.Errorf("fill failed: %w", err)
	}
	report := result.Report

	fmt.Fprintf(os.Stderr, "✓ %s: %s\n", report.Subject, pipeline.SummaryLine(report.Summary))
	if report.Summary.Fallbacks > 0 {
		fmt.Fprintf(os.Stderr, "! %d question(s) had only negative options; chose the first\n", report.Summary.Fallbacks)
	}
	if verbose {
		printDecisions(report)
	}

	p.Renderer().RenderSummary(os.Stdout, report)

	if err := p.RenderReport(report, outJSON, outMD); err != nil {
		return fmt.Errorf("render failed: %w", err)
	}

	switch {
	case outHTML != "":
		if err := p.Renderer().WriteHTML(outHTML, result.HTML); err != nil {
			return fmt.Errorf("write html: %w", err)
		}
		fmt.Fprintf(os.Stderr, "✓ Wrote %s\n", outHTML)
	case inPlace && report.Summary.Changed > 0:
		if err := p.Renderer().WriteHTML(target, result.HTML); err != nil {
			return fmt.Errorf("write html: %w", err)
		}
		fmt.Fprintf(os.Stderr, "✓ Updated %s\n", target)
	case inPlace:
		fmt.Fprintf(os.Stderr, "✓ %s already filled, left untouched\n", target)
	}

	return nil
}

// printDecisions lists every question's winner on stderr
func printDecisions(report *model.Report) {
	for _, q := range report.Questions {
		switch {
		case q.Skipped:
			fmt.Fprintf(os.Stderr, "  - %s: no options\n", q.ID)
		case q.Changed:
			fmt.Fprintf(os.Stderr, "  ✓ %s: %q (score %d)\n", q.ID, q.WinnerText, q.Score)
		default:
			fmt.Fprintf(os.Stderr, "  = %s: %q already selected\n", q.ID, q.WinnerText)
		}
	}
}
