package cli

import (
	"fmt"
	"os"

	"github.com/ppiankov/surveyfill/internal/browser"
	"github.com/ppiankov/surveyfill/internal/model"
	"github.com/ppiankov/surveyfill/internal/pipeline"
	"github.com/ppiankov/surveyfill/internal/selector"
	"github.com/spf13/cobra"
)

var (
	browseHeadless    bool
	browseBin         string
	browseDebuggerURL string
	browseOnce        bool
	browseNoButton    bool
)

// browseCmd represents the browse command
var browseCmd = &cobra.Command{
	Use:   "browse <url>",
	Short: "Fill a survey live in a Chrome tab",
	Long: `Browse opens the survey in Chrome and fills it after the page settles.

While the tab is open, questions added later by the page are filled after a
short quiet period, and a floating "Auto-Answer" button re-runs the fill on
demand. A banner shows "Auto-selected N/M questions" after every run.
The form is never submitted.

Chrome is launched (and downloaded if needed) unless --debugger-url points at
a running browser started with --remote-debugging-port.

Example:
  surveyfill browse https://example.com/survey
  surveyfill browse https://example.com/survey --debugger-url ws://127.0.0.1:9222/devtools/browser/...
  surveyfill browse https://example.com/survey --headless --once`,
	Args: cobra.ExactArgs(1),
	RunE: runBrowse,
}

func init() {
	rootCmd.AddCommand(browseCmd)

	browseCmd.Flags().BoolVar(&browseHeadless, "headless", false, "run Chrome without a window")
	browseCmd.Flags().StringVar(&browseBin, "bin", "", "Chrome binary path")
	browseCmd.Flags().StringVar(&browseDebuggerURL, "debugger-url", "", "connect to a running Chrome instead of launching one")
	browseCmd.Flags().BoolVar(&browseOnce, "once", false, "fill once and exit")
	browseCmd.Flags().BoolVar(&browseNoButton, "no-button", false, "do not inject the manual Auto-Answer button")
}

func runBrowse(cmd *cobra.Command, args []string) error {
	url := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("headless") {
		cfg.Browser.Headless = browseHeadless
	}
	if browseBin != "" {
		cfg.Browser.Bin = browseBin
	}
	if browseDebuggerURL != "" {
		cfg.Browser.DebuggerURL = browseDebuggerURL
	}
	if browseNoButton {
		cfg.Browser.ManualButton = false
	}

	rules, err := selector.FromConfig(cfg.Keywords)
	if err != nil {
		return fmt.Errorf("keywords: %w", err)
	}
	sel := selector.New(rules, logger.Named("selector"))

	ctx, cancel := signalContext()
	defer cancel()

	session := browser.NewSession(browser.ConfigFromModel(cfg), sel, logger.Named("browser"))
	defer func() { _ = session.Close() }()

	if err := session.Start(ctx); err != nil {
		return err
	}
	if err := session.Open(ctx, url); err != nil {
		return err
	}

	if browseOnce {
		report, err := session.RunOnce(ctx, pipeline.TriggerManual)
		if err != nil {
			return fmt.Errorf("fill failed: %w", err)
		}
		fmt.Fprintf(os.Stderr, "✓ %s: %s\n", report.Subject, pipeline.SummaryLine(report.Summary))
		pipeline.NewRenderer(cfg.Output.IncludeFooter).RenderSummary(os.Stdout, report)
		return nil
	}

	fmt.Fprintf(os.Stderr, "Filling %s (Ctrl-C to stop)\n", url)
	return session.Run(ctx, func(report *model.Report, err error) {
		if err != nil {
			fmt.Fprintf(os.Stderr, "✗ %v\n", err)
			return
		}
		fmt.Fprintf(os.Stderr, "✓ [%s] %s\n", report.Trigger, pipeline.SummaryLine(report.Summary))
	})
}
