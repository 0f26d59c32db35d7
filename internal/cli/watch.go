package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/ppiankov/surveyfill/internal/model"
	"github.com/ppiankov/surveyfill/internal/pipeline"
	"github.com/ppiankov/surveyfill/internal/watch"
	"github.com/spf13/cobra"
)

var watchDebounce time.Duration

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch <file>",
	Short: "Keep an HTML file filled as it changes",
	Long: `Watch fills an HTML file in place, then re-fills it every time it is saved.
Bursts of writes are debounced. The file is rewritten only when a run changed
something, so the watcher's own write settles after one unchanged run.

Example:
  surveyfill watch survey.html
  surveyfill watch survey.html --debounce 1s`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 0, "quiet period before re-filling (default from browser.debounce)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	path := args[0]
	if pipeline.IsURL(path) {
		return fmt.Errorf("watch needs a file, got URL %s", path)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	quiet := cfg.Browser.Debounce
	if watchDebounce > 0 {
		quiet = watchDebounce
	}

	p, err := pipeline.NewPipeline(cfg, logger)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	w, err := watch.NewFileWatcher(path, p, quiet, logger.Named("watch"))
	if err != nil {
		return err
	}
	w.OnRun(func(report *model.Report, wrote bool, err error) {
		switch {
		case err != nil:
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", path, err)
		case wrote:
			fmt.Fprintf(os.Stderr, "✓ %s: %s\n", path, pipeline.SummaryLine(report.Summary))
		default:
			fmt.Fprintf(os.Stderr, "= %s: nothing to change (%d questions)\n", path, report.Summary.Total)
		}
	})

	ctx, cancel := signalContext()
	defer cancel()

	if err := w.Start(ctx); err != nil {
		return err
	}
	defer w.Stop()

	fmt.Fprintf(os.Stderr, "Watching %s (Ctrl-C to stop)\n", path)
	<-ctx.Done()
	return nil
}
