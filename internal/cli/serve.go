package cli

import (
	"fmt"
	"os"

	"github.com/ppiankov/surveyfill/internal/metrics"
	"github.com/ppiankov/surveyfill/internal/pipeline"
	"github.com/ppiankov/surveyfill/internal/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

var serveAddr string

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the selector over HTTP",
	Long: `Serve exposes the selector as a JSON API:

  POST /v1/select   score questions given as JSON and return the decisions
  POST /v1/fill     fill an HTML body and return the filled HTML
  GET  /healthz     liveness
  GET  /metrics     Prometheus metrics

Example:
  surveyfill serve --addr :8088`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	p, err := pipeline.NewPipeline(cfg, logger)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)
	p.SetObserver(m)

	ctx, cancel := signalContext()
	defer cancel()

	fmt.Fprintf(os.Stderr, "Listening on %s (Ctrl-C to stop)\n", addr)
	return server.New(p, reg, m, logger.Named("server")).ListenAndServe(ctx, addr)
}
