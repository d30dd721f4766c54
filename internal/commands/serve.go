package manara

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/mwiater/manara/internal/logging"
	"github.com/mwiater/manara/internal/metrics"
	"github.com/mwiater/manara/internal/providerfactory"
	"github.com/mwiater/manara/internal/server"
	"github.com/spf13/cobra"
)

// serveCmd runs the HTTP API.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Long: `Serve the question-answering API:
  POST /api/v1/answer         {"query", "history"}
  POST /api/v1/retrieve       {"query", "k", "topN"}
  GET  /api/v1/quick-actions
  GET  /healthz
  GET  /metrics               (when metrics are enabled)`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config()
		if err != nil {
			return err
		}

		opts := server.Options{Logger: logging.Logger()}
		if cfg.Metrics {
			opts.Metrics = metrics.GetInstance().Handler()
		}
		srv := server.New(providerfactory.NewService(cfg), opts)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return srv.ListenAndServe(ctx, cfg.Server.Addr)
	},
}

func init() {
	serveCmd.Flags().String("addr", ":8080", "listen address")
	serveCmd.Flags().Bool("metrics", false, "expose Prometheus metrics at /metrics")
	rootCmd.AddCommand(serveCmd)
}
