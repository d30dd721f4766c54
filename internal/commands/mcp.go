package manara

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/mwiater/manara/internal/logging"
	"github.com/mwiater/manara/internal/mcpserver"
	"github.com/mwiater/manara/internal/providerfactory"
	"github.com/spf13/cobra"
)

// mcpCmd runs the Model Context Protocol server on stdio.
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the ask and search_documents tools over MCP (stdio)",
	Long: `Run Manara as an MCP server on stdin/stdout. Logs go to stderr and logFile.

Example client configuration:
  {"mcpServers": {"manara": {"command": "manara", "args": ["mcp"]}}}`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config()
		if err != nil {
			return err
		}
		srv := mcpserver.New(providerfactory.NewService(cfg), appVersion, logging.Logger())

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return srv.Serve(ctx, os.Stdin, os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
