package manara

import (
	"fmt"
	"strings"

	"github.com/k0kubun/pp"
	"github.com/mwiater/manara/internal/providerfactory"
	"github.com/mwiater/manara/internal/rag"
	"github.com/spf13/cobra"
)

// ragPreviewCmd previews retrieval, reranking and context assembly for a query.
var ragPreviewCmd = &cobra.Command{
	Use:   "preview <query>",
	Short: "Preview retrieval and context assembly",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.TrimSpace(strings.Join(args, " "))
		if query == "" {
			return fmt.Errorf("query is required")
		}
		cfg, err := config()
		if err != nil {
			return err
		}

		svc := providerfactory.NewService(cfg)
		result, err := svc.Preview(cmd.Context(), query)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		rag.WritePreview(out, result)
		if cfg.Debug {
			_, _ = pp.Fprintln(out, result.Passages)
		}
		return nil
	},
}

func init() {
	ragCmd.AddCommand(ragPreviewCmd)
}
