package manara

import (
	"errors"
	"fmt"

	"github.com/mwiater/manara/internal/providerfactory"
	"github.com/mwiater/manara/internal/rag"
	"github.com/spf13/cobra"
)

// indexCmd builds the index artifact from the documents in dataDir.
var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build the document index",
	Long: `Extract text from every supported document in dataDir, split it into
overlapping word windows, embed each window and write the index to indexDir.
PDF files are skipped; convert them to text first.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config()
		if err != nil {
			return err
		}
		embedder, err := providerfactory.NewEmbedder(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("embedding backend: %w", err)
		}

		opts := providerfactory.BuildOptions(cfg)
		opts.Out = cmd.OutOrStdout()
		if _, err := rag.BuildIndex(cmd.Context(), opts, embedder); err != nil {
			if errors.Is(err, rag.ErrNoChunks) {
				return fmt.Errorf("no text could be extracted from %s; the index was not written: %w", cfg.DataDir, err)
			}
			return err
		}
		return nil
	},
}

func init() {
	indexCmd.Flags().Bool("recursive", false, "descend into sub-directories of dataDir")
	rootCmd.AddCommand(indexCmd)
}
