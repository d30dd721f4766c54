package manara

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/mwiater/manara/internal/providerfactory"
	"github.com/mwiater/manara/internal/rag"
	"github.com/mwiater/manara/internal/util"
	"github.com/spf13/cobra"
)

var showPassages bool

// askCmd answers one question and exits.
var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a single question from the index",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.TrimSpace(strings.Join(args, " "))
		if query == "" {
			return fmt.Errorf("question is required")
		}
		cfg, err := config()
		if err != nil {
			return err
		}

		svc := providerfactory.NewService(cfg)
		reply := svc.Ask(cmd.Context(), query, nil)

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, reply.Text)
		if showPassages {
			writePassages(out, reply.Passages)
		}
		if reply.Kind == rag.KindError {
			return fmt.Errorf("answer failed: %w", reply.Err)
		}
		return nil
	},
}

// writePassages lists the passages behind an answer.
func writePassages(w io.Writer, passages []rag.Passage) {
	header := color.New(color.FgCyan, color.Bold)
	meta := color.New(color.FgHiBlack)
	fmt.Fprintln(w)
	if len(passages) == 0 {
		_, _ = header.Fprintln(w, "No passages were used.")
		return
	}
	_, _ = header.Fprintf(w, "Passages (%d):\n", len(passages))
	for i, p := range passages {
		_, _ = meta.Fprintf(w, "[%d] score=%.4f similarity=%.4f source=%s\n", i+1, p.Score, p.Similarity, p.Source)
		fmt.Fprintln(w, "    "+util.TruncateRunes(strings.Join(strings.Fields(p.Text), " "), 240))
	}
}

func init() {
	askCmd.Flags().BoolVar(&showPassages, "passages", false, "print the retrieved passages and their scores")
	rootCmd.AddCommand(askCmd)
}
