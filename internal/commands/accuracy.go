package manara

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/mwiater/manara/internal/accuracy"
	"github.com/mwiater/manara/internal/providerfactory"
	"github.com/spf13/cobra"
)

const (
	defaultSuitePath  = "accuracy/accuracy_suite.json"
	defaultResultsDir = "accuracy/results"
)

var (
	accuracyResults string
	accuracyWorkers int
	accuracyMin     float64
)

// accuracyCmd runs a question suite against the index and scores the replies.
var accuracyCmd = &cobra.Command{
	Use:   "accuracy [suite.json]",
	Short: "Score answers against a suite of expected replies",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config()
		if err != nil {
			return err
		}
		path := defaultSuitePath
		if len(args) == 1 {
			path = args[0]
		}
		suite, err := accuracy.LoadSuite(path)
		if err != nil {
			return err
		}

		results := accuracyResults
		if results == "" {
			results = filepath.Join(defaultResultsDir, time.Now().Format("20060102-150405")+".jsonl")
		}

		out := cmd.OutOrStdout()
		svc := providerfactory.NewService(cfg)
		_, summary, err := accuracy.Run(cmd.Context(), svc, suite, accuracy.Options{
			Workers:     accuracyWorkers,
			ResultsPath: results,
			Out:         out,
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(out)
		accuracy.WriteSummary(out, summary)
		fmt.Fprintf(out, "Results written to %s\n", results)
		if summary.Accuracy < accuracyMin {
			return fmt.Errorf("accuracy %.2f is below the required %.2f", summary.Accuracy, accuracyMin)
		}
		return nil
	},
}

func init() {
	accuracyCmd.Flags().StringVar(&accuracyResults, "results", "", "JSONL results file (default accuracy/results/<timestamp>.jsonl)")
	accuracyCmd.Flags().IntVar(&accuracyWorkers, "workers", 2, "questions asked concurrently")
	accuracyCmd.Flags().Float64Var(&accuracyMin, "min", 0, "fail when accuracy falls below this fraction")
	rootCmd.AddCommand(accuracyCmd)
}
