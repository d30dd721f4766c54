package manara

import "github.com/spf13/cobra"

// ragCmd groups retrieval diagnostics.
var ragCmd = &cobra.Command{
	Use:   "rag",
	Short: "Retrieval diagnostics",
}

func init() {
	rootCmd.AddCommand(ragCmd)
}
