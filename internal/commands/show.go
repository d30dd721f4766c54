package manara

import "github.com/spf13/cobra"

// showCmd groups commands that print state.
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show configuration and state",
}

func init() {
	rootCmd.AddCommand(showCmd)
}
