// internal/commands/chat.go
package manara

import (
	"github.com/mwiater/manara/internal/providerfactory"
	"github.com/mwiater/manara/internal/tui"
	"github.com/spf13/cobra"
)

// runChat is a function alias to tui.Run for starting the chat interface.
var runChat = tui.Run

// chatCmd represents the 'chat' command, which starts an interactive chat session.
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start a chat session",
	Long: `The 'chat' command starts an interactive chat with the ATS assistant.
F1-F4 ask the quick-action questions, tab lists them, ctrl+l clears the conversation.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config()
		if err != nil {
			return err
		}
		return runChat(cmd.Context(), providerfactory.NewService(cfg), tui.Options{
			HistoryLimit: cfg.Generation.HistoryMessages,
			Debug:        cfg.Debug,
		})
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
}
