package manara

import (
	"fmt"

	"github.com/k0kubun/pp"
	"github.com/mwiater/manara/internal/appconfig"
	"github.com/spf13/cobra"
)

// showConfigCmd implements the 'show config' command, which displays the current configuration settings.
var showConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Show config settings",
	Long:  `Show the effective configuration after defaults, config file, .env, environment and flags are applied. Credentials are masked.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		appconfig.ShowConfig(out, cfg.ConfigPath, cfg)
		if cfg.Debug {
			masked := cfg
			masked.OpenAIAPIKey = appconfig.MaskSecret(cfg.OpenAIAPIKey)
			masked.GeminiAPIKey = appconfig.MaskSecret(cfg.GeminiAPIKey)
			masked.Rerank.APIKey = appconfig.MaskSecret(cfg.Rerank.APIKey)
			fmt.Fprintln(out)
			_, _ = pp.Fprintln(out, masked)
		}
		return nil
	},
}

func init() {
	showCmd.AddCommand(showConfigCmd)
}
