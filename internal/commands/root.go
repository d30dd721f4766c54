// internal/commands/root.go
package manara

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/mwiater/manara/internal/appconfig"
	"github.com/mwiater/manara/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	cfgFile       string
	dotEnvFile    string
	currentConfig *appconfig.Config
	appVersion    = "dev"
	appCommit     = "none"
	appDate       = "unknown"
)

// flagKeys maps command-line flags to the configuration keys they override.
var flagKeys = map[string]string{
	"debug":     "debug",
	"logFile":   "logFile",
	"logLevel":  "logLevel",
	"logJSON":   "logJSON",
	"dataDir":   "dataDir",
	"indexDir":  "indexDir",
	"recursive": "recursive",
	"addr":      "server.addr",
	"metrics":   "metrics",
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:          "manara",
	Short:        "manara: bilingual document Q&A assistant for ATS",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := appconfig.LoadDotEnv(dotEnvFile); err != nil {
			return err
		}

		v := viper.New()
		if err := appconfig.Configure(v); err != nil {
			return err
		}
		if err := bindFlags(v, cmd); err != nil {
			return err
		}
		used, err := ensureConfigLoaded(v)
		if err != nil {
			return err
		}

		cfg, err := appconfig.FromViper(v)
		if err != nil {
			return err
		}
		cfg.ConfigPath = used
		currentConfig = &cfg

		level := cfg.LogLevel
		if cfg.Debug {
			level = "debug"
		}
		if err := logging.Init(logging.Options{
			Path:    cfg.LogFilePath(),
			Level:   level,
			JSON:    cfg.LogJSON,
			Console: consoleFor(cmd),
		}); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", appVersion, appCommit, appDate)

	defer logging.Close()
	if err := rootCmd.Execute(); err != nil {
		_ = logging.Close()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", appconfig.DefaultConfigPath, "config file (JSON, YAML or TOML)")
	rootCmd.PersistentFlags().StringVar(&dotEnvFile, "envFile", appconfig.DefaultDotEnvPath, ".env file loaded before the environment is read")

	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging and diagnostic dumps")
	rootCmd.PersistentFlags().String("logFile", "", "path to the log file")
	rootCmd.PersistentFlags().String("logLevel", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().Bool("logJSON", false, "write logs as JSON lines")
	rootCmd.PersistentFlags().String("dataDir", "./data", "directory of source documents")
	rootCmd.PersistentFlags().String("indexDir", "./kb_index", "directory of the index artifact")
}

// bindFlags binds every known flag visible to cmd onto v, so a flag set on
// the command line overrides the environment and config file.
func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	for name, key := range flagKeys {
		flag := lookupFlag(cmd, name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

func lookupFlag(cmd *cobra.Command, name string) *pflag.Flag {
	if f := cmd.Flags().Lookup(name); f != nil {
		return f
	}
	if f := cmd.PersistentFlags().Lookup(name); f != nil {
		return f
	}
	return cmd.InheritedFlags().Lookup(name)
}

// ensureConfigLoaded reads the config file, if there is one, and returns its
// path. A missing file is not an error.
func ensureConfigLoaded(v *viper.Viper) (string, error) {
	if cfgFile == "" {
		return "", nil
	}
	v.SetConfigFile(cfgFile)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("failed to load config: %w", err)
	}
	return v.ConfigFileUsed(), nil
}

// consoleFor picks the console log sink. The MCP server owns stdout and the
// chat UI owns the terminal.
func consoleFor(cmd *cobra.Command) io.Writer {
	switch cmd.Name() {
	case "mcp":
		return os.Stderr
	case "chat":
		return io.Discard
	default:
		return cmd.ErrOrStderr()
	}
}

// GetConfig returns the loaded application configuration for other packages.
func GetConfig() *appconfig.Config {
	return currentConfig
}

// DebugEnabled returns true if debug mode is enabled.
func DebugEnabled() bool { return currentConfig != nil && currentConfig.Debug }

// SetVersionInfo allows the main package to inject build-time variables.
func SetVersionInfo(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

// config returns the loaded configuration or an error when the root hook
// has not run.
func config() (appconfig.Config, error) {
	if currentConfig == nil {
		return appconfig.Config{}, errors.New("config is not loaded")
	}
	return *currentConfig, nil
}
