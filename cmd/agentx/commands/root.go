// Package commands provides the agentx CLI's subcommands, generalizing the
// teacher's cmd/opencode/commands (one cobra.Command per verb, a
// PersistentPreRun that loads config and logging before any subcommand
// runs).
package commands

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/agentx/agentx/internal/config"
	"github.com/agentx/agentx/internal/logging"
	"github.com/agentx/agentx/pkg/apitypes"
)

var (
	Version   = "0.1.0"
	BuildTime = "dev"
)

var (
	flagDirectory string
	flagDataPath  string
	flagServerURL string
	flagProvider  string
	flagAPIKey    string
	flagLogLevel  string
)

// cfg and log are populated by PersistentPreRun and read by every
// subcommand's RunE.
var (
	cfg apitypes.Config
	log zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "agentx",
	Short: "AgentX - a multi-tenant agent runtime CLI",
	Long: `agentx runs the Local runtime directly (no server process) for
one-shot or interactive terminal use, or points at a running agentx-server
via --server-url to drive it remotely through the same façade.`,
	Version:          Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(flagDirectory)
		if err != nil {
			return err
		}
		if flagDataPath != "" {
			loaded.DataPath = flagDataPath
		}
		if flagServerURL != "" {
			loaded.ServerURL = flagServerURL
		}
		if flagProvider != "" {
			loaded.Provider = apitypes.Provider(flagProvider)
		}
		if flagAPIKey != "" {
			loaded.APIKey = flagAPIKey
		}
		cfg = loaded

		logCfg := logging.DefaultConfig()
		logCfg.Level = parseLevel(flagLogLevel)
		logCfg.Output = os.Stderr
		log = logging.New(logCfg)
		return nil
	},
}

func parseLevel(s string) logging.Level {
	switch s {
	case "debug":
		return logging.DebugLevel
	case "warn":
		return logging.WarnLevel
	case "error":
		return logging.ErrorLevel
	default:
		return logging.InfoLevel
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDirectory, "directory", "", "project directory for .agentx/agentx.jsonc overrides")
	rootCmd.PersistentFlags().StringVar(&flagDataPath, "data-path", "", "local repository path (\":memory:\" for ephemeral)")
	rootCmd.PersistentFlags().StringVar(&flagServerURL, "server-url", "", "agentx-server URL to run in remote mode instead of Local")
	rootCmd.PersistentFlags().StringVar(&flagProvider, "provider", "", "LLM provider override (anthropic|openai|google|xai|deepseek|mistral|openai-compatible)")
	rootCmd.PersistentFlags().StringVar(&flagAPIKey, "api-key", "", "vendor API key override")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "log level (debug|info|warn|error)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(definitionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
