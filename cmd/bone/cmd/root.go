package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/config"
	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/observability"
)

var (
	cfgFile  string
	logLevel string
	log      = observability.DefaultLogger()
)

var rootCmd = &cobra.Command{
	Use:   "bone",
	Short: "Generate incident SOPs and onboarding plans",
	Long: `bone turns free-text incident descriptions and new-hire details into
structured standard operating procedures. It can run one-off from the command
line, as an HTTP API, or as an MCP server for AI assistants.

Without a configured generation provider every document comes from the
built-in templates.`,
	SilenceUsage: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := config.LoadOrDefault(cfgFile)
		if err != nil {
			// The command itself reports config errors; keep the flag level.
			return applyLogLevel(logLevel)
		}

		loggerCfg := cfg.Observability.Logging

		// CLI flag overrides config file.
		if logLevel != "" && logLevel != "info" {
			loggerCfg.Level = observability.LogLevel(logLevel)
		}

		configured, err := observability.ConfigureLogger(loggerCfg)
		if err != nil {
			return applyLogLevel(logLevel)
		}

		log.SetLevel(configured.Level)
		log.SetFormatter(configured.Formatter)
		log.SetOutput(configured.Out)

		return nil
	},
}

func applyLogLevel(raw string) error {
	level, err := logrus.ParseLevel(raw)
	if err != nil {
		return err
	}

	log.SetLevel(level)

	return nil
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: config.yaml or $CONFIG_PATH)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
}
