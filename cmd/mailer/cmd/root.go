package cmd

import (
	"os"

	"github.com/burhanmukhtar/Molly-Pro/internal/mailer/config"
	"github.com/burhanmukhtar/Molly-Pro/internal/shared/logger"
	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X .../cmd.Version=...".
var Version = "dev"

var configPath string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mailer",
	Short: "Lease short-lived mailer VMs on Hetzner or Google Compute Engine",
	Long: `mailer provisions single-tenant mailer servers for authenticated users.
Servers are paid for with points, expire automatically and persistent servers
can move to a fresh, never reused public address on demand.

Configuration is read from config.yaml in /etc/mailer, $HOME/.mailer or the
current directory, and from MAILER_* environment variables.

Quick start:
  mailer serve                                    # Run the API and background jobs
  mailer user create -u alice -p 2000 < pass.txt  # Create an account
  mailer sweep                                    # Reap expired servers once`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and runs it.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (default: search standard locations)")
}

// loadConfig reads the config file given by --config, or searches the default paths.
func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadWithPath(configPath)
	}
	return config.NewLoader().Load()
}

// newLogger builds the service logger from the configured level and format.
func newLogger(cfg *config.Config, component string) *logger.Logger {
	return logger.New(logger.LoggerConfig{
		Level:     logger.LogLevel(cfg.Log.Level),
		Format:    logger.OutputFormat(cfg.Log.Format),
		Component: component,
		Version:   Version,
	})
}
