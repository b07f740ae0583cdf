// Package commands implements the deskctl command tree.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/qaiserfcc/helpDesk-sub001/internal/client/config"
)

// rootOptions carries persistent flags to subcommands.
type rootOptions struct {
	apiURL   string
	dataPath string
	logLevel string
}

// loadConfig reads the environment and applies flag overrides.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg := config.FromEnv()
	if o.apiURL != "" {
		cfg.APIURL = o.apiURL
		cfg.WSURL = config.DeriveWSURL(o.apiURL)
	}
	if o.dataPath != "" {
		cfg.DataPath = o.dataPath
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "deskctl",
		Short:         "Service desk client with offline queueing and live updates",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			config.LoadDotEnv()
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.apiURL, "api", "", "API base URL (overrides DESK_API_URL)")
	rootCmd.PersistentFlags().StringVar(&opts.dataPath, "data", "", "local database path (overrides DESK_DATA_PATH)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")

	rootCmd.AddCommand(
		newLoginCommand(opts),
		newLogoutCommand(opts),
		newWhoamiCommand(opts),
		newQueueCommand(opts),
		newPendingCommand(opts),
		newSyncCommand(opts),
		newWatchCommand(opts),
	)

	return rootCmd
}
