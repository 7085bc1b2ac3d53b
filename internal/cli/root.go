// Package cli implements the puffquest command tree.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/solpxlb/puffquest/internal/daemon"
)

var rootCmd = &cobra.Command{
	Use:   "puffquest",
	Short: "Deflationary reward economy server",
	Long: `puffquest runs the PuffQuest reward economy: per-puff rewards, passive
device income, upgrades and the hourly batch jobs that keep global stats
current. Configuration is read from $PUFFQUEST_HOME/config.toml.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to config.toml (default $PUFFQUEST_HOME/config.toml)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig reads the --config file, or the default location.
func loadConfig(cmd *cobra.Command) (daemon.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = daemon.ConfigPath()
	}
	cfg, err := daemon.LoadConfig(path)
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
