// Package cli implements the splitledger command line.
package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/mmynk/splitledger/internal/config"
	"github.com/mmynk/splitledger/pkg/logging"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "splitledger",
	Short: "Shared expense ledger server",
	Long: `splitledger records shared expenses within groups, tracks who has
settled their share, and computes a short list of transfers that
brings every member's balance to zero.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a TOML config file")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig reads and validates the configuration and installs the logger.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format)
	return cfg, logger, nil
}

// loadStorageConfig is loadConfig for commands that only touch the
// database, so they run without auth or event settings.
func loadStorageConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if cfg.Database.Path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)
	return cfg, nil
}
