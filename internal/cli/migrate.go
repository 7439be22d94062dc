package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/mmynk/splitledger/internal/storage/sqlite"
)

func init() {
	rootCmd.AddCommand(migrateCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Long:  `Apply pending schema migrations to the configured SQLite database. The server also migrates on startup.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadStorageConfig()
		if err != nil {
			return err
		}
		if err := sqlite.Migrate(cfg.Database.Path); err != nil {
			return fmt.Errorf("migrate %s: %w", cfg.Database.Path, err)
		}
		slog.Info("Database is up to date", "database", cfg.Database.Path)
		return nil
	},
}
