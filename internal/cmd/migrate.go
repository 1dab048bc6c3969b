package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"cafe-orders/internal/database"
	"cafe-orders/internal/logger"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations and exit",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logger.New("migrate", cfg.Log.Level)
	defer log.Sync()

	db, err := database.New(cmd.Context(), cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	if err := db.RunMigrations(cmd.Context(), database.Migrations()); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("migrations_applied", "Schema is up to date", "", nil)
	return nil
}
