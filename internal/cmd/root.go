package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"cafe-orders/internal/config"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "cafe-orders",
	Short: "Food ordering backend",
	Long: `cafe-orders runs the ordering API (catalog, orders, payments, reviews
and the live order feed), the notification subscriber, and schema migrations.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default: config.yaml in ., ./deploy or /etc/cafe-orders)")
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads a local .env first so CAFE_ variables can live there
func loadConfig() (*config.Config, error) {
	_ = godotenv.Load()

	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}
