package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"cafe-orders/internal/logger"
	"cafe-orders/internal/messaging"
	"cafe-orders/internal/services/notification"
)

var notifierPrefetch int

var notifierCmd = &cobra.Command{
	Use:   "notifier",
	Short: "Print human-readable notifications for order events",
	RunE:  runNotifier,
}

func init() {
	notifierCmd.Flags().IntVar(&notifierPrefetch, "prefetch", 10, "RabbitMQ prefetch count")
	rootCmd.AddCommand(notifierCmd)
}

func runNotifier(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logger.New("notification-subscriber", cfg.Log.Level)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, err := messaging.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize messaging: %w", err)
	}

	consumer := messaging.NewConsumer(conn, log, messaging.NotificationsQueue, "notification-subscriber", notifierPrefetch)
	return notification.NewSubscriber(consumer, log, os.Stdout).Start(ctx)
}
