package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"cafe-orders/internal/config"
	"cafe-orders/internal/database"
	"cafe-orders/internal/logger"
	"cafe-orders/internal/messaging"
	"cafe-orders/internal/models"
	"cafe-orders/internal/server"
	"cafe-orders/internal/services/catalog"
	"cafe-orders/internal/services/notification"
	"cafe-orders/internal/services/order"
	"cafe-orders/internal/services/payment"
	"cafe-orders/internal/services/review"
	"cafe-orders/internal/services/tracking"
)

var (
	skipMigrations bool
	feedPrefetch   int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, the event dispatcher and the live order feed",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "do not apply schema migrations on startup")
	serveCmd.Flags().IntVar(&feedPrefetch, "feed-prefetch", 50, "RabbitMQ prefetch count for the live order feed")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret must be set")
	}

	log := logger.New("order-service", cfg.Log.Level)
	defer log.Sync()
	requestID := logger.GenerateRequestID()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()
	log.Info("db_connected", "Connected to PostgreSQL database", requestID, nil)

	if !skipMigrations {
		if err := db.RunMigrations(ctx, database.Migrations()); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	probes := map[string]server.Probe{"database": db.Ping}
	hub := tracking.NewHub(log)

	// The dispatcher outlives ctx so events committed by requests still in
	// flight at shutdown get published.
	dispatchCtx, stopDispatch := context.WithCancel(context.Background())
	defer stopDispatch()

	var (
		workers  sync.WaitGroup
		notifier order.Notifier
	)
	publishConn, consumeConn, err := connectBroker(cfg, log)
	if err != nil {
		// Events are best effort; the API keeps serving without them.
		log.Error("rabbitmq_unavailable", "Serving without order events", requestID, err, nil)
	} else {
		defer publishConn.Close()
		defer consumeConn.Close()
		probes["rabbitmq"] = func(context.Context) error {
			if publishConn.IsClosed() {
				return errors.New("connection closed")
			}
			return nil
		}

		dispatcher := notification.NewDispatcher(messaging.NewPublisher(publishConn, log), log, cfg.Notifications.BufferSize)
		notifier = dispatcher

		feed := messaging.NewExclusiveConsumer(consumeConn, log, "order-feed", feedPrefetch,
			string(models.EventOrderStatus), string(models.EventOrderCancelled), "payment.*")

		workers.Add(2)
		go func() {
			defer workers.Done()
			dispatcher.Run(dispatchCtx)
		}()
		go func() {
			defer workers.Done()
			if err := feed.StartConsuming(ctx, hub.HandleMessage); err != nil && ctx.Err() == nil {
				log.Error("consumer_failed", "Live order feed consumer stopped", requestID, err, nil)
			}
		}()
	}

	pricing, err := order.PricingFromConfig(cfg.Pricing)
	if err != nil {
		return err
	}

	orderStore := order.NewRepository(db)
	orders := order.NewService(orderStore, order.NewPricer(pricing), notifier, log, cfg.Orders.NumberRetryLimit)
	payments := payment.NewService(orderStore, payment.NewRazorpayClient(cfg.Payment), notifier, cfg.Payment, log)
	orders.SetRefunder(payments)

	srv := server.New(cfg.Server, cfg.Auth.JWTSecret, log, probes,
		catalog.NewHandler(catalog.NewService(catalog.NewRepository(db), log), log),
		order.NewHandler(orders, log, cfg.Server.RequestTimeout),
		payment.NewHandler(payments, log),
		review.NewHandler(review.NewService(review.NewRepository(db), log), log),
		tracking.NewHandler(orders, hub, log),
	)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Start()
	}()

	select {
	case err = <-serveErr:
		stop()
	case <-ctx.Done():
		log.Info("graceful_shutdown", "Received shutdown signal", requestID, nil)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if shutdownErr := drainInOrder(shutdownCtx, srv, stopDispatch, &workers); shutdownErr != nil {
		log.Error("shutdown_failed", "HTTP server did not drain in time", requestID, shutdownErr, nil)
	}

	log.Info("service_stopped", "Service stopped gracefully", requestID, nil)
	return err
}

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

// drainInOrder stops the HTTP server first, then the event dispatcher, and
// waits for the background workers.
func drainInOrder(ctx context.Context, srv shutdowner, stopDispatch context.CancelFunc, workers *sync.WaitGroup) error {
	err := srv.Shutdown(ctx)
	stopDispatch()
	workers.Wait()
	return err
}

// connectBroker opens separate connections for publishing and consuming
func connectBroker(cfg *config.Config, log *logger.Logger) (*messaging.Connection, *messaging.Connection, error) {
	publishConn, err := messaging.New(cfg, log)
	if err != nil {
		return nil, nil, err
	}
	consumeConn, err := messaging.New(cfg, log)
	if err != nil {
		publishConn.Close()
		return nil, nil, err
	}
	return publishConn, consumeConn, nil
}
