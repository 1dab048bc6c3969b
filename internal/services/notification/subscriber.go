package notification

import (
	"context"
	"fmt"
	"io"

	"cafe-orders/internal/logger"
	"cafe-orders/internal/messaging"
	"cafe-orders/internal/models"
)

const timestampLayout = "2006-01-02 15:04:05"

// Consumer is satisfied by *messaging.Consumer
type Consumer interface {
	StartConsuming(ctx context.Context, handler messaging.MessageHandler) error
	Close() error
}

// Subscriber renders order events as human-readable notifications
type Subscriber struct {
	consumer Consumer
	logger   *logger.Logger
	out      io.Writer
}

func NewSubscriber(consumer Consumer, log *logger.Logger, out io.Writer) *Subscriber {
	return &Subscriber{
		consumer: consumer,
		logger:   log,
		out:      out,
	}
}

// Start consumes events until ctx is cancelled
func (s *Subscriber) Start(ctx context.Context) error {
	requestID := logger.GenerateRequestID()
	s.logger.Info("service_started", "Notification subscriber started", requestID, nil)

	err := s.consumer.StartConsuming(ctx, s.handleNotification)

	s.logger.Info("graceful_shutdown", "Stopping notification subscriber", requestID, nil)
	if closeErr := s.consumer.Close(); closeErr != nil {
		s.logger.Error("consumer_close_failed", "Failed to close consumer", requestID, closeErr, nil)
	}

	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("notification consumer failed: %w", err)
	}
	return nil
}

func (s *Subscriber) handleNotification(_ context.Context, body []byte) error {
	var event models.OrderEvent
	if err := messaging.ParseMessage(body, &event); err != nil {
		s.logger.Error("message_parsing_failed", "Failed to parse notification message", "", err, nil)
		return err
	}

	if _, err := fmt.Fprintln(s.out, formatNotification(&event)); err != nil {
		return fmt.Errorf("failed to write notification: %w", err)
	}

	s.logger.Info("notification_displayed", "Notification displayed to user", event.RequestID, map[string]interface{}{
		"event_type":   string(event.Type),
		"order_number": event.OrderNumber,
		"old_status":   event.OldStatus,
		"new_status":   event.NewStatus,
		"changed_by":   event.ChangedBy,
	})
	return nil
}

func formatNotification(e *models.OrderEvent) string {
	ts := e.Timestamp.Format(timestampLayout)

	switch e.Type {
	case models.EventOrderCreated:
		return fmt.Sprintf("🧾 [%s] Order %s placed, total %s.", ts, e.OrderNumber, e.Total.StringFixed(2))
	case models.EventOrderCancelled:
		if e.Reason != "" {
			return fmt.Sprintf("❌ [%s] Order %s has been cancelled: %s.", ts, e.OrderNumber, e.Reason)
		}
		return fmt.Sprintf("❌ [%s] Order %s has been cancelled.", ts, e.OrderNumber)
	case models.EventPaymentConfirmed:
		return fmt.Sprintf("💳 [%s] Payment received for order %s.", ts, e.OrderNumber)
	case models.EventPaymentFailed:
		return fmt.Sprintf("⚠️ [%s] Payment for order %s failed. You can retry from the order page.", ts, e.OrderNumber)
	case models.EventPaymentRefunded:
		return fmt.Sprintf("↩️ [%s] Order %s has been refunded (%s).", ts, e.OrderNumber, e.Total.StringFixed(2))
	case models.EventPaymentStatus:
		return fmt.Sprintf("💳 [%s] Payment for order %s is now '%s'.", ts, e.OrderNumber, e.NewStatus)
	}

	switch models.OrderStatus(e.NewStatus) {
	case models.StatusPreparing:
		return fmt.Sprintf("🍳 [%s] Order %s is now being prepared.", ts, e.OrderNumber)
	case models.StatusReady:
		return fmt.Sprintf("✅ [%s] Order %s is ready!", ts, e.OrderNumber)
	case models.StatusOutForDelivery:
		return fmt.Sprintf("🛵 [%s] Order %s is out for delivery.", ts, e.OrderNumber)
	case models.StatusDelivered:
		return fmt.Sprintf("🎉 [%s] Order %s has been delivered! Thank you for your order.", ts, e.OrderNumber)
	}

	return fmt.Sprintf("📋 [%s] Order %s status changed from '%s' to '%s' by %s.",
		ts, e.OrderNumber, e.OldStatus, e.NewStatus, e.ChangedBy)
}
