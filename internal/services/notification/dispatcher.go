package notification

import (
	"context"
	"fmt"
	"time"

	"cafe-orders/internal/logger"
	"cafe-orders/internal/models"
)

const drainTimeout = 5 * time.Second

// EventPublisher is satisfied by *messaging.Publisher
type EventPublisher interface {
	PublishEvent(ctx context.Context, routingKey string, message interface{}) error
}

// Dispatcher hands committed order events to the broker in the background.
// Delivery is best effort: a full buffer or a publish failure loses the event
// and never affects the operation that produced it.
type Dispatcher struct {
	publisher EventPublisher
	logger    *logger.Logger
	events    chan models.OrderEvent
}

func NewDispatcher(publisher EventPublisher, log *logger.Logger, bufferSize int) *Dispatcher {
	if bufferSize < 1 {
		bufferSize = 1
	}
	return &Dispatcher{
		publisher: publisher,
		logger:    log,
		events:    make(chan models.OrderEvent, bufferSize),
	}
}

// Notify queues an event without blocking
func (d *Dispatcher) Notify(event models.OrderEvent) {
	select {
	case d.events <- event:
	default:
		d.logger.Error("notification_dropped", "Notification buffer full, dropping event", event.RequestID,
			fmt.Errorf("buffer of %d events is full", cap(d.events)), map[string]interface{}{
				"event_type":   string(event.Type),
				"order_number": event.OrderNumber,
			})
	}
}

// Run publishes queued events until ctx is done, then flushes what is left
func (d *Dispatcher) Run(ctx context.Context) {
	requestID := logger.GenerateRequestID()
	d.logger.Info("dispatcher_started", "Notification dispatcher started", requestID, map[string]interface{}{
		"buffer_size": cap(d.events),
	})

	for {
		select {
		case <-ctx.Done():
			d.drain()
			d.logger.Info("dispatcher_stopped", "Notification dispatcher stopped", requestID, nil)
			return
		case event := <-d.events:
			d.publish(ctx, event)
		}
	}
}

func (d *Dispatcher) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()

	for {
		select {
		case event := <-d.events:
			d.publish(ctx, event)
		default:
			return
		}
	}
}

func (d *Dispatcher) publish(ctx context.Context, event models.OrderEvent) {
	if err := d.publisher.PublishEvent(ctx, event.RoutingKey(), event); err != nil {
		d.logger.Error("notification_publish_failed", "Failed to publish order event", event.RequestID, err, map[string]interface{}{
			"event_type":   string(event.Type),
			"order_number": event.OrderNumber,
		})
		return
	}

	d.logger.Debug("notification_published", "Order event published", event.RequestID, map[string]interface{}{
		"event_type":   string(event.Type),
		"order_number": event.OrderNumber,
	})
}
