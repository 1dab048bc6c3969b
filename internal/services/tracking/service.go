package tracking

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"cafe-orders/internal/logger"
	"cafe-orders/internal/messaging"
	"cafe-orders/internal/models"
)

const subscriberBuffer = 16

// Hub fans order events out to the websocket watchers of each order. It only
// holds live connections; missed events are not replayed.
type Hub struct {
	mu       sync.RWMutex
	watchers map[uuid.UUID]map[*watcher]struct{}
	logger   *logger.Logger
}

type watcher struct {
	events chan models.OrderEvent
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		watchers: make(map[uuid.UUID]map[*watcher]struct{}),
		logger:   log,
	}
}

// Subscribe registers a watcher for orderID. The returned func unregisters it.
func (h *Hub) Subscribe(orderID uuid.UUID) (<-chan models.OrderEvent, func()) {
	w := &watcher{events: make(chan models.OrderEvent, subscriberBuffer)}

	h.mu.Lock()
	if h.watchers[orderID] == nil {
		h.watchers[orderID] = make(map[*watcher]struct{})
	}
	h.watchers[orderID][w] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return w.events, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.watchers[orderID], w)
			if len(h.watchers[orderID]) == 0 {
				delete(h.watchers, orderID)
			}
			h.mu.Unlock()
		})
	}
}

// Publish delivers event to every watcher of its order. Slow watchers miss it.
func (h *Hub) Publish(event models.OrderEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for w := range h.watchers[event.OrderID] {
		select {
		case w.events <- event:
		default:
			h.logger.Warn("tracking_event_dropped", "Watcher is too slow, dropping event", event.RequestID, map[string]interface{}{
				"order_number": event.OrderNumber,
				"event_type":   string(event.Type),
			})
		}
	}
}

// Watchers returns the number of live watchers of orderID
func (h *Hub) Watchers(orderID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.watchers[orderID])
}

// HandleMessage is the broker consumer callback
func (h *Hub) HandleMessage(_ context.Context, body []byte) error {
	var event models.OrderEvent
	if err := messaging.ParseMessage(body, &event); err != nil {
		return err
	}
	h.Publish(event)
	return nil
}
