package ordertest

import (
	"sync"

	"cafe-orders/internal/models"
)

// Notifier records every event it is given
type Notifier struct {
	mu     sync.Mutex
	events []models.OrderEvent
}

func (n *Notifier) Notify(event models.OrderEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *Notifier) Events() []models.OrderEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]models.OrderEvent(nil), n.events...)
}

// Types returns the event types in the order they were received
func (n *Notifier) Types() []models.EventType {
	n.mu.Lock()
	defer n.mu.Unlock()
	types := make([]models.EventType, len(n.events))
	for i, e := range n.events {
		types[i] = e.Type
	}
	return types
}
