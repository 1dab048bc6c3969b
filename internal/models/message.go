package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventType is also the routing key on the order events exchange
type EventType string

const (
	EventOrderCreated     EventType = "order.created"
	EventOrderStatus      EventType = "order.status_changed"
	EventOrderCancelled   EventType = "order.cancelled"
	EventPaymentConfirmed EventType = "payment.confirmed"
	EventPaymentFailed    EventType = "payment.failed"
	EventPaymentRefunded  EventType = "payment.refunded"
	EventPaymentStatus    EventType = "payment.status_changed"
)

// OrderEvent is published after an order change has been committed
type OrderEvent struct {
	Type          EventType       `json:"type"`
	OrderID       uuid.UUID       `json:"order_id"`
	OrderNumber   string          `json:"order_number"`
	UserID        uuid.UUID       `json:"user_id"`
	UserEmail     string          `json:"user_email,omitempty"`
	OldStatus     string          `json:"old_status,omitempty"`
	NewStatus     string          `json:"new_status,omitempty"`
	PaymentStatus PaymentStatus   `json:"payment_status,omitempty"`
	Total         decimal.Decimal `json:"total"`
	ChangedBy     string          `json:"changed_by"`
	Reason        string          `json:"reason,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
	RequestID     string          `json:"request_id,omitempty"`
}

// NewOrderEvent creates an event snapshot of o
func NewOrderEvent(typ EventType, o *Order, oldStatus, newStatus, changedBy string) OrderEvent {
	return OrderEvent{
		Type:          typ,
		OrderID:       o.ID,
		OrderNumber:   o.Number,
		UserID:        o.UserID,
		UserEmail:     o.UserEmail,
		OldStatus:     oldStatus,
		NewStatus:     newStatus,
		PaymentStatus: o.PaymentStatus,
		Total:         o.Total,
		ChangedBy:     changedBy,
		Timestamp:     time.Now().UTC(),
	}
}

// RoutingKey returns the routing key the event is published under
func (e OrderEvent) RoutingKey() string {
	return string(e.Type)
}
