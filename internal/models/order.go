package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentMethod represents how the customer pays for an order
type PaymentMethod string

const (
	MethodCOD      PaymentMethod = "cod"
	MethodRazorpay PaymentMethod = "razorpay"
	MethodCard     PaymentMethod = "card"
	MethodUPI      PaymentMethod = "upi"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCOD, MethodRazorpay, MethodCard, MethodUPI:
		return true
	}
	return false
}

// IsGateway reports whether the method settles through the online gateway flow
func (m PaymentMethod) IsGateway() bool {
	return m == MethodRazorpay
}

// InitialPaymentStatus is the payment status an order starts with.
// Cash and gateway orders start pending; card and upi are recorded as paid
// provisionally at placement.
func (m PaymentMethod) InitialPaymentStatus() PaymentStatus {
	switch m {
	case MethodCard, MethodUPI:
		return PaymentPaid
	default:
		return PaymentPending
	}
}

// CancelledBy records which party cancelled an order
type CancelledBy string

const (
	CancelledByUser   CancelledBy = "user"
	CancelledByAdmin  CancelledBy = "admin"
	CancelledBySystem CancelledBy = "system"
)

// CancelledByActor maps the acting party onto the cancellation record
func CancelledByActor(a Actor) CancelledBy {
	switch a {
	case ActorUser:
		return CancelledByUser
	case ActorAdmin:
		return CancelledByAdmin
	default:
		return CancelledBySystem
	}
}

// OrderLine is an immutable snapshot of one catalog item within an order
type OrderLine struct {
	ID                  uuid.UUID       `json:"id"`
	OrderID             uuid.UUID       `json:"orderId"`
	FoodItemID          uuid.UUID       `json:"foodItemId"`
	Name                string          `json:"name"`
	Quantity            int             `json:"quantity"`
	UnitPrice           decimal.Decimal `json:"unitPrice"`
	LineTotal           decimal.Decimal `json:"totalPrice"`
	SpecialInstructions *string         `json:"specialInstructions,omitempty"`
	Prepared            bool            `json:"isPrepared"`
	PreparedAt          *time.Time      `json:"preparedAt,omitempty"`
	PreparedBy          *uuid.UUID      `json:"preparedBy,omitempty"`
}

// Order is the aggregate of a placed order with both status axes
type Order struct {
	ID                    uuid.UUID       `json:"id"`
	Number                string          `json:"orderNumber"`
	UserID                uuid.UUID       `json:"userId"`
	UserName              string          `json:"userName"`
	UserPhone             string          `json:"userPhone"`
	UserEmail             string          `json:"userEmail"`
	DeliveryAddress       string          `json:"deliveryAddress"`
	DeliveryInstructions  *string         `json:"deliveryInstructions,omitempty"`
	SpecialInstructions   *string         `json:"specialInstructions,omitempty"`
	Lines                 []OrderLine     `json:"items"`
	Subtotal              decimal.Decimal `json:"subtotal"`
	DeliveryFee           decimal.Decimal `json:"deliveryFee"`
	Tax                   decimal.Decimal `json:"tax"`
	Total                 decimal.Decimal `json:"totalAmount"`
	PaymentMethod         PaymentMethod   `json:"paymentMethod"`
	PaymentStatus         PaymentStatus   `json:"paymentStatus"`
	Status                OrderStatus     `json:"orderStatus"`
	GatewayOrderID        *string         `json:"razorpayOrderId,omitempty"`
	GatewayPaymentID      *string         `json:"razorpayPaymentId,omitempty"`
	EstimatedDeliveryTime time.Time       `json:"estimatedDeliveryTime"`
	ActualDeliveryTime    *time.Time      `json:"actualDeliveryTime,omitempty"`
	CancellationReason    *string         `json:"cancellationReason,omitempty"`
	CancelledBy           *CancelledBy    `json:"cancelledBy,omitempty"`
	CancelledAt           *time.Time      `json:"cancelledAt,omitempty"`
	Notes                 *string         `json:"notes,omitempty"`
	CreatedAt             time.Time       `json:"createdAt"`
	UpdatedAt             time.Time       `json:"updatedAt"`
}

// ApplyStatus moves the order to next and applies the transition side effects.
// The caller must have validated the move with OrderStatus.Next.
func (o *Order) ApplyStatus(next OrderStatus, by Actor, staff uuid.UUID, reason string, at time.Time) {
	prev := o.Status
	o.Status = next
	o.UpdatedAt = at

	if prev.Reaches(next, StatusReady) {
		for i := range o.Lines {
			if o.Lines[i].Prepared {
				continue
			}
			o.Lines[i].Prepared = true
			o.Lines[i].PreparedAt = &at
			o.Lines[i].PreparedBy = &staff
		}
	}

	switch next {
	case StatusDelivered:
		o.ActualDeliveryTime = &at
	case StatusCancelled:
		cb := CancelledByActor(by)
		o.CancelledBy = &cb
		o.CancelledAt = &at
		o.CancellationReason = &reason
	}
}

// StatusHistoryEntry is one row of the order status log
type StatusHistoryEntry struct {
	ID            int64          `json:"id"`
	OrderID       uuid.UUID      `json:"orderId"`
	Status        *OrderStatus   `json:"orderStatus,omitempty"`
	PaymentStatus *PaymentStatus `json:"paymentStatus,omitempty"`
	ChangedBy     string         `json:"changedBy"`
	ChangedAt     time.Time      `json:"timestamp"`
	Notes         *string        `json:"notes,omitempty"`
}

// OrderStatistics summarises orders created within a period
type OrderStatistics struct {
	TotalOrders       int                 `json:"totalOrders"`
	ByStatus          map[OrderStatus]int `json:"byStatus"`
	TotalRevenue      decimal.Decimal     `json:"totalRevenue"`
	AverageOrderValue decimal.Decimal     `json:"averageOrderValue"`
	From              *time.Time          `json:"from,omitempty"`
	To                *time.Time          `json:"to,omitempty"`
}
