package order

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"cafe-orders/internal/models"
)

// Store is the persistence collaborator for orders
type Store interface {
	// InTx runs fn in one transaction; fn's error rolls everything back
	InTx(ctx context.Context, fn func(Tx) error) error

	// GetOrder returns the order with its lines, or a NotFound error
	GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListOrders(ctx context.Context, filter ListFilter) ([]models.Order, int, error)
	// StatusCounts counts orders per status created within [from, to)
	StatusCounts(ctx context.Context, from, to *time.Time) (map[models.OrderStatus]int, error)
	// Revenue sums totals of paid, non-cancelled orders created within [from, to)
	Revenue(ctx context.Context, from, to *time.Time) (decimal.Decimal, error)
	History(ctx context.Context, orderID uuid.UUID) ([]models.StatusHistoryEntry, error)
}

// Tx is the set of operations available inside a transaction
type Tx interface {
	// LockCatalogItems reads and row-locks the requested items; missing ids are absent from the map
	LockCatalogItems(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.CatalogItem, error)
	DecrementStock(ctx context.Context, foodItemID uuid.UUID, qty int) error
	RestockLines(ctx context.Context, lines []models.OrderLine) error

	CountOrdersBetween(ctx context.Context, from, to time.Time) (int, error)
	// InsertOrder writes the order and its lines; ErrDuplicateOrderNumber on a number clash
	InsertOrder(ctx context.Context, o *models.Order) error

	// LockOrder re-reads the order FOR UPDATE, or returns a NotFound error
	LockOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	// SaveStatus persists the status columns of o and the prepared flags of its lines
	SaveStatus(ctx context.Context, o *models.Order) error
	// SavePayment persists payment status and gateway references of o
	SavePayment(ctx context.Context, o *models.Order) error
	AppendHistory(ctx context.Context, entry models.StatusHistoryEntry) error
}

// ListFilter narrows order listings. Nil fields are not applied.
type ListFilter struct {
	UserID        *uuid.UUID
	Status        *models.OrderStatus
	PaymentStatus *models.PaymentStatus
	Search        string
	From          *time.Time
	To            *time.Time
	Page          int
	Limit         int
}

func (f ListFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}

// Notifier receives committed order events. It must not block.
type Notifier interface {
	Notify(event models.OrderEvent)
}

// Refunder performs a refund on behalf of an administrator
type Refunder interface {
	Refund(ctx context.Context, admin models.Identity, orderID uuid.UUID, reason, requestID string) (*models.Order, error)
}
