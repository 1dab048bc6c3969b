package tracking

import (
	"context"

	"github.com/google/uuid"

	"cafe-orders/internal/models"
)

// OrderReader resolves an order the caller is allowed to watch. Orders of
// other users must be reported as not found.
type OrderReader interface {
	GetUserOrder(ctx context.Context, user models.Identity, id uuid.UUID) (*models.Order, error)
}
