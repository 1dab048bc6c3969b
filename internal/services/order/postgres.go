package order

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"cafe-orders/internal/apperr"
	"cafe-orders/internal/database"
	"cafe-orders/internal/models"
)

// Repository is the PostgreSQL Store
type Repository struct {
	db *database.DB
}

func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) InTx(ctx context.Context, fn func(Tx) error) error {
	return r.db.InTx(ctx, func(tx pgx.Tx) error {
		return fn(&pgTx{tx: tx})
	})
}

func (r *Repository) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	o, err := database.ScanOrder(r.db.QueryRow(ctx, database.GetOrderSQL, id))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, apperr.NotFound("order %s not found", id)
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	o.Lines, err = loadLines(ctx, r.db.Pool, id)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *Repository) ListOrders(ctx context.Context, f ListFilter) ([]models.Order, int, error) {
	rows, err := r.db.Query(ctx, database.ListOrdersSQL,
		f.UserID,
		database.NullableString(f.Status),
		database.NullableString(f.PaymentStatus),
		nullIfEmpty(f.Search),
		f.From,
		f.To,
		f.Limit,
		f.Offset(),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var (
		orders []models.Order
		total  int
	)
	for rows.Next() {
		o, err := database.ScanOrder(rows, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	if len(orders) == 0 {
		return []models.Order{}, 0, nil
	}

	if err := r.attachLines(ctx, orders); err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// attachLines loads the lines of every order in one query
func (r *Repository) attachLines(ctx context.Context, orders []models.Order) error {
	ids := make([]uuid.UUID, len(orders))
	index := make(map[uuid.UUID]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = i
	}

	rows, err := r.db.Query(ctx, database.GetOrderLinesForOrdersSQL, ids)
	if err != nil {
		return fmt.Errorf("failed to load order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		line, err := database.ScanOrderLine(rows)
		if err != nil {
			return fmt.Errorf("failed to scan order item: %w", err)
		}
		i := index[line.OrderID]
		orders[i].Lines = append(orders[i].Lines, line)
	}
	return rows.Err()
}

func (r *Repository) StatusCounts(ctx context.Context, from, to *time.Time) (map[models.OrderStatus]int, error) {
	rows, err := r.db.Query(ctx, database.OrderStatusCountsSQL, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to count orders: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.OrderStatus]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan order count: %w", err)
		}
		counts[models.OrderStatus(status)] = n
	}
	return counts, rows.Err()
}

func (r *Repository) Revenue(ctx context.Context, from, to *time.Time) (decimal.Decimal, error) {
	var revenue decimal.Decimal
	if err := r.db.QueryRow(ctx, database.OrderRevenueSQL, from, to).Scan(&revenue); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum revenue: %w", err)
	}
	return revenue, nil
}

func (r *Repository) History(ctx context.Context, orderID uuid.UUID) ([]models.StatusHistoryEntry, error) {
	rows, err := r.db.Query(ctx, database.GetOrderStatusHistorySQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order history: %w", err)
	}
	defer rows.Close()

	history := []models.StatusHistoryEntry{}
	for rows.Next() {
		var e models.StatusHistoryEntry
		if err := rows.Scan(&e.ID, &e.OrderID, &e.Status, &e.PaymentStatus, &e.ChangedBy, &e.ChangedAt, &e.Notes); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		history = append(history, e)
	}
	return history, rows.Err()
}

type querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

func loadLines(ctx context.Context, q querier, orderID uuid.UUID) ([]models.OrderLine, error) {
	rows, err := q.Query(ctx, database.GetOrderLinesSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order items: %w", err)
	}
	defer rows.Close()

	lines := []models.OrderLine{}
	for rows.Next() {
		line, err := database.ScanOrderLine(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// pgTx implements Tx on a pgx transaction
type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) LockCatalogItems(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.CatalogItem, error) {
	rows, err := t.tx.Query(ctx, database.LockFoodItemsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to lock food items: %w", err)
	}
	defer rows.Close()

	items := make(map[uuid.UUID]models.CatalogItem, len(ids))
	for rows.Next() {
		item, err := database.ScanFoodItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan food item: %w", err)
		}
		items[item.ID] = item
	}
	return items, rows.Err()
}

func (t *pgTx) DecrementStock(ctx context.Context, foodItemID uuid.UUID, qty int) error {
	tag, err := t.tx.Exec(ctx, database.DecrementStockSQL, foodItemID, qty)
	if err != nil {
		return fmt.Errorf("failed to decrement stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ItemUnavailable("food item %s is out of stock", foodItemID)
	}
	return nil
}

func (t *pgTx) RestockLines(ctx context.Context, lines []models.OrderLine) error {
	for _, line := range lines {
		if _, err := t.tx.Exec(ctx, database.RestockSQL, line.FoodItemID, line.Quantity); err != nil {
			return fmt.Errorf("failed to restock food item: %w", err)
		}
	}
	return nil
}

func (t *pgTx) CountOrdersBetween(ctx context.Context, from, to time.Time) (int, error) {
	var n int
	if err := t.tx.QueryRow(ctx, database.CountOrdersBetweenSQL, from, to).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count orders: %w", err)
	}
	return n, nil
}

func (t *pgTx) InsertOrder(ctx context.Context, o *models.Order) error {
	_, err := t.tx.Exec(ctx, database.InsertOrderSQL,
		o.ID, o.Number, o.UserID, o.UserName, o.UserPhone, o.UserEmail, o.DeliveryAddress,
		o.DeliveryInstructions, o.SpecialInstructions,
		o.Subtotal.String(), o.DeliveryFee.String(), o.Tax.String(), o.Total.String(),
		string(o.PaymentMethod), string(o.PaymentStatus), string(o.Status),
		o.EstimatedDeliveryTime, o.CreatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err, database.OrderNumberConstraint) {
			return fmt.Errorf("%w: %s", ErrDuplicateOrderNumber, o.Number)
		}
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for i, line := range o.Lines {
		_, err := t.tx.Exec(ctx, database.InsertOrderLineSQL,
			line.ID, o.ID, line.FoodItemID, line.Name, line.Quantity,
			line.UnitPrice.String(), line.LineTotal.String(), line.SpecialInstructions, i,
		)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}
	return nil
}

func (t *pgTx) LockOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	o, err := database.ScanOrder(t.tx.QueryRow(ctx, database.LockOrderSQL, id))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, apperr.NotFound("order %s not found", id)
		}
		return nil, fmt.Errorf("failed to lock order: %w", err)
	}

	o.Lines, err = loadLines(ctx, t.tx, id)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (t *pgTx) SaveStatus(ctx context.Context, o *models.Order) error {
	_, err := t.tx.Exec(ctx, database.UpdateOrderStatusSQL,
		o.ID, string(o.Status), o.ActualDeliveryTime, o.CancellationReason,
		database.NullableString(o.CancelledBy), o.CancelledAt, o.Notes, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}

	for _, line := range o.Lines {
		if !line.Prepared || line.PreparedAt == nil {
			continue
		}
		if _, err := t.tx.Exec(ctx, database.MarkOrderLinesPreparedSQL, o.ID, *line.PreparedAt, line.PreparedBy); err != nil {
			return fmt.Errorf("failed to mark order items prepared: %w", err)
		}
		break
	}
	return nil
}

func (t *pgTx) SavePayment(ctx context.Context, o *models.Order) error {
	_, err := t.tx.Exec(ctx, database.UpdateOrderPaymentSQL,
		o.ID, string(o.PaymentStatus), o.GatewayOrderID, o.GatewayPaymentID, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update payment status: %w", err)
	}
	return nil
}

func (t *pgTx) AppendHistory(ctx context.Context, e models.StatusHistoryEntry) error {
	_, err := t.tx.Exec(ctx, database.InsertOrderStatusLogSQL,
		e.OrderID, database.NullableString(e.Status), database.NullableString(e.PaymentStatus),
		e.ChangedBy, e.ChangedAt, e.Notes,
	)
	if err != nil {
		return fmt.Errorf("failed to append status log: %w", err)
	}
	return nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
