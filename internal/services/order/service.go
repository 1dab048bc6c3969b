package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"cafe-orders/internal/apperr"
	"cafe-orders/internal/logger"
	"cafe-orders/internal/models"
)

// CreateOrderRequest is a customer's checkout
type CreateOrderRequest struct {
	DeliveryAddress      string               `json:"deliveryAddress" binding:"required,min=10,max=500"`
	DeliveryInstructions *string              `json:"deliveryInstructions,omitempty" binding:"omitempty,max=500"`
	SpecialInstructions  *string              `json:"specialInstructions,omitempty" binding:"omitempty,max=500"`
	Items                []CartLine           `json:"items" binding:"required,min=1,max=20,dive"`
	PaymentMethod        models.PaymentMethod `json:"paymentMethod" binding:"required,payment_method"`
}

// UpdateStatusRequest is an administrator's fulfillment update
type UpdateStatusRequest struct {
	Status models.OrderStatus `json:"orderStatus" binding:"required,order_status"`
	Notes  *string            `json:"notes,omitempty" binding:"omitempty,max=1000"`
	Reason string             `json:"cancellationReason,omitempty" binding:"max=500"`
}

// Page is one page of orders
type Page struct {
	Orders []models.Order
	Total  int
	Page   int
	Limit  int
}

// Service owns order creation and the order lifecycle
type Service struct {
	store      Store
	pricer     *Pricer
	notifier   Notifier
	refunder   Refunder
	logger     *logger.Logger
	retryLimit int
	now        func() time.Time
}

func NewService(store Store, pricer *Pricer, notifier Notifier, log *logger.Logger, retryLimit int) *Service {
	if retryLimit < 1 {
		retryLimit = 1
	}
	return &Service{
		store:      store,
		pricer:     pricer,
		notifier:   notifier,
		logger:     log,
		retryLimit: retryLimit,
		now:        time.Now,
	}
}

// SetRefunder wires the payment module used for admin refunds
func (s *Service) SetRefunder(r Refunder) {
	s.refunder = r
}

// CreateOrder prices the cart, assigns the next number for the year and persists
// the order atomically. A number clash retries the whole transaction with a
// fresh count.
func (s *Service) CreateOrder(ctx context.Context, user models.Identity, req *CreateOrderRequest, requestID string) (*models.Order, error) {
	if err := ValidateCreateOrder(req); err != nil {
		return nil, err
	}
	cart := MergeCart(req.Items)

	var created *models.Order
	for attempt := 1; ; attempt++ {
		err := s.store.InTx(ctx, func(tx Tx) error {
			o, err := s.placeOrder(ctx, tx, user, req, cart)
			if err != nil {
				return err
			}
			created = o
			return nil
		})
		if err == nil {
			break
		}
		if !errors.Is(err, ErrDuplicateOrderNumber) {
			return nil, err
		}
		if attempt >= s.retryLimit {
			return nil, fmt.Errorf("failed to allocate order number after %d attempts: %w", attempt, err)
		}
		s.logger.Warn("order_number_collision", "Order number already taken, retrying", requestID, map[string]interface{}{
			"attempt": attempt,
		})
	}

	s.logger.Info("order_created", fmt.Sprintf("Order %s created", created.Number), requestID, map[string]interface{}{
		"order_id":       created.ID.String(),
		"order_number":   created.Number,
		"total_amount":   created.Total.StringFixed(moneyPlaces),
		"payment_method": string(created.PaymentMethod),
	})
	s.notify(models.NewOrderEvent(models.EventOrderCreated, created, "", string(created.Status), user.Label()), requestID)

	return created, nil
}

func (s *Service) placeOrder(ctx context.Context, tx Tx, user models.Identity, req *CreateOrderRequest, cart []CartLine) (*models.Order, error) {
	now := s.now().UTC()

	ids := make([]uuid.UUID, len(cart))
	for i, line := range cart {
		ids[i] = line.FoodItemID
	}
	items, err := tx.LockCatalogItems(ctx, ids)
	if err != nil {
		return nil, err
	}

	quote, err := s.pricer.Price(cart, items, now)
	if err != nil {
		return nil, err
	}

	for _, line := range quote.Lines {
		if items[line.FoodItemID].StockQuantity == nil {
			continue
		}
		if err := tx.DecrementStock(ctx, line.FoodItemID, line.Quantity); err != nil {
			return nil, err
		}
	}

	from, to := YearWindow(now)
	count, err := tx.CountOrdersBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}

	o := &models.Order{
		ID:                    uuid.New(),
		Number:                FormatOrderNumber(from.Year(), count+1),
		UserID:                user.UserID,
		UserName:              user.Name,
		UserPhone:             user.Phone,
		UserEmail:             user.Email,
		DeliveryAddress:       strings.TrimSpace(req.DeliveryAddress),
		DeliveryInstructions:  req.DeliveryInstructions,
		SpecialInstructions:   req.SpecialInstructions,
		Lines:                 quote.Lines,
		Subtotal:              quote.Subtotal,
		DeliveryFee:           quote.DeliveryFee,
		Tax:                   quote.Tax,
		Total:                 quote.Total,
		PaymentMethod:         req.PaymentMethod,
		PaymentStatus:         req.PaymentMethod.InitialPaymentStatus(),
		Status:                models.StatusPending,
		EstimatedDeliveryTime: quote.EstimatedDeliveryTime,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	for i := range o.Lines {
		o.Lines[i].OrderID = o.ID
	}

	if err := tx.InsertOrder(ctx, o); err != nil {
		return nil, err
	}

	notes := "Order placed"
	return o, tx.AppendHistory(ctx, models.StatusHistoryEntry{
		OrderID:       o.ID,
		Status:        &o.Status,
		PaymentStatus: &o.PaymentStatus,
		ChangedBy:     user.Label(),
		ChangedAt:     now,
		Notes:         &notes,
	})
}

// ListUserOrders lists the caller's own orders, newest first
func (s *Service) ListUserOrders(ctx context.Context, user models.Identity, filter ListFilter) (*Page, error) {
	filter.UserID = &user.UserID
	filter.PaymentStatus = nil
	filter.Search = ""
	return s.list(ctx, filter)
}

// GetUserOrder returns one of the caller's orders. Orders of other users are
// reported as not found.
func (s *Service) GetUserOrder(ctx context.Context, user models.Identity, id uuid.UUID) (*models.Order, error) {
	o, err := s.store.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.UserID != user.UserID && !user.IsAdmin {
		return nil, apperr.NotFound("order %s not found", id)
	}
	return o, nil
}

// CancelOrder cancels one of the caller's orders while it is still pending or confirmed
func (s *Service) CancelOrder(ctx context.Context, user models.Identity, id uuid.UUID, reason, requestID string) (*models.Order, error) {
	if err := ValidateReason(reason); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)

	var (
		updated *models.Order
		prev    models.OrderStatus
	)
	err := s.store.InTx(ctx, func(tx Tx) error {
		o, err := tx.LockOrder(ctx, id)
		if err != nil {
			return err
		}
		if o.UserID != user.UserID {
			return apperr.NotFound("order %s not found", id)
		}
		if err := o.Status.Next(models.StatusCancelled, models.ActorUser); err != nil {
			return err
		}

		prev = o.Status
		if err := s.transition(ctx, tx, o, models.StatusCancelled, models.ActorUser, user, reason, nil); err != nil {
			return err
		}
		updated = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order_cancelled", fmt.Sprintf("Order %s cancelled by customer", updated.Number), requestID, map[string]interface{}{
		"order_id":    updated.ID.String(),
		"prev_status": string(prev),
	})
	event := models.NewOrderEvent(models.EventOrderCancelled, updated, string(prev), string(updated.Status), user.Label())
	event.Reason = reason
	s.notify(event, requestID)

	return updated, nil
}

// AdminListOrders lists every order matching filter
func (s *Service) AdminListOrders(ctx context.Context, filter ListFilter) (*Page, error) {
	filter.UserID = nil
	return s.list(ctx, filter)
}

func (s *Service) AdminGetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return s.store.GetOrder(ctx, id)
}

// AdminUpdateStatus moves an order forward, possibly skipping steps, or cancels it.
// The row is locked and re-validated inside the transaction.
func (s *Service) AdminUpdateStatus(ctx context.Context, admin models.Identity, id uuid.UUID, req UpdateStatusRequest, requestID string) (*models.Order, error) {
	reason := strings.TrimSpace(req.Reason)
	if req.Status == models.StatusCancelled {
		if err := ValidateReason(reason); err != nil {
			return nil, err
		}
	}

	var (
		updated *models.Order
		prev    models.OrderStatus
	)
	err := s.store.InTx(ctx, func(tx Tx) error {
		o, err := tx.LockOrder(ctx, id)
		if err != nil {
			return err
		}
		if err := o.Status.Next(req.Status, models.ActorAdmin); err != nil {
			return err
		}

		prev = o.Status
		if err := s.transition(ctx, tx, o, req.Status, models.ActorAdmin, admin, reason, req.Notes); err != nil {
			return err
		}
		updated = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order_status_updated", fmt.Sprintf("Order %s moved to %s", updated.Number, updated.Status), requestID, map[string]interface{}{
		"order_id":    updated.ID.String(),
		"prev_status": string(prev),
		"new_status":  string(updated.Status),
		"changed_by":  admin.Label(),
	})

	eventType := models.EventOrderStatus
	if updated.Status == models.StatusCancelled {
		eventType = models.EventOrderCancelled
	}
	event := models.NewOrderEvent(eventType, updated, string(prev), string(updated.Status), admin.Label())
	event.Reason = reason
	s.notify(event, requestID)

	return updated, nil
}

// transition applies a validated status change and its side effects within tx
func (s *Service) transition(ctx context.Context, tx Tx, o *models.Order, next models.OrderStatus, by models.Actor, who models.Identity, reason string, notes *string) error {
	now := s.now().UTC()
	o.ApplyStatus(next, by, who.UserID, reason, now)
	if notes != nil {
		o.Notes = notes
	}

	if err := tx.SaveStatus(ctx, o); err != nil {
		return err
	}
	if next == models.StatusCancelled {
		if err := tx.RestockLines(ctx, o.Lines); err != nil {
			return err
		}
	}

	logNotes := notes
	if next == models.StatusCancelled {
		logNotes = &reason
	}
	return tx.AppendHistory(ctx, models.StatusHistoryEntry{
		OrderID:   o.ID,
		Status:    &next,
		ChangedBy: who.Label(),
		ChangedAt: now,
		Notes:     logNotes,
	})
}

// AdminUpdatePaymentStatus applies an administrator's payment change. Refunds go
// through the payment module so gateway-paid orders are refunded upstream first.
func (s *Service) AdminUpdatePaymentStatus(ctx context.Context, admin models.Identity, id uuid.UUID, next models.PaymentStatus, reason, requestID string) (*models.Order, error) {
	if next == models.PaymentRefunded {
		if s.refunder == nil {
			return nil, fmt.Errorf("refunds are not configured")
		}
		return s.refunder.Refund(ctx, admin, id, reason, requestID)
	}

	var (
		updated *models.Order
		prev    models.PaymentStatus
	)
	err := s.store.InTx(ctx, func(tx Tx) error {
		o, err := tx.LockOrder(ctx, id)
		if err != nil {
			return err
		}
		if err := o.PaymentStatus.Next(next, models.ActorAdmin); err != nil {
			return err
		}

		now := s.now().UTC()
		prev = o.PaymentStatus
		o.PaymentStatus = next
		o.UpdatedAt = now
		if err := tx.SavePayment(ctx, o); err != nil {
			return err
		}

		updated = o
		return tx.AppendHistory(ctx, models.StatusHistoryEntry{
			OrderID:       o.ID,
			PaymentStatus: &next,
			ChangedBy:     admin.Label(),
			ChangedAt:     now,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("payment_status_updated", fmt.Sprintf("Order %s payment moved to %s", updated.Number, next), requestID, map[string]interface{}{
		"order_id":    updated.ID.String(),
		"prev_status": string(prev),
		"new_status":  string(next),
	})

	eventType := models.EventPaymentStatus
	if next == models.PaymentPaid {
		eventType = models.EventPaymentConfirmed
	}
	s.notify(models.NewOrderEvent(eventType, updated, string(prev), string(next), admin.Label()), requestID)

	return updated, nil
}

// Statistics summarises orders created in [from, to). Revenue counts paid,
// non-cancelled orders; the average is revenue per delivered order.
func (s *Service) Statistics(ctx context.Context, from, to *time.Time) (*models.OrderStatistics, error) {
	if from != nil && to != nil && !from.Before(*to) {
		return nil, apperr.Validation("endDate", "end date must be after start date")
	}

	counts, err := s.store.StatusCounts(ctx, from, to)
	if err != nil {
		return nil, err
	}
	revenue, err := s.store.Revenue(ctx, from, to)
	if err != nil {
		return nil, err
	}

	stats := &models.OrderStatistics{
		ByStatus:          make(map[models.OrderStatus]int, len(models.AllOrderStatuses)),
		TotalRevenue:      revenue.Round(moneyPlaces),
		AverageOrderValue: decimal.Zero,
		From:              from,
		To:                to,
	}
	for _, status := range models.AllOrderStatuses {
		stats.ByStatus[status] = counts[status]
		stats.TotalOrders += counts[status]
	}
	if delivered := counts[models.StatusDelivered]; delivered > 0 {
		stats.AverageOrderValue = revenue.Div(decimal.NewFromInt(int64(delivered))).Round(moneyPlaces)
	}

	return stats, nil
}

// History returns the status log of an order, oldest first
func (s *Service) History(ctx context.Context, id uuid.UUID) ([]models.StatusHistoryEntry, error) {
	if _, err := s.store.GetOrder(ctx, id); err != nil {
		return nil, err
	}
	return s.store.History(ctx, id)
}

func (s *Service) list(ctx context.Context, filter ListFilter) (*Page, error) {
	if err := ValidateListFilter(&filter); err != nil {
		return nil, err
	}
	orders, total, err := s.store.ListOrders(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &Page{Orders: orders, Total: total, Page: filter.Page, Limit: filter.Limit}, nil
}

func (s *Service) notify(event models.OrderEvent, requestID string) {
	if s.notifier == nil {
		return
	}
	event.RequestID = requestID
	s.notifier.Notify(event)
}
