// Package ordertest provides an in-memory order.Store for tests.
package ordertest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"cafe-orders/internal/apperr"
	"cafe-orders/internal/models"
	"cafe-orders/internal/services/order"
)

// Store is a transactional in-memory order.Store. Transactions are serialized
// and roll back every change when fn fails.
type Store struct {
	mu      sync.Mutex
	items   map[uuid.UUID]models.CatalogItem
	orders  map[uuid.UUID]*models.Order
	numbers map[string]bool
	history []models.StatusHistoryEntry

	collisions     int
	InsertAttempts int
}

func New() *Store {
	return &Store{
		items:   make(map[uuid.UUID]models.CatalogItem),
		orders:  make(map[uuid.UUID]*models.Order),
		numbers: make(map[string]bool),
	}
}

// AddItem seeds a catalog item
func (s *Store) AddItem(item models.CatalogItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.ID] = item
}

// Item returns the current state of a catalog item
func (s *Store) Item(id uuid.UUID) models.CatalogItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items[id]
}

// PutOrder seeds or overwrites an order
func (s *Store) PutOrder(o *models.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = clone(o)
	s.numbers[o.Number] = true
}

// Order returns a copy of the stored order, or nil
func (s *Store) Order(id uuid.UUID) *models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o, ok := s.orders[id]; ok {
		return clone(o)
	}
	return nil
}

func (s *Store) OrderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

// CollideNextInserts makes the next n InsertOrder calls fail as if another
// transaction had taken the number first.
func (s *Store) CollideNextInserts(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collisions = n
}

func (s *Store) InTx(ctx context.Context, fn func(order.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	if err := fn(&memTx{s: s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *Store) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, apperr.NotFound("order %s not found", id)
	}
	return clone(o), nil
}

func (s *Store) ListOrders(ctx context.Context, f order.ListFilter) ([]models.Order, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []models.Order
	for _, o := range s.orders {
		if !matches(o, f) {
			continue
		}
		matched = append(matched, *clone(o))
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	start := f.Offset()
	if start > total {
		start = total
	}
	end := start + f.Limit
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func matches(o *models.Order, f order.ListFilter) bool {
	if f.UserID != nil && o.UserID != *f.UserID {
		return false
	}
	if f.Status != nil && o.Status != *f.Status {
		return false
	}
	if f.PaymentStatus != nil && o.PaymentStatus != *f.PaymentStatus {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(o.Number), q) &&
			!strings.Contains(strings.ToLower(o.UserName), q) &&
			!strings.Contains(strings.ToLower(o.UserEmail), q) {
			return false
		}
	}
	return inRange(o.CreatedAt, f.From, f.To)
}

func inRange(t time.Time, from, to *time.Time) bool {
	if from != nil && t.Before(*from) {
		return false
	}
	if to != nil && !t.Before(*to) {
		return false
	}
	return true
}

func (s *Store) StatusCounts(ctx context.Context, from, to *time.Time) (map[models.OrderStatus]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[models.OrderStatus]int)
	for _, o := range s.orders {
		if inRange(o.CreatedAt, from, to) {
			counts[o.Status]++
		}
	}
	return counts, nil
}

func (s *Store) Revenue(ctx context.Context, from, to *time.Time) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	revenue := decimal.Zero
	for _, o := range s.orders {
		if o.PaymentStatus == models.PaymentPaid && o.Status != models.StatusCancelled && inRange(o.CreatedAt, from, to) {
			revenue = revenue.Add(o.Total)
		}
	}
	return revenue, nil
}

func (s *Store) History(ctx context.Context, orderID uuid.UUID) ([]models.StatusHistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := []models.StatusHistoryEntry{}
	for _, e := range s.history {
		if e.OrderID == orderID {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

type snapshot struct {
	items   map[uuid.UUID]models.CatalogItem
	orders  map[uuid.UUID]*models.Order
	numbers map[string]bool
	history int
}

func (s *Store) snapshot() snapshot {
	snap := snapshot{
		items:   make(map[uuid.UUID]models.CatalogItem, len(s.items)),
		orders:  make(map[uuid.UUID]*models.Order, len(s.orders)),
		numbers: make(map[string]bool, len(s.numbers)),
		history: len(s.history),
	}
	for id, item := range s.items {
		if item.StockQuantity != nil {
			q := *item.StockQuantity
			item.StockQuantity = &q
		}
		snap.items[id] = item
	}
	for id, o := range s.orders {
		snap.orders[id] = clone(o)
	}
	for n := range s.numbers {
		snap.numbers[n] = true
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.items = snap.items
	s.orders = snap.orders
	s.numbers = snap.numbers
	s.history = s.history[:snap.history]
}

func clone(o *models.Order) *models.Order {
	c := *o
	c.Lines = append([]models.OrderLine(nil), o.Lines...)
	return &c
}

// memTx runs with the store mutex held
type memTx struct {
	s *Store
}

func (t *memTx) LockCatalogItems(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.CatalogItem, error) {
	out := make(map[uuid.UUID]models.CatalogItem, len(ids))
	for _, id := range ids {
		if item, ok := t.s.items[id]; ok {
			out[id] = item
		}
	}
	return out, nil
}

func (t *memTx) DecrementStock(ctx context.Context, foodItemID uuid.UUID, qty int) error {
	item, ok := t.s.items[foodItemID]
	if !ok || item.StockQuantity == nil || *item.StockQuantity < qty {
		return apperr.ItemUnavailable("food item %s is out of stock", foodItemID)
	}
	left := *item.StockQuantity - qty
	item.StockQuantity = &left
	t.s.items[foodItemID] = item
	return nil
}

func (t *memTx) RestockLines(ctx context.Context, lines []models.OrderLine) error {
	for _, line := range lines {
		item, ok := t.s.items[line.FoodItemID]
		if !ok || item.StockQuantity == nil {
			continue
		}
		q := *item.StockQuantity + line.Quantity
		item.StockQuantity = &q
		t.s.items[line.FoodItemID] = item
	}
	return nil
}

func (t *memTx) CountOrdersBetween(ctx context.Context, from, to time.Time) (int, error) {
	n := 0
	for _, o := range t.s.orders {
		if inRange(o.CreatedAt, &from, &to) {
			n++
		}
	}
	return n, nil
}

func (t *memTx) InsertOrder(ctx context.Context, o *models.Order) error {
	t.s.InsertAttempts++
	if t.s.collisions > 0 {
		t.s.collisions--
		return fmt.Errorf("%w: %s", order.ErrDuplicateOrderNumber, o.Number)
	}
	if t.s.numbers[o.Number] {
		return fmt.Errorf("%w: %s", order.ErrDuplicateOrderNumber, o.Number)
	}
	t.s.numbers[o.Number] = true
	t.s.orders[o.ID] = clone(o)
	return nil
}

func (t *memTx) LockOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	o, ok := t.s.orders[id]
	if !ok {
		return nil, apperr.NotFound("order %s not found", id)
	}
	return clone(o), nil
}

func (t *memTx) SaveStatus(ctx context.Context, o *models.Order) error {
	stored, ok := t.s.orders[o.ID]
	if !ok {
		return apperr.NotFound("order %s not found", o.ID)
	}
	stored.Status = o.Status
	stored.ActualDeliveryTime = o.ActualDeliveryTime
	stored.CancellationReason = o.CancellationReason
	stored.CancelledBy = o.CancelledBy
	stored.CancelledAt = o.CancelledAt
	stored.Notes = o.Notes
	stored.UpdatedAt = o.UpdatedAt
	stored.Lines = append([]models.OrderLine(nil), o.Lines...)
	return nil
}

func (t *memTx) SavePayment(ctx context.Context, o *models.Order) error {
	stored, ok := t.s.orders[o.ID]
	if !ok {
		return apperr.NotFound("order %s not found", o.ID)
	}
	stored.PaymentStatus = o.PaymentStatus
	stored.GatewayOrderID = o.GatewayOrderID
	stored.GatewayPaymentID = o.GatewayPaymentID
	stored.UpdatedAt = o.UpdatedAt
	return nil
}

func (t *memTx) AppendHistory(ctx context.Context, e models.StatusHistoryEntry) error {
	e.ID = int64(len(t.s.history) + 1)
	t.s.history = append(t.s.history, e)
	return nil
}
