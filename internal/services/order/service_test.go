package order_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cafe-orders/internal/apperr"
	"cafe-orders/internal/logger"
	"cafe-orders/internal/models"
	"cafe-orders/internal/services/order"
	"cafe-orders/internal/services/order/ordertest"
)

var clock = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store    *ordertest.Store
	notifier *ordertest.Notifier
	svc      *order.Service
	pizza    models.CatalogItem
	cake     models.CatalogItem
	customer models.Identity
	admin    models.Identity
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	stock := 5
	f := &fixture{
		store:    ordertest.New(),
		notifier: &ordertest.Notifier{},
		pizza: models.CatalogItem{
			ID: uuid.New(), Name: "Margherita Pizza", Price: decimal.RequireFromString("349.00"),
			Category: models.CategoryPizza, IsAvailable: true,
		},
		cake: models.CatalogItem{
			ID: uuid.New(), Name: "Lava Cake", Price: decimal.RequireFromString("159.00"),
			Category: models.CategoryDessert, IsAvailable: true, StockQuantity: &stock,
		},
		customer: models.Identity{UserID: uuid.New(), Name: "Asha Rao", Phone: "+919800000001", Email: "asha@example.com"},
		admin:    models.Identity{UserID: uuid.New(), Name: "Kitchen Lead", IsAdmin: true},
	}
	f.store.AddItem(f.pizza)
	f.store.AddItem(f.cake)

	f.svc = order.NewService(f.store, order.NewPricer(order.DefaultPricing()), f.notifier, logger.NewNop(), 5)
	f.svc.SetClock(func() time.Time { return clock })
	return f
}

func (f *fixture) request(method models.PaymentMethod, lines ...order.CartLine) *order.CreateOrderRequest {
	return &order.CreateOrderRequest{
		DeliveryAddress: "12 MG Road, Bengaluru 560001",
		PaymentMethod:   method,
		Items:           lines,
	}
}

func (f *fixture) place(t *testing.T, method models.PaymentMethod) *models.Order {
	t.Helper()
	o, err := f.svc.CreateOrder(context.Background(), f.customer,
		f.request(method, order.CartLine{FoodItemID: f.pizza.ID, Quantity: 2}), "req-test")
	require.NoError(t, err)
	return o
}

func TestCreateOrder_PricesNumbersAndSnapshots(t *testing.T) {
	f := newFixture(t)

	o := f.place(t, models.MethodCOD)

	assert.Equal(t, "ORD-2025-001", o.Number)
	assert.Equal(t, "698.00", o.Subtotal.StringFixed(2))
	assert.Equal(t, "49.00", o.DeliveryFee.StringFixed(2))
	assert.Equal(t, "55.84", o.Tax.StringFixed(2))
	assert.Equal(t, "802.84", o.Total.StringFixed(2))
	assert.Equal(t, clock.Add(45*time.Minute), o.EstimatedDeliveryTime)
	assert.Equal(t, models.StatusPending, o.Status)
	assert.Equal(t, models.PaymentPending, o.PaymentStatus)
	assert.Equal(t, f.customer.Name, o.UserName)
	assert.Equal(t, f.customer.Email, o.UserEmail)

	require.Len(t, o.Lines, 1)
	assert.Equal(t, "Margherita Pizza", o.Lines[0].Name)
	assert.Equal(t, o.ID, o.Lines[0].OrderID)

	stored := f.store.Order(o.ID)
	require.NotNil(t, stored)
	assert.True(t, stored.Total.Equal(o.Total))

	history, err := f.svc.History(context.Background(), o.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.StatusPending, *history[0].Status)

	assert.Equal(t, []models.EventType{models.EventOrderCreated}, f.notifier.Types())
}

func TestCreateOrder_CatalogChangesDoNotRewriteHistory(t *testing.T) {
	f := newFixture(t)
	o := f.place(t, models.MethodCOD)

	repriced := f.pizza
	repriced.Price = decimal.RequireFromString("999.00")
	repriced.Name = "Renamed Pizza"
	f.store.AddItem(repriced)

	stored, err := f.svc.AdminGetOrder(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, "Margherita Pizza", stored.Lines[0].Name)
	assert.Equal(t, "349.00", stored.Lines[0].UnitPrice.StringFixed(2))
	assert.Equal(t, "802.84", stored.Total.StringFixed(2))
}

func TestCreateOrder_InitialPaymentStatusByMethod(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, models.PaymentPending, f.place(t, models.MethodCOD).PaymentStatus)
	assert.Equal(t, models.PaymentPending, f.place(t, models.MethodRazorpay).PaymentStatus)
	assert.Equal(t, models.PaymentPaid, f.place(t, models.MethodCard).PaymentStatus)
	assert.Equal(t, models.PaymentPaid, f.place(t, models.MethodUPI).PaymentStatus)
}

func TestCreateOrder_UnavailableItemCreatesNothing(t *testing.T) {
	f := newFixture(t)
	disabled := f.pizza
	disabled.ID = uuid.New()
	disabled.IsAvailable = false
	f.store.AddItem(disabled)

	_, err := f.svc.CreateOrder(context.Background(), f.customer, f.request(models.MethodCOD,
		order.CartLine{FoodItemID: f.cake.ID, Quantity: 2},
		order.CartLine{FoodItemID: disabled.ID, Quantity: 1},
	), "req-test")

	assert.ErrorIs(t, err, apperr.ErrItemUnavailable)
	assert.Zero(t, f.store.OrderCount())
	assert.Equal(t, 5, *f.store.Item(f.cake.ID).StockQuantity, "stock must be untouched")
	assert.Empty(t, f.notifier.Events())
}

func TestCreateOrder_MergesDuplicateLinesAndDecrementsStock(t *testing.T) {
	f := newFixture(t)

	o, err := f.svc.CreateOrder(context.Background(), f.customer, f.request(models.MethodCOD,
		order.CartLine{FoodItemID: f.cake.ID, Quantity: 2},
		order.CartLine{FoodItemID: f.cake.ID, Quantity: 1},
	), "req-test")
	require.NoError(t, err)

	require.Len(t, o.Lines, 1)
	assert.Equal(t, 3, o.Lines[0].Quantity)
	assert.Equal(t, 2, *f.store.Item(f.cake.ID).StockQuantity)

	_, err = f.svc.CreateOrder(context.Background(), f.customer, f.request(models.MethodCOD,
		order.CartLine{FoodItemID: f.cake.ID, Quantity: 3},
	), "req-test")
	assert.ErrorIs(t, err, apperr.ErrItemUnavailable)
}

func TestCreateOrder_NumbersIncreaseWithinYear(t *testing.T) {
	f := newFixture(t)

	var numbers []string
	for i := 0; i < 3; i++ {
		numbers = append(numbers, f.place(t, models.MethodCOD).Number)
	}
	assert.Equal(t, []string{"ORD-2025-001", "ORD-2025-002", "ORD-2025-003"}, numbers)

	f.svc.SetClock(func() time.Time { return time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC) })
	assert.Equal(t, "ORD-2026-001", f.place(t, models.MethodCOD).Number)
}

func TestCreateOrder_RetriesNumberCollision(t *testing.T) {
	f := newFixture(t)
	f.store.CollideNextInserts(2)

	o := f.place(t, models.MethodCOD)

	assert.Equal(t, "ORD-2025-001", o.Number)
	assert.Equal(t, 3, f.store.InsertAttempts)
	assert.Equal(t, 1, f.store.OrderCount())
}

func TestCreateOrder_GivesUpAfterRetryLimit(t *testing.T) {
	f := newFixture(t)
	f.store.CollideNextInserts(10)

	_, err := f.svc.CreateOrder(context.Background(), f.customer,
		f.request(models.MethodCOD, order.CartLine{FoodItemID: f.pizza.ID, Quantity: 1}), "req-test")

	require.Error(t, err)
	assert.True(t, errors.Is(err, order.ErrDuplicateOrderNumber))
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
	assert.Equal(t, 5, f.store.InsertAttempts)
	assert.Zero(t, f.store.OrderCount())
}

func TestCreateOrder_ConcurrentNumbersAreUnique(t *testing.T) {
	f := newFixture(t)

	const n = 25
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers = make(map[string]bool)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o, err := f.svc.CreateOrder(context.Background(), f.customer,
				f.request(models.MethodCOD, order.CartLine{FoodItemID: f.pizza.ID, Quantity: 1}), "req-test")
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			numbers[o.Number] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, numbers, n)
	for i := 1; i <= n; i++ {
		assert.True(t, numbers[fmt.Sprintf("ORD-2025-%03d", i)])
	}
}

func TestCancelOrder_OnlyWhilePendingOrConfirmed(t *testing.T) {
	for _, status := range models.AllOrderStatuses {
		t.Run(string(status), func(t *testing.T) {
			f := newFixture(t)
			o := f.place(t, models.MethodCOD)
			o.Status = status
			f.store.PutOrder(o)

			cancelled, err := f.svc.CancelOrder(context.Background(), f.customer, o.ID, "ordered by mistake", "req-test")

			if status == models.StatusPending || status == models.StatusConfirmed {
				require.NoError(t, err)
				assert.Equal(t, models.StatusCancelled, cancelled.Status)
				require.NotNil(t, cancelled.CancelledBy)
				assert.Equal(t, models.CancelledByUser, *cancelled.CancelledBy)
				assert.Equal(t, "ordered by mistake", *cancelled.CancellationReason)
				assert.Equal(t, clock, *cancelled.CancelledAt)
				return
			}
			assert.ErrorIs(t, err, apperr.ErrInvalidStateTransition)
			assert.Equal(t, status, f.store.Order(o.ID).Status)
		})
	}
}

func TestCancelOrder_RequiresReasonAndOwnership(t *testing.T) {
	f := newFixture(t)
	o := f.place(t, models.MethodCOD)

	_, err := f.svc.CancelOrder(context.Background(), f.customer, o.ID, " ", "req-test")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	stranger := models.Identity{UserID: uuid.New(), Name: "Someone Else"}
	_, err = f.svc.CancelOrder(context.Background(), stranger, o.ID, "not mine", "req-test")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	assert.Equal(t, models.StatusPending, f.store.Order(o.ID).Status)
}

func TestCancelOrder_RestocksTrackedItems(t *testing.T) {
	f := newFixture(t)
	o, err := f.svc.CreateOrder(context.Background(), f.customer, f.request(models.MethodCOD,
		order.CartLine{FoodItemID: f.cake.ID, Quantity: 4},
	), "req-test")
	require.NoError(t, err)
	assert.Equal(t, 1, *f.store.Item(f.cake.ID).StockQuantity)

	_, err = f.svc.CancelOrder(context.Background(), f.customer, o.ID, "running late", "req-test")
	require.NoError(t, err)
	assert.Equal(t, 5, *f.store.Item(f.cake.ID).StockQuantity)
	assert.Equal(t, []models.EventType{models.EventOrderCreated, models.EventOrderCancelled}, f.notifier.Types())
}

func TestAdminUpdateStatus_ReadyMarksLinesPrepared(t *testing.T) {
	f := newFixture(t)
	o := f.place(t, models.MethodCOD)

	updated, err := f.svc.AdminUpdateStatus(context.Background(), f.admin, o.ID,
		order.UpdateStatusRequest{Status: models.StatusConfirmed}, "req-test")
	require.NoError(t, err)
	assert.False(t, updated.Lines[0].Prepared)

	updated, err = f.svc.AdminUpdateStatus(context.Background(), f.admin, o.ID,
		order.UpdateStatusRequest{Status: models.StatusReady}, "req-test")
	require.NoError(t, err)

	for _, line := range f.store.Order(o.ID).Lines {
		assert.True(t, line.Prepared)
		require.NotNil(t, line.PreparedBy)
		assert.Equal(t, f.admin.UserID, *line.PreparedBy)
		assert.Equal(t, clock, *line.PreparedAt)
	}
	assert.Nil(t, updated.ActualDeliveryTime)
}

func TestAdminUpdateStatus_DeliveredStampsTime(t *testing.T) {
	f := newFixture(t)
	o := f.place(t, models.MethodCOD)

	updated, err := f.svc.AdminUpdateStatus(context.Background(), f.admin, o.ID,
		order.UpdateStatusRequest{Status: models.StatusDelivered}, "req-test")
	require.NoError(t, err)

	require.NotNil(t, updated.ActualDeliveryTime)
	assert.Equal(t, clock, *updated.ActualDeliveryTime)
	assert.True(t, updated.Lines[0].Prepared, "skipping past ready still prepares lines")

	_, err = f.svc.AdminUpdateStatus(context.Background(), f.admin, o.ID,
		order.UpdateStatusRequest{Status: models.StatusCancelled, Reason: "too late"}, "req-test")
	assert.ErrorIs(t, err, apperr.ErrInvalidStateTransition)
	assert.Equal(t, models.StatusDelivered, f.store.Order(o.ID).Status)
}

func TestAdminUpdateStatus_RejectsBackwardsMove(t *testing.T) {
	f := newFixture(t)
	o := f.place(t, models.MethodCOD)
	o.Status = models.StatusReady
	f.store.PutOrder(o)

	_, err := f.svc.AdminUpdateStatus(context.Background(), f.admin, o.ID,
		order.UpdateStatusRequest{Status: models.StatusPreparing}, "req-test")
	assert.ErrorIs(t, err, apperr.ErrInvalidStateTransition)
}

func TestAdminUpdateStatus_CancelNeedsReason(t *testing.T) {
	f := newFixture(t)
	o := f.place(t, models.MethodCOD)
	o.Status = models.StatusPreparing
	f.store.PutOrder(o)

	_, err := f.svc.AdminUpdateStatus(context.Background(), f.admin, o.ID,
		order.UpdateStatusRequest{Status: models.StatusCancelled}, "req-test")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	updated, err := f.svc.AdminUpdateStatus(context.Background(), f.admin, o.ID,
		order.UpdateStatusRequest{Status: models.StatusCancelled, Reason: "kitchen closed"}, "req-test")
	require.NoError(t, err)
	assert.Equal(t, models.CancelledByAdmin, *updated.CancelledBy)
}

func TestAdminUpdateStatus_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.AdminUpdateStatus(context.Background(), f.admin, uuid.New(),
		order.UpdateStatusRequest{Status: models.StatusConfirmed}, "req-test")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

type stubRefunder struct {
	called bool
}

func (r *stubRefunder) Refund(ctx context.Context, admin models.Identity, orderID uuid.UUID, reason, requestID string) (*models.Order, error) {
	r.called = true
	return &models.Order{ID: orderID, PaymentStatus: models.PaymentRefunded}, nil
}

func TestAdminUpdatePaymentStatus(t *testing.T) {
	f := newFixture(t)
	o := f.place(t, models.MethodCOD)

	_, err := f.svc.AdminUpdatePaymentStatus(context.Background(), f.admin, o.ID, models.PaymentFailed, "", "req-test")
	assert.ErrorIs(t, err, apperr.ErrInvalidStateTransition, "admins cannot fail a payment")

	updated, err := f.svc.AdminUpdatePaymentStatus(context.Background(), f.admin, o.ID, models.PaymentPaid, "", "req-test")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, updated.PaymentStatus)
	assert.Equal(t, models.StatusPending, updated.Status, "payment axis is independent")

	refunder := &stubRefunder{}
	f.svc.SetRefunder(refunder)
	refunded, err := f.svc.AdminUpdatePaymentStatus(context.Background(), f.admin, o.ID, models.PaymentRefunded, "duplicate charge", "req-test")
	require.NoError(t, err)
	assert.True(t, refunder.called)
	assert.Equal(t, models.PaymentRefunded, refunded.PaymentStatus)

	assert.Contains(t, f.notifier.Types(), models.EventPaymentConfirmed)
}

func TestListAndGetUserOrders(t *testing.T) {
	f := newFixture(t)
	mine := f.place(t, models.MethodCOD)
	f.place(t, models.MethodCard)

	other := models.Identity{UserID: uuid.New(), Name: "Ravi"}
	theirs, err := f.svc.CreateOrder(context.Background(), other,
		f.request(models.MethodCOD, order.CartLine{FoodItemID: f.pizza.ID, Quantity: 1}), "req-test")
	require.NoError(t, err)

	page, err := f.svc.ListUserOrders(context.Background(), f.customer, order.ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	assert.Len(t, page.Orders, 2)

	pending := models.StatusPending
	page, err = f.svc.ListUserOrders(context.Background(), f.customer, order.ListFilter{Status: &pending, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	assert.Len(t, page.Orders, 1)

	got, err := f.svc.GetUserOrder(context.Background(), f.customer, mine.ID)
	require.NoError(t, err)
	assert.Equal(t, mine.Number, got.Number)

	_, err = f.svc.GetUserOrder(context.Background(), f.customer, theirs.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	all, err := f.svc.AdminListOrders(context.Background(), order.ListFilter{Search: "ravi"})
	require.NoError(t, err)
	assert.Equal(t, 1, all.Total)
}

func TestStatistics(t *testing.T) {
	f := newFixture(t)

	delivered := f.place(t, models.MethodCard) // paid 802.84
	_, err := f.svc.AdminUpdateStatus(context.Background(), f.admin, delivered.ID,
		order.UpdateStatusRequest{Status: models.StatusDelivered}, "req-test")
	require.NoError(t, err)

	inFlight := f.place(t, models.MethodUPI) // paid 802.84, not delivered
	_, err = f.svc.AdminUpdateStatus(context.Background(), f.admin, inFlight.ID,
		order.UpdateStatusRequest{Status: models.StatusPreparing}, "req-test")
	require.NoError(t, err)

	cancelled := f.place(t, models.MethodCard)
	_, err = f.svc.CancelOrder(context.Background(), f.customer, cancelled.ID, "changed plans", "req-test")
	require.NoError(t, err)

	f.place(t, models.MethodCOD) // unpaid

	stats, err := f.svc.Statistics(context.Background(), nil, nil)
	require.NoError(t, err)

	assert.Equal(t, 4, stats.TotalOrders)
	assert.Equal(t, 1, stats.ByStatus[models.StatusDelivered])
	assert.Equal(t, 1, stats.ByStatus[models.StatusPreparing])
	assert.Equal(t, 1, stats.ByStatus[models.StatusCancelled])
	assert.Equal(t, 1, stats.ByStatus[models.StatusPending])
	assert.Equal(t, 0, stats.ByStatus[models.StatusReady])
	assert.Equal(t, "1605.68", stats.TotalRevenue.StringFixed(2))
	assert.Equal(t, "1605.68", stats.AverageOrderValue.StringFixed(2))

	from := clock.Add(time.Hour)
	to := clock
	_, err = f.svc.Statistics(context.Background(), &from, &to)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestStatistics_NoDeliveredOrders(t *testing.T) {
	f := newFixture(t)
	f.place(t, models.MethodCard)

	stats, err := f.svc.Statistics(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.True(t, stats.AverageOrderValue.IsZero())
	assert.Equal(t, "802.84", stats.TotalRevenue.StringFixed(2))
}
