package payment

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
	"cafe-orders/internal/config"
	"cafe-orders/internal/logger"
	"cafe-orders/internal/models"
	"cafe-orders/internal/services/order/ordertest"
)

const testSecret = "rzp_test_secret"

var clock = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// fakeGateway issues a fresh gateway order id on every call, like the real one
type fakeGateway struct {
	mu        sync.Mutex
	orders    int
	refunds   []string
	refundErr error
	createErr error
}

func (g *fakeGateway) CreateOrder(_ context.Context, amount int64, currency, receipt string, _ map[string]string) (*GatewayOrder, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.orders++
	return &GatewayOrder{ID: fmt.Sprintf("order_test_%d", g.orders), Amount: amount, Currency: currency, Receipt: receipt, Status: "created"}, nil
}

func (g *fakeGateway) Refund(_ context.Context, paymentID string, amount int64, _ map[string]string) (*GatewayRefund, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.refundErr != nil {
		return nil, g.refundErr
	}
	g.refunds = append(g.refunds, paymentID)
	return &GatewayRefund{ID: "rfnd_" + paymentID, PaymentID: paymentID, Amount: amount, Status: "processed"}, nil
}

type fixture struct {
	store    *ordertest.Store
	notifier *ordertest.Notifier
	gateway  *fakeGateway
	svc      *Service
	customer models.Identity
	other    models.Identity
	admin    models.Identity
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    ordertest.New(),
		notifier: &ordertest.Notifier{},
		gateway:  &fakeGateway{},
		customer: models.Identity{UserID: uuid.New(), Name: "Asha Rao"},
		other:    models.Identity{UserID: uuid.New(), Name: "Someone Else"},
		admin:    models.Identity{UserID: uuid.New(), Name: "Ops", IsAdmin: true},
	}
	cfg := config.PaymentConfig{KeyID: "rzp_test_key", KeySecret: testSecret, Currency: "INR"}
	f.svc = NewService(f.store, f.gateway, f.notifier, cfg, logger.NewNop())
	f.svc.now = func() time.Time { return clock }
	return f
}

func (f *fixture) seed(method models.PaymentMethod, status models.PaymentStatus) *models.Order {
	o := &models.Order{
		ID:            uuid.New(),
		Number:        fmt.Sprintf("ORD-2025-%03d", f.store.OrderCount()+1),
		UserID:        f.customer.UserID,
		Total:         decimal.RequireFromString("802.84"),
		PaymentMethod: method,
		PaymentStatus: status,
		Status:        models.StatusPending,
		CreatedAt:     clock,
		UpdatedAt:     clock,
	}
	f.store.PutOrder(o)
	return o
}

func (f *fixture) intent(t *testing.T, o *models.Order) *Intent {
	t.Helper()
	intent, err := f.svc.CreateIntent(context.Background(), f.customer, o.ID, "req-test")
	require.NoError(t, err)
	return intent
}

func TestToMinorUnits(t *testing.T) {
	assert.Equal(t, int64(80284), ToMinorUnits(decimal.RequireFromString("802.84")))
	assert.Equal(t, int64(100), ToMinorUnits(decimal.RequireFromString("0.995")))
	assert.Equal(t, int64(4900), ToMinorUnits(decimal.NewFromInt(49)))
}

func TestSignature(t *testing.T) {
	sig := Sign(testSecret, "order_1", "pay_1")
	assert.Len(t, sig, 64)
	assert.True(t, VerifySignature(testSecret, "order_1", "pay_1", sig))
	assert.False(t, VerifySignature(testSecret, "order_1", "pay_2", sig))
	assert.False(t, VerifySignature("other", "order_1", "pay_1", sig))
	assert.False(t, VerifySignature("", "order_1", "pay_1", Sign("", "order_1", "pay_1")))
}

func TestMethods_GatewayOnlyWhenConfigured(t *testing.T) {
	f := newFixture(t)
	methods := f.svc.Methods()
	require.Len(t, methods, 4)
	assert.True(t, methods[1].Enabled)

	bare := NewService(f.store, f.gateway, nil, config.PaymentConfig{}, logger.NewNop())
	assert.False(t, bare.Methods()[1].Enabled)

	_, err := bare.CreateIntent(context.Background(), f.customer, uuid.New(), "req")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestCreateIntent(t *testing.T) {
	f := newFixture(t)
	o := f.seed(models.MethodRazorpay, models.PaymentPending)

	intent := f.intent(t, o)
	assert.Equal(t, int64(80284), intent.Amount)
	assert.Equal(t, "INR", intent.Currency)
	assert.Equal(t, "rzp_test_key", intent.KeyID)

	stored := f.store.Order(o.ID)
	require.NotNil(t, stored.GatewayOrderID)
	assert.Equal(t, intent.GatewayOrderID, *stored.GatewayOrderID)
	assert.Equal(t, models.PaymentPending, stored.PaymentStatus)
}

func TestCreateIntent_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	paid := f.seed(models.MethodRazorpay, models.PaymentPaid)
	_, err := f.svc.CreateIntent(ctx, f.customer, paid.ID, "req")
	assert.ErrorIs(t, err, apperr.ErrOrderAlreadyPaid)

	refunded := f.seed(models.MethodRazorpay, models.PaymentRefunded)
	_, err = f.svc.CreateIntent(ctx, f.customer, refunded.ID, "req")
	assert.ErrorIs(t, err, apperr.ErrInvalidStateTransition)

	cancelled := f.seed(models.MethodRazorpay, models.PaymentPending)
	cancelled.Status = models.StatusCancelled
	f.store.PutOrder(cancelled)
	_, err = f.svc.CreateIntent(ctx, f.customer, cancelled.ID, "req")
	assert.ErrorIs(t, err, apperr.ErrInvalidStateTransition)

	pending := f.seed(models.MethodRazorpay, models.PaymentPending)
	_, err = f.svc.CreateIntent(ctx, f.other, pending.ID, "req")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	f.gateway.createErr = errors.New("gateway down")
	_, err = f.svc.CreateIntent(ctx, f.customer, pending.ID, "req")
	require.Error(t, err)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
	assert.Nil(t, f.store.Order(pending.ID).GatewayOrderID)
}

func TestCreateIntent_ReopenedCheckoutKeepsGatewayOrder(t *testing.T) {
	f := newFixture(t)
	o := f.seed(models.MethodRazorpay, models.PaymentPending)

	first := f.intent(t, o)
	second := f.intent(t, o)
	assert.Equal(t, first.GatewayOrderID, second.GatewayOrderID)
	assert.Equal(t, 1, f.gateway.orders)

	paid, err := f.svc.Verify(context.Background(), f.customer, Callback{
		OrderID: o.ID, GatewayOrderID: first.GatewayOrderID, GatewayPaymentID: "pay_1",
		Signature: Sign(testSecret, first.GatewayOrderID, "pay_1"),
	}, "req")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, paid.PaymentStatus)

	_, err = f.svc.CreateIntent(context.Background(), f.customer, o.ID, "req")
	assert.ErrorIs(t, err, apperr.ErrOrderAlreadyPaid)
	assert.Equal(t, 1, f.gateway.orders)
}

func TestCreateIntent_AfterFailureReusesGatewayOrder(t *testing.T) {
	f := newFixture(t)
	o := f.seed(models.MethodRazorpay, models.PaymentPending)
	first := f.intent(t, o)

	_, err := f.svc.ReportFailure(context.Background(), f.customer, Callback{
		OrderID: o.ID, GatewayOrderID: first.GatewayOrderID, GatewayPaymentID: "pay_declined",
	}, "req")
	require.NoError(t, err)

	retry := f.intent(t, o)
	assert.Equal(t, first.GatewayOrderID, retry.GatewayOrderID)
	assert.Equal(t, 1, f.gateway.orders)
}

func TestVerify_MarksPaidOnce(t *testing.T) {
	f := newFixture(t)
	o := f.seed(models.MethodRazorpay, models.PaymentPending)
	intent := f.intent(t, o)

	cb := Callback{
		OrderID:          o.ID,
		GatewayOrderID:   intent.GatewayOrderID,
		GatewayPaymentID: "pay_001",
		Signature:        Sign(testSecret, intent.GatewayOrderID, "pay_001"),
	}

	paid, err := f.svc.Verify(context.Background(), f.customer, cb, "req")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, paid.PaymentStatus)
	require.NotNil(t, paid.GatewayPaymentID)
	assert.Equal(t, "pay_001", *paid.GatewayPaymentID)

	again, err := f.svc.Verify(context.Background(), f.customer, cb, "req")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, again.PaymentStatus)

	assert.Equal(t, []models.EventType{models.EventPaymentConfirmed}, f.notifier.Types())

	history, err := f.store.History(context.Background(), o.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, gatewayActor, history[0].ChangedBy)

	other := cb
	other.GatewayPaymentID = "pay_002"
	other.Signature = Sign(testSecret, intent.GatewayOrderID, "pay_002")
	_, err = f.svc.Verify(context.Background(), f.customer, other, "req")
	assert.ErrorIs(t, err, apperr.ErrOrderAlreadyPaid)
}

func TestVerify_ForgedSignatureChangesNothing(t *testing.T) {
	f := newFixture(t)
	o := f.seed(models.MethodRazorpay, models.PaymentPending)
	intent := f.intent(t, o)

	tests := []struct {
		name string
		cb   Callback
		kind apperr.Kind
	}{
		{
			name: "signed with another secret",
			cb: Callback{OrderID: o.ID, GatewayOrderID: intent.GatewayOrderID, GatewayPaymentID: "pay_x",
				Signature: Sign("attacker", intent.GatewayOrderID, "pay_x")},
			kind: apperr.KindInvalidSignature,
		},
		{
			name: "missing signature",
			cb:   Callback{OrderID: o.ID, GatewayOrderID: intent.GatewayOrderID, GatewayPaymentID: "pay_x"},
			kind: apperr.KindInvalidSignature,
		},
		{
			name: "valid signature for another gateway order",
			cb: Callback{OrderID: o.ID, GatewayOrderID: "order_elsewhere", GatewayPaymentID: "pay_x",
				Signature: Sign(testSecret, "order_elsewhere", "pay_x")},
			kind: apperr.KindInvalidSignature,
		},
		{
			name: "unknown order",
			cb: Callback{OrderID: uuid.New(), GatewayOrderID: intent.GatewayOrderID, GatewayPaymentID: "pay_x",
				Signature: Sign(testSecret, intent.GatewayOrderID, "pay_x")},
			kind: apperr.KindNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Verify(context.Background(), f.customer, tt.cb, "req")
			require.Error(t, err)
			assert.Equal(t, tt.kind, apperr.KindOf(err))
			assert.Equal(t, models.PaymentPending, f.store.Order(o.ID).PaymentStatus)
		})
	}
	assert.Empty(t, f.notifier.Events())
}

func TestReportFailure_ThenRetrySucceeds(t *testing.T) {
	f := newFixture(t)
	o := f.seed(models.MethodRazorpay, models.PaymentPending)
	intent := f.intent(t, o)

	failed, err := f.svc.ReportFailure(context.Background(), f.customer, Callback{
		OrderID: o.ID, GatewayOrderID: intent.GatewayOrderID, GatewayPaymentID: "pay_declined", Reason: "card declined",
	}, "req")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentFailed, failed.PaymentStatus)

	paid, err := f.svc.Verify(context.Background(), f.customer, Callback{
		OrderID: o.ID, GatewayOrderID: intent.GatewayOrderID, GatewayPaymentID: "pay_ok",
		Signature: Sign(testSecret, intent.GatewayOrderID, "pay_ok"),
	}, "req")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, paid.PaymentStatus)

	assert.Equal(t, []models.EventType{models.EventPaymentFailed, models.EventPaymentConfirmed}, f.notifier.Types())

	_, err = f.svc.ReportFailure(context.Background(), f.customer, Callback{
		OrderID: o.ID, GatewayOrderID: intent.GatewayOrderID, GatewayPaymentID: "pay_late",
	}, "req")
	assert.ErrorIs(t, err, apperr.ErrInvalidStateTransition)
}

func TestReportFailure_ForgedSignatureChangesNothing(t *testing.T) {
	f := newFixture(t)
	o := f.seed(models.MethodRazorpay, models.PaymentPending)
	intent := f.intent(t, o)

	_, err := f.svc.ReportFailure(context.Background(), f.customer, Callback{
		OrderID: o.ID, GatewayOrderID: intent.GatewayOrderID, GatewayPaymentID: "pay_x",
		Signature: Sign("attacker", intent.GatewayOrderID, "pay_x"),
	}, "req")
	assert.ErrorIs(t, err, apperr.ErrInvalidSignature)

	_, err = f.svc.ReportFailure(context.Background(), f.customer, Callback{
		OrderID: o.ID, GatewayOrderID: "order_elsewhere", GatewayPaymentID: "pay_x",
	}, "req")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	assert.Equal(t, models.PaymentPending, f.store.Order(o.ID).PaymentStatus)
	assert.Empty(t, f.notifier.Events())

	failed, err := f.svc.ReportFailure(context.Background(), f.customer, Callback{
		OrderID: o.ID, GatewayOrderID: intent.GatewayOrderID, GatewayPaymentID: "pay_x",
		Signature: Sign(testSecret, intent.GatewayOrderID, "pay_x"),
	}, "req")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentFailed, failed.PaymentStatus)
}

func TestRefund(t *testing.T) {
	t.Run("cash order refunds locally", func(t *testing.T) {
		f := newFixture(t)
		o := f.seed(models.MethodCOD, models.PaymentPaid)

		refunded, err := f.svc.Refund(context.Background(), f.admin, o.ID, "cold food", "req")
		require.NoError(t, err)
		assert.Equal(t, models.PaymentRefunded, refunded.PaymentStatus)
		assert.Empty(t, f.gateway.refunds)
		assert.Equal(t, []models.EventType{models.EventPaymentRefunded}, f.notifier.Types())
	})

	t.Run("gateway order refunds upstream first", func(t *testing.T) {
		f := newFixture(t)
		o := f.seed(models.MethodRazorpay, models.PaymentPaid)
		paymentID := "pay_abc"
		o.GatewayPaymentID = &paymentID
		f.store.PutOrder(o)

		_, err := f.svc.Refund(context.Background(), f.admin, o.ID, "", "req")
		require.NoError(t, err)
		assert.Equal(t, []string{"pay_abc"}, f.gateway.refunds)

		history, err := f.store.History(context.Background(), o.ID)
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Contains(t, *history[0].Notes, "rfnd_pay_abc")
	})

	t.Run("gateway failure leaves order paid", func(t *testing.T) {
		f := newFixture(t)
		o := f.seed(models.MethodRazorpay, models.PaymentPaid)
		paymentID := "pay_abc"
		o.GatewayPaymentID = &paymentID
		f.store.PutOrder(o)
		f.gateway.refundErr = errors.New("insufficient balance")

		_, err := f.svc.Refund(context.Background(), f.admin, o.ID, "", "req")
		assert.ErrorIs(t, err, apperr.ErrRefundFailed)
		assert.Equal(t, models.PaymentPaid, f.store.Order(o.ID).PaymentStatus)
		assert.Empty(t, f.notifier.Events())
	})

	t.Run("requires paid", func(t *testing.T) {
		f := newFixture(t)
		o := f.seed(models.MethodCOD, models.PaymentPending)

		_, err := f.svc.Refund(context.Background(), f.admin, o.ID, "", "req")
		assert.ErrorIs(t, err, apperr.ErrInvalidStateTransition)
	})
}

func TestRefund_ConcurrentAdminsRefundOnce(t *testing.T) {
	f := newFixture(t)
	o := f.seed(models.MethodRazorpay, models.PaymentPaid)
	paymentID := "pay_1"
	o.GatewayPaymentID = &paymentID
	f.store.PutOrder(o)

	var (
		wg   sync.WaitGroup
		errs = make([]error, 2)
	)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Refund(context.Background(), f.admin, o.ID, "duplicate charge", "req")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, apperr.ErrInvalidStateTransition)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, []string{"pay_1"}, f.gateway.refunds)
	assert.Equal(t, models.PaymentRefunded, f.store.Order(o.ID).PaymentStatus)
	assert.Equal(t, []models.EventType{models.EventPaymentRefunded}, f.notifier.Types())
}

func TestConfirmCODAndStatus(t *testing.T) {
	f := newFixture(t)
	cod := f.seed(models.MethodCOD, models.PaymentPending)
	online := f.seed(models.MethodRazorpay, models.PaymentPending)
	ctx := context.Background()

	o, err := f.svc.ConfirmCOD(ctx, f.customer, cod.ID, "req")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPending, o.PaymentStatus)

	_, err = f.svc.ConfirmCOD(ctx, f.customer, online.ID, "req")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	info, err := f.svc.Status(ctx, f.customer, cod.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MethodCOD, info.PaymentMethod)
	assert.Equal(t, "802.84", info.Amount.String())

	_, err = f.svc.Status(ctx, f.other, cod.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.svc.Status(ctx, f.admin, cod.ID)
	assert.NoError(t, err)
}
