package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"cafe-orders/internal/apperr"
	"cafe-orders/internal/config"
	"cafe-orders/internal/logger"
	"cafe-orders/internal/models"
	"cafe-orders/internal/services/order"
)

// gatewayActor is the changed_by label for gateway driven changes
const gatewayActor = "gateway:razorpay"

var minorUnits = decimal.NewFromInt(100)

// Method describes a payment option offered at checkout
type Method struct {
	ID          models.PaymentMethod `json:"id"`
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Enabled     bool                 `json:"enabled"`
}

// Intent is what a client needs to open the gateway checkout
type Intent struct {
	OrderID        uuid.UUID `json:"orderId"`
	OrderNumber    string    `json:"orderNumber"`
	GatewayOrderID string    `json:"razorpayOrderId"`
	Amount         int64     `json:"amount"`
	Currency       string    `json:"currency"`
	KeyID          string    `json:"keyId"`
}

// Callback is the gateway's checkout result as relayed by the client
type Callback struct {
	OrderID          uuid.UUID `json:"orderId" binding:"required"`
	GatewayOrderID   string    `json:"razorpay_order_id" binding:"required"`
	GatewayPaymentID string    `json:"razorpay_payment_id" binding:"required"`
	Signature        string    `json:"razorpay_signature"`
	Reason           string    `json:"reason,omitempty" binding:"max=500"`
}

// Info is the payment view of an order
type Info struct {
	OrderID          uuid.UUID            `json:"orderId"`
	OrderNumber      string               `json:"orderNumber"`
	PaymentMethod    models.PaymentMethod `json:"paymentMethod"`
	PaymentStatus    models.PaymentStatus `json:"paymentStatus"`
	Amount           decimal.Decimal      `json:"amount"`
	GatewayOrderID   *string              `json:"razorpayOrderId,omitempty"`
	GatewayPaymentID *string              `json:"razorpayPaymentId,omitempty"`
}

// Service reconciles order payment status with the gateway. It shares the
// order store so payment changes take the same row locks as status changes.
type Service struct {
	store    order.Store
	gateway  Gateway
	notifier order.Notifier
	logger   *logger.Logger
	keyID    string
	secret   string
	currency string
	now      func() time.Time
}

func NewService(store order.Store, gateway Gateway, notifier order.Notifier, cfg config.PaymentConfig, log *logger.Logger) *Service {
	currency := cfg.Currency
	if currency == "" {
		currency = "INR"
	}
	return &Service{
		store:    store,
		gateway:  gateway,
		notifier: notifier,
		logger:   log,
		keyID:    cfg.KeyID,
		secret:   cfg.KeySecret,
		currency: currency,
		now:      time.Now,
	}
}

func (s *Service) gatewayEnabled() bool {
	return s.gateway != nil && s.keyID != "" && s.secret != ""
}

// Methods lists the checkout options. The gateway is offered only when configured.
func (s *Service) Methods() []Method {
	return []Method{
		{ID: models.MethodCOD, Name: "Cash on Delivery", Description: "Pay with cash when your order arrives", Enabled: true},
		{ID: models.MethodRazorpay, Name: "Razorpay", Description: "Pay online with cards, UPI, wallets or netbanking", Enabled: s.gatewayEnabled()},
		{ID: models.MethodCard, Name: "Card", Description: "Pay with a credit or debit card", Enabled: true},
		{ID: models.MethodUPI, Name: "UPI", Description: "Pay with any UPI app", Enabled: true},
	}
}

// ToMinorUnits converts a rupee amount to paise, rounding half up
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(minorUnits).Round(0).IntPart()
}

// CreateIntent opens a gateway checkout for the caller's order. An order
// keeps its first gateway order until it is paid, so every checkout the
// customer opened settles against the same id.
func (s *Service) CreateIntent(ctx context.Context, user models.Identity, orderID uuid.UUID, requestID string) (*Intent, error) {
	if !s.gatewayEnabled() {
		return nil, apperr.Validation("paymentMethod", "online payments are not available")
	}

	o, err := s.ownedOrder(ctx, user, orderID)
	if err != nil {
		return nil, err
	}
	if err := checkPayable(o); err != nil {
		return nil, err
	}

	amount := ToMinorUnits(o.Total)
	if o.GatewayOrderID != nil {
		s.logger.Debug("payment_intent_reused", fmt.Sprintf("Reusing gateway order %s for %s", *o.GatewayOrderID, o.Number), requestID, map[string]interface{}{
			"order_id": o.ID.String(),
		})
		return s.intentFor(o, *o.GatewayOrderID, amount), nil
	}

	gwOrder, err := s.gateway.CreateOrder(ctx, amount, s.currency, o.Number, map[string]string{
		"order_id":     o.ID.String(),
		"order_number": o.Number,
	})
	if err != nil {
		s.logger.Error("payment_intent_failed", "Gateway order creation failed", requestID, err, map[string]interface{}{
			"order_id": o.ID.String(),
		})
		return nil, fmt.Errorf("failed to create gateway order: %w", err)
	}

	gatewayOrderID := gwOrder.ID
	err = s.store.InTx(ctx, func(tx order.Tx) error {
		locked, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if err := checkPayable(locked); err != nil {
			return err
		}
		if locked.GatewayOrderID != nil {
			// a concurrent checkout stored its gateway order first
			gatewayOrderID = *locked.GatewayOrderID
			return nil
		}
		locked.GatewayOrderID = &gwOrder.ID
		locked.UpdatedAt = s.now().UTC()
		return tx.SavePayment(ctx, locked)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("payment_intent_created", fmt.Sprintf("Gateway order %s opened for %s", gatewayOrderID, o.Number), requestID, map[string]interface{}{
		"order_id":         o.ID.String(),
		"gateway_order_id": gatewayOrderID,
		"amount_minor":     amount,
	})

	return s.intentFor(o, gatewayOrderID, amount), nil
}

func (s *Service) intentFor(o *models.Order, gatewayOrderID string, amount int64) *Intent {
	return &Intent{
		OrderID:        o.ID,
		OrderNumber:    o.Number,
		GatewayOrderID: gatewayOrderID,
		Amount:         amount,
		Currency:       s.currency,
		KeyID:          s.keyID,
	}
}

// Verify checks the gateway signature and marks the order paid. Repeating a
// verification for the payment already recorded is a no-op.
func (s *Service) Verify(ctx context.Context, user models.Identity, cb Callback, requestID string) (*models.Order, error) {
	if !VerifySignature(s.secret, cb.GatewayOrderID, cb.GatewayPaymentID, cb.Signature) {
		s.logger.Warn("payment_signature_rejected", "Payment signature did not match", requestID, map[string]interface{}{
			"order_id":         cb.OrderID.String(),
			"gateway_order_id": cb.GatewayOrderID,
		})
		return nil, apperr.InvalidSignature("payment signature verification failed")
	}

	var (
		updated *models.Order
		prev    models.PaymentStatus
		changed bool
	)
	err := s.store.InTx(ctx, func(tx order.Tx) error {
		o, err := tx.LockOrder(ctx, cb.OrderID)
		if err != nil {
			return err
		}
		if err := checkOwner(user, o); err != nil {
			return err
		}
		if o.GatewayOrderID == nil || *o.GatewayOrderID != cb.GatewayOrderID {
			return apperr.InvalidSignature("payment does not belong to this order")
		}

		if o.PaymentStatus == models.PaymentPaid {
			if o.GatewayPaymentID != nil && *o.GatewayPaymentID == cb.GatewayPaymentID {
				updated = o
				return nil
			}
			return apperr.OrderAlreadyPaid(o.Number)
		}
		if err := o.PaymentStatus.Next(models.PaymentPaid, models.ActorGateway); err != nil {
			return err
		}

		now := s.now().UTC()
		prev = o.PaymentStatus
		paid := models.PaymentPaid
		o.PaymentStatus = paid
		o.GatewayPaymentID = &cb.GatewayPaymentID
		o.UpdatedAt = now
		if err := tx.SavePayment(ctx, o); err != nil {
			return err
		}

		notes := "Payment " + cb.GatewayPaymentID + " verified"
		updated, changed = o, true
		return tx.AppendHistory(ctx, models.StatusHistoryEntry{
			OrderID:       o.ID,
			PaymentStatus: &paid,
			ChangedBy:     gatewayActor,
			ChangedAt:     now,
			Notes:         &notes,
		})
	})
	if err != nil {
		return nil, err
	}
	if !changed {
		return updated, nil
	}

	s.logger.Info("payment_verified", fmt.Sprintf("Order %s paid", updated.Number), requestID, map[string]interface{}{
		"order_id":           updated.ID.String(),
		"gateway_payment_id": cb.GatewayPaymentID,
	})
	s.notify(models.NewOrderEvent(models.EventPaymentConfirmed, updated, string(prev), string(models.PaymentPaid), gatewayActor), requestID)

	return updated, nil
}

// ReportFailure records a failed gateway attempt. Only pending payments move
// to failed. Checkout failure events carry no signature, so an unsigned report
// is accepted for the order's own gateway order; a signature, when sent, must
// verify. A failed payment can still be verified as paid later.
func (s *Service) ReportFailure(ctx context.Context, user models.Identity, cb Callback, requestID string) (*models.Order, error) {
	if cb.Signature != "" && !VerifySignature(s.secret, cb.GatewayOrderID, cb.GatewayPaymentID, cb.Signature) {
		s.logger.Warn("payment_signature_rejected", "Failure report signature did not match", requestID, map[string]interface{}{
			"order_id":         cb.OrderID.String(),
			"gateway_order_id": cb.GatewayOrderID,
		})
		return nil, apperr.InvalidSignature("payment signature verification failed")
	}

	var (
		updated *models.Order
		changed bool
	)
	err := s.store.InTx(ctx, func(tx order.Tx) error {
		o, err := tx.LockOrder(ctx, cb.OrderID)
		if err != nil {
			return err
		}
		if err := checkOwner(user, o); err != nil {
			return err
		}
		if o.GatewayOrderID == nil || *o.GatewayOrderID != cb.GatewayOrderID {
			return apperr.Validation("razorpay_order_id", "does not match this order")
		}
		if o.PaymentStatus == models.PaymentFailed {
			updated = o
			return nil
		}
		if o.PaymentStatus != models.PaymentPending {
			return apperr.InvalidTransition("cannot record a failed attempt on a %s payment", o.PaymentStatus)
		}

		now := s.now().UTC()
		failed := models.PaymentFailed
		o.PaymentStatus = failed
		o.GatewayPaymentID = &cb.GatewayPaymentID
		o.UpdatedAt = now
		if err := tx.SavePayment(ctx, o); err != nil {
			return err
		}

		var notes *string
		if cb.Reason != "" {
			notes = &cb.Reason
		}
		updated, changed = o, true
		return tx.AppendHistory(ctx, models.StatusHistoryEntry{
			OrderID:       o.ID,
			PaymentStatus: &failed,
			ChangedBy:     gatewayActor,
			ChangedAt:     now,
			Notes:         notes,
		})
	})
	if err != nil {
		return nil, err
	}
	if !changed {
		return updated, nil
	}

	s.logger.Warn("payment_failed", fmt.Sprintf("Payment failed for order %s", updated.Number), requestID, map[string]interface{}{
		"order_id":           updated.ID.String(),
		"gateway_payment_id": cb.GatewayPaymentID,
		"reason":             cb.Reason,
	})
	event := models.NewOrderEvent(models.EventPaymentFailed, updated, string(models.PaymentPending), string(models.PaymentFailed), gatewayActor)
	event.Reason = cb.Reason
	s.notify(event, requestID)

	return updated, nil
}

// Refund refunds a paid order. The order row stays locked while the gateway
// refund runs, so concurrent refunds of one order reach the gateway once. If
// the gateway refuses nothing changes locally.
func (s *Service) Refund(ctx context.Context, admin models.Identity, orderID uuid.UUID, reason, requestID string) (*models.Order, error) {
	var (
		updated  *models.Order
		refundID string
	)
	err := s.store.InTx(ctx, func(tx order.Tx) error {
		locked, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if err := locked.PaymentStatus.Next(models.PaymentRefunded, models.ActorAdmin); err != nil {
			return err
		}

		if locked.PaymentMethod.IsGateway() && locked.GatewayPaymentID != nil {
			id, err := s.refundUpstream(ctx, locked, reason, requestID)
			if err != nil {
				return err
			}
			refundID = id
		}

		now := s.now().UTC()
		refunded := models.PaymentRefunded
		locked.PaymentStatus = refunded
		locked.UpdatedAt = now
		if err := tx.SavePayment(ctx, locked); err != nil {
			return err
		}

		notes := "Refunded"
		if reason != "" {
			notes += ": " + reason
		}
		if refundID != "" {
			notes += " (" + refundID + ")"
		}
		updated = locked
		return tx.AppendHistory(ctx, models.StatusHistoryEntry{
			OrderID:       locked.ID,
			PaymentStatus: &refunded,
			ChangedBy:     admin.Label(),
			ChangedAt:     now,
			Notes:         &notes,
		})
	})
	if err != nil {
		if refundID != "" {
			s.logger.Error("refund_unrecorded", "Gateway refund succeeded but the order was not updated", requestID, err, map[string]interface{}{
				"order_id":  orderID.String(),
				"refund_id": refundID,
			})
		}
		return nil, err
	}

	s.logger.Info("payment_refunded", fmt.Sprintf("Order %s refunded", updated.Number), requestID, map[string]interface{}{
		"order_id":  updated.ID.String(),
		"refund_id": refundID,
	})
	event := models.NewOrderEvent(models.EventPaymentRefunded, updated, string(models.PaymentPaid), string(models.PaymentRefunded), admin.Label())
	event.Reason = reason
	s.notify(event, requestID)

	return updated, nil
}

func (s *Service) refundUpstream(ctx context.Context, o *models.Order, reason, requestID string) (string, error) {
	if s.gateway == nil {
		return "", apperr.RefundFailed(fmt.Errorf("gateway is not configured"))
	}
	refund, err := s.gateway.Refund(ctx, *o.GatewayPaymentID, ToMinorUnits(o.Total), map[string]string{
		"order_number": o.Number,
		"reason":       reason,
	})
	if err != nil {
		s.logger.Error("refund_failed", "Gateway refund failed", requestID, err, map[string]interface{}{
			"order_id":           o.ID.String(),
			"gateway_payment_id": *o.GatewayPaymentID,
		})
		return "", apperr.RefundFailed(err)
	}
	return refund.ID, nil
}

// ConfirmCOD acknowledges a cash-on-delivery order. Payment stays pending until delivery.
func (s *Service) ConfirmCOD(ctx context.Context, user models.Identity, orderID uuid.UUID, requestID string) (*models.Order, error) {
	o, err := s.ownedOrder(ctx, user, orderID)
	if err != nil {
		return nil, err
	}
	if o.PaymentMethod != models.MethodCOD {
		return nil, apperr.Validation("paymentMethod", "order is not cash on delivery")
	}
	if o.Status == models.StatusCancelled {
		return nil, apperr.InvalidTransition("order %s is cancelled", o.Number)
	}

	s.logger.Info("cod_confirmed", fmt.Sprintf("Cash on delivery confirmed for %s", o.Number), requestID, map[string]interface{}{
		"order_id": o.ID.String(),
	})
	return o, nil
}

// Status returns the payment view of an order visible to user
func (s *Service) Status(ctx context.Context, user models.Identity, orderID uuid.UUID) (*Info, error) {
	o, err := s.ownedOrder(ctx, user, orderID)
	if err != nil {
		return nil, err
	}
	return &Info{
		OrderID:          o.ID,
		OrderNumber:      o.Number,
		PaymentMethod:    o.PaymentMethod,
		PaymentStatus:    o.PaymentStatus,
		Amount:           o.Total,
		GatewayOrderID:   o.GatewayOrderID,
		GatewayPaymentID: o.GatewayPaymentID,
	}, nil
}

func (s *Service) ownedOrder(ctx context.Context, user models.Identity, id uuid.UUID) (*models.Order, error) {
	o, err := s.store.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkOwner(user, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *Service) notify(event models.OrderEvent, requestID string) {
	if s.notifier == nil {
		return
	}
	event.RequestID = requestID
	s.notifier.Notify(event)
}

// checkOwner hides other customers' orders behind NotFound
func checkOwner(user models.Identity, o *models.Order) error {
	if user.IsAdmin || o.UserID == user.UserID {
		return nil
	}
	return apperr.NotFound("order %s not found", o.ID)
}

func checkPayable(o *models.Order) error {
	switch {
	case o.PaymentStatus == models.PaymentPaid:
		return apperr.OrderAlreadyPaid(o.Number)
	case o.PaymentStatus == models.PaymentRefunded:
		return apperr.InvalidTransition("order %s has been refunded", o.Number)
	case o.Status == models.StatusCancelled:
		return apperr.InvalidTransition("order %s is cancelled", o.Number)
	case o.PaymentMethod != models.MethodRazorpay:
		return apperr.Validation("paymentMethod", "order is not paid online")
	}
	return nil
}
