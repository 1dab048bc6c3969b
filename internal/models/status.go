package models

import (
	"cafe-orders/internal/apperr"
)

// Actor identifies who drives a status change
type Actor string

const (
	ActorUser    Actor = "user"
	ActorAdmin   Actor = "admin"
	ActorGateway Actor = "gateway"
)

// OrderStatus represents the fulfillment status of an order
type OrderStatus string

const (
	StatusPending        OrderStatus = "pending"
	StatusConfirmed      OrderStatus = "confirmed"
	StatusPreparing      OrderStatus = "preparing"
	StatusReady          OrderStatus = "ready"
	StatusOutForDelivery OrderStatus = "out_for_delivery"
	StatusDelivered      OrderStatus = "delivered"
	StatusCancelled      OrderStatus = "cancelled"
)

// AllOrderStatuses lists every order status in fulfillment order, cancelled last
var AllOrderStatuses = []OrderStatus{
	StatusPending,
	StatusConfirmed,
	StatusPreparing,
	StatusReady,
	StatusOutForDelivery,
	StatusDelivered,
	StatusCancelled,
}

// fulfillmentRank is the position on the forward path; cancelled is off-path
var fulfillmentRank = map[OrderStatus]int{
	StatusPending:        0,
	StatusConfirmed:      1,
	StatusPreparing:      2,
	StatusReady:          3,
	StatusOutForDelivery: 4,
	StatusDelivered:      5,
}

func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusPreparing, StatusReady,
		StatusOutForDelivery, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

func (s OrderStatus) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// UserCancellable reports whether the customer may still cancel
func (s OrderStatus) UserCancellable() bool {
	return s == StatusPending || s == StatusConfirmed
}

// Reaches reports whether moving from s to next passes through or lands on target
// along the forward path.
func (s OrderStatus) Reaches(next, target OrderStatus) bool {
	from, okFrom := fulfillmentRank[s]
	to, okTo := fulfillmentRank[next]
	at, okAt := fulfillmentRank[target]
	if !okFrom || !okTo || !okAt {
		return next == target
	}
	return from < at && to >= at
}

// Next validates moving from s to next on behalf of by.
//
// Users may only cancel, and only while pending or confirmed. Admins may jump
// forward any number of steps and may cancel any order that has not reached a
// terminal state; they can never move an order backwards or out of
// delivered/cancelled. No other actor changes fulfillment status.
func (s OrderStatus) Next(next OrderStatus, by Actor) error {
	if !next.Valid() {
		return apperr.Validation("orderStatus", "unknown order status "+string(next))
	}
	if s.IsTerminal() {
		return apperr.InvalidTransition("order is already %s", s)
	}
	if s == next {
		return apperr.InvalidTransition("order is already %s", s)
	}

	switch by {
	case ActorUser:
		if next != StatusCancelled {
			return apperr.InvalidTransition("customers may only cancel orders")
		}
		if !s.UserCancellable() {
			return apperr.InvalidTransition("order cannot be cancelled at this stage (%s)", s)
		}
		return nil
	case ActorAdmin:
		if next == StatusCancelled {
			return nil
		}
		if fulfillmentRank[next] <= fulfillmentRank[s] {
			return apperr.InvalidTransition("cannot move order from %s back to %s", s, next)
		}
		return nil
	default:
		return apperr.InvalidTransition("%s may not change order status", by)
	}
}

// PaymentStatus represents the settlement status of an order
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

var AllPaymentStatuses = []PaymentStatus{PaymentPending, PaymentPaid, PaymentFailed, PaymentRefunded}

// paymentTransitions maps from → to → actors allowed to drive that edge
var paymentTransitions = map[PaymentStatus]map[PaymentStatus][]Actor{
	PaymentPending: {
		PaymentPaid:   {ActorAdmin, ActorGateway},
		PaymentFailed: {ActorGateway},
	},
	PaymentPaid: {
		PaymentRefunded: {ActorAdmin},
		PaymentFailed:   {ActorGateway},
	},
	PaymentFailed: {
		PaymentPaid: {ActorGateway},
	},
}

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentPaid, PaymentFailed, PaymentRefunded:
		return true
	}
	return false
}

// Next validates moving from s to next on behalf of by
func (s PaymentStatus) Next(next PaymentStatus, by Actor) error {
	if !next.Valid() {
		return apperr.Validation("paymentStatus", "unknown payment status "+string(next))
	}
	actors, ok := paymentTransitions[s][next]
	if !ok {
		return apperr.InvalidTransition("cannot move payment from %s to %s", s, next)
	}
	for _, a := range actors {
		if a == by {
			return nil
		}
	}
	return apperr.InvalidTransition("payment %s → %s cannot be applied by %s", s, next, by)
}
