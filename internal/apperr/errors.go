// Package apperr defines the structured failures the core surfaces to callers.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so transports can map it without string matching
type Kind string

const (
	KindNotFound               Kind = "not_found"
	KindItemUnavailable        Kind = "item_unavailable"
	KindInvalidStateTransition Kind = "invalid_state_transition"
	KindOrderAlreadyPaid       Kind = "order_already_paid"
	KindInvalidSignature       Kind = "invalid_signature"
	KindRefundFailed           Kind = "refund_failed"
	KindDuplicateReview        Kind = "duplicate_review"
	KindValidation             Kind = "validation_error"
	KindForbidden              Kind = "forbidden"
	KindInternal               Kind = "internal"
)

// Error is a classified failure. Field is set for validation errors.
type Error struct {
	Kind    Kind
	Field   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so the sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrNotFound               = &Error{Kind: KindNotFound, Message: "not found"}
	ErrItemUnavailable        = &Error{Kind: KindItemUnavailable, Message: "item unavailable"}
	ErrInvalidStateTransition = &Error{Kind: KindInvalidStateTransition, Message: "invalid state transition"}
	ErrOrderAlreadyPaid       = &Error{Kind: KindOrderAlreadyPaid, Message: "order already paid"}
	ErrInvalidSignature       = &Error{Kind: KindInvalidSignature, Message: "invalid payment signature"}
	ErrRefundFailed           = &Error{Kind: KindRefundFailed, Message: "refund failed"}
	ErrDuplicateReview        = &Error{Kind: KindDuplicateReview, Message: "duplicate review"}
	ErrValidation             = &Error{Kind: KindValidation, Message: "validation failed"}
	ErrForbidden              = &Error{Kind: KindForbidden, Message: "forbidden"}
)

func NotFound(format string, args ...interface{}) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func ItemUnavailable(format string, args ...interface{}) error {
	return &Error{Kind: KindItemUnavailable, Message: fmt.Sprintf(format, args...)}
}

func InvalidTransition(format string, args ...interface{}) error {
	return &Error{Kind: KindInvalidStateTransition, Message: fmt.Sprintf(format, args...)}
}

func OrderAlreadyPaid(orderNumber string) error {
	return &Error{Kind: KindOrderAlreadyPaid, Message: fmt.Sprintf("order %s is already paid", orderNumber)}
}

func InvalidSignature(message string) error {
	return &Error{Kind: KindInvalidSignature, Message: message}
}

func RefundFailed(err error) error {
	return &Error{Kind: KindRefundFailed, Message: "gateway refund failed", Err: err}
}

func DuplicateReview() error {
	return &Error{Kind: KindDuplicateReview, Message: "you have already reviewed this food item"}
}

func Validation(field, message string) error {
	return &Error{Kind: KindValidation, Field: field, Message: message}
}

func Forbidden(message string) error {
	return &Error{Kind: KindForbidden, Message: message}
}

// KindOf reports the kind of err, KindInternal for anything unclassified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
