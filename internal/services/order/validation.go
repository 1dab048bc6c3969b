package order

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"cafe-orders/internal/apperr"
)

const (
	maxCartLines       = 20
	maxLineQuantity    = 50
	minAddressLength   = 10
	maxAddressLength   = 500
	maxInstructionsLen = 500
	maxReasonLength    = 500
)

// ValidateCreateOrder checks the request shape before any pricing happens
func ValidateCreateOrder(req *CreateOrderRequest) error {
	if err := validateDeliveryAddress(req.DeliveryAddress); err != nil {
		return err
	}

	if !req.PaymentMethod.Valid() {
		return apperr.Validation("paymentMethod", "payment method must be one of: cod, razorpay, card, upi")
	}

	if err := validateOptionalText("deliveryInstructions", req.DeliveryInstructions); err != nil {
		return err
	}
	if err := validateOptionalText("specialInstructions", req.SpecialInstructions); err != nil {
		return err
	}

	return validateItems(req.Items)
}

func validateDeliveryAddress(address string) error {
	address = strings.TrimSpace(address)
	if address == "" {
		return apperr.Validation("deliveryAddress", "delivery address is required")
	}
	if utf8.RuneCountInString(address) < minAddressLength {
		return apperr.Validation("deliveryAddress",
			fmt.Sprintf("delivery address must be at least %d characters long", minAddressLength))
	}
	if utf8.RuneCountInString(address) > maxAddressLength {
		return apperr.Validation("deliveryAddress",
			fmt.Sprintf("delivery address must not exceed %d characters", maxAddressLength))
	}
	return nil
}

func validateOptionalText(field string, text *string) error {
	if text != nil && utf8.RuneCountInString(*text) > maxInstructionsLen {
		return apperr.Validation(field, fmt.Sprintf("must not exceed %d characters", maxInstructionsLen))
	}
	return nil
}

func validateItems(items []CartLine) error {
	if len(items) == 0 {
		return apperr.Validation("items", "order must contain at least one item")
	}
	if len(items) > maxCartLines {
		return apperr.Validation("items", fmt.Sprintf("a maximum of %d items is allowed", maxCartLines))
	}

	for i, item := range items {
		if err := validateItem(item, i); err != nil {
			return err
		}
	}
	return nil
}

func validateItem(item CartLine, index int) error {
	if item.FoodItemID == uuid.Nil {
		return apperr.Validation(fmt.Sprintf("items[%d].foodItemId", index), "food item id is required")
	}
	if item.Quantity < 1 {
		return apperr.Validation(fmt.Sprintf("items[%d].quantity", index), "item quantity must be at least 1")
	}
	if item.Quantity > maxLineQuantity {
		return apperr.Validation(fmt.Sprintf("items[%d].quantity", index),
			fmt.Sprintf("item quantity must be less than or equal to %d", maxLineQuantity))
	}
	return validateOptionalText(fmt.Sprintf("items[%d].specialInstructions", index), item.SpecialInstructions)
}

// ValidateReason checks a cancellation reason
func ValidateReason(reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return apperr.Validation("reason", "a cancellation reason is required")
	}
	if utf8.RuneCountInString(reason) > maxReasonLength {
		return apperr.Validation("reason", fmt.Sprintf("reason must not exceed %d characters", maxReasonLength))
	}
	return nil
}

// ValidateListFilter normalises paging and rejects unknown enum filters
func ValidateListFilter(f *ListFilter) error {
	if f.Status != nil && !f.Status.Valid() {
		return apperr.Validation("status", "unknown order status "+string(*f.Status))
	}
	if f.PaymentStatus != nil && !f.PaymentStatus.Valid() {
		return apperr.Validation("paymentStatus", "unknown payment status "+string(*f.PaymentStatus))
	}
	if f.From != nil && f.To != nil && !f.From.Before(*f.To) {
		return apperr.Validation("endDate", "end date must be after start date")
	}
	f.Page, f.Limit = normalisePage(f.Page, f.Limit)
	return nil
}

func normalisePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}
