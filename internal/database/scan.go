package database

import (
	"cafe-orders/internal/models"
)

// Scanner is satisfied by pgx.Row and pgx.Rows
type Scanner interface {
	Scan(dest ...interface{}) error
}

// ScanFoodItem scans FoodItemColumns, followed by any extra destinations
func ScanFoodItem(row Scanner, extra ...interface{}) (models.CatalogItem, error) {
	var item models.CatalogItem
	dest := []interface{}{
		&item.ID, &item.Name, &item.Description, &item.Price, &item.Category, &item.ImageURL,
		&item.IsAvailable, &item.StockQuantity, &item.PreparationTime, &item.IsPopular,
		&item.IsFeatured, &item.CreatedAt, &item.UpdatedAt,
	}
	err := row.Scan(append(dest, extra...)...)
	return item, err
}

// ScanOrder scans OrderColumns, followed by any extra destinations. Lines are not loaded.
func ScanOrder(row Scanner, extra ...interface{}) (models.Order, error) {
	var o models.Order
	dest := []interface{}{
		&o.ID, &o.Number, &o.UserID, &o.UserName, &o.UserPhone, &o.UserEmail, &o.DeliveryAddress,
		&o.DeliveryInstructions, &o.SpecialInstructions, &o.Subtotal, &o.DeliveryFee, &o.Tax, &o.Total,
		&o.PaymentMethod, &o.PaymentStatus, &o.Status, &o.GatewayOrderID, &o.GatewayPaymentID,
		&o.EstimatedDeliveryTime, &o.ActualDeliveryTime, &o.CancellationReason, &o.CancelledBy,
		&o.CancelledAt, &o.Notes, &o.CreatedAt, &o.UpdatedAt,
	}
	err := row.Scan(append(dest, extra...)...)
	return o, err
}

// ScanOrderLine scans OrderLineColumns
func ScanOrderLine(row Scanner) (models.OrderLine, error) {
	var l models.OrderLine
	err := row.Scan(
		&l.ID, &l.OrderID, &l.FoodItemID, &l.Name, &l.Quantity, &l.UnitPrice, &l.LineTotal,
		&l.SpecialInstructions, &l.Prepared, &l.PreparedAt, &l.PreparedBy,
	)
	return l, err
}

// ScanReview scans ReviewColumns, followed by any extra destinations
func ScanReview(row Scanner, extra ...interface{}) (models.Review, error) {
	var r models.Review
	dest := []interface{}{
		&r.ID, &r.UserID, &r.UserName, &r.FoodItemID, &r.OrderID, &r.Rating, &r.Comment,
		&r.IsVerifiedPurchase, &r.AdminResponse, &r.HelpfulCount, &r.CreatedAt, &r.UpdatedAt,
	}
	err := row.Scan(append(dest, extra...)...)
	return r, err
}

// NullableString converts an optional enum-like value into a query argument
func NullableString[T ~string](v *T) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}
