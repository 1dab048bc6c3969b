package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tealeg/xlsx"

	"cafe-orders/internal/models"
)

const (
	exportPageSize = 100
	exportMaxRows  = 10000
	moneyFormat    = "#,##0.00"
	timeLayout     = "2006-01-02 15:04:05"
)

var exportHeaders = []string{
	"Order Number", "Created At", "Customer", "Phone", "Email", "Delivery Address",
	"Items", "Subtotal", "Delivery Fee", "Tax", "Total",
	"Payment Method", "Payment Status", "Order Status",
	"Estimated Delivery", "Delivered At", "Cancelled By", "Cancellation Reason",
}

// Export builds a workbook of every order matching filter, newest first
func (s *Service) Export(ctx context.Context, filter ListFilter) (*xlsx.File, error) {
	filter.UserID = nil
	filter.Page = 1
	filter.Limit = exportPageSize
	if err := ValidateListFilter(&filter); err != nil {
		return nil, err
	}

	var orders []models.Order
	for len(orders) < exportMaxRows {
		batch, total, err := s.store.ListOrders(ctx, filter)
		if err != nil {
			return nil, err
		}
		orders = append(orders, batch...)
		if len(batch) == 0 || len(orders) >= total {
			break
		}
		filter.Page++
	}

	return OrdersWorkbook(orders)
}

// OrdersWorkbook renders orders as a single-sheet workbook
func OrdersWorkbook(orders []models.Order) (*xlsx.File, error) {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Orders")
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}

	header := sheet.AddRow()
	for _, h := range exportHeaders {
		header.AddCell().SetString(h)
	}

	for _, o := range orders {
		row := sheet.AddRow()
		row.AddCell().SetString(o.Number)
		row.AddCell().SetString(o.CreatedAt.UTC().Format(timeLayout))
		row.AddCell().SetString(o.UserName)
		row.AddCell().SetString(o.UserPhone)
		row.AddCell().SetString(o.UserEmail)
		row.AddCell().SetString(o.DeliveryAddress)
		row.AddCell().SetString(describeLines(o.Lines))
		row.AddCell().SetFloatWithFormat(o.Subtotal.InexactFloat64(), moneyFormat)
		row.AddCell().SetFloatWithFormat(o.DeliveryFee.InexactFloat64(), moneyFormat)
		row.AddCell().SetFloatWithFormat(o.Tax.InexactFloat64(), moneyFormat)
		row.AddCell().SetFloatWithFormat(o.Total.InexactFloat64(), moneyFormat)
		row.AddCell().SetString(string(o.PaymentMethod))
		row.AddCell().SetString(string(o.PaymentStatus))
		row.AddCell().SetString(string(o.Status))
		row.AddCell().SetString(o.EstimatedDeliveryTime.UTC().Format(timeLayout))
		row.AddCell().SetString(formatOptionalTime(o.ActualDeliveryTime))

		cancelledBy := ""
		if o.CancelledBy != nil {
			cancelledBy = string(*o.CancelledBy)
		}
		row.AddCell().SetString(cancelledBy)

		reason := ""
		if o.CancellationReason != nil {
			reason = *o.CancellationReason
		}
		row.AddCell().SetString(reason)
	}

	return file, nil
}

func describeLines(lines []models.OrderLine) string {
	parts := make([]string, len(lines))
	for i, l := range lines {
		parts[i] = fmt.Sprintf("%dx %s", l.Quantity, l.Name)
	}
	return strings.Join(parts, ", ")
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(timeLayout)
}
