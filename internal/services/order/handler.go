package order

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"cafe-orders/internal/apperr"
	"cafe-orders/internal/logger"
	"cafe-orders/internal/models"
	"cafe-orders/internal/server"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Handler handles HTTP requests for orders
type Handler struct {
	service *Service
	logger  *logger.Logger
	timeout time.Duration
}

// NewHandler creates a new order handler
func NewHandler(service *Service, log *logger.Logger, timeout time.Duration) *Handler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Handler{
		service: service,
		logger:  log,
		timeout: timeout,
	}
}

// CancelRequest carries the customer's reason for cancelling
type CancelRequest struct {
	Reason string `json:"cancellationReason" binding:"required,max=500"`
}

// PaymentStatusRequest is an administrator's payment status change
type PaymentStatusRequest struct {
	Status models.PaymentStatus `json:"paymentStatus" binding:"required,payment_status"`
	Reason string               `json:"reason,omitempty" binding:"max=500"`
}

// Register mounts the order routes
func (h *Handler) Register(public, authed *gin.RouterGroup) {
	orders := authed.Group("/orders")
	orders.POST("", h.CreateOrder)
	orders.GET("/my-orders", h.ListMyOrders)
	orders.GET("/my-orders/:id", h.GetMyOrder)
	orders.PUT("/:id/cancel", h.CancelOrder)

	admin := orders.Group("", server.RequireAdmin())
	admin.GET("", h.ListOrders)
	admin.GET("/statistics", h.Statistics)
	admin.GET("/export", h.Export)
	admin.GET("/:id/history", h.History)
	admin.PUT("/:id/status", h.UpdateStatus)
	admin.PUT("/:id/payment-status", h.UpdatePaymentStatus)
}

// CreateOrder handles POST /api/orders
func (h *Handler) CreateOrder(c *gin.Context) {
	requestID := server.RequestID(c)
	user, _ := server.CurrentUser(c)

	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		server.RespondBindError(c, h.logger, "validation_failed", err)
		return
	}

	h.logger.Debug("order_received", "Received order creation request", requestID, map[string]interface{}{
		"user_id":        user.UserID.String(),
		"item_count":     len(req.Items),
		"payment_method": string(req.PaymentMethod),
	})

	ctx, cancel := h.context(c)
	defer cancel()

	o, err := h.service.CreateOrder(ctx, user, &req, requestID)
	if err != nil {
		server.RespondError(c, h.logger, "order_creation_failed", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"order": o})
}

// ListMyOrders handles GET /api/orders/my-orders
func (h *Handler) ListMyOrders(c *gin.Context) {
	user, _ := server.CurrentUser(c)

	filter, err := listFilterFromQuery(c)
	if err != nil {
		server.RespondError(c, h.logger, "list_orders_failed", err)
		return
	}

	ctx, cancel := h.context(c)
	defer cancel()

	page, err := h.service.ListUserOrders(ctx, user, filter)
	if err != nil {
		server.RespondError(c, h.logger, "list_orders_failed", err)
		return
	}
	h.writePage(c, page)
}

// GetMyOrder handles GET /api/orders/my-orders/:id
func (h *Handler) GetMyOrder(c *gin.Context) {
	user, _ := server.CurrentUser(c)

	id, err := server.UUIDParam(c, "id")
	if err != nil {
		server.RespondError(c, h.logger, "get_order_failed", err)
		return
	}

	ctx, cancel := h.context(c)
	defer cancel()

	o, err := h.service.GetUserOrder(ctx, user, id)
	if err != nil {
		server.RespondError(c, h.logger, "get_order_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": o})
}

// CancelOrder handles PUT /api/orders/:id/cancel
func (h *Handler) CancelOrder(c *gin.Context) {
	user, _ := server.CurrentUser(c)

	id, err := server.UUIDParam(c, "id")
	if err != nil {
		server.RespondError(c, h.logger, "cancel_order_failed", err)
		return
	}

	var req CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		server.RespondBindError(c, h.logger, "cancel_order_failed", err)
		return
	}

	ctx, cancel := h.context(c)
	defer cancel()

	o, err := h.service.CancelOrder(ctx, user, id, req.Reason, server.RequestID(c))
	if err != nil {
		server.RespondError(c, h.logger, "cancel_order_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": o})
}

// ListOrders handles GET /api/orders for administrators
func (h *Handler) ListOrders(c *gin.Context) {
	filter, err := listFilterFromQuery(c)
	if err != nil {
		server.RespondError(c, h.logger, "list_orders_failed", err)
		return
	}

	ctx, cancel := h.context(c)
	defer cancel()

	page, err := h.service.AdminListOrders(ctx, filter)
	if err != nil {
		server.RespondError(c, h.logger, "list_orders_failed", err)
		return
	}
	h.writePage(c, page)
}

// Statistics handles GET /api/orders/statistics
func (h *Handler) Statistics(c *gin.Context) {
	from, err := server.TimeQuery(c, "startDate")
	if err != nil {
		server.RespondError(c, h.logger, "order_statistics_failed", err)
		return
	}
	to, err := server.TimeQuery(c, "endDate")
	if err != nil {
		server.RespondError(c, h.logger, "order_statistics_failed", err)
		return
	}

	ctx, cancel := h.context(c)
	defer cancel()

	stats, err := h.service.Statistics(ctx, from, to)
	if err != nil {
		server.RespondError(c, h.logger, "order_statistics_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"statistics": stats})
}

// Export handles GET /api/orders/export and streams an xlsx workbook
func (h *Handler) Export(c *gin.Context) {
	filter, err := listFilterFromQuery(c)
	if err != nil {
		server.RespondError(c, h.logger, "order_export_failed", err)
		return
	}

	ctx, cancel := h.context(c)
	defer cancel()

	file, err := h.service.Export(ctx, filter)
	if err != nil {
		server.RespondError(c, h.logger, "order_export_failed", err)
		return
	}

	name := fmt.Sprintf("orders-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Header("Content-Type", xlsxContentType)
	c.Status(http.StatusOK)
	if err := file.Write(c.Writer); err != nil {
		h.logger.Error("order_export_failed", "Failed to write workbook", server.RequestID(c), err, nil)
	}
}

// History handles GET /api/orders/:id/history
func (h *Handler) History(c *gin.Context) {
	id, err := server.UUIDParam(c, "id")
	if err != nil {
		server.RespondError(c, h.logger, "order_history_failed", err)
		return
	}

	ctx, cancel := h.context(c)
	defer cancel()

	history, err := h.service.History(ctx, id)
	if err != nil {
		server.RespondError(c, h.logger, "order_history_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": history})
}

// UpdateStatus handles PUT /api/orders/:id/status
func (h *Handler) UpdateStatus(c *gin.Context) {
	admin, _ := server.CurrentUser(c)

	id, err := server.UUIDParam(c, "id")
	if err != nil {
		server.RespondError(c, h.logger, "order_status_update_failed", err)
		return
	}

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		server.RespondBindError(c, h.logger, "order_status_update_failed", err)
		return
	}

	ctx, cancel := h.context(c)
	defer cancel()

	o, err := h.service.AdminUpdateStatus(ctx, admin, id, req, server.RequestID(c))
	if err != nil {
		server.RespondError(c, h.logger, "order_status_update_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": o})
}

// UpdatePaymentStatus handles PUT /api/orders/:id/payment-status
func (h *Handler) UpdatePaymentStatus(c *gin.Context) {
	admin, _ := server.CurrentUser(c)

	id, err := server.UUIDParam(c, "id")
	if err != nil {
		server.RespondError(c, h.logger, "payment_status_update_failed", err)
		return
	}

	var req PaymentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		server.RespondBindError(c, h.logger, "payment_status_update_failed", err)
		return
	}

	ctx, cancel := h.context(c)
	defer cancel()

	o, err := h.service.AdminUpdatePaymentStatus(ctx, admin, id, req.Status, req.Reason, server.RequestID(c))
	if err != nil {
		server.RespondError(c, h.logger, "payment_status_update_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": o})
}

func (h *Handler) context(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), h.timeout)
}

func (h *Handler) writePage(c *gin.Context, page *Page) {
	orders := page.Orders
	if orders == nil {
		orders = []models.Order{}
	}
	c.JSON(http.StatusOK, gin.H{
		"orders":     orders,
		"pagination": server.NewPagination(page.Page, page.Limit, page.Total),
	})
}

func listFilterFromQuery(c *gin.Context) (ListFilter, error) {
	var (
		filter ListFilter
		err    error
	)

	if filter.Page, err = server.IntQuery(c, "page"); err != nil {
		return filter, err
	}
	if filter.Limit, err = server.IntQuery(c, "limit"); err != nil {
		return filter, err
	}
	if raw := c.Query("status"); raw != "" {
		status := models.OrderStatus(raw)
		if !status.Valid() {
			return filter, apperr.Validation("status", "unknown order status")
		}
		filter.Status = &status
	}
	if raw := c.Query("paymentStatus"); raw != "" {
		status := models.PaymentStatus(raw)
		if !status.Valid() {
			return filter, apperr.Validation("paymentStatus", "unknown payment status")
		}
		filter.PaymentStatus = &status
	}
	filter.Search = c.Query("search")
	if filter.From, err = server.TimeQuery(c, "startDate"); err != nil {
		return filter, err
	}
	if filter.To, err = server.TimeQuery(c, "endDate"); err != nil {
		return filter, err
	}
	return filter, nil
}
