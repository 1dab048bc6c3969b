package payment

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"cafe-orders/internal/logger"
	"cafe-orders/internal/server"
)

// Handler serves the payment endpoints
type Handler struct {
	service *Service
	logger  *logger.Logger
}

func NewHandler(service *Service, log *logger.Logger) *Handler {
	return &Handler{service: service, logger: log}
}

type orderRef struct {
	OrderID uuid.UUID `json:"orderId" binding:"required"`
}

type refundRequest struct {
	OrderID uuid.UUID `json:"orderId" binding:"required"`
	Reason  string    `json:"reason" binding:"max=500"`
}

// Register mounts the payment routes
func (h *Handler) Register(public, authed *gin.RouterGroup) {
	public.GET("/payments/methods", h.Methods)

	payments := authed.Group("/payments")
	payments.POST("/razorpay/create-order", h.CreateIntent)
	payments.POST("/razorpay/verify", h.Verify)
	payments.POST("/razorpay/failure", h.ReportFailure)
	payments.POST("/cod/confirm", h.ConfirmCOD)
	payments.GET("/status/:orderId", h.Status)
	payments.POST("/refund", server.RequireAdmin(), h.Refund)
}

// Methods handles GET /api/payments/methods
func (h *Handler) Methods(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"methods": h.service.Methods()})
}

// CreateIntent handles POST /api/payments/razorpay/create-order
func (h *Handler) CreateIntent(c *gin.Context) {
	user, _ := server.CurrentUser(c)

	var req orderRef
	if err := c.ShouldBindJSON(&req); err != nil {
		server.RespondBindError(c, h.logger, "payment_intent_failed", err)
		return
	}

	intent, err := h.service.CreateIntent(c.Request.Context(), user, req.OrderID, server.RequestID(c))
	if err != nil {
		server.RespondError(c, h.logger, "payment_intent_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payment": intent})
}

// Verify handles POST /api/payments/razorpay/verify
func (h *Handler) Verify(c *gin.Context) {
	user, _ := server.CurrentUser(c)

	var cb Callback
	if err := c.ShouldBindJSON(&cb); err != nil {
		server.RespondBindError(c, h.logger, "payment_verify_failed", err)
		return
	}

	o, err := h.service.Verify(c.Request.Context(), user, cb, server.RequestID(c))
	if err != nil {
		server.RespondError(c, h.logger, "payment_verify_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": o})
}

// ReportFailure handles POST /api/payments/razorpay/failure
func (h *Handler) ReportFailure(c *gin.Context) {
	user, _ := server.CurrentUser(c)

	var cb Callback
	if err := c.ShouldBindJSON(&cb); err != nil {
		server.RespondBindError(c, h.logger, "payment_failure_report_failed", err)
		return
	}

	o, err := h.service.ReportFailure(c.Request.Context(), user, cb, server.RequestID(c))
	if err != nil {
		server.RespondError(c, h.logger, "payment_failure_report_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": o})
}

// ConfirmCOD handles POST /api/payments/cod/confirm
func (h *Handler) ConfirmCOD(c *gin.Context) {
	user, _ := server.CurrentUser(c)

	var req orderRef
	if err := c.ShouldBindJSON(&req); err != nil {
		server.RespondBindError(c, h.logger, "cod_confirm_failed", err)
		return
	}

	o, err := h.service.ConfirmCOD(c.Request.Context(), user, req.OrderID, server.RequestID(c))
	if err != nil {
		server.RespondError(c, h.logger, "cod_confirm_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": o})
}

// Status handles GET /api/payments/status/:orderId
func (h *Handler) Status(c *gin.Context) {
	user, _ := server.CurrentUser(c)

	id, err := server.UUIDParam(c, "orderId")
	if err != nil {
		server.RespondError(c, h.logger, "payment_status_failed", err)
		return
	}

	info, err := h.service.Status(c.Request.Context(), user, id)
	if err != nil {
		server.RespondError(c, h.logger, "payment_status_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payment": info})
}

// Refund handles POST /api/payments/refund
func (h *Handler) Refund(c *gin.Context) {
	admin, _ := server.CurrentUser(c)

	var req refundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		server.RespondBindError(c, h.logger, "refund_failed", err)
		return
	}

	o, err := h.service.Refund(c.Request.Context(), admin, req.OrderID, req.Reason, server.RequestID(c))
	if err != nil {
		server.RespondError(c, h.logger, "refund_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": o})
}
