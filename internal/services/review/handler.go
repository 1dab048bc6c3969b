package review

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cafe-orders/internal/logger"
	"cafe-orders/internal/server"
)

// Handler serves the review endpoints
type Handler struct {
	service *Service
	logger  *logger.Logger
}

func NewHandler(service *Service, log *logger.Logger) *Handler {
	return &Handler{service: service, logger: log}
}

type responseRequest struct {
	Response string `json:"response" binding:"required,max=1000"`
}

// Register mounts the review routes
func (h *Handler) Register(public, authed *gin.RouterGroup) {
	public.GET("/reviews/food-item/:foodItemId", h.ListForItem)

	reviews := authed.Group("/reviews")
	reviews.POST("", h.Create)
	reviews.GET("/my-reviews", h.ListMine)
	reviews.PUT("/:reviewId", h.Update)
	reviews.DELETE("/:reviewId", h.Delete)
	reviews.POST("/:reviewId/helpful", h.MarkHelpful)
	reviews.POST("/:reviewId/admin-response", server.RequireAdmin(), h.Respond)
}

// Create handles POST /api/reviews
func (h *Handler) Create(c *gin.Context) {
	user, _ := server.CurrentUser(c)

	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		server.RespondBindError(c, h.logger, "review_create_failed", err)
		return
	}

	r, err := h.service.Create(c.Request.Context(), user, req, server.RequestID(c))
	if err != nil {
		server.RespondError(c, h.logger, "review_create_failed", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"review": r})
}

// ListForItem handles GET /api/reviews/food-item/:foodItemId
func (h *Handler) ListForItem(c *gin.Context) {
	id, err := server.UUIDParam(c, "foodItemId")
	if err != nil {
		server.RespondError(c, h.logger, "review_list_failed", err)
		return
	}

	filter := ItemFilter{Sort: c.Query("sort")}
	if filter.Page, err = server.IntQuery(c, "page"); err != nil {
		server.RespondError(c, h.logger, "review_list_failed", err)
		return
	}
	if filter.Limit, err = server.IntQuery(c, "limit"); err != nil {
		server.RespondError(c, h.logger, "review_list_failed", err)
		return
	}
	rating, err := server.IntQuery(c, "rating")
	if err != nil {
		server.RespondError(c, h.logger, "review_list_failed", err)
		return
	}
	if rating != 0 {
		filter.Rating = &rating
	}

	page, err := h.service.ListForItem(c.Request.Context(), id, filter)
	if err != nil {
		server.RespondError(c, h.logger, "review_list_failed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"reviews":    page.Reviews,
		"statistics": page.Summary,
		"pagination": server.NewPagination(page.Page.Page, page.Limit, page.Total),
	})
}

// ListMine handles GET /api/reviews/my-reviews
func (h *Handler) ListMine(c *gin.Context) {
	user, _ := server.CurrentUser(c)

	pageNum, err := server.IntQuery(c, "page")
	if err != nil {
		server.RespondError(c, h.logger, "review_list_failed", err)
		return
	}
	limit, err := server.IntQuery(c, "limit")
	if err != nil {
		server.RespondError(c, h.logger, "review_list_failed", err)
		return
	}

	page, err := h.service.ListMine(c.Request.Context(), user, pageNum, limit)
	if err != nil {
		server.RespondError(c, h.logger, "review_list_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"reviews":    page.Reviews,
		"pagination": server.NewPagination(page.Page, page.Limit, page.Total),
	})
}

// Update handles PUT /api/reviews/:reviewId
func (h *Handler) Update(c *gin.Context) {
	user, _ := server.CurrentUser(c)

	id, err := server.UUIDParam(c, "reviewId")
	if err != nil {
		server.RespondError(c, h.logger, "review_update_failed", err)
		return
	}

	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		server.RespondBindError(c, h.logger, "review_update_failed", err)
		return
	}

	r, err := h.service.Update(c.Request.Context(), user, id, req, server.RequestID(c))
	if err != nil {
		server.RespondError(c, h.logger, "review_update_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"review": r})
}

// Delete handles DELETE /api/reviews/:reviewId
func (h *Handler) Delete(c *gin.Context) {
	user, _ := server.CurrentUser(c)

	id, err := server.UUIDParam(c, "reviewId")
	if err != nil {
		server.RespondError(c, h.logger, "review_delete_failed", err)
		return
	}

	if err := h.service.Delete(c.Request.Context(), user, id, server.RequestID(c)); err != nil {
		server.RespondError(c, h.logger, "review_delete_failed", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// MarkHelpful handles POST /api/reviews/:reviewId/helpful
func (h *Handler) MarkHelpful(c *gin.Context) {
	id, err := server.UUIDParam(c, "reviewId")
	if err != nil {
		server.RespondError(c, h.logger, "review_helpful_failed", err)
		return
	}

	r, err := h.service.MarkHelpful(c.Request.Context(), id)
	if err != nil {
		server.RespondError(c, h.logger, "review_helpful_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"helpfulCount": r.HelpfulCount})
}

// Respond handles POST /api/reviews/:reviewId/admin-response
func (h *Handler) Respond(c *gin.Context) {
	admin, _ := server.CurrentUser(c)

	id, err := server.UUIDParam(c, "reviewId")
	if err != nil {
		server.RespondError(c, h.logger, "review_response_failed", err)
		return
	}

	var req responseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		server.RespondBindError(c, h.logger, "review_response_failed", err)
		return
	}

	r, err := h.service.Respond(c.Request.Context(), admin, id, req.Response, server.RequestID(c))
	if err != nil {
		server.RespondError(c, h.logger, "review_response_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"review": r})
}
