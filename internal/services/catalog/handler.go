package catalog

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cafe-orders/internal/logger"
	"cafe-orders/internal/models"
	"cafe-orders/internal/server"
)

// Handler serves the menu
type Handler struct {
	service *Service
	logger  *logger.Logger
}

func NewHandler(service *Service, log *logger.Logger) *Handler {
	return &Handler{service: service, logger: log}
}

type availabilityRequest struct {
	IsAvailable *bool `json:"isAvailable" binding:"required"`
}

type stockRequest struct {
	StockQuantity *int `json:"stockQuantity" binding:"omitempty,min=0"`
}

// Register mounts the catalog routes
func (h *Handler) Register(public, authed *gin.RouterGroup) {
	food := public.Group("/food")
	food.GET("", h.List)
	food.GET("/categories", h.Categories)
	food.GET("/:id", h.Get)

	admin := authed.Group("/food", server.RequireAdmin())
	admin.PATCH("/:id/availability", h.SetAvailability)
	admin.PATCH("/:id/stock", h.SetStock)
}

// List handles GET /api/food
func (h *Handler) List(c *gin.Context) {
	var filter ListFilter
	var err error

	if filter.Page, err = server.IntQuery(c, "page"); err != nil {
		server.RespondError(c, h.logger, "list_food_failed", err)
		return
	}
	if filter.Limit, err = server.IntQuery(c, "limit"); err != nil {
		server.RespondError(c, h.logger, "list_food_failed", err)
		return
	}
	if filter.Popular, err = server.BoolQuery(c, "popular"); err != nil {
		server.RespondError(c, h.logger, "list_food_failed", err)
		return
	}
	if filter.Featured, err = server.BoolQuery(c, "featured"); err != nil {
		server.RespondError(c, h.logger, "list_food_failed", err)
		return
	}
	if raw := c.Query("category"); raw != "" {
		category := models.Category(raw)
		filter.Category = &category
	}
	filter.Search = c.Query("search")

	page, err := h.service.ListAvailable(c.Request.Context(), filter)
	if err != nil {
		server.RespondError(c, h.logger, "list_food_failed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"foodItems":  page.Items,
		"pagination": server.NewPagination(page.Page, page.Limit, page.Total),
	})
}

// Categories handles GET /api/food/categories
func (h *Handler) Categories(c *gin.Context) {
	categories, err := h.service.Categories(c.Request.Context())
	if err != nil {
		server.RespondError(c, h.logger, "list_categories_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

// Get handles GET /api/food/:id
func (h *Handler) Get(c *gin.Context) {
	id, err := server.UUIDParam(c, "id")
	if err != nil {
		server.RespondError(c, h.logger, "get_food_failed", err)
		return
	}

	item, err := h.service.GetItem(c.Request.Context(), id)
	if err != nil {
		server.RespondError(c, h.logger, "get_food_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"foodItem": item})
}

// SetAvailability handles PATCH /api/food/:id/availability
func (h *Handler) SetAvailability(c *gin.Context) {
	admin, _ := server.CurrentUser(c)

	id, err := server.UUIDParam(c, "id")
	if err != nil {
		server.RespondError(c, h.logger, "food_availability_failed", err)
		return
	}

	var req availabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		server.RespondBindError(c, h.logger, "food_availability_failed", err)
		return
	}

	item, err := h.service.SetAvailability(c.Request.Context(), admin, id, *req.IsAvailable, server.RequestID(c))
	if err != nil {
		server.RespondError(c, h.logger, "food_availability_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"foodItem": item})
}

// SetStock handles PATCH /api/food/:id/stock. A null quantity stops tracking.
func (h *Handler) SetStock(c *gin.Context) {
	admin, _ := server.CurrentUser(c)

	id, err := server.UUIDParam(c, "id")
	if err != nil {
		server.RespondError(c, h.logger, "food_stock_failed", err)
		return
	}

	var req stockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		server.RespondBindError(c, h.logger, "food_stock_failed", err)
		return
	}

	item, err := h.service.SetStock(c.Request.Context(), admin, id, req.StockQuantity, server.RequestID(c))
	if err != nil {
		server.RespondError(c, h.logger, "food_stock_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"foodItem": item})
}
