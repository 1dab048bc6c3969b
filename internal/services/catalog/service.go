package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"cafe-orders/internal/apperr"
	"cafe-orders/internal/logger"
	"cafe-orders/internal/models"
)

const (
	defaultLimit = 12
	maxLimit     = 100
)

// Store persists catalog items
type Store interface {
	GetItem(ctx context.Context, id uuid.UUID) (*models.CatalogItem, error)
	ListAvailable(ctx context.Context, filter ListFilter) ([]models.CatalogItem, int, error)
	Categories(ctx context.Context) ([]models.CategoryCount, error)
	SetAvailability(ctx context.Context, id uuid.UUID, available bool) (*models.CatalogItem, error)
	SetStock(ctx context.Context, id uuid.UUID, stock *int) (*models.CatalogItem, error)
}

// ListFilter narrows the public menu listing
type ListFilter struct {
	Category *models.Category
	Search   string
	Popular  *bool
	Featured *bool
	Page     int
	Limit    int
}

func (f ListFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}

// Page is one page of the menu
type Page struct {
	Items []models.CatalogItem
	Total int
	Page  int
	Limit int
}

// Service exposes the menu. Items are never deleted, only made unavailable.
type Service struct {
	store  Store
	logger *logger.Logger
}

func NewService(store Store, log *logger.Logger) *Service {
	return &Service{store: store, logger: log}
}

// GetItem returns an item whether or not it is currently available
func (s *Service) GetItem(ctx context.Context, id uuid.UUID) (*models.CatalogItem, error) {
	return s.store.GetItem(ctx, id)
}

// ListAvailable lists orderable items
func (s *Service) ListAvailable(ctx context.Context, filter ListFilter) (*Page, error) {
	if filter.Category != nil && !filter.Category.Valid() {
		return nil, apperr.Validation("category", "unknown category")
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = defaultLimit
	}
	if filter.Limit > maxLimit {
		filter.Limit = maxLimit
	}

	items, total, err := s.store.ListAvailable(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &Page{Items: items, Total: total, Page: filter.Page, Limit: filter.Limit}, nil
}

// Categories lists categories that have at least one available item
func (s *Service) Categories(ctx context.Context) ([]models.CategoryCount, error) {
	return s.store.Categories(ctx)
}

// SetAvailability enables or disables an item
func (s *Service) SetAvailability(ctx context.Context, admin models.Identity, id uuid.UUID, available bool, requestID string) (*models.CatalogItem, error) {
	item, err := s.store.SetAvailability(ctx, id, available)
	if err != nil {
		return nil, err
	}

	s.logger.Info("catalog_availability_updated", fmt.Sprintf("%s availability set to %t", item.Name, available), requestID, map[string]interface{}{
		"food_item_id": id.String(),
		"changed_by":   admin.Label(),
	})
	return item, nil
}

// SetStock sets the tracked stock of an item. Nil stops tracking.
func (s *Service) SetStock(ctx context.Context, admin models.Identity, id uuid.UUID, stock *int, requestID string) (*models.CatalogItem, error) {
	if stock != nil && *stock < 0 {
		return nil, apperr.Validation("stockQuantity", "must not be negative")
	}

	item, err := s.store.SetStock(ctx, id, stock)
	if err != nil {
		return nil, err
	}

	fields := map[string]interface{}{
		"food_item_id": id.String(),
		"changed_by":   admin.Label(),
	}
	if stock != nil {
		fields["stock_quantity"] = *stock
	}
	s.logger.Info("catalog_stock_updated", fmt.Sprintf("%s stock updated", item.Name), requestID, fields)
	return item, nil
}
