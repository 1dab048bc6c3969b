package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"cafe-orders/internal/apperr"
	"cafe-orders/internal/database"
	"cafe-orders/internal/models"
)

// Repository is the PostgreSQL Store
type Repository struct {
	db *database.DB
}

func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetItem(ctx context.Context, id uuid.UUID) (*models.CatalogItem, error) {
	return scanOne(r.db.QueryRow(ctx, database.GetFoodItemSQL, id), id)
}

func (r *Repository) ListAvailable(ctx context.Context, f ListFilter) ([]models.CatalogItem, int, error) {
	var search *string
	if f.Search != "" {
		search = &f.Search
	}

	rows, err := r.db.Query(ctx, database.ListAvailableFoodItemsSQL,
		database.NullableString(f.Category),
		search,
		f.Popular,
		f.Featured,
		f.Limit,
		f.Offset(),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list food items: %w", err)
	}
	defer rows.Close()

	items := []models.CatalogItem{}
	total := 0
	for rows.Next() {
		item, err := database.ScanFoodItem(rows, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan food item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to list food items: %w", err)
	}
	return items, total, nil
}

func (r *Repository) Categories(ctx context.Context) ([]models.CategoryCount, error) {
	rows, err := r.db.Query(ctx, database.ListCategoriesSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}

	counts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.CategoryCount, error) {
		var c models.CategoryCount
		err := row.Scan(&c.Category, &c.Count)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan categories: %w", err)
	}
	return counts, nil
}

func (r *Repository) SetAvailability(ctx context.Context, id uuid.UUID, available bool) (*models.CatalogItem, error) {
	return scanOne(r.db.QueryRow(ctx, database.UpdateFoodItemAvailabilitySQL, id, available), id)
}

func (r *Repository) SetStock(ctx context.Context, id uuid.UUID, stock *int) (*models.CatalogItem, error) {
	return scanOne(r.db.QueryRow(ctx, database.UpdateFoodItemStockSQL, id, stock), id)
}

func scanOne(row pgx.Row, id uuid.UUID) (*models.CatalogItem, error) {
	item, err := database.ScanFoodItem(row)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, apperr.NotFound("food item %s not found", id)
		}
		return nil, fmt.Errorf("failed to load food item: %w", err)
	}
	return &item, nil
}
