package review

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"cafe-orders/internal/apperr"
	"cafe-orders/internal/database"
	"cafe-orders/internal/models"
)

var sortClauses = map[string]string{
	SortNewest:  " ORDER BY created_at DESC",
	SortOldest:  " ORDER BY created_at ASC",
	SortHighest: " ORDER BY rating DESC, created_at DESC",
	SortLowest:  " ORDER BY rating ASC, created_at DESC",
	SortHelpful: " ORDER BY helpful_count DESC, created_at DESC",
}

// Repository is the PostgreSQL Store
type Repository struct {
	db *database.DB
}

func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) FoodItemExists(ctx context.Context, id uuid.UUID) (bool, error) {
	_, err := database.ScanFoodItem(r.db.QueryRow(ctx, database.GetFoodItemSQL, id))
	if err != nil {
		if database.IsNoRows(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to look up food item: %w", err)
	}
	return true, nil
}

func (r *Repository) ReviewExists(ctx context.Context, userID, foodItemID uuid.UUID) (bool, error) {
	var exists bool
	if err := r.db.QueryRow(ctx, database.ReviewExistsSQL, userID, foodItemID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check existing review: %w", err)
	}
	return exists, nil
}

func (r *Repository) VerifiedPurchase(ctx context.Context, userID, foodItemID uuid.UUID, orderID *uuid.UUID) (bool, error) {
	var verified bool
	if err := r.db.QueryRow(ctx, database.VerifiedPurchaseSQL, userID, foodItemID, orderID).Scan(&verified); err != nil {
		return false, fmt.Errorf("failed to check purchase: %w", err)
	}
	return verified, nil
}

func (r *Repository) Insert(ctx context.Context, rv *models.Review) error {
	err := r.db.Exec(ctx, database.InsertReviewSQL,
		rv.ID, rv.UserID, rv.UserName, rv.FoodItemID, rv.OrderID, rv.Rating, rv.Comment,
		rv.IsVerifiedPurchase, rv.CreatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err, database.ReviewUniqueConstraint) {
			return apperr.DuplicateReview()
		}
		if database.IsForeignKeyViolation(err, database.ReviewOrderConstraint) {
			return apperr.Validation("orderId", "order does not exist")
		}
		return fmt.Errorf("failed to insert review: %w", err)
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.Review, error) {
	rv, err := database.ScanReview(r.db.QueryRow(ctx, database.GetReviewSQL, id))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, apperr.NotFound("review %s not found", id)
		}
		return nil, fmt.Errorf("failed to get review: %w", err)
	}
	return &rv, nil
}

func (r *Repository) ListForItem(ctx context.Context, foodItemID uuid.UUID, f ItemFilter) ([]models.Review, int, error) {
	order, ok := sortClauses[f.Sort]
	if !ok {
		order = sortClauses[SortNewest]
	}
	query := database.ListItemReviewsSQL + order + " LIMIT $3 OFFSET $4"

	rows, err := r.db.Query(ctx, query, foodItemID, f.Rating, f.Limit, f.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list reviews: %w", err)
	}
	return collect(rows)
}

func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Review, int, error) {
	rows, err := r.db.Query(ctx, database.ListUserReviewsSQL, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list reviews: %w", err)
	}
	return collect(rows)
}

func (r *Repository) Ratings(ctx context.Context, foodItemID uuid.UUID) ([]int, error) {
	rows, err := r.db.Query(ctx, database.ItemRatingsSQL, foodItemID)
	if err != nil {
		return nil, fmt.Errorf("failed to load ratings: %w", err)
	}
	ratings, err := pgx.CollectRows(rows, pgx.RowTo[int])
	if err != nil {
		return nil, fmt.Errorf("failed to scan ratings: %w", err)
	}
	return ratings, nil
}

func (r *Repository) Update(ctx context.Context, rv *models.Review) error {
	if err := r.db.Exec(ctx, database.UpdateReviewSQL, rv.ID, rv.Rating, rv.Comment, rv.UpdatedAt); err != nil {
		return fmt.Errorf("failed to update review: %w", err)
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.db.Exec(ctx, database.DeleteReviewSQL, id); err != nil {
		return fmt.Errorf("failed to delete review: %w", err)
	}
	return nil
}

func (r *Repository) IncrementHelpful(ctx context.Context, id uuid.UUID) (int, error) {
	var count int
	if err := r.db.QueryRow(ctx, database.IncrementReviewHelpfulSQL, id).Scan(&count); err != nil {
		if database.IsNoRows(err) {
			return 0, apperr.NotFound("review %s not found", id)
		}
		return 0, fmt.Errorf("failed to mark review helpful: %w", err)
	}
	return count, nil
}

func (r *Repository) SetAdminResponse(ctx context.Context, id uuid.UUID, response string, at time.Time) error {
	if err := r.db.Exec(ctx, database.SetReviewAdminResponseSQL, id, response, at); err != nil {
		return fmt.Errorf("failed to save admin response: %w", err)
	}
	return nil
}

func collect(rows pgx.Rows) ([]models.Review, int, error) {
	defer rows.Close()

	reviews := []models.Review{}
	total := 0
	for rows.Next() {
		rv, err := database.ScanReview(rows, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan review: %w", err)
		}
		reviews = append(reviews, rv)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to list reviews: %w", err)
	}
	return reviews, total, nil
}
