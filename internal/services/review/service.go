package review

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"cafe-orders/internal/apperr"
	"cafe-orders/internal/logger"
	"cafe-orders/internal/models"
)

const (
	maxCommentLength  = 1000
	maxResponseLength = 1000
	defaultLimit      = 10
	maxLimit          = 100
)

// Sort orders for item review listings
const (
	SortNewest  = "newest"
	SortOldest  = "oldest"
	SortHighest = "highest"
	SortLowest  = "lowest"
	SortHelpful = "helpful"
)

// Store persists reviews
type Store interface {
	FoodItemExists(ctx context.Context, id uuid.UUID) (bool, error)
	ReviewExists(ctx context.Context, userID, foodItemID uuid.UUID) (bool, error)
	// VerifiedPurchase reports whether the user has a non-cancelled order
	// containing the item, restricted to orderID when given
	VerifiedPurchase(ctx context.Context, userID, foodItemID uuid.UUID, orderID *uuid.UUID) (bool, error)
	// Insert returns a DuplicateReview error when the user already reviewed the item
	Insert(ctx context.Context, r *models.Review) error
	Get(ctx context.Context, id uuid.UUID) (*models.Review, error)
	ListForItem(ctx context.Context, foodItemID uuid.UUID, filter ItemFilter) ([]models.Review, int, error)
	ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Review, int, error)
	Ratings(ctx context.Context, foodItemID uuid.UUID) ([]int, error)
	Update(ctx context.Context, r *models.Review) error
	Delete(ctx context.Context, id uuid.UUID) error
	IncrementHelpful(ctx context.Context, id uuid.UUID) (int, error)
	SetAdminResponse(ctx context.Context, id uuid.UUID, response string, at time.Time) error
}

// CreateRequest is a new review
type CreateRequest struct {
	FoodItemID uuid.UUID  `json:"foodItemId" binding:"required"`
	OrderID    *uuid.UUID `json:"orderId,omitempty"`
	Rating     int        `json:"rating" binding:"required,min=1,max=5"`
	Comment    *string    `json:"comment,omitempty" binding:"omitempty,max=1000"`
}

// UpdateRequest edits a review; nil fields are left unchanged
type UpdateRequest struct {
	Rating  *int    `json:"rating,omitempty" binding:"omitempty,min=1,max=5"`
	Comment *string `json:"comment,omitempty" binding:"omitempty,max=1000"`
}

// ItemFilter narrows an item's review listing
type ItemFilter struct {
	Rating *int
	Sort   string
	Page   int
	Limit  int
}

func (f ItemFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}

// Page is one page of reviews
type Page struct {
	Reviews []models.Review
	Total   int
	Page    int
	Limit   int
}

// ItemPage is a page of an item's reviews with the item's rating summary
type ItemPage struct {
	Page
	Summary models.RatingSummary
}

type Service struct {
	store  Store
	logger *logger.Logger
	now    func() time.Time
}

func NewService(store Store, log *logger.Logger) *Service {
	return &Service{store: store, logger: log, now: time.Now}
}

// Create records a review. A user reviews an item at most once.
func (s *Service) Create(ctx context.Context, user models.Identity, req CreateRequest, requestID string) (*models.Review, error) {
	if err := validateRating(req.Rating); err != nil {
		return nil, err
	}
	comment, err := normaliseText("comment", req.Comment, maxCommentLength)
	if err != nil {
		return nil, err
	}

	exists, err := s.store.FoodItemExists(ctx, req.FoodItemID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, apperr.NotFound("food item %s not found", req.FoodItemID)
	}

	dup, err := s.store.ReviewExists(ctx, user.UserID, req.FoodItemID)
	if err != nil {
		return nil, err
	}
	if dup {
		return nil, apperr.DuplicateReview()
	}

	verified, err := s.store.VerifiedPurchase(ctx, user.UserID, req.FoodItemID, req.OrderID)
	if err != nil {
		return nil, err
	}
	if req.OrderID != nil && !verified {
		return nil, apperr.Validation("orderId", "must be one of your orders containing this item")
	}

	now := s.now().UTC()
	r := &models.Review{
		ID:                 uuid.New(),
		UserID:             user.UserID,
		UserName:           user.Name,
		FoodItemID:         req.FoodItemID,
		OrderID:            req.OrderID,
		Rating:             req.Rating,
		Comment:            comment,
		IsVerifiedPurchase: verified,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.store.Insert(ctx, r); err != nil {
		return nil, err
	}

	s.logger.Info("review_created", fmt.Sprintf("Review %s created", r.ID), requestID, map[string]interface{}{
		"food_item_id": r.FoodItemID.String(),
		"rating":       r.Rating,
		"verified":     verified,
	})
	return r, nil
}

// ListForItem lists an item's reviews with its rating summary. The summary
// covers every review of the item regardless of the rating filter.
func (s *Service) ListForItem(ctx context.Context, foodItemID uuid.UUID, filter ItemFilter) (*ItemPage, error) {
	if filter.Rating != nil {
		if err := validateRating(*filter.Rating); err != nil {
			return nil, err
		}
	}
	switch filter.Sort {
	case "":
		filter.Sort = SortNewest
	case SortNewest, SortOldest, SortHighest, SortLowest, SortHelpful:
	default:
		return nil, apperr.Validation("sort", "must be one of newest, oldest, highest, lowest, helpful")
	}
	filter.Page, filter.Limit = normalisePage(filter.Page, filter.Limit)

	reviews, total, err := s.store.ListForItem(ctx, foodItemID, filter)
	if err != nil {
		return nil, err
	}
	ratings, err := s.store.Ratings(ctx, foodItemID)
	if err != nil {
		return nil, err
	}

	return &ItemPage{
		Page:    Page{Reviews: reviews, Total: total, Page: filter.Page, Limit: filter.Limit},
		Summary: models.Summarize(ratings),
	}, nil
}

// ListMine lists the caller's reviews, newest first
func (s *Service) ListMine(ctx context.Context, user models.Identity, page, limit int) (*Page, error) {
	page, limit = normalisePage(page, limit)
	reviews, total, err := s.store.ListForUser(ctx, user.UserID, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}
	return &Page{Reviews: reviews, Total: total, Page: page, Limit: limit}, nil
}

// Update edits the caller's own review
func (s *Service) Update(ctx context.Context, user models.Identity, id uuid.UUID, req UpdateRequest, requestID string) (*models.Review, error) {
	r, err := s.owned(ctx, user, id, false)
	if err != nil {
		return nil, err
	}

	if req.Rating != nil {
		if err := validateRating(*req.Rating); err != nil {
			return nil, err
		}
		r.Rating = *req.Rating
	}
	if req.Comment != nil {
		comment, err := normaliseText("comment", req.Comment, maxCommentLength)
		if err != nil {
			return nil, err
		}
		r.Comment = comment
	}
	r.UpdatedAt = s.now().UTC()

	if err := s.store.Update(ctx, r); err != nil {
		return nil, err
	}

	s.logger.Info("review_updated", fmt.Sprintf("Review %s updated", r.ID), requestID, map[string]interface{}{
		"rating": r.Rating,
	})
	return r, nil
}

// Delete removes a review. Administrators may remove any review.
func (s *Service) Delete(ctx context.Context, user models.Identity, id uuid.UUID, requestID string) error {
	if _, err := s.owned(ctx, user, id, true); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("review_deleted", fmt.Sprintf("Review %s deleted", id), requestID, map[string]interface{}{
		"deleted_by": user.Label(),
	})
	return nil
}

// MarkHelpful bumps the helpful counter of a review
func (s *Service) MarkHelpful(ctx context.Context, id uuid.UUID) (*models.Review, error) {
	r, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	count, err := s.store.IncrementHelpful(ctx, id)
	if err != nil {
		return nil, err
	}
	r.HelpfulCount = count
	return r, nil
}

// Respond attaches an administrator's public reply to a review
func (s *Service) Respond(ctx context.Context, admin models.Identity, id uuid.UUID, text, requestID string) (*models.Review, error) {
	response, err := normaliseText("response", &text, maxResponseLength)
	if err != nil {
		return nil, err
	}
	if response == nil {
		return nil, apperr.Validation("response", "is required")
	}

	r, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if err := s.store.SetAdminResponse(ctx, id, *response, now); err != nil {
		return nil, err
	}
	r.AdminResponse = response
	r.UpdatedAt = now

	s.logger.Info("review_responded", fmt.Sprintf("Admin responded to review %s", id), requestID, map[string]interface{}{
		"responded_by": admin.Label(),
	})
	return r, nil
}

func (s *Service) owned(ctx context.Context, user models.Identity, id uuid.UUID, adminAllowed bool) (*models.Review, error) {
	r, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.UserID == user.UserID || (adminAllowed && user.IsAdmin) {
		return r, nil
	}
	return nil, apperr.NotFound("review %s not found", id)
}

func validateRating(rating int) error {
	if rating < models.MinRating || rating > models.MaxRating {
		return apperr.Validation("rating", fmt.Sprintf("must be between %d and %d", models.MinRating, models.MaxRating))
	}
	return nil
}

// normaliseText trims text; blank becomes nil
func normaliseText(field string, text *string, max int) (*string, error) {
	if text == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*text)
	if trimmed == "" {
		return nil, nil
	}
	if len([]rune(trimmed)) > max {
		return nil, apperr.Validation(field, fmt.Sprintf("must be at most %d characters", max))
	}
	return &trimmed, nil
}

func normalisePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return page, limit
}
