package review

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cafe-orders/internal/apperr"
	"cafe-orders/internal/config"
	"cafe-orders/internal/logger"
	"cafe-orders/internal/models"
	"cafe-orders/internal/server"
	"cafe-orders/internal/server/servertest"
)

type purchase struct {
	userID, itemID, orderID uuid.UUID
	cancelled               bool
}

type memStore struct {
	mu        sync.Mutex
	items     map[uuid.UUID]bool
	purchases []purchase
	reviews   map[uuid.UUID]models.Review
}

func newMemStore(items ...uuid.UUID) *memStore {
	s := &memStore{items: map[uuid.UUID]bool{}, reviews: map[uuid.UUID]models.Review{}}
	for _, id := range items {
		s.items[id] = true
	}
	return s
}

func (s *memStore) FoodItemExists(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items[id], nil
}

func (s *memStore) ReviewExists(_ context.Context, userID, itemID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.reviews {
		if r.UserID == userID && r.FoodItemID == itemID {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) VerifiedPurchase(_ context.Context, userID, itemID uuid.UUID, orderID *uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.purchases {
		if p.userID == userID && p.itemID == itemID && !p.cancelled && (orderID == nil || *orderID == p.orderID) {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) Insert(_ context.Context, r *models.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.reviews {
		if existing.UserID == r.UserID && existing.FoodItemID == r.FoodItemID {
			return apperr.DuplicateReview()
		}
	}
	s.reviews[r.ID] = *r
	return nil
}

func (s *memStore) Get(_ context.Context, id uuid.UUID) (*models.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reviews[id]
	if !ok {
		return nil, apperr.NotFound("review %s not found", id)
	}
	return &r, nil
}

func (s *memStore) page(match func(models.Review) bool, less func(a, b models.Review) bool, limit, offset int) ([]models.Review, int) {
	out := []models.Review{}
	for _, r := range s.reviews {
		if match(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	total := len(out)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return out[offset:end], total
}

func (s *memStore) ListForItem(_ context.Context, itemID uuid.UUID, f ItemFilter) ([]models.Review, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	less := func(a, b models.Review) bool { return a.CreatedAt.After(b.CreatedAt) }
	switch f.Sort {
	case SortHighest:
		less = func(a, b models.Review) bool { return a.Rating > b.Rating }
	case SortLowest:
		less = func(a, b models.Review) bool { return a.Rating < b.Rating }
	case SortHelpful:
		less = func(a, b models.Review) bool { return a.HelpfulCount > b.HelpfulCount }
	case SortOldest:
		less = func(a, b models.Review) bool { return a.CreatedAt.Before(b.CreatedAt) }
	}
	reviews, total := s.page(func(r models.Review) bool {
		return r.FoodItemID == itemID && (f.Rating == nil || r.Rating == *f.Rating)
	}, less, f.Limit, f.Offset())
	return reviews, total, nil
}

func (s *memStore) ListForUser(_ context.Context, userID uuid.UUID, limit, offset int) ([]models.Review, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reviews, total := s.page(func(r models.Review) bool { return r.UserID == userID },
		func(a, b models.Review) bool { return a.CreatedAt.After(b.CreatedAt) }, limit, offset)
	return reviews, total, nil
}

func (s *memStore) Ratings(_ context.Context, itemID uuid.UUID) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []int
	for _, r := range s.reviews {
		if r.FoodItemID == itemID {
			out = append(out, r.Rating)
		}
	}
	return out, nil
}

func (s *memStore) Update(_ context.Context, r *models.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reviews[r.ID] = *r
	return nil
}

func (s *memStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.reviews, id)
	return nil
}

func (s *memStore) IncrementHelpful(_ context.Context, id uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reviews[id]
	if !ok {
		return 0, apperr.NotFound("review %s not found", id)
	}
	r.HelpfulCount++
	s.reviews[id] = r
	return r.HelpfulCount, nil
}

func (s *memStore) SetAdminResponse(_ context.Context, id uuid.UUID, response string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.reviews[id]
	r.AdminResponse = &response
	r.UpdatedAt = at
	s.reviews[id] = r
	return nil
}

type fixture struct {
	store *memStore
	svc   *Service
	item  uuid.UUID
	users []models.Identity
	admin models.Identity
	tick  time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		item:  uuid.New(),
		admin: models.Identity{UserID: uuid.New(), Name: "Ops", IsAdmin: true},
		tick:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	for i := 0; i < 6; i++ {
		f.users = append(f.users, models.Identity{UserID: uuid.New(), Name: "Diner"})
	}
	f.store = newMemStore(f.item)
	f.svc = NewService(f.store, logger.NewNop())
	f.svc.now = func() time.Time {
		f.tick = f.tick.Add(time.Minute)
		return f.tick
	}
	return f
}

func (f *fixture) review(t *testing.T, user models.Identity, rating int) *models.Review {
	t.Helper()
	r, err := f.svc.Create(context.Background(), user, CreateRequest{FoodItemID: f.item, Rating: rating}, "req")
	require.NoError(t, err)
	return r
}

func TestCreate_OneReviewPerItem(t *testing.T) {
	f := newFixture(t)
	comment := "  Crisp base, generous basil.  "

	r, err := f.svc.Create(context.Background(), f.users[0], CreateRequest{FoodItemID: f.item, Rating: 5, Comment: &comment}, "req")
	require.NoError(t, err)
	assert.Equal(t, "Crisp base, generous basil.", *r.Comment)
	assert.False(t, r.IsVerifiedPurchase)

	_, err = f.svc.Create(context.Background(), f.users[0], CreateRequest{FoodItemID: f.item, Rating: 3}, "req")
	assert.ErrorIs(t, err, apperr.ErrDuplicateReview)
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t)
	long := strings.Repeat("a", maxCommentLength+1)

	tests := []struct {
		name string
		req  CreateRequest
		want error
	}{
		{"rating too low", CreateRequest{FoodItemID: f.item, Rating: 0}, apperr.ErrValidation},
		{"rating too high", CreateRequest{FoodItemID: f.item, Rating: 6}, apperr.ErrValidation},
		{"comment too long", CreateRequest{FoodItemID: f.item, Rating: 4, Comment: &long}, apperr.ErrValidation},
		{"unknown item", CreateRequest{FoodItemID: uuid.New(), Rating: 4}, apperr.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(context.Background(), f.users[0], tt.req, "req")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCreate_VerifiedPurchase(t *testing.T) {
	f := newFixture(t)
	orderID := uuid.New()
	cancelledOrder := uuid.New()
	f.store.purchases = []purchase{
		{userID: f.users[0].UserID, itemID: f.item, orderID: orderID},
		{userID: f.users[1].UserID, itemID: f.item, orderID: cancelledOrder, cancelled: true},
	}

	r, err := f.svc.Create(context.Background(), f.users[0], CreateRequest{FoodItemID: f.item, Rating: 4, OrderID: &orderID}, "req")
	require.NoError(t, err)
	assert.True(t, r.IsVerifiedPurchase)

	r, err = f.svc.Create(context.Background(), f.users[1], CreateRequest{FoodItemID: f.item, Rating: 2}, "req")
	require.NoError(t, err)
	assert.False(t, r.IsVerifiedPurchase)

}

func TestCreate_RejectsOrderTheUserDidNotPlace(t *testing.T) {
	f := newFixture(t)
	bobsOrder := uuid.New()
	f.store.purchases = []purchase{
		{userID: f.users[1].UserID, itemID: f.item, orderID: bobsOrder},
	}
	unknown := uuid.New()

	tests := []struct {
		name    string
		orderID uuid.UUID
	}{
		{name: "another user's order", orderID: bobsOrder},
		{name: "order that does not exist", orderID: unknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orderID := tt.orderID
			_, err := f.svc.Create(context.Background(), f.users[0], CreateRequest{FoodItemID: f.item, Rating: 5, OrderID: &orderID}, "req")
			require.Error(t, err)
			assert.ErrorIs(t, err, apperr.ErrValidation)
		})
	}
	assert.Empty(t, f.store.reviews)

	r, err := f.svc.Create(context.Background(), f.users[1], CreateRequest{FoodItemID: f.item, Rating: 5, OrderID: &bobsOrder}, "req")
	require.NoError(t, err)
	assert.True(t, r.IsVerifiedPurchase)
	require.NotNil(t, r.OrderID)
	assert.Equal(t, bobsOrder, *r.OrderID)
}

func TestListForItem_Summary(t *testing.T) {
	f := newFixture(t)
	for i, rating := range []int{5, 4, 4, 3, 5, 1} {
		f.review(t, f.users[i], rating)
	}

	page, err := f.svc.ListForItem(context.Background(), f.item, ItemFilter{Sort: SortHighest, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 6, page.Total)
	require.Len(t, page.Reviews, 2)
	assert.Equal(t, 5, page.Reviews[0].Rating)
	assert.Equal(t, "3.7", page.Summary.AverageRating.String())
	assert.Equal(t, map[int]int{1: 1, 2: 0, 3: 1, 4: 2, 5: 2}, page.Summary.Distribution)

	four := 4
	page, err = f.svc.ListForItem(context.Background(), f.item, ItemFilter{Rating: &four})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, 6, page.Summary.TotalReviews)

	_, err = f.svc.ListForItem(context.Background(), f.item, ItemFilter{Sort: "random"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	empty, err := f.svc.ListForItem(context.Background(), uuid.New(), ItemFilter{})
	require.NoError(t, err)
	assert.Zero(t, empty.Summary.TotalReviews)
	assert.True(t, empty.Summary.AverageRating.IsZero())
}

func TestUpdateAndDelete_Ownership(t *testing.T) {
	f := newFixture(t)
	r := f.review(t, f.users[0], 3)
	ctx := context.Background()

	five := 5
	_, err := f.svc.Update(ctx, f.users[1], r.ID, UpdateRequest{Rating: &five}, "req")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = f.svc.Update(ctx, f.admin, r.ID, UpdateRequest{Rating: &five}, "req")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	updated, err := f.svc.Update(ctx, f.users[0], r.ID, UpdateRequest{Rating: &five}, "req")
	require.NoError(t, err)
	assert.Equal(t, 5, updated.Rating)
	assert.True(t, updated.UpdatedAt.After(r.UpdatedAt))

	assert.ErrorIs(t, f.svc.Delete(ctx, f.users[1], r.ID, "req"), apperr.ErrNotFound)
	require.NoError(t, f.svc.Delete(ctx, f.admin, r.ID, "req"))

	_, err = f.store.Get(ctx, r.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestMarkHelpfulAndRespond(t *testing.T) {
	f := newFixture(t)
	r := f.review(t, f.users[0], 4)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.svc.MarkHelpful(ctx, r.ID)
		require.NoError(t, err)
	}
	got, err := f.store.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.HelpfulCount)

	_, err = f.svc.Respond(ctx, f.admin, r.ID, "   ", "req")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	responded, err := f.svc.Respond(ctx, f.admin, r.ID, "Thank you!", "req")
	require.NoError(t, err)
	assert.Equal(t, "Thank you!", *responded.AdminResponse)

	_, err = f.svc.MarkHelpful(ctx, uuid.New())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestHandler_Routes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	const secret = "review-secret"

	f := newFixture(t)
	srv := server.New(config.ServerConfig{Addr: ":0"}, secret, logger.NewNop(), nil, NewHandler(f.svc, logger.NewNop()))
	token, err := servertest.SignToken(f.users[0], []byte(secret), time.Hour)
	require.NoError(t, err)
	adminToken, err := servertest.SignToken(f.admin, []byte(secret), time.Hour)
	require.NoError(t, err)

	do := func(method, path, token, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		return rec
	}

	body := `{"foodItemId":"` + f.item.String() + `","rating":5,"comment":"Lovely"}`
	rec := do(http.MethodPost, "/api/reviews", token, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		Review models.Review `json:"review"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	assert.Equal(t, http.StatusConflict, do(http.MethodPost, "/api/reviews", token, body).Code)
	assert.Equal(t, http.StatusBadRequest, do(http.MethodPost, "/api/reviews", token,
		`{"foodItemId":"`+f.item.String()+`","rating":9}`).Code)

	rec = do(http.MethodGet, "/api/reviews/food-item/"+f.item.String(), "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var listed struct {
		Reviews    []models.Review      `json:"reviews"`
		Statistics models.RatingSummary `json:"statistics"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	assert.Len(t, listed.Reviews, 1)
	assert.Equal(t, 1, listed.Statistics.TotalReviews)

	reviewPath := "/api/reviews/" + created.Review.ID.String()
	assert.Equal(t, http.StatusOK, do(http.MethodPost, reviewPath+"/helpful", token, "").Code)
	assert.Equal(t, http.StatusForbidden, do(http.MethodPost, reviewPath+"/admin-response", token, `{"response":"hi"}`).Code)
	assert.Equal(t, http.StatusOK, do(http.MethodPost, reviewPath+"/admin-response", adminToken, `{"response":"Thanks"}`).Code)
	assert.Equal(t, http.StatusOK, do(http.MethodPut, reviewPath, token, `{"rating":4}`).Code)
	assert.Equal(t, http.StatusOK, do(http.MethodGet, "/api/reviews/my-reviews", token, "").Code)
	assert.Equal(t, http.StatusNoContent, do(http.MethodDelete, reviewPath, token, "").Code)
}
