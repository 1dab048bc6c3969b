package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	MinRating = 1
	MaxRating = 5
)

// Review is a user's rating of a catalog item
type Review struct {
	ID                 uuid.UUID  `json:"id"`
	UserID             uuid.UUID  `json:"userId"`
	UserName           string     `json:"userName"`
	FoodItemID         uuid.UUID  `json:"foodItemId"`
	OrderID            *uuid.UUID `json:"orderId,omitempty"`
	Rating             int        `json:"rating"`
	Comment            *string    `json:"comment,omitempty"`
	IsVerifiedPurchase bool       `json:"isVerifiedPurchase"`
	AdminResponse      *string    `json:"adminResponse,omitempty"`
	HelpfulCount       int        `json:"helpfulCount"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

// RatingSummary aggregates the reviews of one catalog item
type RatingSummary struct {
	TotalReviews  int             `json:"totalReviews"`
	AverageRating decimal.Decimal `json:"averageRating"`
	Distribution  map[int]int     `json:"ratingDistribution"`
}

// Summarize builds a RatingSummary from a list of ratings; the average is
// rounded to one decimal place.
func Summarize(ratings []int) RatingSummary {
	s := RatingSummary{
		AverageRating: decimal.Zero,
		Distribution:  make(map[int]int, MaxRating),
	}
	for r := MinRating; r <= MaxRating; r++ {
		s.Distribution[r] = 0
	}
	if len(ratings) == 0 {
		return s
	}

	sum := 0
	for _, r := range ratings {
		sum += r
		s.Distribution[r]++
	}
	s.TotalReviews = len(ratings)
	s.AverageRating = decimal.NewFromInt(int64(sum)).
		Div(decimal.NewFromInt(int64(len(ratings)))).
		Round(1)
	return s
}
