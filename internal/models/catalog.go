package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Category is the closed set of menu sections
type Category string

const (
	CategoryPizza      Category = "Pizza"
	CategoryBurger     Category = "Burger"
	CategorySalad      Category = "Salad"
	CategoryPasta      Category = "Pasta"
	CategoryDessert    Category = "Dessert"
	CategoryBeverage   Category = "Beverage"
	CategoryAppetizer  Category = "Appetizer"
	CategoryMainCourse Category = "Main Course"
	CategorySoup       Category = "Soup"
	CategoryBread      Category = "Bread"
)

var AllCategories = []Category{
	CategoryPizza, CategoryBurger, CategorySalad, CategoryPasta, CategoryDessert,
	CategoryBeverage, CategoryAppetizer, CategoryMainCourse, CategorySoup, CategoryBread,
}

func (c Category) Valid() bool {
	for _, known := range AllCategories {
		if c == known {
			return true
		}
	}
	return false
}

// CatalogItem is a purchasable menu entry
type CatalogItem struct {
	ID              uuid.UUID       `json:"id"`
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	Price           decimal.Decimal `json:"price"`
	Category        Category        `json:"category"`
	ImageURL        *string         `json:"imageUrl,omitempty"`
	IsAvailable     bool            `json:"isAvailable"`
	StockQuantity   *int            `json:"stockQuantity,omitempty"`
	PreparationTime int             `json:"preparationTime"`
	IsPopular       bool            `json:"isPopular"`
	IsFeatured      bool            `json:"isFeatured"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// CanSupply reports whether qty units can be ordered right now
func (i CatalogItem) CanSupply(qty int) bool {
	if !i.IsAvailable {
		return false
	}
	return i.StockQuantity == nil || *i.StockQuantity >= qty
}

// CategoryCount is a category with the number of items currently available in it
type CategoryCount struct {
	Category Category `json:"category"`
	Count    int      `json:"count"`
}
