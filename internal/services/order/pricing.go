package order

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"cafe-orders/internal/apperr"
	"cafe-orders/internal/config"
	"cafe-orders/internal/models"
)

// moneyPlaces is the number of fractional digits every monetary value is rounded to
const moneyPlaces = 2

// PricingConfig holds the constants applied to every order
type PricingConfig struct {
	DeliveryFee decimal.Decimal
	TaxRate     decimal.Decimal
	DeliveryETA time.Duration
}

// DefaultPricing is the reference pricing: 49 delivery fee, 8% tax, 45 minute ETA
func DefaultPricing() PricingConfig {
	return PricingConfig{
		DeliveryFee: decimal.NewFromInt(49),
		TaxRate:     decimal.RequireFromString("0.08"),
		DeliveryETA: 45 * time.Minute,
	}
}

// PricingFromConfig parses the pricing section of the application config
func PricingFromConfig(cfg config.PricingConfig) (PricingConfig, error) {
	fee, err := decimal.NewFromString(cfg.DeliveryFee)
	if err != nil {
		return PricingConfig{}, fmt.Errorf("invalid delivery fee: %w", err)
	}
	rate, err := decimal.NewFromString(cfg.TaxRate)
	if err != nil {
		return PricingConfig{}, fmt.Errorf("invalid tax rate: %w", err)
	}
	return PricingConfig{
		DeliveryFee: fee.Round(moneyPlaces),
		TaxRate:     rate,
		DeliveryETA: cfg.DeliveryETA,
	}, nil
}

// CartLine is one requested catalog item
type CartLine struct {
	FoodItemID          uuid.UUID `json:"foodItemId" binding:"required"`
	Quantity            int       `json:"quantity" binding:"required,min=1,max=50"`
	SpecialInstructions *string   `json:"specialInstructions,omitempty" binding:"omitempty,max=500"`
}

// MergeCart folds repeated item ids into one line, keeping first-seen order and
// the first non-empty instructions.
func MergeCart(cart []CartLine) []CartLine {
	merged := make([]CartLine, 0, len(cart))
	index := make(map[uuid.UUID]int, len(cart))

	for _, line := range cart {
		if i, ok := index[line.FoodItemID]; ok {
			merged[i].Quantity += line.Quantity
			if merged[i].SpecialInstructions == nil {
				merged[i].SpecialInstructions = line.SpecialInstructions
			}
			continue
		}
		index[line.FoodItemID] = len(merged)
		merged = append(merged, line)
	}
	return merged
}

// Quote is the priced result for a cart
type Quote struct {
	Lines                 []models.OrderLine
	Subtotal              decimal.Decimal
	DeliveryFee           decimal.Decimal
	Tax                   decimal.Decimal
	Total                 decimal.Decimal
	EstimatedDeliveryTime time.Time
}

// Pricer turns a cart into priced order lines
type Pricer struct {
	cfg PricingConfig
}

func NewPricer(cfg PricingConfig) *Pricer {
	return &Pricer{cfg: cfg}
}

// Price prices a merged cart against the catalog snapshot in items. Any missing,
// unavailable or understocked item rejects the whole cart.
func (p *Pricer) Price(cart []CartLine, items map[uuid.UUID]models.CatalogItem, now time.Time) (*Quote, error) {
	if len(cart) == 0 {
		return nil, apperr.Validation("items", "order must contain at least one item")
	}

	q := &Quote{
		Lines:       make([]models.OrderLine, 0, len(cart)),
		Subtotal:    decimal.Zero,
		DeliveryFee: p.cfg.DeliveryFee,
	}

	for _, line := range cart {
		item, ok := items[line.FoodItemID]
		if !ok {
			return nil, apperr.ItemUnavailable("food item %s does not exist", line.FoodItemID)
		}
		if !item.IsAvailable {
			return nil, apperr.ItemUnavailable("%s is currently unavailable", item.Name)
		}
		if !item.CanSupply(line.Quantity) {
			return nil, apperr.ItemUnavailable("only %d of %s left in stock", *item.StockQuantity, item.Name)
		}

		unit := item.Price.Round(moneyPlaces)
		lineTotal := unit.Mul(decimal.NewFromInt(int64(line.Quantity))).Round(moneyPlaces)
		q.Subtotal = q.Subtotal.Add(lineTotal)

		q.Lines = append(q.Lines, models.OrderLine{
			ID:                  uuid.New(),
			FoodItemID:          item.ID,
			Name:                item.Name,
			Quantity:            line.Quantity,
			UnitPrice:           unit,
			LineTotal:           lineTotal,
			SpecialInstructions: line.SpecialInstructions,
		})
	}

	q.Subtotal = q.Subtotal.Round(moneyPlaces)
	q.Tax = q.Subtotal.Mul(p.cfg.TaxRate).Round(moneyPlaces)
	q.Total = q.Subtotal.Add(q.DeliveryFee).Add(q.Tax).Round(moneyPlaces)
	q.EstimatedDeliveryTime = now.Add(p.cfg.DeliveryETA)

	return q, nil
}
