package promotions

import (
	"fmt"
	"time"

	"github.com/farmapos/farmapos/internal/platform/httpx"
)

// Scope is the dimension a discount rule is anchored to. Exactly one of the
// scope keys (product, laboratory, lot) is set on a promotion, matching the
// discriminator.
type Scope string

const (
	ScopeProduct    Scope = "PRODUCT"
	ScopeLaboratory Scope = "LABORATORY"
	ScopeLot        Scope = "LOT"
)

// DiscountType selects between a fixed amount and a percentage of the base
// price.
type DiscountType string

const (
	DiscountTypeFixed   DiscountType = "FIXED"
	DiscountTypePercent DiscountType = "PERCENT"
)

// Promotion is a discount rule consumed read-only by the sale flow.
type Promotion struct {
	ID              int64        `json:"id"`
	Name            string       `json:"name"`
	Scope           Scope        `json:"scope"`
	ProductID       *int64       `json:"product_id,omitempty"`
	Laboratory      *string      `json:"laboratory,omitempty"`
	LotID           *int64       `json:"lot_id,omitempty"`
	DiscountType    DiscountType `json:"discount_type"`
	DiscountValue   float64      `json:"discount_value,omitempty"`
	DiscountPercent float64      `json:"discount_percent,omitempty"`
	StartsAt        time.Time    `json:"starts_at"`
	EndsAt          time.Time    `json:"ends_at"`
	Active          bool         `json:"active"`
	MaxQuantity     *int         `json:"max_quantity,omitempty"`
	SoldQuantity    int          `json:"sold_quantity"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// Exhausted reports whether the optional quantity cap has been used up.
func (p *Promotion) Exhausted() bool {
	return p.MaxQuantity != nil && p.SoldQuantity >= *p.MaxQuantity
}

// AppliesAt reports whether the promotion is live: active flag on, now
// inside the half-open [StartsAt, EndsAt) window, cap not exhausted.
func (p *Promotion) AppliesAt(now time.Time) bool {
	if !p.Active || p.Exhausted() {
		return false
	}
	return !now.Before(p.StartsAt) && now.Before(p.EndsAt)
}

// Discount is the result of pricing a promotion against a base price.
type Discount struct {
	FinalPrice float64 `json:"final_price"`
	Amount     float64 `json:"discount_amount"`
}

// ApplyDiscount computes the promotional price. The final price is floored
// at zero rather than rejected; display-layer formatting is responsible for
// currency rounding.
func ApplyDiscount(basePrice float64, p *Promotion) Discount {
	if p == nil {
		return Discount{FinalPrice: basePrice}
	}
	var amount float64
	switch p.DiscountType {
	case DiscountTypeFixed:
		amount = p.DiscountValue
	case DiscountTypePercent:
		amount = basePrice * p.DiscountPercent / 100
	}
	final := basePrice - amount
	if final < 0 {
		final = 0
	}
	return Discount{FinalPrice: final, Amount: amount}
}

// CreatePromotionRequest registers a new promotion. Exactly one scope key
// must accompany the declared scope.
type CreatePromotionRequest struct {
	Name            string       `json:"name" validate:"required,max=200"`
	Scope           Scope        `json:"scope" validate:"required,oneof=PRODUCT LABORATORY LOT"`
	ProductID       *int64       `json:"product_id,omitempty" validate:"omitempty,gt=0"`
	Laboratory      *string      `json:"laboratory,omitempty" validate:"omitempty,max=120"`
	LotID           *int64       `json:"lot_id,omitempty" validate:"omitempty,gt=0"`
	DiscountType    DiscountType `json:"discount_type" validate:"required,oneof=FIXED PERCENT"`
	DiscountValue   float64      `json:"discount_value" validate:"gte=0"`
	DiscountPercent float64      `json:"discount_percent" validate:"gte=0,lte=100"`
	StartsAt        time.Time    `json:"starts_at" validate:"required"`
	EndsAt          time.Time    `json:"ends_at" validate:"required"`
	MaxQuantity     *int         `json:"max_quantity,omitempty" validate:"omitempty,gt=0"`
}

// UpdatePromotionRequest carries partial updates.
type UpdatePromotionRequest struct {
	Name            *string       `json:"name,omitempty" validate:"omitempty,max=200"`
	DiscountType    *DiscountType `json:"discount_type,omitempty" validate:"omitempty,oneof=FIXED PERCENT"`
	DiscountValue   *float64      `json:"discount_value,omitempty" validate:"omitempty,gte=0"`
	DiscountPercent *float64      `json:"discount_percent,omitempty" validate:"omitempty,gte=0,lte=100"`
	StartsAt        *time.Time    `json:"starts_at,omitempty"`
	EndsAt          *time.Time    `json:"ends_at,omitempty"`
	Active          *bool         `json:"active,omitempty"`
	MaxQuantity     *int          `json:"max_quantity,omitempty" validate:"omitempty,gt=0"`
}

var (
	// ErrNotFound indicates a missing promotion.
	ErrNotFound = fmt.Errorf("promotions: promotion %w", httpx.ErrNotFound)
	// ErrScopeKeys rejects promotions whose scope keys disagree with the
	// scope discriminator.
	ErrScopeKeys = fmt.Errorf("promotions: %w: exactly one scope key matching the scope must be set", httpx.ErrValidation)
	// ErrWindow rejects a promotion whose end does not follow its start.
	ErrWindow = fmt.Errorf("promotions: %w: ends_at must be after starts_at", httpx.ErrValidation)
)
