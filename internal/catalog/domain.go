package catalog

import (
	"errors"
	"fmt"
	"time"

	"github.com/farmapos/farmapos/internal/platform/httpx"
)

// Product is the pharmacy catalog entry. Controlled products require
// prescription capture at checkout; lot-required products force explicit
// lot selection before a sale line can be built.
type Product struct {
	ID          int64     `json:"id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Laboratory  string    `json:"laboratory"`
	SalePrice   float64   `json:"sale_price"`
	CostPrice   float64   `json:"cost_price"`
	Stock       int       `json:"stock"`
	Controlled  bool      `json:"controlled"`
	LotRequired bool      `json:"lot_required"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateProductRequest is the payload for registering a product.
type CreateProductRequest struct {
	Code        string  `json:"code" validate:"required,max=50"`
	Name        string  `json:"name" validate:"required,max=200"`
	Laboratory  string  `json:"laboratory" validate:"required,max=120"`
	SalePrice   float64 `json:"sale_price" validate:"gte=0"`
	CostPrice   float64 `json:"cost_price" validate:"gte=0"`
	Controlled  bool    `json:"controlled"`
	LotRequired bool    `json:"lot_required"`
}

// UpdateProductRequest carries partial updates.
type UpdateProductRequest struct {
	Name        *string  `json:"name,omitempty" validate:"omitempty,max=200"`
	Laboratory  *string  `json:"laboratory,omitempty" validate:"omitempty,max=120"`
	SalePrice   *float64 `json:"sale_price,omitempty" validate:"omitempty,gte=0"`
	CostPrice   *float64 `json:"cost_price,omitempty" validate:"omitempty,gte=0"`
	Controlled  *bool    `json:"controlled,omitempty"`
	LotRequired *bool    `json:"lot_required,omitempty"`
	Active      *bool    `json:"active,omitempty"`
}

// ListProductsRequest filters catalog listings.
type ListProductsRequest struct {
	Search     string
	Laboratory string
	Controlled *bool
	Active     *bool
	Page       int
	PerPage    int
}

var (
	// ErrNotFound indicates a missing product.
	ErrNotFound = fmt.Errorf("catalog: product %w", httpx.ErrNotFound)
	// ErrDuplicateCode indicates the product code is taken.
	ErrDuplicateCode = fmt.Errorf("catalog: product code %w", httpx.ErrDuplicate)
	// ErrInactive indicates the product cannot be sold.
	ErrInactive = errors.New("catalog: product inactive")
)
