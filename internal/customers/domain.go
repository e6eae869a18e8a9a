package customers

import (
	"fmt"
	"time"

	"github.com/farmapos/farmapos/internal/platform/httpx"
)

// Customer is a registered buyer. The document is the CPF/CNPJ used to tie
// controlled-substance sales to a person.
type Customer struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Document  string    `json:"document"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	Address   string    `json:"address,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateCustomerRequest registers a customer.
type CreateCustomerRequest struct {
	Name     string `json:"name" validate:"required,max=200"`
	Document string `json:"document" validate:"required,max=40"`
	Phone    string `json:"phone" validate:"max=40"`
	Email    string `json:"email" validate:"omitempty,email,max=200"`
	Address  string `json:"address" validate:"max=300"`
}

// UpdateCustomerRequest patches a customer.
type UpdateCustomerRequest struct {
	Name    *string `json:"name,omitempty" validate:"omitempty,max=200"`
	Phone   *string `json:"phone,omitempty" validate:"omitempty,max=40"`
	Email   *string `json:"email,omitempty" validate:"omitempty,email,max=200"`
	Address *string `json:"address,omitempty" validate:"omitempty,max=300"`
	Active  *bool   `json:"active,omitempty"`
}

// ListCustomersRequest filters the listing.
type ListCustomersRequest struct {
	Search  string
	Page    int
	PerPage int
}

var (
	// ErrNotFound indicates a missing customer.
	ErrNotFound = fmt.Errorf("customers: customer %w", httpx.ErrNotFound)
	// ErrDuplicateDocument rejects a second registration of the same document.
	ErrDuplicateDocument = fmt.Errorf("customers: %w: document already registered", httpx.ErrDuplicate)
)
