package customers

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/farmapos/farmapos/internal/platform/httpx"
)

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	Create(ctx context.Context, c Customer) (*Customer, error)
	Get(ctx context.Context, id int64) (*Customer, error)
	GetByDocument(ctx context.Context, document string) (*Customer, error)
	Update(ctx context.Context, id int64, updates map[string]any) (*Customer, error)
	List(ctx context.Context, req ListCustomersRequest) ([]Customer, int, error)
}

// Service provides customer business logic.
type Service struct {
	repo     RepositoryPort
	validate *validator.Validate
}

// NewService constructs a customer service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo, validate: validator.New()}
}

// Create registers a new customer.
func (s *Service) Create(ctx context.Context, req CreateCustomerRequest) (*Customer, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("customers: %w: %v", httpx.ErrValidation, err)
	}
	existing, err := s.repo.GetByDocument(ctx, req.Document)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("customers: check existing document: %w", err)
	}
	if existing != nil {
		return nil, ErrDuplicateDocument
	}
	return s.repo.Create(ctx, Customer{
		Name:     req.Name,
		Document: req.Document,
		Phone:    req.Phone,
		Email:    req.Email,
		Address:  req.Address,
	})
}

// Get fetches a customer by id.
func (s *Service) Get(ctx context.Context, id int64) (*Customer, error) {
	return s.repo.Get(ctx, id)
}

// Update applies a partial customer update.
func (s *Service) Update(ctx context.Context, id int64, req UpdateCustomerRequest) (*Customer, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("customers: %w: %v", httpx.ErrValidation, err)
	}
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}
	updates := make(map[string]any)
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Phone != nil {
		updates["phone"] = *req.Phone
	}
	if req.Email != nil {
		updates["email"] = *req.Email
	}
	if req.Address != nil {
		updates["address"] = *req.Address
	}
	if req.Active != nil {
		updates["active"] = *req.Active
	}
	return s.repo.Update(ctx, id, updates)
}

// List returns customers matching the filter.
func (s *Service) List(ctx context.Context, req ListCustomersRequest) ([]Customer, int, error) {
	return s.repo.List(ctx, req)
}
