package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/farmapos/farmapos/internal/platform/httpx"
)

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	Create(ctx context.Context, p Product) (*Product, error)
	Get(ctx context.Context, id int64) (*Product, error)
	GetByCode(ctx context.Context, code string) (*Product, error)
	Update(ctx context.Context, id int64, updates map[string]any) (*Product, error)
	List(ctx context.Context, req ListProductsRequest) ([]Product, int, error)
	Laboratories(ctx context.Context) ([]string, error)
}

// Service provides catalog business logic.
type Service struct {
	repo     RepositoryPort
	validate *validator.Validate
}

// NewService constructs a catalog service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo, validate: validator.New()}
}

// Create registers a new product.
func (s *Service) Create(ctx context.Context, req CreateProductRequest) (*Product, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("catalog: %w: %v", httpx.ErrValidation, err)
	}
	existing, err := s.repo.GetByCode(ctx, req.Code)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("catalog: check existing code: %w", err)
	}
	if existing != nil {
		return nil, ErrDuplicateCode
	}
	return s.repo.Create(ctx, Product{
		Code:        req.Code,
		Name:        req.Name,
		Laboratory:  req.Laboratory,
		SalePrice:   req.SalePrice,
		CostPrice:   req.CostPrice,
		Controlled:  req.Controlled,
		LotRequired: req.LotRequired,
	})
}

// Get fetches a product by id.
func (s *Service) Get(ctx context.Context, id int64) (*Product, error) {
	return s.repo.Get(ctx, id)
}

// GetSellable fetches a product and verifies it can be added to a sale.
func (s *Service) GetSellable(ctx context.Context, id int64) (*Product, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.Active {
		return nil, ErrInactive
	}
	return p, nil
}

// Update applies a partial product update.
func (s *Service) Update(ctx context.Context, id int64, req UpdateProductRequest) (*Product, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("catalog: %w: %v", httpx.ErrValidation, err)
	}
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}
	updates := make(map[string]any)
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Laboratory != nil {
		updates["laboratory"] = *req.Laboratory
	}
	if req.SalePrice != nil {
		updates["sale_price"] = *req.SalePrice
	}
	if req.CostPrice != nil {
		updates["cost_price"] = *req.CostPrice
	}
	if req.Controlled != nil {
		updates["controlled"] = *req.Controlled
	}
	if req.LotRequired != nil {
		updates["lot_required"] = *req.LotRequired
	}
	if req.Active != nil {
		updates["active"] = *req.Active
	}
	return s.repo.Update(ctx, id, updates)
}

// List returns products matching the filter.
func (s *Service) List(ctx context.Context, req ListProductsRequest) ([]Product, int, error) {
	return s.repo.List(ctx, req)
}

// Laboratories lists distinct laboratory names for filter dropdowns.
func (s *Service) Laboratories(ctx context.Context) ([]string, error) {
	return s.repo.Laboratories(ctx)
}
