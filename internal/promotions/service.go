package promotions

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/farmapos/farmapos/internal/platform/httpx"
)

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	Create(ctx context.Context, p Promotion) (*Promotion, error)
	Get(ctx context.Context, id int64) (*Promotion, error)
	Update(ctx context.Context, id int64, updates map[string]any) (*Promotion, error)
	List(ctx context.Context, activeOnly bool, limit, offset int) ([]Promotion, int, error)
	ListCandidates(ctx context.Context, productID int64, laboratory string) ([]Promotion, error)
	IncrementSold(ctx context.Context, id int64, quantity int) error
	DeactivateExpired(ctx context.Context) ([]int64, error)
}

// Service provides promotion management and resolution.
type Service struct {
	repo     RepositoryPort
	cache    *Cache
	validate *validator.Validate
	now      func() time.Time
}

// NewService constructs a promotion service.
func NewService(repo RepositoryPort, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache, validate: validator.New(), now: time.Now}
}

// Create registers a new promotion after checking scope-key exclusivity.
func (s *Service) Create(ctx context.Context, req CreatePromotionRequest) (*Promotion, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("promotions: %w: %v", httpx.ErrValidation, err)
	}
	if err := checkScopeKeys(req.Scope, req.ProductID, req.Laboratory, req.LotID); err != nil {
		return nil, err
	}
	if !req.EndsAt.After(req.StartsAt) {
		return nil, ErrWindow
	}
	created, err := s.repo.Create(ctx, Promotion{
		Name:            req.Name,
		Scope:           req.Scope,
		ProductID:       req.ProductID,
		Laboratory:      req.Laboratory,
		LotID:           req.LotID,
		DiscountType:    req.DiscountType,
		DiscountValue:   req.DiscountValue,
		DiscountPercent: req.DiscountPercent,
		StartsAt:        req.StartsAt,
		EndsAt:          req.EndsAt,
		MaxQuantity:     req.MaxQuantity,
	})
	if err != nil {
		return nil, err
	}
	_ = s.cache.Bump(ctx)
	return created, nil
}

// Update applies a partial promotion update and invalidates the cache.
func (s *Service) Update(ctx context.Context, id int64, req UpdatePromotionRequest) (*Promotion, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("promotions: %w: %v", httpx.ErrValidation, err)
	}
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	updates := make(map[string]any)
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.DiscountType != nil {
		updates["discount_type"] = *req.DiscountType
	}
	if req.DiscountValue != nil {
		updates["discount_value"] = *req.DiscountValue
	}
	if req.DiscountPercent != nil {
		updates["discount_percent"] = *req.DiscountPercent
	}
	starts, ends := existing.StartsAt, existing.EndsAt
	if req.StartsAt != nil {
		starts = *req.StartsAt
		updates["starts_at"] = starts
	}
	if req.EndsAt != nil {
		ends = *req.EndsAt
		updates["ends_at"] = ends
	}
	if !ends.After(starts) {
		return nil, ErrWindow
	}
	if req.Active != nil {
		updates["active"] = *req.Active
	}
	if req.MaxQuantity != nil {
		updates["max_quantity"] = *req.MaxQuantity
	}
	updated, err := s.repo.Update(ctx, id, updates)
	if err != nil {
		return nil, err
	}
	_ = s.cache.Bump(ctx)
	return updated, nil
}

// Get fetches one promotion.
func (s *Service) Get(ctx context.Context, id int64) (*Promotion, error) {
	return s.repo.Get(ctx, id)
}

// List returns promotions with a total count.
func (s *Service) List(ctx context.Context, activeOnly bool, limit, offset int) ([]Promotion, int, error) {
	return s.repo.List(ctx, activeOnly, limit, offset)
}

// ResolveForProduct resolves the applicable promotion for a product and,
// optionally, a picked lot. Pure read: callers may retry freely.
func (s *Service) ResolveForProduct(ctx context.Context, product SaleProduct, lotID *int64) (*Promotion, error) {
	candidates, err := s.candidates(ctx, product)
	if err != nil {
		return nil, err
	}
	return Resolve(candidates, product, lotID, s.now()), nil
}

// Price resolves and applies the promotion in one step, returning the
// winning promotion (nil when none) plus the priced discount.
func (s *Service) Price(ctx context.Context, product SaleProduct, lotID *int64) (*Promotion, Discount, error) {
	promo, err := s.ResolveForProduct(ctx, product, lotID)
	if err != nil {
		return nil, Discount{}, err
	}
	return promo, ApplyDiscount(product.SalePrice, promo), nil
}

// RegisterSale advances the sold counter after checkout commits.
func (s *Service) RegisterSale(ctx context.Context, promotionID int64, quantity int) error {
	if err := s.repo.IncrementSold(ctx, promotionID, quantity); err != nil {
		return err
	}
	return s.cache.Bump(ctx)
}

// SweepExpired deactivates promotions whose window closed. Used by the
// nightly job; returns how many were flipped.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	ids, err := s.repo.DeactivateExpired(ctx)
	if err != nil {
		return 0, err
	}
	if len(ids) > 0 {
		_ = s.cache.Bump(ctx)
	}
	return len(ids), nil
}

func (s *Service) candidates(ctx context.Context, product SaleProduct) ([]Promotion, error) {
	key, err := s.cache.CandidatesKey(ctx, product.ID, product.Laboratory)
	if err != nil {
		return nil, err
	}
	return s.cache.FetchCandidates(ctx, key, func(ctx context.Context) ([]Promotion, error) {
		return s.repo.ListCandidates(ctx, product.ID, product.Laboratory)
	})
}

func checkScopeKeys(scope Scope, productID *int64, laboratory *string, lotID *int64) error {
	set := 0
	if productID != nil {
		set++
	}
	if laboratory != nil {
		set++
	}
	if lotID != nil {
		set++
	}
	if set != 1 {
		return ErrScopeKeys
	}
	switch scope {
	case ScopeProduct:
		if productID == nil {
			return ErrScopeKeys
		}
	case ScopeLaboratory:
		if laboratory == nil {
			return ErrScopeKeys
		}
	case ScopeLot:
		if lotID == nil {
			return ErrScopeKeys
		}
	default:
		return ErrScopeKeys
	}
	return nil
}
