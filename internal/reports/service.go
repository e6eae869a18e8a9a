package reports

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/farmapos/farmapos/internal/inventory"
)

// RepositoryPort abstracts the reporting queries.
type RepositoryPort interface {
	SalesSummary(ctx context.Context, p Period) (*SalesSummary, error)
	TopProducts(ctx context.Context, p Period, limit int) ([]TopProduct, error)
	ControlledRegister(ctx context.Context, p Period) ([]ControlledEntry, error)
}

// InventoryPort supplies the near-expiry view.
type InventoryPort interface {
	NearExpiry(ctx context.Context, windowDays int) ([]inventory.Lot, error)
}

// Service runs report queries. The heavier aggregates are coalesced with
// singleflight so a dashboard refresh storm hits the database once.
type Service struct {
	repo  RepositoryPort
	inv   InventoryPort
	group singleflight.Group
}

// NewService constructs the report service.
func NewService(repo RepositoryPort, inv InventoryPort) *Service {
	return &Service{repo: repo, inv: inv}
}

// SalesSummary aggregates paid sales over the period.
func (s *Service) SalesSummary(ctx context.Context, p Period) (*SalesSummary, error) {
	key := fmt.Sprintf("summary:%d:%d", p.From.Unix(), p.To.Unix())
	v, err, _ := s.group.Do(key, func() (any, error) {
		return s.repo.SalesSummary(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	return v.(*SalesSummary), nil
}

// TopProducts ranks best sellers over the period.
func (s *Service) TopProducts(ctx context.Context, p Period, limit int) ([]TopProduct, error) {
	key := fmt.Sprintf("top:%d:%d:%d", p.From.Unix(), p.To.Unix(), limit)
	v, err, _ := s.group.Do(key, func() (any, error) {
		return s.repo.TopProducts(ctx, p, limit)
	})
	if err != nil {
		return nil, err
	}
	return v.([]TopProduct), nil
}

// ControlledRegister lists controlled-substance sales over the period.
func (s *Service) ControlledRegister(ctx context.Context, p Period) ([]ControlledEntry, error) {
	return s.repo.ControlledRegister(ctx, p)
}

// NearExpiry surfaces lots expiring inside the window.
func (s *Service) NearExpiry(ctx context.Context, windowDays int) ([]inventory.Lot, error) {
	return s.inv.NearExpiry(ctx, windowDays)
}

// DefaultPeriod covers the current day when the caller names no range.
func DefaultPeriod(now time.Time) Period {
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return Period{From: start, To: start.AddDate(0, 0, 1)}
}
