package promotions

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testNow   = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	weekAgo   = testNow.AddDate(0, 0, -7)
	weekAhead = testNow.AddDate(0, 0, 7)
)

func ptr[T any](v T) *T { return &v }

func livePromo(id int64, scope Scope) Promotion {
	return Promotion{
		ID:            id,
		Name:          "promo",
		Scope:         scope,
		DiscountType:  DiscountTypeFixed,
		DiscountValue: 1,
		StartsAt:      weekAgo,
		EndsAt:        weekAhead,
		Active:        true,
	}
}

func TestResolvePrecedence(t *testing.T) {
	product := SaleProduct{ID: 10, Laboratory: "Medley", SalePrice: 20}

	lab := livePromo(1, ScopeLaboratory)
	lab.Laboratory = ptr("Medley")
	prod := livePromo(2, ScopeProduct)
	prod.ProductID = ptr(int64(10))
	lot := livePromo(3, ScopeLot)
	lot.LotID = ptr(int64(77))

	candidates := []Promotion{lab, prod, lot}

	t.Run("lot wins with explicit matching lot id", func(t *testing.T) {
		got := Resolve(candidates, product, ptr(int64(77)), testNow)
		require.NotNil(t, got)
		assert.Equal(t, int64(3), got.ID)
	})

	t.Run("lot promo hidden without lot id", func(t *testing.T) {
		got := Resolve(candidates, product, nil, testNow)
		require.NotNil(t, got)
		assert.Equal(t, int64(2), got.ID, "product scope must win when no lot is picked")
	})

	t.Run("lot promo hidden for a different lot", func(t *testing.T) {
		got := Resolve(candidates, product, ptr(int64(78)), testNow)
		require.NotNil(t, got)
		assert.Equal(t, int64(2), got.ID)
	})

	t.Run("laboratory is the fallback", func(t *testing.T) {
		got := Resolve([]Promotion{lab, lot}, product, nil, testNow)
		require.NotNil(t, got)
		assert.Equal(t, int64(1), got.ID)
	})

	t.Run("nil when nothing matches", func(t *testing.T) {
		other := SaleProduct{ID: 99, Laboratory: "EMS", SalePrice: 5}
		assert.Nil(t, Resolve(candidates, other, nil, testNow))
	})
}

func TestResolveWindowHalfOpen(t *testing.T) {
	product := SaleProduct{ID: 10, Laboratory: "Medley", SalePrice: 20}
	p := livePromo(1, ScopeProduct)
	p.ProductID = ptr(int64(10))

	t.Run("applies exactly at start", func(t *testing.T) {
		assert.NotNil(t, Resolve([]Promotion{p}, product, nil, p.StartsAt))
	})
	t.Run("expired exactly at end", func(t *testing.T) {
		assert.Nil(t, Resolve([]Promotion{p}, product, nil, p.EndsAt))
	})
	t.Run("not yet started", func(t *testing.T) {
		assert.Nil(t, Resolve([]Promotion{p}, product, nil, p.StartsAt.Add(-time.Second)))
	})
}

func TestResolveSkipsInactiveAndExhausted(t *testing.T) {
	product := SaleProduct{ID: 10, Laboratory: "Medley", SalePrice: 20}

	inactive := livePromo(1, ScopeProduct)
	inactive.ProductID = ptr(int64(10))
	inactive.Active = false

	exhausted := livePromo(2, ScopeProduct)
	exhausted.ProductID = ptr(int64(10))
	exhausted.MaxQuantity = ptr(5)
	exhausted.SoldQuantity = 5

	assert.Nil(t, Resolve([]Promotion{inactive, exhausted}, product, nil, testNow))

	remaining := livePromo(3, ScopeProduct)
	remaining.ProductID = ptr(int64(10))
	remaining.MaxQuantity = ptr(5)
	remaining.SoldQuantity = 4
	got := Resolve([]Promotion{remaining}, product, nil, testNow)
	require.NotNil(t, got)
	assert.Equal(t, int64(3), got.ID)
}

func TestApplyDiscount(t *testing.T) {
	t.Run("fixed", func(t *testing.T) {
		p := livePromo(1, ScopeProduct)
		p.DiscountType = DiscountTypeFixed
		p.DiscountValue = 3
		d := ApplyDiscount(10, &p)
		assert.InDelta(t, 7, d.FinalPrice, 1e-9)
		assert.InDelta(t, 3, d.Amount, 1e-9)
	})

	t.Run("percent uses unrounded base", func(t *testing.T) {
		p := livePromo(1, ScopeProduct)
		p.DiscountType = DiscountTypePercent
		p.DiscountPercent = 10
		d := ApplyDiscount(19.99, &p)
		assert.InDelta(t, 1.999, d.Amount, 1e-9)
		assert.InDelta(t, 17.991, d.FinalPrice, 1e-9)
	})

	t.Run("floored at zero", func(t *testing.T) {
		p := livePromo(1, ScopeProduct)
		p.DiscountType = DiscountTypeFixed
		p.DiscountValue = 50
		d := ApplyDiscount(10, &p)
		assert.Zero(t, d.FinalPrice)
		assert.InDelta(t, 50, d.Amount, 1e-9, "discount amount is reported even when the price floors")
	})

	t.Run("nil promotion keeps base price", func(t *testing.T) {
		d := ApplyDiscount(12.5, nil)
		assert.InDelta(t, 12.5, d.FinalPrice, 1e-9)
		assert.Zero(t, d.Amount)
	})
}

// stubRepository serves a fixed candidate list; the write methods are
// exercised by the service tests.
type stubRepository struct {
	candidates []Promotion
	err        error
}

func (s *stubRepository) Create(ctx context.Context, p Promotion) (*Promotion, error) {
	return &p, nil
}

func (s *stubRepository) Get(ctx context.Context, id int64) (*Promotion, error) {
	return nil, ErrNotFound
}

func (s *stubRepository) Update(ctx context.Context, id int64, updates map[string]any) (*Promotion, error) {
	return nil, ErrNotFound
}

func (s *stubRepository) List(ctx context.Context, activeOnly bool, limit, offset int) ([]Promotion, int, error) {
	return s.candidates, len(s.candidates), nil
}

func (s *stubRepository) ListCandidates(ctx context.Context, productID int64, laboratory string) ([]Promotion, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.candidates, nil
}

func (s *stubRepository) IncrementSold(ctx context.Context, id int64, quantity int) error {
	return nil
}

func (s *stubRepository) DeactivateExpired(ctx context.Context) ([]int64, error) {
	return nil, nil
}

func TestProbeLotsPreservesOrderAndIsolatesFailures(t *testing.T) {
	lotA := livePromo(1, ScopeLot)
	lotA.LotID = ptr(int64(100))
	lotC := livePromo(2, ScopeLot)
	lotC.LotID = ptr(int64(300))

	svc := NewService(&stubRepository{candidates: []Promotion{lotA, lotC}}, nil)
	svc.now = func() time.Time { return testNow }
	product := SaleProduct{ID: 10, Laboratory: "Medley", SalePrice: 20}

	results := svc.ProbeLots(context.Background(), product, []int64{100, 200, 300})
	require.Len(t, results, 3)
	assert.Equal(t, int64(100), results[0].LotID)
	assert.Equal(t, int64(200), results[1].LotID)
	assert.Equal(t, int64(300), results[2].LotID)

	require.NotNil(t, results[0].Promotion)
	assert.Equal(t, int64(1), results[0].Promotion.ID)
	assert.Nil(t, results[1].Promotion)
	require.NotNil(t, results[2].Promotion)
	assert.Equal(t, int64(2), results[2].Promotion.ID)
}
