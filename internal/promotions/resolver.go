package promotions

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// SaleProduct is the slice of catalog data the resolver needs. Declared
// here so the resolver does not depend on the catalog package.
type SaleProduct struct {
	ID         int64
	Laboratory string
	SalePrice  float64
}

// Resolve picks the applicable promotion from candidates by fixed
// precedence: lot-scoped (only when lotID is given and matches) beats
// product-scoped beats laboratory-scoped. Candidates outside their date
// window, inactive, or with an exhausted cap never win. Returns nil when no
// candidate qualifies.
//
// A lot-scoped promotion is never returned without an explicit matching
// lotID: the operator only gets the lot discount once that lot is actually
// picked.
func Resolve(candidates []Promotion, product SaleProduct, lotID *int64, now time.Time) *Promotion {
	var productMatch, labMatch *Promotion
	for i := range candidates {
		p := &candidates[i]
		if !p.AppliesAt(now) {
			continue
		}
		switch p.Scope {
		case ScopeLot:
			if lotID != nil && p.LotID != nil && *p.LotID == *lotID {
				return p
			}
		case ScopeProduct:
			if productMatch == nil && p.ProductID != nil && *p.ProductID == product.ID {
				productMatch = p
			}
		case ScopeLaboratory:
			if labMatch == nil && p.Laboratory != nil && *p.Laboratory == product.Laboratory {
				labMatch = p
			}
		}
	}
	if productMatch != nil {
		return productMatch
	}
	return labMatch
}

// LotProbeResult tags the per-lot promotion probe outcome. A failed probe
// carries its error instead of failing the whole batch, so lot listing
// stays usable when a single lookup breaks.
type LotProbeResult struct {
	LotID     int64      `json:"lot_id"`
	Promotion *Promotion `json:"promotion,omitempty"`
	Err       error      `json:"-"`
}

// probeConcurrency bounds the fan-out when probing many visible lots.
const probeConcurrency = 8

// ProbeLots resolves the applicable promotion for each lot concurrently.
// The returned slice preserves the input order, one result per lot.
func (s *Service) ProbeLots(ctx context.Context, product SaleProduct, lotIDs []int64) []LotProbeResult {
	results := make([]LotProbeResult, len(lotIDs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(probeConcurrency)
	for i, lotID := range lotIDs {
		g.Go(func() error {
			promo, err := s.ResolveForProduct(ctx, product, &lotID)
			results[i] = LotProbeResult{LotID: lotID, Promotion: promo, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}
