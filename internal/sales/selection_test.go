package sales

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farmapos/farmapos/internal/inventory"
	"github.com/farmapos/farmapos/internal/promotions"
)

type stubLotLister struct {
	lots []inventory.Lot
	err  error
}

func (s *stubLotLister) AvailableLots(ctx context.Context, productID int64) ([]inventory.Lot, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.lots, nil
}

type stubProber struct {
	results map[int64]promotions.LotProbeResult
}

func (s *stubProber) ProbeLots(ctx context.Context, product promotions.SaleProduct, lotIDs []int64) []promotions.LotProbeResult {
	out := make([]promotions.LotProbeResult, 0, len(lotIDs))
	for _, id := range lotIDs {
		if res, ok := s.results[id]; ok {
			out = append(out, res)
			continue
		}
		out = append(out, promotions.LotProbeResult{LotID: id})
	}
	return out
}

var selNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func selLot(id int64, days, available int) inventory.Lot {
	return inventory.Lot{
		ID:                id,
		ProductID:         1,
		LotNumber:         "L" + string(rune('0'+id)),
		ExpiryDate:        selNow.AddDate(0, 0, days),
		QuantityAvailable: available,
		UnitCost:          4.2,
	}
}

func lotScopedPromo(id int64) *promotions.Promotion {
	return &promotions.Promotion{ID: id, Scope: promotions.ScopeLot, Active: true}
}

func newReadySession(t *testing.T, lots []inventory.Lot, prober PromotionProber) *LotSelectionSession {
	t.Helper()
	session := NewLotSelectionSession(&stubLotLister{lots: lots}, prober, SelectionConfig{
		FEFOWindowDays: 90,
		FEFOMaxLots:    5,
		Now:            func() time.Time { return selNow },
	})
	require.NoError(t, session.Open(context.Background(), plainProduct(1, 100, 9.9), 5))
	return session
}

func TestOpenStateAndListFailure(t *testing.T) {
	t.Run("reopen rejected", func(t *testing.T) {
		session := newReadySession(t, []inventory.Lot{selLot(1, 30, 10)}, nil)
		assert.ErrorIs(t, session.Open(context.Background(), plainProduct(1, 100, 9.9), 1), ErrSelectionState)
	})

	t.Run("zero quantity rejected", func(t *testing.T) {
		session := NewLotSelectionSession(&stubLotLister{}, nil, SelectionConfig{})
		assert.ErrorIs(t, session.Open(context.Background(), plainProduct(1, 100, 9.9), 0), ErrInvalidQuantity)
	})

	t.Run("list failure closes the session again", func(t *testing.T) {
		boom := errors.New("lots offline")
		session := NewLotSelectionSession(&stubLotLister{err: boom}, nil, SelectionConfig{})
		err := session.Open(context.Background(), plainProduct(1, 100, 9.9), 1)
		require.ErrorIs(t, err, boom)
		assert.Equal(t, SelectionClosed, session.State(), "a failed open can be retried")
	})
}

func TestOpenProbesAndOrdersFEFO(t *testing.T) {
	lots := []inventory.Lot{selLot(3, 90, 5), selLot(1, 10, 5), selLot(2, 45, 5)}
	prober := &stubProber{results: map[int64]promotions.LotProbeResult{
		1: {LotID: 1, Promotion: lotScopedPromo(7)},
		2: {LotID: 2, Err: errors.New("resolver down")},
		3: {LotID: 3, Promotion: &promotions.Promotion{ID: 8, Scope: promotions.ScopeProduct, Active: true}},
	}}
	session := newReadySession(t, lots, prober)

	view := session.Lots()
	require.Len(t, view, 3)
	assert.Equal(t, []int64{1, 2, 3}, []int64{view[0].ID, view[1].ID, view[2].ID}, "nearest expiry first")

	require.NotNil(t, view[0].Promotion)
	assert.Equal(t, int64(7), view[0].Promotion.ID)
	assert.True(t, view[1].ProbeFailed, "failed probe flags only its own lot")
	assert.Nil(t, view[2].Promotion, "only lot-scoped promotions attach to lots")
}

func TestToggleAndSelectAll(t *testing.T) {
	lots := []inventory.Lot{selLot(1, 10, 4), selLot(2, 20, 6)}
	session := newReadySession(t, lots, nil)

	require.NoError(t, session.Toggle(1))
	assert.Equal(t, 4, session.Lots()[0].Selected, "toggle selects full availability")

	require.NoError(t, session.Toggle(1))
	assert.Zero(t, session.Lots()[0].Selected, "second toggle deselects")

	assert.ErrorIs(t, session.Toggle(99), inventory.ErrLotNotFound)

	require.NoError(t, session.SelectAll())
	view := session.Lots()
	assert.Equal(t, 4, view[0].Selected)
	assert.Equal(t, 6, view[1].Selected)

	require.NoError(t, session.SelectAll())
	view = session.Lots()
	assert.Zero(t, view[0].Selected, "select-all on a full selection clears it")
	assert.Zero(t, view[1].Selected)
}

func TestSetQuantity(t *testing.T) {
	session := newReadySession(t, []inventory.Lot{selLot(1, 10, 8)}, nil)

	assert.ErrorIs(t, session.SetQuantity(1, 3), ErrNoLotsSelected)

	require.NoError(t, session.Toggle(1))
	require.NoError(t, session.SetQuantity(1, 3))
	assert.Equal(t, 3, session.Lots()[0].Selected)

	require.NoError(t, session.SetQuantity(1, 50))
	assert.Equal(t, 8, session.Lots()[0].Selected, "clamped to availability")

	require.NoError(t, session.SetQuantity(1, -2))
	assert.Equal(t, 1, session.Lots()[0].Selected, "clamped up to one")
}

func TestAutoSelectFEFOSession(t *testing.T) {
	t.Run("replaces the selection with the window pick", func(t *testing.T) {
		lots := []inventory.Lot{selLot(1, 10, 4), selLot(2, 45, 6), selLot(3, 200, 9)}
		session := newReadySession(t, lots, nil)
		require.NoError(t, session.Toggle(3))

		require.NoError(t, session.AutoSelectFEFO())
		view := session.Lots()
		assert.Equal(t, 4, view[0].Selected)
		assert.Equal(t, 6, view[1].Selected)
		assert.Zero(t, view[2].Selected, "out-of-window lot dropped from the selection")
	})

	t.Run("empty window leaves the selection untouched", func(t *testing.T) {
		lots := []inventory.Lot{selLot(1, 200, 4)}
		session := newReadySession(t, lots, nil)
		require.NoError(t, session.Toggle(1))

		err := session.AutoSelectFEFO()
		assert.ErrorIs(t, err, inventory.ErrNoLotsInWindow)
		assert.Equal(t, 4, session.Lots()[0].Selected)
	})
}

func TestConfirm(t *testing.T) {
	t.Run("requires a selection", func(t *testing.T) {
		session := newReadySession(t, []inventory.Lot{selLot(1, 10, 4)}, nil)
		_, _, err := session.Confirm()
		assert.ErrorIs(t, err, ErrNoLotsSelected)
	})

	t.Run("emits FEFO-ordered selections with the first lot promotion", func(t *testing.T) {
		lots := []inventory.Lot{selLot(2, 45, 6), selLot(1, 10, 4)}
		prober := &stubProber{results: map[int64]promotions.LotProbeResult{
			2: {LotID: 2, Promotion: lotScopedPromo(9)},
		}}
		session := newReadySession(t, lots, prober)
		require.NoError(t, session.SelectAll())
		require.NoError(t, session.SetQuantity(2, 2))

		selections, promo, err := session.Confirm()
		require.NoError(t, err)
		require.Len(t, selections, 2)
		assert.Equal(t, int64(1), selections[0].LotID)
		assert.Equal(t, 4, selections[0].Quantity)
		assert.Equal(t, int64(2), selections[1].LotID)
		assert.Equal(t, 2, selections[1].Quantity)
		require.NotNil(t, promo)
		assert.Equal(t, int64(9), promo.ID)
		assert.Equal(t, SelectionConfirmed, session.State())

		_, _, err = session.Confirm()
		assert.ErrorIs(t, err, ErrSelectionState, "a confirmed session is spent")
	})
}

func TestCancelDiscardsSelection(t *testing.T) {
	session := newReadySession(t, []inventory.Lot{selLot(1, 10, 4)}, nil)
	require.NoError(t, session.Toggle(1))

	session.Cancel()
	assert.Equal(t, SelectionCancelled, session.State())
	assert.ErrorIs(t, session.Toggle(1), ErrSelectionState)
}
